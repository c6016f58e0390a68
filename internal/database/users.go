package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bxdofficial/Nawi/internal/models"
)

// EnsureUser upserts the user row backing a verified token. The accounts
// service owns identity; this table only mirrors what the games need
// (username for display, points balance).
func (s *Store) EnsureUser(ctx context.Context, id, username, displayName string, now time.Time) (*models.User, error) {
	query := `
INSERT INTO users (id, username, display_name, points, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, $5)
ON CONFLICT (id) DO UPDATE
SET username = excluded.username,
    display_name = excluded.display_name,
    updated_at = excluded.updated_at
RETURNING id, username, display_name, points, created_at, updated_at`
	row := s.db.QueryRowContext(ctx, s.q(query), id, username, displayName, utc(now), utc(now))
	return scanUser(row)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, username, display_name, points, created_at, updated_at FROM users WHERE id = $1`
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Points, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
