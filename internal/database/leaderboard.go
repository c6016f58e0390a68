package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bxdofficial/Nawi/internal/models"
)

const leaderboardColumns = `user_id, game_type, period, score, rank, games_played,
best_time, period_start, period_end, last_updated`

// UpsertLeaderboardEntries replaces a computed standings snapshot in a
// single transaction. Entries key on (user, game type, period, window
// start), so recomputing the same window overwrites rather than
// duplicates.
func (s *Store) UpsertLeaderboardEntries(ctx context.Context, entries []models.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
INSERT INTO leaderboard (user_id, game_type, period, score, rank, games_played,
                         best_time, period_start, period_end, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id, game_type, period, period_start) DO UPDATE
SET score = excluded.score,
    rank = excluded.rank,
    games_played = excluded.games_played,
    best_time = excluded.best_time,
    period_end = excluded.period_end,
    last_updated = excluded.last_updated`
	stmt, err := tx.PrepareContext(ctx, s.q(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		var best any
		if e.BestTime != nil {
			best = *e.BestTime
		}
		_, err := stmt.ExecContext(ctx,
			e.UserID, string(e.GameType), string(e.Period), e.Score, e.Rank, e.GamesPlayed,
			best, utc(e.PeriodStart), utc(e.PeriodEnd), utc(e.LastUpdated))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Standings reads a stored snapshot for one board, ordered by rank.
func (s *Store) Standings(ctx context.Context, gameType models.GameType, p models.Period, periodStart time.Time, limit, offset int) ([]models.LeaderboardEntry, int64, error) {
	query := `
SELECT ` + leaderboardColumns + `
FROM leaderboard
WHERE game_type = $1 AND period = $2 AND period_start = $3
ORDER BY rank ASC
LIMIT $4 OFFSET $5`
	rows, err := s.db.QueryContext(ctx, s.q(query), string(gameType), string(p), utc(periodStart), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `
SELECT COUNT(*) FROM leaderboard
WHERE game_type = $1 AND period = $2 AND period_start = $3`
	var total int64
	if err := s.db.QueryRowContext(ctx, s.q(countQuery), string(gameType), string(p), utc(periodStart)).Scan(&total); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// UserStanding returns one user's row on a board, or nil when the user
// has no entry for that window.
func (s *Store) UserStanding(ctx context.Context, userID string, gameType models.GameType, p models.Period, periodStart time.Time) (*models.LeaderboardEntry, error) {
	query := `
SELECT ` + leaderboardColumns + `
FROM leaderboard
WHERE user_id = $1 AND game_type = $2 AND period = $3 AND period_start = $4`
	e, err := scanLeaderboardEntry(s.db.QueryRowContext(ctx, s.q(query), userID, string(gameType), string(p), utc(periodStart)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func scanLeaderboardEntry(row rowScanner) (*models.LeaderboardEntry, error) {
	var e models.LeaderboardEntry
	var gameType, p string
	var best sql.NullFloat64
	if err := row.Scan(
		&e.UserID, &gameType, &p, &e.Score, &e.Rank, &e.GamesPlayed,
		&best, &e.PeriodStart, &e.PeriodEnd, &e.LastUpdated,
	); err != nil {
		return nil, err
	}
	e.GameType = models.GameType(gameType)
	e.Period = models.Period(p)
	e.BestTime = nullableFloat(best)
	return &e, nil
}
