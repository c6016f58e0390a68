package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrWheelNotFound    = errors.New("wheel not found")
	ErrWheelInactive    = errors.New("wheel inactive or outside validity window")
	ErrNoSegments       = errors.New("wheel has no drawable segments")
	ErrRateLimited      = errors.New("daily draw limit reached")
	ErrDrawNotFound     = errors.New("draw not found")
	ErrDrawNotOwned     = errors.New("draw belongs to another user")
	ErrPuzzleNotFound   = errors.New("puzzle not found")
	ErrPuzzleInactive   = errors.New("puzzle inactive")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptNotOwned  = errors.New("attempt belongs to another user")
	ErrAlreadyCompleted = errors.New("attempt already completed")
)

const (
	dbSQLite   = "sqlite"
	dbPostgres = "postgres"
)

type Store struct {
	db     *sql.DB
	dbType string
}

func New(ctx context.Context, dsn string) (*Store, error) {
	var db *sql.DB
	var err error
	var dbType string

	if dsn == "" || strings.HasPrefix(dsn, "sqlite:") {
		dbType = dbSQLite
		sqlitePath := "data.db"
		if strings.HasPrefix(dsn, "sqlite:") {
			sqlitePath = strings.TrimPrefix(dsn, "sqlite:")
		}
		db, err = sql.Open("sqlite", sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return nil, err
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			return nil, err
		}
		// Single writer connection keeps concurrent transactions from
		// tripping over SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		dbType = dbPostgres
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres open: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	store := &Store{db: db, dbType: dbType}
	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.dbType == dbSQLite {
		schema = sqliteSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// q rewrites $N placeholders to ? for sqlite. Queries must list their
// placeholders in ascending order without repeats.
func (s *Store) q(query string) string {
	if s.dbType != dbSQLite {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?")
}

// forUpdate appends row locking on postgres. SQLite runs with a single
// connection, so its transactions already serialize.
func (s *Store) forUpdate(query string) string {
	if s.dbType == dbPostgres {
		return query + " FOR UPDATE"
	}
	return query
}

// utc normalizes a timestamp before it is stored or compared. SQLite
// compares timestamps lexically, so everything must carry the same offset.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func nullableTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time.UTC()
	return &v
}

func nullableFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS wheels (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    segments TEXT NOT NULL DEFAULT '[]',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    start_date TIMESTAMP,
    end_date TIMESTAMP,
    max_draws_per_day INTEGER NOT NULL DEFAULT 1,
    total_draws INTEGER NOT NULL DEFAULT 0,
    total_prizes_given INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS wheel_draws (
    id TEXT PRIMARY KEY,
    wheel_id TEXT NOT NULL REFERENCES wheels(id),
    user_id TEXT NOT NULL REFERENCES users(id),
    segment_id INTEGER NOT NULL,
    prize_kind TEXT NOT NULL,
    prize_value TEXT NOT NULL DEFAULT '',
    claimed BOOLEAN NOT NULL DEFAULT FALSE,
    claimed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS puzzles (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    thumbnail_url TEXT NOT NULL DEFAULT '',
    difficulty TEXT NOT NULL DEFAULT 'medium',
    time_limit INTEGER NOT NULL DEFAULT 300,
    points_reward INTEGER NOT NULL DEFAULT 10,
    bonus_time_threshold INTEGER NOT NULL DEFAULT 60,
    bonus_points INTEGER NOT NULL DEFAULT 5,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    daily BOOLEAN NOT NULL DEFAULT FALSE,
    total_plays INTEGER NOT NULL DEFAULT 0,
    total_completions INTEGER NOT NULL DEFAULT 0,
    average_time REAL NOT NULL DEFAULT 0,
    best_time REAL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS puzzle_attempts (
    id TEXT PRIMARY KEY,
    puzzle_id TEXT NOT NULL REFERENCES puzzles(id),
    user_id TEXT NOT NULL REFERENCES users(id),
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    completion_time REAL,
    moves_count INTEGER NOT NULL DEFAULT 0,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    points_earned INTEGER NOT NULL DEFAULT 0,
    bonus_earned BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS leaderboard (
    user_id TEXT NOT NULL,
    game_type TEXT NOT NULL,
    period TEXT NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    rank INTEGER NOT NULL DEFAULT 0,
    games_played INTEGER NOT NULL DEFAULT 0,
    best_time REAL,
    period_start TIMESTAMP NOT NULL,
    period_end TIMESTAMP NOT NULL,
    last_updated TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, game_type, period, period_start)
);

CREATE TABLE IF NOT EXISTS prize_grants (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    draw_id TEXT NOT NULL REFERENCES wheel_draws(id),
    prize_kind TEXT NOT NULL,
    prize_value TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wheel_draws_user_created ON wheel_draws(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_wheel_draws_wheel_created ON wheel_draws(wheel_id, created_at);
CREATE INDEX IF NOT EXISTS idx_puzzle_attempts_user_started ON puzzle_attempts(user_id, started_at);
CREATE INDEX IF NOT EXISTS idx_puzzle_attempts_completed ON puzzle_attempts(puzzle_id, completed);
CREATE INDEX IF NOT EXISTS idx_leaderboard_listing ON leaderboard(game_type, period, period_start, rank);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS wheels (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    segments TEXT NOT NULL DEFAULT '[]',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    start_date TIMESTAMPTZ,
    end_date TIMESTAMPTZ,
    max_draws_per_day INTEGER NOT NULL DEFAULT 1,
    total_draws INTEGER NOT NULL DEFAULT 0,
    total_prizes_given INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS wheel_draws (
    id TEXT PRIMARY KEY,
    wheel_id TEXT NOT NULL REFERENCES wheels(id),
    user_id TEXT NOT NULL REFERENCES users(id),
    segment_id INTEGER NOT NULL,
    prize_kind TEXT NOT NULL,
    prize_value TEXT NOT NULL DEFAULT '',
    claimed BOOLEAN NOT NULL DEFAULT FALSE,
    claimed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS puzzles (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    thumbnail_url TEXT NOT NULL DEFAULT '',
    difficulty TEXT NOT NULL DEFAULT 'medium',
    time_limit INTEGER NOT NULL DEFAULT 300,
    points_reward INTEGER NOT NULL DEFAULT 10,
    bonus_time_threshold INTEGER NOT NULL DEFAULT 60,
    bonus_points INTEGER NOT NULL DEFAULT 5,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    daily BOOLEAN NOT NULL DEFAULT FALSE,
    total_plays INTEGER NOT NULL DEFAULT 0,
    total_completions INTEGER NOT NULL DEFAULT 0,
    average_time DOUBLE PRECISION NOT NULL DEFAULT 0,
    best_time DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS puzzle_attempts (
    id TEXT PRIMARY KEY,
    puzzle_id TEXT NOT NULL REFERENCES puzzles(id),
    user_id TEXT NOT NULL REFERENCES users(id),
    started_at TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ,
    completion_time DOUBLE PRECISION,
    moves_count INTEGER NOT NULL DEFAULT 0,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    points_earned INTEGER NOT NULL DEFAULT 0,
    bonus_earned BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS leaderboard (
    user_id TEXT NOT NULL,
    game_type TEXT NOT NULL,
    period TEXT NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    rank INTEGER NOT NULL DEFAULT 0,
    games_played INTEGER NOT NULL DEFAULT 0,
    best_time DOUBLE PRECISION,
    period_start TIMESTAMPTZ NOT NULL,
    period_end TIMESTAMPTZ NOT NULL,
    last_updated TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, game_type, period, period_start)
);

CREATE TABLE IF NOT EXISTS prize_grants (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    draw_id TEXT NOT NULL REFERENCES wheel_draws(id),
    prize_kind TEXT NOT NULL,
    prize_value TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wheel_draws_user_created ON wheel_draws(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_wheel_draws_wheel_created ON wheel_draws(wheel_id, created_at);
CREATE INDEX IF NOT EXISTS idx_puzzle_attempts_user_started ON puzzle_attempts(user_id, started_at);
CREATE INDEX IF NOT EXISTS idx_puzzle_attempts_completed ON puzzle_attempts(puzzle_id, completed);
CREATE INDEX IF NOT EXISTS idx_leaderboard_listing ON leaderboard(game_type, period, period_start, rank);
`
