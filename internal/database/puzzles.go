package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bxdofficial/Nawi/internal/models"
)

const puzzleColumns = `id, title, description, image_url, thumbnail_url, difficulty,
time_limit, points_reward, bonus_time_threshold, bonus_points, active, daily,
total_plays, total_completions, average_time, best_time, created_at`

func (s *Store) CreatePuzzle(ctx context.Context, p *models.Puzzle, now time.Time) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = utc(now)
	query := `
INSERT INTO puzzles (id, title, description, image_url, thumbnail_url, difficulty,
                     time_limit, points_reward, bonus_time_threshold, bonus_points,
                     active, daily, total_plays, total_completions, average_time, best_time, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, 0, 0, NULL, $13)`
	_, err := s.db.ExecContext(ctx, s.q(query),
		p.ID, p.Title, p.Description, p.ImageURL, p.ThumbnailURL, string(p.Difficulty),
		p.TimeLimit, p.PointsReward, p.BonusTimeThreshold, p.BonusPoints,
		p.Active, p.Daily, p.CreatedAt)
	return err
}

func (s *Store) UpdatePuzzle(ctx context.Context, p *models.Puzzle) error {
	query := `
UPDATE puzzles
SET title = $1, description = $2, image_url = $3, thumbnail_url = $4, difficulty = $5,
    time_limit = $6, points_reward = $7, bonus_time_threshold = $8, bonus_points = $9,
    active = $10, daily = $11
WHERE id = $12`
	res, err := s.db.ExecContext(ctx, s.q(query),
		p.Title, p.Description, p.ImageURL, p.ThumbnailURL, string(p.Difficulty),
		p.TimeLimit, p.PointsReward, p.BonusTimeThreshold, p.BonusPoints,
		p.Active, p.Daily, p.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrPuzzleNotFound
	}
	return nil
}

func (s *Store) GetPuzzle(ctx context.Context, id string) (*models.Puzzle, error) {
	query := `SELECT ` + puzzleColumns + ` FROM puzzles WHERE id = $1`
	p, err := scanPuzzle(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPuzzleNotFound
	}
	return p, err
}

func (s *Store) ListPuzzles(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Puzzle, int64, error) {
	query := `SELECT ` + puzzleColumns + ` FROM puzzles ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	countQuery := `SELECT COUNT(*) FROM puzzles`
	args := []any{limit, offset}
	if activeOnly {
		query = `SELECT ` + puzzleColumns + ` FROM puzzles WHERE active = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		countQuery = `SELECT COUNT(*) FROM puzzles WHERE active = TRUE`
		args = []any{true, limit, offset}
	}
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var puzzles []models.Puzzle
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, 0, err
		}
		puzzles = append(puzzles, *p)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}
	return puzzles, total, rows.Err()
}

// StartAttempt opens a play session and counts the play on the puzzle in
// the same transaction.
func (s *Store) StartAttempt(ctx context.Context, puzzleID, userID string, now time.Time) (*models.PuzzleAttempt, error) {
	now = utc(now)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := s.forUpdate(`SELECT ` + puzzleColumns + ` FROM puzzles WHERE id = $1`)
	p, err := scanPuzzle(tx.QueryRowContext(ctx, s.q(query), puzzleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPuzzleNotFound
		}
		return nil, err
	}
	if !p.Active {
		return nil, ErrPuzzleInactive
	}

	attempt := &models.PuzzleAttempt{
		ID:        uuid.NewString(),
		PuzzleID:  puzzleID,
		UserID:    userID,
		StartedAt: now,
	}
	insert := `
INSERT INTO puzzle_attempts (id, puzzle_id, user_id, started_at, moves_count, completed, points_earned, bonus_earned)
VALUES ($1, $2, $3, $4, 0, $5, 0, $6)`
	if _, err := tx.ExecContext(ctx, s.q(insert), attempt.ID, puzzleID, userID, now, false, false); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE puzzles SET total_plays = total_plays + 1 WHERE id = $1`), puzzleID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return attempt, nil
}

// CompleteAttempt settles a session exactly once: scores it, credits the
// user and folds the time into the puzzle aggregates, all in one
// transaction. A second completion returns ErrAlreadyCompleted and
// changes nothing.
func (s *Store) CompleteAttempt(ctx context.Context, attemptID, userID string, moves int, now time.Time) (*models.PuzzleAttempt, error) {
	now = utc(now)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := s.forUpdate(`
SELECT id, puzzle_id, user_id, started_at, completed_at, completion_time, moves_count, completed, points_earned, bonus_earned
FROM puzzle_attempts WHERE id = $1`)
	a, err := scanAttempt(tx.QueryRowContext(ctx, s.q(query), attemptID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrAttemptNotOwned
	}
	if a.Completed {
		return nil, ErrAlreadyCompleted
	}

	puzzleQuery := s.forUpdate(`SELECT ` + puzzleColumns + ` FROM puzzles WHERE id = $1`)
	p, err := scanPuzzle(tx.QueryRowContext(ctx, s.q(puzzleQuery), a.PuzzleID))
	if err != nil {
		return nil, err
	}

	elapsed := now.Sub(a.StartedAt).Seconds()
	points := p.PointsReward
	bonus := false
	if p.BonusTimeThreshold > 0 && elapsed <= float64(p.BonusTimeThreshold) {
		points += p.BonusPoints
		bonus = true
	}

	a.CompletedAt = &now
	a.CompletionTime = &elapsed
	a.MovesCount = moves
	a.Completed = true
	a.PointsEarned = points
	a.BonusEarned = bonus

	update := `
UPDATE puzzle_attempts
SET completed_at = $1, completion_time = $2, moves_count = $3, completed = $4,
    points_earned = $5, bonus_earned = $6
WHERE id = $7`
	if _, err := tx.ExecContext(ctx, s.q(update), now, elapsed, moves, true, points, bonus, attemptID); err != nil {
		return nil, err
	}

	credit := `UPDATE users SET points = points + $1, updated_at = $2 WHERE id = $3`
	res, err := tx.ExecContext(ctx, s.q(credit), points, now, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrUserNotFound
	}

	completions := p.TotalCompletions + 1
	average := elapsed
	if p.TotalCompletions > 0 {
		average = (p.AverageTime*float64(p.TotalCompletions) + elapsed) / float64(completions)
	}
	best := elapsed
	if p.BestTime != nil && *p.BestTime < elapsed {
		best = *p.BestTime
	}
	stats := `
UPDATE puzzles
SET total_completions = $1, average_time = $2, best_time = $3
WHERE id = $4`
	if _, err := tx.ExecContext(ctx, s.q(stats), completions, average, best, a.PuzzleID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) GetAttempt(ctx context.Context, id string) (*models.PuzzleAttempt, error) {
	query := `
SELECT id, puzzle_id, user_id, started_at, completed_at, completion_time, moves_count, completed, points_earned, bonus_earned
FROM puzzle_attempts WHERE id = $1`
	a, err := scanAttempt(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	return a, err
}

// CompletedAttemptsBetween streams completed attempts whose session
// started inside the window, for leaderboard aggregation.
func (s *Store) CompletedAttemptsBetween(ctx context.Context, from, to time.Time) ([]models.PuzzleAttempt, error) {
	query := `
SELECT id, puzzle_id, user_id, started_at, completed_at, completion_time, moves_count, completed, points_earned, bonus_earned
FROM puzzle_attempts
WHERE completed = $1 AND started_at >= $2 AND started_at < $3
ORDER BY started_at ASC`
	rows, err := s.db.QueryContext(ctx, s.q(query), true, utc(from), utc(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.PuzzleAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

func scanPuzzle(row rowScanner) (*models.Puzzle, error) {
	var p models.Puzzle
	var difficulty string
	var best sql.NullFloat64
	if err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.ImageURL, &p.ThumbnailURL, &difficulty,
		&p.TimeLimit, &p.PointsReward, &p.BonusTimeThreshold, &p.BonusPoints,
		&p.Active, &p.Daily, &p.TotalPlays, &p.TotalCompletions, &p.AverageTime,
		&best, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Difficulty = models.PuzzleDifficulty(difficulty)
	p.BestTime = nullableFloat(best)
	return &p, nil
}

func scanAttempt(row rowScanner) (*models.PuzzleAttempt, error) {
	var a models.PuzzleAttempt
	var completedAt sql.NullTime
	var completionTime sql.NullFloat64
	if err := row.Scan(
		&a.ID, &a.PuzzleID, &a.UserID, &a.StartedAt, &completedAt, &completionTime,
		&a.MovesCount, &a.Completed, &a.PointsEarned, &a.BonusEarned,
	); err != nil {
		return nil, err
	}
	a.CompletedAt = nullableTime(completedAt)
	a.CompletionTime = nullableFloat(completionTime)
	return &a, nil
}
