package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bxdofficial/Nawi/internal/models"
	"github.com/bxdofficial/Nawi/internal/period"
)

const wheelColumns = `id, title, description, segments, active, start_date, end_date,
max_draws_per_day, total_draws, total_prizes_given, created_at, updated_at`

func (s *Store) CreateWheel(ctx context.Context, w *models.Wheel, now time.Time) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = utc(now)
	w.UpdatedAt = utc(now)
	segments, err := json.Marshal(w.Segments)
	if err != nil {
		return err
	}
	query := `
INSERT INTO wheels (id, title, description, segments, active, start_date, end_date,
                    max_draws_per_day, total_draws, total_prizes_given, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, $9, $10)`
	_, err = s.db.ExecContext(ctx, s.q(query),
		w.ID, w.Title, w.Description, string(segments), w.Active,
		nullTimeArg(w.StartDate), nullTimeArg(w.EndDate),
		w.MaxDrawsPerDay, w.CreatedAt, w.UpdatedAt)
	return err
}

// UpdateWheel rewrites configuration fields. Counters are owned by the
// draw path and never touched here.
func (s *Store) UpdateWheel(ctx context.Context, w *models.Wheel, now time.Time) error {
	segments, err := json.Marshal(w.Segments)
	if err != nil {
		return err
	}
	query := `
UPDATE wheels
SET title = $1, description = $2, segments = $3, active = $4,
    start_date = $5, end_date = $6, max_draws_per_day = $7, updated_at = $8
WHERE id = $9`
	res, err := s.db.ExecContext(ctx, s.q(query),
		w.Title, w.Description, string(segments), w.Active,
		nullTimeArg(w.StartDate), nullTimeArg(w.EndDate),
		w.MaxDrawsPerDay, utc(now), w.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrWheelNotFound
	}
	return nil
}

func (s *Store) GetWheel(ctx context.Context, id string) (*models.Wheel, error) {
	query := `SELECT ` + wheelColumns + ` FROM wheels WHERE id = $1`
	w, err := scanWheel(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWheelNotFound
	}
	return w, err
}

// GetActiveWheel returns the newest wheel that is active and inside its
// validity window at the given instant.
func (s *Store) GetActiveWheel(ctx context.Context, now time.Time) (*models.Wheel, error) {
	query := `
SELECT ` + wheelColumns + `
FROM wheels
WHERE active = $1
  AND (start_date IS NULL OR start_date <= $2)
  AND (end_date IS NULL OR end_date > $3)
ORDER BY created_at DESC
LIMIT 1`
	w, err := scanWheel(s.db.QueryRowContext(ctx, s.q(query), true, utc(now), utc(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWheelNotFound
	}
	return w, err
}

func (s *Store) ListWheels(ctx context.Context, limit, offset int) ([]models.Wheel, int64, error) {
	query := `SELECT ` + wheelColumns + ` FROM wheels ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := s.db.QueryContext(ctx, s.q(query), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var wheels []models.Wheel
	for rows.Next() {
		w, err := scanWheel(rows)
		if err != nil {
			return nil, 0, err
		}
		wheels = append(wheels, *w)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wheels`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return wheels, total, rows.Err()
}

// CountDrawsToday reports how many draws the user has made on the wheel
// within the calendar day containing now.
func (s *Store) CountDrawsToday(ctx context.Context, wheelID, userID string, now time.Time) (int, error) {
	day := period.Resolve(models.PeriodDaily, utc(now))
	query := `
SELECT COUNT(*) FROM wheel_draws
WHERE wheel_id = $1 AND user_id = $2 AND created_at >= $3 AND created_at < $4`
	var count int
	err := s.db.QueryRowContext(ctx, s.q(query), wheelID, userID, day.Start, day.End).Scan(&count)
	return count, err
}

// CreateDraw performs one draw as a single transaction: validate the wheel,
// enforce the per-day limit against a consistent snapshot, pick a segment,
// insert the draw row and bump the wheel counters. A failure anywhere
// leaves nothing behind.
func (s *Store) CreateDraw(ctx context.Context, wheelID, userID string, now time.Time, pick func(*models.Wheel) (models.WheelSegment, error)) (*models.WheelDraw, error) {
	now = utc(now)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := s.forUpdate(`SELECT ` + wheelColumns + ` FROM wheels WHERE id = $1`)
	w, err := scanWheel(tx.QueryRowContext(ctx, s.q(query), wheelID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWheelNotFound
		}
		return nil, err
	}
	if !w.Active {
		return nil, ErrWheelInactive
	}
	if w.StartDate != nil && now.Before(*w.StartDate) {
		return nil, ErrWheelInactive
	}
	if w.EndDate != nil && !now.Before(*w.EndDate) {
		return nil, ErrWheelInactive
	}
	if totalWeight(w.Segments) <= 0 {
		return nil, ErrNoSegments
	}

	day := period.Resolve(models.PeriodDaily, now)
	var count int
	countQuery := `
SELECT COUNT(*) FROM wheel_draws
WHERE wheel_id = $1 AND user_id = $2 AND created_at >= $3 AND created_at < $4`
	if err := tx.QueryRowContext(ctx, s.q(countQuery), wheelID, userID, day.Start, day.End).Scan(&count); err != nil {
		return nil, err
	}
	if w.MaxDrawsPerDay > 0 && count >= w.MaxDrawsPerDay {
		return nil, ErrRateLimited
	}

	seg, err := pick(w)
	if err != nil {
		return nil, err
	}

	draw := &models.WheelDraw{
		ID:         uuid.NewString(),
		WheelID:    wheelID,
		UserID:     userID,
		SegmentID:  seg.ID,
		PrizeKind:  seg.PrizeKind,
		PrizeValue: seg.PrizeValue,
		CreatedAt:  now,
	}
	insert := `
INSERT INTO wheel_draws (id, wheel_id, user_id, segment_id, prize_kind, prize_value, claimed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, s.q(insert),
		draw.ID, draw.WheelID, draw.UserID, draw.SegmentID,
		string(draw.PrizeKind), draw.PrizeValue, false, draw.CreatedAt); err != nil {
		return nil, err
	}

	prizeInc := 0
	if seg.PrizeKind != models.PrizeNothing {
		prizeInc = 1
	}
	counters := `
UPDATE wheels
SET total_draws = total_draws + 1, total_prizes_given = total_prizes_given + $1, updated_at = $2
WHERE id = $3`
	if _, err := tx.ExecContext(ctx, s.q(counters), prizeInc, now, wheelID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return draw, nil
}

// ClaimDraw applies a drawn prize exactly once. The claimed flag flips via
// a guarded update, so among any number of concurrent callers exactly one
// sees true; the rest get false. Point prizes credit the user balance,
// other kinds land in the prize ledger — same transaction either way.
func (s *Store) ClaimDraw(ctx context.Context, drawID, userID string, now time.Time) (bool, error) {
	now = utc(now)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	query := s.forUpdate(`
SELECT id, wheel_id, user_id, segment_id, prize_kind, prize_value, claimed, claimed_at, created_at
FROM wheel_draws WHERE id = $1`)
	d, err := scanDraw(tx.QueryRowContext(ctx, s.q(query), drawID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrDrawNotFound
		}
		return false, err
	}
	if d.UserID != userID {
		return false, ErrDrawNotOwned
	}
	if d.Claimed || d.PrizeKind == models.PrizeNothing {
		return false, nil
	}

	cas := `UPDATE wheel_draws SET claimed = $1, claimed_at = $2 WHERE id = $3 AND claimed = $4`
	res, err := tx.ExecContext(ctx, s.q(cas), true, now, drawID, false)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	switch d.PrizeKind {
	case models.PrizePoints:
		amount, err := strconv.Atoi(d.PrizeValue)
		if err != nil {
			return false, fmt.Errorf("invalid points value %q on draw %s: %w", d.PrizeValue, d.ID, err)
		}
		update := `UPDATE users SET points = points + $1, updated_at = $2 WHERE id = $3`
		res, err := tx.ExecContext(ctx, s.q(update), amount, now, userID)
		if err != nil {
			return false, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return false, ErrUserNotFound
		}
	default:
		grant := `
INSERT INTO prize_grants (id, user_id, draw_id, prize_kind, prize_value, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.ExecContext(ctx, s.q(grant),
			uuid.NewString(), userID, drawID, string(d.PrizeKind), d.PrizeValue, now); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetDraw(ctx context.Context, id string) (*models.WheelDraw, error) {
	query := `
SELECT id, wheel_id, user_id, segment_id, prize_kind, prize_value, claimed, claimed_at, created_at
FROM wheel_draws WHERE id = $1`
	d, err := scanDraw(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDrawNotFound
	}
	return d, err
}

func (s *Store) ListDrawsForUser(ctx context.Context, userID string, limit, offset int) ([]models.WheelDraw, error) {
	query := `
SELECT id, wheel_id, user_id, segment_id, prize_kind, prize_value, claimed, claimed_at, created_at
FROM wheel_draws
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, s.q(query), userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var draws []models.WheelDraw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, err
		}
		draws = append(draws, *d)
	}
	return draws, rows.Err()
}

// WheelDrawsBetween streams minimal draw rows for aggregation. Grouping
// happens in Go so both backends behave identically.
func (s *Store) WheelDrawsBetween(ctx context.Context, from, to time.Time) ([]models.WheelDraw, error) {
	query := `
SELECT id, wheel_id, user_id, segment_id, prize_kind, prize_value, claimed, claimed_at, created_at
FROM wheel_draws
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, s.q(query), utc(from), utc(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var draws []models.WheelDraw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, err
		}
		draws = append(draws, *d)
	}
	return draws, rows.Err()
}

// DrawDailyStats summarizes draw volume per calendar day since the given
// instant, bucketed in Go.
func (s *Store) DrawDailyStats(ctx context.Context, since time.Time) ([]models.DailyDrawSummary, models.DrawOverview, error) {
	overview := models.DrawOverview{}
	draws, err := s.WheelDrawsBetween(ctx, since, utc(since).Add(200*365*24*time.Hour))
	if err != nil {
		return nil, overview, err
	}

	statMap := map[string]*models.DailyDrawSummary{}
	order := []string{}
	for _, d := range draws {
		label := d.CreatedAt.Format("2006-01-02")
		item, ok := statMap[label]
		if !ok {
			item = &models.DailyDrawSummary{DayLabel: label}
			statMap[label] = item
			order = append(order, label)
		}
		item.Draws++
		overview.Total++
		if d.PrizeKind == models.PrizeNothing {
			item.Empty++
			overview.Empty++
		} else {
			item.Prizes++
			overview.Prizes++
		}
	}

	stats := make([]models.DailyDrawSummary, 0, len(order))
	for _, label := range order {
		stats = append(stats, *statMap[label])
	}
	return stats, overview, nil
}

func totalWeight(segments []models.WheelSegment) int64 {
	var total int64
	for _, seg := range segments {
		if seg.Weight > 0 {
			total += int64(seg.Weight)
		}
	}
	return total
}

func nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return utc(*t)
}

func scanWheel(row rowScanner) (*models.Wheel, error) {
	var w models.Wheel
	var segments string
	var start, end sql.NullTime
	if err := row.Scan(
		&w.ID, &w.Title, &w.Description, &segments, &w.Active, &start, &end,
		&w.MaxDrawsPerDay, &w.TotalDraws, &w.TotalPrizesGiven, &w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(segments), &w.Segments); err != nil {
		return nil, fmt.Errorf("wheel %s: bad segments payload: %w", w.ID, err)
	}
	w.StartDate = nullableTime(start)
	w.EndDate = nullableTime(end)
	return &w, nil
}

func scanDraw(row rowScanner) (*models.WheelDraw, error) {
	var d models.WheelDraw
	var kind string
	var claimedAt sql.NullTime
	if err := row.Scan(
		&d.ID, &d.WheelID, &d.UserID, &d.SegmentID, &kind, &d.PrizeValue,
		&d.Claimed, &claimedAt, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.PrizeKind = models.PrizeKind(kind)
	d.ClaimedAt = nullableTime(claimedAt)
	return &d, nil
}
