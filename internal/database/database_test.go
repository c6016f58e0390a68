package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bxdofficial/Nawi/internal/models"
)

var testNow = time.Date(2024, time.June, 12, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store setup failed: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPlaceholderRewrite(t *testing.T) {
	s := &Store{dbType: dbSQLite}
	got := s.q(`SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3`)
	want := `SELECT * FROM t WHERE a = ? AND b = ? LIMIT ?`
	if got != want {
		t.Fatalf("rewrite: got %q, want %q", got, want)
	}

	pg := &Store{dbType: dbPostgres}
	query := `SELECT * FROM t WHERE a = $1`
	if pg.q(query) != query {
		t.Fatalf("postgres queries must pass through untouched")
	}
	if pg.forUpdate(query) != query+" FOR UPDATE" {
		t.Fatalf("postgres reads should lock")
	}
	if s.forUpdate(query) != query {
		t.Fatalf("sqlite must not get FOR UPDATE")
	}
}

func TestEnsureUserUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u, err := store.EnsureUser(ctx, "user-1", "sara", "Sara", testNow)
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if u.Points != 0 {
		t.Fatalf("new user starts at zero points, got %d", u.Points)
	}

	// Re-ensuring refreshes the profile but keeps the balance.
	credit := `UPDATE users SET points = points + $1 WHERE id = $2`
	if _, err := store.db.ExecContext(ctx, store.q(credit), 40, "user-1"); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	u, err = store.EnsureUser(ctx, "user-1", "sara_new", "Sara N", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if u.Username != "sara_new" || u.DisplayName != "Sara N" {
		t.Fatalf("profile not refreshed: %+v", u)
	}
	if u.Points != 40 {
		t.Fatalf("points lost on upsert: %d", u.Points)
	}
}

func TestWheelRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := testNow.Add(-time.Hour)
	end := testNow.Add(time.Hour)
	w := &models.Wheel{
		Title:       "Launch wheel",
		Description: "opening week",
		Segments: []models.WheelSegment{
			{ID: 1, Label: "10% off", Color: "#ff8800", Weight: 30, PrizeKind: models.PrizeDiscount, PrizeValue: "10"},
			{ID: 2, Label: "Nothing", Color: "#cccccc", Weight: 70, PrizeKind: models.PrizeNothing},
		},
		Active:         true,
		StartDate:      &start,
		EndDate:        &end,
		MaxDrawsPerDay: 3,
	}
	if err := store.CreateWheel(ctx, w, testNow); err != nil {
		t.Fatalf("CreateWheel failed: %v", err)
	}

	got, err := store.GetWheel(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWheel failed: %v", err)
	}
	if len(got.Segments) != 2 || got.Segments[0].PrizeKind != models.PrizeDiscount {
		t.Fatalf("segments did not survive the round trip: %+v", got.Segments)
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Fatalf("start date: got %v, want %v", got.StartDate, start)
	}
	if got.MaxDrawsPerDay != 3 {
		t.Fatalf("max draws: got %d", got.MaxDrawsPerDay)
	}

	active, err := store.GetActiveWheel(ctx, testNow)
	if err != nil {
		t.Fatalf("GetActiveWheel failed: %v", err)
	}
	if active.ID != w.ID {
		t.Fatalf("active wheel mismatch: %s", active.ID)
	}
	if _, err := store.GetActiveWheel(ctx, testNow.Add(2*time.Hour)); !errors.Is(err, ErrWheelNotFound) {
		t.Fatalf("wheel past end date should not be active: %v", err)
	}

	got.Title = "Renamed"
	got.Active = false
	if err := store.UpdateWheel(ctx, got, testNow.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateWheel failed: %v", err)
	}
	reread, _ := store.GetWheel(ctx, w.ID)
	if reread.Title != "Renamed" || reread.Active {
		t.Fatalf("update not applied: %+v", reread)
	}

	missing := &models.Wheel{ID: "missing", Title: "x"}
	if err := store.UpdateWheel(ctx, missing, testNow); !errors.Is(err, ErrWheelNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDrawSnapshotsPrize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.EnsureUser(ctx, "user-1", "sara", "Sara", testNow); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	w := &models.Wheel{
		Title:  "Launch wheel",
		Active: true,
		Segments: []models.WheelSegment{
			{ID: 1, Weight: 1, PrizeKind: models.PrizeDiscount, PrizeValue: "10"},
		},
	}
	if err := store.CreateWheel(ctx, w, testNow); err != nil {
		t.Fatalf("CreateWheel failed: %v", err)
	}
	draw, err := store.CreateDraw(ctx, w.ID, "user-1", testNow, func(w *models.Wheel) (models.WheelSegment, error) {
		return w.Segments[0], nil
	})
	if err != nil {
		t.Fatalf("CreateDraw failed: %v", err)
	}

	// Changing the wheel afterwards must not rewrite past draws.
	w.Segments = []models.WheelSegment{{ID: 1, Weight: 1, PrizeKind: models.PrizeNothing}}
	if err := store.UpdateWheel(ctx, w, testNow.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateWheel failed: %v", err)
	}
	got, err := store.GetDraw(ctx, draw.ID)
	if err != nil {
		t.Fatalf("GetDraw failed: %v", err)
	}
	if got.PrizeKind != models.PrizeDiscount || got.PrizeValue != "10" {
		t.Fatalf("draw prize should be a snapshot: %+v", got)
	}
}

func TestClaimWritesPrizeGrant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.EnsureUser(ctx, "user-1", "sara", "Sara", testNow); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	w := &models.Wheel{
		Title:  "Launch wheel",
		Active: true,
		Segments: []models.WheelSegment{
			{ID: 1, Weight: 1, PrizeKind: models.PrizeFreeDesign, PrizeValue: "logo"},
		},
	}
	if err := store.CreateWheel(ctx, w, testNow); err != nil {
		t.Fatalf("CreateWheel failed: %v", err)
	}
	draw, err := store.CreateDraw(ctx, w.ID, "user-1", testNow, func(w *models.Wheel) (models.WheelSegment, error) {
		return w.Segments[0], nil
	})
	if err != nil {
		t.Fatalf("CreateDraw failed: %v", err)
	}
	claimed, err := store.ClaimDraw(ctx, draw.ID, "user-1", testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("ClaimDraw failed: %v", err)
	}
	if !claimed {
		t.Fatalf("claim should succeed")
	}

	var count int
	grants := `SELECT COUNT(*) FROM prize_grants WHERE draw_id = $1 AND prize_kind = $2`
	if err := store.db.QueryRowContext(ctx, store.q(grants), draw.ID, string(models.PrizeFreeDesign)).Scan(&count); err != nil {
		t.Fatalf("grant count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one prize grant, got %d", count)
	}

	// Non-point prize leaves the balance alone.
	u, _ := store.GetUser(ctx, "user-1")
	if u.Points != 0 {
		t.Fatalf("free design claim should not credit points: %d", u.Points)
	}
}

func TestDrawDailyStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.EnsureUser(ctx, "user-1", "sara", "Sara", testNow); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	w := &models.Wheel{
		Title:  "Launch wheel",
		Active: true,
		Segments: []models.WheelSegment{
			{ID: 1, Weight: 1, PrizeKind: models.PrizeNothing},
			{ID: 2, Weight: 1, PrizeKind: models.PrizePoints, PrizeValue: "5"},
		},
	}
	if err := store.CreateWheel(ctx, w, testNow.Add(-48*time.Hour)); err != nil {
		t.Fatalf("CreateWheel failed: %v", err)
	}
	pickAt := func(at time.Time, segIdx int) {
		_, err := store.CreateDraw(ctx, w.ID, "user-1", at, func(w *models.Wheel) (models.WheelSegment, error) {
			return w.Segments[segIdx], nil
		})
		if err != nil {
			t.Fatalf("CreateDraw failed: %v", err)
		}
	}
	pickAt(testNow.Add(-24*time.Hour), 0)
	pickAt(testNow, 0)
	pickAt(testNow.Add(time.Minute), 1)

	stats, overview, err := store.DrawDailyStats(ctx, testNow.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("DrawDailyStats failed: %v", err)
	}
	if overview.Total != 3 || overview.Prizes != 1 || overview.Empty != 2 {
		t.Fatalf("overview off: %+v", overview)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 day buckets, got %d", len(stats))
	}
	today := stats[1]
	if today.Draws != 2 || today.Prizes != 1 || today.Empty != 1 {
		t.Fatalf("today bucket off: %+v", today)
	}
}
