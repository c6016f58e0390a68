package prize

import (
	"context"
	"errors"
	"io"
	"log/slog"
	mrand "math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bxdofficial/Nawi/internal/cache"
	"github.com/bxdofficial/Nawi/internal/database"
	"github.com/bxdofficial/Nawi/internal/models"
)

var testNow = time.Date(2024, time.June, 12, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSegments() []models.WheelSegment {
	return []models.WheelSegment{
		{ID: 1, Label: "10% off", Weight: 30, PrizeKind: models.PrizeDiscount, PrizeValue: "10"},
		{ID: 2, Label: "Free design", Weight: 5, PrizeKind: models.PrizeFreeDesign, PrizeValue: "logo"},
		{ID: 3, Label: "50 points", Weight: 20, PrizeKind: models.PrizePoints, PrizeValue: "50"},
		{ID: 4, Label: "100 points", Weight: 10, PrizeKind: models.PrizePoints, PrizeValue: "100"},
		{ID: 5, Label: "Try again", Weight: 25, PrizeKind: models.PrizeNothing},
		{ID: 6, Label: "5% off", Weight: 10, PrizeKind: models.PrizeDiscount, PrizeValue: "5"},
	}
}

func newTestService(t *testing.T) (*Service, *database.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := database.New(ctx, "sqlite:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store setup failed: %v", err)
	}
	t.Cleanup(store.Close)

	wheelCache := cache.NewActiveWheelCache(time.Minute, func(ctx context.Context) (*models.Wheel, error) {
		return store.GetActiveWheel(ctx, testNow)
	})
	svc := NewService(store, wheelCache, discardLogger())
	svc.SetRandSource(mrand.NewSource(7))
	svc.SetClock(func() time.Time { return testNow })

	if _, err := store.EnsureUser(ctx, "user-1", "sara", "Sara", testNow); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	return svc, store
}

func seedWheel(t *testing.T, store *database.Store, mutate func(*models.Wheel)) *models.Wheel {
	t.Helper()
	w := &models.Wheel{
		Title:          "Launch wheel",
		Segments:       testSegments(),
		Active:         true,
		MaxDrawsPerDay: 0,
	}
	if mutate != nil {
		mutate(w)
	}
	if err := store.CreateWheel(context.Background(), w, testNow.Add(-time.Hour)); err != nil {
		t.Fatalf("CreateWheel failed: %v", err)
	}
	return w
}

func TestSelectSegmentDeterministic(t *testing.T) {
	segments := testSegments()
	cases := []struct {
		roll int64
		want int
	}{
		{0, 1},
		{29, 1},
		{30, 2},
		{34, 2},
		{35, 3},
		{54, 3},
		{55, 4},
		{64, 4},
		{65, 5},
		{89, 5},
		{90, 6},
		{99, 6},
	}
	for _, tc := range cases {
		seg, err := SelectSegment(segments, tc.roll)
		if err != nil {
			t.Fatalf("roll %d: %v", tc.roll, err)
		}
		if seg.ID != tc.want {
			t.Fatalf("roll %d: got segment %d, want %d", tc.roll, seg.ID, tc.want)
		}
	}
}

func TestSelectSegmentSkipsZeroWeight(t *testing.T) {
	segments := []models.WheelSegment{
		{ID: 1, Weight: 0, PrizeKind: models.PrizePoints, PrizeValue: "500"},
		{ID: 2, Weight: 10, PrizeKind: models.PrizeNothing},
	}
	for roll := int64(0); roll < 10; roll++ {
		seg, err := SelectSegment(segments, roll)
		if err != nil {
			t.Fatalf("roll %d: %v", roll, err)
		}
		if seg.ID == 1 {
			t.Fatalf("zero-weight segment must never win")
		}
	}
}

func TestSelectSegmentNoWeight(t *testing.T) {
	if _, err := SelectSegment([]models.WheelSegment{{ID: 1, Weight: 0}}, 0); !errors.Is(err, database.ErrNoSegments) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := SelectSegment(nil, 0); !errors.Is(err, database.ErrNoSegments) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSelectSegmentFrequencies(t *testing.T) {
	segments := testSegments()
	total := TotalWeight(segments)
	rng := mrand.New(mrand.NewSource(42))
	counts := map[int]int{}
	const n = 60000
	for i := 0; i < n; i++ {
		seg, err := SelectSegment(segments, rng.Int63n(total))
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		counts[seg.ID]++
	}
	for _, seg := range segments {
		expected := float64(n) * float64(seg.Weight) / float64(total)
		got := float64(counts[seg.ID])
		if got < expected*0.9 || got > expected*1.1 {
			t.Fatalf("segment %d frequency off: got %.0f, expected around %.0f", seg.ID, got, expected)
		}
	}
}

func TestDrawRecordsAndCounters(t *testing.T) {
	svc, store := newTestService(t)
	w := seedWheel(t, store, nil)
	ctx := context.Background()

	prizes := 0
	const draws = 20
	for i := 0; i < draws; i++ {
		d, err := svc.Draw(ctx, "user-1")
		if err != nil {
			t.Fatalf("draw %d failed: %v", i, err)
		}
		if d.PrizeKind != models.PrizeNothing {
			prizes++
		}
	}

	got, err := store.GetWheel(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWheel failed: %v", err)
	}
	if got.TotalDraws != draws {
		t.Fatalf("total_draws: got %d, want %d", got.TotalDraws, draws)
	}
	if got.TotalPrizesGiven != prizes {
		t.Fatalf("total_prizes_given: got %d, want %d", got.TotalPrizesGiven, prizes)
	}

	history, err := store.ListDrawsForUser(ctx, "user-1", 100, 0)
	if err != nil {
		t.Fatalf("ListDrawsForUser failed: %v", err)
	}
	if len(history) != draws {
		t.Fatalf("draw history: got %d rows, want %d", len(history), draws)
	}
}

func TestDrawInactiveWheel(t *testing.T) {
	svc, store := newTestService(t)
	seedWheel(t, store, func(w *models.Wheel) { w.Active = false })

	if _, err := svc.Draw(context.Background(), "user-1"); !errors.Is(err, database.ErrWheelNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDrawOutsideValidityWindow(t *testing.T) {
	svc, store := newTestService(t)
	end := testNow.Add(-time.Minute)
	seedWheel(t, store, func(w *models.Wheel) { w.EndDate = &end })

	if _, err := svc.Draw(context.Background(), "user-1"); !errors.Is(err, database.ErrWheelNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDrawNoSegments(t *testing.T) {
	svc, store := newTestService(t)
	seedWheel(t, store, func(w *models.Wheel) { w.Segments = nil })

	if _, err := svc.Draw(context.Background(), "user-1"); !errors.Is(err, database.ErrNoSegments) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDrawRateLimit(t *testing.T) {
	svc, store := newTestService(t)
	seedWheel(t, store, func(w *models.Wheel) { w.MaxDrawsPerDay = 2 })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Draw(ctx, "user-1"); err != nil {
			t.Fatalf("draw %d failed: %v", i, err)
		}
	}
	if _, err := svc.Draw(ctx, "user-1"); !errors.Is(err, database.ErrRateLimited) {
		t.Fatalf("third draw should hit the daily limit, got %v", err)
	}

	// The limit is per user, another user still draws.
	if _, err := store.EnsureUser(ctx, "user-2", "omar", "Omar", testNow); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if _, err := svc.Draw(ctx, "user-2"); err != nil {
		t.Fatalf("other user draw failed: %v", err)
	}

	// A new day resets the window.
	svc.SetClock(func() time.Time { return testNow.AddDate(0, 0, 1) })
	if _, err := svc.Draw(ctx, "user-1"); err != nil {
		t.Fatalf("next-day draw failed: %v", err)
	}
}

func TestClaimPointsPrize(t *testing.T) {
	svc, store := newTestService(t)
	seedWheel(t, store, func(w *models.Wheel) {
		w.Segments = []models.WheelSegment{{ID: 1, Weight: 1, PrizeKind: models.PrizePoints, PrizeValue: "50"}}
	})
	ctx := context.Background()

	draw, err := svc.Draw(ctx, "user-1")
	if err != nil {
		t.Fatalf("draw failed: %v", err)
	}
	claimed, err := svc.Claim(ctx, draw.ID, "user-1")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if !claimed {
		t.Fatalf("first claim should succeed")
	}
	user, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Points != 50 {
		t.Fatalf("points: got %d, want 50", user.Points)
	}

	// Second claim is a no-op, points unchanged.
	claimed, err = svc.Claim(ctx, draw.ID, "user-1")
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if claimed {
		t.Fatalf("second claim should report false")
	}
	user, _ = store.GetUser(ctx, "user-1")
	if user.Points != 50 {
		t.Fatalf("points changed on repeat claim: %d", user.Points)
	}
}

func TestClaimEmptyPrize(t *testing.T) {
	svc, store := newTestService(t)
	seedWheel(t, store, func(w *models.Wheel) {
		w.Segments = []models.WheelSegment{{ID: 1, Weight: 1, PrizeKind: models.PrizeNothing}}
	})
	ctx := context.Background()

	draw, err := svc.Draw(ctx, "user-1")
	if err != nil {
		t.Fatalf("draw failed: %v", err)
	}
	claimed, err := svc.Claim(ctx, draw.ID, "user-1")
	if err != nil {
		t.Fatalf("claim errored: %v", err)
	}
	if claimed {
		t.Fatalf("empty prize is not claimable")
	}
}

func TestClaimOwnership(t *testing.T) {
	svc, store := newTestService(t)
	seedWheel(t, store, nil)
	ctx := context.Background()

	if _, err := store.EnsureUser(ctx, "user-2", "omar", "Omar", testNow); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	draw, err := svc.Draw(ctx, "user-1")
	if err != nil {
		t.Fatalf("draw failed: %v", err)
	}
	if _, err := svc.Claim(ctx, draw.ID, "user-2"); !errors.Is(err, database.ErrDrawNotOwned) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Claim(ctx, "missing", "user-1"); !errors.Is(err, database.ErrDrawNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConcurrentClaimsExactlyOne(t *testing.T) {
	svc, store := newTestService(t)
	seedWheel(t, store, func(w *models.Wheel) {
		w.Segments = []models.WheelSegment{{ID: 1, Weight: 1, PrizeKind: models.PrizePoints, PrizeValue: "25"}}
	})
	ctx := context.Background()

	draw, err := svc.Draw(ctx, "user-1")
	if err != nil {
		t.Fatalf("draw failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Claim(ctx, draw.ID, "user-1")
			if err != nil {
				t.Errorf("concurrent claim errored: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one claim should win, got %d", wins)
	}
	user, _ := store.GetUser(ctx, "user-1")
	if user.Points != 25 {
		t.Fatalf("points credited more than once: %d", user.Points)
	}
}
