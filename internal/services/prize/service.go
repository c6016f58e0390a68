package prize

import (
	"context"
	"log/slog"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/bxdofficial/Nawi/internal/cache"
	"github.com/bxdofficial/Nawi/internal/database"
	"github.com/bxdofficial/Nawi/internal/models"
)

type Service struct {
	store  *database.Store
	cache  *cache.ActiveWheelCache
	logger *slog.Logger
	rng    *mrand.Rand
	mu     sync.Mutex
	now    func() time.Time
}

func NewService(store *database.Store, cache *cache.ActiveWheelCache, logger *slog.Logger) *Service {
	src := mrand.NewSource(time.Now().UnixNano())
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		rng:    mrand.New(src),
		now:    time.Now,
	}
}

// SetRandSource replaces the draw RNG. Tests use a seeded source to make
// outcomes reproducible.
func (s *Service) SetRandSource(src mrand.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = mrand.New(src)
}

// SetClock replaces the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// TotalWeight sums the positive segment weights. Segments with zero or
// negative weight never win and do not count.
func TotalWeight(segments []models.WheelSegment) int64 {
	var total int64
	for _, seg := range segments {
		if seg.Weight > 0 {
			total += int64(seg.Weight)
		}
	}
	return total
}

// SelectSegment maps a roll in [0, TotalWeight) onto a segment by
// cumulative weight. The mapping is pure: same segments and same roll,
// same segment.
func SelectSegment(segments []models.WheelSegment, roll int64) (models.WheelSegment, error) {
	if TotalWeight(segments) <= 0 {
		return models.WheelSegment{}, database.ErrNoSegments
	}
	var cumulative int64
	for _, seg := range segments {
		if seg.Weight <= 0 {
			continue
		}
		cumulative += int64(seg.Weight)
		if roll < cumulative {
			return seg, nil
		}
	}
	// roll out of range; callers always roll below the total
	return segments[len(segments)-1], nil
}

// Draw spins the active wheel for the user. Validation, rate limiting,
// the draw record and the wheel counters all commit atomically in the
// store; the segment pick runs inside that transaction against the
// locked wheel row.
func (s *Service) Draw(ctx context.Context, userID string) (*models.WheelDraw, error) {
	wheel, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	if wheel == nil {
		return nil, database.ErrWheelNotFound
	}

	draw, err := s.store.CreateDraw(ctx, wheel.ID, userID, s.now(), func(w *models.Wheel) (models.WheelSegment, error) {
		return s.pickSegment(w.Segments)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("wheel draw",
		"wheelId", draw.WheelID,
		"userId", userID,
		"segmentId", draw.SegmentID,
		"prizeKind", string(draw.PrizeKind))
	return draw, nil
}

// Claim redeems a draw's prize for its owner. It reports whether this
// call was the one that claimed it; repeats and empty prizes return
// false without error.
func (s *Service) Claim(ctx context.Context, drawID, userID string) (bool, error) {
	claimed, err := s.store.ClaimDraw(ctx, drawID, userID, s.now())
	if err != nil {
		return false, err
	}
	if claimed {
		s.logger.Info("prize claimed", "drawId", drawID, "userId", userID)
	}
	return claimed, nil
}

// ActiveWheel exposes the cached wheel for read endpoints.
func (s *Service) ActiveWheel(ctx context.Context) (*models.Wheel, error) {
	return s.cache.Get(ctx)
}

func (s *Service) pickSegment(segments []models.WheelSegment) (models.WheelSegment, error) {
	total := TotalWeight(segments)
	if total <= 0 {
		return models.WheelSegment{}, database.ErrNoSegments
	}
	s.mu.Lock()
	roll := s.rng.Int63n(total)
	s.mu.Unlock()
	return SelectSegment(segments, roll)
}
