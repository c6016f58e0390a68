package puzzle

import (
	"context"
	"log/slog"
	"time"

	"github.com/bxdofficial/Nawi/internal/database"
	"github.com/bxdofficial/Nawi/internal/models"
)

type Service struct {
	store  *database.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store *database.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Start opens an attempt on an active puzzle and stamps the start time
// with the service clock. Elapsed time is always measured server side.
func (s *Service) Start(ctx context.Context, puzzleID, userID string) (*models.PuzzleAttempt, error) {
	attempt, err := s.store.StartAttempt(ctx, puzzleID, userID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("puzzle attempt started",
		"puzzleId", puzzleID,
		"userId", userID,
		"attemptId", attempt.ID)
	return attempt, nil
}

// Complete settles the attempt. Scoring happens in the store against the
// recorded start time; a fast solve within the bonus threshold earns the
// bonus points on top of the base reward.
func (s *Service) Complete(ctx context.Context, attemptID, userID string, moves int) (*models.PuzzleAttempt, error) {
	attempt, err := s.store.CompleteAttempt(ctx, attemptID, userID, moves, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("puzzle attempt completed",
		"attemptId", attemptID,
		"userId", userID,
		"points", attempt.PointsEarned,
		"bonus", attempt.BonusEarned)
	return attempt, nil
}
