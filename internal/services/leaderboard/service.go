package leaderboard

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bxdofficial/Nawi/internal/database"
	"github.com/bxdofficial/Nawi/internal/models"
	"github.com/bxdofficial/Nawi/internal/period"
)

// PointsPerDraw is the leaderboard value of one wheel draw.
const PointsPerDraw = 10

type Service struct {
	store  *database.Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	boards map[boardKey]*sync.Mutex
}

type boardKey struct {
	gameType models.GameType
	period   models.Period
	start    time.Time
}

func NewService(store *database.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		boards: make(map[boardKey]*sync.Mutex),
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Recompute rebuilds one board from raw activity and replaces the stored
// snapshot. Running it twice over unchanged data writes the same rows;
// concurrent recomputes of the same board serialize on a per-board lock.
func (s *Service) Recompute(ctx context.Context, gameType models.GameType, p models.Period, now time.Time) error {
	window := period.Resolve(p, now.UTC())
	lock := s.boardLock(boardKey{gameType: gameType, period: p, start: window.Start})
	lock.Lock()
	defer lock.Unlock()

	activity, err := s.aggregate(ctx, gameType, window)
	if err != nil {
		return err
	}
	if len(activity) == 0 {
		return nil
	}

	ranked := Rank(activity)
	entries := make([]models.LeaderboardEntry, 0, len(ranked))
	for _, a := range ranked {
		entries = append(entries, models.LeaderboardEntry{
			UserID:      a.UserID,
			GameType:    gameType,
			Period:      p,
			Score:       a.Score,
			Rank:        a.Rank,
			GamesPlayed: a.GamesPlayed,
			BestTime:    a.BestTime,
			PeriodStart: window.Start,
			PeriodEnd:   window.End,
			LastUpdated: now.UTC(),
		})
	}
	if err := s.store.UpsertLeaderboardEntries(ctx, entries); err != nil {
		return err
	}
	s.logger.Info("leaderboard recomputed",
		"gameType", string(gameType),
		"period", string(p),
		"periodStart", window.Start,
		"entries", len(entries))
	return nil
}

// RecomputeAll rebuilds every board for the given instant. Failures are
// logged and do not stop the remaining boards.
func (s *Service) RecomputeAll(ctx context.Context, now time.Time) {
	gameTypes := []models.GameType{models.GameWheel, models.GamePuzzle, models.GameOverall}
	periods := []models.Period{
		models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly,
		models.PeriodYearly, models.PeriodAlltime,
	}
	for _, gt := range gameTypes {
		for _, p := range periods {
			if err := s.Recompute(ctx, gt, p, now); err != nil {
				s.logger.Error("leaderboard recompute failed",
					"gameType", string(gt),
					"period", string(p),
					"error", err)
			}
		}
	}
}

// Standings reads the stored snapshot for the window containing now.
func (s *Service) Standings(ctx context.Context, gameType models.GameType, p models.Period, limit, offset int) ([]models.LeaderboardEntry, int64, error) {
	window := period.Resolve(p, s.now().UTC())
	return s.store.Standings(ctx, gameType, p, window.Start, limit, offset)
}

// UserStanding reads one user's row for the current window, nil when the
// user has not placed.
func (s *Service) UserStanding(ctx context.Context, userID string, gameType models.GameType, p models.Period) (*models.LeaderboardEntry, error) {
	window := period.Resolve(p, s.now().UTC())
	return s.store.UserStanding(ctx, userID, gameType, p, window.Start)
}

// RankedUser is one user's aggregated activity with its assigned rank.
type RankedUser struct {
	models.UserActivity
	Rank int
}

// Rank orders activity deterministically and assigns sequential ranks:
// higher score first, earlier first activity breaks score ties, user ID
// breaks exact ties.
func Rank(activity []models.UserActivity) []RankedUser {
	sorted := make([]models.UserActivity, len(activity))
	copy(sorted, activity)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if !sorted[i].FirstActivity.Equal(sorted[j].FirstActivity) {
			return sorted[i].FirstActivity.Before(sorted[j].FirstActivity)
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	ranked := make([]RankedUser, len(sorted))
	for i, a := range sorted {
		ranked[i] = RankedUser{UserActivity: a, Rank: i + 1}
	}
	return ranked
}

func (s *Service) aggregate(ctx context.Context, gameType models.GameType, w period.Window) ([]models.UserActivity, error) {
	switch gameType {
	case models.GameWheel:
		return s.wheelActivity(ctx, w)
	case models.GamePuzzle:
		return s.puzzleActivity(ctx, w)
	default:
		wheel, err := s.wheelActivity(ctx, w)
		if err != nil {
			return nil, err
		}
		puzzle, err := s.puzzleActivity(ctx, w)
		if err != nil {
			return nil, err
		}
		return mergeActivity(wheel, puzzle), nil
	}
}

func (s *Service) wheelActivity(ctx context.Context, w period.Window) ([]models.UserActivity, error) {
	draws, err := s.store.WheelDrawsBetween(ctx, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	byUser := map[string]*models.UserActivity{}
	order := []string{}
	for _, d := range draws {
		a, ok := byUser[d.UserID]
		if !ok {
			a = &models.UserActivity{UserID: d.UserID, FirstActivity: d.CreatedAt}
			byUser[d.UserID] = a
			order = append(order, d.UserID)
		}
		a.Score += PointsPerDraw
		a.GamesPlayed++
		if d.CreatedAt.Before(a.FirstActivity) {
			a.FirstActivity = d.CreatedAt
		}
	}
	return collectActivity(byUser, order), nil
}

func (s *Service) puzzleActivity(ctx context.Context, w period.Window) ([]models.UserActivity, error) {
	attempts, err := s.store.CompletedAttemptsBetween(ctx, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	byUser := map[string]*models.UserActivity{}
	order := []string{}
	for _, at := range attempts {
		a, ok := byUser[at.UserID]
		if !ok {
			a = &models.UserActivity{UserID: at.UserID, FirstActivity: at.StartedAt}
			byUser[at.UserID] = a
			order = append(order, at.UserID)
		}
		a.Score += at.PointsEarned
		a.GamesPlayed++
		if at.StartedAt.Before(a.FirstActivity) {
			a.FirstActivity = at.StartedAt
		}
		if at.CompletionTime != nil {
			if a.BestTime == nil || *at.CompletionTime < *a.BestTime {
				t := *at.CompletionTime
				a.BestTime = &t
			}
		}
	}
	return collectActivity(byUser, order), nil
}

// mergeActivity folds two per-game aggregates into one overall board.
// Scores and play counts add; best time and first activity take the
// better of the two.
func mergeActivity(lists ...[]models.UserActivity) []models.UserActivity {
	byUser := map[string]*models.UserActivity{}
	order := []string{}
	for _, list := range lists {
		for _, item := range list {
			a, ok := byUser[item.UserID]
			if !ok {
				copied := item
				byUser[item.UserID] = &copied
				order = append(order, item.UserID)
				continue
			}
			a.Score += item.Score
			a.GamesPlayed += item.GamesPlayed
			if item.FirstActivity.Before(a.FirstActivity) {
				a.FirstActivity = item.FirstActivity
			}
			if item.BestTime != nil && (a.BestTime == nil || *item.BestTime < *a.BestTime) {
				t := *item.BestTime
				a.BestTime = &t
			}
		}
	}
	return collectActivity(byUser, order)
}

func collectActivity(byUser map[string]*models.UserActivity, order []string) []models.UserActivity {
	out := make([]models.UserActivity, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out
}

func (s *Service) boardLock(key boardKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.boards[key]
	if !ok {
		lock = &sync.Mutex{}
		s.boards[key] = lock
	}
	return lock
}
