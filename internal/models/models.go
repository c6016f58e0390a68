package models

import (
	"time"
)

type PrizeKind string

const (
	PrizeDiscount   PrizeKind = "discount"
	PrizeFreeDesign PrizeKind = "free_design"
	PrizePoints     PrizeKind = "points"
	PrizeNothing    PrizeKind = "nothing"
)

func (k PrizeKind) Valid() bool {
	switch k {
	case PrizeDiscount, PrizeFreeDesign, PrizePoints, PrizeNothing:
		return true
	}
	return false
}

type GameType string

const (
	GameWheel   GameType = "wheel"
	GamePuzzle  GameType = "puzzle"
	GameOverall GameType = "overall"
)

func (g GameType) Valid() bool {
	switch g {
	case GameWheel, GamePuzzle, GameOverall:
		return true
	}
	return false
}

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodAlltime Period = "alltime"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodAlltime:
		return true
	}
	return false
}

type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WheelSegment is one slice of a prize wheel. Weight is relative
// probability mass, not a percentage.
type WheelSegment struct {
	ID         int       `json:"id"`
	Label      string    `json:"label"`
	Color      string    `json:"color"`
	Weight     int       `json:"weight"`
	PrizeKind  PrizeKind `json:"prizeKind"`
	PrizeValue string    `json:"prizeValue"`
}

type Wheel struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Segments         []WheelSegment `json:"segments"`
	Active           bool           `json:"active"`
	StartDate        *time.Time     `json:"startDate"`
	EndDate          *time.Time     `json:"endDate"`
	MaxDrawsPerDay   int            `json:"maxDrawsPerDay"`
	TotalDraws       int            `json:"totalDraws"`
	TotalPrizesGiven int            `json:"totalPrizesGiven"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// WheelDraw snapshots the selected segment's prize at draw time; later
// edits to the wheel configuration do not change what was won.
type WheelDraw struct {
	ID         string     `json:"id"`
	WheelID    string     `json:"wheelId"`
	UserID     string     `json:"userId"`
	SegmentID  int        `json:"segmentId"`
	PrizeKind  PrizeKind  `json:"prizeKind"`
	PrizeValue string     `json:"prizeValue"`
	Claimed    bool       `json:"claimed"`
	ClaimedAt  *time.Time `json:"claimedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type PuzzleDifficulty string

const (
	PuzzleEasy   PuzzleDifficulty = "easy"
	PuzzleMedium PuzzleDifficulty = "medium"
	PuzzleHard   PuzzleDifficulty = "hard"
	PuzzleExpert PuzzleDifficulty = "expert"
)

// GridSize maps difficulty to board dimension (easy 3x3 .. expert 6x6).
func (d PuzzleDifficulty) GridSize() int {
	switch d {
	case PuzzleEasy:
		return 3
	case PuzzleHard:
		return 5
	case PuzzleExpert:
		return 6
	default:
		return 4
	}
}

func (d PuzzleDifficulty) Valid() bool {
	switch d {
	case PuzzleEasy, PuzzleMedium, PuzzleHard, PuzzleExpert:
		return true
	}
	return false
}

type Puzzle struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	ImageURL           string           `json:"imageUrl"`
	ThumbnailURL       string           `json:"thumbnailUrl"`
	Difficulty         PuzzleDifficulty `json:"difficulty"`
	TimeLimit          int              `json:"timeLimit"`
	PointsReward       int              `json:"pointsReward"`
	BonusTimeThreshold int              `json:"bonusTimeThreshold"`
	BonusPoints        int              `json:"bonusPoints"`
	Active             bool             `json:"active"`
	Daily              bool             `json:"daily"`
	TotalPlays         int              `json:"totalPlays"`
	TotalCompletions   int              `json:"totalCompletions"`
	AverageTime        float64          `json:"averageTime"`
	BestTime           *float64         `json:"bestTime"`
	CreatedAt          time.Time        `json:"createdAt"`
}

type PuzzleAttempt struct {
	ID             string     `json:"id"`
	PuzzleID       string     `json:"puzzleId"`
	UserID         string     `json:"userId"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	CompletionTime *float64   `json:"completionTime"`
	MovesCount     int        `json:"movesCount"`
	Completed      bool       `json:"completed"`
	PointsEarned   int        `json:"pointsEarned"`
	BonusEarned    bool       `json:"bonusEarned"`
}

// LeaderboardEntry is a derived row owned by the aggregator. One row per
// (user, gameType, period, periodStart).
type LeaderboardEntry struct {
	UserID      string    `json:"userId"`
	GameType    GameType  `json:"gameType"`
	Period      Period    `json:"period"`
	Score       int       `json:"score"`
	Rank        int       `json:"rank"`
	GamesPlayed int       `json:"gamesPlayed"`
	BestTime    *float64  `json:"bestTime"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// UserActivity is one user's aggregated in-window activity for a single
// scoring source. FirstActivity is the deterministic tie-breaker.
type UserActivity struct {
	UserID        string
	Score         int
	GamesPlayed   int
	BestTime      *float64
	FirstActivity time.Time
}

// PrizeGrant records a non-point prize applied at claim time (discounts,
// free design credits). Redemption is owned by the billing side.
type PrizeGrant struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	DrawID     string    `json:"drawId"`
	PrizeKind  PrizeKind `json:"prizeKind"`
	PrizeValue string    `json:"prizeValue"`
	CreatedAt  time.Time `json:"createdAt"`
}

type DailyDrawSummary struct {
	DayLabel string `json:"day"`
	Draws    int    `json:"draws"`
	Prizes   int    `json:"prizes"`
	Empty    int    `json:"empty"`
}

type DrawOverview struct {
	Total  int `json:"total"`
	Prizes int `json:"prizes"`
	Empty  int `json:"empty"`
}
