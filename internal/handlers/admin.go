package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"

	"github.com/bxdofficial/Nawi/internal/database"
	"github.com/bxdofficial/Nawi/internal/models"
)

type adminLoginRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.Password != h.cfg.AdminPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if ok := totp.Validate(req.Code, h.cfg.AdminTOTPSecret); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp"})
		return
	}
	token, err := h.jwt.IssueToken("admin", "admin", "Admin", "admin", 4*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) AdminListWheels(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 0)
	wheels, total, err := h.store.ListWheels(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("admin wheel list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wheel list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wheels": wheels, "total": total})
}

type wheelRequest struct {
	Title          string                `json:"title" binding:"required"`
	Description    string                `json:"description"`
	Segments       []models.WheelSegment `json:"segments"`
	Active         bool                  `json:"active"`
	StartDate      *time.Time            `json:"startDate"`
	EndDate        *time.Time            `json:"endDate"`
	MaxDrawsPerDay int                   `json:"maxDrawsPerDay"`
}

func (r *wheelRequest) validate() error {
	if r.MaxDrawsPerDay < 0 {
		return errors.New("maxDrawsPerDay must be non-negative")
	}
	if r.StartDate != nil && r.EndDate != nil && !r.StartDate.Before(*r.EndDate) {
		return errors.New("startDate must precede endDate")
	}
	for _, seg := range r.Segments {
		if seg.Weight < 0 {
			return errors.New("segment weights must be non-negative")
		}
		if !seg.PrizeKind.Valid() {
			return errors.New("unknown prize kind: " + string(seg.PrizeKind))
		}
	}
	return nil
}

func (r *wheelRequest) toModel() *models.Wheel {
	return &models.Wheel{
		Title:          r.Title,
		Description:    r.Description,
		Segments:       r.Segments,
		Active:         r.Active,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		MaxDrawsPerDay: r.MaxDrawsPerDay,
	}
}

func (h *Handler) AdminCreateWheel(c *gin.Context) {
	var req wheelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wheel := req.toModel()
	if err := h.store.CreateWheel(c.Request.Context(), wheel, time.Now()); err != nil {
		h.logger.Error("wheel create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wheel create failed"})
		return
	}
	h.cache.Invalidate()
	c.JSON(http.StatusOK, gin.H{"wheel": wheel})
}

func (h *Handler) AdminUpdateWheel(c *gin.Context) {
	var req wheelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wheel := req.toModel()
	wheel.ID = c.Param("id")
	if err := h.store.UpdateWheel(c.Request.Context(), wheel, time.Now()); err != nil {
		if errors.Is(err, database.ErrWheelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wheel not found"})
			return
		}
		h.logger.Error("wheel update failed", "error", err, "wheelId", wheel.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wheel update failed"})
		return
	}
	h.cache.Invalidate()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) AdminListPuzzles(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 0)
	puzzles, total, err := h.store.ListPuzzles(c.Request.Context(), false, limit, offset)
	if err != nil {
		h.logger.Error("admin puzzle list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "puzzle list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzles": puzzles, "total": total})
}

type puzzleRequest struct {
	Title              string `json:"title" binding:"required"`
	Description        string `json:"description"`
	ImageURL           string `json:"imageUrl"`
	ThumbnailURL       string `json:"thumbnailUrl"`
	Difficulty         string `json:"difficulty"`
	TimeLimit          int    `json:"timeLimit"`
	PointsReward       int    `json:"pointsReward"`
	BonusTimeThreshold int    `json:"bonusTimeThreshold"`
	BonusPoints        int    `json:"bonusPoints"`
	Active             bool   `json:"active"`
	Daily              bool   `json:"daily"`
}

func (r *puzzleRequest) validate() error {
	if !models.PuzzleDifficulty(r.Difficulty).Valid() {
		return errors.New("unknown difficulty: " + r.Difficulty)
	}
	if r.PointsReward < 0 || r.BonusPoints < 0 || r.BonusTimeThreshold < 0 || r.TimeLimit < 0 {
		return errors.New("reward and time fields must be non-negative")
	}
	return nil
}

func (r *puzzleRequest) toModel() *models.Puzzle {
	return &models.Puzzle{
		Title:              r.Title,
		Description:        r.Description,
		ImageURL:           r.ImageURL,
		ThumbnailURL:       r.ThumbnailURL,
		Difficulty:         models.PuzzleDifficulty(r.Difficulty),
		TimeLimit:          r.TimeLimit,
		PointsReward:       r.PointsReward,
		BonusTimeThreshold: r.BonusTimeThreshold,
		BonusPoints:        r.BonusPoints,
		Active:             r.Active,
		Daily:              r.Daily,
	}
}

func (h *Handler) AdminCreatePuzzle(c *gin.Context) {
	var req puzzleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := req.toModel()
	if err := h.store.CreatePuzzle(c.Request.Context(), p, time.Now()); err != nil {
		h.logger.Error("puzzle create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "puzzle create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzle": p})
}

func (h *Handler) AdminUpdatePuzzle(c *gin.Context) {
	var req puzzleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := req.toModel()
	p.ID = c.Param("id")
	if err := h.store.UpdatePuzzle(c.Request.Context(), p); err != nil {
		if errors.Is(err, database.ErrPuzzleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "puzzle not found"})
			return
		}
		h.logger.Error("puzzle update failed", "error", err, "puzzleId", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "puzzle update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type recomputeRequest struct {
	GameType string `json:"gameType"`
	Period   string `json:"period"`
}

// AdminRecompute rebuilds boards on demand. Empty fields mean all game
// types or all periods.
func (h *Handler) AdminRecompute(c *gin.Context) {
	var req recomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	now := time.Now()
	if req.GameType == "" && req.Period == "" {
		h.boards.RecomputeAll(c.Request.Context(), now)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	gameType := models.GameType(req.GameType)
	p := models.Period(req.Period)
	if !gameType.Valid() || !p.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameType or period"})
		return
	}
	if err := h.boards.Recompute(c.Request.Context(), gameType, p, now); err != nil {
		h.logger.Error("recompute failed", "error", err, "gameType", req.GameType, "period", req.Period)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recompute failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) AdminDrawStats(c *gin.Context) {
	since := time.Now().AddDate(0, 0, -30)
	stats, overview, err := h.store.DrawDailyStats(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("draw stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draw stats failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"overview": overview,
		"stats":    stats,
	})
}
