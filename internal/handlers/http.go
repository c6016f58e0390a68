package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bxdofficial/Nawi/internal/auth"
	"github.com/bxdofficial/Nawi/internal/cache"
	"github.com/bxdofficial/Nawi/internal/config"
	"github.com/bxdofficial/Nawi/internal/database"
	"github.com/bxdofficial/Nawi/internal/middleware"
	"github.com/bxdofficial/Nawi/internal/models"
	"github.com/bxdofficial/Nawi/internal/services/leaderboard"
	"github.com/bxdofficial/Nawi/internal/services/prize"
	"github.com/bxdofficial/Nawi/internal/services/puzzle"
)

type Handler struct {
	cfg     *config.Config
	store   *database.Store
	prizes  *prize.Service
	puzzles *puzzle.Service
	boards  *leaderboard.Service
	jwt     *auth.Manager
	cache   *cache.ActiveWheelCache
	logger  *slog.Logger
}

func NewHandler(cfg *config.Config, store *database.Store, prizeSvc *prize.Service, puzzleSvc *puzzle.Service, boardSvc *leaderboard.Service, jwt *auth.Manager, wheelCache *cache.ActiveWheelCache, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   store,
		prizes:  prizeSvc,
		puzzles: puzzleSvc,
		boards:  boardSvc,
		jwt:     jwt,
		cache:   wheelCache,
		logger:  logger,
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler, jwt *auth.Manager, adminIPs []string) {
	r.GET("/api/health", h.Health)

	api := r.Group("/api")
	api.Use(middleware.JWT(jwt))

	api.GET("/me", h.Me)
	api.GET("/wheel", h.ActiveWheel)
	api.POST("/wheel/spin", h.Spin)
	api.GET("/draws", h.ListDraws)
	api.POST("/draws/:id/claim", h.ClaimDraw)
	api.GET("/puzzles", h.ListPuzzles)
	api.POST("/puzzles/:id/attempts", h.StartAttempt)
	api.POST("/attempts/:id/complete", h.CompleteAttempt)
	api.GET("/leaderboard", h.Leaderboard)
	api.GET("/leaderboard/me", h.MyStanding)

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminIPWhitelist(adminIPs))
	admin.POST("/login", h.AdminLogin)

	adminProtected := admin.Group("/")
	adminProtected.Use(middleware.JWT(jwt), middleware.RequireRole("admin"))
	adminProtected.GET("/wheels", h.AdminListWheels)
	adminProtected.POST("/wheels", h.AdminCreateWheel)
	adminProtected.PUT("/wheels/:id", h.AdminUpdateWheel)
	adminProtected.GET("/puzzles", h.AdminListPuzzles)
	adminProtected.POST("/puzzles", h.AdminCreatePuzzle)
	adminProtected.PUT("/puzzles/:id", h.AdminUpdatePuzzle)
	adminProtected.POST("/leaderboard/recompute", h.AdminRecompute)
	adminProtected.GET("/stats/draws", h.AdminDrawStats)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

// ensureUser mirrors the token identity into the games user table so
// foreign keys and point credits have a row to land on.
func (h *Handler) ensureUser(c *gin.Context) *models.User {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return nil
	}
	user, err := h.store.EnsureUser(c.Request.Context(), claims.UserID, claims.Username, claims.DisplayName, time.Now())
	if err != nil {
		h.logger.Error("user sync failed", "error", err, "userId", claims.UserID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user sync failed"})
		return nil
	}
	return user
}

func (h *Handler) Me(c *gin.Context) {
	user := h.ensureUser(c)
	if user == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) ActiveWheel(c *gin.Context) {
	wheel, err := h.prizes.ActiveWheel(c.Request.Context())
	if err != nil {
		if errors.Is(err, database.ErrWheelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active wheel"})
			return
		}
		h.logger.Error("wheel read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wheel read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wheel": wheel})
}

func (h *Handler) Spin(c *gin.Context) {
	user := h.ensureUser(c)
	if user == nil {
		return
	}
	draw, err := h.prizes.Draw(c.Request.Context(), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrWheelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active wheel"})
		case errors.Is(err, database.ErrWheelInactive):
			c.JSON(http.StatusConflict, gin.H{"error": "wheel is not active"})
		case errors.Is(err, database.ErrNoSegments):
			c.JSON(http.StatusConflict, gin.H{"error": "wheel has no winnable segments"})
		case errors.Is(err, database.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily draw limit reached"})
		default:
			h.logger.Error("spin failed", "error", err, "userId", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "spin failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"draw": draw})
}

func (h *Handler) ListDraws(c *gin.Context) {
	user := h.ensureUser(c)
	if user == nil {
		return
	}
	limit, offset := parsePagination(c, 50, 0)
	draws, err := h.store.ListDrawsForUser(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		h.logger.Error("draw list failed", "error", err, "userId", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draw list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draws": draws})
}

func (h *Handler) ClaimDraw(c *gin.Context) {
	user := h.ensureUser(c)
	if user == nil {
		return
	}
	drawID := c.Param("id")
	claimed, err := h.prizes.Claim(c.Request.Context(), drawID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrDrawNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "draw not found"})
		case errors.Is(err, database.ErrDrawNotOwned):
			c.JSON(http.StatusForbidden, gin.H{"error": "draw belongs to another user"})
		default:
			h.logger.Error("claim failed", "error", err, "drawId", drawID, "userId", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claim failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"claimed": claimed})
}

func (h *Handler) ListPuzzles(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 0)
	puzzles, total, err := h.store.ListPuzzles(c.Request.Context(), true, limit, offset)
	if err != nil {
		h.logger.Error("puzzle list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "puzzle list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzles": puzzles, "total": total})
}

func (h *Handler) StartAttempt(c *gin.Context) {
	user := h.ensureUser(c)
	if user == nil {
		return
	}
	puzzleID := c.Param("id")
	attempt, err := h.puzzles.Start(c.Request.Context(), puzzleID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrPuzzleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "puzzle not found"})
		case errors.Is(err, database.ErrPuzzleInactive):
			c.JSON(http.StatusConflict, gin.H{"error": "puzzle is not active"})
		default:
			h.logger.Error("attempt start failed", "error", err, "puzzleId", puzzleID, "userId", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "attempt start failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt": attempt})
}

type completeAttemptRequest struct {
	Moves int `json:"moves"`
}

func (h *Handler) CompleteAttempt(c *gin.Context) {
	user := h.ensureUser(c)
	if user == nil {
		return
	}
	attemptID := c.Param("id")
	var req completeAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Moves < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	attempt, err := h.puzzles.Complete(c.Request.Context(), attemptID, user.ID, req.Moves)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrAttemptNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
		case errors.Is(err, database.ErrAttemptNotOwned):
			c.JSON(http.StatusForbidden, gin.H{"error": "attempt belongs to another user"})
		case errors.Is(err, database.ErrAlreadyCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "attempt already completed"})
		default:
			h.logger.Error("attempt complete failed", "error", err, "attemptId", attemptID, "userId", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "attempt complete failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt": attempt})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	gameType, p, ok := parseBoardQuery(c)
	if !ok {
		return
	}
	limit, offset := parsePagination(c, 50, 0)
	entries, total, err := h.boards.Standings(c.Request.Context(), gameType, p, limit, offset)
	if err != nil {
		h.logger.Error("leaderboard read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
	})
}

func (h *Handler) MyStanding(c *gin.Context) {
	user := h.ensureUser(c)
	if user == nil {
		return
	}
	gameType, p, ok := parseBoardQuery(c)
	if !ok {
		return
	}
	entry, err := h.boards.UserStanding(c.Request.Context(), user.ID, gameType, p)
	if err != nil {
		h.logger.Error("standing read failed", "error", err, "userId", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "standing read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func parseBoardQuery(c *gin.Context) (models.GameType, models.Period, bool) {
	gameType := models.GameType(c.DefaultQuery("gameType", string(models.GameOverall)))
	if !gameType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameType"})
		return "", "", false
	}
	p := models.Period(c.DefaultQuery("period", string(models.PeriodAlltime)))
	if !p.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period"})
		return "", "", false
	}
	return gameType, p, true
}

func parsePagination(c *gin.Context, defaultLimit, defaultOffset int) (int, int) {
	limit := defaultLimit
	offset := defaultOffset
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
