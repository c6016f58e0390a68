package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bxdofficial/Nawi/internal/auth"
	"github.com/bxdofficial/Nawi/internal/cache"
	"github.com/bxdofficial/Nawi/internal/config"
	"github.com/bxdofficial/Nawi/internal/database"
	"github.com/bxdofficial/Nawi/internal/handlers"
	"github.com/bxdofficial/Nawi/internal/models"
	"github.com/bxdofficial/Nawi/internal/scheduler"
	"github.com/bxdofficial/Nawi/internal/services/leaderboard"
	"github.com/bxdofficial/Nawi/internal/services/prize"
	"github.com/bxdofficial/Nawi/internal/services/puzzle"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	jwtMgr := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer)
	wheelCache := cache.NewActiveWheelCache(cfg.WheelCacheTTL, func(ctx context.Context) (*models.Wheel, error) {
		return store.GetActiveWheel(ctx, time.Now())
	})
	prizeSvc := prize.NewService(store, wheelCache, logger)
	puzzleSvc := puzzle.NewService(store, logger)
	boardSvc := leaderboard.NewService(store, logger)

	recomputeRunner := scheduler.NewRecomputeRunner(boardSvc, cfg.RecomputeInterval, logger)
	recomputeRunner.Start(ctx)
	defer recomputeRunner.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	handler := handlers.NewHandler(cfg, store, prizeSvc, puzzleSvc, boardSvc, jwtMgr, wheelCache, logger)
	handlers.RegisterRoutes(r, handler, jwtMgr, cfg.AdminAllowedIPs)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	go func() {
		logger.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
