package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bxdofficial/Nawi/internal/config"
	"github.com/bxdofficial/Nawi/internal/database"
	"github.com/bxdofficial/Nawi/internal/models"
	"github.com/bxdofficial/Nawi/internal/services/leaderboard"
)

// One-shot leaderboard rebuild, for cron or manual backfill.
func main() {
	gameType := flag.String("game", "", "game type to rebuild (wheel, puzzle, overall); empty for all")
	period := flag.String("period", "", "period to rebuild (daily, weekly, monthly, yearly, alltime); empty for all")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()
	store, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	boards := leaderboard.NewService(store, logger)
	now := time.Now()

	if *gameType == "" && *period == "" {
		boards.RecomputeAll(ctx, now)
		fmt.Println("recomputed all boards")
		return
	}

	gt := models.GameType(*gameType)
	p := models.Period(*period)
	if !gt.Valid() || !p.Valid() {
		logger.Error("invalid game type or period", "game", *gameType, "period", *period)
		os.Exit(1)
	}
	if err := boards.Recompute(ctx, gt, p, now); err != nil {
		logger.Error("recompute failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("recomputed %s/%s\n", *gameType, *period)
}
