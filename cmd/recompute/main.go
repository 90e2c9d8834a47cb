// Command recompute re-derives adjusted engagement and sentiment scores for
// every active record with the configured formula versions and stamps the
// versions into the store header. The store is backed up first and restored
// if the recompute fails.
//
// Usage:
//
//	recompute [-sentiment weighted-v2] [-engagement log-sqrt-v1] [db]
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/app"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup happens before exit.
func run() int {
	sentiment := flag.String("sentiment", "", "sentiment formula (default scoring.sentiment_formula)")
	engagement := flag.String("engagement", "", "engagement formula (default scoring.engagement_formula)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *sentiment != "" {
		cfg.Scoring.SentimentFormula = *sentiment
	}
	if *engagement != "" {
		cfg.Scoring.EngagementFormula = *engagement
	}
	if db := flag.Arg(0); db != "" {
		cfg.Store.Backend, cfg.Store.Path = "file", db
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	env, err := app.NewEnv(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("error", err.Error()))
		return 1
	}
	defer env.Close()

	svc, err := env.Scoring()
	if err != nil {
		logger.Error("build scoring", slog.String("error", err.Error()))
		return 1
	}

	err = env.Guarded(ctx, "recompute", func(ctx context.Context) error {
		_, err := svc.Run(ctx)
		return err
	})
	if err != nil {
		logger.Error("recompute failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
