// Command update-metrics folds a candidate list into the matching records of
// the store: mention counts, engagement, monthly timeseries, dishes,
// sentiment and post details. The store is backed up first and restored if
// the update fails. A missing candidate list is not an error.
//
// Usage:
//
//	update-metrics [db] [candidates]
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
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup happens before exit.
func run() int {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if db := flag.Arg(0); db != "" {
		cfg.Store.Backend, cfg.Store.Path = "file", db
	}
	if path := flag.Arg(1); path != "" {
		cfg.Pipeline.CandidatesPath = path
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

	candidates, err := pipeline.ReadCandidates(ctx, logger, cfg.Pipeline.CandidatesPath)
	if err != nil {
		logger.Error("read candidates", slog.String("error", err.Error()))
		return 1
	}

	err = env.Guarded(ctx, "update_metrics", func(ctx context.Context) error {
		_, err := env.Metrics().Run(ctx, candidates)
		return err
	})
	if err != nil {
		logger.Error("metrics update failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
