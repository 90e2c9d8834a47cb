// Command dedupe folds duplicate records (same dedupe.key) into a single
// survivor and retires the rest as duplicate_merged. The store is backed up
// first and restored if merging fails.
//
// Usage:
//
//	dedupe [-key google_place_id|name] [db]
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"fmt"
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
	key := flag.String("key", "", "grouping key (default dedupe.key)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *key != "" {
		cfg.Dedupe.Key = *key
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid -key: %v", err)
		}
	}
	if db := flag.Arg(0); db != "" {
		cfg.Store.Backend, cfg.Store.Path = "file", db
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

	err = env.Guarded(ctx, "dedupe", func(ctx context.Context) error {
		res, err := env.Merger().Run(ctx)
		if err != nil {
			return err
		}
		for _, g := range res.Groups {
			fmt.Printf("%s: kept %s, merged %v\n", g.Key, g.Survivor, g.Merged)
		}
		return nil
	})
	if err != nil {
		logger.Error("dedupe failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
