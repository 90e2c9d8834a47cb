// Command pipeline runs the full reconciliation: backup, metrics update,
// intake of new restaurants, dedupe, recompute, verification, index
// generation and publishing. The store is restored from the backup when a
// stage fails or verification does not pass.
//
// Usage:
//
//	pipeline [-extract] [-candidates path]
//
// With -extract the raw posts are turned into the candidate list first.
//
// Exit codes: 0 = success, 1 = error or failed verification.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/app"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup happens before exit.
func run() int {
	runExtract := flag.Bool("extract", false, "extract candidates from raw posts before running")
	candidatesPath := flag.String("candidates", "", "candidate list (default pipeline.candidates_path)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *candidatesPath != "" {
		cfg.Pipeline.CandidatesPath = *candidatesPath
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

	if *runExtract {
		res, err := env.Extractor().Run(ctx, cfg.Extract.RawDir)
		if err != nil {
			logger.Error("extraction failed", slog.String("error", err.Error()))
			return 1
		}
		if err := filestore.WriteCandidates(cfg.Pipeline.CandidatesPath, res.Candidates); err != nil {
			logger.Error("write candidates", slog.String("error", err.Error()))
			return 1
		}
	}

	candidates, err := pipeline.ReadCandidates(ctx, logger, cfg.Pipeline.CandidatesPath)
	if err != nil {
		logger.Error("read candidates", slog.String("error", err.Error()))
		return 1
	}

	orch, err := env.Orchestrator(ctx)
	if err != nil {
		logger.Error("build pipeline", slog.String("error", err.Error()))
		return 1
	}

	rep, err := orch.Run(ctx, candidates)
	if err != nil {
		logger.Error("pipeline failed",
			slog.String("error", err.Error()),
			slog.Bool("restored", rep.Restored),
			slog.String("backup", rep.Snapshot.Handle.Path),
		)
		return 1
	}
	return 0
}
