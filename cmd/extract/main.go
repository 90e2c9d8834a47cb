// Command extract turns the raw social posts in extract.raw_dir into a
// candidate list. A missing raw directory produces an empty list.
//
// Extraction modes (EXTRACT_MODE or config extract.mode):
//
//	pattern (default) bracket and pin conventions, no network
//	llm               Anthropic Messages API, spaced by extract.delay
//
// Usage:
//
//	extract [-mode pattern|llm] [raw-dir] [output]
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

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/app"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
)

func main() {
	mode := flag.String("mode", "", "extraction mode (default extract.mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *mode != "" {
		cfg.Extract.Mode = *mode
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid -mode: %v", err)
		}
	}
	if dir := flag.Arg(0); dir != "" {
		cfg.Extract.RawDir = dir
	}
	if out := flag.Arg(1); out != "" {
		cfg.Extract.Output = out
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	env := &app.Env{Config: cfg, Log: logger}
	res, err := env.Extractor().Run(ctx, cfg.Extract.RawDir)
	if err != nil {
		logger.Error("extraction failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := filestore.WriteCandidates(cfg.Extract.Output, res.Candidates); err != nil {
		logger.Error("write candidates", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("candidates written",
		slog.String("path", cfg.Extract.Output),
		slog.Int("count", len(res.Candidates)),
	)
}
