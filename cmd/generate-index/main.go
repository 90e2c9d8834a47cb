// Command generate-index writes the slim serving index from the record
// store and, when publish.target is set, publishes it.
//
// Usage:
//
//	generate-index [db] [index]
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
	"path/filepath"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/app"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
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
	if out := flag.Arg(1); out != "" {
		cfg.Index.Path = out
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

	res, err := env.IndexGenerator().Run(ctx)
	if err != nil {
		logger.Error("generate index", slog.String("error", err.Error()))
		return 1
	}
	fmt.Printf("%d restaurants, %d -> %d bytes (%d%% smaller)\n",
		res.Records, res.SourceBytes, res.IndexBytes, res.Reduction())

	pub, err := env.Publisher(ctx)
	if err != nil {
		logger.Error("build publisher", slog.String("error", err.Error()))
		return 1
	}
	if pub == nil {
		return 0
	}
	if err := pub.Publish(ctx, filepath.Base(cfg.Index.Path), res.Data); err != nil {
		logger.Error("publish index", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
