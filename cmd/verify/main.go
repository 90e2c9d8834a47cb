// Command verify runs the integrity checks against the record store after a
// mutation. On success it stamps total_restaurants and verified_at. On
// failure nothing is written and the backup to restore is printed; with
// -restore the backup is restored right away.
//
// Usage:
//
//	verify [-restore] <db> <before-count> <backup>
//
// Exit codes: 0 = all checks passed, 1 = a check failed or an error occurred.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/app"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/backup"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/verify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup happens before exit.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	restore := fs.Bool("restore", false, "restore the backup when verification fails")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: verify [-restore] <db> <before-count> <backup>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return 1
	}

	before, err := strconv.Atoi(fs.Arg(1))
	if err != nil || before < 0 {
		fmt.Fprintf(stderr, "before-count must be a non-negative integer, got %q\n", fs.Arg(1))
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	cfg.Store.Backend, cfg.Store.Path = "file", fs.Arg(0)

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	handle, err := backup.Open(fs.Arg(2))
	if err != nil {
		logger.Error("open backup", slog.String("error", err.Error()))
		return 1
	}

	env, err := app.NewEnv(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("error", err.Error()))
		return 1
	}
	defer env.Close()

	rep, err := env.Verifier().Run(ctx, verify.Precondition{BeforeCount: before, Backup: handle})
	if err != nil {
		logger.Error("verification error", slog.String("error", err.Error()))
		fmt.Fprintf(stdout, "restore from: %s\n", handle.Path)
		return 1
	}
	if rep.Passed {
		fmt.Fprintf(stdout, "verified %d restaurants\n", rep.Count)
		return 0
	}

	for _, c := range rep.Failed() {
		fmt.Fprintf(stdout, "FAIL %s: %s\n", c.Name, c.Reason)
	}
	fmt.Fprintf(stdout, "restore from: %s\n", handle.Path)

	if *restore {
		if err := env.Backups().Restore(ctx, handle); err != nil {
			logger.Error("restore failed", slog.String("error", err.Error()))
		} else {
			fmt.Fprintln(stdout, "restored")
		}
	}
	return 1
}
