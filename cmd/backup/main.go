// Command backup manages record store snapshots.
//
// Usage:
//
//	backup list
//	backup take [op]
//	backup restore <path>
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
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/backup"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup happens before exit.
func run() int {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: backup list | backup take [op] | backup restore <path>")
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	if err := dispatch(ctx, env.Backups(), flag.Args()); err != nil {
		logger.Error("backup command failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, m *backup.Manager, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing subcommand")
	}

	switch args[0] {
	case "list":
		handles, err := m.List()
		if err != nil {
			return err
		}
		for _, h := range handles {
			fmt.Printf("%s\t%s\n", h.CreatedAt.Format(domain.TimeFormat), h.Path)
		}
		return nil

	case "take":
		op := "manual"
		if len(args) > 1 {
			op = args[1]
		}
		h, err := m.Begin(ctx, op)
		if err != nil {
			return err
		}
		if _, err := m.Commit(ctx); err != nil {
			return err
		}
		fmt.Printf("%s\t%d restaurants\n", h.Path, h.Count)
		return nil

	case "restore":
		if len(args) != 2 {
			return fmt.Errorf("restore needs a backup path")
		}
		h, err := backup.Open(args[1])
		if err != nil {
			return err
		}
		return m.Restore(ctx, h)

	default:
		flag.Usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}
