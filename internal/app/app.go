// Package app is the composition root shared by the commands: it loads
// configuration, opens the record store and builds each stage from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/postgres"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/postgres/record"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/s3"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/backup"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/extract"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/dedupe"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/index"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/intake"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/metrics"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/scoring"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/verify"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/publish"
)

// Store is the record store repository the stages share.
type Store interface {
	Load(ctx context.Context) (*domain.Store, error)
	Save(ctx context.Context, s *domain.Store) error
}

// Env is the wired environment of one command invocation.
type Env struct {
	Config *config.Config
	Log    *slog.Logger
	Store  Store

	closers []func()
}

// Bootstrap loads configuration, installs the logger and opens the store.
func Bootstrap(ctx context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewEnv(ctx, cfg, NewLogger(cfg.Log))
}

// NewEnv opens the configured record store.
func NewEnv(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Env, error) {
	env := &Env{Config: cfg, Log: log}

	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("app.NewEnv: %w", err)
		}
		env.Store = record.New(pool, postgres.NewTxManager(pool))
		env.closers = append(env.closers, pool.Close)
	default:
		env.Store = filestore.New(cfg.Store.Path)
	}

	log.DebugContext(ctx, "record store opened",
		slog.String("backend", cfg.Store.Backend),
		slog.String("version", BuildVersion()),
	)
	return env, nil
}

// Close releases the store resources.
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// Backups creates the backup manager.
func (e *Env) Backups() *backup.Manager {
	return backup.NewManager(e.Log, e.Store, e.Config.Backup.Dir, e.Config.Backup.Keep)
}

// Metrics creates the metrics updater.
func (e *Env) Metrics() *metrics.Updater {
	c := e.Config
	return metrics.NewUpdater(e.Log, e.Store, metrics.Options{
		TimeseriesMonths:   c.Limits.TimeseriesMonths,
		PostDetailsMax:     c.Limits.PostDetails,
		MinDishLength:      c.Metrics.MinDishLength,
		SentimentWeight:    c.Metrics.SentimentWeight,
		AllowRepeatSources: c.Metrics.AllowRepeatSources,
		SkipPostDetails:    c.Metrics.SkipPostDetails,
	})
}

// Intake creates the new-restaurant intake stage.
func (e *Env) Intake() *intake.Service {
	return intake.NewService(e.Log, e.Store)
}

// Merger creates the deduplicator.
func (e *Env) Merger() *dedupe.Merger {
	c := e.Config
	return dedupe.NewMerger(e.Log, e.Store, dedupe.Options{
		Key:              c.Dedupe.Key,
		TimeseriesMonths: c.Limits.TimeseriesMonths,
		PostDetailsMax:   c.Limits.PostDetails,
	})
}

// Scoring creates the recompute stage with the configured formulas.
func (e *Env) Scoring() (*scoring.Service, error) {
	return scoring.NewService(e.Log, e.Store, e.Config.Scoring.SentimentFormula, e.Config.Scoring.EngagementFormula)
}

// Verifier creates the verifier.
func (e *Env) Verifier() *verify.Verifier {
	return verify.NewVerifier(e.Log, e.Store)
}

// IndexFile is the slim index document.
func (e *Env) IndexFile() *filestore.IndexFile {
	return filestore.NewIndexFile(e.Config.Index.Path)
}

// IndexGenerator creates the index generator writing to IndexFile.
func (e *Env) IndexGenerator() *index.Generator {
	c := e.Config
	return index.NewGenerator(e.Log, e.Store, e.IndexFile(), index.Options{
		RecommendationsMax: c.Index.RecommendationsMax,
		TimeseriesMonths:   c.Limits.TimeseriesMonths,
		PostDetailsMax:     c.Index.PostDetailsMax,
	})
}

// Publisher returns the configured publish target, or nil for "none".
func (e *Env) Publisher(ctx context.Context) (publish.Publisher, error) {
	switch e.Config.Publish.Target {
	case "file":
		return publish.NewFilePublisher(e.Config.Publish.Dir), nil
	case "s3":
		p, err := s3.New(ctx, e.Log, e.Config.Publish.S3)
		if err != nil {
			return nil, fmt.Errorf("app.Publisher: %w", err)
		}
		return p, nil
	default:
		return nil, nil
	}
}

// Orchestrator wires every stage into the full pipeline, honoring the
// pipeline stage toggles.
func (e *Env) Orchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	c := e.Config.Pipeline
	stages := pipeline.Stages{
		Backups: e.Backups(),
		Metrics: e.Metrics(),
		Verify:  e.Verifier(),
		Index:   e.IndexGenerator(),
	}
	if !c.SkipIntake {
		stages.Intake = e.Intake()
	}
	if !c.SkipDedupe {
		stages.Dedupe = e.Merger()
	}
	if !c.SkipRecompute {
		svc, err := e.Scoring()
		if err != nil {
			return nil, err
		}
		stages.Scoring = svc
	}

	pub, err := e.Publisher(ctx)
	if err != nil {
		return nil, err
	}
	if pub != nil {
		stages.Publisher = pub
	}

	return pipeline.NewOrchestrator(e.Log, stages, filepath.Base(e.Config.Index.Path))
}

// Extractor builds the extraction runner for the configured mode. The call
// delay only applies to the llm mode.
func (e *Env) Extractor() *extract.Runner {
	c := e.Config.Extract
	opts := []extract.RunnerOption{
		extract.WithMaxPosts(c.MaxPosts),
		extract.WithItemTimeout(c.ItemTimeout),
	}

	var ex extract.Extractor = extract.PatternExtractor{}
	if c.Mode == "llm" {
		ex = extract.NewLLMExtractor(c.LLMAPIKey, c.LLMModel, c.MaxTokens)
		opts = append(opts, extract.WithDelay(c.Delay))
	}
	return extract.NewRunner(e.Log, ex, opts...)
}

// Guarded runs fn between a backup and its commit. When fn fails the store
// is restored from the backup and fn's error is returned, joined with the
// restore error if restoring fails too.
func (e *Env) Guarded(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := RunLogger(e.Log, op)
	backups := e.Backups()
	h, err := backups.Begin(ctx, op)
	if err != nil {
		return fmt.Errorf("app.Guarded %s: %w", op, err)
	}

	if err := fn(ctx); err != nil {
		if rerr := backups.Restore(ctx, h); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore %s: %w", h.Path, rerr))
		}
		log.WarnContext(ctx, "store restored from backup", slog.String("backup", h.Path))
		return err
	}

	if _, err := backups.Commit(ctx); err != nil {
		log.WarnContext(ctx, "backup prune failed", slog.String("error", err.Error()))
	}
	log.InfoContext(ctx, "run committed", slog.String("backup", h.Path))
	return nil
}
