// Package pipeline runs the reconciliation stages in order and threads each
// stage's typed result into the next. Every run is bracketed by a backup:
// the store is restored when a stage fails or verification does not pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/backup"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/dedupe"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/index"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/intake"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/metrics"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/scoring"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/pipeline/verify"
)

type backupManager interface {
	Begin(ctx context.Context, op string) (backup.Handle, error)
	Restore(ctx context.Context, h backup.Handle) error
	Commit(ctx context.Context) (int, error)
}

type metricsStage interface {
	Run(ctx context.Context, candidates []domain.Candidate) (metrics.Result, error)
}

type intakeStage interface {
	Run(ctx context.Context, candidates []domain.Candidate) (intake.Result, error)
}

type dedupeStage interface {
	Run(ctx context.Context) (dedupe.Result, error)
}

type scoringStage interface {
	Run(ctx context.Context) (scoring.Result, error)
}

type verifyStage interface {
	Run(ctx context.Context, pre verify.Precondition) (verify.Report, error)
}

type indexStage interface {
	Run(ctx context.Context) (index.Result, error)
}

type publisher interface {
	Publish(ctx context.Context, name string, data []byte) error
}

// Stages holds the stage implementations. Intake, Dedupe, Scoring and
// Publisher may be nil to skip them; the rest are required.
type Stages struct {
	Backups   backupManager
	Metrics   metricsStage
	Intake    intakeStage
	Dedupe    dedupeStage
	Scoring   scoringStage
	Verify    verifyStage
	Index     indexStage
	Publisher publisher
}

// Snapshot is the state captured before any stage mutates the store.
type Snapshot struct {
	Handle      backup.Handle
	BeforeCount int
}

// Report collects the result of every stage that ran.
type Report struct {
	Snapshot  Snapshot
	Metrics   metrics.Result
	Intake    intake.Result
	Dedupe    dedupe.Result
	Scoring   scoring.Result
	Verify    verify.Report
	Index     index.Result
	Published bool
	Restored  bool
	Pruned    int
	Duration  time.Duration
}

// Orchestrator runs the full pipeline.
type Orchestrator struct {
	log       *slog.Logger
	stages    Stages
	indexName string
}

// NewOrchestrator creates an Orchestrator. indexName is the artifact name
// the index is published under.
func NewOrchestrator(log *slog.Logger, stages Stages, indexName string) (*Orchestrator, error) {
	var missing []string
	if stages.Backups == nil {
		missing = append(missing, "backups")
	}
	if stages.Metrics == nil {
		missing = append(missing, "metrics")
	}
	if stages.Verify == nil {
		missing = append(missing, "verify")
	}
	if stages.Index == nil {
		missing = append(missing, "index")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing stages %v", missing)
	}
	return &Orchestrator{
		log:       log.With("component", "pipeline"),
		stages:    stages,
		indexName: indexName,
	}, nil
}

// Run executes backup, metrics, intake, dedupe, scoring, verify, index and
// publish in that order. A failed verification restores the backup and
// returns domain.ErrVerificationFailed; the index is then left as it was.
func (o *Orchestrator) Run(ctx context.Context, candidates []domain.Candidate) (Report, error) {
	start := time.Now()
	var rep Report

	h, err := o.stages.Backups.Begin(ctx, "pipeline")
	if err != nil {
		return rep, fmt.Errorf("pipeline: backup: %w", err)
	}
	rep.Snapshot = Snapshot{Handle: h, BeforeCount: h.Count}

	if err := o.mutate(ctx, candidates, &rep); err != nil {
		return rep, o.rollback(ctx, &rep, err)
	}

	rep.Verify, err = o.stages.Verify.Run(ctx, verify.Precondition{
		BeforeCount: rep.Snapshot.BeforeCount,
		Backup:      rep.Snapshot.Handle,
	})
	if err != nil {
		return rep, o.rollback(ctx, &rep, fmt.Errorf("verify: %w", err))
	}
	if !rep.Verify.Passed {
		return rep, o.rollback(ctx, &rep, domain.ErrVerificationFailed)
	}

	rep.Index, err = o.stages.Index.Run(ctx)
	if err != nil {
		return rep, fmt.Errorf("pipeline: index: %w", err)
	}

	if o.stages.Publisher != nil {
		if err := o.stages.Publisher.Publish(ctx, o.indexName, rep.Index.Data); err != nil {
			return rep, fmt.Errorf("pipeline: publish: %w", err)
		}
		rep.Published = true
	}

	rep.Pruned, err = o.stages.Backups.Commit(ctx)
	if err != nil {
		o.log.WarnContext(ctx, "backup pruning failed", slog.String("error", err.Error()))
	}

	rep.Duration = time.Since(start)
	o.log.InfoContext(ctx, "pipeline complete",
		slog.Int("before", rep.Snapshot.BeforeCount),
		slog.Int("after", rep.Verify.Count),
		slog.Int("matched", rep.Metrics.Matched),
		slog.Int("added", rep.Intake.Added),
		slog.Int("merged", rep.Dedupe.Merged),
		slog.Int("indexed", rep.Index.Records),
		slog.Bool("published", rep.Published),
		slog.Duration("duration", rep.Duration),
	)
	return rep, nil
}

func (o *Orchestrator) mutate(ctx context.Context, candidates []domain.Candidate, rep *Report) error {
	var err error

	rep.Metrics, err = o.stages.Metrics.Run(ctx, candidates)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if o.stages.Intake != nil {
		rep.Intake, err = o.stages.Intake.Run(ctx, rep.Metrics.Unmatched)
		if err != nil {
			return fmt.Errorf("intake: %w", err)
		}
	}

	if o.stages.Dedupe != nil {
		rep.Dedupe, err = o.stages.Dedupe.Run(ctx)
		if err != nil {
			return fmt.Errorf("dedupe: %w", err)
		}
	}

	if o.stages.Scoring != nil {
		rep.Scoring, err = o.stages.Scoring.Run(ctx)
		if err != nil {
			return fmt.Errorf("scoring: %w", err)
		}
	}
	return nil
}

// rollback restores the snapshot and returns cause, joined with the restore
// error when restoring fails too.
func (o *Orchestrator) rollback(ctx context.Context, rep *Report, cause error) error {
	o.log.ErrorContext(ctx, "pipeline failed, restoring backup",
		slog.String("error", cause.Error()),
		slog.String("backup", rep.Snapshot.Handle.Path),
	)
	if err := o.stages.Backups.Restore(ctx, rep.Snapshot.Handle); err != nil {
		return fmt.Errorf("pipeline: %w", errors.Join(cause, fmt.Errorf("restore %s: %w", rep.Snapshot.Handle.Path, err)))
	}
	rep.Restored = true
	return fmt.Errorf("pipeline: %w", cause)
}
