package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// Result summarizes one extraction run.
type Result struct {
	Files      int
	Processed  int
	Skipped    int
	Errors     int
	Duplicates int
	Candidates []domain.Candidate
}

// Runner feeds raw post files to an Extractor.
type Runner struct {
	log         *slog.Logger
	extractor   Extractor
	maxPosts    int
	itemTimeout time.Duration
	limiter     *rate.Limiter
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxPosts caps the number of files read per run.
func WithMaxPosts(n int) RunnerOption {
	return func(r *Runner) { r.maxPosts = n }
}

// WithItemTimeout bounds each extractor call.
func WithItemTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.itemTimeout = d }
}

// WithDelay spaces extractor calls at least d apart.
func WithDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(log *slog.Logger, extractor Extractor, opts ...RunnerOption) *Runner {
	r := &Runner{
		log:       log.With("component", "extract"),
		extractor: extractor,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run extracts candidates from the *.json files of rawDir in name order.
// A missing directory yields an empty result. A file that cannot be read,
// parsed or extracted is counted in Errors and skipped; it is not retried.
// Candidates are deduplicated by normalized name, first occurrence wins.
func (r *Runner) Run(ctx context.Context, rawDir string) (Result, error) {
	res := Result{Candidates: []domain.Candidate{}}

	files, err := listPosts(rawDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.InfoContext(ctx, "raw directory not found, nothing to extract", slog.String("dir", rawDir))
			return res, nil
		}
		return res, fmt.Errorf("extract.Run: %w", err)
	}
	if r.maxPosts > 0 && len(files) > r.maxPosts {
		files = files[:r.maxPosts]
	}
	res.Files = len(files)

	seen := make(map[string]struct{})
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		cands, err := r.extractFile(ctx, file)
		switch {
		case err != nil:
			res.Errors++
			r.log.WarnContext(ctx, "post skipped", slog.String("file", filepath.Base(file)), slog.String("error", err.Error()))
			continue
		case cands == nil:
			res.Skipped++
			continue
		}

		res.Processed++
		for _, c := range cands {
			key := c.Key()
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				res.Duplicates++
				continue
			}
			seen[key] = struct{}{}
			res.Candidates = append(res.Candidates, c)
		}
	}

	r.log.InfoContext(ctx, "extraction complete",
		slog.Int("files", res.Files),
		slog.Int("processed", res.Processed),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", res.Errors),
		slog.Int("candidates", len(res.Candidates)),
	)
	return res, nil
}

// extractFile returns nil candidates and nil error for posts the extractor
// ignored.
func (r *Runner) extractFile(ctx context.Context, file string) ([]domain.Candidate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	post, err := ParsePost(data)
	if err != nil {
		return nil, err
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	itemCtx := ctx
	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}

	cands, err := r.extractor.Extract(itemCtx, post)
	if err != nil {
		return nil, err
	}
	if cands == nil {
		return nil, nil
	}
	return cands, nil
}

func listPosts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
