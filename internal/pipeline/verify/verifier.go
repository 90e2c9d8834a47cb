// Package verify runs the post-mutation integrity checks. A failed run never
// writes; restoring the pre-run backup is the caller's job.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/backup"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// Check names, in evaluation order.
const (
	CheckParse      = "valid_document"
	CheckList       = "restaurants_list"
	CheckCount      = "no_data_loss"
	CheckNames      = "names_present"
	CheckIDs        = "ids_unique"
	CheckEngagement = "engagement_reconciles"
)

const (
	engagementEpsilon = 0.001
	engagementShare   = 0.01
	maxListed         = 5
)

type recordStore interface {
	Load(ctx context.Context) (*domain.Store, error)
	Save(ctx context.Context, s *domain.Store) error
}

// Check is the outcome of one integrity check.
type Check struct {
	Name   string
	Passed bool
	Reason string
}

// Report is the outcome of a verification run.
type Report struct {
	Passed      bool
	Checks      []Check
	BeforeCount int
	Count       int
	Backup      backup.Handle
}

// Failed returns the checks that did not pass.
func (r Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Precondition is what a verification run needs from the earlier stages:
// the record count before mutation and the backup taken at that point.
type Precondition struct {
	BeforeCount int
	Backup      backup.Handle
}

// Verifier runs the check battery against the store.
type Verifier struct {
	log   *slog.Logger
	store recordStore
	now   func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock overrides the clock used for verified_at.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a Verifier.
func NewVerifier(log *slog.Logger, store recordStore, opts ...Option) *Verifier {
	v := &Verifier{
		log:   log.With("stage", "verify"),
		store: store,
		now:   time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Run verifies the store. A run without a backup is rejected with
// domain.ErrNoBackup before anything is read. A failing check is reported in
// the Report, not as an error; errors are reserved for I/O failures. On a
// full pass total_restaurants and verified_at are stamped and the store is
// saved.
func (v *Verifier) Run(ctx context.Context, pre Precondition) (Report, error) {
	if pre.Backup.IsZero() {
		return Report{}, fmt.Errorf("verify.Run: %w", domain.ErrNoBackup)
	}

	store, loadErr := v.store.Load(ctx)
	if loadErr != nil && !errors.Is(loadErr, domain.ErrMalformedStore) && !errors.Is(loadErr, domain.ErrRestaurantsNotList) {
		return Report{}, fmt.Errorf("verify.Run: load: %w", loadErr)
	}

	report := Evaluate(store, loadErr, pre.BeforeCount)
	report.Backup = pre.Backup

	if !report.Passed {
		for _, c := range report.Failed() {
			v.log.ErrorContext(ctx, "check failed", slog.String("check", c.Name), slog.String("reason", c.Reason))
		}
		v.log.ErrorContext(ctx, "verification failed, restore from backup",
			slog.String("backup", pre.Backup.Path),
			slog.Int("before", pre.BeforeCount),
			slog.Int("count", report.Count),
		)
		return report, nil
	}

	store.TotalRestaurants = report.Count
	store.VerifiedAt = domain.FormatTime(v.now())
	if err := v.store.Save(ctx, store); err != nil {
		return report, fmt.Errorf("verify.Run: save: %w", err)
	}

	v.log.InfoContext(ctx, "all checks passed", slog.Int("restaurants", report.Count))
	return report, nil
}

// Evaluate runs every check. loadErr is the error returned when loading the
// store, if any; store may be nil when it is set.
func Evaluate(store *domain.Store, loadErr error, beforeCount int) Report {
	report := Report{BeforeCount: beforeCount}

	if errors.Is(loadErr, domain.ErrMalformedStore) {
		report.Checks = append(report.Checks, fail(CheckParse, loadErr.Error()))
	} else {
		report.Checks = append(report.Checks, pass(CheckParse))
	}

	switch {
	case errors.Is(loadErr, domain.ErrRestaurantsNotList):
		report.Checks = append(report.Checks, fail(CheckList, "restaurants is missing or not a list"))
	case loadErr != nil:
		report.Checks = append(report.Checks, fail(CheckList, "document did not parse"))
	default:
		report.Checks = append(report.Checks, pass(CheckList))
	}

	if store == nil || loadErr != nil {
		for _, name := range []string{CheckCount, CheckNames, CheckIDs, CheckEngagement} {
			report.Checks = append(report.Checks, fail(name, "store unavailable"))
		}
		return report
	}

	report.Count = store.Count()
	report.Checks = append(report.Checks,
		checkCount(report.Count, beforeCount),
		checkNames(store.Restaurants),
		checkIDs(store.Restaurants),
		checkEngagement(store.Restaurants),
	)

	report.Passed = true
	for _, c := range report.Checks {
		report.Passed = report.Passed && c.Passed
	}
	return report
}

func checkCount(count, before int) Check {
	if count < before {
		return fail(CheckCount, fmt.Sprintf("dropped from %d to %d", before, count))
	}
	return pass(CheckCount)
}

func checkNames(records []domain.Record) Check {
	var bad []string
	for i := range records {
		r := &records[i]
		if r.IsMerged() {
			continue
		}
		if strings.TrimSpace(r.Name) == "" {
			bad = append(bad, label(r, i))
		}
	}
	if len(bad) > 0 {
		return fail(CheckNames, fmt.Sprintf("%d records without a name: %s", len(bad), list(bad)))
	}
	return pass(CheckNames)
}

func checkIDs(records []domain.Record) Check {
	var (
		missing []string
		dupes   []string
		seen    = make(map[string]int, len(records))
	)
	for i := range records {
		id := records[i].ID
		if strings.TrimSpace(id) == "" {
			missing = append(missing, fmt.Sprintf("#%d", i))
			continue
		}
		seen[id]++
		if seen[id] == 2 {
			dupes = append(dupes, id)
		}
	}

	var reasons []string
	if len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d records without an id: %s", len(missing), list(missing)))
	}
	if len(dupes) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d duplicate ids: %s", len(dupes), list(dupes)))
	}
	if len(reasons) > 0 {
		return fail(CheckIDs, strings.Join(reasons, "; "))
	}
	return pass(CheckIDs)
}

func checkEngagement(records []domain.Record) Check {
	var bad []string
	for i := range records {
		r := &records[i]
		if r.IsMerged() {
			continue
		}
		if sum, ok := adjustedSum(r.PostDetails); ok {
			tolerance := math.Max(engagementShare*sum, engagementEpsilon)
			if math.Abs(r.TotalEngagement-sum) > tolerance {
				bad = append(bad, fmt.Sprintf("%s (total %.2f, adjusted sum %.2f)", label(r, i), r.TotalEngagement, sum))
			}
			continue
		}
		if r.TotalEngagement < 0 || math.IsNaN(r.TotalEngagement) {
			bad = append(bad, fmt.Sprintf("%s (negative total %.2f)", label(r, i), r.TotalEngagement))
		}
	}
	if len(bad) > 0 {
		return fail(CheckEngagement, fmt.Sprintf("%d records mismatched: %s", len(bad), list(bad)))
	}
	return pass(CheckEngagement)
}

// adjustedSum sums adjusted engagement when every detail carries one.
func adjustedSum(details []domain.PostDetail) (float64, bool) {
	if len(details) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range details {
		if p.AdjustedEngagement == nil {
			return 0, false
		}
		sum += *p.AdjustedEngagement
	}
	return sum, true
}

func label(r *domain.Record, i int) string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("#%d", i)
}

func list(items []string) string {
	if len(items) > maxListed {
		return strings.Join(items[:maxListed], ", ") + fmt.Sprintf(" (+%d more)", len(items)-maxListed)
	}
	return strings.Join(items, ", ")
}

func pass(name string) Check { return Check{Name: name, Passed: true} }

func fail(name, reason string) Check { return Check{Name: name, Reason: reason} }
