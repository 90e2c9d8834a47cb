// Package dedupe folds duplicate records of the same place into one
// survivor. Retired records keep their id and point at the survivor through
// merged_into.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// Grouping keys.
const (
	KeyPlaceID = "google_place_id"
	KeyName    = "name"
)

type recordStore interface {
	Load(ctx context.Context) (*domain.Store, error)
	Save(ctx context.Context, s *domain.Store) error
}

// Options tunes the merger.
type Options struct {
	Key              string
	TimeseriesMonths int
	PostDetailsMax   int
}

// Group describes one folded duplicate group.
type Group struct {
	Key      string
	Survivor string
	Merged   []string
}

// Result summarizes one run. A run with no duplicates has zero Merged.
type Result struct {
	Groups []Group
	Merged int
}

// Merger detects and folds duplicate groups.
type Merger struct {
	log   *slog.Logger
	store recordStore
	opts  Options
	now   func() time.Time
}

// Option configures a Merger.
type Option func(*Merger)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) { m.now = now }
}

// NewMerger creates a Merger.
func NewMerger(log *slog.Logger, store recordStore, opts Options, options ...Option) *Merger {
	if opts.Key == "" {
		opts.Key = KeyPlaceID
	}
	if opts.TimeseriesMonths <= 0 {
		opts.TimeseriesMonths = 24
	}
	if opts.PostDetailsMax <= 0 {
		opts.PostDetailsMax = 10
	}
	m := &Merger{
		log:   log.With("stage", "dedupe"),
		store: store,
		opts:  opts,
		now:   time.Now,
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Run loads the store, folds duplicates and saves when anything merged.
func (m *Merger) Run(ctx context.Context) (Result, error) {
	store, err := m.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("dedupe.Run: load: %w", err)
	}

	res := m.Apply(store)
	if res.Merged == 0 {
		m.log.InfoContext(ctx, "no duplicates found", slog.String("key", m.opts.Key))
		return res, nil
	}

	store.Touch(m.now())
	if err := m.store.Save(ctx, store); err != nil {
		return res, fmt.Errorf("dedupe.Run: save: %w", err)
	}

	m.log.InfoContext(ctx, "duplicates merged",
		slog.String("key", m.opts.Key),
		slog.Int("groups", len(res.Groups)),
		slog.Int("merged", res.Merged),
	)
	return res, nil
}

// Apply folds every duplicate group in store. Retired records are left out
// of grouping, so applying twice changes nothing the second time.
func (m *Merger) Apply(store *domain.Store) Result {
	stamp := domain.FormatTime(m.now())

	var (
		order  []string
		groups = make(map[string][]int)
	)
	for i := range store.Restaurants {
		r := &store.Restaurants[i]
		if !r.IsActive() {
			continue
		}
		key := m.groupKey(r)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	var res Result
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}

		survivorIdx := pickSurvivor(store.Restaurants, members)
		survivor := &store.Restaurants[survivorIdx]
		g := Group{Key: key, Survivor: survivor.ID}

		for _, idx := range members {
			if idx == survivorIdx {
				continue
			}
			other := &store.Restaurants[idx]
			m.fold(survivor, other)
			other.Status = domain.StatusDuplicateMerged
			other.MergedInto = survivor.ID
			other.UpdatedAt = stamp
			g.Merged = append(g.Merged, other.ID)
		}
		survivor.UpdatedAt = stamp

		res.Groups = append(res.Groups, g)
		res.Merged += len(g.Merged)
	}
	return res
}

func (m *Merger) groupKey(r *domain.Record) string {
	if m.opts.Key == KeyName {
		return domain.NormalizeName(r.Name)
	}
	return r.GooglePlaceID
}

// pickSurvivor returns the member with the highest mention count. Members
// are in store order, so the first one wins a tie.
func pickSurvivor(records []domain.Record, members []int) int {
	best := members[0]
	for _, idx := range members[1:] {
		if records[idx].MentionCount > records[best].MentionCount {
			best = idx
		}
	}
	return best
}

func (m *Merger) fold(dst, src *domain.Record) {
	dst.TotalEngagement += src.TotalEngagement
	dst.MentionCount += src.MentionCount

	for _, s := range src.Sources {
		if dst.Sources == nil {
			dst.Sources = []string{}
		}
		dst.AddSource(s)
	}

	for _, d := range src.Recommendations {
		if d.Name != "" && dst.HasDish(d.Name) {
			continue
		}
		dst.Recommendations = append(dst.Recommendations, d)
	}

	if len(src.PostDetails) > 0 {
		seen := make(map[string]struct{}, len(dst.PostDetails))
		for _, p := range dst.PostDetails {
			seen[p.PostID] = struct{}{}
		}
		for _, p := range src.PostDetails {
			if _, ok := seen[p.PostID]; ok {
				continue
			}
			seen[p.PostID] = struct{}{}
			dst.PostDetails = append(dst.PostDetails, p)
		}
		dst.PostDetails = domain.SortPostDetails(dst.PostDetails, m.opts.PostDetailsMax)
	}

	if len(src.Timeseries) > 0 {
		if dst.Timeseries == nil {
			dst.Timeseries = []domain.TimeseriesPoint{}
			dst.LegacyTimeseries = nil
		}
		for _, p := range src.Timeseries {
			dst.AddToMonth(p.Month, p.Mentions, p.Engagement, 0)
		}
		dst.Timeseries = domain.TrimTimeseries(dst.Timeseries, m.opts.TimeseriesMonths)
	}

	if dst.NameEN == "" {
		dst.NameEN = src.NameEN
	}
	if dst.GooglePlaceID == "" {
		dst.GooglePlaceID = src.GooglePlaceID
	}
}
