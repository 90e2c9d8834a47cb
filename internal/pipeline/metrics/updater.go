// Package metrics folds extracted candidates into the existing records of
// the store: mention counts, engagement sums, monthly timeseries,
// recommendations and the running sentiment score.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

type recordStore interface {
	Load(ctx context.Context) (*domain.Store, error)
	Save(ctx context.Context, s *domain.Store) error
}

// Options tunes the updater. Zero values fall back to the defaults below.
type Options struct {
	TimeseriesMonths int
	PostDetailsMax   int
	MinDishLength    int
	SentimentWeight  float64

	// AllowRepeatSources applies a candidate even when its post is already
	// attributed to the record. Repeated runs then double count.
	AllowRepeatSources bool
	SkipPostDetails    bool
}

const (
	defaultTimeseriesMonths = 24
	defaultPostDetailsMax   = 10
	defaultMinDishLength    = 2
	defaultSentimentWeight  = 0.1
)

func (o Options) withDefaults() Options {
	if o.TimeseriesMonths <= 0 {
		o.TimeseriesMonths = defaultTimeseriesMonths
	}
	if o.PostDetailsMax <= 0 {
		o.PostDetailsMax = defaultPostDetailsMax
	}
	if o.MinDishLength <= 0 {
		o.MinDishLength = defaultMinDishLength
	}
	if o.SentimentWeight <= 0 {
		o.SentimentWeight = defaultSentimentWeight
	}
	return o
}

// Result summarizes one run.
type Result struct {
	Candidates int
	Matched    int
	Repeats    int
	Invalid    int
	NewDishes  int
	Migrated   int

	// UnknownSentiment counts candidates applied without their sentiment
	// because the label was not recognized.
	UnknownSentiment int

	// Unmatched are the valid candidates that matched no record, in input
	// order. They feed the intake stage.
	Unmatched []domain.Candidate
}

// Updater applies candidates to the record store.
type Updater struct {
	log   *slog.Logger
	store recordStore
	opts  Options
	now   func() time.Time
}

// Option configures an Updater.
type Option func(*Updater)

// WithClock overrides the clock used for the current month and timestamps.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) { u.now = now }
}

// NewUpdater creates an Updater.
func NewUpdater(log *slog.Logger, store recordStore, opts Options, options ...Option) *Updater {
	u := &Updater{
		log:   log.With("stage", "metrics"),
		store: store,
		opts:  opts.withDefaults(),
		now:   time.Now,
	}
	for _, o := range options {
		o(u)
	}
	return u
}

// Run loads the store, persists any pending timeseries migration, applies
// candidates and saves when at least one record changed. A load failure is
// returned before anything is written.
func (u *Updater) Run(ctx context.Context, candidates []domain.Candidate) (Result, error) {
	store, err := u.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("metrics.Run: load: %w", err)
	}

	var res Result
	if res.Migrated = Migrate(store); res.Migrated > 0 {
		store.Touch(u.now())
		if err := u.store.Save(ctx, store); err != nil {
			return res, fmt.Errorf("metrics.Run: save migration: %w", err)
		}
		u.log.InfoContext(ctx, "timeseries migrated", slog.Int("records", res.Migrated))
	}

	if len(candidates) == 0 {
		u.log.InfoContext(ctx, "no candidates, skipping metrics update")
		return res, nil
	}

	applied := u.Apply(store, candidates)
	applied.Migrated = res.Migrated
	res = applied

	if res.Matched == 0 {
		u.log.InfoContext(ctx, "no existing restaurants matched",
			slog.Int("candidates", res.Candidates),
			slog.Int("repeats", res.Repeats),
		)
		return res, nil
	}

	store.Touch(u.now())
	if err := u.store.Save(ctx, store); err != nil {
		return res, fmt.Errorf("metrics.Run: save: %w", err)
	}

	u.log.InfoContext(ctx, "metrics updated",
		slog.Int("matched", res.Matched),
		slog.Int("unmatched", len(res.Unmatched)),
		slog.Int("repeats", res.Repeats),
		slog.Int("invalid", res.Invalid),
		slog.Int("unknown_sentiment", res.UnknownSentiment),
		slog.Int("new_dishes", res.NewDishes),
	)
	return res, nil
}

// Migrate resets every record whose timeseries is missing or not a list.
// It returns the number of records changed.
func Migrate(store *domain.Store) int {
	n := 0
	for i := range store.Restaurants {
		if store.Restaurants[i].NeedsTimeseriesMigration() {
			store.Restaurants[i].MigrateTimeseries()
			n++
		}
	}
	return n
}

// Apply folds candidates into store in memory.
func (u *Updater) Apply(store *domain.Store, candidates []domain.Candidate) Result {
	now := u.now()
	month := domain.MonthKey(now)
	stamp := domain.FormatTime(now)
	index := buildNameIndex(store)

	res := Result{Candidates: len(candidates)}
	for _, c := range candidates {
		if c.Sentiment != "" && !c.Sentiment.IsValid() {
			u.log.Debug("unknown sentiment ignored", slog.String("name", c.Name), slog.String("sentiment", string(c.Sentiment)))
			c.Sentiment = ""
			res.UnknownSentiment++
		}
		if err := c.Validate(); err != nil {
			res.Invalid++
			u.log.Debug("candidate skipped", slog.String("name", c.Name), slog.String("error", err.Error()))
			continue
		}

		idx, ok := index[c.Key()]
		if !ok {
			res.Unmatched = append(res.Unmatched, c)
			continue
		}

		r := &store.Restaurants[idx]
		if c.SourcePostID != "" && r.HasSource(c.SourcePostID) && !u.opts.AllowRepeatSources {
			res.Repeats++
			continue
		}

		res.NewDishes += u.applyOne(r, c, month)
		r.UpdatedAt = stamp
		res.Matched++
	}
	return res
}

func (u *Updater) applyOne(r *domain.Record, c domain.Candidate, month string) int {
	engagement := c.Engagement.Float()

	r.MentionCount++
	r.TotalEngagement += engagement
	if r.Sources == nil {
		r.Sources = []string{}
	}
	r.AddSource(c.SourcePostID)

	if r.Timeseries == nil {
		r.Timeseries = []domain.TimeseriesPoint{}
	}
	r.AddToMonth(month, 1, engagement, u.opts.TimeseriesMonths)

	added := 0
	for _, dish := range c.Dishes {
		dish = strings.TrimSpace(dish)
		if utf8.RuneCountInString(dish) < u.opts.MinDishLength || domain.NormalizeName(dish) == "" || r.HasDish(dish) {
			continue
		}
		r.Recommendations = append(r.Recommendations, domain.Dish{Name: dish})
		added++
	}

	if c.Sentiment != "" && c.Sentiment != domain.SentimentNeutral {
		current := 0.5
		if r.SentimentScore != nil {
			current = *r.SentimentScore
		}
		w := u.opts.SentimentWeight
		r.SentimentScore = domain.Float64(domain.Round2(current*(1-w) + c.Sentiment.Value()*w))
	}

	if !u.opts.SkipPostDetails && c.SourcePostID != "" && !hasPostDetail(r, c.SourcePostID) {
		r.PostDetails = append(r.PostDetails, domain.PostDetail{
			PostID:     c.SourcePostID,
			Title:      c.SourceTitle,
			Date:       c.SourcePostDate,
			Engagement: engagement,
			Sentiment:  c.Sentiment,
		})
		r.PostDetails = domain.SortPostDetails(r.PostDetails, u.opts.PostDetailsMax)
	}
	return added
}

// buildNameIndex maps normalized name and name_en to the record position.
// Retired records are not match targets; the first record wins on collision.
func buildNameIndex(store *domain.Store) map[string]int {
	index := make(map[string]int, len(store.Restaurants)*2)
	for i := range store.Restaurants {
		r := &store.Restaurants[i]
		if !r.IsActive() {
			continue
		}
		for _, name := range []string{r.Name, r.NameEN} {
			key := domain.NormalizeName(name)
			if key == "" {
				continue
			}
			if _, taken := index[key]; !taken {
				index[key] = i
			}
		}
	}
	return index
}

func hasPostDetail(r *domain.Record, postID string) bool {
	for _, p := range r.PostDetails {
		if p.PostID == postID {
			return true
		}
	}
	return false
}
