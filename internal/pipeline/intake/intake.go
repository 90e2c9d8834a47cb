// Package intake adds restaurants that no existing record matches.
// Existing records are never overwritten or removed; every new record is
// flagged for manual review and stays out of the serving index until
// cleared.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// Source is the merge_info.source value stamped on records created here.
const Source = "daily_pipeline"

const (
	minNameLength = 2
	maxNameLength = 30

	unknown = "unknown"
)

type recordStore interface {
	Load(ctx context.Context) (*domain.Store, error)
	Save(ctx context.Context, s *domain.Store) error
}

// Result summarizes one intake run.
type Result struct {
	Added    int
	Existing int
	Invalid  int
	AddedIDs []string
}

// Service creates records for new candidates.
type Service struct {
	log   *slog.Logger
	store recordStore
	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates an intake Service.
func NewService(log *slog.Logger, store recordStore, opts ...Option) *Service {
	s := &Service{
		log:   log.With("stage", "intake"),
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run loads the store, adds new records for candidates and saves when
// anything was added.
func (s *Service) Run(ctx context.Context, candidates []domain.Candidate) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, nil
	}

	store, err := s.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("intake.Run: load: %w", err)
	}

	res := s.Apply(store, candidates)
	if res.Added == 0 {
		s.log.InfoContext(ctx, "no new restaurants", slog.Int("existing", res.Existing), slog.Int("invalid", res.Invalid))
		return res, nil
	}

	store.Touch(s.now())
	if err := s.store.Save(ctx, store); err != nil {
		return res, fmt.Errorf("intake.Run: save: %w", err)
	}

	s.log.InfoContext(ctx, "new restaurants added",
		slog.Int("added", res.Added),
		slog.Int("existing", res.Existing),
		slog.Int("invalid", res.Invalid),
		slog.Int("total", store.Count()),
	)
	return res, nil
}

// Apply appends a record for every candidate whose normalized name is not
// yet known. Names already in the store, including retired records, count
// as existing.
func (s *Service) Apply(store *domain.Store, candidates []domain.Candidate) Result {
	known := make(map[string]struct{}, len(store.Restaurants)*2)
	for i := range store.Restaurants {
		r := &store.Restaurants[i]
		for _, name := range []string{r.Name, r.NameEN} {
			if key := domain.NormalizeName(name); key != "" {
				known[key] = struct{}{}
			}
		}
	}

	now := s.now()
	var res Result
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			res.Invalid++
			continue
		}
		if _, ok := known[c.Key()]; ok {
			res.Existing++
			continue
		}
		if n := c.NameLength(); n < minNameLength || n > maxNameLength {
			res.Invalid++
			continue
		}

		rec := s.newRecord(c, now)
		store.Restaurants = append(store.Restaurants, rec)
		known[c.Key()] = struct{}{}
		res.Added++
		res.AddedIDs = append(res.AddedIDs, rec.ID)

		s.log.Debug("restaurant added",
			slog.String("id", rec.ID),
			slog.String("name", rec.Name),
			slog.String("source_post", c.SourcePostID),
		)
	}
	return res
}

func (s *Service) newRecord(c domain.Candidate, now time.Time) domain.Record {
	sources := []string{}
	if c.SourcePostID != "" {
		sources = append(sources, c.SourcePostID)
	}

	return domain.Record{
		ID:              s.newID(),
		Name:            c.Name,
		NameEN:          c.NameEN,
		MentionCount:    1,
		TotalEngagement: c.Engagement.Float(),
		Sources:         sources,
		PostDetails:     []domain.PostDetail{},
		Timeseries:      []domain.TimeseriesPoint{},
		Recommendations: []domain.Dish{},
		SentimentScore:  domain.Float64(0.5),
		GooglePlaceID:   c.GooglePlaceID,
		UpdatedAt:       domain.FormatTime(now),
		MergeInfo: &domain.MergeInfo{
			AddedDate:   now.UTC().Format(time.DateOnly),
			Source:      Source,
			SourcePost:  c.SourcePostID,
			NeedsReview: true,
		},
		Extra: map[string]json.RawMessage{
			"cuisine":       jsonString(orUnknown(c.Cuisine)),
			"city":          jsonString(orUnknown(c.City)),
			"price_range":   jsonString(orUnknown(c.PriceRange)),
			"verified":      json.RawMessage(`false`),
			"semantic_tags": json.RawMessage(`[]`),
		},
	}
}

func orUnknown(v string) string {
	if v == "" {
		return unknown
	}
	return v
}

func jsonString(v string) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
