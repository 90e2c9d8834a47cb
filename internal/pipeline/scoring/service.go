// Package scoring recomputes derived scores with versioned formulas selected
// by configuration: adjusted engagement per post and the sentiment score per
// record.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// VersionKey is the store header key holding the formulas last applied.
const VersionKey = "scoring_version"

type recordStore interface {
	Load(ctx context.Context) (*domain.Store, error)
	Save(ctx context.Context, s *domain.Store) error
}

// Version names the formulas a store was scored with.
type Version struct {
	Sentiment  string `json:"sentiment"`
	Engagement string `json:"engagement"`
}

// Result summarizes one recompute.
type Result struct {
	Version            Version
	Records            int
	EngagementChanged  int
	SentimentChanged   int
	SentimentUnchanged int
}

// Service recomputes scores for the active records.
type Service struct {
	log        *slog.Logger
	store      recordStore
	sentiment  SentimentFormula
	engagement EngagementFormula
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a scoring Service from formula names.
func NewService(log *slog.Logger, store recordStore, sentimentName, engagementName string, opts ...Option) (*Service, error) {
	sentiment, err := NewSentimentFormula(sentimentName)
	if err != nil {
		return nil, err
	}
	engagement, err := NewEngagementFormula(engagementName)
	if err != nil {
		return nil, err
	}

	s := &Service{
		log:        log.With("stage", "scoring"),
		store:      store,
		sentiment:  sentiment,
		engagement: engagement,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Version reports the configured formulas.
func (s *Service) Version() Version {
	return Version{Sentiment: s.sentiment.Name(), Engagement: s.engagement.Name()}
}

// Run loads the store, recomputes and saves it.
func (s *Service) Run(ctx context.Context) (Result, error) {
	store, err := s.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("scoring.Run: load: %w", err)
	}

	res, err := s.Apply(store)
	if err != nil {
		return res, fmt.Errorf("scoring.Run: %w", err)
	}

	if err := s.store.Save(ctx, store); err != nil {
		return res, fmt.Errorf("scoring.Run: save: %w", err)
	}

	s.log.InfoContext(ctx, "scores recomputed",
		slog.String("sentiment_formula", res.Version.Sentiment),
		slog.String("engagement_formula", res.Version.Engagement),
		slog.Int("records", res.Records),
		slog.Int("engagement_changed", res.EngagementChanged),
		slog.Int("sentiment_changed", res.SentimentChanged),
	)
	return res, nil
}

// Apply recomputes the active records of store in memory and stamps the
// formula version into the store header.
func (s *Service) Apply(store *domain.Store) (Result, error) {
	stamp := domain.FormatTime(s.now())

	active := make([]*domain.Record, 0, len(store.Restaurants))
	for i := range store.Restaurants {
		if store.Restaurants[i].IsActive() {
			active = append(active, &store.Restaurants[i])
		}
	}

	res := Result{Version: s.Version(), Records: len(active)}
	res.EngagementChanged = s.engagement.Adjust(active)

	for _, r := range active {
		score, ok := s.sentiment.Score(r)
		if !ok {
			res.SentimentUnchanged++
			continue
		}
		if r.SentimentScore == nil || *r.SentimentScore != score {
			r.SentimentScore = domain.Float64(score)
			r.UpdatedAt = stamp
			res.SentimentChanged++
		}
	}

	if err := store.SetMeta(VersionKey, res.Version); err != nil {
		return res, err
	}
	return res, nil
}
