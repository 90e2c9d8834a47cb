// Package index projects the record store into the slim serving document
// the list view loads first.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

type recordStore interface {
	Load(ctx context.Context) (*domain.Store, error)
}

// Writer persists the encoded index.
type Writer interface {
	WriteIndex(ctx context.Context, data []byte) error
}

// passThrough lists the stored keys copied verbatim when present.
var passThrough = []string{
	"cuisine", "region", "city", "price_range", "google_rating", "verified", "address", "semantic_tags",
}

// Options bounds the per-record collections of the index.
type Options struct {
	RecommendationsMax int
	TimeseriesMonths   int
	PostDetailsMax     int
}

// Result describes a generated index.
type Result struct {
	Records     int
	Excluded    int
	SourceBytes int
	IndexBytes  int
	Data        []byte
}

// Reduction is the share of bytes saved relative to the source, in percent.
func (r Result) Reduction() int {
	if r.SourceBytes == 0 {
		return 0
	}
	return int(math.Round((1 - float64(r.IndexBytes)/float64(r.SourceBytes)) * 100))
}

// Generator builds and writes the slim index.
type Generator struct {
	log   *slog.Logger
	store recordStore
	out   Writer
	opts  Options
}

// NewGenerator creates a Generator.
func NewGenerator(log *slog.Logger, store recordStore, out Writer, opts Options) *Generator {
	if opts.RecommendationsMax <= 0 {
		opts.RecommendationsMax = 3
	}
	if opts.TimeseriesMonths <= 0 {
		opts.TimeseriesMonths = 24
	}
	if opts.PostDetailsMax <= 0 {
		opts.PostDetailsMax = 5
	}
	return &Generator{
		log:   log.With("stage", "index"),
		store: store,
		out:   out,
		opts:  opts,
	}
}

// Run loads the store, builds the index and writes it.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	store, err := g.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("index.Run: load: %w", err)
	}

	source, err := domain.EncodeStore(store)
	if err != nil {
		return Result{}, fmt.Errorf("index.Run: %w", err)
	}

	idx := Build(store, g.opts)
	data, err := json.Marshal(idx)
	if err != nil {
		return Result{}, fmt.Errorf("index.Run: encode: %w", err)
	}

	if err := g.out.WriteIndex(ctx, data); err != nil {
		return Result{}, fmt.Errorf("index.Run: write: %w", err)
	}

	res := Result{
		Records:     idx.TotalRestaurants,
		Excluded:    store.Count() - idx.TotalRestaurants,
		SourceBytes: len(source),
		IndexBytes:  len(data),
		Data:        data,
	}
	g.log.InfoContext(ctx, "index generated",
		slog.Int("restaurants", res.Records),
		slog.Int("excluded", res.Excluded),
		slog.Int("source_bytes", res.SourceBytes),
		slog.Int("index_bytes", res.IndexBytes),
		slog.Int("reduction_pct", res.Reduction()),
	)
	return res, nil
}

// Build projects store into a SlimIndex. Merged, rejected and unreviewed
// records are left out.
func Build(store *domain.Store, opts Options) domain.SlimIndex {
	out := domain.SlimIndex{
		Version:     store.Version(),
		UpdatedAt:   store.UpdatedAt,
		Restaurants: []domain.SlimRecord{},
	}
	for i := range store.Restaurants {
		r := &store.Restaurants[i]
		if !r.IsActive() || r.NeedsReview() {
			continue
		}
		out.Restaurants = append(out.Restaurants, slim(r, opts))
	}
	out.TotalRestaurants = len(out.Restaurants)
	return out
}

func slim(r *domain.Record, opts Options) domain.SlimRecord {
	s := domain.SlimRecord{
		ID:              r.ID,
		Name:            r.Name,
		NameEN:          r.NameEN,
		TotalEngagement: r.TotalEngagement,
		MentionCount:    r.MentionCount,
		SentimentScore:  r.SentimentScore,
		Recommendations: head(r.Recommendations, opts.RecommendationsMax),
		Timeseries:      tail(r.Timeseries, opts.TimeseriesMonths),
		PostDetails:     topPosts(r.PostDetails, opts.PostDetailsMax),
	}

	fields := map[string]*json.RawMessage{
		"cuisine":       &s.Cuisine,
		"region":        &s.Region,
		"city":          &s.City,
		"price_range":   &s.PriceRange,
		"google_rating": &s.GoogleRating,
		"verified":      &s.Verified,
		"address":       &s.Address,
		"semantic_tags": &s.SemanticTags,
	}
	for _, key := range passThrough {
		if v, ok := r.Extra[key]; ok {
			*fields[key] = v
		}
	}
	return s
}

// head, tail and topPosts return nil for empty input so the field is left
// out of the index.
func head[T any](items []T, n int) []T {
	if len(items) == 0 {
		return nil
	}
	if len(items) > n {
		items = items[:n]
	}
	return append(make([]T, 0, len(items)), items...)
}

func tail[T any](items []T, n int) []T {
	if len(items) == 0 {
		return nil
	}
	if len(items) > n {
		items = items[len(items)-n:]
	}
	return append(make([]T, 0, len(items)), items...)
}

func topPosts(details []domain.PostDetail, n int) []domain.SlimPostDetail {
	if len(details) == 0 {
		return nil
	}
	sorted := domain.SortPostDetails(append([]domain.PostDetail(nil), details...), n)
	out := make([]domain.SlimPostDetail, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, domain.SlimPostDetail{
			PostID:             p.PostID,
			Title:              p.Title,
			Date:               p.Date,
			Engagement:         p.Engagement,
			AdjustedEngagement: p.AdjustedEngagement,
		})
	}
	return out
}
