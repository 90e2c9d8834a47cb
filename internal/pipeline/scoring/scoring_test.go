package scoring

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	LoadFunc func(ctx context.Context) (*domain.Store, error)
	SaveFunc func(ctx context.Context, s *domain.Store) error
}

func (m *mockStore) Load(ctx context.Context) (*domain.Store, error) { return m.LoadFunc(ctx) }

func (m *mockStore) Save(ctx context.Context, s *domain.Store) error { return m.SaveFunc(ctx, s) }

func newTestService(t *testing.T, store recordStore, sentiment, engagement string) *Service {
	t.Helper()
	s, err := NewService(slog.Default(), store, sentiment, engagement, WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return s
}

func TestSentimentFormulas(t *testing.T) {
	t.Parallel()

	rec := &domain.Record{PostDetails: []domain.PostDetail{
		{PostID: "a", Engagement: 10, Sentiment: domain.SentimentPositive, Date: "2025-02-01"},
		{PostID: "b", Engagement: 30, Sentiment: domain.SentimentNegative, Date: "2025-01-01"},
		{PostID: "c", Engagement: 10, Sentiment: domain.SentimentNeutral, Date: "2025-03-01"},
		{PostID: "d", Engagement: 10, Sentiment: domain.SentimentPositive, AdjustedEngagement: domain.Float64(0)},
		{PostID: "e", Engagement: 5},
	}}

	tests := []struct {
		name    string
		formula string
		rec     *domain.Record
		want    float64
		wantOK  bool
	}{
		{name: "weighted mean", formula: SentimentWeighted, rec: rec, want: 0.3, wantOK: true},
		{name: "smoothed share", formula: SentimentSmoothed, rec: rec, want: 0.72, wantOK: true},
		{name: "weighted no labels", formula: SentimentWeighted, rec: &domain.Record{PostDetails: []domain.PostDetail{{Engagement: 3}}}},
		{name: "smoothed no labels", formula: SentimentSmoothed, rec: &domain.Record{}},
		{
			name: "ewma single positive", formula: SentimentEWMA, want: 0.55, wantOK: true,
			rec: &domain.Record{PostDetails: []domain.PostDetail{
				{Sentiment: domain.SentimentNeutral},
				{Sentiment: domain.SentimentPositive},
			}},
		},
		{name: "ewma no signal", formula: SentimentEWMA, rec: &domain.Record{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewSentimentFormula(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.formula, f.Name())

			got, ok := f.Score(tt.rec)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNewFormula_Unknown(t *testing.T) {
	t.Parallel()

	_, err := NewSentimentFormula("vibes-v9")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewEngagementFormula("likes-only")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewService(slog.Default(), nil, "vibes-v9", EngagementRaw)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLogSqrt_Adjust(t *testing.T) {
	t.Parallel()

	a := &domain.Record{ID: "a", TotalEngagement: 500, PostDetails: []domain.PostDetail{
		{PostID: "shared", Engagement: 99},
		{PostID: "solo", Engagement: 99},
	}}
	b := &domain.Record{ID: "b", TotalEngagement: 3, PostDetails: []domain.PostDetail{
		{PostID: "shared", Engagement: 99},
	}}
	empty := &domain.Record{ID: "c", TotalEngagement: 42}

	f, err := NewEngagementFormula(EngagementLogSqrt)
	require.NoError(t, err)

	changed := f.Adjust([]*domain.Record{a, b, empty})
	assert.Equal(t, 2, changed)

	solo := domain.Round2(math.Log(100))
	shared := domain.Round2(math.Log(100) / math.Sqrt2)

	require.NotNil(t, a.PostDetails[0].AdjustedEngagement)
	assert.Equal(t, "solo", a.PostDetails[0].PostID)
	assert.InDelta(t, solo, *a.PostDetails[0].AdjustedEngagement, 1e-9)
	assert.InDelta(t, shared, *a.PostDetails[1].AdjustedEngagement, 1e-9)
	assert.InDelta(t, solo+shared, a.TotalEngagement, 1e-9)
	assert.JSONEq(t, `2`, string(a.PostDetails[1].Extra[restaurantCountKey]))
	assert.JSONEq(t, `1`, string(a.PostDetails[0].Extra[restaurantCountKey]))

	assert.InDelta(t, shared, b.TotalEngagement, 1e-9)
	assert.Equal(t, 42.0, empty.TotalEngagement)

	// A second pass over the same input is stable.
	assert.Equal(t, 0, f.Adjust([]*domain.Record{a, b, empty}))
}

func TestRaw_Adjust(t *testing.T) {
	t.Parallel()

	r := &domain.Record{TotalEngagement: 7, PostDetails: []domain.PostDetail{{PostID: "p", Engagement: 3}}}
	f, err := NewEngagementFormula(EngagementRaw)
	require.NoError(t, err)

	assert.Equal(t, 0, f.Adjust([]*domain.Record{r}))
	assert.Equal(t, 7.0, r.TotalEngagement)
	assert.Nil(t, r.PostDetails[0].AdjustedEngagement)
}

func TestService_Apply(t *testing.T) {
	t.Parallel()

	store := &domain.Store{Restaurants: []domain.Record{
		{ID: "a", Name: "A", PostDetails: []domain.PostDetail{
			{PostID: "p1", Engagement: 99, Sentiment: domain.SentimentPositive},
		}},
		{ID: "m", Name: "M", Status: domain.StatusDuplicateMerged, TotalEngagement: 11, PostDetails: []domain.PostDetail{
			{PostID: "p1", Engagement: 99, Sentiment: domain.SentimentNegative},
		}},
		{ID: "n", Name: "N", SentimentScore: domain.Float64(0.4)},
	}}

	res, err := newTestService(t, nil, SentimentWeighted, EngagementLogSqrt).Apply(store)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.EngagementChanged)
	assert.Equal(t, 1, res.SentimentChanged)
	assert.Equal(t, 1, res.SentimentUnchanged)

	a := store.Restaurants[0]
	require.NotNil(t, a.SentimentScore)
	assert.Equal(t, 1.0, *a.SentimentScore)
	assert.InDelta(t, domain.Round2(math.Log(100)), a.TotalEngagement, 1e-9)
	assert.Equal(t, "2025-06-01T00:00:00.000Z", a.UpdatedAt)

	// Retired records are not recomputed.
	assert.Equal(t, 11.0, store.Restaurants[1].TotalEngagement)
	assert.Nil(t, store.Restaurants[1].SentimentScore)
	assert.Equal(t, 0.4, *store.Restaurants[2].SentimentScore)

	assert.JSONEq(t, `{"sentiment":"weighted-v2","engagement":"log-sqrt-v1"}`, string(store.Meta[VersionKey]))
}

func TestService_Run(t *testing.T) {
	t.Parallel()

	var saved *domain.Store
	store := &mockStore{
		LoadFunc: func(context.Context) (*domain.Store, error) {
			return &domain.Store{Restaurants: []domain.Record{{ID: "a", Name: "A"}}}, nil
		},
		SaveFunc: func(_ context.Context, s *domain.Store) error {
			saved = s
			return nil
		},
	}

	res, err := newTestService(t, store, SentimentSmoothed, EngagementRaw).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Version{Sentiment: SentimentSmoothed, Engagement: EngagementRaw}, res.Version)
	require.NotNil(t, saved)
	assert.Contains(t, saved.Meta, VersionKey)
}
