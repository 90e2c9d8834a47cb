package verify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/backup"
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

var testBackup = backup.Handle{ID: "pipeline_x", Path: "/tmp/backups/pipeline_x.json"}

func newTestVerifier(store recordStore) *Verifier {
	return NewVerifier(slog.Default(), store, WithClock(func() time.Time {
		return time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)
	}))
}

func records(n int) []domain.Record {
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = domain.Record{ID: fmt.Sprintf("r%d", i), Name: fmt.Sprintf("Restaurant %d", i), TotalEngagement: 1}
	}
	return out
}

func checkByName(t *testing.T, r Report, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return Check{}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(s *domain.Store)
		before    int
		failCheck string
	}{
		{name: "all pass", before: 3},
		{name: "count regression", before: 4, failCheck: CheckCount},
		{name: "empty name", before: 3, failCheck: CheckNames, mutate: func(s *domain.Store) { s.Restaurants[1].Name = "  " }},
		{name: "merged may lack name", before: 3, mutate: func(s *domain.Store) {
			s.Restaurants[1].Name = ""
			s.Restaurants[1].Status = domain.StatusDuplicateMerged
		}},
		{name: "missing id", before: 3, failCheck: CheckIDs, mutate: func(s *domain.Store) { s.Restaurants[0].ID = "" }},
		{name: "duplicate id across merged", before: 3, failCheck: CheckIDs, mutate: func(s *domain.Store) {
			s.Restaurants[2].ID = "r0"
			s.Restaurants[2].Status = domain.StatusDuplicateMerged
		}},
		{name: "engagement within tolerance", before: 3, mutate: func(s *domain.Store) {
			s.Restaurants[0].TotalEngagement = 80.5
			s.Restaurants[0].PostDetails = []domain.PostDetail{
				{PostID: "a", AdjustedEngagement: domain.Float64(50)},
				{PostID: "b", AdjustedEngagement: domain.Float64(30)},
			}
		}},
		{name: "engagement mismatch", before: 3, failCheck: CheckEngagement, mutate: func(s *domain.Store) {
			s.Restaurants[0].TotalEngagement = 100
			s.Restaurants[0].PostDetails = []domain.PostDetail{
				{PostID: "a", AdjustedEngagement: domain.Float64(50)},
				{PostID: "b", AdjustedEngagement: domain.Float64(30)},
			}
		}},
		{name: "tiny sums use epsilon", before: 3, failCheck: CheckEngagement, mutate: func(s *domain.Store) {
			s.Restaurants[0].TotalEngagement = 0.002
			s.Restaurants[0].PostDetails = []domain.PostDetail{{PostID: "a", AdjustedEngagement: domain.Float64(0)}}
		}},
		{name: "partial adjusted falls back to non-negative", before: 3, mutate: func(s *domain.Store) {
			s.Restaurants[0].TotalEngagement = 1000
			s.Restaurants[0].PostDetails = []domain.PostDetail{
				{PostID: "a", AdjustedEngagement: domain.Float64(1)},
				{PostID: "b", Engagement: 4},
			}
		}},
		{name: "negative total", before: 3, failCheck: CheckEngagement, mutate: func(s *domain.Store) { s.Restaurants[2].TotalEngagement = -1 }},
		{name: "merged mismatch ignored", before: 3, mutate: func(s *domain.Store) {
			s.Restaurants[0].Status = domain.StatusDuplicateMerged
			s.Restaurants[0].TotalEngagement = 100
			s.Restaurants[0].PostDetails = []domain.PostDetail{{PostID: "a", AdjustedEngagement: domain.Float64(1)}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &domain.Store{Restaurants: records(3)}
			if tt.mutate != nil {
				tt.mutate(store)
			}

			report := Evaluate(store, nil, tt.before)

			require.Len(t, report.Checks, 6)
			if tt.failCheck == "" {
				assert.True(t, report.Passed, "failed: %+v", report.Failed())
				return
			}
			assert.False(t, report.Passed)
			failed := report.Failed()
			require.Len(t, failed, 1)
			assert.Equal(t, tt.failCheck, failed[0].Name)
			assert.NotEmpty(t, failed[0].Reason)
		})
	}
}

func TestEvaluate_LoadErrors(t *testing.T) {
	t.Parallel()

	report := Evaluate(nil, fmt.Errorf("load: %w", domain.ErrMalformedStore), 0)
	assert.False(t, report.Passed)
	assert.False(t, checkByName(t, report, CheckParse).Passed)
	assert.Len(t, report.Failed(), 6)

	report = Evaluate(nil, domain.ErrRestaurantsNotList, 0)
	assert.True(t, checkByName(t, report, CheckParse).Passed)
	assert.False(t, checkByName(t, report, CheckList).Passed)
	assert.Len(t, report.Failed(), 5)
}

func TestVerifier_Run_RequiresBackup(t *testing.T) {
	t.Parallel()

	_, err := newTestVerifier(&mockStore{}).Run(context.Background(), Precondition{BeforeCount: 1})
	assert.ErrorIs(t, err, domain.ErrNoBackup)
}

func TestVerifier_Run_PassStampsHeader(t *testing.T) {
	t.Parallel()

	var saved *domain.Store
	store := &mockStore{
		LoadFunc: func(context.Context) (*domain.Store, error) {
			return &domain.Store{TotalRestaurants: 1, Restaurants: records(3)}, nil
		},
		SaveFunc: func(_ context.Context, s *domain.Store) error {
			saved = s
			return nil
		},
	}

	report, err := newTestVerifier(store).Run(context.Background(), Precondition{BeforeCount: 3, Backup: testBackup})
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Equal(t, testBackup, report.Backup)
	require.NotNil(t, saved)
	assert.Equal(t, 3, saved.TotalRestaurants)
	assert.Equal(t, "2025-07-04T12:00:00.000Z", saved.VerifiedAt)
}

// Scenario: 79 records before and after, one record's total disagrees with
// its adjusted post engagement by more than 1%.
func TestVerifier_Run_FailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "db.json")
	repo := filestore.New(path)
	s := &domain.Store{Restaurants: records(79)}
	s.Restaurants[10].TotalEngagement = 100
	s.Restaurants[10].PostDetails = []domain.PostDetail{
		{PostID: "a", Engagement: 60, AdjustedEngagement: domain.Float64(60)},
		{PostID: "b", Engagement: 20, AdjustedEngagement: domain.Float64(20)},
	}
	require.NoError(t, repo.Save(ctx, s))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	report, err := newTestVerifier(repo).Run(ctx, Precondition{BeforeCount: 79, Backup: testBackup})
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.Equal(t, 79, report.Count)
	assert.Equal(t, CheckEngagement, report.Failed()[0].Name)
	assert.Contains(t, report.Failed()[0].Reason, "r10")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestVerifier_Run_MalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"restaurants": [`), 0o644))

	report, err := newTestVerifier(filestore.New(path)).Run(context.Background(), Precondition{Backup: testBackup})
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.False(t, checkByName(t, report, CheckParse).Passed)
}

func TestVerifier_Run_MissingStoreIsError(t *testing.T) {
	t.Parallel()

	repo := filestore.New(filepath.Join(t.TempDir(), "missing.json"))
	_, err := newTestVerifier(repo).Run(context.Background(), Precondition{Backup: testBackup})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
