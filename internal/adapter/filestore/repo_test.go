package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRepo_LoadMissing(t *testing.T) {
	t.Parallel()

	repo := filestore.New(filepath.Join(t.TempDir(), "db.json"))
	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_LoadMalformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"invalid json", `{"restaurants": [`, domain.ErrMalformedStore},
		{"restaurants not a list", `{"restaurants": "x"}`, domain.ErrRestaurantsNotList},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.name+".json")
		writeFile(t, path, tt.content)

		_, err := filestore.New(path).Load(context.Background())
		assert.ErrorIs(t, err, tt.want, tt.name)
	}
}

func TestRepo_SaveThenLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "db.json")
	repo := filestore.New(path)
	ctx := context.Background()

	store := &domain.Store{
		TotalRestaurants: 1,
		Restaurants: []domain.Record{
			{ID: "r1", Name: "Jun Bistro", MentionCount: 2, TotalEngagement: 30, Sources: []string{"p1"}},
		},
	}
	require.NoError(t, repo.Save(ctx, store))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Restaurants, 1)
	assert.Equal(t, "Jun Bistro", got.Restaurants[0].Name)
	assert.Equal(t, []string{"p1"}, got.Restaurants[0].Sources)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestRepo_SaveHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := filestore.New(path).Save(ctx, &domain.Store{})
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCandidates_ReadWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.json")

	_, err := filestore.ReadCandidates(path)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	writeFile(t, path, "not json")
	_, err = filestore.ReadCandidates(path)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	in := []domain.Candidate{{Name: "Jun", SourcePostID: "p1", Engagement: 10}}
	require.NoError(t, filestore.WriteCandidates(path, in))

	out, err := filestore.ReadCandidates(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
