package backup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func seedStore(t *testing.T, names ...string) *filestore.Repo {
	t.Helper()
	repo := filestore.New(filepath.Join(t.TempDir(), "db.json"))
	s := &domain.Store{Restaurants: []domain.Record{}}
	for i, n := range names {
		s.Restaurants = append(s.Restaurants, domain.Record{ID: string(rune('a' + i)), Name: n})
	}
	require.NoError(t, repo.Save(context.Background(), s))
	return repo
}

func TestManager_BeginRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := seedStore(t, "川味轩", "Sushi Ran")
	clock := &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(slog.Default(), repo, t.TempDir(), 5, WithClock(clock.now))

	h, err := m.Begin(ctx, "pipeline")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Count)
	assert.FileExists(t, h.Path)
	assert.Contains(t, filepath.Base(h.Path), "pipeline_")

	// Damage the store, then restore.
	require.NoError(t, repo.Save(ctx, &domain.Store{Restaurants: []domain.Record{}}))
	require.NoError(t, m.Restore(ctx, h))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Restaurants, 2)
	assert.Equal(t, "川味轩", got.Restaurants[0].Name)
}

func TestManager_RestoreZeroHandle(t *testing.T) {
	t.Parallel()

	m := NewManager(slog.Default(), seedStore(t), t.TempDir(), 5)
	err := m.Restore(context.Background(), Handle{})
	assert.ErrorIs(t, err, domain.ErrNoBackup)
}

func TestManager_BeginMissingStore(t *testing.T) {
	t.Parallel()

	repo := filestore.New(filepath.Join(t.TempDir(), "missing.json"))
	m := NewManager(slog.Default(), repo, t.TempDir(), 5)
	_, err := m.Begin(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_CommitPrunesOldest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	clock := &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(slog.Default(), seedStore(t, "a"), dir, 2, WithClock(clock.now))

	var handles []Handle
	for range 4 {
		h, err := m.Begin(ctx, "metrics")
		require.NoError(t, err)
		handles = append(handles, h)
	}
	// Foreign files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	removed, err := m.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, handles[3].ID, list[0].ID)
	assert.Equal(t, handles[2].ID, list[1].ID)
	assert.NoFileExists(t, handles[0].Path)
}

func TestManager_ListMissingDir(t *testing.T) {
	t.Parallel()

	m := NewManager(slog.Default(), seedStore(t), filepath.Join(t.TempDir(), "none"), 5)
	list, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	path := filepath.Join(t.TempDir(), "verify_20250301T120000.000000000Z.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"restaurants":[]}`), 0o644))
	h, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "verify_20250301T120000.000000000Z", h.ID)
	assert.Equal(t, 2025, h.CreatedAt.Year())
}

func TestSanitizeOp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "backup", sanitizeOp("  "))
	assert.Equal(t, "update-metrics", sanitizeOp("update metrics"))
	assert.Equal(t, "a-b", sanitizeOp("a/b"))
}
