package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExtractor struct {
	ExtractFunc func(ctx context.Context, post Post) ([]domain.Candidate, error)
	seen        []string
}

func (m *mockExtractor) Extract(ctx context.Context, post Post) ([]domain.Candidate, error) {
	m.seen = append(m.seen, post.ID)
	return m.ExtractFunc(ctx, post)
}

func writeRaw(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRaw(t, dir, "b.json", `{"id": "b"}`)
	writeRaw(t, dir, "a.json", `{"id": "a"}`)
	writeRaw(t, dir, "c.json", `{"id": "c"}`)
	writeRaw(t, dir, "d.json", `{broken`)
	writeRaw(t, dir, "e.json", `{"id": "e"}`)
	writeRaw(t, dir, "notes.txt", `ignored`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	ex := &mockExtractor{ExtractFunc: func(_ context.Context, p Post) ([]domain.Candidate, error) {
		switch p.ID {
		case "a":
			return []domain.Candidate{p.candidate("川味轩"), p.candidate("Sushi Ran")}, nil
		case "b":
			return []domain.Candidate{p.candidate("川 味 轩")}, nil
		case "c":
			return nil, nil
		default:
			return nil, errors.New("boom")
		}
	}}

	res, err := NewRunner(slog.Default(), ex).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "e"}, ex.seen)
	assert.Equal(t, 5, res.Files)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Errors)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "川味轩", res.Candidates[0].Name)
	assert.Equal(t, "a", res.Candidates[0].SourcePostID)
	assert.Equal(t, "Sushi Ran", res.Candidates[1].Name)
}

func TestRunner_MaxPosts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, id := range []string{"1", "2", "3"} {
		writeRaw(t, dir, id+".json", `{"id": "`+id+`"}`)
	}
	ex := &mockExtractor{ExtractFunc: func(context.Context, Post) ([]domain.Candidate, error) { return nil, nil }}

	res, err := NewRunner(slog.Default(), ex, WithMaxPosts(2)).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, []string{"1", "2"}, ex.seen)
}

func TestRunner_MissingDir(t *testing.T) {
	t.Parallel()

	ex := &mockExtractor{}
	res, err := NewRunner(slog.Default(), ex).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, res.Files)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)
}

func TestRunner_ItemTimeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRaw(t, dir, "slow.json", `{"id": "slow"}`)
	writeRaw(t, dir, "fast.json", `{"id": "fast"}`)

	ex := &mockExtractor{ExtractFunc: func(ctx context.Context, p Post) ([]domain.Candidate, error) {
		if p.ID == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []domain.Candidate{p.candidate("鼎泰丰")}, nil
	}}

	res, err := NewRunner(slog.Default(), ex, WithItemTimeout(20*time.Millisecond)).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Candidates, 1)
}

func TestRunner_Cancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRaw(t, dir, "a.json", `{"id": "a"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &mockExtractor{}
	_, err := NewRunner(slog.Default(), ex, WithDelay(time.Second)).Run(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ex.seen)
}
