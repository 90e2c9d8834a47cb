package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// indexSource is the slice of filestore.IndexFile the catalog reads.
type indexSource interface {
	Stat() (os.FileInfo, error)
	ReadIndex() ([]byte, os.FileInfo, error)
}

// Snapshot is one decoded version of the slim index.
type Snapshot struct {
	Index    *domain.SlimIndex
	LoadedAt time.Time
	byID     map[string]int
}

// Find returns the record with the given id.
func (s *Snapshot) Find(id string) (domain.SlimRecord, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.SlimRecord{}, false
	}
	return s.Index.Restaurants[i], true
}

// Catalog serves the slim index from disk and reloads it whenever the
// file's size or modification time changes. A reload failure keeps the
// previous snapshot in service; a file that failed to decode is not read
// again until it changes.
type Catalog struct {
	log *slog.Logger
	src indexSource
	now func() time.Time

	mu      sync.RWMutex
	current *Snapshot
	seen    fileKey
	seenErr error
}

// fileKey identifies one version of the index file.
type fileKey struct {
	modTime time.Time
	size    int64
	valid   bool
}

func keyOf(fi os.FileInfo) fileKey {
	return fileKey{modTime: fi.ModTime(), size: fi.Size(), valid: true}
}

func (k fileKey) same(fi os.FileInfo) bool {
	return k.valid && k.modTime.Equal(fi.ModTime()) && k.size == fi.Size()
}

// NewCatalog creates a Catalog. Nothing is read until the first request.
func NewCatalog(log *slog.Logger, src indexSource) *Catalog {
	return &Catalog{
		log: log.With("component", "catalog"),
		src: src,
		now: time.Now,
	}
}

// Snapshot returns the current index, reloading it if the file changed.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	fi, err := c.src.Stat()
	if err != nil {
		return c.stale(ctx, err)
	}

	c.mu.RLock()
	cur, seen, seenErr := c.current, c.seen.same(fi), c.seenErr
	c.mu.RUnlock()
	if seen {
		return lastKnown(cur, seenErr)
	}

	return c.reload(ctx)
}

// Ping reports whether a usable index is available.
func (c *Catalog) Ping(ctx context.Context) error {
	_, err := c.Snapshot(ctx)
	return err
}

func (c *Catalog) reload(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, fi, err := c.src.ReadIndex()
	if err != nil {
		return c.staleLocked(ctx, err)
	}
	if c.seen.same(fi) {
		return lastKnown(c.current, c.seenErr)
	}

	var idx domain.SlimIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		c.seen, c.seenErr = keyOf(fi), fmt.Errorf("%w: index: %v", domain.ErrMalformedStore, err)
		return c.staleLocked(ctx, c.seenErr)
	}
	if idx.Restaurants == nil {
		idx.Restaurants = []domain.SlimRecord{}
	}

	snap := &Snapshot{Index: &idx, LoadedAt: c.now(), byID: make(map[string]int, len(idx.Restaurants))}
	for i, r := range idx.Restaurants {
		if _, dup := snap.byID[r.ID]; !dup {
			snap.byID[r.ID] = i
		}
	}

	c.current, c.seen, c.seenErr = snap, keyOf(fi), nil
	c.log.InfoContext(ctx, "index loaded",
		slog.Int("restaurants", len(idx.Restaurants)),
		slog.String("updated_at", idx.UpdatedAt),
	)
	return snap, nil
}

// lastKnown answers for a file version that was already read.
func lastKnown(cur *Snapshot, seenErr error) (*Snapshot, error) {
	if seenErr != nil && cur == nil {
		return nil, fmt.Errorf("rest.Catalog: %w", seenErr)
	}
	return cur, nil
}

func (c *Catalog) stale(ctx context.Context, cause error) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleLocked(ctx, cause)
}

func (c *Catalog) staleLocked(ctx context.Context, cause error) (*Snapshot, error) {
	if c.current == nil {
		return nil, fmt.Errorf("rest.Catalog: %w", cause)
	}
	c.log.WarnContext(ctx, "index reload failed, serving previous version", slog.String("error", cause.Error()))
	return c.current, nil
}
