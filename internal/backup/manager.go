// Package backup snapshots the record store before a mutating run and
// restores it when verification fails.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

type recordStore interface {
	Load(ctx context.Context) (*domain.Store, error)
	Save(ctx context.Context, s *domain.Store) error
}

// Handle identifies one snapshot. The zero Handle means no backup was taken.
type Handle struct {
	ID        string
	Path      string
	Count     int
	CreatedAt time.Time
}

// IsZero reports whether h refers to no snapshot.
func (h Handle) IsZero() bool { return h.Path == "" }

// Manager writes snapshots as store documents into a directory.
type Manager struct {
	log   *slog.Logger
	store recordStore
	dir   string
	keep  int
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for snapshot names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager that keeps the newest keep snapshots in dir.
func NewManager(log *slog.Logger, store recordStore, dir string, keep int, opts ...Option) *Manager {
	m := &Manager{
		log:   log.With("component", "backup"),
		store: store,
		dir:   dir,
		keep:  keep,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

const timestampLayout = "20060102T150405.000000000Z"

// Begin snapshots the current store before operation op mutates it.
func (m *Manager) Begin(ctx context.Context, op string) (Handle, error) {
	store, err := m.store.Load(ctx)
	if err != nil {
		return Handle{}, fmt.Errorf("backup.Begin: load: %w", err)
	}

	data, err := domain.EncodeStore(store)
	if err != nil {
		return Handle{}, fmt.Errorf("backup.Begin: %w", err)
	}

	created := m.now().UTC()
	id := sanitizeOp(op) + "_" + created.Format(timestampLayout)
	path := filepath.Join(m.dir, id+".json")

	if err := filestore.WriteAtomic(path, data, 0o644); err != nil {
		return Handle{}, fmt.Errorf("backup.Begin: %w", err)
	}

	h := Handle{ID: id, Path: path, Count: store.Count(), CreatedAt: created}
	m.log.InfoContext(ctx, "backup created",
		slog.String("path", path),
		slog.Int("records", h.Count),
	)
	return h, nil
}

// Restore writes the snapshot back through the repository.
func (m *Manager) Restore(ctx context.Context, h Handle) error {
	if h.IsZero() {
		return fmt.Errorf("backup.Restore: %w", domain.ErrNoBackup)
	}

	store, err := filestore.New(h.Path).Load(ctx)
	if err != nil {
		return fmt.Errorf("backup.Restore: %w", err)
	}
	if err := m.store.Save(ctx, store); err != nil {
		return fmt.Errorf("backup.Restore: save: %w", err)
	}

	m.log.WarnContext(ctx, "store restored from backup",
		slog.String("path", h.Path),
		slog.Int("records", store.Count()),
	)
	return nil
}

// Commit prunes old snapshots after a successful run.
func (m *Manager) Commit(ctx context.Context) (int, error) {
	handles, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(handles) <= m.keep {
		return 0, nil
	}

	removed := 0
	for _, h := range handles[m.keep:] {
		if err := os.Remove(h.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("backup.Commit: remove %s: %w", h.Path, err)
		}
		removed++
	}
	m.log.InfoContext(ctx, "old backups pruned", slog.Int("removed", removed), slog.Int("kept", m.keep))
	return removed, nil
}

// List returns snapshots newest first. A missing directory lists nothing.
func (m *Manager) List() ([]Handle, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup.List: %w", err)
	}

	var handles []Handle
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		created, ok := parseCreated(id)
		if !ok {
			continue
		}
		handles = append(handles, Handle{ID: id, Path: filepath.Join(m.dir, name), CreatedAt: created})
	}

	sort.Slice(handles, func(i, j int) bool {
		if !handles[i].CreatedAt.Equal(handles[j].CreatedAt) {
			return handles[i].CreatedAt.After(handles[j].CreatedAt)
		}
		return handles[i].ID > handles[j].ID
	})
	return handles, nil
}

// Open returns the handle for an existing snapshot file.
func Open(path string) (Handle, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Handle{}, fmt.Errorf("backup %s: %w", path, domain.ErrNotFound)
		}
		return Handle{}, fmt.Errorf("backup %s: %w", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), ".json")
	created, _ := parseCreated(id)
	return Handle{ID: id, Path: path, CreatedAt: created}, nil
}

func parseCreated(id string) (time.Time, bool) {
	i := strings.LastIndexByte(id, '_')
	if i < 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(timestampLayout, id[i+1:])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func sanitizeOp(op string) string {
	op = strings.TrimSpace(op)
	if op == "" {
		return "backup"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, op)
}
