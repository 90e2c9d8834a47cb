// Package filestore keeps the record store and pipeline artifacts as JSON
// files on local disk.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// Repo stores the whole record store in a single JSON document.
type Repo struct {
	path string
}

// New creates a file-backed record store at path.
func New(path string) *Repo {
	return &Repo{path: path}
}

// Path returns the location of the store document.
func (r *Repo) Path() string { return r.path }

// Load reads and parses the store. A missing file yields domain.ErrNotFound.
func (r *Repo) Load(ctx context.Context) (*domain.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("filestore.Load %s: %w", r.path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("filestore.Load %s: %w", r.path, err)
	}

	store, err := domain.DecodeStore(data)
	if err != nil {
		return nil, fmt.Errorf("filestore.Load %s: %w", r.path, err)
	}
	return store, nil
}

// Save writes the store atomically.
func (r *Repo) Save(ctx context.Context, s *domain.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := domain.EncodeStore(s)
	if err != nil {
		return fmt.Errorf("filestore.Save: %w", err)
	}
	if err := WriteAtomic(r.path, data, 0o644); err != nil {
		return fmt.Errorf("filestore.Save %s: %w", r.path, err)
	}
	return nil
}

// Size returns the size in bytes of the stored document.
func (r *Repo) Size() (int64, error) {
	fi, err := os.Stat(r.path)
	if err != nil {
		return 0, fmt.Errorf("filestore.Size %s: %w", r.path, err)
	}
	return fi.Size(), nil
}
