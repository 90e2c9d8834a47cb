// Package publish delivers generated artifacts to where the serving layer
// reads them.
package publish

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
)

// Publisher delivers one named artifact.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte) error
}

// FilePublisher writes artifacts into a local directory.
type FilePublisher struct {
	dir string
}

// NewFilePublisher creates a FilePublisher rooted at dir.
func NewFilePublisher(dir string) *FilePublisher {
	return &FilePublisher{dir: dir}
}

// Publish replaces dir/name atomically.
func (p *FilePublisher) Publish(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean(name)
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("publish: invalid artifact name %q", name)
	}
	if err := filestore.WriteAtomic(filepath.Join(p.dir, clean), data, 0o644); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
