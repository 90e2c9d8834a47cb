package filestore

import (
	"context"
	"fmt"
	"os"
)

// IndexFile is a local slim index document.
type IndexFile struct {
	path string
}

// NewIndexFile creates an IndexFile at path.
func NewIndexFile(path string) *IndexFile {
	return &IndexFile{path: path}
}

// Path returns the location of the index document.
func (f *IndexFile) Path() string { return f.path }

// WriteIndex replaces the index document atomically.
func (f *IndexFile) WriteIndex(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteAtomic(f.path, data, 0o644); err != nil {
		return fmt.Errorf("filestore.WriteIndex %s: %w", f.path, err)
	}
	return nil
}

// Stat reports the current size and modification time of the index.
func (f *IndexFile) Stat() (os.FileInfo, error) {
	fi, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("filestore.Stat %s: %w", f.path, err)
	}
	return fi, nil
}

// ReadIndex returns the raw index document.
func (f *IndexFile) ReadIndex() ([]byte, os.FileInfo, error) {
	fi, err := os.Stat(f.path)
	if err != nil {
		return nil, nil, fmt.Errorf("filestore.ReadIndex %s: %w", f.path, err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, nil, fmt.Errorf("filestore.ReadIndex %s: %w", f.path, err)
	}
	return data, fi, nil
}
