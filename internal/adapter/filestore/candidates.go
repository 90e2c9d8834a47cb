package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// ReadCandidates reads a candidate list artifact.
// A missing file yields domain.ErrNotFound and unparsable content yields
// domain.ErrMalformedInput; callers treat both as "nothing to do".
func ReadCandidates(path string) ([]domain.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("candidates %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("candidates %s: %w", path, err)
	}

	var out []domain.Candidate
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("candidates %s: %w: %v", path, domain.ErrMalformedInput, err)
	}
	return out, nil
}

// WriteCandidates writes a candidate list artifact atomically.
func WriteCandidates(path string, candidates []domain.Candidate) error {
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	return WriteAtomic(path, data, 0o644)
}
