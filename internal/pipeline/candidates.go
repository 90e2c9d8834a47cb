package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// ReadCandidates loads the candidate artifact at path. The artifact is
// optional: a missing or malformed file logs a warning and yields no
// candidates. Any other read failure is returned.
func ReadCandidates(ctx context.Context, log *slog.Logger, path string) ([]domain.Candidate, error) {
	candidates, err := filestore.ReadCandidates(path)
	switch {
	case err == nil:
		return candidates, nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrMalformedInput):
		log.WarnContext(ctx, "no usable candidates, continuing without",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, nil
	default:
		return nil, err
	}
}
