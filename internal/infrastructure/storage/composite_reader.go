// Package storage composes the mirror-root and notebook-root readers into
// the single memory.SourceReader the Context Inflator depends on, per
// §4.7 step 3: "try the mirror first... fall back to the original
// filesystem path."
package storage

import (
	"context"

	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// RangeReader is the narrow (offset, length) -> bytes contract shared by the
// mirror and notebook readers.
type RangeReader interface {
	ReadRange(ctx context.Context, path, mirrorKey string, offset, length int) ([]byte, error)
	Stat(ctx context.Context, path, mirrorKey string) (int64, error)
}

// CompositeReader tries mirror first and falls back to notebook, giving the
// Context Inflator a single memory.SourceReader regardless of which backing
// store actually holds a given Compound's bytes.
type CompositeReader struct {
	mirror   RangeReader
	notebook RangeReader
	logger   logging.Logger
}

// NewCompositeReader builds a CompositeReader. mirror may be nil when no
// mirror root is configured, in which case reads go straight to notebook.
func NewCompositeReader(mirror, notebook RangeReader, logger logging.Logger) *CompositeReader {
	return &CompositeReader{mirror: mirror, notebook: notebook, logger: logger}
}

func (r *CompositeReader) ReadRange(ctx context.Context, path, mirrorKey string, offset, length int) ([]byte, error) {
	if r.mirror != nil && mirrorKey != "" {
		data, err := r.mirror.ReadRange(ctx, path, mirrorKey, offset, length)
		if err == nil {
			return data, nil
		}
		r.logger.Warn("mirror-root read failed, falling back to notebook root",
			logging.String("path", path), logging.String("mirror_key", mirrorKey), logging.Err(err))
	}

	if r.notebook == nil {
		return nil, errors.New(errors.CodeSourceUnavailable, "no notebook reader configured")
	}
	return r.notebook.ReadRange(ctx, path, mirrorKey, offset, length)
}

func (r *CompositeReader) Stat(ctx context.Context, path, mirrorKey string) (int64, error) {
	if r.mirror != nil && mirrorKey != "" {
		size, err := r.mirror.Stat(ctx, path, mirrorKey)
		if err == nil {
			return size, nil
		}
		r.logger.Warn("mirror-root stat failed, falling back to notebook root",
			logging.String("path", path), logging.String("mirror_key", mirrorKey), logging.Err(err))
	}

	if r.notebook == nil {
		return 0, errors.New(errors.CodeSourceUnavailable, "no notebook reader configured")
	}
	return r.notebook.Stat(ctx, path, mirrorKey)
}
