package minio

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// MirrorReader implements memory.SourceReader against the mirror root: a
// byte-range GetObject read, per §6.3's "mirror-root-first resolution"
// contract: the composite reader tries it before the notebook-root reader.
type MirrorReader struct {
	client *Client
	logger logging.Logger
}

// NewMirrorReader builds a MirrorReader over client.
func NewMirrorReader(client *Client, logger logging.Logger) *MirrorReader {
	return &MirrorReader{client: client, logger: logger}
}

// ReadRange reads length bytes starting at offset from mirrorKey within the
// mirror-root bucket. path is ignored; mirrorKey is required.
func (r *MirrorReader) ReadRange(ctx context.Context, path, mirrorKey string, offset, length int) ([]byte, error) {
	if mirrorKey == "" {
		return nil, errors.InvalidParam("mirrorKey is required for mirror-root reads")
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(int64(offset), int64(offset+length-1)); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "invalid byte range")
	}

	obj, err := r.client.api.GetObject(ctx, r.client.bucket, mirrorKey, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "mirror-root read failed")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "mirror-root read failed")
	}
	return data, nil
}

// Stat returns the size in bytes of mirrorKey within the mirror-root bucket.
func (r *MirrorReader) Stat(ctx context.Context, path, mirrorKey string) (int64, error) {
	if mirrorKey == "" {
		return 0, errors.InvalidParam("mirrorKey is required for mirror-root stat")
	}

	info, err := r.client.api.StatObject(ctx, r.client.bucket, mirrorKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return 0, errors.NotFound("mirror object not found: " + mirrorKey)
		}
		return 0, errors.Wrap(err, errors.CodeStorageError, "mirror-root stat failed")
	}
	return info.Size, nil
}
