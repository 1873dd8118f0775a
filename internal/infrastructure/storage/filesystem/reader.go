// Package filesystem implements memory.SourceReader against the local
// notebook root: positional reads of files on disk, per §6.3's filesystem
// contract.
package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/RSBalchII/anchor/pkg/errors"
)

// NotebookReader resolves relative paths against notebookRoot and performs
// byte-exact positional reads against the local filesystem.
type NotebookReader struct {
	notebookRoot string
}

// NewNotebookReader builds a NotebookReader rooted at notebookRoot.
func NewNotebookReader(notebookRoot string) *NotebookReader {
	return &NotebookReader{notebookRoot: notebookRoot}
}

func (r *NotebookReader) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.notebookRoot, path)
}

// ReadRange opens path read-only and reads up to length bytes starting at
// offset via a positional read; fewer bytes are returned when the file ends
// first. mirrorKey is ignored; the mirror root is
// tried first by the composite reader that wraps this one.
func (r *NotebookReader) ReadRange(ctx context.Context, path, mirrorKey string, offset, length int) ([]byte, error) {
	f, err := os.Open(r.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("notebook file not found: " + path)
		}
		return nil, errors.Wrap(err, errors.CodeSourceUnavailable, "failed to open notebook file")
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.CodeSourceUnavailable, "notebook positional read failed")
	}
	return buf[:n], nil
}

// Stat returns the size in bytes of path.
func (r *NotebookReader) Stat(ctx context.Context, path, mirrorKey string) (int64, error) {
	info, err := os.Stat(r.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NotFound("notebook file not found: " + path)
		}
		return 0, errors.Wrap(err, errors.CodeSourceUnavailable, "notebook stat failed")
	}
	return info.Size(), nil
}
