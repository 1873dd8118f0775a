package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/internal/infrastructure/storage"
	"github.com/RSBalchII/anchor/pkg/errors"
)

type fakeRangeReader struct {
	data    []byte
	readErr error
	size    int64
	statErr error
}

func (f *fakeRangeReader) ReadRange(ctx context.Context, path, mirrorKey string, offset, length int) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.data, nil
}

func (f *fakeRangeReader) Stat(ctx context.Context, path, mirrorKey string) (int64, error) {
	if f.statErr != nil {
		return 0, f.statErr
	}
	return f.size, nil
}

func TestCompositeReader_ReadRange_PrefersMirror(t *testing.T) {
	mirror := &fakeRangeReader{data: []byte("from mirror")}
	notebook := &fakeRangeReader{data: []byte("from notebook")}
	reader := storage.NewCompositeReader(mirror, notebook, logging.NewNopLogger())

	data, err := reader.ReadRange(context.Background(), "note.md", "mirror-key", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "from mirror", string(data))
}

func TestCompositeReader_ReadRange_FallsBackToNotebookOnMirrorError(t *testing.T) {
	mirror := &fakeRangeReader{readErr: errors.Unavailable("mirror down")}
	notebook := &fakeRangeReader{data: []byte("from notebook")}
	reader := storage.NewCompositeReader(mirror, notebook, logging.NewNopLogger())

	data, err := reader.ReadRange(context.Background(), "note.md", "mirror-key", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "from notebook", string(data))
}

func TestCompositeReader_ReadRange_SkipsMirrorWhenNoMirrorKey(t *testing.T) {
	mirror := &fakeRangeReader{data: []byte("from mirror")}
	notebook := &fakeRangeReader{data: []byte("from notebook")}
	reader := storage.NewCompositeReader(mirror, notebook, logging.NewNopLogger())

	data, err := reader.ReadRange(context.Background(), "note.md", "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "from notebook", string(data))
}

func TestCompositeReader_ReadRange_NoMirrorConfigured(t *testing.T) {
	notebook := &fakeRangeReader{data: []byte("from notebook")}
	reader := storage.NewCompositeReader(nil, notebook, logging.NewNopLogger())

	data, err := reader.ReadRange(context.Background(), "note.md", "mirror-key", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "from notebook", string(data))
}

func TestCompositeReader_ReadRange_NoSourcesAvailable(t *testing.T) {
	reader := storage.NewCompositeReader(nil, nil, logging.NewNopLogger())

	_, err := reader.ReadRange(context.Background(), "note.md", "", 0, 10)
	assert.Error(t, err)
}

func TestCompositeReader_Stat_PrefersMirror(t *testing.T) {
	mirror := &fakeRangeReader{size: 42}
	notebook := &fakeRangeReader{size: 99}
	reader := storage.NewCompositeReader(mirror, notebook, logging.NewNopLogger())

	size, err := reader.Stat(context.Background(), "note.md", "mirror-key")
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)
}

func TestCompositeReader_Stat_FallsBackOnMirrorError(t *testing.T) {
	mirror := &fakeRangeReader{statErr: errors.NotFound("mirror object missing")}
	notebook := &fakeRangeReader{size: 99}
	reader := storage.NewCompositeReader(mirror, notebook, logging.NewNopLogger())

	size, err := reader.Stat(context.Background(), "note.md", "mirror-key")
	require.NoError(t, err)
	assert.Equal(t, int64(99), size)
}
