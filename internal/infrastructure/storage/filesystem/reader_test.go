package filesystem_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RSBalchII/anchor/internal/infrastructure/storage/filesystem"
	apperrors "github.com/RSBalchII/anchor/pkg/errors"
)

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNotebookReader_ReadRange_RelativePath(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "note.md", "hello radial inflation world")

	reader := filesystem.NewNotebookReader(dir)
	data, err := reader.ReadRange(context.Background(), "note.md", "", 6, 6)
	require.NoError(t, err)
	assert.Equal(t, "radial", string(data))
}

func TestNotebookReader_ReadRange_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "note.md", "absolute path read")
	abs := filepath.Join(dir, "note.md")

	reader := filesystem.NewNotebookReader("/some/other/root")
	data, err := reader.ReadRange(context.Background(), abs, "", 0, 8)
	require.NoError(t, err)
	assert.Equal(t, "absolute", string(data))
}

func TestNotebookReader_ReadRange_FileNotFound(t *testing.T) {
	reader := filesystem.NewNotebookReader(t.TempDir())
	_, err := reader.ReadRange(context.Background(), "missing.md", "", 0, 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestNotebookReader_Stat_Success(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "note.md", "0123456789")

	reader := filesystem.NewNotebookReader(dir)
	size, err := reader.Stat(context.Background(), "note.md", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestNotebookReader_Stat_NotFound(t *testing.T) {
	reader := filesystem.NewNotebookReader(t.TempDir())
	_, err := reader.Stat(context.Background(), "missing.md", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
