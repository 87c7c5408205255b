package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelocateSource_MovesIntoTaskDir(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "upload.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpegdata"), 0o644))

	s := NewLocalArtifactStore(root)
	dest, err := s.RelocateSource("task-1", src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "tasks", "task-1", "source.jpg"), dest)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "original should be gone after relocation")
}

func TestRelocateSource_MissingSourceFails(t *testing.T) {
	s := NewLocalArtifactStore(t.TempDir())
	_, err := s.RelocateSource("task-1", "/nonexistent/input.png")
	assert.Error(t, err)
}

func TestVariantDir(t *testing.T) {
	root := t.TempDir()
	s := NewLocalArtifactStore(root)

	dir, err := s.VariantDir("task-9")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tasks", "task-9", "variants"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
