package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "ctx-1", "session")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "ctx-1", "session", `{"token":"abc"}`))
	require.NoError(t, s.Set(ctx, "ctx-2", "session", `{"token":"xyz"}`))

	got, err := s.Get(ctx, "ctx-1", "session")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"abc"}`, got)

	require.NoError(t, s.Set(ctx, "ctx-1", "session", `{"token":"def"}`))
	got, err = s.Get(ctx, "ctx-1", "session")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"def"}`, got)

	require.NoError(t, s.Remove(ctx, "ctx-1", "session"))
	require.NoError(t, s.Remove(ctx, "ctx-1", "session"), "removing a missing key is not an error")
	_, err = s.Get(ctx, "ctx-1", "session")
	require.ErrorIs(t, err, ErrNotFound)

	got, err = s.Get(ctx, "ctx-2", "session")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"xyz"}`, got, "scopes are isolated")

	assert.Error(t, s.Set(ctx, "", "session", "v"))
	assert.Error(t, s.Set(ctx, "ctx-1", " ", "v"))
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemory())
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	s, err := NewFile(path)
	require.NoError(t, err)
	exerciseStorage(t, s)
}

func TestFileStoragePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	s, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "ctx-1", "session", "v1"))

	s2, err := NewFile(path)
	require.NoError(t, err)
	got, err := s2.Get(ctx, "ctx-1", "session")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
}

func TestFileStorageRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path)
	assert.Error(t, err)
}

func TestNewFileRequiresPath(t *testing.T) {
	_, err := NewFile("  ")
	assert.Error(t, err)
}
