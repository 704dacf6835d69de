// Package local_test tests the local filesystem blob store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacation-rental-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data", "listings")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: path})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	t.Run("WritesAndReplaces", func(t *testing.T) {
		uri, err := store.PutObject(context.Background(), "kingston-ny/123456.json", "application/json", []byte(`{"v":1}`))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(dir, "kingston-ny/123456.json"), uri)

		_, err = store.PutObject(context.Background(), "kingston-ny/123456.json", "application/json", []byte(`{"v":2}`))
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(dir, "kingston-ny/123456.json"))
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(got))

		entries, err := os.ReadDir(filepath.Join(dir, "kingston-ny"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), " ", "", nil)
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.json", "", []byte("x"))
		assert.ErrorContains(t, err, "path traversal")
	})
}
