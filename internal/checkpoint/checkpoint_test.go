package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFileStoreLoadMissingIsConfigError(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "last_info.yaml"))
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, crawler.ErrConfig)
}

func TestFileStoreLoadMalformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not yaml":         "info: [unterminated",
		"missing section":  "other:\n  a: 1\n",
		"missing listing":  "info:\n  last_region_index: 2\n",
		"non numeric":      "info:\n  last_region_index: two\n  last_listing_index: 0\n",
		"negative indices": "info:\n  last_region_index: -1\n  last_listing_index: 0\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "last_info.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			store, err := NewFileStore(path)
			require.NoError(t, err)

			_, err = store.Load(context.Background())
			assert.ErrorIs(t, err, crawler.ErrConfig)
		})
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "last_info.yaml"))
	require.NoError(t, err)

	want := crawler.Checkpoint{
		LastRegionIndex:  3,
		LastListingIndex: 7,
		LastRegion:       "Kingston,NY",
		LastListing:      "/123ha",
		UpdatedAt:        testNow,
	}
	require.NoError(t, store.Save(context.Background(), want))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.LastRegionIndex, got.LastRegionIndex)
	assert.Equal(t, want.LastListingIndex, got.LastListingIndex)
	assert.Equal(t, want.LastRegion, got.LastRegion)
	assert.Equal(t, want.LastListing, got.LastListing)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStoreSaveRejectsNegative(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "cp.yaml"))
	require.NoError(t, err)
	err = store.Save(context.Background(), crawler.Checkpoint{LastRegionIndex: -2})
	assert.ErrorIs(t, err, crawler.ErrConfig)
}

func TestRestoreFallsBackToZero(t *testing.T) {
	t.Parallel()

	tracker, err := Restore(context.Background(), NewMemoryStore(), fixedClock{testNow}, nil)
	require.NoError(t, err)
	assert.Equal(t, crawler.Checkpoint{}, tracker.Snapshot())
}

func TestRestorePropagatesIOErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	_, err := Restore(context.Background(), failingLoadStore{err: boom}, fixedClock{testNow}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestTrackerAdvance(t *testing.T) {
	t.Parallel()

	store := NewMemoryStoreWith(crawler.Checkpoint{LastRegionIndex: 3, LastListingIndex: 0})
	tracker, err := Restore(context.Background(), store, fixedClock{testNow}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, tracker.AdvanceListing(ctx, 0, "/a"))
	require.NoError(t, tracker.AdvanceListing(ctx, 1, "/b"))

	snap := tracker.Snapshot()
	assert.Equal(t, 3, snap.LastRegionIndex)
	assert.Equal(t, 2, snap.LastListingIndex)
	assert.Equal(t, "/b", snap.LastListing)
	assert.Equal(t, testNow, snap.UpdatedAt)

	require.NoError(t, tracker.AdvanceRegion(ctx, 3, crawler.Region{Name: "Kingston", Subdivision: "NY"}))
	snap = tracker.Snapshot()
	assert.Equal(t, 4, snap.LastRegionIndex)
	assert.Equal(t, 0, snap.LastListingIndex)
	assert.Equal(t, "Kingston,NY", snap.LastRegion)
	assert.Empty(t, snap.LastListing)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, persisted)
	assert.Equal(t, 3, store.Saves())
}

func TestTrackerKeepsStateWhenSaveFails(t *testing.T) {
	t.Parallel()

	store := NewMemoryStoreWith(crawler.Checkpoint{LastRegionIndex: 1, LastListingIndex: 4})
	tracker, err := Restore(context.Background(), store, fixedClock{testNow}, nil)
	require.NoError(t, err)

	store.FailSave = errors.New("read-only filesystem")
	err = tracker.AdvanceListing(context.Background(), 4, "/x")
	require.Error(t, err)
	assert.Equal(t, 4, tracker.Snapshot().LastListingIndex)
}

type failingLoadStore struct{ err error }

func (s failingLoadStore) Load(context.Context) (crawler.Checkpoint, error) {
	return crawler.Checkpoint{}, s.err
}

func (s failingLoadStore) Save(context.Context, crawler.Checkpoint) error { return s.err }
