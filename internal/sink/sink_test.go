package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	pubmemory "github.com/JakeFAU/vacation-rental-crawler/internal/publisher/memory"
	"github.com/JakeFAU/vacation-rental-crawler/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

func sampleBatch() crawler.ListingBatch {
	return crawler.ListingBatch{
		Region:    crawler.Region{Name: "Kingston", Subdivision: "NY"},
		Reference: "/123456",
		Listing: crawler.ListingRecord{
			ListingID:     ptr("123456"),
			Title:         ptr("Riverside, \"Cottage\""),
			Latitude:      ptr(41.927),
			NumberReviews: ptr(2),
			AverageRating: ptr(4.5),
			FailedFields:  []string{"longitude"},
		},
		Reviews: crawler.ReviewSet{
			Total: 2,
			Reviews: []crawler.ReviewRecord{
				{ListingID: "123456", TotalReviews: 2, SequenceNumber: 1, ReviewerName: "Ann", Rating: "5", Source: "VRBO"},
				{ListingID: "123456", TotalReviews: 2, SequenceNumber: 2, ReviewerName: "Bo", Rating: "4.5", Source: "VRBO"},
			},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWritesHeaderOnceAndAppends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	listingPath := filepath.Join(dir, "out", "listing.csv")
	reviewPath := filepath.Join(dir, "out", "review.csv")

	s, err := NewCSV(listingPath, reviewPath)
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), sampleBatch()))
	require.NoError(t, s.Close())

	s, err = NewCSV(listingPath, reviewPath)
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), sampleBatch()))
	require.NoError(t, s.Close())

	listings := readCSV(t, listingPath)
	require.Len(t, listings, 3)
	assert.Equal(t, ListingColumns, listings[0])
	assert.Equal(t, "123456", listings[1][0])
	assert.Equal(t, `Riverside, "Cottage"`, listings[1][1])
	assert.Equal(t, "41.927", listings[1][2])
	assert.Equal(t, "", listings[1][3], "failed field is empty")
	assert.Equal(t, "2", listings[1][5])
	assert.Equal(t, "4.5", listings[1][6])

	reviews := readCSV(t, reviewPath)
	require.Len(t, reviews, 5)
	assert.Equal(t, ReviewColumns, reviews[0])
	assert.Equal(t, []string{"123456", "2", "1", "Ann", "", "5", "", "VRBO", ""}, reviews[1])
	assert.Equal(t, "2", reviews[2][2])
	assert.Equal(t, "4.5", reviews[2][5])
}

func TestCSVListingWithoutReviews(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewCSV(filepath.Join(dir, "l.csv"), filepath.Join(dir, "r.csv"))
	require.NoError(t, err)

	batch := sampleBatch()
	batch.Reviews = crawler.ReviewSet{}
	require.NoError(t, s.Write(context.Background(), batch))
	require.NoError(t, s.Close())

	assert.Len(t, readCSV(t, filepath.Join(dir, "l.csv")), 2)
	assert.Len(t, readCSV(t, filepath.Join(dir, "r.csv")), 1)
}

func TestListingRowWidth(t *testing.T) {
	t.Parallel()

	assert.Len(t, ListingRow(crawler.ListingRecord{}), len(ListingColumns))
	assert.Len(t, ReviewRow(crawler.ReviewRecord{}), len(ReviewColumns))
}

func TestBlobWritesDocument(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	s := NewBlob(store, "/listings/")
	batch := sampleBatch()
	require.NoError(t, s.Write(context.Background(), batch))
	require.NoError(t, s.Close())

	path := "listings/kingston-ny/123456.json"
	assert.Equal(t, path, s.ObjectPath(batch))
	data, ok := store.Get(path)
	require.True(t, ok)
	assert.Equal(t, "application/json", store.ContentType(path))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "/123456", doc["reference"])
	assert.EqualValues(t, 2, doc["total_reviews"])
	assert.Len(t, doc["reviews"], 2)
	assert.Equal(t, []any{"longitude"}, doc["failed_fields"])
	listing := doc["listing"].(map[string]any)
	assert.Equal(t, 4.5, listing["average_rating"])
	assert.Nil(t, listing["longitude"])
}

func TestRegionSlug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "coeur_d_alene-id", regionSlug(crawler.Region{Name: "Coeur d'Alene", Subdivision: "ID"}))
}

type recordingSink struct {
	batches  []crawler.ListingBatch
	err      error
	closed   bool
	closeErr error
}

func (r *recordingSink) Write(_ context.Context, b crawler.ListingBatch) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, b)
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.closeErr
}

func TestMultiStopsAtFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	a, b, c := &recordingSink{}, &recordingSink{err: boom}, &recordingSink{}
	m := Multi{a, b, c}

	err := m.Write(context.Background(), sampleBatch())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.batches, 1)
	assert.Empty(t, c.batches)
}

func TestMultiCloseJoinsErrors(t *testing.T) {
	t.Parallel()

	e1, e2 := errors.New("one"), errors.New("two")
	a, b := &recordingSink{closeErr: e1}, &recordingSink{closeErr: e2}
	err := Multi{a, b}.Close()
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.True(t, a.closed && b.closed)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestNotifyingPublishesAfterWrite(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	inner := &recordingSink{}
	pub := pubmemory.New()
	s := NewNotifying(inner, pub, fixedClock{now}, "run-7", nil)

	require.NoError(t, s.Write(context.Background(), sampleBatch()))
	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, crawler.ListingEvent{
		RunID:       "run-7",
		ListingID:   "123456",
		Reference:   "/123456",
		Region:      "Kingston,NY",
		ReviewCount: 2,
		FailedCount: 1,
		Timestamp:   now,
	}, msgs[0])
	require.NoError(t, s.Close())
	assert.True(t, inner.closed)
}

func TestNotifyingSkipsEventWhenWriteFails(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	pub := pubmemory.New()
	s := NewNotifying(&recordingSink{err: boom}, pub, fixedClock{}, "run", nil)

	assert.ErrorIs(t, s.Write(context.Background(), sampleBatch()), boom)
	assert.Empty(t, pub.Messages())
}

func TestNotifyingToleratesPublishFailure(t *testing.T) {
	t.Parallel()

	inner := &recordingSink{}
	pub := pubmemory.New()
	pub.Err = errors.New("topic gone")
	s := NewNotifying(inner, pub, fixedClock{}, "run", nil)

	assert.NoError(t, s.Write(context.Background(), sampleBatch()))
	assert.Len(t, inner.batches, 1)
}
