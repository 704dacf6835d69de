package readiness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler/crawlertest"
)

const (
	baseURL   = "https://rentals.test"
	detailURL = "https://rentals.test/123456"
	notReady  = `<html><body><ul><li class="dropdown favorite-button">loading</li></ul></body></html>`
	ready     = `<html><body><ul><li class="dropdown favorite-button js-favoriteButtonView" data-spu="vrbo-123456-1"></li></ul></body></html>`
)

func TestLoadReturnsImmediatelyWhenReady(t *testing.T) {
	t.Parallel()

	fetcher := crawlertest.NewStubFetcher().Serve(detailURL, nil, ready)
	gate := New(fetcher, baseURL, Config{MaxAttempts: 3, Delay: time.Millisecond}, nil)

	page, id, err := gate.Load(context.Background(), "/123456")
	require.NoError(t, err)
	assert.Equal(t, "vrbo-123456-1", id)
	assert.NotNil(t, page.Doc)
	assert.Equal(t, 1, fetcher.CallCount(detailURL, nil))
}

func TestLoadPollsUntilIdentifierAppears(t *testing.T) {
	t.Parallel()

	fetcher := crawlertest.NewStubFetcher().Serve(detailURL, nil, notReady, notReady, ready)
	gate := New(fetcher, baseURL, Config{MaxAttempts: 5, Delay: time.Millisecond}, nil)

	_, id, err := gate.Load(context.Background(), "/123456")
	require.NoError(t, err)
	assert.Equal(t, "vrbo-123456-1", id)
	assert.Equal(t, 3, fetcher.CallCount(detailURL, nil))
}

func TestLoadGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	fetcher := crawlertest.NewStubFetcher().Serve(detailURL, nil, notReady)
	gate := New(fetcher, baseURL, Config{MaxAttempts: 3, Delay: time.Millisecond}, nil)

	_, _, err := gate.Load(context.Background(), "/123456")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrNotReady)
	assert.ErrorIs(t, err, crawler.ErrExhausted)
	assert.Equal(t, 3, fetcher.CallCount(detailURL, nil))
}

func TestEnsureReadyHonorsCancellation(t *testing.T) {
	t.Parallel()

	fetcher := crawlertest.NewStubFetcher().Serve(detailURL, nil, notReady)
	gate := New(fetcher, baseURL, Config{Delay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	page, err := fetcher.Fetch(ctx, detailURL, nil)
	require.NoError(t, err)
	cancel()

	_, _, err = gate.EnsureReady(ctx, page, "/123456")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnsureReadyPropagatesTransportErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("transport exhausted")
	fetcher := crawlertest.NewStubFetcher().Fail(detailURL, nil, boom)
	gate := New(fetcher, baseURL, Config{MaxAttempts: 0, Delay: time.Millisecond}, nil)

	_, _, err := gate.Load(context.Background(), "/123456")
	assert.ErrorIs(t, err, boom)
}

func TestAPIListingIDNilDocument(t *testing.T) {
	t.Parallel()

	_, ok := APIListingID(nil)
	assert.False(t, ok)
}
