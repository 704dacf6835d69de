package crawler

import (
	"context"
	"net/url"
	"time"
)

// Fetcher retrieves a URL and returns the parsed page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) (Page, error)
}

// CheckpointStore persists the crawl cursor.
type CheckpointStore interface {
	// Load returns ErrConfig when the persisted state is absent or malformed.
	Load(ctx context.Context) (Checkpoint, error)
	// Save must replace the persisted state atomically before returning.
	Save(ctx context.Context, cp Checkpoint) error
}

// RecordSink receives the write-once outputs of the crawl. Write must not
// return until the batch is durable.
type RecordSink interface {
	Write(ctx context.Context, batch ListingBatch) error
	Close() error
}

// BlobStore writes listing documents and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes listing-completed events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
