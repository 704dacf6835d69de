package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

// Blob stores one JSON document per listing, keyed by region and listing id.
type Blob struct {
	store  crawler.BlobStore
	prefix string
}

// NewBlob wraps store; prefix is prepended to every object path.
func NewBlob(store crawler.BlobStore, prefix string) *Blob {
	return &Blob{store: store, prefix: strings.Trim(prefix, "/")}
}

type listingDocument struct {
	Region       crawler.Region         `json:"region"`
	Reference    string                 `json:"reference"`
	Listing      crawler.ListingRecord  `json:"listing"`
	FailedFields []string               `json:"failed_fields,omitempty"`
	TotalReviews int                    `json:"total_reviews"`
	Reviews      []crawler.ReviewRecord `json:"reviews"`
}

// ObjectPath returns where the document for batch is stored.
func (b *Blob) ObjectPath(batch crawler.ListingBatch) string {
	return path.Join(b.prefix, regionSlug(batch.Region), batch.Reference.ListingID()+".json")
}

// Write implements crawler.RecordSink.
func (b *Blob) Write(ctx context.Context, batch crawler.ListingBatch) error {
	reviews := batch.Reviews.Reviews
	if reviews == nil {
		reviews = []crawler.ReviewRecord{}
	}
	data, err := json.Marshal(listingDocument{
		Region:       batch.Region,
		Reference:    string(batch.Reference),
		Listing:      batch.Listing,
		FailedFields: batch.Listing.FailedFields,
		TotalReviews: batch.Reviews.Total,
		Reviews:      reviews,
	})
	if err != nil {
		return fmt.Errorf("marshal listing %s: %w", batch.Reference, err)
	}
	if _, err := b.store.PutObject(ctx, b.ObjectPath(batch), "application/json", data); err != nil {
		return fmt.Errorf("store listing %s: %w", batch.Reference, err)
	}
	return nil
}

// Close implements crawler.RecordSink.
func (b *Blob) Close() error {
	return nil
}

func regionSlug(r crawler.Region) string {
	slug := strings.ToLower(r.Name + "-" + r.Subdivision)
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
			return c
		default:
			return '_'
		}
	}, slug)
}
