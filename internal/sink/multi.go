package sink

import (
	"context"
	"errors"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

// Multi writes every batch to each sink in order and stops at the first error.
type Multi []crawler.RecordSink

// Write implements crawler.RecordSink.
func (m Multi) Write(ctx context.Context, batch crawler.ListingBatch) error {
	for _, s := range m {
		if err := s.Write(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
