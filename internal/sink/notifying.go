package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

// Notifying publishes a ListingEvent after the wrapped sink has durably
// written a batch. Publish failures are logged and do not fail the write.
type Notifying struct {
	next      crawler.RecordSink
	publisher crawler.Publisher
	clock     crawler.Clock
	runID     string
	logger    *zap.Logger
}

// NewNotifying wraps next.
func NewNotifying(next crawler.RecordSink, publisher crawler.Publisher, clock crawler.Clock, runID string, logger *zap.Logger) *Notifying {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifying{next: next, publisher: publisher, clock: clock, runID: runID, logger: logger}
}

// Write implements crawler.RecordSink.
func (n *Notifying) Write(ctx context.Context, batch crawler.ListingBatch) error {
	if err := n.next.Write(ctx, batch); err != nil {
		return err
	}
	event := crawler.ListingEvent{
		RunID:       n.runID,
		ListingID:   batch.Reference.ListingID(),
		Reference:   string(batch.Reference),
		Region:      batch.Region.Label(),
		ReviewCount: len(batch.Reviews.Reviews),
		FailedCount: len(batch.Listing.FailedFields),
		Timestamp:   n.clock.Now(),
	}
	id, err := n.publisher.Publish(ctx, event)
	if err != nil {
		n.logger.Warn("failed to publish listing event",
			zap.String("listing", event.Reference),
			zap.Error(err),
		)
		return nil
	}
	n.logger.Debug("listing event published", zap.String("listing", event.Reference), zap.String("message_id", id))
	return nil
}

// Close implements crawler.RecordSink.
func (n *Notifying) Close() error {
	return n.next.Close()
}
