// Package checkpoint owns the durable (region, listing) cursor that makes the
// crawl resumable.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/metrics"
)

// Tracker is the in-process view of the checkpoint. Every advance is persisted
// through the store before it becomes visible in Snapshot.
type Tracker struct {
	mu     sync.RWMutex
	store  crawler.CheckpointStore
	clock  crawler.Clock
	state  crawler.Checkpoint
	logger *zap.Logger
}

// NewTracker wraps store starting from initial.
func NewTracker(store crawler.CheckpointStore, clock crawler.Clock, initial crawler.Checkpoint, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.SetCheckpoint(initial.LastRegionIndex, initial.LastListingIndex)
	return &Tracker{
		store:  store,
		clock:  clock,
		state:  initial,
		logger: logger,
	}
}

// Restore loads the persisted checkpoint. Absent or malformed state starts a
// fresh crawl from the first region; any other error is returned.
func Restore(ctx context.Context, store crawler.CheckpointStore, clock crawler.Clock, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cp, err := store.Load(ctx)
	switch {
	case err == nil:
		logger.Info("checkpoint restored",
			zap.Int("last_region_index", cp.LastRegionIndex),
			zap.Int("last_listing_index", cp.LastListingIndex),
			zap.String("last_region", cp.LastRegion),
			zap.String("last_listing", cp.LastListing),
		)
	case errors.Is(err, crawler.ErrConfig):
		logger.Warn("no usable checkpoint, starting from the first region", zap.Error(err))
		cp = crawler.Checkpoint{}
	default:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return NewTracker(store, clock, cp, logger), nil
}

// Snapshot returns a copy of the current checkpoint.
func (t *Tracker) Snapshot() crawler.Checkpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// AdvanceRegion marks the region at index complete and resets the listing cursor.
func (t *Tracker) AdvanceRegion(ctx context.Context, index int, region crawler.Region) error {
	return t.commit(ctx, func(cp *crawler.Checkpoint) {
		cp.LastRegionIndex = index + 1
		cp.LastRegion = region.Label()
		cp.LastListingIndex = 0
		cp.LastListing = ""
	})
}

// AdvanceListing marks the listing at index of the current region complete.
func (t *Tracker) AdvanceListing(ctx context.Context, index int, ref crawler.ListingReference) error {
	return t.commit(ctx, func(cp *crawler.Checkpoint) {
		cp.LastListingIndex = index + 1
		cp.LastListing = string(ref)
	})
}

func (t *Tracker) commit(ctx context.Context, mutate func(*crawler.Checkpoint)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.state
	mutate(&next)
	if t.clock != nil {
		next.UpdatedAt = t.clock.Now()
	}
	if err := t.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	t.state = next
	metrics.SetCheckpoint(next.LastRegionIndex, next.LastListingIndex)
	t.logger.Debug("checkpoint advanced",
		zap.Int("last_region_index", next.LastRegionIndex),
		zap.Int("last_listing_index", next.LastListingIndex),
	)
	return nil
}
