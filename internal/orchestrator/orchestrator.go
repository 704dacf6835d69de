// Package orchestrator drives the region, pagination and listing loops and
// advances the checkpoint after every completed unit of work.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/metrics"
	"github.com/JakeFAU/vacation-rental-crawler/internal/telemetry"
)

// ListingDiscoverer returns every listing reference of a region in page order.
type ListingDiscoverer interface {
	AllListings(ctx context.Context, region crawler.Region) ([]crawler.ListingReference, error)
}

// ReadinessGate loads a detail page once its listing API id is present.
type ReadinessGate interface {
	Load(ctx context.Context, ref crawler.ListingReference) (crawler.Page, string, error)
}

// FieldExtractor builds a ListingRecord from a loaded detail page.
type FieldExtractor interface {
	Extract(doc *goquery.Document, ref crawler.ListingReference) crawler.ListingRecord
}

// ReviewFetcher downloads the review set of a listing.
type ReviewFetcher interface {
	FetchReviews(ctx context.Context, apiListingID string, ref crawler.ListingReference) (crawler.ReviewSet, error)
}

// Cursor is the checkpoint state the orchestrator reads and advances.
// *checkpoint.Tracker satisfies it.
type Cursor interface {
	Snapshot() crawler.Checkpoint
	AdvanceRegion(ctx context.Context, index int, region crawler.Region) error
	AdvanceListing(ctx context.Context, index int, ref crawler.ListingReference) error
}

// Dependencies groups the collaborators of an Orchestrator.
type Dependencies struct {
	Discoverer ListingDiscoverer
	Gate       ReadinessGate
	Extractor  FieldExtractor
	Reviews    ReviewFetcher
	Sink       crawler.RecordSink
	Cursor     Cursor
	Tracer     trace.Tracer
	Logger     *zap.Logger
}

// Config holds orchestrator behavior.
type Config struct {
	Regions           []crawler.Region
	OnStructuralFault crawler.FaultPolicy
}

// Orchestrator runs the crawl state machine over (region, listing).
type Orchestrator struct {
	cfg  Config
	deps Dependencies
}

// Summary reports what one Run did.
type Summary struct {
	RegionsCompleted int
	RegionsSkipped   int
	Listings         int
	Reviews          int
	FailedFields     int
}

// New builds an Orchestrator. Missing tracer and logger fall back to the
// global tracer and a no-op logger.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Discoverer == nil:
		return nil, errors.New("orchestrator: discoverer is required")
	case deps.Gate == nil:
		return nil, errors.New("orchestrator: readiness gate is required")
	case deps.Extractor == nil:
		return nil, errors.New("orchestrator: extractor is required")
	case deps.Reviews == nil:
		return nil, errors.New("orchestrator: review fetcher is required")
	case deps.Sink == nil:
		return nil, errors.New("orchestrator: sink is required")
	case deps.Cursor == nil:
		return nil, errors.New("orchestrator: checkpoint cursor is required")
	}
	if cfg.OnStructuralFault == "" {
		cfg.OnStructuralFault = crawler.FaultAbort
	}
	if !cfg.OnStructuralFault.Valid() {
		return nil, fmt.Errorf("orchestrator: unknown structural fault policy %q", cfg.OnStructuralFault)
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, deps: deps}, nil
}

// Run processes every region from the restored checkpoint to the end of the
// region list. It returns after the last region, on the first fatal error, or
// when ctx is canceled between units of work. A unit is only marked complete
// after its output has been written.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	start := o.deps.Cursor.Snapshot()
	log := o.deps.Logger
	log.Info("crawl starting",
		zap.Int("regions", len(o.cfg.Regions)),
		zap.Int("region_index", start.LastRegionIndex),
		zap.Int("listing_index", start.LastListingIndex),
		zap.String("last_region", start.LastRegion),
		zap.String("last_listing", start.LastListing),
	)

	for i := start.LastRegionIndex; i < len(o.cfg.Regions); i++ {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("crawl interrupted before region %d: %w", i, err)
		}
		region := o.cfg.Regions[i]
		err := o.runRegion(ctx, i, region, &sum)
		if err == nil {
			sum.RegionsCompleted++
			continue
		}
		var structural *crawler.StructuralError
		if !errors.As(err, &structural) {
			return sum, err
		}
		log.Error("structural fault, site layout has changed",
			zap.String("region", region.Label()),
			zap.Int("region_index", i),
			zap.String("policy", string(o.cfg.OnStructuralFault)),
			zap.Error(err),
		)
		if o.cfg.OnStructuralFault != crawler.FaultSkipRegion {
			metrics.ObserveRegion("failed")
			return sum, err
		}
		metrics.ObserveRegion("skipped")
		if err := o.deps.Cursor.AdvanceRegion(context.WithoutCancel(ctx), i, region); err != nil {
			return sum, err
		}
		sum.RegionsSkipped++
	}

	log.Info("crawl finished",
		zap.Int("regions_completed", sum.RegionsCompleted),
		zap.Int("regions_skipped", sum.RegionsSkipped),
		zap.Int("listings", sum.Listings),
		zap.Int("reviews", sum.Reviews),
		zap.Int("failed_fields", sum.FailedFields),
	)
	return sum, nil
}

func (o *Orchestrator) runRegion(ctx context.Context, index int, region crawler.Region, sum *Summary) (err error) {
	ctx, span := o.deps.Tracer.Start(ctx, "crawl.region", trace.WithAttributes(
		attribute.String("region", region.Label()),
		attribute.Int("region_index", index),
	))
	defer endSpan(span, &err)

	log := o.deps.Logger.With(zap.String("region", region.Label()), zap.Int("region_index", index))
	started := time.Now()

	refs, err := o.deps.Discoverer.AllListings(ctx, region)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("listings", len(refs)))

	// The stored listing index only applies to the region it was written for.
	next := 0
	if cp := o.deps.Cursor.Snapshot(); cp.LastRegionIndex == index {
		next = cp.LastListingIndex
	}
	if next >= len(refs) {
		log.Info("region already processed", zap.Int("listing_index", next), zap.Int("listings", len(refs)))
	} else {
		log.Info("processing region", zap.Int("listings", len(refs)), zap.Int("resume_at", next))
	}

	for j := next; j < len(refs); j++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("crawl interrupted before listing %d of %s: %w", j, region.Label(), err)
		}
		if err := o.runListing(ctx, region, refs[j], sum); err != nil {
			metrics.ObserveListing("failed")
			return err
		}
		// Output and cursor are persisted even if ctx is canceled meanwhile, so
		// a shutdown never leaves a written listing unrecorded.
		if err := o.deps.Cursor.AdvanceListing(context.WithoutCancel(ctx), j, refs[j]); err != nil {
			return err
		}
	}

	if err := o.deps.Cursor.AdvanceRegion(context.WithoutCancel(ctx), index, region); err != nil {
		return err
	}
	metrics.ObserveRegion("completed")
	log.Info("region complete", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (o *Orchestrator) runListing(ctx context.Context, region crawler.Region, ref crawler.ListingReference, sum *Summary) (err error) {
	ctx, span := o.deps.Tracer.Start(ctx, "crawl.listing", trace.WithAttributes(
		attribute.String("listing", string(ref)),
	))
	defer endSpan(span, &err)

	page, apiID, err := o.deps.Gate.Load(ctx, ref)
	if err != nil {
		return err
	}
	record := o.deps.Extractor.Extract(page.Doc, ref)

	set, err := o.deps.Reviews.FetchReviews(ctx, apiID, ref)
	if err != nil {
		return err
	}
	total := set.Total
	record.NumberReviews = &total

	batch := crawler.ListingBatch{
		Region:    region,
		Reference: ref,
		Listing:   record,
		Reviews:   set,
	}
	if err := o.deps.Sink.Write(context.WithoutCancel(ctx), batch); err != nil {
		return fmt.Errorf("write listing %s: %w", ref, err)
	}

	status := "complete"
	if len(record.FailedFields) > 0 {
		status = "partial"
	}
	metrics.ObserveListing(status)
	metrics.ObserveReviews(len(set.Reviews))
	span.SetAttributes(
		attribute.String("api_listing_id", apiID),
		attribute.Int("reviews", len(set.Reviews)),
		attribute.Int("failed_fields", len(record.FailedFields)),
	)
	sum.Listings++
	sum.Reviews += len(set.Reviews)
	sum.FailedFields += len(record.FailedFields)
	return nil
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
