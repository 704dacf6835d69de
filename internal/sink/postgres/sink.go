// Package postgres writes listings and reviews to Postgres. Rows are upserted
// so a listing replayed after a crash overwrites its earlier rows.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	pgstorage "github.com/JakeFAU/vacation-rental-crawler/internal/storage/postgres"
)

// Sink implements crawler.RecordSink on a pgx pool.
type Sink struct {
	pool         pgstorage.Pool
	listingTable string
	reviewTable  string
}

// New wraps pool. Empty table names default to listings and reviews.
func New(pool pgstorage.Pool, listingTable, reviewTable string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	lt, err := pgstorage.TableName(listingTable, "listings")
	if err != nil {
		return nil, err
	}
	rt, err := pgstorage.TableName(reviewTable, "reviews")
	if err != nil {
		return nil, err
	}
	return &Sink{pool: pool, listingTable: lt, reviewTable: rt}, nil
}

// EnsureSchema creates both tables when missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	listing_id TEXT PRIMARY KEY,
	reference TEXT NOT NULL,
	region TEXT NOT NULL,
	listing_title TEXT,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	location_name TEXT,
	number_reviews INTEGER,
	average_rating DOUBLE PRECISION,
	average_nightly_price INTEGER,
	min_stay INTEGER,
	sleeps INTEGER,
	bedrooms TEXT,
	bathrooms INTEGER,
	property_type TEXT,
	internet TEXT,
	member_since TEXT,
	response_time TEXT,
	response_rate TEXT,
	calendar_last_updated TEXT,
	type TEXT,
	floor TEXT,
	sq_footage TEXT,
	max_occupancy INTEGER,
	building_type TEXT,
	failed_fields TEXT[] NOT NULL DEFAULT '{}'
)`, s.listingTable),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	listing_id TEXT NOT NULL,
	n_review INTEGER NOT NULL,
	total_number_reviews INTEGER NOT NULL,
	reviewer_name TEXT,
	title TEXT,
	stars TEXT,
	stayed TEXT,
	source TEXT,
	submitted TEXT,
	PRIMARY KEY (listing_id, n_review)
)`, s.reviewTable),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create output tables: %w", err)
		}
	}
	return nil
}

// Write stores the listing and its reviews in one transaction.
func (s *Sink) Write(ctx context.Context, batch crawler.ListingBatch) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := s.upsertListing(ctx, tx, batch); err != nil {
		return err
	}
	for _, r := range batch.Reviews.Reviews {
		if err := s.upsertReview(ctx, tx, r); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit listing %s: %w", batch.Reference, err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *Sink) Close() error {
	return nil
}

func (s *Sink) upsertListing(ctx context.Context, tx pgx.Tx, batch crawler.ListingBatch) error {
	rec := batch.Listing
	failed := rec.FailedFields
	if failed == nil {
		failed = []string{}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	listing_id, reference, region,
	listing_title, latitude, longitude, location_name, number_reviews,
	average_rating, average_nightly_price, min_stay, sleeps, bedrooms,
	bathrooms, property_type, internet, member_since, response_time,
	response_rate, calendar_last_updated, type, floor, sq_footage,
	max_occupancy, building_type, failed_fields
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26
)
ON CONFLICT (listing_id) DO UPDATE SET
	reference = EXCLUDED.reference,
	region = EXCLUDED.region,
	listing_title = EXCLUDED.listing_title,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	location_name = EXCLUDED.location_name,
	number_reviews = EXCLUDED.number_reviews,
	average_rating = EXCLUDED.average_rating,
	average_nightly_price = EXCLUDED.average_nightly_price,
	min_stay = EXCLUDED.min_stay,
	sleeps = EXCLUDED.sleeps,
	bedrooms = EXCLUDED.bedrooms,
	bathrooms = EXCLUDED.bathrooms,
	property_type = EXCLUDED.property_type,
	internet = EXCLUDED.internet,
	member_since = EXCLUDED.member_since,
	response_time = EXCLUDED.response_time,
	response_rate = EXCLUDED.response_rate,
	calendar_last_updated = EXCLUDED.calendar_last_updated,
	type = EXCLUDED.type,
	floor = EXCLUDED.floor,
	sq_footage = EXCLUDED.sq_footage,
	max_occupancy = EXCLUDED.max_occupancy,
	building_type = EXCLUDED.building_type,
	failed_fields = EXCLUDED.failed_fields`, s.listingTable)

	_, err := tx.Exec(ctx, query,
		batch.Reference.ListingID(), string(batch.Reference), batch.Region.Label(),
		rec.Title, rec.Latitude, rec.Longitude, rec.LocationName, rec.NumberReviews,
		rec.AverageRating, rec.AverageNightlyPrice, rec.MinStay, rec.Sleeps, rec.Bedrooms,
		rec.Bathrooms, rec.PropertyType, rec.Internet, rec.MemberSince, rec.ResponseTime,
		rec.ResponseRate, rec.CalendarLastUpdated, rec.Type, rec.Floor, rec.SquareFootage,
		rec.MaxOccupancy, rec.BuildingType, failed,
	)
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", batch.Reference, err)
	}
	return nil
}

func (s *Sink) upsertReview(ctx context.Context, tx pgx.Tx, r crawler.ReviewRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	listing_id, n_review, total_number_reviews, reviewer_name, title, stars, stayed, source, submitted
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (listing_id, n_review) DO UPDATE SET
	total_number_reviews = EXCLUDED.total_number_reviews,
	reviewer_name = EXCLUDED.reviewer_name,
	title = EXCLUDED.title,
	stars = EXCLUDED.stars,
	stayed = EXCLUDED.stayed,
	source = EXCLUDED.source,
	submitted = EXCLUDED.submitted`, s.reviewTable)

	_, err := tx.Exec(ctx, query,
		r.ListingID, r.SequenceNumber, r.TotalReviews, r.ReviewerName,
		r.Title, nullableText(r.Rating), r.StayDate, r.Source, r.SubmittedDate,
	)
	if err != nil {
		return fmt.Errorf("upsert review %s #%d: %w", r.ListingID, r.SequenceNumber, err)
	}
	return nil
}

func nullableText(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
