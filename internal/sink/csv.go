// Package sink writes crawl output: append-only CSV files, per-listing JSON
// documents in a blob store, fan-out to several sinks, and completion events.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

// ListingColumns is the listing CSV header.
var ListingColumns = []string{
	"listing_id", "listing_title", "latitude", "longitude", "location_name",
	"number_reviews", "average_rating", "average_nightly_price", "min_stay",
	"sleeps", "bedrooms", "bathrooms", "property_type", "internet",
	"member_since", "response_time", "response_rate", "calendar_last_updated",
	"type", "floor", "sq_footage", "max_occupancy", "building_type",
}

// ReviewColumns is the review CSV header.
var ReviewColumns = []string{
	"listing_id", "total_number_reviews", "n_review", "reviewer_name",
	"title", "stars", "stayed", "source", "submitted",
}

// CSV appends listings and reviews to two CSV files.
type CSV struct {
	mu       sync.Mutex
	listings *csvFile
	reviews  *csvFile
}

// NewCSV opens (or creates) both files in append mode. The header row is
// written only when a file is new or empty.
func NewCSV(listingPath, reviewPath string) (*CSV, error) {
	listings, err := openCSV(listingPath, ListingColumns)
	if err != nil {
		return nil, err
	}
	reviews, err := openCSV(reviewPath, ReviewColumns)
	if err != nil {
		_ = listings.close()
		return nil, err
	}
	return &CSV{listings: listings, reviews: reviews}, nil
}

// Write appends the reviews, then the listing row, syncing both files.
func (s *CSV) Write(_ context.Context, batch crawler.ListingBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([][]string, 0, len(batch.Reviews.Reviews))
	for _, r := range batch.Reviews.Reviews {
		rows = append(rows, ReviewRow(r))
	}
	if err := s.reviews.append(rows...); err != nil {
		return fmt.Errorf("write reviews for %s: %w", batch.Reference, err)
	}
	if err := s.listings.append(ListingRow(batch.Listing)); err != nil {
		return fmt.Errorf("write listing %s: %w", batch.Reference, err)
	}
	return nil
}

// Close closes both files.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errL := s.listings.close()
	errR := s.reviews.close()
	if errL != nil {
		return errL
	}
	return errR
}

// ListingRow renders rec in ListingColumns order; nil fields become "".
func ListingRow(rec crawler.ListingRecord) []string {
	return []string{
		str(rec.ListingID), str(rec.Title), float(rec.Latitude), float(rec.Longitude),
		str(rec.LocationName), integer(rec.NumberReviews), float(rec.AverageRating),
		integer(rec.AverageNightlyPrice), integer(rec.MinStay), integer(rec.Sleeps),
		str(rec.Bedrooms), integer(rec.Bathrooms), str(rec.PropertyType), str(rec.Internet),
		str(rec.MemberSince), str(rec.ResponseTime), str(rec.ResponseRate),
		str(rec.CalendarLastUpdated), str(rec.Type), str(rec.Floor), str(rec.SquareFootage),
		integer(rec.MaxOccupancy), str(rec.BuildingType),
	}
}

// ReviewRow renders r in ReviewColumns order.
func ReviewRow(r crawler.ReviewRecord) []string {
	return []string{
		r.ListingID,
		strconv.Itoa(r.TotalReviews),
		strconv.Itoa(r.SequenceNumber),
		r.ReviewerName,
		r.Title,
		r.Rating,
		r.StayDate,
		r.Source,
		r.SubmittedDate,
	}
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func integer(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

func openCSV(path string, header []string) (*csvFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	// #nosec G304 -- output paths come from operator configuration.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	cf := &csvFile{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := cf.append(header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header to %s: %w", path, err)
		}
	}
	return cf, nil
}

func (c *csvFile) append(rows ...[]string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.w.WriteAll(rows); err != nil {
		return err
	}
	return c.f.Sync()
}

func (c *csvFile) close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		_ = c.f.Close()
		return err
	}
	return c.f.Close()
}
