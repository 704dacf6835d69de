// Package crawler defines core types shared across subsystems.
package crawler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Region is one (city, subdivision) pair driving an independent crawl unit.
type Region struct {
	Name        string `mapstructure:"name" yaml:"name" json:"name"`
	Subdivision string `mapstructure:"subdivision" yaml:"subdivision" json:"subdivision"`
}

// Label renders the region the way it is stored in checkpoint labels ("City,ST").
func (r Region) Label() string {
	return r.Name + "," + r.Subdivision
}

// Query builds the search query for the region.
func (r Region) Query(country string) string {
	if country == "" {
		return fmt.Sprintf("%s, %s", r.Name, r.Subdivision)
	}
	return fmt.Sprintf("%s, %s, %s", r.Name, r.Subdivision, country)
}

// Checkpoint is the durable cursor over (region, listing) progress.
//
// Both indices count completed units, so they are also the index of the next
// unit to process. LastListingIndex is only meaningful for the region at
// LastRegionIndex and resets to zero whenever a region completes.
type Checkpoint struct {
	LastRegionIndex  int       `yaml:"last_region_index" json:"last_region_index"`
	LastListingIndex int       `yaml:"last_listing_index" json:"last_listing_index"`
	LastRegion       string    `yaml:"last_region,omitempty" json:"last_region,omitempty"`
	LastListing      string    `yaml:"last_listing,omitempty" json:"last_listing,omitempty"`
	UpdatedAt        time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ListingReference is the path token identifying one detail page ("/123456" or "/123456ha").
type ListingReference string

// ListingID strips the leading slash from the reference.
func (r ListingReference) ListingID() string {
	return strings.TrimPrefix(string(r), "/")
}

// ListingRecord is the structured record extracted from one detail page.
// A nil field is the empty-value sentinel for a failed extraction.
type ListingRecord struct {
	ListingID           *string  `json:"listing_id"`
	Title               *string  `json:"listing_title"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	LocationName        *string  `json:"location_name"`
	NumberReviews       *int     `json:"number_reviews"`
	AverageRating       *float64 `json:"average_rating"`
	AverageNightlyPrice *int     `json:"average_nightly_price"`
	MinStay             *int     `json:"min_stay"`
	Sleeps              *int     `json:"sleeps"`
	Bedrooms            *string  `json:"bedrooms"`
	Bathrooms           *int     `json:"bathrooms"`
	PropertyType        *string  `json:"property_type"`
	Internet            *string  `json:"internet"`
	MemberSince         *string  `json:"member_since"`
	ResponseTime        *string  `json:"response_time"`
	ResponseRate        *string  `json:"response_rate"`
	CalendarLastUpdated *string  `json:"calendar_last_updated"`
	Type                *string  `json:"type"`
	Floor               *string  `json:"floor"`
	SquareFootage       *string  `json:"sq_footage"`
	MaxOccupancy        *int     `json:"max_occupancy"`
	BuildingType        *string  `json:"building_type"`

	// FailedFields lists the fields that resolved to the empty sentinel.
	FailedFields []string `json:"-"`
}

// ReviewRecord is one review returned by the review API for a listing.
type ReviewRecord struct {
	ListingID      string `json:"listing_id"`
	TotalReviews   int    `json:"total_number_reviews"`
	SequenceNumber int    `json:"n_review"`
	ReviewerName   string `json:"reviewer_name"`
	Title          string `json:"title"`
	// Rating is the API value in its literal form, empty when absent.
	Rating        string `json:"stars"`
	StayDate      string `json:"stayed"`
	Source        string `json:"source"`
	SubmittedDate string `json:"submitted"`
}

// ReviewSet is the complete review response for one listing.
type ReviewSet struct {
	// Total is the paging metadata count reported by the API.
	Total   int
	Reviews []ReviewRecord
}

// Mismatch reports whether the API total disagrees with the reviews returned.
func (s ReviewSet) Mismatch() bool {
	return s.Total != len(s.Reviews)
}

// ListingBatch is everything emitted for one listing: its record and its reviews.
type ListingBatch struct {
	Region    Region
	Reference ListingReference
	Listing   ListingRecord
	Reviews   ReviewSet
}

// Page is a fetched document plus its parsed DOM.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Doc        *goquery.Document
	Duration   time.Duration
}

// ListingEvent is published once a listing and its reviews are durably written.
type ListingEvent struct {
	RunID       string    `json:"run_id"`
	ListingID   string    `json:"listing_id"`
	Reference   string    `json:"reference"`
	Region      string    `json:"region"`
	ReviewCount int       `json:"review_count"`
	FailedCount int       `json:"failed_fields"`
	Timestamp   time.Time `json:"timestamp"`
}
