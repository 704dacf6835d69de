// Package reviews downloads the complete review set of a listing in one call.
package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/metrics"
)

// Config describes the review endpoint.
type Config struct {
	// BaseURL is the site root, for example https://www.vrbo.com.
	BaseURL string
	// Path is a format string with one %s for the API listing id.
	Path string
	// PageSize is set far above any plausible review count so one page holds all reviews.
	PageSize int
	// Source tags every ReviewRecord.
	Source string
}

// Fetcher calls the review API.
type Fetcher struct {
	fetcher crawler.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds a review Fetcher.
func New(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100000
	}
	return &Fetcher{fetcher: fetcher, cfg: cfg, logger: logger}
}

type response struct {
	List *[]struct {
		Reviewer struct {
			Nickname string `json:"nickname"`
		} `json:"reviewer"`
		Headline    string          `json:"headline"`
		Rating      json.RawMessage `json:"rating"`
		ArrivalDate string          `json:"arrivalDate"`
		CreatedDate string          `json:"createdDate"`
	} `json:"list"`
	PagingContext *struct {
		TotalResults *int `json:"totalResults"`
	} `json:"pagingContext"`
}

// Endpoint returns the review URL for apiListingID.
func (f *Fetcher) Endpoint(apiListingID string) string {
	return crawler.JoinPath(f.cfg.BaseURL, fmt.Sprintf(f.cfg.Path, url.PathEscape(apiListingID)))
}

// FetchReviews returns every review of ref, numbered from 1 in API order.
// Total comes from the paging metadata and may differ from len(Reviews);
// such a mismatch is logged and counted, not corrected.
func (f *Fetcher) FetchReviews(ctx context.Context, apiListingID string, ref crawler.ListingReference) (crawler.ReviewSet, error) {
	endpoint := f.Endpoint(apiListingID)
	params := url.Values{}
	params.Set("pageNum", "1")
	params.Set("pageSize", strconv.Itoa(f.cfg.PageSize))

	f.logger.Info("fetching reviews", zap.String("url", endpoint), zap.String("listing", string(ref)))
	page, err := f.fetcher.Fetch(ctx, endpoint, params)
	if err != nil {
		return crawler.ReviewSet{}, fmt.Errorf("reviews for %s: %w", ref, err)
	}
	if page.StatusCode >= http.StatusBadRequest {
		return crawler.ReviewSet{}, fmt.Errorf("reviews for %s: endpoint returned status %d", ref, page.StatusCode)
	}

	set, err := decode(page.Body, ref, f.cfg.Source)
	if err != nil {
		return crawler.ReviewSet{}, fmt.Errorf("reviews for %s: %w", ref, err)
	}
	if set.Mismatch() {
		metrics.ObserveReviewCountMismatch()
		f.logger.Warn("review total does not match reviews returned",
			zap.String("listing", string(ref)),
			zap.Int("total_results", set.Total),
			zap.Int("returned", len(set.Reviews)),
		)
	}
	return set, nil
}

func decode(body []byte, ref crawler.ListingReference, source string) (crawler.ReviewSet, error) {
	var resp response
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&resp); err != nil {
		return crawler.ReviewSet{}, fmt.Errorf("decode review response: %w", err)
	}
	if resp.List == nil {
		return crawler.ReviewSet{}, errors.New("review response has no list")
	}
	if resp.PagingContext == nil || resp.PagingContext.TotalResults == nil {
		return crawler.ReviewSet{}, errors.New("review response has no pagingContext.totalResults")
	}

	total := *resp.PagingContext.TotalResults
	listingID := ref.ListingID()
	out := make([]crawler.ReviewRecord, 0, len(*resp.List))
	for i, item := range *resp.List {
		out = append(out, crawler.ReviewRecord{
			ListingID:      listingID,
			TotalReviews:   total,
			SequenceNumber: i + 1,
			ReviewerName:   item.Reviewer.Nickname,
			Title:          item.Headline,
			Rating:         ratingText(item.Rating),
			StayDate:       item.ArrivalDate,
			Source:         source,
			SubmittedDate:  item.CreatedDate,
		})
	}
	return crawler.ReviewSet{Total: total, Reviews: out}, nil
}

// ratingText keeps the rating as the API sent it: numbers keep their literal
// form, strings are unquoted and an absent or null rating is empty.
func ratingText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
