// Package discovery finds how many result pages a region has and which
// listing references each page links to.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

const pageCountMarker = "pageCount"

var pageCountPattern = regexp.MustCompile(`"pageCount":(\d*),`)

// Discoverer walks a region's search results.
type Discoverer struct {
	fetcher   crawler.Fetcher
	searchURL string
	country   string
	logger    *zap.Logger
}

// New builds a Discoverer that queries searchURL.
func New(fetcher crawler.Fetcher, searchURL, country string, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		fetcher:   fetcher,
		searchURL: searchURL,
		country:   country,
		logger:    logger,
	}
}

// PageCount fetches the first results page and reads its embedded page
// count. Zero or several marker scripts, or a marker without a number, yield
// a *crawler.StructuralError.
func (d *Discoverer) PageCount(ctx context.Context, region crawler.Region) (int, error) {
	page, err := d.fetchResults(ctx, region, 1)
	if err != nil {
		return 0, err
	}
	count, err := ParsePageCount(page.Doc, region)
	if err != nil {
		return 0, err
	}
	d.logger.Info("page count discovered",
		zap.String("region", region.Label()),
		zap.Int("page_count", count),
	)
	return count, nil
}

// Listings returns the listing references on one results page in DOM order.
func (d *Discoverer) Listings(ctx context.Context, region crawler.Region, pageNumber int) ([]crawler.ListingReference, error) {
	page, err := d.fetchResults(ctx, region, pageNumber)
	if err != nil {
		return nil, err
	}
	refs := ParseListings(page.Doc)
	d.logger.Debug("listings discovered",
		zap.String("region", region.Label()),
		zap.Int("page", pageNumber),
		zap.Int("listings", len(refs)),
	)
	return refs, nil
}

// AllListings concatenates the references of pages 1..PageCount.
func (d *Discoverer) AllListings(ctx context.Context, region crawler.Region) ([]crawler.ListingReference, error) {
	count, err := d.PageCount(ctx, region)
	if err != nil {
		return nil, err
	}
	var refs []crawler.ListingReference
	for p := 1; p <= count; p++ {
		pageRefs, err := d.Listings(ctx, region, p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, pageRefs...)
	}
	return refs, nil
}

func (d *Discoverer) fetchResults(ctx context.Context, region crawler.Region, pageNumber int) (crawler.Page, error) {
	d.logger.Info("fetching results page",
		zap.String("region", region.Label()),
		zap.Int("page", pageNumber),
	)
	params := url.Values{}
	params.Set("q", region.Query(d.country))
	params.Set("page", strconv.Itoa(pageNumber))
	page, err := d.fetcher.Fetch(ctx, d.searchURL, params)
	if err != nil {
		return crawler.Page{}, fmt.Errorf("results page %d for %s: %w", pageNumber, region.Label(), err)
	}
	if page.Doc == nil {
		return crawler.Page{}, fmt.Errorf("results page %d for %s: empty document", pageNumber, region.Label())
	}
	return page, nil
}

// ParsePageCount extracts the page count from the single attribute-less
// script that mentions pageCount.
func ParsePageCount(doc *goquery.Document, region crawler.Region) (int, error) {
	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if len(s.Nodes[0].Attr) != 0 {
			return
		}
		text := s.Text()
		if strings.Contains(text, pageCountMarker) {
			scripts = append(scripts, text)
		}
	})
	if len(scripts) != 1 {
		return 0, &crawler.StructuralError{
			Region: region,
			Reason: fmt.Sprintf("expected exactly one script with %s, found %d", pageCountMarker, len(scripts)),
		}
	}
	match := pageCountPattern.FindStringSubmatch(scripts[0])
	if match == nil {
		return 0, &crawler.StructuralError{Region: region, Reason: "pageCount marker not followed by a number"}
	}
	count, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, &crawler.StructuralError{Region: region, Reason: fmt.Sprintf("pageCount %q is not an integer", match[1])}
	}
	return count, nil
}

// ParseListings returns the first anchor href of every data-spu container.
// Containers without an anchor href are skipped.
func ParseListings(doc *goquery.Document) []crawler.ListingReference {
	var refs []crawler.ListingReference
	doc.Find("div[data-spu]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a").First().Attr("href")
		if !ok {
			return
		}
		refs = append(refs, crawler.ListingReference(href))
	})
	return refs
}
