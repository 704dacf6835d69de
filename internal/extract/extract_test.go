package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler/crawlertest"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractFullPage(t *testing.T) {
	t.Parallel()

	rec := New(nil).Extract(parse(t, crawlertest.DetailPage("vrbo-1")), "/123456ha")

	assert.Empty(t, rec.FailedFields)
	require.NotNil(t, rec.ListingID)
	assert.Equal(t, "123456ha", *rec.ListingID)
	assert.Equal(t, "Riverside Cottage", *rec.Title)
	assert.InDelta(t, 41.927, *rec.Latitude, 1e-9)
	assert.InDelta(t, -73.9974, *rec.Longitude, 1e-9)
	assert.Equal(t, "Kingston", *rec.LocationName)
	assert.InDelta(t, 4.5, *rec.AverageRating, 1e-9)
	assert.Equal(t, 150, *rec.AverageNightlyPrice)
	assert.Equal(t, 2, *rec.MinStay)
	assert.Equal(t, 6, *rec.Sleeps)
	assert.Equal(t, "3", *rec.Bedrooms)
	assert.Equal(t, 2, *rec.Bathrooms)
	assert.Equal(t, "House", *rec.PropertyType)
	assert.Equal(t, "House", *rec.Type)
	assert.Equal(t, "Yes", *rec.Internet)
	assert.Equal(t, "2012", *rec.MemberSince)
	assert.Equal(t, "within a few hours", *rec.ResponseTime)
	assert.Equal(t, "100%", *rec.ResponseRate)
	assert.Equal(t, "03/01/2024", *rec.CalendarLastUpdated)
	assert.Equal(t, "2", *rec.Floor)
	assert.Equal(t, "1200", *rec.SquareFootage)
	assert.Equal(t, 6, *rec.MaxOccupancy)
	assert.Equal(t, "Detached", *rec.BuildingType)
	assert.Nil(t, rec.NumberReviews, "review count is filled by the caller")
}

func TestExtractIsolatesSingleFieldFailure(t *testing.T) {
	t.Parallel()

	html := strings.Replace(crawlertest.DetailPage("vrbo-1"), `title="4.5 out of 5"`, `title="unrated"`, 1)
	rec := New(nil).Extract(parse(t, html), "/123456")

	assert.Equal(t, []string{"average_rating"}, rec.FailedFields)
	assert.Nil(t, rec.AverageRating)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Riverside Cottage", *rec.Title)
	require.NotNil(t, rec.AverageNightlyPrice)
	assert.Equal(t, 150, *rec.AverageNightlyPrice)
}

func TestExtractRecoversPanickingRule(t *testing.T) {
	t.Parallel()

	e := New(nil)
	e.rules = append(e.rules, rule{
		field: "exploding",
		apply: func(*goquery.Document, crawler.ListingReference, *crawler.ListingRecord) error {
			var m map[string]int
			m["boom"]++
			return nil
		},
	})

	rec := e.Extract(parse(t, crawlertest.DetailPage("vrbo-1")), "/1")
	assert.Equal(t, []string{"exploding"}, rec.FailedFields)
	require.NotNil(t, rec.BuildingType)
}

func TestExtractEmptyPage(t *testing.T) {
	t.Parallel()

	e := New(nil)
	rec := e.Extract(parse(t, "<html><body></body></html>"), "/42")

	require.NotNil(t, rec.ListingID)
	assert.Equal(t, "42", *rec.ListingID)
	require.NotNil(t, rec.Internet)
	assert.Equal(t, "No", *rec.Internet)
	assert.Nil(t, rec.Title)
	assert.Nil(t, rec.Latitude)
	assert.Len(t, rec.FailedFields, len(e.Fields())-2)
}

func TestExtractNilDocument(t *testing.T) {
	t.Parallel()

	e := New(nil)
	rec := e.Extract(nil, "/42")
	assert.Len(t, rec.FailedFields, len(e.Fields()))
}

func TestPriceWithMultibyteCurrency(t *testing.T) {
	t.Parallel()

	html := strings.Replace(crawlertest.DetailPage("vrbo-1"), "$150", "€95", 1)
	rec := New(nil).Extract(parse(t, html), "/1")
	require.NotNil(t, rec.AverageNightlyPrice)
	assert.Equal(t, 95, *rec.AverageNightlyPrice)
}
