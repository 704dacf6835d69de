// Package extract turns a loaded listing detail page into a ListingRecord.
//
// Every output field has its own rule. A rule that fails, including by
// panicking, leaves its field nil and is recorded in FailedFields; the
// remaining rules still run.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/metrics"
)

var errAnchorMissing = errors.New("anchor not found")

var (
	decimalPattern      = regexp.MustCompile(`(\d*\.\d*)`)
	digitsPattern       = regexp.MustCompile(`\d+`)
	internetPattern     = regexp.MustCompile(`Internet`)
	responseTimePattern = regexp.MustCompile(`(?i)response time`)
	responseRatePattern = regexp.MustCompile(`Response rate`)
	calendarPattern     = regexp.MustCompile(`Calendar last updated`)
	maxOccupancyPattern = regexp.MustCompile(`Max. occupancy`)
)

// rule fills one field of rec from the page.
type rule struct {
	field string
	apply func(doc *goquery.Document, ref crawler.ListingReference, rec *crawler.ListingRecord) error
}

// Extractor applies the listing rule table.
type Extractor struct {
	rules  []rule
	logger *zap.Logger
}

// New builds an Extractor with the standard rule table.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{rules: listingRules(), logger: logger}
}

// Fields lists the fields produced by the rule table in output order.
func (e *Extractor) Fields() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.field)
	}
	return out
}

// Extract runs every rule against doc. It never fails as a whole.
func (e *Extractor) Extract(doc *goquery.Document, ref crawler.ListingReference) crawler.ListingRecord {
	var rec crawler.ListingRecord
	for _, r := range e.rules {
		if err := runRule(r, doc, ref, &rec); err != nil {
			rec.FailedFields = append(rec.FailedFields, r.field)
			metrics.ObserveFieldFailure(r.field)
			e.logger.Error("could not retrieve listing attribute",
				zap.String("field", r.field),
				zap.String("listing", string(ref)),
				zap.Error(err),
			)
		}
	}
	return rec
}

func runRule(r rule, doc *goquery.Document, ref crawler.ListingReference, rec *crawler.ListingRecord) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("rule panicked: %v", p)
		}
	}()
	if doc == nil {
		return errors.New("no document")
	}
	return r.apply(doc, ref, rec)
}

func listingRules() []rule {
	return []rule{
		{"listing_id", func(_ *goquery.Document, ref crawler.ListingReference, rec *crawler.ListingRecord) error {
			rec.ListingID = ptr(ref.ListingID())
			return nil
		}},
		{"listing_title", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.Title)(firstText(doc.Find("span.listing-headline-text")))
		}},
		{"latitude", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setFloat(&rec.Latitude)(firstAttr(doc.Find(`meta[property="homeaway:location:latitude"]`), "content"))
		}},
		{"longitude", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setFloat(&rec.Longitude)(firstAttr(doc.Find(`meta[property="homeaway:location:longitude"]`), "content"))
		}},
		{"location_name", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.LocationName)(firstText(doc.Find("a.js-breadcrumbLink")))
		}},
		{"average_rating", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			title, err := firstAttr(doc.Find("div.rating"), "title")
			if err != nil {
				return err
			}
			return setFloat(&rec.AverageRating)(match(decimalPattern, title, 0))
		}},
		{"average_nightly_price", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			text, err := firstText(doc.Find("div.price-large"))
			if err != nil {
				return err
			}
			return setInt(&rec.AverageNightlyPrice)(dropFirstRune(text), nil)
		}},
		{"min_stay", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			text, err := labelValue(doc, "Minimum Stay")
			if err != nil {
				return err
			}
			return setInt(&rec.MinStay)(match(digitsPattern, text, 0))
		}},
		{"sleeps", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setInt(&rec.Sleeps)(labelValue(doc, "Sleeps"))
		}},
		{"bedrooms", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.Bedrooms)(labelValue(doc, "Bedrooms"))
		}},
		{"bathrooms", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setInt(&rec.Bathrooms)(labelValue(doc, "Bathrooms"))
		}},
		{"property_type", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.PropertyType)(firstText(doc.Find("#propertyType").First().Next().Find("li")))
		}},
		{"internet", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			value := "No"
			if textParent(doc, internetPattern.MatchString).Length() > 0 {
				value = "Yes"
			}
			rec.Internet = ptr(value)
			return nil
		}},
		{"member_since", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			text, err := firstText(doc.Find("div.advertiser-date"))
			if err != nil {
				return err
			}
			return setString(&rec.MemberSince)(match(digitsPattern, text, 0))
		}},
		{"response_time", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.ResponseTime)(firstText(textParent(doc, responseTimePattern.MatchString).Find("strong")))
		}},
		{"response_rate", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.ResponseRate)(firstText(textParent(doc, responseRatePattern.MatchString).Find("strong")))
		}},
		{"calendar_last_updated", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.CalendarLastUpdated)(firstText(textParent(doc, calendarPattern.MatchString).Find("strong")))
		}},
		{"type", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.Type)(firstText(doc.Find("#propertyType").First().Next().Find("li")))
		}},
		{"floor", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			text, err := firstText(doc.Find("#propertyType").First().Next().Next().Find("li"))
			if err != nil {
				return err
			}
			return setString(&rec.Floor)(match(digitsPattern, text, 0))
		}},
		{"sq_footage", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			label := doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return strings.TrimSpace(ownText(s)) == "Floor Area:" && s.Children().Length() == 0
			}).First()
			text, err := firstText(label.Next().Find("li"))
			if err != nil {
				return err
			}
			return setString(&rec.SquareFootage)(match(digitsPattern, text, 0))
		}},
		{"max_occupancy", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setInt(&rec.MaxOccupancy)(firstText(textParent(doc, maxOccupancyPattern.MatchString).Find("span")))
		}},
		{"building_type", func(doc *goquery.Document, _ crawler.ListingReference, rec *crawler.ListingRecord) error {
			return setString(&rec.BuildingType)(firstText(doc.Find("#buildingtype").First().Next().Find("li")))
		}},
	}
}

func ptr[T any](v T) *T {
	return &v
}

func setString(dst **string) func(string, error) error {
	return func(v string, err error) error {
		if err != nil {
			return err
		}
		*dst = ptr(v)
		return nil
	}
}

func setInt(dst **int) func(string, error) error {
	return func(v string, err error) error {
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}
		*dst = ptr(n)
		return nil
	}
}

func setFloat(dst **float64) func(string, error) error {
	return func(v string, err error) error {
		if err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}
		*dst = ptr(f)
		return nil
	}
}

func firstText(s *goquery.Selection) (string, error) {
	if s.Length() == 0 {
		return "", errAnchorMissing
	}
	return strings.TrimSpace(s.First().Text()), nil
}

func firstAttr(s *goquery.Selection, name string) (string, error) {
	if s.Length() == 0 {
		return "", errAnchorMissing
	}
	v, ok := s.First().Attr(name)
	if !ok {
		return "", fmt.Errorf("attribute %q missing", name)
	}
	return v, nil
}

func match(re *regexp.Regexp, text string, group int) (string, error) {
	m := re.FindStringSubmatch(text)
	if m == nil || len(m) <= group {
		return "", fmt.Errorf("%q does not match %s", text, re)
	}
	return m[group], nil
}

func dropFirstRune(s string) string {
	for i := range s {
		if i > 0 {
			return s[i:]
		}
	}
	return ""
}

// labelValue finds the element whose own text is exactly label and returns
// the text of its next element sibling.
func labelValue(doc *goquery.Document, label string) (string, error) {
	parent := textParent(doc, func(text string) bool { return strings.TrimSpace(text) == label })
	if parent.Length() == 0 {
		return "", fmt.Errorf("label %q: %w", label, errAnchorMissing)
	}
	return firstText(parent.Next())
}

// textParent returns the element owning the first text node accepted by
// matches, in document order.
func textParent(doc *goquery.Document, matches func(string) bool) *goquery.Selection {
	var walk func(n *html.Node) *html.Node
	walk = func(n *html.Node) *html.Node {
		if n.Type == html.TextNode && n.Parent != nil && n.Parent.Type == html.ElementNode && matches(n.Data) {
			return n.Parent
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := walk(c); found != nil {
				return found
			}
		}
		return nil
	}
	for _, root := range doc.Nodes {
		if found := walk(root); found != nil {
			return doc.FindNodes(found)
		}
	}
	return doc.FindNodes()
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}
