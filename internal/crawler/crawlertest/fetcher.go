// Package crawlertest provides in-memory fakes of the crawler interfaces.
package crawlertest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

// StubFetcher serves canned bodies keyed by the full request URL. A key with
// several bodies returns them in order and then repeats the last one.
type StubFetcher struct {
	mu     sync.Mutex
	bodies map[string][]string
	errs   map[string]error
	served map[string]int
	calls  []string
}

// NewStubFetcher returns an empty fake.
func NewStubFetcher() *StubFetcher {
	return &StubFetcher{
		bodies: make(map[string][]string),
		errs:   make(map[string]error),
		served: make(map[string]int),
	}
}

// Serve registers bodies for rawURL with params.
func (f *StubFetcher) Serve(rawURL string, params url.Values, bodies ...string) *StubFetcher {
	key := mustKey(rawURL, params)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[key] = append(f.bodies[key], bodies...)
	return f
}

// Fail makes every fetch of rawURL with params return err.
func (f *StubFetcher) Fail(rawURL string, params url.Values, err error) *StubFetcher {
	key := mustKey(rawURL, params)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key] = err
	return f
}

// Fetch implements crawler.Fetcher.
func (f *StubFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (crawler.Page, error) {
	if err := ctx.Err(); err != nil {
		return crawler.Page{}, err
	}
	key, err := crawler.BuildURL(rawURL, params)
	if err != nil {
		return crawler.Page{}, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		f.mu.Unlock()
		return crawler.Page{}, err
	}
	bodies, ok := f.bodies[key]
	if !ok || len(bodies) == 0 {
		f.mu.Unlock()
		return crawler.Page{}, fmt.Errorf("stub fetcher: no body for %s", key)
	}
	n := f.served[key]
	f.served[key] = n + 1
	if n >= len(bodies) {
		n = len(bodies) - 1
	}
	body := bodies[n]
	f.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return crawler.Page{}, err
	}
	return crawler.Page{
		URL:        key,
		StatusCode: http.StatusOK,
		Headers:    http.Header{},
		Body:       []byte(body),
		Doc:        doc,
	}, nil
}

// Calls returns the URLs fetched so far.
func (f *StubFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts fetches of rawURL with params.
func (f *StubFetcher) CallCount(rawURL string, params url.Values) int {
	key := mustKey(rawURL, params)
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func mustKey(rawURL string, params url.Values) string {
	key, err := crawler.BuildURL(rawURL, params)
	if err != nil {
		panic(err)
	}
	return key
}
