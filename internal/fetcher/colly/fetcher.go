// Package collyfetcher implements the crawl Transport using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/metrics"
	"github.com/JakeFAU/vacation-rental-crawler/internal/policy/ratelimit"
)

const transportName = "colly"

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	// Timeout bounds a single attempt so a hung connection cannot block retries.
	Timeout time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector.
// Every failed attempt is retried according to the retry policy.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	retry         crawler.RetryPolicy
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// StatusError reports a response the server flagged as temporarily failing.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// New builds a Fetcher. A nil retry policy disables retries.
func New(cfg Config, retry crawler.RetryPolicy, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == nil {
		retry = crawler.FixedRetryPolicy(1, time.Millisecond)
	}
	// The readiness gate fetches the same detail page repeatedly.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = 64 << 20

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		retry:         retry,
		limiter:       limiter,
		logger:        logger,
	}
}

// Fetch issues a GET for rawURL with params, retrying failed attempts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (crawler.Page, error) {
	target, err := crawler.BuildURL(rawURL, params)
	if err != nil {
		return crawler.Page{}, err
	}
	var page crawler.Page
	onRetry := func(attempt int, delay time.Duration, err error) {
		metrics.ObserveFetchRetry(transportName)
		f.logger.Warn("fetch failed, retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	err = crawler.Retry(ctx, f.retry, onRetry, func(ctx context.Context) error {
		p, err := f.fetchOnce(ctx, target)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return crawler.Page{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (crawler.Page, error) {
	if err := f.limiter.Wait(ctx, target); err != nil {
		return crawler.Page{}, err
	}
	var (
		result   crawler.Page
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(start, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, target, &fetchErr); err != nil {
		metrics.ObserveFetch(target, "error", time.Since(start))
		return crawler.Page{}, err
	}
	if retryableStatus(result.StatusCode) {
		metrics.ObserveFetch(target, "error", result.Duration)
		return crawler.Page{}, &StatusError{URL: target, StatusCode: result.StatusCode}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		metrics.ObserveFetch(target, "error", result.Duration)
		return crawler.Page{}, fmt.Errorf("parse document: %w", err)
	}
	result.Doc = doc
	metrics.ObserveFetch(target, "success", result.Duration)
	return result, nil
}

func (f *Fetcher) buildCollector(start time.Time, result *crawler.Page, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(f.timeout())
	collector.WithTransport(f.transport)

	f.configureCollectorHooks(collector, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) timeout() time.Duration {
	if f.cfg.Timeout > 0 {
		return f.cfg.Timeout
	}
	return 5 * time.Second
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
