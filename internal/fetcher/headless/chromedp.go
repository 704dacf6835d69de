// Package headless contains a Transport that renders pages in headless Chrome.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/metrics"
	"github.com/JakeFAU/vacation-rental-crawler/internal/policy/ratelimit"
)

const (
	transportName = "headless"

	// DefaultReadySelector matches the favorite button that carries the
	// listing API id on detail pages.
	DefaultReadySelector = "li.js-favoriteButtonView[data-spu]"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// SettleDelay gives client-side scripts time to populate the DOM.
	SettleDelay time.Duration
	// ReadySelector is awaited before the DOM is captured. Empty uses
	// DefaultReadySelector.
	ReadySelector string
	// ReadyTimeout bounds the wait for ReadySelector. Pages without the
	// element are captured as they are once it expires.
	ReadyTimeout time.Duration
}

// Fetcher implements crawler.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	retry       crawler.RetryPolicy
	limiter     *ratelimit.Limiter
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config, retry crawler.RetryPolicy, limiter *ratelimit.Limiter, logger *zap.Logger) (*Fetcher, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, fmt.Errorf("navigation timeout must be >= 0")
	}
	if cfg.SettleDelay < 0 {
		return nil, fmt.Errorf("settle delay must be >= 0")
	}
	if cfg.ReadyTimeout < 0 {
		return nil, fmt.Errorf("ready timeout must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == nil {
		retry = crawler.FixedRetryPolicy(1, time.Millisecond)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		retry:       retry,
		limiter:     limiter,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a headless browser and returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (crawler.Page, error) {
	target, err := crawler.BuildURL(rawURL, params)
	if err != nil {
		return crawler.Page{}, err
	}
	var page crawler.Page
	onRetry := func(attempt int, delay time.Duration, err error) {
		metrics.ObserveFetchRetry(transportName)
		f.logger.Warn("headless fetch failed, retrying",
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
		return crawler.Page{}, fmt.Errorf("headless fetch %s: %w", target, err)
	}
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (crawler.Page, error) {
	if err := f.limiter.Wait(ctx, target); err != nil {
		return crawler.Page{}, err
	}
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.navTimeout())
	defer cancel()

	// Stop the browser task when the caller gives up.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := f.runHeadless(taskCtx, target)
	if err != nil {
		metrics.ObserveFetch(target, "error", time.Since(start))
		return crawler.Page{}, err
	}
	status, headers, responseURL := meta.snapshotWithFallbacks(target, finalURL)
	if headers == nil {
		headers = http.Header{}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		metrics.ObserveFetch(target, "error", time.Since(start))
		return crawler.Page{}, fmt.Errorf("parse rendered document: %w", err)
	}
	duration := time.Since(start)
	metrics.ObserveFetch(target, "success", duration)
	return crawler.Page{
		URL:        responseURL,
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(html),
		Doc:        doc,
		Duration:   duration,
	}, nil
}

func (f *Fetcher) runHeadless(ctx context.Context, target string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		f.waitForSelector(target),
		chromedp.Sleep(f.settleDelay()),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

// waitForSelector waits up to readyTimeout for the ready selector. Running out
// of time is not an error; the readiness gate decides what to do with the page.
func (f *Fetcher) waitForSelector(target string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, f.readyTimeout())
		defer cancel()
		err := chromedp.WaitReady(f.readySelector(), chromedp.ByQuery).Do(waitCtx)
		if err == nil || ctx.Err() != nil {
			return err
		}
		f.logger.Debug("ready selector not found, capturing page as rendered",
			zap.String("url", target),
			zap.String("selector", f.readySelector()),
			zap.Duration("timeout", f.readyTimeout()),
		)
		return nil
	})
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return 45 * time.Second
}

func (f *Fetcher) readySelector() string {
	if f.cfg.ReadySelector != "" {
		return f.cfg.ReadySelector
	}
	return DefaultReadySelector
}

func (f *Fetcher) readyTimeout() time.Duration {
	if f.cfg.ReadyTimeout > 0 {
		return f.cfg.ReadyTimeout
	}
	return 10 * time.Second
}

func (f *Fetcher) settleDelay() time.Duration {
	if f.cfg.SettleDelay > 0 {
		return f.cfg.SettleDelay
	}
	return 500 * time.Millisecond
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, cloneHeader(m.headers), m.url
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, url := m.snapshot()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}

	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}
