// Package readiness re-fetches listing detail pages until the embedded
// listing API identifier has been rendered.
package readiness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/metrics"
)

const (
	apiIDSelector  = "li.dropdown.favorite-button.js-favoriteButtonView"
	apiIDAttribute = "data-spu"
)

// Config bounds the poll. MaxAttempts counts inspected snapshots; zero polls forever.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
}

// Gate polls a detail page until it is ready.
type Gate struct {
	fetcher crawler.Fetcher
	baseURL string
	cfg     Config
	logger  *zap.Logger
}

// New builds a Gate that resolves references against baseURL.
func New(fetcher crawler.Fetcher, baseURL string, cfg Config, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	return &Gate{fetcher: fetcher, baseURL: baseURL, cfg: cfg, logger: logger}
}

// Load fetches the detail page for ref and waits until it is ready.
func (g *Gate) Load(ctx context.Context, ref crawler.ListingReference) (crawler.Page, string, error) {
	page, err := g.fetch(ctx, ref)
	if err != nil {
		return crawler.Page{}, "", err
	}
	return g.EnsureReady(ctx, page, ref)
}

// EnsureReady returns page, or a later snapshot of ref, that carries the
// listing API identifier, together with that identifier. Giving up wraps
// crawler.ErrNotReady.
func (g *Gate) EnsureReady(ctx context.Context, page crawler.Page, ref crawler.ListingReference) (crawler.Page, string, error) {
	for attempt := 1; ; attempt++ {
		if id, ok := APIListingID(page.Doc); ok {
			return page, id, nil
		}
		if g.cfg.MaxAttempts > 0 && attempt >= g.cfg.MaxAttempts {
			return crawler.Page{}, "", fmt.Errorf("%w: %s after %d attempts", crawler.ErrNotReady, ref, attempt)
		}
		g.logger.Warn("listing api id missing, page probably still loading",
			zap.String("listing", string(ref)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", g.cfg.Delay),
		)
		if err := crawler.Sleep(ctx, g.cfg.Delay); err != nil {
			return crawler.Page{}, "", err
		}
		metrics.ObserveReadinessPoll()
		next, err := g.fetch(ctx, ref)
		if err != nil {
			return crawler.Page{}, "", err
		}
		page = next
	}
}

func (g *Gate) fetch(ctx context.Context, ref crawler.ListingReference) (crawler.Page, error) {
	target := crawler.JoinPath(g.baseURL, string(ref))
	g.logger.Info("fetching listing", zap.String("url", target))
	page, err := g.fetcher.Fetch(ctx, target, nil)
	if err != nil {
		return crawler.Page{}, fmt.Errorf("listing %s: %w", ref, err)
	}
	return page, nil
}

// APIListingID returns the data-spu value of the favorite button.
func APIListingID(doc *goquery.Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	id, ok := doc.Find(apiIDSelector).First().Attr(apiIDAttribute)
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
