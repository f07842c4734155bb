package fetcher

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/civic-signal/eventscraper/pkg/config"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// HeadlessFetcher drives a real browser via chromedp, for sources whose
// fetch_strategy is headless (CMS-rendered single-page apps whose initial
// HTML has no usable hydration payload statically). The requires_render
// flag in extraction_config is not consulted when a fetcher is chosen.
type HeadlessFetcher struct {
	cfg config.FetcherConfig
}

// NewHeadlessFetcher builds a HeadlessFetcher.
func NewHeadlessFetcher(cfg config.FetcherConfig) *HeadlessFetcher {
	return &HeadlessFetcher{cfg: cfg}
}

// FetchPage implements Fetcher.
func (f *HeadlessFetcher) FetchPage(ctx context.Context, url string, headers map[string]string, rateLimitMs int) (*Result, error) {
	if err := jitteredDelay(ctx, rateLimitMs, f.cfg.DefaultJitterMs); err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewContext(ctx)
	defer cancelAlloc()
	runCtx, cancelTimeout := context.WithTimeout(allocCtx, f.cfg.FetchTimeout)
	defer cancelTimeout()

	start := time.Now()
	var html string
	var finalURL string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, err
	}

	return &Result{
		HTML:        html,
		StatusCode:  200,
		FinalURL:    finalURL,
		ContentHash: contentHash(html),
		DurationMs:  time.Since(start).Milliseconds(),
		FetcherUsed: models.FetchHeadless,
	}, nil
}
