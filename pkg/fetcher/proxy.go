package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/civic-signal/eventscraper/pkg/config"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// ProxyFetcher routes requests through an upstream scraping proxy provider
// when SCRAPER_PROXY_API_KEY (or an equivalent) is configured. It never
// surfaces ProxyRetryError itself, since it is the retry path.
type ProxyFetcher struct {
	client *http.Client
	apiKey string
	cfg    config.FetcherConfig
}

// NewProxyFetcher builds a ProxyFetcher.
func NewProxyFetcher(cfg config.FetcherConfig) *ProxyFetcher {
	return &ProxyFetcher{
		client: &http.Client{Timeout: cfg.FetchTimeout},
		apiKey: cfg.ProxyAPIKey,
		cfg:    cfg,
	}
}

// FetchPage implements Fetcher.
func (f *ProxyFetcher) FetchPage(ctx context.Context, target string, headers map[string]string, rateLimitMs int) (*Result, error) {
	if err := jitteredDelay(ctx, rateLimitMs, f.cfg.DefaultJitterMs); err != nil {
		return nil, err
	}

	start := time.Now()
	proxyURL := "https://proxy.scraperprovider.example/v1/?api_key=" + url.QueryEscape(f.apiKey) + "&url=" + url.QueryEscape(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxyURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	html := string(body)
	return &Result{
		HTML:        html,
		StatusCode:  resp.StatusCode,
		FinalURL:    target,
		ContentHash: contentHash(html),
		DurationMs:  time.Since(start).Milliseconds(),
		FetcherUsed: models.FetchProxy,
	}, nil
}
