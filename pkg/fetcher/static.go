package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/corpix/uarand"

	"github.com/civic-signal/eventscraper/pkg/config"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// StaticFetcher performs a plain HTTP GET, randomizing its User-Agent per
// request to avoid trivial fingerprinting by target sites.
type StaticFetcher struct {
	client *http.Client
	cfg    config.FetcherConfig
}

// NewStaticFetcher builds a StaticFetcher.
func NewStaticFetcher(cfg config.FetcherConfig) *StaticFetcher {
	return &StaticFetcher{
		client: &http.Client{Timeout: cfg.FetchTimeout},
		cfg:    cfg,
	}
}

// FetchPage implements Fetcher.
func (f *StaticFetcher) FetchPage(ctx context.Context, url string, headers map[string]string, rateLimitMs int) (*Result, error) {
	if err := jitteredDelay(ctx, rateLimitMs, f.cfg.DefaultJitterMs); err != nil {
		return nil, err
	}

	var result *Result
	var err error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		result, err = f.doFetch(ctx, url, headers)
		if err != nil {
			return nil, err
		}
		if result.StatusCode != http.StatusTooManyRequests {
			break
		}
		if attempt == f.cfg.MaxRetries {
			break
		}
		d := backoffDelay(f.cfg.BackoffBase, f.cfg.BackoffCap, f.cfg.BackoffJitter, attempt)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if shouldSurfaceProxyRetry(result.StatusCode, false) {
		return result, &ProxyRetryError{StatusCode: result.StatusCode, URL: url}
	}
	return result, nil
}

func (f *StaticFetcher) doFetch(ctx context.Context, url string, headers map[string]string) (*Result, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", uarand.GetRandom())
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
		FinalURL:    resp.Request.URL.String(),
		ContentHash: contentHash(html),
		DurationMs:  time.Since(start).Milliseconds(),
		FetcherUsed: models.FetchStatic,
	}, nil
}
