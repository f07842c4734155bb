// Package fetcher implements the pipeline's HTTP transport abstraction:
// FetchPage is satisfied by static, headless, and proxy implementations,
// selected by a small factory keyed on a source's fetch_strategy.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/civic-signal/eventscraper/pkg/config"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// ProxyRetryError is returned when a non-proxy fetch is blocked (403/429),
// signaling the worker to reset the job for exactly one proxy retry.
type ProxyRetryError struct {
	StatusCode int
	URL        string
}

func (e *ProxyRetryError) Error() string {
	return fmt.Sprintf("fetch blocked (status %d) for %s, proxy retry required", e.StatusCode, e.URL)
}

// ErrNetworkFailure wraps any non-HTTP transport error (DNS, TLS, timeout).
var ErrNetworkFailure = errors.New("fetcher: network failure")

// Result is FetchPage's return contract.
type Result struct {
	HTML        string
	StatusCode  int
	FinalURL    string
	ContentHash string
	DurationMs  int64
	FetcherUsed models.FetchStrategy
}

// Fetcher retrieves one page. Implementations never return an error for
// 4xx/5xx HTTP statuses (those are reported via Result.StatusCode) except
// for 403/429 on a non-proxy fetch, which surfaces as *ProxyRetryError.
type Fetcher interface {
	FetchPage(ctx context.Context, url string, headers map[string]string, rateLimitMs int) (*Result, error)
}

// Factory selects a Fetcher implementation by strategy, mirroring the
// teacher's agent.ControllerFactory / agent.AgentFactory config-driven
// construction pattern: no type switches scattered through callers.
type Factory struct {
	static   Fetcher
	headless Fetcher
	proxy    Fetcher
}

// NewFactory builds a Factory. proxyAPIKey being empty means the proxy
// strategy falls back to static (the proxy path only activates when a
// provider key is configured, per spec §6).
func NewFactory(cfg config.FetcherConfig) *Factory {
	static := NewStaticFetcher(cfg)
	headless := NewHeadlessFetcher(cfg)
	var proxy Fetcher = static
	if cfg.ProxyAPIKey != "" {
		proxy = NewProxyFetcher(cfg)
	}
	return &Factory{static: static, headless: headless, proxy: proxy}
}

// For returns the Fetcher implementation for a strategy.
func (f *Factory) For(strategy models.FetchStrategy) Fetcher {
	switch strategy {
	case models.FetchHeadless:
		return f.headless
	case models.FetchProxy:
		return f.proxy
	default:
		return f.static
	}
}

// jitteredDelay sleeps baseMs +/- jitterMs before a fetch, honoring a
// source's per-source rate_limit_ms.
func jitteredDelay(ctx context.Context, baseMs, jitterMs int) error {
	if baseMs <= 0 {
		return nil
	}
	delta := 0
	if jitterMs > 0 {
		delta = rand.IntN(2*jitterMs) - jitterMs
	}
	d := time.Duration(baseMs+delta) * time.Millisecond
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoffDelay computes capped exponential backoff with jitter for 429
// retries: base*2^attempt, capped at 30s, +/-20% jitter.
func backoffDelay(base, cap time.Duration, jitterFrac float64, attempt int) time.Duration {
	d := base * time.Duration(1<<attempt)
	if d > cap {
		d = cap
	}
	jitter := float64(d) * jitterFrac * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}

func contentHash(html string) string {
	sum := sha256.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}

// shouldSurfaceProxyRetry reports whether status requires a typed
// ProxyRetryError on a non-proxy fetch.
func shouldSurfaceProxyRetry(status int, isProxy bool) bool {
	return !isProxy && (status == http.StatusForbidden || status == http.StatusTooManyRequests)
}
