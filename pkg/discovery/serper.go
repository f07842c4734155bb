package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SerperSearcher implements Searcher against Serper's single-endpoint
// search API, with capped exponential backoff on 429 like the rest of
// this pipeline's outbound HTTP calls.
type SerperSearcher struct {
	apiKey     string
	client     *http.Client
	maxRetries int
}

// NewSerperSearcher builds a SerperSearcher. apiKey being empty means
// Search always returns an error; callers should check for that at
// wiring time rather than construct one unconditionally.
func NewSerperSearcher(apiKey string, timeout time.Duration, maxRetries int) *SerperSearcher {
	return &SerperSearcher{
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

type serperRequest struct {
	Q string `json:"q"`
}

type serperResponse struct {
	Organic []struct {
		Link  string `json:"link"`
		Title string `json:"title"`
	} `json:"organic"`
}

// Search implements Searcher.
func (s *SerperSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("serper: no API key configured")
	}

	body, err := json.Marshal(serperRequest{Q: query})
	if err != nil {
		return nil, fmt.Errorf("serper: encode request: %w", err)
	}

	var resp *http.Response
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://google.serper.dev/search", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("serper: build request: %w", err)
		}
		req.Header.Set("X-API-KEY", s.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err = s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("serper: request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()
		if attempt == s.maxRetries {
			return nil, fmt.Errorf("serper: rate limited after %d retries", s.maxRetries)
		}
		d := time.Duration(1<<attempt) * time.Second
		if d > 30*time.Second {
			d = 30 * time.Second
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: unexpected status %d", resp.StatusCode)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("serper: decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Organic))
	for _, o := range parsed.Organic {
		results = append(results, SearchResult{URL: o.Link, Title: o.Title})
	}
	return results, nil
}
