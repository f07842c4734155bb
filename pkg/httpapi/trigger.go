package httpapi

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"
)

// SelfTrigger fires a fire-and-forget POST back to this same server to
// request an immediate follow-up invocation (coordinator -> worker,
// worker batch-full -> another worker batch) instead of waiting for the
// next scheduled/poll-driven call. Satisfies both coordinator.Trigger and
// worker's unexported coordinatorTrigger interface structurally.
type SelfTrigger struct {
	baseURL string
	client  *http.Client
}

// NewSelfTrigger builds a trigger posting against baseURL (e.g.
// "http://localhost:8080"). A nil *SelfTrigger is a safe no-op.
func NewSelfTrigger(baseURL string) *SelfTrigger {
	if baseURL == "" {
		return nil
	}
	return &SelfTrigger{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

// TriggerWorker posts to /worker in the background; ctx is not used for
// the request itself since the caller's request may finish (and its
// context be canceled) before the follow-up completes.
func (t *SelfTrigger) TriggerWorker(ctx context.Context) {
	if t == nil {
		return
	}
	go func() {
		reqCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.baseURL+"/worker", bytes.NewReader([]byte("{}")))
		if err != nil {
			slog.Warn("failed to build self-trigger request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			slog.Warn("self-trigger request failed", "error", err)
			return
		}
		defer resp.Body.Close()
	}()
}
