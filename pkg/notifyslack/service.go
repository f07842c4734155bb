package slack

import (
	"context"
	"log/slog"
	"time"

	"github.com/civic-signal/eventscraper/pkg/coordinator"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
	// DLQAlertThreshold is the threshold quoted in the DLQ alert text
	// (default 50). It does not gate posting: pkg/dlq decides when to call
	// PostDLQAlert, using its own fixed limit of 50 pending+retrying
	// items.
	DLQAlertThreshold int
}

// Service handles Slack notification delivery and implements
// coordinator.Notifier, worker.Notifier, and dlq.Notifier.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client    *Client
	threshold int
	logger    *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	threshold := cfg.DLQAlertThreshold
	if threshold == 0 {
		threshold = 50
	}
	return &Service{
		client:    NewClient(cfg.Token, cfg.Channel),
		threshold: threshold,
		logger:    slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, threshold int) *Service {
	if threshold == 0 {
		threshold = 50
	}
	return &Service{
		client:    client,
		threshold: threshold,
		logger:    slog.Default().With("component", "slack-service"),
	}
}

// PostScrapeSummary implements coordinator.Notifier. Fail-open: errors are
// logged, never returned, so a Slack outage never blocks the pipeline.
func (s *Service) PostScrapeSummary(ctx context.Context, summary coordinator.Summary) error {
	if s == nil {
		return nil
	}
	blocks := BuildScrapeSummaryMessage(summary)
	if err := s.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		s.logger.Warn("failed to post scrape summary", "error", err)
	}
	return nil
}

// PostWorkerSummary implements worker.Notifier. Only posts when the batch
// had a failure; an all-success batch doesn't need a channel message.
func (s *Service) PostWorkerSummary(ctx context.Context, summary worker.BatchSummary) error {
	if s == nil || summary.Failed == 0 {
		return nil
	}
	blocks := BuildWorkerSummaryMessage(summary)
	if err := s.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		s.logger.Warn("failed to post worker summary", "error", err)
	}
	return nil
}

// PostDLQAlert implements dlq.Notifier. The caller (pkg/dlq) already gates
// on its own threshold before calling this; s.threshold is used only for
// the message text. Threads onto the most recent alert in the last 24h
// (matched by fingerprint) instead of posting a new top-level message
// every sweep the backlog stays above threshold.
func (s *Service) PostDLQAlert(ctx context.Context, stats store.DLQStats) error {
	if s == nil {
		return nil
	}

	threadTS, err := s.client.FindMessageByFingerprint(ctx, dlqAlertFingerprint)
	if err != nil {
		s.logger.Warn("failed to find existing DLQ alert thread", "error", err)
	}

	blocks := BuildDLQAlertMessage(stats, s.threshold)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Warn("failed to post DLQ alert", "error", err)
	}
	return nil
}
