// Package dlq orchestrates the dead-letter queue's retry cycle: which
// items are ready, whether they've exhausted their retries, and whether
// queue depth warrants alerting. The CRUD itself lives in pkg/store
// (dlq.go); this package owns the decisions that CRUD doesn't make on
// its own.
package dlq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/store"
)

const (
	alertThreshold = 50
	discardReason  = "Discarded after max retries"
)

// Store is the subset of pkg/store.Store the DLQ processor depends on.
type Store interface {
	ItemsReadyForRetry(ctx context.Context, limit int) ([]models.DeadLetterItem, error)
	MarkAsRetrying(ctx context.Context, id uuid.UUID) error
	MarkAsResolved(ctx context.Context, id uuid.UUID, notes string) error
	MarkAsDiscarded(ctx context.Context, id uuid.UUID, reason string) error
	RescheduleRetry(ctx context.Context, id uuid.UUID, retryCount int) error
	GetDLQStats(ctx context.Context) (store.DLQStats, error)
}

// Notifier is the DLQ processor's Slack alerting capability.
type Notifier interface {
	PostDLQAlert(ctx context.Context, stats store.DLQStats) error
}

// Metrics is the DLQ processor's Prometheus reporting capability,
// implemented by *metrics.Recorder.
type Metrics interface {
	SetDLQDepth(stats store.DLQStats)
}

// RetryHandler replays the original failed operation for a dead-letter
// item; typically re-enqueues or re-runs the stage it failed at.
type RetryHandler func(ctx context.Context, item models.DeadLetterItem) error

// Processor drives one sweep of the retry cycle.
type Processor struct {
	store    Store
	notifier Notifier
	metrics  Metrics
}

func New(s Store, notifier Notifier, metrics Metrics) *Processor {
	return &Processor{store: s, notifier: notifier, metrics: metrics}
}

// Result summarizes one ProcessReady sweep.
type Result struct {
	Attempted     int
	Resolved      int
	Discarded     int
	StillRetrying int
}

// ProcessReady retries every item whose next_retry_at has elapsed, up to
// limit. Items already at max_retries are discarded without a retry
// attempt. A failed retry is rescheduled with the next backoff interval
// rather than looping immediately.
func (p *Processor) ProcessReady(ctx context.Context, limit int, handler RetryHandler) (Result, error) {
	items, err := p.store.ItemsReadyForRetry(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("list items ready for retry: %w", err)
	}

	var result Result
	for _, item := range items {
		result.Attempted++

		if item.RetryCount >= item.MaxRetries {
			if err := p.store.MarkAsDiscarded(ctx, item.ID, discardReason); err != nil {
				return result, fmt.Errorf("discard dlq item %s: %w", item.ID, err)
			}
			result.Discarded++
			continue
		}

		if err := p.store.MarkAsRetrying(ctx, item.ID); err != nil {
			return result, fmt.Errorf("mark dlq item %s retrying: %w", item.ID, err)
		}

		retryErr := handler(ctx, item)
		newRetryCount := item.RetryCount + 1

		if retryErr != nil {
			if newRetryCount >= item.MaxRetries {
				if err := p.store.MarkAsDiscarded(ctx, item.ID, discardReason); err != nil {
					return result, fmt.Errorf("discard dlq item %s: %w", item.ID, err)
				}
				result.Discarded++
				continue
			}
			if err := p.store.RescheduleRetry(ctx, item.ID, newRetryCount); err != nil {
				return result, fmt.Errorf("reschedule dlq item %s: %w", item.ID, err)
			}
			result.StillRetrying++
			continue
		}

		if err := p.store.MarkAsResolved(ctx, item.ID, "retry succeeded"); err != nil {
			return result, fmt.Errorf("resolve dlq item %s: %w", item.ID, err)
		}
		result.Resolved++
	}

	p.checkAlertState(ctx)
	return result, nil
}

// checkAlertState refreshes the depth gauge and posts a Slack alert when
// backlog exceeds alertThreshold. Clearing below the threshold is
// implicit: the next sweep at or below the threshold simply doesn't post, there is no
// separate "alert cleared" message.
func (p *Processor) checkAlertState(ctx context.Context) {
	if p.notifier == nil && p.metrics == nil {
		return
	}
	stats, err := p.store.GetDLQStats(ctx)
	if err != nil {
		slog.Warn("failed to read dlq stats for alert check", "error", err)
		return
	}

	if p.metrics != nil {
		p.metrics.SetDLQDepth(stats)
	}

	if p.notifier == nil || stats.Pending+stats.Retrying <= alertThreshold {
		return
	}
	if err := p.notifier.PostDLQAlert(ctx, stats); err != nil {
		slog.Warn("failed to post dlq alert", "error", err)
	}
}
