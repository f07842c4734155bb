// Package coordinator schedules scrape jobs: it reads eligible sources,
// enqueues jobs with a volatility-scaled next-run via an atomic RPC, and
// optionally triggers the worker and a Slack summary.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// SourceStore is the subset of pkg/store.Store the coordinator depends on.
// Resolving source names for the Slack summary/HTTP response is the
// caller's job (pkg/httpapi already holds a *store.Store); keeping this
// interface to exactly what Run needs avoids coupling to store's row types.
type SourceStore interface {
	EligibleSourceIDs(ctx context.Context, sourceIDs []uuid.UUID) ([]uuid.UUID, error)
	EnqueueScrapeJobs(ctx context.Context, sourceIDs []uuid.UUID) (int, error)
}

// Notifier is the coordinator's Slack summary capability.
type Notifier interface {
	PostScrapeSummary(ctx context.Context, summary Summary) error
}

// Trigger fires a fire-and-forget POST to the worker endpoint to request
// an immediate drain instead of waiting for the next scheduled invocation.
type Trigger interface {
	TriggerWorker(ctx context.Context)
}

// Summary is what gets reported to Slack after a coordination run.
type Summary struct {
	EligibleSources int
	Enqueued        int
	SkippedByBreaker int
	Duration        time.Duration
}

// Coordinator holds one gobreaker.CircuitBreaker per source, keyed in
// memory for the lifetime of a process. The SQL eligibility query already
// enforces the durable 24h cool-down (consecutive_errors >= threshold);
// this layer is a same-process fast-fail so a source actively erroring
// within the current run doesn't get hammered across consecutive
// coordinator invocations before the DB-level cool-down has caught up.
type Coordinator struct {
	store    SourceStore
	notifier Notifier
	trigger  Trigger

	mu       sync.Mutex
	breakers map[uuid.UUID]*gobreaker.CircuitBreaker
}

// New builds a Coordinator. notifier and trigger may be nil.
func New(store SourceStore, notifier Notifier, trigger Trigger) *Coordinator {
	return &Coordinator{
		store:    store,
		notifier: notifier,
		trigger:  trigger,
		breakers: make(map[uuid.UUID]*gobreaker.CircuitBreaker),
	}
}

// breakerFor lazily creates a per-source breaker: 3 consecutive failures
// opens it, a 1-minute cool-down before a half-open probe.
func (c *Coordinator) breakerFor(sourceID uuid.UUID) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[sourceID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    sourceID.String(),
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	c.breakers[sourceID] = b
	return b
}

// RecordFailure trips the in-process breaker for a source; called by the
// worker after a job against that source fails within this run.
func (c *Coordinator) RecordFailure(sourceID uuid.UUID) {
	b := c.breakerFor(sourceID)
	_, _ = b.Execute(func() (any, error) { return nil, fmt.Errorf("recorded failure") })
}

// RecordSuccess resets the in-process breaker for a source.
func (c *Coordinator) RecordSuccess(sourceID uuid.UUID) {
	b := c.breakerFor(sourceID)
	_, _ = b.Execute(func() (any, error) { return nil, nil })
}

func (c *Coordinator) breakerOpen(sourceID uuid.UUID) bool {
	return c.breakerFor(sourceID).State() == gobreaker.StateOpen
}

// Run executes one coordination pass: find eligible sources, drop any
// whose in-process breaker is open, enqueue the rest, optionally trigger
// the worker, and emit a Slack summary.
func (c *Coordinator) Run(ctx context.Context, sourceIDs []uuid.UUID) (Summary, error) {
	start := time.Now()

	eligible, err := c.store.EligibleSourceIDs(ctx, sourceIDs)
	if err != nil {
		return Summary{}, fmt.Errorf("eligible sources: %w", err)
	}

	var toEnqueue []uuid.UUID
	skipped := 0
	for _, id := range eligible {
		if c.breakerOpen(id) {
			skipped++
			continue
		}
		toEnqueue = append(toEnqueue, id)
	}

	enqueued := 0
	if len(toEnqueue) > 0 {
		enqueued, err = c.store.EnqueueScrapeJobs(ctx, toEnqueue)
		if err != nil {
			return Summary{}, fmt.Errorf("enqueue: %w", err)
		}
	}

	summary := Summary{
		EligibleSources:  len(eligible),
		Enqueued:         enqueued,
		SkippedByBreaker: skipped,
		Duration:         time.Since(start),
	}

	if enqueued > 0 && c.trigger != nil {
		c.trigger.TriggerWorker(ctx)
	}

	if c.notifier != nil {
		if err := c.notifier.PostScrapeSummary(ctx, summary); err != nil {
			slog.Warn("failed to post coordinator slack summary", "error", err)
		}
	}

	return summary, nil
}
