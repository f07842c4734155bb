// Package worker claims scrape jobs and drives them through fetch,
// extraction, normalization, dedup, and persistence, healing sources that
// stop producing and parking unrecoverable failures in the dead-letter
// queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/ai"
	"github.com/civic-signal/eventscraper/pkg/dedup"
	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/normalize"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/strategy"
)

// minHealableHTML is the threshold below which zero cards is just a thin
// page, not a drifted source (spec's "HTML >= 2kB" heal trigger).
const minHealableHTML = 2048

// BreakerRecorder lets the worker feed per-source outcomes back to the
// coordinator's in-process circuit breaker.
type BreakerRecorder interface {
	RecordSuccess(sourceID uuid.UUID)
	RecordFailure(sourceID uuid.UUID)
}

// Notifier is the worker's Slack reporting capability.
type Notifier interface {
	PostWorkerSummary(ctx context.Context, summary BatchSummary) error
}

// SelectorHealer is the worker's zero-card-diagnosis capability,
// implemented by *ai.GeminiClient.
type SelectorHealer interface {
	SuggestSelectors(ctx context.Context, html string) (*ai.SelectorSuggestion, error)
}

// Enricher is the optional Social-Five structured-output step, applied
// after an event is admitted. Failures here never affect job outcome.
type Enricher interface {
	Enrich(ctx context.Context, title, description, venue string) (*ai.EnrichmentResult, error)
}

// Metrics is the worker's Prometheus reporting capability, implemented
// by *metrics.Recorder. Nil-safe: callers should only invoke these on a
// non-nil w.Metrics, same convention as Breaker/Notifier/Enricher.
type Metrics interface {
	RecordJobOutcome(outcome JobOutcome)
	ObserveFetchDuration(strategy models.FetchStrategy, d time.Duration)
	RecordDedupOutcome(outcome dedup.Outcome)
}

// Store is every store.Store method the worker pipeline calls. Declared
// here (rather than depending on *store.Store directly) so tests can
// supply a fake without a database; *store.Store satisfies it as-is.
type Store interface {
	GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error)
	UpdateSourceStats(ctx context.Context, sourceID uuid.UUID, success bool, eventsScraped int, errMsg string) error
	CheckAndHealFetcher(ctx context.Context, sourceID uuid.UUID) (models.FetchStrategy, error)
	ApplyExtractionConfig(ctx context.Context, sourceID uuid.UUID, cfg models.ExtractionConfig) error
	InsertRepairLog(ctx context.Context, log models.RepairLog) (uuid.UUID, error)
	ClaimScrapeJobs(ctx context.Context, batchSize int) ([]models.ScrapeJob, error)
	MarkJobCompleted(ctx context.Context, jobID uuid.UUID, eventsScraped, eventsInserted int) error
	MarkJobFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error
	ResetJobForProxyRetry(ctx context.Context, jobID uuid.UUID) error
	PendingJobCount(ctx context.Context) (int, error)
	AddToDLQ(ctx context.Context, item models.DeadLetterItem) (uuid.UUID, error)
	ExistsByContentHash(ctx context.Context, contentHash string) (bool, error)
	ExistsByFingerprint(ctx context.Context, sourceID uuid.UUID, fingerprint string) (bool, error)
	MatchEvents(ctx context.Context, embedding models.Embedding, threshold float64, limit int) ([]store.SemanticMatch, error)
	InsertEvent(ctx context.Context, e models.Event) (uuid.UUID, error)
	InsertStaging(ctx context.Context, row models.RawEventStaging) (uuid.UUID, error)
	MarkStagingStatus(ctx context.Context, id uuid.UUID, status models.StagingStatus) error
}

// FetcherFactory resolves a fetch strategy to a Fetcher; *fetcher.Factory
// satisfies it as-is.
type FetcherFactory interface {
	For(strategy models.FetchStrategy) fetcher.Fetcher
}

// Worker wires together every capability one job needs.
type Worker struct {
	Store           Store
	Fetchers        FetcherFactory
	Strategies      *strategy.Registry
	Embedder        dedup.Embedder
	AINormalizer    normalize.AINormalizer
	Healer          SelectorHealer
	Enricher        Enricher
	Breaker         BreakerRecorder
	Notifier        Notifier
	Metrics         Metrics
	Trigger         coordinatorTrigger
	TargetEventYear int
	BatchSize       int
	DeepScrape      bool
}

type coordinatorTrigger interface {
	TriggerWorker(ctx context.Context)
}

// JobOutcome classifies what happened to one claimed job.
type JobOutcome string

const (
	OutcomeCompleted  JobOutcome = "completed"
	OutcomeFailed     JobOutcome = "failed"
	OutcomeProxyRetry JobOutcome = "proxy_retry_queued"
)

// JobResult reports one job's processing detail for the batch summary.
type JobResult struct {
	JobID          uuid.UUID
	SourceID       uuid.UUID
	Outcome        JobOutcome
	EventsScraped  int
	EventsInserted int
	Duplicates     int
	Error          string
}

// BatchSummary is what gets reported to Slack after a worker invocation.
type BatchSummary struct {
	Processed        int
	Completed        int
	Failed           int
	AllJobsSucceeded bool
	Results          []JobResult
}

// ProcessBatch claims up to BatchSize jobs and processes them in
// parallel; within each job, network calls are sequential to respect the
// source's rate limit. If a full batch was drained and jobs remain
// pending, it chain-triggers another invocation.
func (w *Worker) ProcessBatch(ctx context.Context) (BatchSummary, error) {
	jobs, err := w.Store.ClaimScrapeJobs(ctx, w.BatchSize)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("claim scrape jobs: %w", err)
	}

	results := make([]JobResult, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job models.ScrapeJob) {
			defer wg.Done()
			results[i] = w.processJob(ctx, job)
		}(i, job)
	}
	wg.Wait()

	summary := BatchSummary{Processed: len(results), Results: results, AllJobsSucceeded: true}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeCompleted, OutcomeProxyRetry:
			summary.Completed++
		case OutcomeFailed:
			summary.Failed++
			summary.AllJobsSucceeded = false
		}
		if w.Metrics != nil {
			w.Metrics.RecordJobOutcome(r.Outcome)
		}
	}

	if len(jobs) == w.BatchSize {
		if pending, err := w.Store.PendingJobCount(ctx); err == nil && pending > 0 && w.Trigger != nil {
			w.Trigger.TriggerWorker(ctx)
		}
	}

	if w.Notifier != nil {
		if err := w.Notifier.PostWorkerSummary(ctx, summary); err != nil {
			slog.Warn("failed to post worker slack summary", "error", err)
		}
	}

	return summary, nil
}

// processJob drives the full per-job pipeline: fetch, heal-on-zero,
// deep-scrape, normalize, dedup, insert, and terminal status update.
func (w *Worker) processJob(ctx context.Context, job models.ScrapeJob) JobResult {
	result := JobResult{JobID: job.ID, SourceID: job.SourceID}

	source, err := w.Store.GetSource(ctx, job.SourceID)
	if err != nil {
		return w.fail(ctx, job, result, models.StageFetch, fmt.Errorf("load source: %w", err))
	}

	effectiveStrategy := source.FetchStrategy
	if job.Payload.ProxyRetry {
		effectiveStrategy = models.FetchProxy
	}
	f := w.Fetchers.For(effectiveStrategy)

	fetchStart := time.Now()
	homepage, err := f.FetchPage(ctx, source.URL, source.ExtractionConfig.Headers, source.ExtractionConfig.RateLimitMs)
	if w.Metrics != nil {
		w.Metrics.ObserveFetchDuration(effectiveStrategy, time.Since(fetchStart))
	}
	if err != nil {
		if _, ok := err.(*fetcher.ProxyRetryError); ok {
			if job.Payload.ProxyRetry {
				return w.fail(ctx, job, result, models.StageFetch, fmt.Errorf("blocked even after proxy retry: %w", err))
			}
			if resetErr := w.Store.ResetJobForProxyRetry(ctx, job.ID); resetErr != nil {
				return w.fail(ctx, job, result, models.StageFetch, fmt.Errorf("reset for proxy retry: %w", resetErr))
			}
			result.Outcome = OutcomeProxyRetry
			return result
		}
		return w.fail(ctx, job, result, models.StageFetch, err)
	}

	fp := fingerprint.Fingerprint(homepage.HTML)
	opts := tierPolicy(source.Tier)

	cards, parsingMethod, err := strategy.RunWaterfall(ctx, w.Strategies, f, source, fp, opts)
	if err != nil {
		return w.fail(ctx, job, result, models.StageParse, err)
	}

	if len(cards) == 0 && len(homepage.HTML) >= minHealableHTML {
		healed, healedMethod, healErr := w.healOnZero(ctx, source, fp, opts, homepage.HTML)
		if healErr != nil {
			slog.Warn("heal-on-zero attempt failed", "source_id", source.ID, "error", healErr)
		}
		cards, parsingMethod = healed, healedMethod
		if len(cards) == 0 {
			return w.fail(ctx, job, result, models.StageParse, fmt.Errorf("zero events after heal attempt"))
		}
	}

	if w.DeepScrape {
		w.deepScrapeDetailTimes(ctx, f, source, cards)
	}

	method := models.ParsingMethod(parsingMethod)
	if method == "" {
		method = models.ParsingUnknown
	}

	eventsInserted := 0
	duplicates := 0
	for _, card := range cards {
		normalized, ok := w.stageAndNormalize(ctx, source, card, method)
		if !ok || normalized == nil {
			continue
		}

		outcome, eventID, err := dedup.Admit(ctx, w.Store, w.Embedder, normalized, source)
		if err != nil {
			slog.Warn("dedup/insert failed for card", "source_id", source.ID, "title", normalized.Title, "error", err)
			continue
		}
		if w.Metrics != nil {
			w.Metrics.RecordDedupOutcome(outcome)
		}
		if outcome != dedup.OutcomeInserted {
			duplicates++
			continue
		}
		eventsInserted++

		if w.Enricher != nil {
			go w.enrichBestEffort(context.Background(), eventID, normalized)
		}
	}

	result.EventsScraped = len(cards)
	result.EventsInserted = eventsInserted
	result.Duplicates = duplicates
	result.Outcome = OutcomeCompleted

	if err := w.Store.UpdateSourceStats(ctx, source.ID, true, eventsInserted, ""); err != nil {
		slog.Warn("failed to update source stats", "source_id", source.ID, "error", err)
	}
	if err := w.Store.MarkJobCompleted(ctx, job.ID, len(cards), eventsInserted); err != nil {
		slog.Warn("failed to mark job completed", "job_id", job.ID, "error", err)
	}
	if w.Breaker != nil {
		w.Breaker.RecordSuccess(source.ID)
	}

	return result
}

// fail records a terminal failure: source stats, job status, DLQ item,
// and breaker feedback.
func (w *Worker) fail(ctx context.Context, job models.ScrapeJob, result JobResult, stage models.DLQStage, cause error) JobResult {
	result.Outcome = OutcomeFailed
	result.Error = cause.Error()

	if err := w.Store.MarkJobFailed(ctx, job.ID, cause.Error()); err != nil {
		slog.Warn("failed to mark job failed", "job_id", job.ID, "error", err)
	}
	if err := w.Store.UpdateSourceStats(ctx, job.SourceID, false, 0, cause.Error()); err != nil {
		slog.Warn("failed to update source stats on failure", "source_id", job.SourceID, "error", err)
	}
	if w.Breaker != nil {
		w.Breaker.RecordFailure(job.SourceID)
	}

	payload, _ := job.Payload.Value()
	payloadBytes, _ := payload.([]byte)
	if _, err := w.Store.AddToDLQ(ctx, models.DeadLetterItem{
		OriginalJobID: job.ID,
		SourceID:      job.SourceID,
		Stage:         stage,
		ErrorType:     "worker_failure",
		ErrorMessage:  cause.Error(),
		Payload:       payloadBytes,
		MaxRetries:    3,
	}); err != nil {
		slog.Warn("failed to add dlq item", "job_id", job.ID, "error", err)
	}

	return result
}

// stageAndNormalize records the raw card in raw_event_staging before
// attempting normalization, then advances its status as normalization
// proceeds: completed on a direct cheap-normalize hit, awaiting_enrichment
// while an AI retry is in flight, failed on a hard reject either way. This
// is the "Worker ... pushes raw rows to Staging" leg of the dataflow
// (spec.md §2); the admitted NormalizedEvent still goes through the dedup
// ladder and straight to events exactly as before.
func (w *Worker) stageAndNormalize(ctx context.Context, source *models.Source, card strategy.RawEventCard, method models.ParsingMethod) (*normalize.NormalizedEvent, bool) {
	stagingID, err := w.Store.InsertStaging(ctx, models.RawEventStaging{
		SourceID:      source.ID,
		Status:        models.StagingPending,
		SourceURL:     source.URL,
		DetailURL:     card.DetailURL,
		RawHTML:       card.RawHTML,
		ParsingMethod: method,
		Title:         card.Title,
		Description:   card.Description,
		EventTime:     card.DetailPageTime,
		VenueName:     card.Location,
		ImageURL:      card.ImageURL,
		CategoryHint:  card.CategoryHint,
	})
	if err != nil {
		slog.Warn("failed to stage raw card", "source_id", source.ID, "error", err)
	}

	event, reason := normalize.CheapNormalize(card, w.TargetEventYear)
	if reason == "" {
		w.markStaging(ctx, stagingID, models.StagingCompleted)
		return event, true
	}
	if (reason != "time" && reason != "description") || w.AINormalizer == nil {
		w.markStaging(ctx, stagingID, models.StagingFailed)
		return nil, false
	}

	w.markStaging(ctx, stagingID, models.StagingAwaitingEnrichment)
	result, err := w.AINormalizer.NormalizeEvent(ctx, card, w.TargetEventYear)
	if err != nil || result == nil || result.EventDate.Year() != w.TargetEventYear {
		w.markStaging(ctx, stagingID, models.StagingFailed)
		return nil, false
	}
	w.markStaging(ctx, stagingID, models.StagingCompleted)
	return result, true
}

func (w *Worker) markStaging(ctx context.Context, id uuid.UUID, status models.StagingStatus) {
	if id == uuid.Nil {
		return
	}
	if err := w.Store.MarkStagingStatus(ctx, id, status); err != nil {
		slog.Warn("failed to update staging status", "staging_id", id, "error", err)
	}
}

func (w *Worker) enrichBestEffort(ctx context.Context, eventID uuid.UUID, n *normalize.NormalizedEvent) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := w.Enricher.Enrich(ctx, n.Title, n.Description, n.VenueName); err != nil {
		slog.Warn("enrichment failed", "event_id", eventID, "error", err)
	}
}
