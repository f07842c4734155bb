// Package healer runs the diagnose/repair/unquarantine sweep over
// quarantined and chronically-failing sources: fetch the current
// homepage, ask an LLM to diagnose the extraction config, and either
// persist a repair or quarantine the source outright.
package healer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/ai"
	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// Mode selects which healer behavior a sweep runs.
type Mode string

const (
	ModeDiagnose     Mode = "diagnose"
	ModeRepair       Mode = "repair"
	ModeUnquarantine Mode = "unquarantine"
)

const (
	// repairConfidenceFloor is the bar to trust a selector suggestion
	// enough to persist it and clear quarantine.
	repairConfidenceFloor = 0.6
	// unquarantineConfidenceFloor is the lower bar for unquarantine mode,
	// which only needs to confirm the source looks scrapeable again, not
	// commit to a specific new config.
	unquarantineConfidenceFloor = 0.5
	// failureThreshold is how many consecutive failures earns a source a
	// spot in the healer's candidate set even without being quarantined.
	failureThreshold = 3
)

// Store is the subset of pkg/store.Store the healer depends on.
type Store interface {
	GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error)
	QuarantinedOrFailingSources(ctx context.Context, limit int) ([]models.Source, error)
	QuarantineSource(ctx context.Context, sourceID uuid.UUID) error
	UnquarantineSource(ctx context.Context, sourceID uuid.UUID) error
	ApplyExtractionConfig(ctx context.Context, sourceID uuid.UUID, cfg models.ExtractionConfig) error
	InsertRepairLog(ctx context.Context, log models.RepairLog) (uuid.UUID, error)
}

// Diagnoser is the LLM capability the healer needs, implemented by
// *ai.GeminiClient.
type Diagnoser interface {
	SuggestSelectors(ctx context.Context, html string) (*ai.SelectorSuggestion, error)
}

// Healer runs diagnose/repair/unquarantine sweeps.
type Healer struct {
	Store     Store
	Fetchers  FetcherFactory
	Diagnoser Diagnoser
}

// FetcherFactory resolves a fetch strategy to a Fetcher.
type FetcherFactory interface {
	For(strategy models.FetchStrategy) fetcher.Fetcher
}

// Outcome reports what a healer sweep did with one source.
type Outcome string

const (
	OutcomeDiagnosed     Outcome = "diagnosed"
	OutcomeRepaired      Outcome = "repaired"
	OutcomeUnquarantined Outcome = "unquarantined"
	OutcomeQuarantined   Outcome = "quarantined"
	OutcomeSkipped       Outcome = "skipped"
)

// SourceResult reports one source's sweep outcome.
type SourceResult struct {
	SourceID   uuid.UUID
	Outcome    Outcome
	Confidence float64
	Error      string
}

// Run selects candidate sources (either a single sourceID, or up to limit
// quarantined/failing sources) and runs mode against each.
func (h *Healer) Run(ctx context.Context, mode Mode, sourceID *uuid.UUID, limit int) ([]SourceResult, error) {
	sources, err := h.candidates(ctx, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}

	results := make([]SourceResult, 0, len(sources))
	for _, source := range sources {
		results = append(results, h.runOne(ctx, mode, &source))
	}
	return results, nil
}

func (h *Healer) candidates(ctx context.Context, sourceID *uuid.UUID, limit int) ([]models.Source, error) {
	if sourceID != nil {
		source, err := h.Store.GetSource(ctx, *sourceID)
		if err != nil {
			return nil, err
		}
		return []models.Source{*source}, nil
	}
	return h.Store.QuarantinedOrFailingSources(ctx, limit)
}

func (h *Healer) runOne(ctx context.Context, mode Mode, source *models.Source) SourceResult {
	result := SourceResult{SourceID: source.ID}

	suggestion, err := h.diagnose(ctx, source)
	if err != nil {
		result.Outcome = OutcomeSkipped
		result.Error = err.Error()
		return result
	}
	result.Confidence = suggestion.Confidence

	switch mode {
	case ModeDiagnose:
		result.Outcome = OutcomeDiagnosed
		return result

	case ModeRepair:
		return h.repair(ctx, source, suggestion)

	case ModeUnquarantine:
		if suggestion.Confidence < unquarantineConfidenceFloor {
			result.Outcome = OutcomeSkipped
			return result
		}
		if err := h.Store.UnquarantineSource(ctx, source.ID); err != nil {
			result.Outcome = OutcomeSkipped
			result.Error = err.Error()
			return result
		}
		result.Outcome = OutcomeUnquarantined
		return result

	default:
		result.Outcome = OutcomeSkipped
		result.Error = fmt.Sprintf("unknown healer mode %q", mode)
		return result
	}
}

// repair persists the suggested selectors and clears quarantine when
// confidence clears the floor; otherwise it quarantines the source
// (spec's "RepairFailure" terminal state for a source already at the
// consecutive-failure threshold).
func (h *Healer) repair(ctx context.Context, source *models.Source, suggestion *ai.SelectorSuggestion) SourceResult {
	result := SourceResult{SourceID: source.ID, Confidence: suggestion.Confidence}

	if suggestion.Confidence < repairConfidenceFloor {
		if source.ConsecutiveFailures >= failureThreshold {
			if err := h.Store.QuarantineSource(ctx, source.ID); err != nil {
				result.Outcome = OutcomeSkipped
				result.Error = err.Error()
				return result
			}
			result.Outcome = OutcomeQuarantined
			return result
		}
		result.Outcome = OutcomeSkipped
		return result
	}

	newConfig := source.ExtractionConfig
	newConfig.Selectors = suggestion.Selectors

	applyErr := h.Store.ApplyExtractionConfig(ctx, source.ID, newConfig)
	if applyErr == nil {
		if source.Quarantined {
			if err := h.Store.UnquarantineSource(ctx, source.ID); err != nil {
				slog.Warn("failed to clear quarantine after repair", "source_id", source.ID, "error", err)
			}
		}
	}

	if _, logErr := h.Store.InsertRepairLog(ctx, models.RepairLog{
		SourceID:         source.ID,
		TriggerReason:    "healer_sweep",
		AIDiagnosis:      suggestion.Diagnosis,
		ValidationPassed: suggestion.Confidence >= repairConfidenceFloor,
		Applied:          applyErr == nil,
	}); logErr != nil {
		slog.Warn("failed to write repair log", "source_id", source.ID, "error", logErr)
	}

	if applyErr != nil {
		result.Outcome = OutcomeSkipped
		result.Error = applyErr.Error()
		return result
	}
	result.Outcome = OutcomeRepaired
	return result
}

// diagnose fetches the source's current homepage and asks the LLM to
// suggest selectors; this is shared by all three modes since each needs
// a fresh confidence read.
func (h *Healer) diagnose(ctx context.Context, source *models.Source) (*ai.SelectorSuggestion, error) {
	f := h.Fetchers.For(source.FetchStrategy)
	page, err := f.FetchPage(ctx, source.URL, source.ExtractionConfig.Headers, source.ExtractionConfig.RateLimitMs)
	if err != nil {
		return nil, fmt.Errorf("fetch homepage: %w", err)
	}

	suggestion, err := h.Diagnoser.SuggestSelectors(ctx, page.HTML)
	if err != nil {
		return nil, fmt.Errorf("ai diagnosis: %w", err)
	}
	return suggestion, nil
}
