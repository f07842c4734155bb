package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/strategy"
)

// minSelectorConfidence is the healer's floor for trusting an AI selector
// suggestion enough to persist and re-parse with it.
const minSelectorConfidence = 0.6

// healOnZero runs the two-step heal path: first ask the DB to escalate
// fetch_strategy (static -> headless -> proxy); if that doesn't change
// anything, ask an LLM to diagnose the page and propose new selectors,
// persist them, and re-parse exactly once.
func (w *Worker) healOnZero(ctx context.Context, source *models.Source, fp fingerprint.Result, opts strategy.Options, html string) ([]strategy.RawEventCard, fingerprint.Strategy, error) {
	newStrategy, err := w.Store.CheckAndHealFetcher(ctx, source.ID)
	if err != nil {
		return nil, "", fmt.Errorf("check_and_heal_fetcher: %w", err)
	}

	if newStrategy != source.FetchStrategy {
		healedFetcher := w.Fetchers.For(newStrategy)
		cards, method, err := strategy.RunWaterfall(ctx, w.Strategies, healedFetcher, source, fp, opts)
		if err != nil {
			return nil, "", fmt.Errorf("re-run waterfall after fetcher escalation: %w", err)
		}
		if len(cards) > 0 {
			return cards, method, nil
		}
	}

	if w.Healer == nil {
		return nil, "", nil
	}

	suggestion, err := w.Healer.SuggestSelectors(ctx, html)
	if err != nil {
		return nil, "", fmt.Errorf("ai selector suggestion: %w", err)
	}
	if suggestion.Confidence < minSelectorConfidence {
		slog.Warn("ai selector suggestion below confidence floor", "source_id", source.ID, "confidence", suggestion.Confidence)
		return nil, "", nil
	}

	newConfig := source.ExtractionConfig
	newConfig.Selectors = suggestion.Selectors
	if err := w.Store.ApplyExtractionConfig(ctx, source.ID, newConfig); err != nil {
		return nil, "", fmt.Errorf("persist healed selectors: %w", err)
	}

	repaired := *source
	repaired.ExtractionConfig = newConfig

	domFetcher := w.Fetchers.For(source.FetchStrategy)
	cards, method, err := strategy.RunWaterfall(ctx, w.Strategies, domFetcher, &repaired, fp, opts)
	if err != nil {
		return nil, "", fmt.Errorf("re-parse after selector heal: %w", err)
	}

	applied := len(cards) > 0
	if _, logErr := w.Store.InsertRepairLog(ctx, models.RepairLog{
		SourceID:         source.ID,
		TriggerReason:    "zero_cards_extracted",
		RawHTMLSample:    truncateHTML(html, 2000),
		AIDiagnosis:      suggestion.Diagnosis,
		ValidationPassed: suggestion.Confidence >= minSelectorConfidence,
		Applied:          applied,
	}); logErr != nil {
		slog.Warn("failed to write repair log", "source_id", source.ID, "error", logErr)
	}

	return cards, method, nil
}

func truncateHTML(html string, max int) string {
	if len(html) <= max {
		return html
	}
	return html[:max]
}
