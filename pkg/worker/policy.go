package worker

import (
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/strategy"
)

// tierPolicy returns the waterfall options for a source's tier: aggregator
// sources hold the waterfall to a stricter completeness bar since they
// feed many downstream venues, venue/general sources accept the first
// strategy that yields anything.
func tierPolicy(tier models.SourceTier) strategy.Options {
	switch tier {
	case models.TierAggregator:
		return strategy.Options{Strictness: "high", CompletenessFloor: 0.7}
	default:
		return strategy.Options{Strictness: "low"}
	}
}
