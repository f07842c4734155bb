// Package strategy implements the extraction waterfall: an ordered list of
// implementations of a small capability set (discoverListingUrls,
// fetchListing, parseListing), selected per the CMS fingerprinter's
// recommendation. No inheritance; polymorphism is plain interface
// satisfaction, grounded on the teacher's agent.ControllerFactory /
// agent.AgentFactory config-driven construction.
package strategy

import (
	"context"

	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// RawEventCard is the closed-schema output of every extraction strategy;
// unknown upstream fields are ignored, not preserved.
type RawEventCard struct {
	Title          string
	Date           string
	Location       string
	Description    string
	RawHTML        string
	ImageURL       string
	DetailURL      string
	CategoryHint   string
	DetailPageTime string
}

// Strategy is the capability set every extraction strategy implements.
type Strategy interface {
	Name() fingerprint.Strategy
	DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error)
	FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error)
	ParseListing(html, url string, source *models.Source) ([]RawEventCard, error)
}

// Options tunes waterfall behavior for a source's tier policy.
type Options struct {
	Strictness    string // "high" | "medium" | "low"
	CompletenessFloor float64
}

// Registry resolves a fingerprint.Strategy name to its implementation,
// mirroring agent.AgentFactory's CreateAgent/CreateController shape.
type Registry struct {
	byName map[fingerprint.Strategy]Strategy
	ai     Strategy
}

// NewRegistry builds a Registry from the concrete strategy implementations.
func NewRegistry(hydration, jsonLD, feed, dom, ai Strategy) *Registry {
	return &Registry{
		byName: map[fingerprint.Strategy]Strategy{
			fingerprint.StrategyHydration: hydration,
			fingerprint.StrategyJSONLD:    jsonLD,
			fingerprint.StrategyFeed:      feed,
			fingerprint.StrategyDOM:       dom,
		},
		ai: ai,
	}
}

// Get resolves a named strategy.
func (r *Registry) Get(name fingerprint.Strategy) (Strategy, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// AI returns the AI fallback strategy, only invoked when the waterfall
// above yields nothing useful.
func (r *Registry) AI() Strategy {
	return r.ai
}

// RunWaterfall runs recommended strategies in order, stopping at the first
// one that yields >=1 card, unless opts requires a completeness floor
// (aggregator tier, strictness high). If nothing above yields a usable
// result, the AI strategy (when configured) runs once as the final rung.
func RunWaterfall(ctx context.Context, r *Registry, f fetcher.Fetcher, source *models.Source, fp fingerprint.Result, opts Options) ([]RawEventCard, fingerprint.Strategy, error) {
	var best []RawEventCard
	var bestName fingerprint.Strategy

	for _, name := range fp.RecommendedStrategies {
		s, ok := r.Get(name)
		if !ok {
			continue
		}
		cards, err := runOne(ctx, s, f, source)
		if err != nil {
			continue
		}
		if len(cards) == 0 {
			continue
		}
		if opts.Strictness == "high" && completeness(cards) < opts.CompletenessFloor {
			if len(cards) > len(best) {
				best, bestName = cards, name
			}
			continue
		}
		return cards, name, nil
	}

	if len(best) > 0 {
		return best, bestName, nil
	}

	if ai := r.AI(); ai != nil {
		cards, err := runOne(ctx, ai, f, source)
		if err == nil && len(cards) > 0 {
			return cards, ai.Name(), nil
		}
	}

	return nil, "", nil
}

func runOne(ctx context.Context, s Strategy, f fetcher.Fetcher, source *models.Source) ([]RawEventCard, error) {
	urls, err := s.DiscoverListingURLs(ctx, f, source)
	if err != nil {
		return nil, err
	}
	var all []RawEventCard
	for _, url := range urls {
		res, err := s.FetchListing(ctx, f, url, source)
		if err != nil {
			continue
		}
		cards, err := s.ParseListing(res.HTML, url, source)
		if err != nil {
			continue
		}
		all = append(all, cards...)
	}
	return all, nil
}

// completeness is the fraction of cards with a date plus either a location
// or a detail URL, the tier-policy's "partial" criterion for
// aggregator-tier strictness.
func completeness(cards []RawEventCard) float64 {
	if len(cards) == 0 {
		return 0
	}
	complete := 0
	for _, c := range cards {
		if c.Date != "" && (c.Location != "" || c.DetailURL != "") {
			complete++
		}
	}
	return float64(complete) / float64(len(cards))
}
