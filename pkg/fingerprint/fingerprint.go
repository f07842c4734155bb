// Package fingerprint classifies a page's CMS from its HTML using weighted
// regex patterns, and recommends an extraction strategy order. It is a
// pure function: no I/O, no network, no DB.
package fingerprint

import "regexp"

// CMS identifies a recognized content management system.
type CMS string

const (
	CMSWordPress  CMS = "wordpress"
	CMSWix        CMS = "wix"
	CMSSquarespace CMS = "squarespace"
	CMSNextNuxt   CMS = "next_nuxt_react"
	CMSDrupal     CMS = "drupal"
	CMSJoomla     CMS = "joomla"
	CMSShopify    CMS = "shopify"
	CMSWebflow    CMS = "webflow"
	CMSUnknown    CMS = "unknown"
)

// Strategy names one extraction strategy in the waterfall.
type Strategy string

const (
	StrategyHydration Strategy = "hydration"
	StrategyJSONLD    Strategy = "json_ld"
	StrategyFeed      Strategy = "feed"
	StrategyDOM       Strategy = "dom"
)

// Result is the fingerprinter's output contract.
type Result struct {
	CMS                  CMS
	Version              string
	Confidence           int // 0..100
	RecommendedStrategies []Strategy
	RequiresJSRender     bool
	DetectedDataSources  []string
}

type pattern struct {
	re     *regexp.Regexp
	weight int
}

type cmsProfile struct {
	cms              CMS
	patterns         []pattern
	requiresJSRender bool
	strategies       []Strategy
}

// Patterns are checked in this declared order; ties resolve to the
// earlier-defined CMS (spec §4.2).
var profiles = []cmsProfile{
	{
		cms: CMSWordPress,
		patterns: []pattern{
			{regexp.MustCompile(`wp-content`), 40},
			{regexp.MustCompile(`wp-json`), 30},
			{regexp.MustCompile(`(?i)generator"\s+content="WordPress`), 50},
		},
		strategies: []Strategy{StrategyJSONLD, StrategyFeed, StrategyDOM},
	},
	{
		cms: CMSWix,
		patterns: []pattern{
			{regexp.MustCompile(`static\.wixstatic\.com`), 45},
			{regexp.MustCompile(`wix-warmup-data`), 50},
		},
		requiresJSRender: true,
		strategies:       []Strategy{StrategyHydration, StrategyDOM},
	},
	{
		cms: CMSSquarespace,
		patterns: []pattern{
			{regexp.MustCompile(`squarespace\.com`), 35},
			{regexp.MustCompile(`Static\.SQUARESPACE_CONTEXT`), 50},
		},
		strategies: []Strategy{StrategyHydration, StrategyJSONLD, StrategyDOM},
	},
	{
		cms: CMSNextNuxt,
		patterns: []pattern{
			{regexp.MustCompile(`__NEXT_DATA__`), 55},
			{regexp.MustCompile(`__NUXT__`), 55},
			{regexp.MustCompile(`__INITIAL_STATE__`), 40},
		},
		requiresJSRender: true,
		strategies:       []Strategy{StrategyHydration, StrategyJSONLD, StrategyDOM},
	},
	{
		cms: CMSDrupal,
		patterns: []pattern{
			{regexp.MustCompile(`Drupal\.settings`), 50},
			{regexp.MustCompile(`/sites/default/files`), 30},
		},
		strategies: []Strategy{StrategyJSONLD, StrategyDOM},
	},
	{
		cms: CMSJoomla,
		patterns: []pattern{
			{regexp.MustCompile(`(?i)generator"\s+content="Joomla`), 50},
			{regexp.MustCompile(`com_content`), 30},
		},
		strategies: []Strategy{StrategyDOM},
	},
	{
		cms: CMSShopify,
		patterns: []pattern{
			{regexp.MustCompile(`cdn\.shopify\.com`), 45},
			{regexp.MustCompile(`Shopify\.theme`), 50},
		},
		strategies: []Strategy{StrategyJSONLD, StrategyDOM},
	},
	{
		cms: CMSWebflow,
		patterns: []pattern{
			{regexp.MustCompile(`website-files\.com`), 40},
			{regexp.MustCompile(`data-wf-site`), 45},
		},
		strategies: []Strategy{StrategyDOM},
	},
}

var dataSourcePatterns = map[string]*regexp.Regexp{
	"json_ld":    regexp.MustCompile(`<script[^>]+type=["']application/ld\+json["']`),
	"microdata":  regexp.MustCompile(`itemtype=["']https?://schema\.org/Event["']`),
	"feed":       regexp.MustCompile(`(?i)type=["'](application/rss\+xml|application/atom\+xml)["']`),
	"hydration":  regexp.MustCompile(`__NEXT_DATA__|__NUXT__|__INITIAL_STATE__`),
}

// Fingerprint classifies html and recommends a strategy order.
func Fingerprint(html string) Result {
	best := cmsProfile{}
	bestWeight := 0
	for _, p := range profiles {
		w := totalWeight(p, html)
		if w > bestWeight {
			bestWeight = w
			best = p
		}
	}

	dataSources := detectDataSources(html)

	if bestWeight == 0 {
		return Result{
			CMS:                   CMSUnknown,
			Confidence:            0,
			RecommendedStrategies: strategiesFromDataSources(dataSources),
			RequiresJSRender:      false,
			DetectedDataSources:   dataSources,
		}
	}

	confidence := bestWeight / 2
	if confidence > 100 {
		confidence = 100
	}

	return Result{
		CMS:                   best.cms,
		Confidence:            confidence,
		RecommendedStrategies: best.strategies,
		RequiresJSRender:      best.requiresJSRender,
		DetectedDataSources:   dataSources,
	}
}

func totalWeight(p cmsProfile, html string) int {
	total := 0
	for _, pat := range p.patterns {
		if pat.re.MatchString(html) {
			total += pat.weight
		}
	}
	return total
}

func detectDataSources(html string) []string {
	var found []string
	for name, re := range dataSourcePatterns {
		if re.MatchString(html) {
			found = append(found, name)
		}
	}
	return found
}

// strategiesFromDataSources orders strategies by which data sources were
// detected when the CMS is unknown; DOM is always the final fallback.
func strategiesFromDataSources(sources []string) []Strategy {
	order := []Strategy{}
	has := func(name string) bool {
		for _, s := range sources {
			if s == name {
				return true
			}
		}
		return false
	}
	if has("hydration") {
		order = append(order, StrategyHydration)
	}
	if has("json_ld") || has("microdata") {
		order = append(order, StrategyJSONLD)
	}
	if has("feed") {
		order = append(order, StrategyFeed)
	}
	order = append(order, StrategyDOM)
	return order
}
