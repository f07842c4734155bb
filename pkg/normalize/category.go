package normalize

import (
	"strings"

	"github.com/civic-signal/eventscraper/pkg/models"
)

// Hybrid Life classifier: a few hard overrides take precedence over the
// general keyword table, because naive keyword matching alone misfires on
// culturally-specific phrasing the general table wasn't designed to catch.
var parentingOverrides = []string{
	"kinderboerderij", "peuter", "kleuter", "kinderfeestje", "ouder-kind",
	"family day", "kids disco", "kinderdisco",
}

var adultSocialOverrides = []string{
	"speeddating", "singles night", "wijnproeverij", "borrel", "cocktail night",
}

var categoryKeywords = map[string][]string{
	"active":        {"run", "fitness", "yoga", "cycling", "marathon", "hike", "sport"},
	"gaming":        {"board game", "esports", "gaming", "lan party", "dungeons"},
	"entertainment": {"comedy", "theater", "theatre", "cinema", "film screening", "show"},
	"social":        {"meetup", "networking", "mixer", "social club"},
	"family":        {"family", "kids", "children", "playground"},
	"outdoors":      {"park", "hiking", "outdoor", "garden", "nature walk"},
	"music":         {"concert", "live music", "dj set", "jazz", "orchestra"},
	"workshops":     {"workshop", "masterclass", "training session", "seminar"},
	"foodie":        {"food truck", "tasting", "culinary", "farmers market", "brewery"},
	"community":     {"town hall", "volunteer", "community", "neighborhood"},
}

// ClassifyCategory assigns a closed-set category to an event using title,
// description, and any upstream category hint as signal.
func ClassifyCategory(title, description, categoryHint string) models.EventCategory {
	text := strings.ToLower(title + " " + description + " " + categoryHint)

	for _, kw := range parentingOverrides {
		if strings.Contains(text, kw) {
			return models.CategoryFamily
		}
	}
	for _, kw := range adultSocialOverrides {
		if strings.Contains(text, kw) {
			if strings.Contains(text, "wijn") || strings.Contains(text, "tasting") {
				return models.CategoryFoodie
			}
			return models.CategorySocial
		}
	}

	bestCategory := models.EventCategory(models.CategoryCommunity)
	bestHits := 0
	for category, keywords := range categoryKeywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestCategory = models.EventCategory(category)
		}
	}
	return bestCategory
}
