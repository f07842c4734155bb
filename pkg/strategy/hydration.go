package strategy

import (
	"context"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// hydrationBlock matches the inline state payloads that Next.js, Nuxt, and
// similar hydration-driven frameworks embed as <script> globals, e.g.
// window.__NEXT_DATA__ = {...};
var hydrationBlock = regexp.MustCompile(`__(?:NEXT_DATA__|NUXT__|INITIAL_STATE__)\s*=\s*(\{.*?\})\s*(?:;|</script>)`)

// HydrationStrategy extracts event data embedded in client-hydration JSON
// blobs rather than rendered DOM. It always requires the headless fetcher,
// since the listing HTML alone won't reflect client-rendered content for
// the source page itself, only its embedded data script.
type HydrationStrategy struct{}

func NewHydrationStrategy() *HydrationStrategy { return &HydrationStrategy{} }

func (s *HydrationStrategy) Name() fingerprint.Strategy { return fingerprint.StrategyHydration }

func (s *HydrationStrategy) DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error) {
	return []string{source.URL}, nil
}

func (s *HydrationStrategy) FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error) {
	return f.FetchPage(ctx, url, source.ExtractionConfig.Headers, source.ExtractionConfig.RateLimitMs)
}

func (s *HydrationStrategy) ParseListing(html, url string, source *models.Source) ([]RawEventCard, error) {
	match := hydrationBlock.FindStringSubmatch(html)
	if match == nil {
		return nil, nil
	}
	payload := match[1]
	if !gjson.Valid(payload) {
		return nil, nil
	}

	root := gjson.Parse(payload)
	var cards []RawEventCard
	walkForEvents(root, &cards)
	return cards, nil
}

// walkForEvents recurses through an arbitrarily nested hydration payload
// looking for arrays of objects shaped like events (has a title-like and
// date-like key). Hydration payload shapes vary per framework/site, so
// this is heuristic rather than schema-driven.
func walkForEvents(v gjson.Result, out *[]RawEventCard) {
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			if looksLikeEvent(item) {
				*out = append(*out, cardFromNode(item))
			} else {
				walkForEvents(item, out)
			}
		}
	case v.IsObject():
		v.ForEach(func(_, val gjson.Result) bool {
			walkForEvents(val, out)
			return true
		})
	}
}

func looksLikeEvent(v gjson.Result) bool {
	if !v.IsObject() {
		return false
	}
	hasTitle := v.Get("title").Exists() || v.Get("name").Exists()
	hasDate := v.Get("date").Exists() || v.Get("startDate").Exists() || v.Get("start_date").Exists() || v.Get("eventDate").Exists()
	return hasTitle && hasDate
}

func cardFromNode(v gjson.Result) RawEventCard {
	title := v.Get("title")
	if !title.Exists() {
		title = v.Get("name")
	}
	date := v.Get("date")
	for _, alt := range []string{"startDate", "start_date", "eventDate"} {
		if date.Exists() {
			break
		}
		date = v.Get(alt)
	}
	return RawEventCard{
		Title:       title.String(),
		Date:        date.String(),
		Description: v.Get("description").String(),
		Location:    v.Get("location.name").String(),
		ImageURL:    v.Get("image").String(),
		DetailURL:   v.Get("url").String(),
	}
}
