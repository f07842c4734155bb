package strategy

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// JSONLDStrategy extracts schema.org Event objects from <script
// type="application/ld+json"> blocks, and falls back to microdata
// itemprop attributes when no ld+json block parses as an Event.
type JSONLDStrategy struct{}

func NewJSONLDStrategy() *JSONLDStrategy { return &JSONLDStrategy{} }

func (s *JSONLDStrategy) Name() fingerprint.Strategy { return fingerprint.StrategyJSONLD }

func (s *JSONLDStrategy) DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error) {
	return []string{source.URL}, nil
}

func (s *JSONLDStrategy) FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error) {
	return f.FetchPage(ctx, url, source.ExtractionConfig.Headers, source.ExtractionConfig.RateLimitMs)
}

func (s *JSONLDStrategy) ParseListing(html, url string, source *models.Source) ([]RawEventCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var cards []RawEventCard
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, el *goquery.Selection) {
		raw := el.Text()
		cards = append(cards, eventsFromJSON(raw)...)
	})

	if len(cards) > 0 {
		return cards, nil
	}
	return microdataCards(doc), nil
}

// eventsFromJSON walks a json-ld payload that may be a single object, an
// array, or a @graph wrapper, and pulls out every node whose @type is
// Event (or contains Event, for composite types).
func eventsFromJSON(raw string) []RawEventCard {
	if !gjson.Valid(raw) {
		return nil
	}
	root := gjson.Parse(raw)

	var nodes []gjson.Result
	switch {
	case root.IsArray():
		nodes = root.Array()
	case root.Get("@graph").Exists():
		nodes = root.Get("@graph").Array()
	default:
		nodes = []gjson.Result{root}
	}

	var cards []RawEventCard
	for _, n := range nodes {
		t := n.Get("@type").String()
		if !strings.Contains(t, "Event") {
			continue
		}
		card := RawEventCard{
			Title:       n.Get("name").String(),
			Date:        n.Get("startDate").String(),
			Description: n.Get("description").String(),
			DetailURL:   n.Get("url").String(),
			ImageURL:    firstOf(n.Get("image")),
			Location:    locationFromJSON(n.Get("location")),
		}
		if card.Title != "" {
			cards = append(cards, card)
		}
	}
	return cards
}

func firstOf(v gjson.Result) string {
	if v.IsArray() {
		arr := v.Array()
		if len(arr) > 0 {
			return arr[0].String()
		}
		return ""
	}
	return v.String()
}

func locationFromJSON(v gjson.Result) string {
	if name := v.Get("name").String(); name != "" {
		return name
	}
	return v.Get("address.streetAddress").String()
}

func microdataCards(doc *goquery.Document) []RawEventCard {
	var cards []RawEventCard
	doc.Find(`[itemtype="https://schema.org/Event"], [itemtype="http://schema.org/Event"]`).Each(func(i int, el *goquery.Selection) {
		card := RawEventCard{
			Title:    microdataProp(el, "name"),
			Date:     microdataProp(el, "startDate"),
			Location: microdataProp(el, "location"),
		}
		if card.Title != "" {
			cards = append(cards, card)
		}
	})
	return cards
}

func microdataProp(el *goquery.Selection, prop string) string {
	found := el.Find("[itemprop=\"" + prop + "\"]").First()
	if content, ok := found.Attr("content"); ok && content != "" {
		return content
	}
	return strings.TrimSpace(found.Text())
}
