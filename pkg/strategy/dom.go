package strategy

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// DOMStrategy parses event cards from CSS selectors in the source's
// extraction config. It is the last-resort strategy: every fingerprint
// recommendation ends with it.
type DOMStrategy struct{}

func NewDOMStrategy() *DOMStrategy { return &DOMStrategy{} }

func (s *DOMStrategy) Name() fingerprint.Strategy { return fingerprint.StrategyDOM }

func (s *DOMStrategy) DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error) {
	return []string{source.URL}, nil
}

func (s *DOMStrategy) FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error) {
	return f.FetchPage(ctx, url, source.ExtractionConfig.Headers, source.ExtractionConfig.RateLimitMs)
}

func (s *DOMStrategy) ParseListing(html, url string, source *models.Source) ([]RawEventCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	sel := source.ExtractionConfig.Selectors
	cardSel := selectorOrDefault(sel, "card", "article, .event, .event-card, li.event-item")

	var cards []RawEventCard
	doc.Find(cardSel).Each(func(i int, el *goquery.Selection) {
		card := RawEventCard{
			Title:       text(el, selectorOrDefault(sel, "title", "h1, h2, h3, .title")),
			Date:        text(el, selectorOrDefault(sel, "date", "time, .date")),
			Location:    text(el, selectorOrDefault(sel, "location", ".location, .venue")),
			Description: text(el, selectorOrDefault(sel, "description", "p, .description")),
			RawHTML:     htmlOf(el),
		}
		if href, ok := el.Find("a").First().Attr("href"); ok {
			card.DetailURL = resolveURL(url, href)
		}
		if img, ok := el.Find("img").First().Attr("src"); ok {
			card.ImageURL = resolveURL(url, img)
		}
		if strings.TrimSpace(card.Title) != "" {
			cards = append(cards, card)
		}
	})
	return cards, nil
}

func selectorOrDefault(m map[string]string, key, fallback string) string {
	if m != nil {
		if v, ok := m[key]; ok && v != "" {
			return v
		}
	}
	return fallback
}

func text(el *goquery.Selection, selector string) string {
	return strings.TrimSpace(el.Find(selector).First().Text())
}

func htmlOf(el *goquery.Selection) string {
	h, err := goquery.OuterHtml(el)
	if err != nil {
		return ""
	}
	return h
}

func resolveURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	baseRoot := base
	if idx := strings.Index(base, "://"); idx != -1 {
		if slash := strings.Index(base[idx+3:], "/"); slash != -1 {
			baseRoot = base[:idx+3+slash]
		}
	}
	if strings.HasPrefix(ref, "/") {
		return baseRoot + ref
	}
	return strings.TrimSuffix(base, "/") + "/" + ref
}
