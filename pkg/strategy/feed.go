package strategy

import (
	"context"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// FeedStrategy parses RSS/Atom feeds, used by aggregator sources that
// publish a calendar feed instead of rendering a listing page.
type FeedStrategy struct {
	parser *gofeed.Parser
}

func NewFeedStrategy() *FeedStrategy {
	return &FeedStrategy{parser: gofeed.NewParser()}
}

func (s *FeedStrategy) Name() fingerprint.Strategy { return fingerprint.StrategyFeed }

func (s *FeedStrategy) DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error) {
	if feedURL, ok := source.ExtractionConfig.Selectors["feed_url"]; ok && feedURL != "" {
		return []string{feedURL}, nil
	}
	return []string{source.URL}, nil
}

func (s *FeedStrategy) FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error) {
	return f.FetchPage(ctx, url, source.ExtractionConfig.Headers, source.ExtractionConfig.RateLimitMs)
}

func (s *FeedStrategy) ParseListing(html, url string, source *models.Source) ([]RawEventCard, error) {
	feed, err := s.parser.ParseString(html)
	if err != nil {
		return nil, err
	}

	cards := make([]RawEventCard, 0, len(feed.Items))
	for _, item := range feed.Items {
		card := RawEventCard{
			Title:       item.Title,
			Description: item.Description,
			DetailURL:   item.Link,
		}
		if item.PublishedParsed != nil {
			card.Date = item.PublishedParsed.Format("2006-01-02")
		}
		if len(item.Enclosures) > 0 {
			card.ImageURL = item.Enclosures[0].URL
		} else if item.Image != nil {
			card.ImageURL = item.Image.URL
		}
		card.Location = strings.TrimSpace(venueFromExtensions(item))
		if card.Title != "" {
			cards = append(cards, card)
		}
	}
	return cards, nil
}

// venueFromExtensions pulls a venue name out of common calendar feed
// extension namespaces (e.g. ev:location) when present.
func venueFromExtensions(item *gofeed.Item) string {
	if item.Extensions == nil {
		return ""
	}
	for _, ns := range item.Extensions {
		if loc, ok := ns["location"]; ok && len(loc) > 0 {
			return loc[0].Value
		}
	}
	return ""
}
