package worker

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/strategy"
)

var detailTimePattern = regexp.MustCompile(`(?i)(\d{1,2})[:.h](\d{2})\s*(am|pm)?`)

// deepScrapeDetailTimes fetches each card's detail page, sequentially and
// rate-limited per the source's configured delay, to recover a start
// time missing from the listing page. Cards that already carry a time,
// or have no detail URL, are skipped.
func (w *Worker) deepScrapeDetailTimes(ctx context.Context, f fetcher.Fetcher, source *models.Source, cards []strategy.RawEventCard) {
	for i := range cards {
		card := &cards[i]
		if card.DetailPageTime != "" || card.DetailURL == "" {
			continue
		}

		res, err := f.FetchPage(ctx, card.DetailURL, source.ExtractionConfig.Headers, source.ExtractionConfig.RateLimitMs)
		if err != nil {
			slog.Warn("deep-scrape detail fetch failed", "url", card.DetailURL, "error", err)
			continue
		}

		if m := detailTimePattern.FindString(res.HTML); m != "" {
			card.DetailPageTime = m
		}
	}
}
