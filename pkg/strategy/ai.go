package strategy

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"strings"

	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
)

// Extractor is the capability pkg/ai provides back to the waterfall: given
// stripped page text, return candidate event cards. Defined here (rather
// than imported from pkg/ai) so the waterfall doesn't need to know about
// model clients or prompts, only that something can answer this question.
type Extractor interface {
	ExtractEvents(ctx context.Context, pageText, sourceURL string) ([]RawEventCard, error)
}

// AIStrategy is the waterfall's last resort: strip the page to visible
// text and hand it to an LLM extractor. It is never in a fingerprint's
// recommended list; callers invoke Registry.AI() explicitly once the
// waterfall above has been exhausted.
type AIStrategy struct {
	extractor Extractor
}

func NewAIStrategy(extractor Extractor) *AIStrategy {
	return &AIStrategy{extractor: extractor}
}

func (s *AIStrategy) Name() fingerprint.Strategy { return "ai" }

func (s *AIStrategy) DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error) {
	return []string{source.URL}, nil
}

func (s *AIStrategy) FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error) {
	return f.FetchPage(ctx, url, source.ExtractionConfig.Headers, source.ExtractionConfig.RateLimitMs)
}

func (s *AIStrategy) ParseListing(html, url string, source *models.Source) ([]RawEventCard, error) {
	text, err := visibleText(html)
	if err != nil {
		return nil, err
	}
	return s.extractor.ExtractEvents(context.Background(), text, url)
}

// visibleText strips script/style/nav/footer noise and returns the
// remaining text, capped to keep prompt size bounded.
func visibleText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, footer, header, svg").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")
	const maxChars = 20000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}
