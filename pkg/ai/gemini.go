package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/normalize"
	"github.com/civic-signal/eventscraper/pkg/strategy"
)

// GeminiClient groups the Gemini-backed capabilities the pipeline needs:
// normalization fallback, raw-HTML extraction, selector healing,
// embeddings, and discovery candidate validation. A single client handle is reused across all of them.
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewGeminiClient builds a GeminiClient. Returns nil, nil when apiKey is
// empty: callers treat a nil client as "AI not configured" and skip the
// fallback paths rather than erroring.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.GeminiModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "gemini-text-embedding-004"
	}
	return &GeminiClient{client: client, model: model, embeddingModel: embeddingModel}, nil
}

// NormalizeEvent implements normalize.AINormalizer: it asks Gemini to fill
// in a missing time/description for a card that cheap normalization
// couldn't finish, under the same closed schema cheapNormalize produces.
func (g *GeminiClient) NormalizeEvent(ctx context.Context, raw strategy.RawEventCard, targetYear int) (*normalize.NormalizedEvent, error) {
	prompt := fmt.Sprintf(`You are normalizing an event card for a municipal events calendar.
Return strict JSON only, matching this schema:
{"title": string, "description": string (<=240 chars), "event_date": "YYYY-MM-DD", "event_time": "HH:MM or TBD", "venue_name": string}
The event must fall in year %d or you must return {"reject": true}.
Card: title=%q date=%q location=%q description=%q rawHtml=%q`,
		targetYear, raw.Title, raw.Date, raw.Location, raw.Description, truncate(raw.RawHTML, 4000))

	text, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out struct {
		Reject      bool   `json:"reject"`
		Title       string `json:"title"`
		Description string `json:"description"`
		EventDate   string `json:"event_date"`
		EventTime   string `json:"event_time"`
		VenueName   string `json:"venue_name"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON from gemini normalize: %w", err)
	}
	if out.Reject || out.Title == "" {
		return nil, nil
	}

	date, ok := normalize.ParseDate(out.EventDate, targetYear)
	if !ok {
		return nil, nil
	}

	return &normalize.NormalizedEvent{
		Title:       out.Title,
		Description: out.Description,
		Category:    normalize.ClassifyCategory(out.Title, out.Description, raw.CategoryHint),
		EventDate:   date,
		EventTime:   coalesceTime(out.EventTime),
		VenueName:   out.VenueName,
		ImageURL:    raw.ImageURL,
		DetailURL:   raw.DetailURL,
	}, nil
}

func coalesceTime(t string) string {
	if t == "" {
		return "TBD"
	}
	return t
}

// ExtractEvents implements strategy.Extractor: the waterfall's last
// resort, given page text that every deterministic strategy above failed
// to find cards in.
func (g *GeminiClient) ExtractEvents(ctx context.Context, pageText, sourceURL string) ([]strategy.RawEventCard, error) {
	prompt := fmt.Sprintf(`Extract event listings from this page text. Return strict JSON: a list of objects
matching {"what": string, "when": string, "where": string, "who": string, "vibe": string}
representing the "Social Five" for each distinct event found. Return [] if none.
Page (%s): %s`, sourceURL, truncate(pageText, 25000))

	text, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var results []EnrichmentResult
	if err := json.Unmarshal([]byte(text), &results); err != nil {
		return nil, fmt.Errorf("invalid JSON from gemini extract: %w", err)
	}

	cards := make([]strategy.RawEventCard, 0, len(results))
	for _, r := range results {
		if r.What == "" {
			continue
		}
		cards = append(cards, strategy.RawEventCard{
			Title:       r.What,
			Date:        r.When,
			Location:    r.Where,
			Description: r.Vibe,
		})
	}
	return cards, nil
}

// SuggestSelectors asks Gemini to diagnose why a source is yielding zero
// cards and propose new CSS selectors and/or a fetch strategy. Used by
// both the worker's heal-on-zero path and the healer's diagnose mode.
func (g *GeminiClient) SuggestSelectors(ctx context.Context, html string) (*SelectorSuggestion, error) {
	prompt := fmt.Sprintf(`A scraper is extracting zero events from this page despite it having content.
Diagnose the likely cause and propose a fix. Return strict JSON:
{"selectors": {"card": css, "title": css, "date": css, "location": css}, "strategy": "static|headless|proxy", "confidence": 0..1, "diagnosis": string}
Page HTML (truncated): %s`, truncate(html, 15000))

	text, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var suggestion SelectorSuggestion
	if err := json.Unmarshal([]byte(text), &suggestion); err != nil {
		return nil, fmt.Errorf("invalid JSON from gemini heal: %w", err)
	}
	return &suggestion, nil
}

// ValidateCandidate asks Gemini whether a discovered URL is plausibly a
// municipal/venue events agenda page, implementing discovery.Validator.
func (g *GeminiClient) ValidateCandidate(ctx context.Context, url, pageText string) (*ValidationResult, error) {
	prompt := fmt.Sprintf(`Is this webpage a municipal or venue events/agenda listing page (not a booking
site, social media profile, or unrelated page)? Return strict JSON:
{"isValid": bool, "confidence": 0..100, "suggestedName": string}
URL: %s
Page text (truncated): %s`, url, truncate(pageText, 8000))

	text, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var result ValidationResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON from gemini validate: %w", err)
	}
	return &result, nil
}

// Embed implements dedup.Embedder, computing a single dense vector for
// semantic-rung comparison.
func (g *GeminiClient) Embed(ctx context.Context, text string) (models.Embedding, string, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	dims := int32(768)
	result, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, "", fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, "", fmt.Errorf("gemini embed: no embeddings returned")
	}
	return models.Embedding(result.Embeddings[0].Values), g.embeddingModel, nil
}

func (g *GeminiClient) generateJSON(ctx context.Context, prompt string) (string, error) {
	mimeType := "application/json"
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseMIMEType: mimeType},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		slog.Warn("gemini returned empty response")
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return text, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
