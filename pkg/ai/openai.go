package ai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient performs structured-output enrichment: the "Social Five"
// (what/when/where/who/vibe) plus quality signals, layered onto an event
// that has already survived dedup. Enrichment failures never fail the
// job; the worker logs an enrichment error and moves on.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds an OpenAIClient, or nil if no key is configured.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{client: openai.NewClient(cfg.OpenAIAPIKey), model: model}
}

// Enrich asks for the Social Five structured output describing title,
// description, and venue. The response is requested as a JSON object and
// validated by unmarshal; a response that does not unmarshal is returned
// as an error.
func (c *OpenAIClient) Enrich(ctx context.Context, title, description, venue string) (*EnrichmentResult, error) {
	prompt := fmt.Sprintf(`Produce the "Social Five" for this event as strict JSON:
{"what": string, "when": string, "where": string, "who": string, "vibe": string, "quality_score": 0..1, "suggested_tags": [string]}
Title: %s
Description: %s
Venue: %s`, title, description, venue)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai enrich: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai enrich: no choices returned")
	}

	var result EnrichmentResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON from openai enrich: %w", err)
	}
	return &result, nil
}
