// Package ai wraps the two LLM providers the pipeline depends on: Gemini
// for normalization fallback, selector healing, and embeddings, and OpenAI
// for structured-output enrichment. Every response is treated as
// untrusted: callers validate schema and reject on failure rather than
// propagating a malformed object downstream.
package ai

import "time"

// EnrichmentResult is the "Social Five" structured-output contract:
// what/when/where/who/vibe, plus the quality signals the worker uses to
// score a card. Unknown fields in the raw LLM response are ignored.
type EnrichmentResult struct {
	What            string   `json:"what"`
	When            string   `json:"when"`
	Where           string   `json:"where"`
	Who             string   `json:"who"`
	Vibe            string   `json:"vibe"`
	QualityScore    float64  `json:"quality_score"`
	SuggestedTags   []string `json:"suggested_tags"`
}

// SelectorSuggestion is the healer's LLM contract: candidate CSS
// selectors and a recommended fetch strategy, with a confidence the
// caller must threshold before trusting it.
type SelectorSuggestion struct {
	Selectors      map[string]string `json:"selectors"`
	Strategy       string            `json:"strategy"`
	Confidence     float64           `json:"confidence"`
	Diagnosis      string            `json:"diagnosis"`
}

// ValidationResult is the discovery subsystem's candidate-URL LLM
// contract.
type ValidationResult struct {
	IsValid       bool    `json:"isValid"`
	Confidence    int     `json:"confidence"`
	SuggestedName string  `json:"suggestedName"`
}

// Config holds both provider credentials and the shared request timeout.
type Config struct {
	GeminiAPIKey   string
	OpenAIAPIKey   string
	GeminiModel    string
	EmbeddingModel string
	OpenAIModel    string
	RequestTimeout time.Duration
}
