package config

import (
	"os"
	"time"
)

// FetcherConfig controls the Fetcher abstraction's network behavior.
type FetcherConfig struct {
	// ProxyAPIKey enables the proxy fetch path when non-empty. Populated
	// from SCRAPER_PROXY_API_KEY, PROXY_PROVIDER_API_KEY, or
	// SCRAPINGBEE_API_KEY, in that order.
	ProxyAPIKey string

	FetchTimeout    time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	BackoffJitter   float64
	DefaultJitterMs int
}

// LoadFetcherConfigFromEnv loads FetcherConfig from the environment.
func LoadFetcherConfigFromEnv() FetcherConfig {
	proxyKey := firstNonEmptyEnv("SCRAPER_PROXY_API_KEY", "PROXY_PROVIDER_API_KEY", "SCRAPINGBEE_API_KEY")
	return FetcherConfig{
		ProxyAPIKey:     proxyKey,
		FetchTimeout:    15 * time.Second,
		MaxRetries:      3,
		BackoffBase:     1 * time.Second,
		BackoffCap:      30 * time.Second,
		BackoffJitter:   0.2,
		DefaultJitterMs: 20,
	}
}

// AIConfig configures the Gemini and OpenAI clients used for normalization
// fallback, selector healing, embeddings, and Social Five enrichment.
type AIConfig struct {
	GeminiAPIKey   string
	OpenAIAPIKey   string
	GeminiModel    string
	EmbeddingModel string
	OpenAIModel    string
	RequestTimeout time.Duration
}

// LoadAIConfigFromEnv loads AIConfig from the environment.
func LoadAIConfigFromEnv() AIConfig {
	return AIConfig{
		GeminiAPIKey:   firstNonEmptyEnv("GEMINI_API_KEY", "GOOGLE_AI_API_KEY"),
		OpenAIAPIKey:   getEnvOrDefault("OPENAI_API_KEY", ""),
		GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingModel: getEnvOrDefault("GEMINI_EMBEDDING_MODEL", "gemini-text-embedding-004"),
		OpenAIModel:    getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		RequestTimeout: 10 * time.Second,
	}
}

// DiscoveryConfig configures the source-discovery subsystem.
type DiscoveryConfig struct {
	SerperAPIKey    string
	SearchTimeout   time.Duration
	ValidateTimeout time.Duration
	MaxRetries      int
}

// LoadDiscoveryConfigFromEnv loads DiscoveryConfig from the environment.
func LoadDiscoveryConfigFromEnv() DiscoveryConfig {
	return DiscoveryConfig{
		SerperAPIKey:    os.Getenv("SERPER_API_KEY"),
		SearchTimeout:   15 * time.Second,
		ValidateTimeout: 10 * time.Second,
		MaxRetries:      3,
	}
}

// SlackConfig configures outbound notifications. When Token or Channel is
// empty, pkg/notifyslack.NewService returns a nil *Service and every
// notification becomes a no-op.
type SlackConfig struct {
	Token             string
	Channel           string
	DLQAlertThreshold int
}

// LoadSlackConfigFromEnv loads SlackConfig from the environment.
func LoadSlackConfigFromEnv() SlackConfig {
	return SlackConfig{
		Token:             os.Getenv("SLACK_BOT_TOKEN"),
		Channel:           os.Getenv("SLACK_CHANNEL_ID"),
		DLQAlertThreshold: getEnvIntOrDefault("DLQ_ALERT_THRESHOLD", 50),
	}
}

func firstNonEmptyEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
