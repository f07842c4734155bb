// Package config loads and assembles the pipeline's typed configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the umbrella configuration object assembled at startup and
// threaded through the pipeline components. It is read-only after
// construction; there are no singletons for business logic.
type Config struct {
	configDir string

	Database  DatabaseConfig
	Queue     *QueueConfig
	Fetcher   FetcherConfig
	AI        AIConfig
	Discovery DiscoveryConfig
	Slack     SlackConfig

	TargetEventYear int
	HTTPPort        string
	GinMode         string
}

// ConfigDir returns the directory .env was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Load reads `.env` from configDir (warn-only if absent) and assembles the
// umbrella Config from environment variables, mirroring the teacher's
// cmd/tarsy/main.go startup sequence.
func Load(configDir string) (*Config, error) {
	envPath := configDir + "/.env"
	if err := godotenv.Load(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v; continuing with existing environment\n", envPath, err)
	}

	dbCfg, err := LoadDatabaseConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading database config: %w", err)
	}

	year, err := targetEventYear()
	if err != nil {
		return nil, err
	}

	return &Config{
		configDir:       configDir,
		Database:        dbCfg,
		Queue:           DefaultQueueConfig(),
		Fetcher:         LoadFetcherConfigFromEnv(),
		AI:              LoadAIConfigFromEnv(),
		Discovery:       LoadDiscoveryConfigFromEnv(),
		Slack:           LoadSlackConfigFromEnv(),
		TargetEventYear: year,
		HTTPPort:        getEnvOrDefault("HTTP_PORT", "8080"),
		GinMode:         getEnvOrDefault("GIN_MODE", "debug"),
	}, nil
}

func targetEventYear() (int, error) {
	raw := os.Getenv("TARGET_EVENT_YEAR")
	if raw == "" {
		return time.Now().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid TARGET_EVENT_YEAR: %w", err)
	}
	if year < 2020 || year > 2100 {
		return 0, fmt.Errorf("TARGET_EVENT_YEAR out of range [2020,2100]: %d", year)
	}
	return year, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
