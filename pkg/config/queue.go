package config

import "time"

// QueueConfig contains daemon-mode worker pool configuration. These values
// only apply when cmd/scraper is started with --daemon; stateless
// HTTP-triggered invocations process one batch and return.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines in the daemon pool.
	// Each worker independently claims and processes scrape jobs.
	WorkerCount int

	// BatchSize is the number of jobs claimed per claim_scrape_jobs call.
	BatchSize int

	// PollInterval is the base interval between claim attempts.
	PollInterval time.Duration

	// PollIntervalJitter is the random jitter added to PollInterval.
	PollIntervalJitter time.Duration

	// JobTimeout bounds a single job's processing time before it is left
	// running and later recovered by the stale-job reaper.
	JobTimeout time.Duration

	// GracefulShutdownTimeout is the max time to wait for in-flight jobs
	// to finish during Stop().
	GracefulShutdownTimeout time.Duration

	// StaleJobReapInterval is how often the reaper scans for stuck jobs.
	StaleJobReapInterval time.Duration

	// StaleJobThreshold is how long a job may stay `running` before the
	// reaper resets it to `pending`.
	StaleJobThreshold time.Duration

	// MaxConsecutiveErrors is the circuit-breaker trip threshold
	// (spec: 3).
	MaxConsecutiveErrors int
}

// DefaultQueueConfig returns the built-in daemon-mode defaults, overridable
// by SCRAPE_INTERVAL_MS / BATCH_SIZE / MAX_CONSECUTIVE_ERRORS env vars.
func DefaultQueueConfig() *QueueConfig {
	pollMs := getEnvIntOrDefault("SCRAPE_INTERVAL_MS", 60_000)
	batchSize := getEnvIntOrDefault("BATCH_SIZE", 20)
	maxConsecutiveErrors := getEnvIntOrDefault("MAX_CONSECUTIVE_ERRORS", 3)

	return &QueueConfig{
		WorkerCount:             5,
		BatchSize:               batchSize,
		PollInterval:            time.Duration(pollMs) * time.Millisecond,
		PollIntervalJitter:      5 * time.Second,
		JobTimeout:              15 * time.Minute,
		GracefulShutdownTimeout: 15 * time.Minute,
		StaleJobReapInterval:    5 * time.Minute,
		StaleJobThreshold:       20 * time.Minute,
		MaxConsecutiveErrors:    maxConsecutiveErrors,
	}
}
