// Command scraper runs the municipal event-scraping pipeline: a stateless
// HTTP surface (coordinator/worker/discovery-worker/healer) suitable for
// invocation by an external scheduler, optionally paired with a daemon-mode
// worker pool and cron scheduler for deployments without one.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/civic-signal/eventscraper/pkg/ai"
	"github.com/civic-signal/eventscraper/pkg/config"
	"github.com/civic-signal/eventscraper/pkg/coordinator"
	"github.com/civic-signal/eventscraper/pkg/database"
	"github.com/civic-signal/eventscraper/pkg/dedup"
	"github.com/civic-signal/eventscraper/pkg/discovery"
	"github.com/civic-signal/eventscraper/pkg/dlq"
	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/healer"
	"github.com/civic-signal/eventscraper/pkg/httpapi"
	"github.com/civic-signal/eventscraper/pkg/metrics"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/normalize"
	notifyslack "github.com/civic-signal/eventscraper/pkg/notifyslack"
	"github.com/civic-signal/eventscraper/pkg/queue"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/strategy"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	daemon := flag.Bool("daemon", false, "Also run the continuous worker pool and cron scheduler alongside the HTTP server")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to database, migrations applied")

	st := store.New(dbClient.DB)

	slackSvc := notifyslack.NewService(notifyslack.ServiceConfig{
		Token: cfg.Slack.Token, Channel: cfg.Slack.Channel, DLQAlertThreshold: cfg.Slack.DLQAlertThreshold,
	})
	var coordNotifier coordinator.Notifier
	var workerNotifier worker.Notifier
	var dlqNotifier dlq.Notifier
	if slackSvc != nil {
		coordNotifier, workerNotifier, dlqNotifier = slackSvc, slackSvc, slackSvc
	}

	geminiClient, err := ai.NewGeminiClient(ctx, ai.Config(cfg.AI))
	if err != nil {
		log.Fatalf("failed to construct gemini client: %v", err)
	}
	var embedder dedup.Embedder
	var aiNormalizer normalize.AINormalizer
	var selectorHealer worker.SelectorHealer
	var diagnoser healer.Diagnoser
	var aiExtractor strategy.Extractor
	var validator discovery.Validator
	if geminiClient != nil {
		embedder, aiNormalizer, selectorHealer, diagnoser, aiExtractor, validator =
			geminiClient, geminiClient, geminiClient, geminiClient, geminiClient, geminiClient
	}

	var enricher worker.Enricher
	if cfg.AI.OpenAIAPIKey != "" {
		enricher = ai.NewOpenAIClient(ai.Config(cfg.AI))
	}

	fetcherFactory := fetcher.NewFactory(cfg.Fetcher)

	var aiStrategy strategy.Strategy
	if aiExtractor != nil {
		aiStrategy = strategy.NewAIStrategy(aiExtractor)
	}
	strategies := strategy.NewRegistry(
		strategy.NewHydrationStrategy(),
		strategy.NewJSONLDStrategy(),
		strategy.NewFeedStrategy(),
		strategy.NewDOMStrategy(),
		aiStrategy,
	)

	var searcher discovery.Searcher
	if cfg.Discovery.SerperAPIKey != "" {
		searcher = discovery.NewSerperSearcher(cfg.Discovery.SerperAPIKey, cfg.Discovery.SearchTimeout, cfg.Discovery.MaxRetries)
	}

	selfTrigger := httpapi.NewSelfTrigger("http://localhost:" + cfg.HTTPPort)
	coord := coordinator.New(st, coordNotifier, selfTrigger)

	w := &worker.Worker{
		Store:           st,
		Fetchers:        fetcherFactory,
		Strategies:      strategies,
		Embedder:        embedder,
		AINormalizer:    aiNormalizer,
		Healer:          selectorHealer,
		Enricher:        enricher,
		Breaker:         coord,
		Notifier:        workerNotifier,
		Metrics:         metrics.Recorder{},
		Trigger:         selfTrigger,
		TargetEventYear: cfg.TargetEventYear,
		BatchSize:       cfg.Queue.BatchSize,
	}

	h := &healer.Healer{Store: st, Fetchers: fetcherFactory, Diagnoser: diagnoser}

	disc := &discovery.Worker{
		Store:     st,
		Searcher:  searcher,
		Fetcher:   fetcherFactory.For(models.FetchStatic),
		Validator: validator,
	}

	dlqProcessor := dlq.New(st, dlqNotifier, metrics.Recorder{})

	apiServer := httpapi.NewServer(&httpapi.Server{
		Coordinator: coord,
		Worker:      w,
		Healer:      h,
		Discovery:   disc,
		Store:       st,
		DB:          dbClient.DB.DB,
	}, cfg.GinMode)
	w.Trigger = httpapi.NewSelfTrigger("http://localhost:" + cfg.HTTPPort)
	coord.SetTrigger(httpapi.NewSelfTrigger("http://localhost:" + cfg.HTTPPort))

	var pool *queue.WorkerPool
	var scheduler *cron.Cron
	if *daemon {
		pool = queue.NewWorkerPool(w, st, cfg.Queue)
		pool.Start(ctx)

		scheduler = newScheduler(ctx, coord, h, disc, dlqProcessor, st)
		scheduler.Start()
	}

	go func() {
		slog.Info("http server listening", "port", cfg.HTTPPort, "daemon", *daemon)
		if err := apiServer.Start(":" + cfg.HTTPPort); err != nil {
			log.Fatalf("http server exited: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")
	if scheduler != nil {
		schedCtx := scheduler.Stop()
		<-schedCtx.Done()
	}
	if pool != nil {
		pool.Stop()
	}
}

// newScheduler wires the daemon-mode cron jobs: a periodic coordinator
// sweep (matching the volatility-scaled 15m..24h next-run window's lower
// bound), an hourly healer diagnose pass, a frequent discovery drain, and
// a DLQ retry sweep — each invoking the same stage an external scheduler
// would otherwise POST to over HTTP.
func newScheduler(ctx context.Context, coord *coordinator.Coordinator, h *healer.Healer, disc *discovery.Worker, dlqProcessor *dlq.Processor, st *store.Store) *cron.Cron {
	c := cron.New()

	_, _ = c.AddFunc("*/15 * * * *", func() {
		if _, err := coord.Run(ctx, nil); err != nil {
			slog.Error("scheduled coordinator sweep failed", "error", err)
		}
	})

	_, _ = c.AddFunc("0 * * * *", func() {
		if _, err := h.Run(ctx, healer.ModeDiagnose, nil, 10); err != nil {
			slog.Error("scheduled healer sweep failed", "error", err)
		}
	})

	_, _ = c.AddFunc("*/2 * * * *", func() {
		for i := 0; i < 20; i++ {
			result, err := disc.ProcessNext(ctx, "")
			if err != nil {
				slog.Error("scheduled discovery sweep failed", "error", err)
				return
			}
			if result == nil || result.PendingJobsRemaining == 0 {
				return
			}
		}
	})

	_, _ = c.AddFunc("*/10 * * * *", func() {
		_, err := dlqProcessor.ProcessReady(ctx, 25, func(ctx context.Context, item models.DeadLetterItem) error {
			return st.ResetJobForProxyRetry(ctx, item.OriginalJobID)
		})
		if err != nil {
			slog.Error("scheduled dlq sweep failed", "error", err)
		}
	})

	return c
}

var _ = time.Second
