// ABOUTME: Dependency construction: config in, fully wired application out
// ABOUTME: Builds the pool, cache, limiters, pipeline, and handlers in dependency order
package bootstrap

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"goodnews/cache"
	"goodnews/classifier"
	"goodnews/config"
	"goodnews/engagement"
	"goodnews/guard"
	"goodnews/handler"
	"goodnews/middleware"
	"goodnews/orchestrator"
	"goodnews/provider"
	"goodnews/ratelimit"
	"goodnews/retry"
	"goodnews/scheduler"
	"goodnews/store"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	DBPool *pgxpool.Pool
	Cache  *cache.TTLCache
	Store  *store.Store

	Limiter *ratelimit.ServiceLimiter
	Guard   *guard.ConcurrencyGuard

	Ingestor *scheduler.Ingestor
	Sweeper  *scheduler.Sweeper

	Auth           *middleware.Authenticator
	ArticleHandler *handler.ArticleHandler
	IngestHandler  *handler.IngestHandler
	HealthHandler  *handler.HealthHandler
}

// BuildDependencies constructs all application dependencies.
// Returns a cleanup function that should be deferred.
func BuildDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Dependencies, func(), error) {
	pool, err := store.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}

	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	ttlCache, err := cache.NewFromURL(cfg.Redis.URL, log)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	st := store.New(pool, ttlCache, cfg, log)

	limiter := ratelimit.NewServiceLimiter(cfg.RateLimit, log)
	concurrencyGuard := guard.NewConcurrencyGuard(cfg.Guard, log)
	retrier := retry.NewRetrier(retry.RetryConfig{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		BaseDelay:     cfg.Retry.BaseDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
		JitterFactor:  cfg.Retry.JitterFactor,
	}, nil, log)

	orch := orchestrator.NewFetchOrchestrator(
		buildProviders(cfg, log),
		orchestrator.Strategy(cfg.Ingest.Strategy),
		cfg.Ingest.MinArticles,
		limiter,
		retrier,
		log,
	)

	selector, err := buildClassifier(ctx, cfg, retrier, log)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	tracker := engagement.New(st, cfg.Engagement, log)
	ingestor := scheduler.NewIngestor(orch, selector, st, cfg.Ingest.Interval, cfg.Ingest.DailyQuota, log)
	sweeper := scheduler.NewSweeper(st, cfg.Ingest.SweepInterval, cfg.Ingest.SweepPageSize, log)

	cleanup := func() {
		pool.Close()
	}

	return &Dependencies{
		Config:         cfg,
		Logger:         log,
		DBPool:         pool,
		Cache:          ttlCache,
		Store:          st,
		Limiter:        limiter,
		Guard:          concurrencyGuard,
		Ingestor:       ingestor,
		Sweeper:        sweeper,
		Auth:           middleware.NewAuthenticator(cfg.Auth),
		ArticleHandler: handler.NewArticleHandler(st, tracker, cfg.API),
		IngestHandler:  handler.NewIngestHandler(ingestor),
		HealthHandler:  handler.NewHealthHandler(st, ttlCache),
	}, cleanup, nil
}

// fetchedCategories is the internal category set each provider is asked for.
// Providers map these onto their own taxonomies; the classifier assigns the
// final category regardless of what the provider was asked.
var fetchedCategories = []string{
	"COMMUNITY",
	"SCIENCE",
	"HEALTH",
	"ENVIRONMENT",
	"SPORTS",
}

// buildProviders wires every provider with configured credentials. NewsData
// is preferred in the priority strategy; GNews is the fallback.
func buildProviders(cfg *config.Config, log *slog.Logger) []orchestrator.ProviderEntry {
	return []orchestrator.ProviderEntry{
		{
			Fetcher:    provider.NewNewsDataFetcher(cfg.Providers, log),
			Priority:   1,
			Enabled:    cfg.Providers.NewsDataAPIKey != "",
			Categories: fetchedCategories,
		},
		{
			Fetcher:    provider.NewGNewsFetcher(cfg.Providers, log),
			Priority:   2,
			Enabled:    cfg.Providers.GNewsAPIKey != "",
			Categories: fetchedCategories,
		},
	}
}

// buildClassifier assembles the strategy chain: Gemini when configured, the
// keyword heuristic always available as fallback.
func buildClassifier(ctx context.Context, cfg *config.Config, retrier *retry.Retrier, log *slog.Logger) (*classifier.Selector, error) {
	gemini, err := classifier.NewGeminiClassifier(ctx, cfg.Gemini, retrier, log)
	if err != nil {
		return nil, err
	}

	var primary classifier.Strategy
	if gemini != nil {
		primary = gemini
	} else {
		log.Warn("no gemini api key configured, classification will use the keyword heuristic")
	}

	return classifier.NewSelector(primary, classifier.NewHeuristicClassifier(log), log), nil
}
