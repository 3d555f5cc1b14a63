// ABOUTME: Fetch orchestration across providers with strategy selection and dedup
// ABOUTME: Runs parallel-all or priority-with-fallback and never fails the batch
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"goodnews/domain"
	"goodnews/provider"
	"goodnews/ratelimit"
	"goodnews/retry"
)

// Strategy selects how providers are queried for one ingestion run.
type Strategy string

const (
	// StrategyParallel queries every enabled provider for every target
	// category concurrently.
	StrategyParallel Strategy = "parallel"
	// StrategyPriority tries providers in ascending priority order and skips
	// the rest once the article threshold is met.
	StrategyPriority Strategy = "priority"
)

// fetchConcurrency bounds concurrent provider/category fetches in the
// parallel strategy.
const fetchConcurrency = 4

// ProviderEntry binds a fetcher to its orchestration policy.
type ProviderEntry struct {
	Fetcher    provider.Fetcher
	Priority   int // lower value is tried first in the priority strategy
	Enabled    bool
	Categories []string
}

// FetchOrchestrator runs provider fetches according to the configured
// strategy, deduplicates by normalized link, and returns a unified batch.
type FetchOrchestrator struct {
	providers   []ProviderEntry
	strategy    Strategy
	minArticles int
	limiter     *ratelimit.ServiceLimiter
	retrier     *retry.Retrier
	logger      *slog.Logger
}

// NewFetchOrchestrator creates the orchestrator. Rate limiting and retry are
// applied here, around each provider call, not inside the fetchers.
func NewFetchOrchestrator(
	providers []ProviderEntry,
	strategy Strategy,
	minArticles int,
	limiter *ratelimit.ServiceLimiter,
	retrier *retry.Retrier,
	logger *slog.Logger,
) *FetchOrchestrator {
	return &FetchOrchestrator{
		providers:   providers,
		strategy:    strategy,
		minArticles: minArticles,
		limiter:     limiter,
		retrier:     retrier,
		logger:      logger,
	}
}

// FetchAll fetches raw articles according to the strategy. It never returns
// an error: total failure yields an empty batch and the caller decides how
// to degrade.
func (o *FetchOrchestrator) FetchAll(ctx context.Context) []domain.RawArticle {
	start := time.Now()

	var raw []domain.RawArticle
	switch o.strategy {
	case StrategyParallel:
		raw = o.fetchParallel(ctx)
	default:
		raw = o.fetchPriority(ctx)
	}

	deduped := dedupeByLink(raw)

	o.logger.InfoContext(ctx, "fetch orchestration completed",
		"strategy", string(o.strategy),
		"fetched", len(raw),
		"after_dedup", len(deduped),
		"duration_ms", time.Since(start).Milliseconds())

	return deduped
}

// FetchAllPreferring temporarily promotes the named provider to the highest
// priority for a single run. The original priority order is restored before
// returning, even if the fetch panics.
func (o *FetchOrchestrator) FetchAllPreferring(ctx context.Context, providerName string) []domain.RawArticle {
	original := make([]ProviderEntry, len(o.providers))
	copy(original, o.providers)
	defer func() {
		o.providers = original
	}()

	for i := range o.providers {
		if o.providers[i].Fetcher.Name() == providerName {
			o.providers[i].Priority = -1
			o.logger.Info("provider temporarily promoted", "provider", providerName)
			break
		}
	}

	return o.FetchAll(ctx)
}

// fetchTask is one provider/category pair in the parallel strategy.
type fetchTask struct {
	entry    ProviderEntry
	category string
}

func (o *FetchOrchestrator) fetchParallel(ctx context.Context) []domain.RawArticle {
	var tasks []fetchTask
	for _, entry := range o.providers {
		if !entry.Enabled {
			continue
		}
		for _, category := range entry.Categories {
			tasks = append(tasks, fetchTask{entry: entry, category: category})
		}
	}

	stage := Stage[fetchTask, []domain.RawArticle]{
		Name:        "provider-fetch",
		Concurrency: fetchConcurrency,
		Process: func(ctx context.Context, task fetchTask) ([]domain.RawArticle, error) {
			return o.fetchOne(ctx, task.entry, task.category)
		},
	}

	var all []domain.RawArticle
	for _, result := range RunStage(ctx, stage, tasks) {
		if result.Err != nil {
			// A per-category failure never aborts the batch
			o.logger.Warn("category fetch failed, continuing",
				"provider", tasks[result.Index].entry.Fetcher.Name(),
				"category", tasks[result.Index].category,
				"error", result.Err)
			continue
		}
		all = append(all, result.Value...)
	}
	return all
}

func (o *FetchOrchestrator) fetchPriority(ctx context.Context) []domain.RawArticle {
	ordered := make([]ProviderEntry, 0, len(o.providers))
	for _, entry := range o.providers {
		if entry.Enabled {
			ordered = append(ordered, entry)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var all []domain.RawArticle
	for _, entry := range ordered {
		for _, category := range entry.Categories {
			articles, err := o.fetchOne(ctx, entry, category)
			if err != nil {
				o.logger.Warn("category fetch failed, continuing",
					"provider", entry.Fetcher.Name(),
					"category", category,
					"error", err)
				continue
			}
			all = append(all, articles...)
		}

		if len(all) >= o.minArticles {
			o.logger.Info("article threshold met, skipping lower-priority providers",
				"provider", entry.Fetcher.Name(),
				"collected", len(all),
				"threshold", o.minArticles)
			break
		}
	}
	return all
}

// fetchOne wraps a single provider call in rate limiting and retry.
func (o *FetchOrchestrator) fetchOne(ctx context.Context, entry ProviderEntry, category string) ([]domain.RawArticle, error) {
	if err := o.limiter.Wait(ctx, entry.Fetcher.Name()); err != nil {
		return nil, err
	}

	var articles []domain.RawArticle
	err := o.retrier.Do(ctx, func() error {
		var fetchErr error
		articles, fetchErr = entry.Fetcher.FetchCategory(ctx, category)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// dedupeByLink removes articles whose normalized link was already seen,
// keeping the first occurrence. Normalization is case-folding only; the
// content-addressed ID downstream hashes the original link.
func dedupeByLink(articles []domain.RawArticle) []domain.RawArticle {
	seen := make(map[string]bool, len(articles))
	deduped := make([]domain.RawArticle, 0, len(articles))
	for _, a := range articles {
		key := strings.ToLower(a.Link)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, a)
	}
	return deduped
}
