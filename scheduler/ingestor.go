// ABOUTME: Scheduled ingestion runs: quota check, fetch, classify, store, quota update
// ABOUTME: Each run produces a typed RunResult; failures never kill the schedule
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"goodnews/classifier"
	"goodnews/domain"
)

// Run statuses reported by RunOnce.
const (
	RunCompleted    = "completed"
	RunQuotaReached = "quota_reached"
	RunNoArticles   = "no_articles"
	RunFailed       = "failed"
)

// RunResult summarizes one ingestion run.
type RunResult struct {
	Status         string `json:"status"`
	RawCount       int    `json:"rawCount"`
	FilteredCount  int    `json:"filteredCount"`
	DailyProcessed int    `json:"dailyProcessed"`
	BatchID        string `json:"batchId,omitempty"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// batchFetcher is the orchestration surface the ingestor needs.
type batchFetcher interface {
	FetchAll(ctx context.Context) []domain.RawArticle
	FetchAllPreferring(ctx context.Context, providerName string) []domain.RawArticle
}

// batchClassifier reduces a raw batch to enriched good-news items.
type batchClassifier interface {
	Classify(ctx context.Context, raw []domain.RawArticle) classifier.Outcome
}

// ingestStore is the persistence surface the ingestor needs.
type ingestStore interface {
	DailyCount(ctx context.Context, day string) (int, error)
	AddDailyCount(ctx context.Context, day string, n int) error
	UpsertBatch(ctx context.Context, meta domain.BatchMetadata, articles []domain.EnrichedArticle) (int, error)
	LatestBatchArticles(ctx context.Context) ([]domain.StoredArticle, *domain.BatchMetadata, error)
}

// Ingestor drives the fetch-classify-store pipeline on a ticker and on
// demand. Instances are explicit: construct, Start, Stop.
type Ingestor struct {
	fetcher    batchFetcher
	classifier batchClassifier
	store      ingestStore
	interval   time.Duration
	dailyQuota int
	instanceID string
	logger     *slog.Logger

	mu           sync.Mutex
	started      bool
	lastProvider string // dominant provider tag of the last stored batch
	stop         chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
}

// NewIngestor creates an ingestor with a fresh instance ID for batch
// attribution.
func NewIngestor(
	fetcher batchFetcher,
	batchClassifier batchClassifier,
	store ingestStore,
	interval time.Duration,
	dailyQuota int,
	logger *slog.Logger,
) *Ingestor {
	return &Ingestor{
		fetcher:    fetcher,
		classifier: batchClassifier,
		store:      store,
		interval:   interval,
		dailyQuota: dailyQuota,
		instanceID: uuid.NewString(),
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// dayKey is the UTC date used for quota accounting. The counter rolls over
// at midnight UTC regardless of server timezone.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RunOnce executes one full ingestion pass. The returned error is non-nil
// only when the result status is RunFailed.
func (i *Ingestor) RunOnce(ctx context.Context) (RunResult, error) {
	day := dayKey(time.Now())

	processed, err := i.store.DailyCount(ctx, day)
	if err != nil {
		return RunResult{Status: RunFailed}, err
	}

	if processed >= i.dailyQuota {
		i.logger.InfoContext(ctx, "daily quota reached, skipping ingestion",
			"processed", processed, "quota", i.dailyQuota)
		return RunResult{Status: RunQuotaReached, DailyProcessed: processed}, nil
	}

	raw := i.fetch(ctx)
	if len(raw) == 0 {
		i.surfaceLatestBatch(ctx)
		return RunResult{Status: RunNoArticles, DailyProcessed: processed}, nil
	}

	outcome := i.classifier.Classify(ctx, raw)
	if outcome.Status == classifier.StatusFailed {
		return RunResult{Status: RunFailed, RawCount: len(raw), DailyProcessed: processed}, outcome.Err
	}

	articles := outcome.Articles
	if remaining := i.dailyQuota - processed; len(articles) > remaining {
		i.logger.InfoContext(ctx, "truncating batch to remaining daily quota",
			"batch", len(articles), "remaining", remaining)
		articles = articles[:remaining]
	}

	result := RunResult{
		Status:         RunCompleted,
		RawCount:       len(raw),
		FilteredCount:  len(articles),
		DailyProcessed: processed,
		Degraded:       outcome.Status == classifier.StatusDegraded,
	}

	if len(articles) == 0 {
		i.surfaceLatestBatch(ctx)
		result.Status = RunNoArticles
		return result, nil
	}

	meta := domain.BatchMetadata{
		BatchID:    uuid.NewString(),
		InstanceID: i.instanceID,
	}

	if _, err := i.store.UpsertBatch(ctx, meta, articles); err != nil {
		result.Status = RunFailed
		return result, err
	}
	result.BatchID = meta.BatchID
	i.rememberProvider(articles)

	if err := i.store.AddDailyCount(ctx, day, len(articles)); err != nil {
		// The batch is already stored; quota undercounting is preferable to
		// failing the run.
		i.logger.Warn("failed to update daily quota counter", "day", day, "error", err)
	} else {
		result.DailyProcessed = processed + len(articles)
	}

	i.logger.InfoContext(ctx, "ingestion run completed",
		"batch_id", result.BatchID,
		"raw", result.RawCount,
		"stored", result.FilteredCount,
		"degraded", result.Degraded,
		"daily_processed", result.DailyProcessed)

	return result, nil
}

// fetch runs the orchestrator, promoting the provider that produced the bulk
// of the last stored batch. Its feed is the one most recently known good; the
// promotion lasts one run and the orchestrator restores priority order after.
func (i *Ingestor) fetch(ctx context.Context) []domain.RawArticle {
	i.mu.Lock()
	preferred := i.lastProvider
	i.mu.Unlock()

	if preferred != "" {
		return i.fetcher.FetchAllPreferring(ctx, preferred)
	}
	return i.fetcher.FetchAll(ctx)
}

// rememberProvider records the dominant provider tag of a stored batch.
func (i *Ingestor) rememberProvider(articles []domain.EnrichedArticle) {
	counts := make(map[string]int)
	best := ""
	for _, a := range articles {
		if a.ProviderTag == "" {
			continue
		}
		counts[a.ProviderTag]++
		if counts[a.ProviderTag] > counts[best] {
			best = a.ProviderTag
		}
	}
	if best == "" {
		return
	}

	i.mu.Lock()
	i.lastProvider = best
	i.mu.Unlock()
}

// surfaceLatestBatch re-reads the most recent successful batch so the read
// path keeps serving content. Best effort: failure is logged, never fatal.
func (i *Ingestor) surfaceLatestBatch(ctx context.Context) {
	articles, meta, err := i.store.LatestBatchArticles(ctx)
	if err != nil {
		i.logger.Warn("failed to surface latest batch", "error", err)
		return
	}
	if meta == nil {
		i.logger.Warn("no previous batch available to surface")
		return
	}
	i.logger.InfoContext(ctx, "serving latest stored batch",
		"batch_id", meta.BatchID,
		"articles", len(articles),
		"processed_at", meta.ProcessedAt)
}

// Start runs ingestion on the configured interval until Stop is called or
// the context is cancelled. The first run happens after one full interval.
func (i *Ingestor) Start(ctx context.Context) {
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return
	}
	i.started = true
	i.mu.Unlock()

	go func() {
		defer close(i.done)
		ticker := time.NewTicker(i.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-i.stop:
				return
			case <-ticker.C:
				if _, err := i.RunOnce(ctx); err != nil {
					i.logger.Error("scheduled ingestion run failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() {
		close(i.stop)

		i.mu.Lock()
		started := i.started
		i.mu.Unlock()
		if started {
			<-i.done
		}
	})
}
