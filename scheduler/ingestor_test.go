package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodnews/classifier"
	"goodnews/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeFetcher struct {
	mu        sync.Mutex
	raw       []domain.RawArticle
	calls     int
	preferred []string
}

func (f *fakeFetcher) FetchAll(ctx context.Context) []domain.RawArticle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.raw
}

func (f *fakeFetcher) FetchAllPreferring(ctx context.Context, providerName string) []domain.RawArticle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.preferred = append(f.preferred, providerName)
	return f.raw
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) preferredNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.preferred...)
}

type fakeClassifier struct {
	outcome classifier.Outcome
}

func (f *fakeClassifier) Classify(ctx context.Context, raw []domain.RawArticle) classifier.Outcome {
	return f.outcome
}

type fakeIngestStore struct {
	mu          sync.Mutex
	dailyCounts map[string]int
	dailyErr    error
	upsertErr   error
	upserted    [][]domain.EnrichedArticle
	latestMeta  *domain.BatchMetadata
	latestCalls int
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{dailyCounts: make(map[string]int)}
}

func (f *fakeIngestStore) DailyCount(ctx context.Context, day string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dailyCounts[day], f.dailyErr
}

func (f *fakeIngestStore) AddDailyCount(ctx context.Context, day string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dailyCounts[day] += n
	return nil
}

func (f *fakeIngestStore) UpsertBatch(ctx context.Context, meta domain.BatchMetadata, articles []domain.EnrichedArticle) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, articles)
	return len(articles), nil
}

func (f *fakeIngestStore) LatestBatchArticles(ctx context.Context) ([]domain.StoredArticle, *domain.BatchMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	return nil, f.latestMeta, nil
}

func makeRaw(n int) []domain.RawArticle {
	raw := make([]domain.RawArticle, n)
	for i := range raw {
		raw[i] = domain.RawArticle{
			Title: fmt.Sprintf("A Perfectly Pleasant Headline %d", i),
			Link:  fmt.Sprintf("https://x/%d", i),
		}
	}
	return raw
}

func makeEnriched(n int) []domain.EnrichedArticle {
	enriched := make([]domain.EnrichedArticle, n)
	for i := range enriched {
		enriched[i] = domain.EnrichedArticle{
			RawArticle: domain.RawArticle{
				Title: fmt.Sprintf("A Perfectly Pleasant Headline %d", i),
				Link:  fmt.Sprintf("https://x/%d", i),
			},
			Category: domain.CategoryCommunity,
			Summary:  "something nice happened",
		}
	}
	return enriched
}

func TestRunOnce_Completed(t *testing.T) {
	fetcher := &fakeFetcher{raw: makeRaw(10)}
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusOk, Articles: makeEnriched(4)}}
	st := newFakeIngestStore()
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	result, err := ing.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, 10, result.RawCount)
	assert.Equal(t, 4, result.FilteredCount)
	assert.Equal(t, 4, result.DailyProcessed)
	assert.NotEmpty(t, result.BatchID)
	assert.False(t, result.Degraded)
	require.Len(t, st.upserted, 1)
	assert.Len(t, st.upserted[0], 4)
}

func TestRunOnce_QuotaReachedSkipsProviders(t *testing.T) {
	fetcher := &fakeFetcher{raw: makeRaw(10)}
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusOk}}
	st := newFakeIngestStore()
	st.dailyCounts[dayKey(time.Now())] = 200
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	result, err := ing.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunQuotaReached, result.Status)
	assert.Equal(t, 200, result.DailyProcessed)
	assert.Zero(t, fetcher.callCount())
	assert.Empty(t, st.upserted)
}

func TestRunOnce_ZeroFetchSurfacesLatestBatch(t *testing.T) {
	fetcher := &fakeFetcher{}
	cls := &fakeClassifier{}
	st := newFakeIngestStore()
	st.latestMeta = &domain.BatchMetadata{BatchID: "prev-batch", ArticleCount: 5}
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	result, err := ing.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunNoArticles, result.Status)
	assert.Equal(t, 1, st.latestCalls)
	assert.Empty(t, st.upserted)
}

func TestRunOnce_ClassifierFailureIsFailedRun(t *testing.T) {
	wantErr := errors.New("no strategy produced a result")
	fetcher := &fakeFetcher{raw: makeRaw(3)}
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusFailed, Err: wantErr}}
	st := newFakeIngestStore()
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	result, err := ing.RunOnce(context.Background())

	assert.Equal(t, RunFailed, result.Status)
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, st.upserted)
}

func TestRunOnce_DegradedOutcomeStillStores(t *testing.T) {
	fetcher := &fakeFetcher{raw: makeRaw(5)}
	cls := &fakeClassifier{outcome: classifier.Outcome{
		Status:   classifier.StatusDegraded,
		Articles: makeEnriched(2),
		Reason:   "ai_failed",
	}}
	st := newFakeIngestStore()
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	result, err := ing.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.True(t, result.Degraded)
	require.Len(t, st.upserted, 1)
}

func TestRunOnce_TruncatesToRemainingQuota(t *testing.T) {
	fetcher := &fakeFetcher{raw: makeRaw(10)}
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusOk, Articles: makeEnriched(8)}}
	st := newFakeIngestStore()
	st.dailyCounts[dayKey(time.Now())] = 197
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	result, err := ing.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, 3, result.FilteredCount)
	assert.Equal(t, 200, result.DailyProcessed)
	require.Len(t, st.upserted, 1)
	assert.Len(t, st.upserted[0], 3)
}

func TestRunOnce_StoreFailureIsFailedRun(t *testing.T) {
	fetcher := &fakeFetcher{raw: makeRaw(5)}
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusOk, Articles: makeEnriched(2)}}
	st := newFakeIngestStore()
	st.upsertErr = errors.New("connection refused")
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	result, err := ing.RunOnce(context.Background())

	assert.Equal(t, RunFailed, result.Status)
	assert.ErrorIs(t, err, st.upsertErr)
}

func TestRunOnce_PrefersLastSuccessfulProvider(t *testing.T) {
	enriched := makeEnriched(3)
	enriched[0].ProviderTag = "newsdata"
	enriched[1].ProviderTag = "newsdata"
	enriched[2].ProviderTag = "gnews"

	fetcher := &fakeFetcher{raw: makeRaw(5)}
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusOk, Articles: enriched}}
	st := newFakeIngestStore()
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	// The first run has no history and fetches in configured priority order.
	_, err := ing.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fetcher.preferredNames())

	// The second run promotes the provider that dominated the stored batch.
	_, err = ing.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"newsdata"}, fetcher.preferredNames())
}

func TestRunOnce_FailedRunKeepsNoProviderPreference(t *testing.T) {
	fetcher := &fakeFetcher{raw: makeRaw(5)}
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusOk, Articles: makeEnriched(2)}}
	st := newFakeIngestStore()
	st.upsertErr = errors.New("connection refused")
	ing := NewIngestor(fetcher, cls, st, time.Hour, 200, testLogger())

	_, err := ing.RunOnce(context.Background())
	require.Error(t, err)

	// Nothing was stored, so the next run still uses priority order.
	_, err = ing.RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, fetcher.preferredNames())
}

func TestIngestor_StartStop(t *testing.T) {
	fetcher := &fakeFetcher{raw: makeRaw(1)}
	cls := &fakeClassifier{outcome: classifier.Outcome{Status: classifier.StatusOk, Articles: makeEnriched(1)}}
	st := newFakeIngestStore()
	ing := NewIngestor(fetcher, cls, st, 10*time.Millisecond, 200, testLogger())

	ing.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	ing.Stop()

	assert.GreaterOrEqual(t, fetcher.callCount(), 1)

	calls := fetcher.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, fetcher.callCount())
}

func TestIngestor_StopWithoutStart(t *testing.T) {
	ing := NewIngestor(&fakeFetcher{}, &fakeClassifier{}, newFakeIngestStore(), time.Hour, 200, testLogger())
	ing.Stop()
	ing.Stop()
}

func TestDayKey_IsUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 23:30 UTC on Aug 22 is already Aug 23 in UTC+9; the key must stay on UTC.
	at := time.Date(2026, 8, 23, 8, 30, 0, 0, loc)
	assert.Equal(t, "2026-08-22", dayKey(at))
}
