package store

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodnews/config"
	"goodnews/domain"
	apperrors "goodnews/utils/errors"
)

type fakeCache struct {
	values  map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	f.values[key] = value
}

func (f *fakeCache) Invalidate(ctx context.Context, keys ...string) {
	for _, k := range keys {
		delete(f.values, k)
		f.deleted = append(f.deleted, k)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Ingest: config.IngestConfig{
			MaxBatchSize:    100,
			MaxPayloadBytes: 1048576,
			ArticleTTL:      48 * time.Hour,
		},
		Cache: config.CacheConfig{
			ArticlesTTL: 5 * time.Minute,
			TrendingTTL: 2 * time.Minute,
		},
		API: config.APIConfig{
			MaxArticlesPerCall: 50,
			TrendingLimit:      20,
		},
	}
}

func TestValidateBatch_WithinLimits(t *testing.T) {
	articles := []domain.EnrichedArticle{{
		RawArticle: domain.RawArticle{Title: "A Perfectly Fine Headline", Link: "https://x/1"},
		Category:   domain.CategoryCommunity,
		Summary:    "something nice",
	}}

	assert.NoError(t, validateBatch(articles, 100, 1048576))
}

func TestValidateBatch_TooManyArticles(t *testing.T) {
	articles := make([]domain.EnrichedArticle, 101)

	err := validateBatch(articles, 100, 1048576)

	var appErr *apperrors.AppContextError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeCapacity, appErr.Code)
}

func TestValidateBatch_PayloadTooLarge(t *testing.T) {
	articles := []domain.EnrichedArticle{{
		RawArticle: domain.RawArticle{
			Title:       "A Perfectly Fine Headline",
			Link:        "https://x/1",
			Description: strings.Repeat("x", 4096),
		},
		Category: domain.CategoryCommunity,
		Summary:  "something nice",
	}}

	err := validateBatch(articles, 100, 1024)

	var appErr *apperrors.AppContextError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeCapacity, appErr.Code)
}

func TestUpsertArticleSQL_PreservesEngagementCounters(t *testing.T) {
	// Re-ingesting a known link refreshes content only. Counter columns must
	// never appear in the update set or accumulated engagement would reset.
	idx := strings.Index(upsertArticleSQL, "DO UPDATE SET")
	require.Greater(t, idx, 0)
	updateSet := upsertArticleSQL[idx:]

	counters := []string{
		"views", "saves", "shares", "shares_by_platform",
		"trending_score", "last_viewed_at", "last_shared_at",
	}
	for _, column := range counters {
		assert.NotContains(t, updateSet, column)
	}

	content := []string{
		"title", "summary", "category", "source",
		"published_original", "batch_id", "published_at", "expires_at", "is_active",
	}
	for _, column := range content {
		assert.Contains(t, updateSet, column+" = ")
	}
}

func TestBatchSnapshot_IngestTimeState(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	expires := now.Add(48 * time.Hour)
	a := domain.EnrichedArticle{
		RawArticle: domain.RawArticle{
			Title:       "A Perfectly Fine Headline",
			Link:        "https://x/1",
			SourceName:  "x",
			PublishedAt: now.Add(-time.Hour),
		},
		Category: domain.CategoryScience,
		Summary:  "something nice",
	}

	snap := batchSnapshot(strings.Repeat("ab", 16), a, "batch-1", now, expires)

	assert.Equal(t, "batch-1", snap.BatchID)
	assert.Equal(t, domain.CategoryScience, snap.Category)
	assert.Equal(t, "https://x/1", snap.UniqueID)
	assert.True(t, snap.IsActive)
	assert.Equal(t, now, snap.PublishedAt)
	assert.Equal(t, expires, snap.ExpiresAt)
	assert.Zero(t, snap.Views)
	assert.Zero(t, snap.Saves)
	assert.Zero(t, snap.Shares)
	assert.Zero(t, snap.TrendingScore)
}

func TestBookmarks_CacheHitSkipsDatabase(t *testing.T) {
	fc := newFakeCache()
	want := domain.UserBookmarks{UserID: "user-1", ArticleIDs: []string{"a", "b"}}
	data, err := json.Marshal(want)
	require.NoError(t, err)
	fc.values[bookmarkCacheKey("user-1")] = data

	// nil pool: a cache hit must answer without touching the database.
	s := New(nil, fc, testConfig(), nil)

	got, err := s.Bookmarks(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want.ArticleIDs, got.ArticleIDs)
}

func TestInvalidateBookmarkCache_DropsTheReadKey(t *testing.T) {
	fc := newFakeCache()
	fc.values[bookmarkCacheKey("user-1")] = []byte(`{}`)
	s := New(nil, fc, testConfig(), nil)

	s.InvalidateBookmarkCache(context.Background(), "user-1")

	_, hit := fc.values[bookmarkCacheKey("user-1")]
	assert.False(t, hit)
}

func TestListCacheKey_IgnoresLimitAndCursor(t *testing.T) {
	s := New(nil, newFakeCache(), testConfig(), nil)

	a := s.listCacheKey(ArticleQuery{Category: domain.CategoryAnimals, Limit: 10, OrderBy: OrderViews})
	b := s.listCacheKey(ArticleQuery{Category: domain.CategoryAnimals, Limit: 50, OrderBy: OrderViews, Cursor: "abc"})
	c := s.listCacheKey(ArticleQuery{Category: domain.CategoryScience, Limit: 10, OrderBy: OrderViews})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestInvalidateListCaches_CoversCategoryAllAndTrending(t *testing.T) {
	fc := newFakeCache()
	s := New(nil, fc, testConfig(), nil)

	s.invalidateListCaches(context.Background(), map[domain.Category]bool{domain.CategoryAnimals: true})

	assert.Contains(t, fc.deleted, "goodnews:trending")
	for _, order := range []string{OrderPublishedAt, OrderTrendingScore, OrderViews} {
		assert.Contains(t, fc.deleted, "goodnews:articles:ANIMALS:"+order)
		assert.Contains(t, fc.deleted, "goodnews:articles::"+order)
	}
}
