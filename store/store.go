// ABOUTME: Postgres-backed article store: batch upsert, list reads, engagement counters
// ABOUTME: Reads are cache-through; every write invalidates the affected cache keys
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"goodnews/cache"
	"goodnews/config"
	"goodnews/domain"
	apperrors "goodnews/utils/errors"
)

const storeLayer = "store"

// queryCache is the cache surface the store needs. *cache.TTLCache satisfies
// it; tests substitute a fake.
type queryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// Store persists articles, bookmarks, batch metadata, and daily counters.
type Store struct {
	pool   *pgxpool.Pool
	cache  queryCache
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a store over an established pool and cache.
func New(pool *pgxpool.Pool, queryCache queryCache, cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		pool:   pool,
		cache:  queryCache,
		cfg:    cfg,
		logger: logger,
	}
}

// Ping checks database connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// validateBatch enforces the batch size and payload preconditions before any
// row is written. Violations are capacity errors, not partial writes.
func validateBatch(articles []domain.EnrichedArticle, maxBatchSize, maxPayloadBytes int) error {
	if len(articles) > maxBatchSize {
		return apperrors.NewCapacityError(
			fmt.Sprintf("batch of %d articles exceeds the limit of %d", len(articles), maxBatchSize),
			storeLayer, "store", "UpsertBatch",
			map[string]interface{}{"batch_size": len(articles), "max_batch_size": maxBatchSize})
	}

	payload, err := json.Marshal(articles)
	if err != nil {
		return apperrors.NewInternalError(
			"failed to measure batch payload", storeLayer, "store", "UpsertBatch", err, nil)
	}
	if len(payload) > maxPayloadBytes {
		return apperrors.NewCapacityError(
			fmt.Sprintf("batch payload of %d bytes exceeds the limit of %d", len(payload), maxPayloadBytes),
			storeLayer, "store", "UpsertBatch",
			map[string]interface{}{"payload_bytes": len(payload), "max_payload_bytes": maxPayloadBytes})
	}

	return nil
}

// upsertArticleSQL refreshes content fields on re-ingestion of a known link.
// Counter columns (views, saves, shares, shares_by_platform, trending_score)
// and engagement timestamps are deliberately absent from the update set so
// re-ingesting an article never resets accumulated engagement.
const upsertArticleSQL = `
	INSERT INTO articles (
		id, unique_id, title, summary, category, link, source,
		published_original, batch_id, published_at, expires_at, is_active
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		summary = EXCLUDED.summary,
		category = EXCLUDED.category,
		source = EXCLUDED.source,
		published_original = EXCLUDED.published_original,
		batch_id = EXCLUDED.batch_id,
		published_at = EXCLUDED.published_at,
		expires_at = EXCLUDED.expires_at,
		is_active = TRUE`

// batchSnapshot renders the ingest-time state of one article for the
// denormalized latest-batch summary. Counters start at zero; the summary is
// a cheap dashboard read, not the engagement source of truth.
func batchSnapshot(id string, a domain.EnrichedArticle, batchID string, now, expiresAt time.Time) domain.StoredArticle {
	return domain.StoredArticle{
		ID:                id,
		UniqueID:          a.Link,
		Title:             a.Title,
		Summary:           a.Summary,
		Category:          a.Category,
		Link:              a.Link,
		Source:            a.SourceName,
		PublishedOriginal: a.PublishedAt,
		BatchID:           batchID,
		PublishedAt:       now,
		ExpiresAt:         expiresAt,
		IsActive:          true,
		SharesByPlatform:  map[string]int{},
	}
}

// UpsertBatch writes one ingestion batch in a single transaction: per-article
// upserts that never touch engagement counters, the latest-batch summary row
// (article list JSON plus per-category counts), and the batch metadata
// record. Returns how many articles were new.
func (s *Store) UpsertBatch(ctx context.Context, meta domain.BatchMetadata, articles []domain.EnrichedArticle) (int, error) {
	if err := validateBatch(articles, s.cfg.Ingest.MaxBatchSize, s.cfg.Ingest.MaxPayloadBytes); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(articles))
	byID := make(map[string]domain.EnrichedArticle, len(articles))
	for _, a := range articles {
		id, err := domain.ArticleIDFromURL(a.Link)
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
		byID[id] = a
	}

	existing := make(map[string]bool, len(ids))
	rows, err := s.pool.Query(ctx, `SELECT id FROM articles WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, s.dbErr("failed to check existing articles", "UpsertBatch", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, s.dbErr("failed to scan existing article id", "UpsertBatch", err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, s.dbErr("failed to read existing articles", "UpsertBatch", err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.Ingest.ArticleTTL)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, s.dbErr("failed to begin transaction", "UpsertBatch", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	snapshot := make([]domain.StoredArticle, 0, len(ids))
	categories := make(map[domain.Category]bool)
	categoryCounts := make(map[string]int)
	for _, id := range ids {
		a := byID[id]
		categories[a.Category] = true
		categoryCounts[string(a.Category)]++
		snapshot = append(snapshot, batchSnapshot(id, a, meta.BatchID, now, expiresAt))

		if _, err := tx.Exec(ctx, upsertArticleSQL,
			id, a.Link, a.Title, a.Summary, string(a.Category), a.Link, a.SourceName,
			a.PublishedAt, meta.BatchID, now, expiresAt); err != nil {
			return 0, s.dbErr("failed to upsert article", "UpsertBatch", err)
		}
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return 0, apperrors.NewInternalError(
			"failed to encode batch snapshot", storeLayer, "store", "UpsertBatch", err, nil)
	}
	countsJSON, err := json.Marshal(categoryCounts)
	if err != nil {
		return 0, apperrors.NewInternalError(
			"failed to encode category counts", storeLayer, "store", "UpsertBatch", err, nil)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO latest_batch (singleton, batch_id, article_count, processed_at, instance_id, articles, category_counts)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (singleton) DO UPDATE SET
			batch_id = EXCLUDED.batch_id,
			article_count = EXCLUDED.article_count,
			processed_at = EXCLUDED.processed_at,
			instance_id = EXCLUDED.instance_id,
			articles = EXCLUDED.articles,
			category_counts = EXCLUDED.category_counts`,
		meta.BatchID, len(articles), now, meta.InstanceID, snapshotJSON, countsJSON); err != nil {
		return 0, s.dbErr("failed to update latest batch", "UpsertBatch", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO batch_metadata (batch_id, article_count, processed_at, instance_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id) DO NOTHING`,
		meta.BatchID, len(articles), now, meta.InstanceID); err != nil {
		return 0, s.dbErr("failed to record batch metadata", "UpsertBatch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, s.dbErr("failed to commit batch", "UpsertBatch", err)
	}

	newCount := len(byID) - len(existing)
	s.invalidateListCaches(ctx, categories)

	s.logger.InfoContext(ctx, "batch upserted",
		"batch_id", meta.BatchID,
		"articles", len(articles),
		"new", newCount)

	return newCount, nil
}

// ByCategory returns one page of active articles in the given category.
func (s *Store) ByCategory(ctx context.Context, q ArticleQuery) (Page, error) {
	return s.list(ctx, q)
}

// All returns one page of active articles across every category.
func (s *Store) All(ctx context.Context, q ArticleQuery) (Page, error) {
	q.Category = ""
	return s.list(ctx, q)
}

// list serves a page, going through the cache for first-page reads. The
// cached value is a superset page of the maximum configured size; smaller
// limits slice it. Cursor reads always hit the database.
func (s *Store) list(ctx context.Context, q ArticleQuery) (Page, error) {
	maxFetch := s.cfg.API.MaxArticlesPerCall + 1

	if q.Cursor == "" {
		key := s.listCacheKey(q)
		if data, hit := s.cache.Get(ctx, key); hit {
			var rows []domain.StoredArticle
			if err := json.Unmarshal(data, &rows); err == nil {
				return slicePage(rows, q.Limit, q.OrderBy), nil
			}
			s.cache.Invalidate(ctx, key)
		}

		rows, err := s.fetchList(ctx, q, maxFetch)
		if err != nil {
			return Page{}, err
		}

		if data, err := json.Marshal(rows); err == nil {
			s.cache.Set(ctx, key, data, s.cfg.Cache.ArticlesTTL)
		}
		return slicePage(rows, q.Limit, q.OrderBy), nil
	}

	rows, err := s.fetchList(ctx, q, q.Limit+1)
	if err != nil {
		return Page{}, err
	}
	return slicePage(rows, q.Limit, q.OrderBy), nil
}

func (s *Store) fetchList(ctx context.Context, q ArticleQuery, fetchLimit int) ([]domain.StoredArticle, error) {
	sql, args := buildListQuery(q, fetchLimit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.dbErr("failed to query articles", "list", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// Trending returns the top articles by trending score. The cache holds the
// configured maximum and smaller limits slice it.
func (s *Store) Trending(ctx context.Context, limit int) ([]domain.StoredArticle, error) {
	key := cache.QueryKey("trending")

	if data, hit := s.cache.Get(ctx, key); hit {
		var rows []domain.StoredArticle
		if err := json.Unmarshal(data, &rows); err == nil {
			if len(rows) > limit {
				rows = rows[:limit]
			}
			return rows, nil
		}
		s.cache.Invalidate(ctx, key)
	}

	q := ArticleQuery{OrderBy: OrderTrendingScore}
	rows, err := s.fetchList(ctx, q, s.cfg.API.TrendingLimit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rows); err == nil {
		s.cache.Set(ctx, key, data, s.cfg.Cache.TrendingTTL)
	}

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// LatestBatchArticles returns the denormalized summary of the most recent
// batch: its article list and metadata, in one row read. Used as the surface
// when a run fetches nothing new.
func (s *Store) LatestBatchArticles(ctx context.Context) ([]domain.StoredArticle, *domain.BatchMetadata, error) {
	var meta domain.BatchMetadata
	var articlesJSON, countsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT batch_id, article_count, processed_at, instance_id, articles, category_counts
		 FROM latest_batch WHERE singleton = 1`).
		Scan(&meta.BatchID, &meta.ArticleCount, &meta.ProcessedAt, &meta.InstanceID,
			&articlesJSON, &countsJSON)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, s.dbErr("failed to read latest batch", "LatestBatchArticles", err)
	}

	var articles []domain.StoredArticle
	if err := json.Unmarshal(articlesJSON, &articles); err != nil {
		return nil, nil, apperrors.NewInternalError(
			"failed to decode latest batch snapshot", storeLayer, "store", "LatestBatchArticles", err, nil)
	}
	if err := json.Unmarshal(countsJSON, &meta.CategoryCounts); err != nil {
		return nil, nil, apperrors.NewInternalError(
			"failed to decode latest batch category counts", storeLayer, "store", "LatestBatchArticles", err, nil)
	}

	return articles, &meta, nil
}

// ActiveArticle returns the article when it exists, is active, and has not
// expired; nil otherwise.
func (s *Store) ActiveArticle(ctx context.Context, id string) (*domain.StoredArticle, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+articleColumns+` FROM articles
		 WHERE id = $1 AND is_active AND expires_at > now()`, id)

	a, err := scanArticle(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.dbErr("failed to read article", "ActiveArticle", err)
	}
	return &a, nil
}

// ArticlesByIDs returns the active articles among the given IDs, in the
// order the IDs were given. Missing or expired IDs are silently skipped.
func (s *Store) ArticlesByIDs(ctx context.Context, ids []string) ([]domain.StoredArticle, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+articleColumns+` FROM articles
		 WHERE id = ANY($1) AND is_active AND expires_at > now()`, ids)
	if err != nil {
		return nil, s.dbErr("failed to query articles by id", "ArticlesByIDs", err)
	}
	defer rows.Close()

	fetched, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.StoredArticle, len(fetched))
	for _, a := range fetched {
		byID[a.ID] = a
	}

	ordered := make([]domain.StoredArticle, 0, len(fetched))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// Bookmarks returns the user's bookmark set, empty when none exists yet.
// Reads go through the cache; every bookmark flip invalidates the key.
func (s *Store) Bookmarks(ctx context.Context, userID string) (domain.UserBookmarks, error) {
	key := bookmarkCacheKey(userID)
	if data, hit := s.cache.Get(ctx, key); hit {
		var cached domain.UserBookmarks
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.cache.Invalidate(ctx, key)
	}

	bookmarks := domain.UserBookmarks{UserID: userID}

	err := s.pool.QueryRow(ctx,
		`SELECT article_ids, updated_at FROM user_bookmarks WHERE user_id = $1`, userID).
		Scan(&bookmarks.ArticleIDs, &bookmarks.UpdatedAt)
	if err != nil && err != pgx.ErrNoRows {
		return bookmarks, s.dbErr("failed to read bookmarks", "Bookmarks", err)
	}

	if data, err := json.Marshal(bookmarks); err == nil {
		s.cache.Set(ctx, key, data, s.cfg.Cache.ArticlesTTL)
	}
	return bookmarks, nil
}

// FlipBookmark adds or removes one bookmark and applies the matching saves
// and trending deltas in the same transaction. Returns the article category
// for cache invalidation.
func (s *Store) FlipBookmark(ctx context.Context, userID, articleID string, add bool, saveWeight int) (domain.Category, error) {
	delta := saveWeight
	saveDelta := 1
	if !add {
		delta = -saveWeight
		saveDelta = -1
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", s.dbErr("failed to begin transaction", "FlipBookmark", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var category domain.Category
	err = tx.QueryRow(ctx, `
		UPDATE articles
		SET saves = saves + $2, trending_score = trending_score + $3
		WHERE id = $1
		RETURNING category`,
		articleID, saveDelta, delta).Scan(&category)
	if err == pgx.ErrNoRows {
		return "", apperrors.NewNotFoundError(
			"article not found", storeLayer, "store", "FlipBookmark",
			map[string]interface{}{"article_id": articleID})
	}
	if err != nil {
		return "", s.dbErr("failed to update article saves", "FlipBookmark", err)
	}

	if add {
		_, err = tx.Exec(ctx, `
			INSERT INTO user_bookmarks (user_id, article_ids, updated_at)
			VALUES ($1, ARRAY[$2], now())
			ON CONFLICT (user_id) DO UPDATE SET
				article_ids = array_append(user_bookmarks.article_ids, $2),
				updated_at = now()`,
			userID, articleID)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE user_bookmarks
			SET article_ids = array_remove(article_ids, $2), updated_at = now()
			WHERE user_id = $1`,
			userID, articleID)
	}
	if err != nil {
		return "", s.dbErr("failed to update bookmark set", "FlipBookmark", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", s.dbErr("failed to commit bookmark flip", "FlipBookmark", err)
	}

	return category, nil
}

// IncrementView bumps the view counter and the trending score atomically.
// Returns the article category and whether the article was found active.
func (s *Store) IncrementView(ctx context.Context, articleID string, viewWeight int) (domain.Category, bool, error) {
	var category domain.Category
	err := s.pool.QueryRow(ctx, `
		UPDATE articles
		SET views = views + 1, trending_score = trending_score + $2, last_viewed_at = now()
		WHERE id = $1 AND is_active AND expires_at > now()
		RETURNING category`,
		articleID, viewWeight).Scan(&category)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.dbErr("failed to increment views", "IncrementView", err)
	}
	return category, true, nil
}

// IncrementShare bumps the total and per-platform share counters and the
// trending score atomically. The platform is already normalized.
func (s *Store) IncrementShare(ctx context.Context, articleID, platform string, shareWeight int) (domain.Category, bool, error) {
	var category domain.Category
	err := s.pool.QueryRow(ctx, `
		UPDATE articles
		SET shares = shares + 1,
		    shares_by_platform = jsonb_set(
		        COALESCE(shares_by_platform, '{}'::jsonb),
		        ARRAY[$2],
		        to_jsonb(COALESCE((shares_by_platform->>$2)::int, 0) + 1)),
		    trending_score = trending_score + $3,
		    last_shared_at = now()
		WHERE id = $1 AND is_active AND expires_at > now()
		RETURNING category`,
		articleID, platform, shareWeight).Scan(&category)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.dbErr("failed to increment shares", "IncrementShare", err)
	}
	return category, true, nil
}

// AddDailyCount adds n processed articles to the day's quota counter.
// The day key is a UTC date string, YYYY-MM-DD.
func (s *Store) AddDailyCount(ctx context.Context, day string, n int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_counters (day, count) VALUES ($1, $2)
		ON CONFLICT (day) DO UPDATE SET count = daily_counters.count + $2`,
		day, n)
	if err != nil {
		return s.dbErr("failed to add daily count", "AddDailyCount", err)
	}
	return nil
}

// DailyCount returns the day's processed-article count, zero when unseen.
func (s *Store) DailyCount(ctx context.Context, day string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM daily_counters WHERE day = $1`, day).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, s.dbErr("failed to read daily count", "DailyCount", err)
	}
	return count, nil
}

// DeleteExpiredPage removes up to pageSize articles that expired before the
// cutoff and returns how many were deleted. Callers loop until zero.
func (s *Store) DeleteExpiredPage(ctx context.Context, cutoff time.Time, pageSize int) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM articles
		WHERE id IN (
			SELECT id FROM articles WHERE expires_at <= $1 LIMIT $2
		)`,
		cutoff, pageSize)
	if err != nil {
		return 0, s.dbErr("failed to delete expired articles", "DeleteExpiredPage", err)
	}
	return int(tag.RowsAffected()), nil
}

// InvalidateEngagementCaches drops the list and trending keys affected by an
// engagement mutation on an article of the given category.
func (s *Store) InvalidateEngagementCaches(ctx context.Context, category domain.Category) {
	s.invalidateListCaches(ctx, map[domain.Category]bool{category: true})
}

// InvalidateBookmarkCache drops the user's cached bookmark set.
func (s *Store) InvalidateBookmarkCache(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, bookmarkCacheKey(userID))
}

// bookmarkCacheKey is shared by the bookmark read and its invalidation.
func bookmarkCacheKey(userID string) string {
	return cache.QueryKey("bookmarks", userID)
}

// listCacheKey identifies the cached first-page superset for a query shape.
// Limit is deliberately excluded: the superset is sliced per request.
func (s *Store) listCacheKey(q ArticleQuery) string {
	column, _ := resolveOrder(q.OrderBy)
	return cache.QueryKey("articles", string(q.Category), column)
}

// invalidateListCaches drops every list key touching the given categories,
// the all-categories keys, and the trending key.
func (s *Store) invalidateListCaches(ctx context.Context, categories map[domain.Category]bool) {
	keys := []string{cache.QueryKey("trending")}
	orders := []string{OrderPublishedAt, OrderTrendingScore, OrderViews}

	for _, order := range orders {
		keys = append(keys, cache.QueryKey("articles", "", order))
		for category := range categories {
			keys = append(keys, cache.QueryKey("articles", string(category), order))
		}
	}

	s.cache.Invalidate(ctx, keys...)
}

func (s *Store) dbErr(message, operation string, err error) error {
	return apperrors.NewDatabaseError(message, storeLayer, "store", operation, err, nil)
}

// scanArticles reads the standard article column set from a row stream.
func scanArticles(rows pgx.Rows) ([]domain.StoredArticle, error) {
	articles := make([]domain.StoredArticle, 0, 16)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError(
				"failed to scan article row", storeLayer, "store", "scanArticles", err, nil)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError(
			"failed to read article rows", storeLayer, "store", "scanArticles", err, nil)
	}
	return articles, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (domain.StoredArticle, error) {
	var a domain.StoredArticle
	err := row.Scan(
		&a.ID, &a.UniqueID, &a.Title, &a.Summary, &a.Category, &a.Link, &a.Source,
		&a.PublishedOriginal, &a.BatchID, &a.PublishedAt, &a.ExpiresAt, &a.IsActive,
		&a.Views, &a.Saves, &a.Shares, &a.SharesByPlatform, &a.TrendingScore,
		&a.LastViewedAt, &a.LastSharedAt)
	return a, err
}
