// ABOUTME: Article list query shapes: ordering allow-list, keyset pagination, page slicing
// ABOUTME: Pure query-building helpers kept separate from pool execution for testability
package store

import (
	"fmt"
	"strconv"
	"time"

	"goodnews/domain"
)

// Supported order_by values. Anything else falls back to OrderPublishedAt.
const (
	OrderPublishedAt   = "published_at"
	OrderTrendingScore = "trending_score"
	OrderViews         = "views"
)

// orderCasts maps each allowed sort column to the SQL cast applied to the
// cursor value. The map doubles as the column allow-list: order_by is never
// interpolated without passing through it.
var orderCasts = map[string]string{
	OrderPublishedAt:   "timestamptz",
	OrderTrendingScore: "integer",
	OrderViews:         "integer",
}

// ArticleQuery describes one list read. Limit is already clamped by the
// caller; Cursor is the opaque token from the previous page, possibly empty.
type ArticleQuery struct {
	Category domain.Category
	Limit    int
	OrderBy  string
	Cursor   string
}

// Page is one page of a list read.
type Page struct {
	Articles   []domain.StoredArticle `json:"articles"`
	HasMore    bool                   `json:"hasMore"`
	NextCursor string                 `json:"nextCursor,omitempty"`
}

// resolveOrder returns the sort column and cursor cast for an order_by value,
// defaulting to published_at for anything outside the allow-list.
func resolveOrder(orderBy string) (column, cast string) {
	if c, ok := orderCasts[orderBy]; ok {
		return orderBy, c
	}
	return OrderPublishedAt, orderCasts[OrderPublishedAt]
}

const articleColumns = `id, unique_id, title, summary, category, link, source,
	published_original, batch_id, published_at, expires_at, is_active,
	views, saves, shares, shares_by_platform, trending_score,
	last_viewed_at, last_shared_at`

// buildListQuery assembles the keyset-paginated list query. An invalid or
// missing cursor yields the first page. fetchLimit is the raw row count to
// request (callers pass limit+1 to detect a following page).
func buildListQuery(q ArticleQuery, fetchLimit int) (string, []interface{}) {
	column, cast := resolveOrder(q.OrderBy)

	sql := "SELECT " + articleColumns + " FROM articles WHERE is_active AND expires_at > now()"
	args := make([]interface{}, 0, 4)

	if q.Category != "" {
		args = append(args, string(q.Category))
		sql += fmt.Sprintf(" AND category = $%d", len(args))
	}

	if cursor, ok := domain.DecodeCursor(q.Cursor); ok && castableCursorValue(cursor.LastValue, cast) {
		args = append(args, cursor.LastValue, cursor.LastID)
		sql += fmt.Sprintf(" AND (%s, id) < ($%d::%s, $%d)", column, len(args)-1, cast, len(args))
	}

	args = append(args, fetchLimit)
	sql += fmt.Sprintf(" ORDER BY %s DESC, id DESC LIMIT $%d", column, len(args))

	return sql, args
}

// castableCursorValue reports whether a cursor value will survive the SQL
// cast for the resolved sort column. A value that would fail the cast (a
// forged or cross-order token) degrades to the first page instead of
// erroring inside Postgres.
func castableCursorValue(value, cast string) bool {
	switch cast {
	case "integer":
		_, err := strconv.Atoi(value)
		return err == nil
	default:
		_, err := time.Parse(time.RFC3339Nano, value)
		return err == nil
	}
}

// sortValue renders an article's value of the sort column as cursor text.
func sortValue(a domain.StoredArticle, column string) string {
	switch column {
	case OrderTrendingScore:
		return strconv.Itoa(a.TrendingScore)
	case OrderViews:
		return strconv.Itoa(a.Views)
	default:
		return a.PublishedAt.UTC().Format(time.RFC3339Nano)
	}
}

// slicePage turns the fetched rows (up to limit+1 of them) into a page,
// deriving hasMore and the next cursor from the overflow row.
func slicePage(rows []domain.StoredArticle, limit int, orderBy string) Page {
	column, _ := resolveOrder(orderBy)

	page := Page{Articles: rows}
	if len(rows) > limit {
		page.Articles = rows[:limit]
		page.HasMore = true
	}

	if page.HasMore && len(page.Articles) > 0 {
		last := page.Articles[len(page.Articles)-1]
		page.NextCursor = domain.Cursor{
			LastValue: sortValue(last, column),
			LastID:    last.ID,
		}.Encode()
	}

	return page
}
