// ABOUTME: Echo handlers for article reads and engagement actions
// ABOUTME: Clamps limits, validates categories, and passes opaque cursors through
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"goodnews/config"
	"goodnews/domain"
	"goodnews/middleware"
	"goodnews/store"
	apperrors "goodnews/utils/errors"
)

// defaultListLimit applies when the request does not specify a limit.
const defaultListLimit = 20

// articleReader is the read surface the handler needs. *store.Store
// satisfies it; tests substitute a fake.
type articleReader interface {
	ByCategory(ctx context.Context, q store.ArticleQuery) (store.Page, error)
	All(ctx context.Context, q store.ArticleQuery) (store.Page, error)
	Trending(ctx context.Context, limit int) ([]domain.StoredArticle, error)
	Bookmarks(ctx context.Context, userID string) (domain.UserBookmarks, error)
	ArticlesByIDs(ctx context.Context, ids []string) ([]domain.StoredArticle, error)
}

// engagementTracker is the mutation surface the handler needs.
type engagementTracker interface {
	TrackView(ctx context.Context, articleID string) error
	TrackShare(ctx context.Context, articleID, platform string) error
	ToggleBookmark(ctx context.Context, userID, articleID string) (bool, error)
}

// ArticleHandler serves the article read and engagement routes.
type ArticleHandler struct {
	reader  articleReader
	tracker engagementTracker
	limits  config.APIConfig
}

func NewArticleHandler(reader articleReader, tracker engagementTracker, limits config.APIConfig) *ArticleHandler {
	return &ArticleHandler{
		reader:  reader,
		tracker: tracker,
		limits:  limits,
	}
}

// List handles GET /articles?category=&limit=&order_by=&cursor=.
func (h *ArticleHandler) List(c echo.Context) error {
	q := store.ArticleQuery{
		Limit:   clampLimit(c.QueryParam("limit"), defaultListLimit, h.limits.MaxArticlesPerCall),
		OrderBy: c.QueryParam("order_by"),
		Cursor:  c.QueryParam("cursor"),
	}

	rawCategory := c.QueryParam("category")
	if rawCategory != "" {
		category := domain.Category(strings.ToUpper(rawCategory))
		if !domain.ValidCategory(category) {
			return apperrors.NewValidationError(
				"unknown category", "handler", "articles", "List",
				map[string]interface{}{"category": rawCategory})
		}
		q.Category = category
	}

	var page store.Page
	var err error
	if q.Category != "" {
		page, err = h.reader.ByCategory(c.Request().Context(), q)
	} else {
		page, err = h.reader.All(c.Request().Context(), q)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, page)
}

// Trending handles GET /articles/trending?limit=.
func (h *ArticleHandler) Trending(c echo.Context) error {
	limit := clampLimit(c.QueryParam("limit"), h.limits.TrendingLimit, h.limits.TrendingLimit)

	articles, err := h.reader.Trending(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"articles": articles,
	})
}

// View handles POST /articles/:id/view.
func (h *ArticleHandler) View(c echo.Context) error {
	if err := h.tracker.TrackView(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Share handles POST /articles/:id/share?platform=.
func (h *ArticleHandler) Share(c echo.Context) error {
	if err := h.tracker.TrackShare(c.Request().Context(), c.Param("id"), c.QueryParam("platform")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// ToggleBookmark handles POST /articles/:id/bookmark. Auth is enforced by
// middleware; the user ID is always present here.
func (h *ArticleHandler) ToggleBookmark(c echo.Context) error {
	bookmarked, err := h.tracker.ToggleBookmark(
		c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"bookmarked": bookmarked})
}

// Bookmarks handles GET /bookmarks?limit=. Returns the user's most recently
// bookmarked articles, newest first.
func (h *ArticleHandler) Bookmarks(c echo.Context) error {
	ctx := c.Request().Context()
	limit := clampLimit(c.QueryParam("limit"), h.limits.BookmarkLimit, h.limits.BookmarkLimit)

	bookmarks, err := h.reader.Bookmarks(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	ids := recentFirst(bookmarks.ArticleIDs, limit)

	articles, err := h.reader.ArticlesByIDs(ctx, ids)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
	})
}

// recentFirst reverses the insertion-ordered bookmark list and caps it.
func recentFirst(ids []string, limit int) []string {
	out := make([]string, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, ids[i])
	}
	return out
}

// clampLimit parses a limit query parameter, applying the default when it is
// missing or unparseable and the maximum when it is out of range.
func clampLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
