// ABOUTME: Engagement tracking: views, shares, and bookmark toggles with trending deltas
// ABOUTME: Every mutation is an atomic counter update followed by explicit cache invalidation
package engagement

import (
	"context"
	"log/slog"
	"sync"

	"goodnews/config"
	"goodnews/domain"
	apperrors "goodnews/utils/errors"
)

const engagementLayer = "engagement"

// articleStore is the persistence surface the tracker needs. *store.Store
// satisfies it; tests substitute a fake.
type articleStore interface {
	ActiveArticle(ctx context.Context, id string) (*domain.StoredArticle, error)
	Bookmarks(ctx context.Context, userID string) (domain.UserBookmarks, error)
	FlipBookmark(ctx context.Context, userID, articleID string, add bool, saveWeight int) (domain.Category, error)
	IncrementView(ctx context.Context, articleID string, viewWeight int) (domain.Category, bool, error)
	IncrementShare(ctx context.Context, articleID, platform string, shareWeight int) (domain.Category, bool, error)
	InvalidateEngagementCaches(ctx context.Context, category domain.Category)
	InvalidateBookmarkCache(ctx context.Context, userID string)
}

// Tracker applies engagement events. The trending score is only ever moved
// by the configured per-event weights, so it always equals the weighted sum
// of recorded events.
type Tracker struct {
	store   articleStore
	weights config.EngagementConfig
	logger  *slog.Logger
}

// New creates a tracker with config-driven event weights.
func New(store articleStore, weights config.EngagementConfig, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		weights: weights,
		logger:  logger,
	}
}

// TrackView records one view on an active article.
func (t *Tracker) TrackView(ctx context.Context, articleID string) error {
	if !domain.ValidArticleID(articleID) {
		return t.invalidID(articleID, "TrackView")
	}

	category, found, err := t.store.IncrementView(ctx, articleID, t.weights.ViewWeight)
	if err != nil {
		return err
	}
	if !found {
		return t.notFound(articleID, "TrackView")
	}

	t.store.InvalidateEngagementCaches(ctx, category)
	t.logger.DebugContext(ctx, "view tracked", "article_id", articleID)

	return nil
}

// TrackShare records one share on an active article. Unknown platforms are
// bucketed, never rejected.
func (t *Tracker) TrackShare(ctx context.Context, articleID, platform string) error {
	if !domain.ValidArticleID(articleID) {
		return t.invalidID(articleID, "TrackShare")
	}

	normalized := domain.NormalizePlatform(platform)

	category, found, err := t.store.IncrementShare(ctx, articleID, normalized, t.weights.ShareWeight)
	if err != nil {
		return err
	}
	if !found {
		return t.notFound(articleID, "TrackShare")
	}

	t.store.InvalidateEngagementCaches(ctx, category)
	t.logger.DebugContext(ctx, "share tracked", "article_id", articleID, "platform", normalized)

	return nil
}

// ToggleBookmark flips the user's bookmark on the article and returns the new
// state: true when the article is now bookmarked. The saves counter and the
// trending score move by the save weight in the same direction.
func (t *Tracker) ToggleBookmark(ctx context.Context, userID, articleID string) (bool, error) {
	if !domain.ValidArticleID(articleID) {
		return false, t.invalidID(articleID, "ToggleBookmark")
	}

	var (
		wg        sync.WaitGroup
		article   *domain.StoredArticle
		bookmarks domain.UserBookmarks
		artErr    error
		bmErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		article, artErr = t.store.ActiveArticle(ctx, articleID)
	}()
	go func() {
		defer wg.Done()
		bookmarks, bmErr = t.store.Bookmarks(ctx, userID)
	}()
	wg.Wait()

	if artErr != nil {
		return false, artErr
	}
	if bmErr != nil {
		return false, bmErr
	}
	if article == nil {
		return false, t.notFound(articleID, "ToggleBookmark")
	}

	add := !bookmarks.Contains(articleID)

	category, err := t.store.FlipBookmark(ctx, userID, articleID, add, t.weights.SaveWeight)
	if err != nil {
		return false, err
	}

	t.store.InvalidateEngagementCaches(ctx, category)
	t.store.InvalidateBookmarkCache(ctx, userID)

	t.logger.InfoContext(ctx, "bookmark toggled",
		"article_id", articleID,
		"bookmarked", add)

	return add, nil
}

func (t *Tracker) invalidID(articleID, operation string) error {
	return apperrors.NewValidationError(
		"invalid article id", engagementLayer, "tracker", operation,
		map[string]interface{}{"article_id": articleID})
}

func (t *Tracker) notFound(articleID, operation string) error {
	return apperrors.NewNotFoundError(
		"article not found", engagementLayer, "tracker", operation,
		map[string]interface{}{"article_id": articleID})
}
