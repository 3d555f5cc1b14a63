// ABOUTME: Classification strategy contract and the Ok/Degraded/Failed outcome type
// ABOUTME: Selects the AI strategy when configured and degrades to the heuristic on any failure
package classifier

import (
	"context"
	"log/slog"

	"goodnews/domain"
)

// OutcomeStatus distinguishes "fully succeeded", "succeeded via fallback",
// and "failed" so callers never rely on catch-and-continue.
type OutcomeStatus string

const (
	StatusOk       OutcomeStatus = "ok"
	StatusDegraded OutcomeStatus = "degraded"
	StatusFailed   OutcomeStatus = "failed"
)

// Outcome is the typed result of a classification pass.
type Outcome struct {
	Status   OutcomeStatus
	Articles []domain.EnrichedArticle
	Reason   string // set when Status is StatusDegraded
	Err      error  // set when Status is StatusFailed
}

// Strategy reduces a raw article batch to enriched good-news items.
type Strategy interface {
	Name() string
	Classify(ctx context.Context, raw []domain.RawArticle) ([]domain.EnrichedArticle, error)
}

// Selector runs the preferred strategy and degrades to the fallback on any
// failure. A strategy returning zero items is a legitimate empty result, not
// a fallback trigger.
type Selector struct {
	primary  Strategy // nil when AI credentials are not configured
	fallback Strategy
	logger   *slog.Logger
}

// NewSelector builds the strategy chain. primary may be nil.
func NewSelector(primary, fallback Strategy, logger *slog.Logger) *Selector {
	return &Selector{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Classify classifies the batch. The outcome is StatusOk when the primary
// strategy succeeds, StatusDegraded when the heuristic served instead
// (missing AI credentials or any AI failure), and StatusFailed only when no
// strategy produced a result.
func (s *Selector) Classify(ctx context.Context, raw []domain.RawArticle) Outcome {
	if len(raw) == 0 {
		return Outcome{Status: StatusOk}
	}

	if s.primary == nil {
		return s.runFallback(ctx, raw, "ai_not_configured")
	}

	articles, err := s.primary.Classify(ctx, raw)
	if err == nil {
		s.logger.InfoContext(ctx, "classification completed",
			"strategy", s.primary.Name(),
			"input", len(raw),
			"output", len(articles))
		return Outcome{Status: StatusOk, Articles: articles}
	}

	s.logger.Warn("primary classifier failed, degrading to fallback",
		"strategy", s.primary.Name(),
		"error", err)

	return s.runFallback(ctx, raw, "ai_failed")
}

func (s *Selector) runFallback(ctx context.Context, raw []domain.RawArticle, reason string) Outcome {
	articles, err := s.fallback.Classify(ctx, raw)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	s.logger.InfoContext(ctx, "classification completed",
		"strategy", s.fallback.Name(),
		"reason", reason,
		"input", len(raw),
		"output", len(articles))

	return Outcome{Status: StatusDegraded, Articles: articles, Reason: reason}
}
