// ABOUTME: This file implements exponential backoff retry mechanism with jitter
// ABOUTME: Provides resilient error handling for provider and classifier calls
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	apperrors "goodnews/utils/errors"
)

type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

type ErrorClassifier func(error) bool

type Retrier struct {
	config      RetryConfig
	isRetryable ErrorClassifier
	logger      *slog.Logger
}

func NewRetrier(config RetryConfig, classifier ErrorClassifier, logger *slog.Logger) *Retrier {
	if classifier == nil {
		classifier = apperrors.IsRetryable
	}
	return &Retrier{
		config:      config,
		isRetryable: classifier,
		logger:      logger,
	}
}

// Do runs the operation until it succeeds, attempts are exhausted, the error
// is classified non-retryable, or the context is cancelled. The final error
// is always returned to the caller, never swallowed. Upstream rate-limit
// errors stop the loop immediately; retrying into a throttle is pointless.
func (r *Retrier) Do(ctx context.Context, operation func() error) error {
	start := time.Now()
	var lastErr error
	var totalWaitTime time.Duration

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		attemptStart := time.Now()
		lastErr = operation()
		attemptDuration := time.Since(attemptStart)

		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("operation succeeded after retry",
					"attempt", attempt,
					"attempt_duration_ms", attemptDuration.Milliseconds(),
					"total_duration_ms", time.Since(start).Milliseconds(),
					"total_wait_time_ms", totalWaitTime.Milliseconds())
			}
			return nil
		}

		if apperrors.IsRateLimited(lastErr) {
			r.logger.Warn("operation rate limited, not retrying",
				"attempt", attempt,
				"error", lastErr)
			break
		}

		isRetryable := r.isRetryable != nil && r.isRetryable(lastErr)
		r.logger.Warn("operation attempt failed",
			"attempt", attempt,
			"error", lastErr,
			"retryable", isRetryable,
			"attempt_duration_ms", attemptDuration.Milliseconds())

		if attempt == r.config.MaxAttempts || !isRetryable {
			r.logger.Error("operation failed permanently",
				"attempt", attempt,
				"error", lastErr,
				"retryable", isRetryable,
				"total_duration_ms", time.Since(start).Milliseconds(),
				"total_wait_time_ms", totalWaitTime.Milliseconds())
			break
		}

		delay := r.calculateDelay(attempt)
		totalWaitTime += delay

		r.logger.Info("retry backoff wait",
			"attempt", attempt,
			"retry_delay_ms", delay.Milliseconds(),
			"total_wait_time_ms", totalWaitTime.Milliseconds())

		select {
		case <-ctx.Done():
			r.logger.Error("retry cancelled by context",
				"attempt", attempt,
				"context_error", ctx.Err(),
				"total_duration_ms", time.Since(start).Milliseconds())
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
			// Continue to the next attempt
		}
	}

	return fmt.Errorf("operation failed after %d attempts (total: %dms, wait: %dms): %w",
		r.config.MaxAttempts, time.Since(start).Milliseconds(), totalWaitTime.Milliseconds(), lastErr)
}

func (r *Retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	// Additive jitter, up to JitterFactor of the delay, spreads out
	// synchronized retries from concurrent callers
	delay *= 1.0 + rand.Float64()*r.config.JitterFactor

	return time.Duration(delay)
}
