// ABOUTME: Retention sweeper deleting expired articles in fixed-size pages
// ABOUTME: Runs on a ticker alongside ingestion; deletes are page-bounded so locks stay short
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// retentionStore is the persistence surface the sweeper needs.
type retentionStore interface {
	DeleteExpiredPage(ctx context.Context, cutoff time.Time, pageSize int) (int, error)
}

// Sweeper removes articles whose retention window has passed. Paged deletes
// keep each transaction small; a sweep loops until a page comes back empty.
type Sweeper struct {
	store    retentionStore
	interval time.Duration
	pageSize int
	logger   *slog.Logger

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a sweeper with the configured interval and page size.
func NewSweeper(store retentionStore, interval time.Duration, pageSize int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		pageSize: pageSize,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SweepOnce deletes expired articles page by page until none remain and
// returns the total number deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC()
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := s.store.DeleteExpiredPage(ctx, cutoff, s.pageSize)
		if err != nil {
			return total, err
		}
		total += deleted

		if deleted < s.pageSize {
			break
		}
	}

	if total > 0 {
		s.logger.InfoContext(ctx, "retention sweep completed", "deleted", total)
	}
	return total, nil
}

// Start runs sweeps on the configured interval until Stop is called or the
// context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil {
					s.logger.Error("retention sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)

		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}
	})
}
