// ABOUTME: This file implements per-service sliding-window rate limiting
// ABOUTME: Tracks call timestamps per service and returns the wait until the window frees up
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"goodnews/config"
)

const (
	// window is the trailing interval calls are counted over.
	window = 60 * time.Second
	// skewBuffer absorbs clock skew between instances sharing an upstream quota.
	skewBuffer = 5 * time.Second
	// minWait is the smallest positive wait ever returned.
	minWait = 100 * time.Millisecond
	// maxConsecutiveErrors is the fail-open threshold: after this many
	// internal faults in a row the limiter disables itself.
	maxConsecutiveErrors = 5
)

// serviceWindow tracks call timestamps for a single upstream service.
type serviceWindow struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// ServiceLimiter throttles outbound calls per upstream service name using a
// sliding one-minute window. It is best-effort and per-instance; the
// authoritative quota lives with the upstream provider.
type ServiceLimiter struct {
	callsPerMinute int
	sweepInterval  time.Duration
	windows        map[string]*serviceWindow
	mu             sync.RWMutex
	logger         *slog.Logger

	consecutiveErrors int
	disabled          bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewServiceLimiter creates a rate limiter from configuration.
func NewServiceLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *ServiceLimiter {
	return &ServiceLimiter{
		callsPerMinute: cfg.CallsPerMinute,
		sweepInterval:  cfg.SweepInterval,
		windows:        make(map[string]*serviceWindow),
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
}

// Admit returns how long the caller must wait before making a call to the
// given service, and registers the call. Zero means proceed immediately.
// The limiter fails open: after repeated internal faults it stops blocking
// traffic entirely rather than throttling on its own bug.
func (l *ServiceLimiter) Admit(service string) (wait time.Duration) {
	l.mu.RLock()
	disabled := l.disabled
	l.mu.RUnlock()
	if disabled {
		return 0
	}

	defer func() {
		if r := recover(); r != nil {
			l.recordInternalError(service, r)
			wait = 0
		}
	}()

	wait = l.admit(service, time.Now())
	l.resetErrorStreak()
	return wait
}

func (l *ServiceLimiter) admit(service string, now time.Time) time.Duration {
	w := l.getWindow(service)

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-(window + skewBuffer))

	// Drop timestamps that have left the window
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	if len(w.timestamps) >= l.callsPerMinute {
		oldest := w.timestamps[0]
		wait := oldest.Add(window + skewBuffer).Sub(now)
		if wait < minWait {
			wait = minWait
		}

		l.logger.Warn("rate limit reached",
			"service", service,
			"in_window", len(w.timestamps),
			"limit", l.callsPerMinute,
			"wait_ms", wait.Milliseconds())
		return wait
	}

	w.timestamps = append(w.timestamps, now)

	// Hard cap on slice growth regardless of window math
	if maxLen := l.callsPerMinute * 10; len(w.timestamps) > maxLen {
		w.timestamps = w.timestamps[len(w.timestamps)-maxLen:]
	}

	return 0
}

// Wait admits and then sleeps out any required wait, honoring cancellation.
func (l *ServiceLimiter) Wait(ctx context.Context, service string) error {
	for {
		wait := l.Admit(service)
		if wait <= 0 {
			return nil
		}

		select {
		case <-time.After(wait):
			// Re-check the window after sleeping
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Start launches the periodic sweep that bounds per-service memory.
func (l *ServiceLimiter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.sweep(time.Now())
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine. Safe to call more than once.
func (l *ServiceLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *ServiceLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-(window + skewBuffer))
	for service, w := range l.windows {
		w.mu.Lock()
		kept := w.timestamps[:0]
		for _, ts := range w.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		w.timestamps = kept
		empty := len(w.timestamps) == 0
		w.mu.Unlock()

		if empty {
			delete(l.windows, service)
		}
	}
}

func (l *ServiceLimiter) getWindow(service string) *serviceWindow {
	l.mu.RLock()
	w, exists := l.windows[service]
	l.mu.RUnlock()

	if exists {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if w, exists := l.windows[service]; exists {
		return w
	}

	w = &serviceWindow{}
	l.windows[service] = w
	return w
}

func (l *ServiceLimiter) recordInternalError(service string, cause interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutiveErrors++
	l.logger.Error("rate limiter internal error",
		"service", service,
		"error", cause,
		"consecutive_errors", l.consecutiveErrors)

	if l.consecutiveErrors >= maxConsecutiveErrors && !l.disabled {
		l.disabled = true
		l.logger.Error("rate limiter disabled after repeated internal errors",
			"consecutive_errors", l.consecutiveErrors)
	}
}

func (l *ServiceLimiter) resetErrorStreak() {
	l.mu.Lock()
	if l.consecutiveErrors != 0 {
		l.consecutiveErrors = 0
	}
	l.mu.Unlock()
}
