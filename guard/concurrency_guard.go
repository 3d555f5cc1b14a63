// ABOUTME: This file implements per-caller sliding-window concurrency admission control
// ABOUTME: Protects authenticated quota from abuse while always admitting anonymous traffic
package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"goodnews/config"
)

// hardCap bounds a single caller's timestamp slice regardless of window math.
const hardCap = 100

// callerWindow tracks in-flight request timestamps for one caller.
type callerWindow struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// ConcurrencyGuard admits or denies requests per caller based on how many
// requests the caller has in the trailing window. State is per-instance and
// best-effort; the guard is an abuse brake, not a billing meter.
type ConcurrencyGuard struct {
	window        time.Duration
	maxConcurrent int
	sweepInterval time.Duration
	callers       map[string]*callerWindow
	mu            sync.RWMutex
	logger        *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewConcurrencyGuard creates a guard from configuration.
func NewConcurrencyGuard(cfg config.GuardConfig, logger *slog.Logger) *ConcurrencyGuard {
	return &ConcurrencyGuard{
		window:        cfg.Window,
		maxConcurrent: cfg.MaxConcurrent,
		sweepInterval: cfg.SweepInterval,
		callers:       make(map[string]*callerWindow),
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Admit reports whether the caller may proceed with the operation and, when
// admitted, registers the request in the caller's window. Anonymous callers
// are always admitted. The guard fails open on internal faults: its own bugs
// must never block traffic.
func (g *ConcurrencyGuard) Admit(callerID, operation string) (allowed bool) {
	if callerID == "" {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("concurrency guard internal error, admitting request",
				"caller_id", callerID,
				"operation", operation,
				"error", r)
			allowed = true
		}
	}()

	return g.admit(callerID, operation, time.Now())
}

func (g *ConcurrencyGuard) admit(callerID, operation string, now time.Time) bool {
	w := g.getCaller(callerID)

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-g.window)
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	if len(w.timestamps) >= g.maxConcurrent {
		g.logger.Warn("concurrent request limit reached",
			"caller_id", callerID,
			"operation", operation,
			"active", len(w.timestamps),
			"max", g.maxConcurrent)
		return false
	}

	w.timestamps = append(w.timestamps, now)

	if len(w.timestamps) > hardCap {
		w.timestamps = w.timestamps[len(w.timestamps)-hardCap:]
	}

	return true
}

// Window returns the trailing admission window, used as a retry-after hint.
func (g *ConcurrencyGuard) Window() time.Duration {
	return g.window
}

// Start launches the periodic sweep that purges expired timestamps and idle callers.
func (g *ConcurrencyGuard) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(g.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				g.sweep(time.Now())
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine. Safe to call more than once.
func (g *ConcurrencyGuard) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
}

func (g *ConcurrencyGuard) sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := now.Add(-g.window)
	for callerID, w := range g.callers {
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
			delete(g.callers, callerID)
		}
	}
}

func (g *ConcurrencyGuard) getCaller(callerID string) *callerWindow {
	g.mu.RLock()
	w, exists := g.callers[callerID]
	g.mu.RUnlock()

	if exists {
		return w
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if w, exists := g.callers[callerID]; exists {
		return w
	}

	w = &callerWindow{}
	g.callers[callerID] = w
	return w
}
