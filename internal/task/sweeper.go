package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Retention defaults
const (
	DefaultCleanupInterval = 600 * time.Second
	DefaultRetentionWindow = 1800 * time.Second
)

// Sweeper evicts terminal tasks once they have outlived the retention
// window. It runs at most once per cleanup interval and is cheap to call
// when a sweep is not due.
type Sweeper struct {
	registry  *Registry
	interval  time.Duration
	retention time.Duration

	// running guards against stacked sweeps; callers never wait on it
	running sync.Mutex

	mu        sync.Mutex
	lastSweep time.Time

	logger *slog.Logger
}

// NewSweeper creates a sweeper whose first cycle is due one interval after start.
func NewSweeper(registry *Registry, interval, retention time.Duration, start time.Time, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if retention <= 0 {
		retention = DefaultRetentionWindow
	}
	return &Sweeper{
		registry:  registry,
		interval:  interval,
		retention: retention,
		lastSweep: start,
		logger:    logger.With("component", "task_sweeper"),
	}
}

// MaybeSweep evicts expired terminal tasks if a cycle is due at now. swept
// reports whether a cycle actually ran. A busy registry or a sweep already
// in progress skips the cycle without error.
func (s *Sweeper) MaybeSweep(ctx context.Context, now time.Time) (evicted int, swept bool) {
	if !s.due(now) {
		return 0, false
	}
	if !s.running.TryLock() {
		return 0, false
	}
	defer s.running.Unlock()

	// Re-check: another caller may have just finished a cycle.
	if !s.due(now) {
		return 0, false
	}

	terminal, err := s.registry.ListForSweep(ctx)
	if err != nil {
		s.logger.Debug("skipping sweep cycle", "error", err)
		return 0, false
	}

	for _, t := range terminal {
		if now.Sub(t.CompletedAt) <= s.retention {
			continue
		}
		if err := s.registry.Remove(ctx, t.ID); err != nil {
			s.logger.Debug("sweep interrupted", "evicted", evicted, "error", err)
			return evicted, false
		}
		evicted++
	}

	s.mu.Lock()
	s.lastSweep = now
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("evicted expired tasks",
			"evicted", evicted,
			"retention", s.retention)
	}
	return evicted, true
}

func (s *Sweeper) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSweep) >= s.interval
}
