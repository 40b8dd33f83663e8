// Package rebuild provides a process-wide single-flight guard around site
// builds.
package rebuild

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// BuildFunc runs one build.
type BuildFunc func(ctx context.Context) error

// Guard runs at most one build at a time. Triggers that arrive while a
// build is running are dropped.
type Guard struct {
	build   BuildFunc
	logger  *slog.Logger
	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	lastErr error
	runs    int
	dropped int
}

// NewGuard returns a guard around build.
func NewGuard(build BuildFunc, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{build: build, logger: logger.With(slog.String("component", "rebuild"))}
}

// Trigger starts a build in a new goroutine unless one is already running
// or the guard is closed. It reports whether a build was started.
func (g *Guard) Trigger(ctx context.Context, reason string) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Debug("rebuild: closed, trigger ignored", slog.String("reason", reason))
		return false
	}
	if !g.running.CompareAndSwap(false, true) {
		g.dropped++
		g.mu.Unlock()
		g.logger.Debug("rebuild: already running, trigger dropped", slog.String("reason", reason))
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer g.running.Store(false)

		g.logger.Info("rebuild: started", slog.String("reason", reason))
		err := g.build(ctx)

		g.mu.Lock()
		g.lastErr = err
		g.runs++
		g.mu.Unlock()

		if err != nil {
			g.logger.Error("rebuild: failed", slog.String("reason", reason), slog.String("error", err.Error()))
			return
		}
		g.logger.Info("rebuild: finished", slog.String("reason", reason))
	}()
	return true
}

// Running reports whether a build is in progress.
func (g *Guard) Running() bool { return g.running.Load() }

// Wait blocks until the running build, if any, has finished.
func (g *Guard) Wait() { g.wg.Wait() }

// Close rejects all further triggers and waits for the running build.
func (g *Guard) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}

// Stats returns the number of completed and dropped builds and the error of
// the last completed one.
func (g *Guard) Stats() (runs, dropped int, lastErr error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.runs, g.dropped, g.lastErr
}
