package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseSchedule validates a standard five-field cron expression.
func ParseSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler fires a trigger on a cron schedule.
type Scheduler struct {
	spec    string
	trigger TriggerFunc
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler returns a scheduler for spec. An empty spec yields a
// scheduler that never fires.
func NewScheduler(spec string, trigger TriggerFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		spec:    spec,
		trigger: trigger,
		cron:    cron.New(),
		logger:  logger.With(slog.String("component", "schedule")),
	}
}

// Start registers the job and starts the cron runner. It stops when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spec == "" {
		s.logger.Debug("schedule: not configured")
		return nil
	}
	if err := ParseSchedule(s.spec); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.trigger("schedule: " + s.spec) }); err != nil {
		return fmt.Errorf("schedule: add job: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("schedule: started", slog.String("schedule", s.spec))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops the cron runner and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("schedule: stopped")
}

// NextRun returns the next scheduled fire time, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
