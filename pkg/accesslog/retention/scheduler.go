package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateSchedule reports whether expr is a valid five-field cron
// expression.
func ValidateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return nil
}

// Scheduler runs a Pruner on its configured cron schedule. A prune that is
// still running when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	pruner *Pruner
	logger *slog.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	entry cron.EntryID
}

// NewScheduler returns an idle scheduler for pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		logger: pruner.logger.With("component", "accesslog.scheduler"),
	}
}

// Start schedules the prune job and returns. The job stops with ctx or on
// Stop. Without a schedule, or with neither a day nor a record limit,
// Start leaves the scheduler idle and returns nil.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	cfg := s.pruner.config
	if cfg.PruneSchedule == "" || (cfg.RetentionDays <= 0 && cfg.MaxRecords <= 0) {
		s.logger.Debug("retention not configured, scheduler idle")
		return nil
	}

	sched, err := cron.ParseStandard(cfg.PruneSchedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", cfg.PruneSchedule, err)
	}

	log := cronLogger{s.logger}
	c := cron.New(cron.WithLogger(log), cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)))
	s.entry = c.Schedule(sched, cron.FuncJob(func() {
		if _, err := s.pruner.Prune(ctx); err != nil {
			s.logger.Error("scheduled pruning failed", "error", err)
		}
	}))
	c.Start()
	s.cron = c

	s.logger.Info("retention scheduler started",
		"schedule", cfg.PruneSchedule,
		"retention_days", cfg.RetentionDays,
		"max_records", cfg.MaxRecords,
		"next_run", c.Entry(s.entry).Next,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop cancels future runs and waits for a prune in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info("retention scheduler stopped")
}

// IsRunning reports whether a prune job is scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// NextRun returns the time of the next scheduled prune, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// cronLogger sends cron's own messages to slog. Routine scheduling chatter
// goes to debug.
type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
