package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultResyncSchedule runs the full resync at the top of every hour.
const DefaultResyncSchedule = "@hourly"

// Scheduler triggers SyncWorker.ResyncAll on a cron schedule.
type Scheduler struct {
	worker  *SyncWorker
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
}

// NewScheduler validates schedule (standard five-field cron or a descriptor such
// as "@every 15m") and registers the resync job. timeout bounds a single run;
// zero means no bound.
func NewScheduler(worker *SyncWorker, schedule string, timeout time.Duration) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultResyncSchedule
	}
	s := &Scheduler{
		worker:  worker,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		runCtx:  context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid resync schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the schedule. Runs use a context derived from ctx, so
// cancelling ctx aborts an in-flight resync.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.cron.Start()
	slog.InfoContext(ctx, "Resync scheduler started", "next", s.Next())
}

// Stop halts the schedule and waits for a running resync to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	slog.Info("Resync scheduler stopped")
}

// Next reports when the resync fires next; zero when not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow performs one resync synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.worker.ResyncAll(ctx)
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if err := s.RunNow(ctx); err != nil {
		slog.ErrorContext(ctx, "Scheduled resync failed", "error", err)
	}
}
