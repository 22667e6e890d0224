// Package scheduler runs an application.Runner on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cron "github.com/pardnchiu/go-scheduler"

	"github.com/platforma-dev/ttrpg/application"
	"github.com/platforma-dev/ttrpg/log"
)

// Scheduler represents a periodic task runner that executes an action based on a cron expression.
// A tick that fires while the previous run is still in progress is skipped.
type Scheduler struct {
	cronExpr string
	runner   application.Runner

	running sync.Mutex
	runs    atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// New creates a new Scheduler instance with a cron expression.
//
// Supported cron formats:
//   - Standard 5-field cron with numeric fields: "minute hour day month weekday" (e.g., "30 14 * * *")
//   - Custom descriptors: @yearly, @monthly, @weekly, @daily, @hourly
//   - Interval syntax: @every 5m, @every 2h, @every 30s (at least 30s)
//
// Returns an error if the cron expression is invalid.
func New(cronExpr string, runner application.Runner) (*Scheduler, error) {
	// the library panics on an empty expression
	if cronExpr == "" {
		return nil, fmt.Errorf("invalid cron expression %q: expression cannot be empty", cronExpr)
	}

	validator, err := cron.New(cron.Config{Location: time.UTC})
	if err != nil {
		return nil, fmt.Errorf("failed to create cron validator: %w", err)
	}

	_, err = validator.Add(cronExpr, func() {})
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	return &Scheduler{
		cronExpr: cronExpr,
		runner:   runner,
	}, nil
}

// Run starts the scheduler and executes the runner according to the cron schedule.
// The scheduler will continue running until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	cronScheduler, err := cron.New(cron.Config{Location: time.UTC})
	if err != nil {
		return fmt.Errorf("failed to create cron scheduler: %w", err)
	}

	_, err = cronScheduler.Add(s.cronExpr, func() error {
		return s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron task: %w", err)
	}

	cronScheduler.Start()

	<-ctx.Done()

	// waits for a running tick to return
	stopCtx := cronScheduler.Stop()
	<-stopCtx.Done()

	return fmt.Errorf("scheduler context canceled: %w", ctx.Err())
}

func (s *Scheduler) tick(ctx context.Context) error {
	runCtx := context.WithValue(ctx, log.TraceIDKey, uuid.NewString())

	if !s.running.TryLock() {
		s.skipped.Add(1)
		log.WarnContext(runCtx, "previous scheduled run still in progress, skipping")
		return nil
	}
	defer s.running.Unlock()

	s.runs.Add(1)
	log.InfoContext(runCtx, "scheduler task started")

	err := s.runner.Run(runCtx)
	if err != nil {
		s.failed.Add(1)
		log.ErrorContext(runCtx, "error in scheduler", "error", err)
	}

	log.InfoContext(runCtx, "scheduler task finished")
	return err
}

// Healthcheck reports the schedule and run counters.
func (s *Scheduler) Healthcheck(_ context.Context) any {
	return map[string]any{
		"cron":    s.cronExpr,
		"runs":    s.runs.Load(),
		"skipped": s.skipped.Load(),
		"failed":  s.failed.Load(),
	}
}
