// Package demo shows how context cancellation stops long running queries.
package demo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platforma-dev/ttrpg/database"
	"github.com/platforma-dev/ttrpg/log"
)

// ErrNoLongQuery is returned when the driver has no way to run a long query.
var ErrNoLongQuery = errors.New("driver has no long running query")

// Outcome describes how a demo ended.
type Outcome string

// Demo outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeTimedOut  Outcome = "cancelled by timeout"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

const failingQuery = "SELECT * FROM non_existing_table"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Demo runs cancellation demos against one database.
type Demo struct {
	db        execer
	longQuery string
	timeout   time.Duration
	sleep     time.Duration
}

// New creates a Demo. Long queries take sleep to finish and Timeout cancels them after timeout.
func New(db execer, driver string, timeout, sleep time.Duration) (*Demo, error) {
	q := database.SleepQuery(driver)
	if q == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoLongQuery, driver)
	}

	return &Demo{db: db, longQuery: q, timeout: timeout, sleep: sleep}, nil
}

// Timeout runs a long query that is cancelled once the configured timeout passes.
func (d *Demo) Timeout(ctx context.Context) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	log.InfoContext(ctx, "running long query with timeout", "timeout", d.timeout)
	return classify(ctx, d.long(ctx))
}

// Manual runs a long query that is cancelled when stop is closed or receives a value.
func (d *Demo) Manual(ctx context.Context, stop <-chan struct{}) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	return classify(ctx, d.long(ctx))
}

// Parallel runs two long queries and one failing query at the same time.
// The first failure cancels the remaining queries and is returned.
func (d *Demo) Parallel(ctx context.Context) (Outcome, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	tasks := []func(context.Context) error{d.long, d.long, d.failing}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := task(ctx)
			if err != nil {
				cancel(err)
			}
		}()
	}
	wg.Wait()

	cause := context.Cause(ctx)
	switch {
	case cause == nil:
		return OutcomeCompleted, nil
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return OutcomeCancelled, cause
	default:
		log.WarnContext(ctx, "parallel query failed", "error", cause)
		return OutcomeFailed, cause
	}
}

func (d *Demo) long(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, d.longQuery, d.sleep.Seconds())
	if err != nil {
		return fmt.Errorf("long query failed: %w", err)
	}
	return nil
}

func (d *Demo) failing(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, failingQuery)
	if err != nil {
		return fmt.Errorf("failing query failed: %w", err)
	}
	return nil
}

// classify reports how a query ended. Cancellation is read from ctx, not from err.
func classify(ctx context.Context, err error) (Outcome, error) {
	if err == nil {
		return OutcomeCompleted, nil
	}

	switch ctx.Err() {
	case context.DeadlineExceeded:
		return OutcomeTimedOut, ctx.Err()
	case context.Canceled:
		return OutcomeCancelled, ctx.Err()
	default:
		return OutcomeFailed, err
	}
}
