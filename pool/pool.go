// Package pool measures how connection pool settings affect the cost of short queries.
package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/platforma-dev/ttrpg/log"
)

// ErrUnknownMode is returned for a pool mode other than enabled, disabled or custom.
var ErrUnknownMode = errors.New("unknown pool mode")

// Mode selects the pool configuration used by a test run.
type Mode string

const (
	// ModeEnabled keeps the database/sql pool defaults.
	ModeEnabled Mode = "enabled"
	// ModeDisabled retains no idle connections, so every query dials.
	ModeDisabled Mode = "disabled"
	// ModeCustom allows up to 50 open and idle connections and pre-warms 5 of them.
	ModeCustom Mode = "custom"
)

const (
	customMaxConns = 50
	customWarm     = 5
)

// Modes lists every supported mode in menu order.
func Modes() []Mode {
	return []Mode{ModeEnabled, ModeDisabled, ModeCustom}
}

// ParseMode converts s to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Result is the outcome of one test run.
type Result struct {
	Mode       Mode          `json:"mode"`
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Tester runs pool tests against its own connection pool.
type Tester struct {
	driver     string
	dsn        string
	iterations int
}

// New creates a Tester that opens pools with driver and dsn and runs iterations queries per test.
func New(driver, dsn string, iterations int) *Tester {
	return &Tester{driver: driver, dsn: dsn, iterations: iterations}
}

// Run opens a fresh pool configured for mode and runs SELECT 1 on a newly acquired connection per iteration.
func (t *Tester) Run(ctx context.Context, mode Mode) (Result, error) {
	db, err := sqlx.Open(t.driver, t.dsn)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open pool: %w", err)
	}
	defer db.Close()

	err = configure(ctx, db, mode)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	for i := range t.iterations {
		err := selectOne(ctx, db)
		if err != nil {
			return Result{}, fmt.Errorf("iteration %d failed: %w", i+1, err)
		}
	}

	res := Result{Mode: mode, Iterations: t.iterations, Elapsed: time.Since(start)}
	log.InfoContext(ctx, "pool test finished", "mode", mode, "iterations", res.Iterations, "elapsed", res.Elapsed)

	return res, nil
}

func configure(ctx context.Context, db *sqlx.DB, mode Mode) error {
	switch mode {
	case ModeEnabled:
		return nil
	case ModeDisabled:
		db.SetMaxIdleConns(0)
		return nil
	case ModeCustom:
		db.SetMaxOpenConns(customMaxConns)
		db.SetMaxIdleConns(customMaxConns)
		return warm(ctx, db, customWarm)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// warm holds n connections at once so that all of them go back to the idle pool.
func warm(ctx context.Context, db *sqlx.DB, n int) error {
	conns := make([]*sqlx.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	for range n {
		c, err := db.Connx(ctx)
		if err != nil {
			return fmt.Errorf("failed to warm pool: %w", err)
		}
		conns = append(conns, c)
	}

	return nil
}

func selectOne(ctx context.Context, db *sqlx.DB) error {
	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	var one int
	err = conn.GetContext(ctx, &one, "SELECT 1")
	if err != nil {
		return fmt.Errorf("failed to select: %w", err)
	}
	return nil
}
