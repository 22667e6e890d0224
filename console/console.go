// Package console implements the interactive text menu of the ttrpg tool.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/platforma-dev/ttrpg/database"
	"github.com/platforma-dev/ttrpg/demo"
	"github.com/platforma-dev/ttrpg/log"
	"github.com/platforma-dev/ttrpg/pool"
)

// Migrator applies migration scripts.
type Migrator interface {
	Migrate(ctx context.Context, fsys fs.FS) (*database.Report, error)
}

// PoolTester runs connection pool tests.
type PoolTester interface {
	Run(ctx context.Context, mode pool.Mode) (pool.Result, error)
}

// Demos runs cancellation demos.
type Demos interface {
	Timeout(ctx context.Context) (demo.Outcome, error)
	Manual(ctx context.Context, stop <-chan struct{}) (demo.Outcome, error)
	Parallel(ctx context.Context) (demo.Outcome, error)
}

// Console reads menu choices line by line and prints results.
type Console struct {
	in       io.Reader
	out      io.Writer
	migrator Migrator
	fsys     fs.FS
	pool     PoolTester
	demos    Demos

	lines <-chan string
}

// New creates a Console. Choice 1 applies the scripts in fsys with m.
func New(in io.Reader, out io.Writer, m Migrator, fsys fs.FS, p PoolTester, d Demos) *Console {
	return &Console{in: in, out: out, migrator: m, fsys: fsys, pool: p, demos: d}
}

// Run shows the main menu until the user exits, input ends or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.lines = scanLines(ctx, c.in)

	for {
		c.printf("\n=== TTRPG database ===\n1 - Run migrations\n2 - Connection pool tests\n3 - Cancellation demos\n0 - Exit\nChoose: ")

		choice, ok := c.readLine(ctx)
		if !ok {
			c.printf("\n")
			return nil
		}

		switch choice {
		case "1":
			c.migrate(ctx)
		case "2":
			if !c.poolMenu(ctx) {
				return nil
			}
		case "3":
			if !c.demoMenu(ctx) {
				return nil
			}
		case "0":
			return nil
		default:
			c.printf("invalid choice\n")
		}
	}
}

func (c *Console) migrate(ctx context.Context) {
	report, err := c.migrator.Migrate(ctx, c.fsys)
	if err != nil {
		log.ErrorContext(ctx, "migration failed", "error", err)
		c.printf("migration failed: %v\n", err)
		return
	}

	c.printf("migrations finished: %d applied, %d reapplied, %d skipped\n",
		report.Count(database.StatusApplied), report.Count(database.StatusReapplied), report.Count(database.StatusSkipped))
}

// poolMenu returns false when input ended.
func (c *Console) poolMenu(ctx context.Context) bool {
	modes := pool.Modes()

	for {
		c.printf("\n=== Connection pool tests ===\n1 - Pooling enabled (default)\n2 - Pooling disabled\n3 - Custom pool (min 5, max 50)\n0 - Back\nChoose test: ")

		choice, ok := c.readLine(ctx)
		if !ok {
			return false
		}
		if choice == "0" {
			return true
		}

		i := menuIndex(choice, len(modes))
		if i < 0 {
			c.printf("invalid choice\n")
			continue
		}

		c.printf("running: pooling %s\n", modes[i])
		res, err := c.pool.Run(ctx, modes[i])
		if err != nil {
			c.printf("pool test failed: %v\n", err)
			continue
		}
		c.printf("%d queries in %d ms\n", res.Iterations, res.Elapsed.Milliseconds())
	}
}

// demoMenu returns false when input ended.
func (c *Console) demoMenu(ctx context.Context) bool {
	for {
		c.printf("\n=== Cancellation demos ===\n1 - Timeout\n2 - Manual cancellation\n3 - Parallel queries\n0 - Back\nChoose demo: ")

		choice, ok := c.readLine(ctx)
		if !ok {
			return false
		}

		var (
			outcome demo.Outcome
			err     error
		)
		switch choice {
		case "0":
			return true
		case "1":
			c.printf("running long query with timeout...\n")
			outcome, err = c.demos.Timeout(ctx)
		case "2":
			outcome, ok, err = c.manual(ctx)
		case "3":
			outcome, err = c.demos.Parallel(ctx)
		default:
			c.printf("invalid choice\n")
			continue
		}

		c.printOutcome(outcome, err)
		if !ok {
			return false
		}
	}
}

// manual runs the manual cancellation demo, cancelling it when the user enters any line.
// ok is false when input ended while the demo was running.
func (c *Console) manual(ctx context.Context) (outcome demo.Outcome, ok bool, err error) {
	c.printf("press Enter to cancel the operation...\n")

	type result struct {
		outcome demo.Outcome
		err     error
	}

	stop := make(chan struct{})
	done := make(chan result, 1)
	go func() {
		o, err := c.demos.Manual(ctx, stop)
		done <- result{o, err}
	}()

	ok = true
	select {
	case res := <-done:
		return res.outcome, ok, res.err
	case _, ok = <-c.lines:
		close(stop)
	}

	res := <-done
	return res.outcome, ok, res.err
}

func (c *Console) printOutcome(outcome demo.Outcome, err error) {
	if err != nil && outcome != demo.OutcomeTimedOut && outcome != demo.OutcomeCancelled {
		c.printf("operation %s: %v\n", outcome, err)
		return
	}
	c.printf("operation %s\n", outcome)
}

func (c *Console) readLine(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-c.lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func menuIndex(choice string, n int) int {
	if len(choice) != 1 || choice[0] < '1' || int(choice[0]-'0') > n {
		return -1
	}
	return int(choice[0] - '1')
}

// scanLines delivers trimmed input lines until EOF or ctx is done.
func scanLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}
