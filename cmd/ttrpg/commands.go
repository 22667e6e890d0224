package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/platforma-dev/ttrpg/application"
	"github.com/platforma-dev/ttrpg/config"
	"github.com/platforma-dev/ttrpg/console"
	"github.com/platforma-dev/ttrpg/database"
	"github.com/platforma-dev/ttrpg/demo"
	"github.com/platforma-dev/ttrpg/httpserver"
	"github.com/platforma-dev/ttrpg/member"
	"github.com/platforma-dev/ttrpg/pool"
	"github.com/platforma-dev/ttrpg/scheduler"
)

const shutdownTimeout = 5 * time.Second

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply new and changed migration scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer closeDB(cmd, e.db)

			report, err := e.db.Migrate(cmd.Context(), e.fsys)
			if report != nil {
				printResults(cmd.OutOrStdout(), report.Results)
			}
			return err
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which scripts are applied, pending or changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer closeDB(cmd, e.db)

			plan, err := e.db.Plan(cmd.Context(), e.fsys)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), plan)
			return nil
		},
	}
}

func newMenuCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd, opts)
		},
	}
}

func runMenu(cmd *cobra.Command, opts *options) error {
	e, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	defer closeDB(cmd, e.db)

	d, err := newDemo(e)
	if err != nil {
		return err
	}

	c := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), e.db, e.fsys, newPoolTester(e.cfg), d)
	return c.Run(cmd.Context())
}

func newPoolCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "pool [enabled|disabled|custom]",
		Short:     "Time short queries under a connection pool configuration",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(pool.ModeEnabled), string(pool.ModeDisabled), string(pool.ModeCustom)},
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := pool.Modes()
			if len(args) == 1 {
				mode, err := pool.ParseMode(args[0])
				if err != nil {
					return err
				}
				modes = []pool.Mode{mode}
			}

			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			closeDB(cmd, e.db)

			tester := newPoolTester(e.cfg)
			for _, mode := range modes {
				res, err := tester.Run(cmd.Context(), mode)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %d queries in %d ms\n", res.Mode, res.Iterations, res.Elapsed.Milliseconds())
			}
			return nil
		},
	}
}

func newPoolTester(cfg *config.Config) *pool.Tester {
	return pool.New(cfg.Database.Driver, cfg.Database.URL, cfg.Pool.Iterations)
}

func newDemoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "demo [timeout|manual|parallel]",
		Short:     "Show how cancellation stops long running queries",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"timeout", "manual", "parallel"},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer closeDB(cmd, e.db)

			d, err := newDemo(e)
			if err != nil {
				return err
			}

			var outcome demo.Outcome
			switch args[0] {
			case "timeout":
				outcome, err = d.Timeout(cmd.Context())
			case "manual":
				fmt.Fprintln(cmd.OutOrStdout(), "press Enter to cancel the operation...")
				outcome, err = d.Manual(cmd.Context(), lineEntered(cmd.InOrStdin()))
			case "parallel":
				outcome, err = d.Parallel(cmd.Context())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "operation %s\n", outcome)
			if outcome == demo.OutcomeFailed {
				return err
			}
			return nil
		},
	}
}

func newDemo(e *env) (*demo.Demo, error) {
	return demo.New(e.db.Connection(), e.cfg.Database.Driver, e.cfg.Demo.Timeout, e.cfg.Demo.Sleep)
}

// lineEntered closes the returned channel once a line is read from r.
func lineEntered(r io.Reader) <-chan struct{} {
	stop := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(r).ReadString('\n')
		close(stop)
	}()
	return stop
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate on startup and on a schedule, and serve health and ledger over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer closeDB(cmd, e.db)

			app := application.New()
			app.RegisterDatabase("main", e.db)

			migrate := application.RunnerFunc(func(ctx context.Context) error {
				return app.Migrate(ctx, e.fsys)
			})
			app.OnStart(migrate, application.StartupTaskConfig{Name: "migrate", AbortOnError: true})

			s, err := scheduler.New(e.cfg.Schedule.Cron, migrate)
			if err != nil {
				return err
			}
			app.RegisterService("scheduler", s)

			api := httpserver.New(e.cfg.HTTP.Addr, shutdownTimeout)
			api.RegisterRoutes(application.NewHealthCheckHandler(app), e.db, e.fsys)
			// the club schema in the shipped scripts is postgres only
			if e.cfg.Database.Driver == "postgres" {
				api.RegisterMemberRoutes(member.NewRepository(e.db.Connection()))
			}
			app.RegisterService("api", api)

			return app.Serve(cmd.Context())
		},
	}
}

var scriptNamePattern = regexp.MustCompile(`[^a-z0-9]+`)

func newCreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty timestamped migration script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(opts.configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			path, err := createScript(cfg.MigrationsDir(opts.dir), args[0], cfg.Migrations.Ext, time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// createScript writes an empty script named <timestamp>_<name><ext> into dir.
func createScript(dir, name, ext string, now time.Time) (string, error) {
	slug := strings.Trim(scriptNamePattern.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("invalid migration name %q", name)
	}

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create migrations dir: %w", err)
	}

	path := filepath.Join(dir, now.UTC().Format("20060102150405")+"_"+slug+ext)
	content := fmt.Sprintf("-- %s\n-- created %s\n-- separate batches with a line containing only GO\n\n", name, now.UTC().Format(time.RFC3339))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create migration script: %w", err)
	}
	defer f.Close()

	_, err = f.WriteString(content)
	if err != nil {
		return "", fmt.Errorf("failed to write migration script: %w", err)
	}

	return path, nil
}

func printResults(w io.Writer, results []database.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MIGRATION\tSTATUS\tHASH")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Status, r.Hash[:12])
	}
	_ = tw.Flush()
}
