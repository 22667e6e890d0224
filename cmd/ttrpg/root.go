package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/platforma-dev/ttrpg/config"
	"github.com/platforma-dev/ttrpg/database"
	"github.com/platforma-dev/ttrpg/log"
	"github.com/platforma-dev/ttrpg/migrations"
)

const (
	slowRunThreshold = 10 * time.Second
	eventKeepRate    = 0.1
)

type options struct {
	configFile string
	dir        string
}

// env is what every database command needs.
type env struct {
	cfg  *config.Config
	db   *database.Database
	fsys fs.FS
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ttrpg",
		Short:         "Versioned SQL migrations for the TTRPG club database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml when present)")
	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "directory with migration scripts (default from config, embedded scripts when missing)")

	root.AddCommand(
		newMigrateCmd(opts),
		newStatusCmd(opts),
		newMenuCmd(opts),
		newPoolCmd(opts),
		newDemoCmd(opts),
		newServeCmd(opts),
		newCreateCmd(opts),
	)

	return root
}

// setup loads the configuration, installs the logger and connects to the database.
// The caller closes env.db.
func setup(cmd *cobra.Command, opts *options) (*env, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log.SetDefault(log.New(cmd.ErrOrStderr(), cfg.Log.Format, log.ParseLevel(cfg.Log.Level), nil))

	ctx := context.WithValue(cmd.Context(), log.CommandKey, cmd.Name())
	cmd.SetContext(ctx)

	fsys, err := migrationSource(opts.dir, cfg.Migrations.Dir)
	if err != nil {
		return nil, err
	}

	events := log.NewWideEventLogger(
		cmd.ErrOrStderr(),
		log.NewRunSampler(slowRunThreshold, eventKeepRate, string(database.StatusApplied), string(database.StatusReapplied)),
		cfg.Log.Format,
		nil,
	)

	db, err := database.New(cfg.Database.Driver, cfg.Database.URL,
		database.WithTable(cfg.Migrations.Table),
		database.WithExtension(cfg.Migrations.Ext),
		database.WithEventLogger(events),
	)
	if err != nil {
		return nil, err
	}

	log.DebugContext(ctx, "connected to database", "driver", cfg.Database.Driver)

	return &env{cfg: cfg, db: db, fsys: fsys}, nil
}

// migrationSource picks the scripts directory. An explicit dir must exist. The configured
// dir is used when it exists, otherwise the scripts embedded in the binary.
func migrationSource(explicit, configured string) (fs.FS, error) {
	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			return nil, &database.SourceReadError{Name: explicit, Err: err}
		}
		if !info.IsDir() {
			return nil, &database.SourceReadError{Name: explicit, Err: errors.New("not a directory")}
		}
		return database.Dir(explicit), nil
	}

	info, err := os.Stat(configured)
	if err == nil && info.IsDir() {
		return database.Dir(configured), nil
	}

	return migrations.FS, nil
}

func closeDB(cmd *cobra.Command, db *database.Database) {
	err := db.Close()
	if err != nil {
		log.WarnContext(cmd.Context(), "failed to close database", "error", err)
	}
}
