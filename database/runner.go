package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platforma-dev/ttrpg/log"
)

// Runner applies migration scripts from a directory and keeps the ledger in sync.
type Runner struct {
	db      *sqlx.DB
	dialect dialect
	table   string
	ext     string
	events  *log.WideEventLogger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTable sets the ledger table name.
func WithTable(table string) RunnerOption {
	return func(r *Runner) {
		if table != "" {
			r.table = table
		}
	}
}

// WithExtension sets the file extension of migration scripts, including the dot.
func WithExtension(ext string) RunnerOption {
	return func(r *Runner) {
		if ext != "" {
			r.ext = ext
		}
	}
}

// WithEventLogger makes the runner write one wide event per run.
func WithEventLogger(l *log.WideEventLogger) RunnerOption {
	return func(r *Runner) {
		r.events = l
	}
}

// NewRunner creates a Runner for db. The ledger dialect is chosen from the driver name.
func NewRunner(db *sqlx.DB, opts ...RunnerOption) (*Runner, error) {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}

	r := &Runner{db: db, dialect: d, table: DefaultTable, ext: DefaultExtension}
	for _, opt := range opts {
		opt(r)
	}

	err = validateTableName(r.table)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Run applies every migration in fsys whose content hash differs from the one in the ledger.
// Files are processed in lexicographic order over a single connection. Each applied file runs
// its batches and its ledger insert in one transaction. The first failure rolls that transaction
// back and ends the run; the returned report then lists only the files handled before it.
func (r *Runner) Run(ctx context.Context, fsys fs.FS) (report *Report, err error) {
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, log.RunIDKey, runID)

	event := log.NewEvent("migration.run")
	event.SetAttr("table", r.table)
	ctx = log.ContextWithEvent(ctx, event)

	report = &Report{RunID: runID}

	defer func() {
		event.AddError(err)
		if r.events != nil {
			r.events.WriteEvent(ctx, event)
		}
	}()

	conn, err := r.connect(ctx)
	if err != nil {
		return report, err
	}
	defer func() { _ = conn.Close() }()

	ledger, applied, err := r.loadLedger(ctx, conn)
	if err != nil {
		return report, err
	}

	files, err := ListMigrations(fsys, r.ext)
	if err != nil {
		return report, err
	}

	log.InfoContext(ctx, "starting migration run", "files", len(files), "recorded", len(applied))

	for _, file := range files {
		fileCtx := context.WithValue(ctx, log.MigrationKey, file.Name)

		result, err := r.process(fileCtx, conn, ledger, applied, file)
		if err != nil {
			log.ErrorContext(fileCtx, "migration failed", "error", err)
			return report, err
		}

		event.Inc(string(result.Status))
		report.Results = append(report.Results, result)
	}

	log.InfoContext(ctx, "migration run finished",
		"applied", report.Count(StatusApplied),
		"reapplied", report.Count(StatusReapplied),
		"skipped", report.Count(StatusSkipped),
	)

	return report, nil
}

// Plan classifies the migrations in fsys against the ledger without applying anything.
// Results use StatusSkipped, StatusPending and StatusChanged.
func (r *Runner) Plan(ctx context.Context, fsys fs.FS) ([]Result, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	_, applied, err := r.loadLedger(ctx, conn)
	if err != nil {
		return nil, err
	}

	files, err := ListMigrations(fsys, r.ext)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(files))
	for _, file := range files {
		hash := Hash(file.Content)

		status := StatusPending
		if recorded, ok := applied[file.Name]; ok {
			status = StatusChanged
			if recorded == hash {
				status = StatusSkipped
			}
		}

		results = append(results, Result{Name: file.Name, Hash: hash, Status: status})
	}

	return results, nil
}

// Records returns the latest ledger row of every recorded migration.
func (r *Runner) Records(ctx context.Context) ([]MigrationRecord, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	ledger := newLedger(conn, r.table, r.dialect)

	err = ledger.EnsureTable(ctx)
	if err != nil {
		return nil, &LedgerUnavailableError{Op: "ensure table", Err: err}
	}

	records, err := ledger.Records(ctx)
	if err != nil {
		return nil, &LedgerUnavailableError{Op: "read", Err: err}
	}

	return records, nil
}

// connect reports a cancelled or expired ctx as itself, not as an unavailable ledger.
func (r *Runner) connect(ctx context.Context) (*sqlx.Conn, error) {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to acquire connection: %w", err)
		}
		return nil, &LedgerUnavailableError{Op: "connect", Err: err}
	}
	return conn, nil
}

func (r *Runner) loadLedger(ctx context.Context, conn *sqlx.Conn) (*Ledger, map[string]string, error) {
	ledger := newLedger(conn, r.table, r.dialect)

	err := ledger.EnsureTable(ctx)
	if err != nil {
		return nil, nil, &LedgerUnavailableError{Op: "ensure table", Err: err}
	}

	applied, err := ledger.Applied(ctx)
	if err != nil {
		return nil, nil, &LedgerUnavailableError{Op: "read", Err: err}
	}

	return ledger, applied, nil
}

func (r *Runner) process(ctx context.Context, conn *sqlx.Conn, ledger *Ledger, applied map[string]string, file MigrationFile) (Result, error) {
	event := log.EventFromContext(ctx)
	hash := Hash(file.Content)

	recorded, seen := applied[file.Name]
	if seen && recorded == hash {
		log.InfoContext(ctx, "migration skipped")
		event.AddStep(slog.LevelInfo, string(StatusSkipped), "migration", file.Name)
		return Result{Name: file.Name, Hash: hash, Status: StatusSkipped}, nil
	}

	status := StatusApplied
	if seen {
		status = StatusReapplied
		log.WarnContext(ctx, "migration changed since it was applied", "recordedHash", recorded, "hash", hash)
	}

	log.InfoContext(ctx, "applying migration")

	err := r.apply(ctx, conn, ledger, file, hash)
	if err != nil {
		event.AddStep(slog.LevelError, "failed", "migration", file.Name)
		return Result{}, err
	}

	level := slog.LevelInfo
	if status == StatusReapplied {
		level = slog.LevelWarn
	}
	event.AddStep(level, string(status), "migration", file.Name)
	log.InfoContext(ctx, "migration applied", "status", status)

	applied[file.Name] = hash

	return Result{Name: file.Name, Hash: hash, Status: status}, nil
}

func (r *Runner) apply(ctx context.Context, conn *sqlx.Conn, ledger *Ledger, file MigrationFile, hash string) (err error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", file.Name, err)
	}

	defer func() {
		if err == nil {
			return
		}
		rollbackErr := tx.Rollback()
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("failed to roll back migration %s: %w", file.Name, rollbackErr))
		}
	}()

	for i, batch := range SplitBatches(file.Content) {
		_, err = tx.ExecContext(ctx, batch)
		if err != nil {
			return &BatchExecutionError{Name: file.Name, Batch: i, Err: err}
		}
	}

	err = ledger.Record(ctx, tx, file.Name, hash)
	if err != nil {
		return &RecordError{Name: file.Name, Err: err}
	}

	err = tx.Commit()
	if err != nil {
		return &RecordError{Name: file.Name, Err: fmt.Errorf("failed to commit: %w", err)}
	}

	return nil
}
