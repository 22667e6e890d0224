// Package database applies versioned SQL migration scripts and tracks them in a ledger table.
package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Database represents a database connection with migration capabilities.
type Database struct {
	conn   *sqlx.DB
	runner *Runner
}

// New connects to the database with the given driver ("postgres" or "sqlite") and data source name.
func New(driver, dsn string, opts ...RunnerOption) (*Database, error) {
	_, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	runner, err := NewRunner(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Database{conn: db, runner: runner}, nil
}

// Connection returns the underlying sqlx database connection.
func (db *Database) Connection() *sqlx.DB {
	return db.conn
}

// Close closes the connection pool.
func (db *Database) Close() error {
	err := db.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Migrate applies pending and changed migrations found in fsys.
func (db *Database) Migrate(ctx context.Context, fsys fs.FS) (*Report, error) {
	return db.runner.Run(ctx, fsys)
}

// Plan reports which migrations in fsys would be applied by Migrate.
func (db *Database) Plan(ctx context.Context, fsys fs.FS) ([]Result, error) {
	return db.runner.Plan(ctx, fsys)
}

// Records returns the latest ledger row of every recorded migration.
func (db *Database) Records(ctx context.Context) ([]MigrationRecord, error) {
	return db.runner.Records(ctx)
}

// Healthcheck pings the database and reports the result.
func (db *Database) Healthcheck(ctx context.Context) any {
	err := db.conn.PingContext(ctx)
	if err != nil {
		return map[string]string{"status": "unavailable", "error": err.Error()}
	}

	stats := db.conn.Stats()
	return map[string]any{"status": "ok", "openConnections": stats.OpenConnections, "inUse": stats.InUse}
}
