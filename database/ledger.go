package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
)

// DefaultTable is the ledger table name used unless configured otherwise.
const DefaultTable = "migration_history"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

type queryer interface {
	execer
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Ledger reads and writes the table that records applied migrations.
type Ledger struct {
	db      queryer
	table   string
	dialect dialect
}

func newLedger(db queryer, table string, d dialect) *Ledger {
	return &Ledger{db: db, table: table, dialect: d}
}

// EnsureTable creates the ledger table when it does not exist yet.
func (l *Ledger) EnsureTable(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, fmt.Sprintf(l.dialect.createTable, l.table))
	if err != nil {
		return fmt.Errorf("failed to create ledger table: %w", err)
	}
	return nil
}

// Applied returns the last recorded hash for every migration name in the ledger.
func (l *Ledger) Applied(ctx context.Context) (map[string]string, error) {
	records, err := l.all(ctx)
	if err != nil {
		return nil, err
	}

	applied := make(map[string]string, len(records))
	for _, r := range records {
		applied[r.Name] = r.Hash
	}
	return applied, nil
}

// Records returns the latest ledger row of every migration, ordered by name.
func (l *Ledger) Records(ctx context.Context) ([]MigrationRecord, error) {
	records, err := l.all(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		latest[r.Name] = r
	}

	result := make([]MigrationRecord, 0, len(latest))
	for _, r := range latest {
		result = append(result, r)
	}
	slices.SortFunc(result, func(a, b MigrationRecord) int {
		return strings.Compare(a.Name, b.Name)
	})

	return result, nil
}

// Record inserts a ledger row through tx. Committing is up to the caller.
func (l *Ledger) Record(ctx context.Context, tx execer, name, hash string) error {
	query := tx.Rebind(fmt.Sprintf("INSERT INTO %s (migration_name, hash) VALUES (?, ?)", l.table))
	_, err := tx.ExecContext(ctx, query, name, hash)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}
	return nil
}

func (l *Ledger) all(ctx context.Context) ([]MigrationRecord, error) {
	var records []MigrationRecord
	query := fmt.Sprintf("SELECT id, migration_name, hash, applied_at FROM %s ORDER BY id", l.table)
	err := l.db.SelectContext(ctx, &records, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select ledger rows: %w", err)
	}
	return records, nil
}
