package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"
	"time"

	"github.com/platforma-dev/ttrpg/database"
)

func newSQLiteDatabase(t *testing.T, opts ...database.RunnerOption) *database.Database {
	t.Helper()

	db, err := database.New("sqlite", filepath.Join(t.TempDir(), "ttrpg.db"), opts...)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func scripts(files map[string]string) fstest.MapFS {
	fsys := make(fstest.MapFS, len(files))
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func ledgerRows(t *testing.T, db *database.Database) []database.MigrationRecord {
	t.Helper()

	var rows []database.MigrationRecord
	err := db.Connection().Select(&rows, "SELECT id, migration_name, hash, applied_at FROM migration_history ORDER BY id")
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	return rows
}

func tableExists(t *testing.T, db *database.Database, table string) bool {
	t.Helper()

	var n int
	err := db.Connection().Get(&n, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err != nil {
		t.Fatalf("failed to inspect schema: %v", err)
	}
	return n > 0
}

func statuses(report *database.Report) []database.Status {
	result := make([]database.Status, 0, len(report.Results))
	for _, r := range report.Results {
		result = append(result, r.Status)
	}
	return result
}

func TestRunner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("applies migrations and records them", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		fsys := scripts(map[string]string{
			"001_games.sql":   "CREATE TABLE games (game_id INTEGER PRIMARY KEY, title TEXT NOT NULL);",
			"002_members.sql": "CREATE TABLE members (member_id INTEGER PRIMARY KEY, name TEXT);\nGO\nINSERT INTO members (name) VALUES ('Ada');",
		})

		report, err := db.Migrate(ctx, fsys)
		if err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		if !slices.Equal(statuses(report), []database.Status{database.StatusApplied, database.StatusApplied}) {
			t.Fatalf("unexpected statuses: %v", statuses(report))
		}

		if report.RunID == "" {
			t.Error("expected run id in report")
		}

		rows := ledgerRows(t, db)
		if len(rows) != 2 {
			t.Fatalf("expected 2 ledger rows, got %d", len(rows))
		}

		if rows[1].Name != "002_members.sql" || rows[1].Hash != database.Hash(string(fsys["002_members.sql"].Data)) {
			t.Errorf("unexpected ledger row: %+v", rows[1])
		}

		if rows[0].AppliedAt.IsZero() {
			t.Error("expected applied_at to default to server time")
		}

		var members int
		err = db.Connection().Get(&members, "SELECT count(*) FROM members")
		if err != nil {
			t.Fatalf("expected members table, got: %v", err)
		}
		if members != 1 {
			t.Errorf("expected 1 member, got %d", members)
		}
	})

	// Imitates starting the tool several times against the same directory
	t.Run("second run skips everything", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		fsys := scripts(map[string]string{
			"001_games.sql": "CREATE TABLE games (game_id INTEGER PRIMARY KEY);",
			"002_seed.sql":  "INSERT INTO games DEFAULT VALUES;",
		})

		_, err := db.Migrate(ctx, fsys)
		if err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		report, err := db.Migrate(ctx, fsys)
		if err != nil {
			t.Fatalf("failed to migrate second time: %v", err)
		}

		if report.Count(database.StatusSkipped) != 2 {
			t.Fatalf("expected 2 skipped migrations, got %v", statuses(report))
		}

		if len(ledgerRows(t, db)) != 2 {
			t.Errorf("expected ledger to stay at 2 rows")
		}

		var games int
		_ = db.Connection().Get(&games, "SELECT count(*) FROM games")
		if games != 1 {
			t.Errorf("expected seed to run once, got %d rows", games)
		}
	})

	t.Run("changed migration is applied again", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)

		_, err := db.Migrate(ctx, scripts(map[string]string{
			"001_games.sql": "CREATE TABLE IF NOT EXISTS games (game_id INTEGER PRIMARY KEY, title TEXT);",
		}))
		if err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		changed := "CREATE TABLE IF NOT EXISTS games (game_id INTEGER PRIMARY KEY, title TEXT);\nGO\nINSERT INTO games (title) VALUES ('Dungeons');"
		report, err := db.Migrate(ctx, scripts(map[string]string{"001_games.sql": changed}))
		if err != nil {
			t.Fatalf("failed to migrate changed script: %v", err)
		}

		if !slices.Equal(statuses(report), []database.Status{database.StatusReapplied}) {
			t.Fatalf("expected reapplied, got %v", statuses(report))
		}

		records, err := db.Records(ctx)
		if err != nil {
			t.Fatalf("failed to read records: %v", err)
		}
		if len(records) != 1 || records[0].Hash != database.Hash(changed) {
			t.Fatalf("expected latest hash to be recorded, got %+v", records)
		}

		report, err = db.Migrate(ctx, scripts(map[string]string{"001_games.sql": changed}))
		if err != nil {
			t.Fatalf("failed to migrate third time: %v", err)
		}
		if report.Count(database.StatusSkipped) != 1 {
			t.Errorf("expected changed script to be skipped after reapply, got %v", statuses(report))
		}
	})

	t.Run("failed batch rolls back the whole migration", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		fsys := scripts(map[string]string{
			"001_broken.sql": "CREATE TABLE sessions (session_id INTEGER PRIMARY KEY);\nGO\nINSERT INTO missing_table VALUES (1);",
		})

		report, err := db.Migrate(ctx, fsys)
		if err == nil {
			t.Fatal("migration expected to fail")
		}

		var batchErr *database.BatchExecutionError
		if !errors.As(err, &batchErr) {
			t.Fatalf("expected BatchExecutionError, got %T: %v", err, err)
		}
		if batchErr.Name != "001_broken.sql" || batchErr.Batch != 1 {
			t.Errorf("expected second batch of 001_broken.sql to fail, got %+v", batchErr)
		}

		if len(report.Results) != 0 {
			t.Errorf("expected no results, got %v", report.Results)
		}

		if tableExists(t, db, "sessions") {
			t.Error("expected first batch to be rolled back")
		}

		if len(ledgerRows(t, db)) != 0 {
			t.Error("expected no ledger record for failed migration")
		}
	})

	t.Run("expired context rolls back the running migration", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		fsys := scripts(map[string]string{
			"001_spin.sql": "CREATE TABLE games (game_id INTEGER PRIMARY KEY);\nGO\n" +
				"WITH RECURSIVE spin(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM spin WHERE x < 1000000000) SELECT count(*) FROM spin;",
		})

		runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()

		_, err := db.Migrate(runCtx, fsys)
		if err == nil {
			t.Fatal("migration expected to fail")
		}

		var batchErr *database.BatchExecutionError
		if !errors.As(err, &batchErr) {
			t.Fatalf("expected BatchExecutionError, got %T: %v", err, err)
		}
		if batchErr.Name != "001_spin.sql" || batchErr.Batch != 1 {
			t.Errorf("expected second batch of 001_spin.sql to fail, got %+v", batchErr)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got: %v", err)
		}

		if tableExists(t, db, "games") {
			t.Error("expected first batch to be rolled back")
		}

		if len(ledgerRows(t, db)) != 0 {
			t.Error("expected no ledger record for interrupted migration")
		}
	})

	t.Run("cancelled context is not a ledger failure", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := db.Migrate(cancelled, scripts(map[string]string{
			"001_games.sql": "CREATE TABLE games (game_id INTEGER PRIMARY KEY);",
		}))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got: %v", err)
		}

		var ledgerErr *database.LedgerUnavailableError
		if errors.As(err, &ledgerErr) {
			t.Errorf("expected plain cancellation, got %T: %v", ledgerErr, err)
		}

		_, err = db.Plan(cancelled, fstest.MapFS{})
		if !errors.Is(err, context.Canceled) || errors.As(err, &ledgerErr) {
			t.Errorf("expected plain cancellation from plan, got: %v", err)
		}

		_, err = db.Records(cancelled)
		if !errors.Is(err, context.Canceled) || errors.As(err, &ledgerErr) {
			t.Errorf("expected plain cancellation from records, got: %v", err)
		}
	})

	t.Run("stops at first failing migration", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		fsys := scripts(map[string]string{
			"001_games.sql":    "CREATE TABLE games (game_id INTEGER PRIMARY KEY);",
			"002_failing.sql":  "not even SQL here",
			"003_sessions.sql": "CREATE TABLE sessions (session_id INTEGER PRIMARY KEY);",
		})

		report, err := db.Migrate(ctx, fsys)
		if err == nil {
			t.Fatal("migration expected to fail")
		}
		t.Logf("migration error: %s", err.Error())

		if !slices.Equal(statuses(report), []database.Status{database.StatusApplied}) {
			t.Errorf("expected only first migration in report, got %v", statuses(report))
		}

		rows := ledgerRows(t, db)
		if len(rows) != 1 || rows[0].Name != "001_games.sql" {
			t.Fatalf("expected only 001_games.sql in ledger, got %+v", rows)
		}

		if !tableExists(t, db, "games") {
			t.Error("expected first migration to stay committed")
		}

		if tableExists(t, db, "sessions") {
			t.Error("expected third migration not to be attempted")
		}
	})

	t.Run("applies in lexicographic order", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		fsys := scripts(map[string]string{
			"010_c.sql": "INSERT INTO applied_order (name) VALUES ('c');",
			"002_b.sql": "INSERT INTO applied_order (name) VALUES ('b');",
			"001_a.sql": "CREATE TABLE applied_order (seq INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);\nGO\nINSERT INTO applied_order (name) VALUES ('a');",
		})

		_, err := db.Migrate(ctx, fsys)
		if err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		var order []string
		err = db.Connection().Select(&order, "SELECT name FROM applied_order ORDER BY seq")
		if err != nil {
			t.Fatalf("failed to read order: %v", err)
		}

		if !slices.Equal(order, []string{"a", "b", "c"}) {
			t.Errorf("expected order a, b, c, got %v", order)
		}
	})

	t.Run("ledger failure rolls back migration", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		fsys := scripts(map[string]string{
			"001_games.sql": "CREATE TABLE games (game_id INTEGER PRIMARY KEY);\nGO\nDROP TABLE migration_history;",
		})

		_, err := db.Migrate(ctx, fsys)

		var recordErr *database.RecordError
		if !errors.As(err, &recordErr) {
			t.Fatalf("expected RecordError, got %T: %v", err, err)
		}

		if tableExists(t, db, "games") {
			t.Error("expected schema change to be rolled back with the ledger insert")
		}

		if !tableExists(t, db, "migration_history") {
			t.Error("expected ledger table to survive the rollback")
		}
	})

	t.Run("incompatible ledger table", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		_, err := db.Connection().Exec("CREATE TABLE migration_history (something_else TEXT)")
		if err != nil {
			t.Fatalf("failed to prepare table: %v", err)
		}

		_, err = db.Migrate(ctx, scripts(map[string]string{"001_games.sql": "CREATE TABLE games (id INTEGER);"}))

		var ledgerErr *database.LedgerUnavailableError
		if !errors.As(err, &ledgerErr) {
			t.Fatalf("expected LedgerUnavailableError, got %T: %v", err, err)
		}

		if tableExists(t, db, "games") {
			t.Error("expected no migration to be attempted")
		}
	})

	t.Run("unreadable file aborts before applying", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)
		fsys := brokenFS{
			MapFS: scripts(map[string]string{
				"001_games.sql":    "CREATE TABLE games (id INTEGER);",
				"002_sessions.sql": "CREATE TABLE sessions (id INTEGER);",
			}),
			broken: "002_sessions.sql",
		}

		_, err := db.Migrate(ctx, fsys)

		var readErr *database.SourceReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("expected SourceReadError, got %T: %v", err, err)
		}

		if tableExists(t, db, "games") {
			t.Error("expected no migration to be applied")
		}
	})

	t.Run("custom ledger table", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t, database.WithTable("schema_log"))

		_, err := db.Migrate(ctx, scripts(map[string]string{"001_games.sql": "CREATE TABLE games (id INTEGER);"}))
		if err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		if !tableExists(t, db, "schema_log") {
			t.Error("expected custom ledger table")
		}
		if tableExists(t, db, "migration_history") {
			t.Error("expected default ledger table to be absent")
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		t.Parallel()

		db := newSQLiteDatabase(t)

		report, err := db.Migrate(ctx, fstest.MapFS{})
		if err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}
		if len(report.Results) != 0 {
			t.Errorf("expected empty report, got %v", report.Results)
		}
		if !tableExists(t, db, "migration_history") {
			t.Error("expected ledger table to be created anyway")
		}
	})
}

func TestPlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newSQLiteDatabase(t)

	_, err := db.Migrate(ctx, scripts(map[string]string{
		"001_games.sql":   "CREATE TABLE games (id INTEGER);",
		"002_members.sql": "CREATE TABLE members (id INTEGER);",
	}))
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	results, err := db.Plan(ctx, scripts(map[string]string{
		"001_games.sql":    "CREATE TABLE games (id INTEGER);",
		"002_members.sql":  "CREATE TABLE members (id INTEGER, name TEXT);",
		"003_sessions.sql": "CREATE TABLE sessions (id INTEGER);",
	}))
	if err != nil {
		t.Fatalf("failed to plan: %v", err)
	}

	want := []database.Status{database.StatusSkipped, database.StatusChanged, database.StatusPending}
	got := make([]database.Status, 0, len(results))
	for _, r := range results {
		got = append(got, r.Status)
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if tableExists(t, db, "sessions") {
		t.Error("plan must not apply migrations")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("unsupported driver", func(t *testing.T) {
		t.Parallel()

		_, err := database.New("sqlserver", "whatever")
		if !errors.Is(err, database.ErrUnsupportedDriver) {
			t.Errorf("expected ErrUnsupportedDriver, got %v", err)
		}
	})

	t.Run("invalid table name", func(t *testing.T) {
		t.Parallel()

		_, err := database.New("sqlite", filepath.Join(t.TempDir(), "x.db"), database.WithTable("history; DROP TABLE games"))
		if !errors.Is(err, database.ErrInvalidTableName) {
			t.Errorf("expected ErrInvalidTableName, got %v", err)
		}
	})
}
