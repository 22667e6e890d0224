package database

import (
	"fmt"
	"regexp"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type dialect struct {
	name        string
	createTable string
	sleepQuery  string
}

var dialects = map[string]dialect{
	"postgres": {
		name: "postgres",
		createTable: `CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY,
	migration_name VARCHAR(255) NOT NULL,
	hash CHAR(64) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		sleepQuery: "SELECT pg_sleep($1)",
	},
	"sqlite": {
		name: "sqlite",
		createTable: `CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	migration_name VARCHAR(255) NOT NULL,
	hash CHAR(64) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		// sqlite has no sleep function, so count long enough to keep the engine busy
		sleepQuery: "WITH RECURSIVE spin(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM spin WHERE x < ? * 5000000) SELECT count(*) FROM spin",
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	return d, nil
}

func validateTableName(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}

// SleepQuery returns a query that blocks for roughly the number of seconds passed as its only argument.
// It returns an empty string for unknown drivers.
func SleepQuery(driver string) string {
	return dialects[driver].sleepQuery
}
