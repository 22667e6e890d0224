package database

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTableName is returned when the ledger table name is not a plain SQL identifier.
	ErrInvalidTableName = errors.New("invalid ledger table name")
	// ErrUnsupportedDriver is returned for database drivers without a ledger dialect.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// SourceReadError is returned when a migration file cannot be read.
type SourceReadError struct {
	Name string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("failed to read migration %s: %v", e.Name, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// LedgerUnavailableError is returned when the ledger table cannot be created or queried.
type LedgerUnavailableError struct {
	Op  string
	Err error
}

func (e *LedgerUnavailableError) Error() string {
	return fmt.Sprintf("migration ledger unavailable (%s): %v", e.Op, e.Err)
}

func (e *LedgerUnavailableError) Unwrap() error {
	return e.Err
}

// BatchExecutionError is returned when a batch of a migration fails.
// Batch is the zero-based position of the batch within the script.
type BatchExecutionError struct {
	Name  string
	Batch int
	Err   error
}

func (e *BatchExecutionError) Error() string {
	return fmt.Sprintf("failed to execute batch %d of migration %s: %v", e.Batch+1, e.Name, e.Err)
}

func (e *BatchExecutionError) Unwrap() error {
	return e.Err
}

// RecordError is returned when the ledger row of an executed migration cannot be written or committed.
// The migration's transaction is rolled back, so it is retried on the next run.
type RecordError struct {
	Name string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("failed to record migration %s: %v", e.Name, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
