package database

import "time"

// MigrationFile is a migration script discovered in a migrations directory.
// Name is the file base name and identifies the migration in the ledger.
type MigrationFile struct {
	Name    string
	Content string
}

// MigrationRecord is a ledger row.
type MigrationRecord struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"migration_name" json:"name"`
	Hash      string    `db:"hash" json:"hash"`
	AppliedAt time.Time `db:"applied_at" json:"appliedAt"`
}

// Status describes what a run did with a migration file.
type Status string

const (
	// StatusSkipped means the ledger already holds the file's hash.
	StatusSkipped Status = "skipped"
	// StatusApplied means the file had no ledger record and was applied.
	StatusApplied Status = "applied"
	// StatusReapplied means the file changed since it was last applied and was applied again.
	StatusReapplied Status = "reapplied"
	// StatusPending means the file has no ledger record yet. Only reported by Runner.Plan.
	StatusPending Status = "pending"
	// StatusChanged means the file differs from the recorded hash. Only reported by Runner.Plan.
	StatusChanged Status = "changed"
)

// Result is the outcome for a single migration file.
type Result struct {
	Name   string `json:"name"`
	Hash   string `json:"hash"`
	Status Status `json:"status"`
}

// Report lists the outcome of every migration file a run classified, in apply order.
type Report struct {
	RunID   string   `json:"runId"`
	Results []Result `json:"results"`
}

// Count returns how many results have the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}
