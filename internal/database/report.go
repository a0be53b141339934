package database

import (
	"fmt"
	"io"
	"time"
)

// MigrationReport aggregates every planned table's outcome in plan order.
type MigrationReport struct {
	Outcomes          []TableOutcome
	Attempted         int
	Succeeded         int
	RowsMigrated      int64
	IntegrityRestored bool
	Duration          time.Duration
}

func (r *MigrationReport) finalize(d time.Duration) {
	r.Attempted, r.Succeeded, r.RowsMigrated = len(r.Outcomes), 0, 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			r.Succeeded++
			r.RowsMigrated += o.Rows
		}
	}
	r.Duration = d
}

// Failed returns the outcomes that did not succeed.
func (r *MigrationReport) Failed() []TableOutcome {
	var failed []TableOutcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// HasConnectionLoss reports whether any table failed because a session died.
func (r *MigrationReport) HasConnectionLoss() bool {
	for _, o := range r.Outcomes {
		if IsConnectionError(o.Err) {
			return true
		}
	}
	return false
}

// Print writes a human-readable summary of the run.
func (r *MigrationReport) Print(w io.Writer) {
	fmt.Fprintln(w, "--- MIGRATION REPORT ---")
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusPopulated:
			fmt.Fprintf(w, "Table `%s`: structure recreated, %d records migrated\n", o.Table, o.Rows)
		case StatusEmpty:
			fmt.Fprintf(w, "Table `%s`: structure recreated, no data to migrate\n", o.Table)
		default:
			fmt.Fprintf(w, "Table `%s`: FAILED: %v\n", o.Table, o.Err)
		}
	}
	fmt.Fprintf(w, "\nTables attempted: %d, succeeded: %d, failed: %d\n", r.Attempted, r.Succeeded, r.Attempted-r.Succeeded)
	fmt.Fprintf(w, "Rows migrated: %d (duration=%s)\n", r.RowsMigrated, r.Duration.Round(time.Millisecond))
	if !r.IntegrityRestored {
		fmt.Fprintln(w, "WARNING: foreign key checks could not be verified as re-enabled at the target")
	}

	if r.Succeeded == r.Attempted {
		fmt.Fprintln(w, "\nMigration completed successfully!")
	} else {
		fmt.Fprintln(w, "\nMigration completed with failures.")
	}
}
