package database

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

// newSession pins a target session. SQLite pools hold a single connection, so
// tests close it before querying the target through the pool.
func newSession(t *testing.T, c *Connection) *Session {
	t.Helper()
	s, err := c.Session(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReplicateTableCopiesInBatches(t *testing.T) {
	ctx := context.Background()
	source := openSQLite(t, sqliteConfig(t, "source.db"))
	target := openSQLite(t, sqliteConfig(t, "target.db"))

	mustExec(t, source, archersDDL, `CREATE INDEX idx_archers_email ON archers (email)`)
	seedArchers(t, source, 1237)

	rec := newRecorder()
	session := newSession(t, target)
	outcome := ReplicateTable(ctx, source, session, "archers", ReplicateOptions{
		ChunkSize:      500,
		ValidateCounts: true,
		Progress:       rec,
	})
	session.Close()

	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.Status != StatusPopulated || outcome.Rows != 1237 || outcome.Batches != 3 {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if got := rec.batches["archers"]; !slices.Equal(got, []int{500, 500, 237}) {
		t.Errorf("batches = %v, want [500 500 237]", got)
	}
	if rec.started["archers"] != 1237 {
		t.Errorf("started total = %d, want 1237", rec.started["archers"])
	}
	if got := rowCount(t, target, "archers"); got != 1237 {
		t.Errorf("target rows = %d, want 1237", got)
	}

	var indexes int
	if err := target.DB.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_archers_email'`).Scan(&indexes); err != nil {
		t.Fatal(err)
	}
	if indexes != 1 {
		t.Error("index was not recreated at the target")
	}

	var srcName, dstName string
	source.DB.QueryRow(`SELECT name FROM archers WHERE id = 777`).Scan(&srcName)
	target.DB.QueryRow(`SELECT name FROM archers WHERE id = 777`).Scan(&dstName)
	if srcName == "" || srcName != dstName {
		t.Errorf("row 777 differs: source %q, target %q", srcName, dstName)
	}
}

func TestReplicateTableEmpty(t *testing.T) {
	source := openSQLite(t, sqliteConfig(t, "source.db"))
	target := openSQLite(t, sqliteConfig(t, "target.db"))
	mustExec(t, source, archersDDL)

	rec := newRecorder()
	session := newSession(t, target)
	outcome := ReplicateTable(context.Background(), source, session, "archers", ReplicateOptions{
		ChunkSize:      500,
		ValidateCounts: true,
		Progress:       rec,
	})
	session.Close()

	if outcome.Err != nil || outcome.Status != StatusEmpty {
		t.Fatalf("expected empty outcome, got %+v", outcome)
	}
	if len(rec.batches["archers"]) != 0 {
		t.Errorf("expected no insert operations, got %v", rec.batches["archers"])
	}
	if got := rowCount(t, target, "archers"); got != 0 {
		t.Errorf("target rows = %d, want 0", got)
	}
}

func TestReplicateTableIsIdempotent(t *testing.T) {
	source := openSQLite(t, sqliteConfig(t, "source.db"))
	target := openSQLite(t, sqliteConfig(t, "target.db"))
	mustExec(t, source, archersDDL)
	seedArchers(t, source, 10)

	session := newSession(t, target)
	for run := 1; run <= 2; run++ {
		outcome := ReplicateTable(context.Background(), source, session, "archers", ReplicateOptions{ChunkSize: 4})
		if outcome.Err != nil {
			t.Fatalf("run %d: %v", run, outcome.Err)
		}
		if outcome.Batches != 3 {
			t.Errorf("run %d: batches = %d, want 3", run, outcome.Batches)
		}
	}
	session.Close()

	if got := rowCount(t, target, "archers"); got != 10 {
		t.Errorf("target rows = %d after two runs, want 10", got)
	}
}

func TestReplicateTableRollsBackFailedBatch(t *testing.T) {
	source := openSQLite(t, sqliteConfig(t, "source.db"))
	target := openSQLite(t, sqliteConfig(t, "target.db"))
	mustExec(t, source, archersDDL)
	seedArchers(t, source, 1237)
	mustExec(t, source, suspendedArcherTrigger)

	rec := newRecorder()
	session := newSession(t, target)
	outcome := ReplicateTable(context.Background(), source, session, "archers", ReplicateOptions{
		ChunkSize:      500,
		ValidateCounts: true,
		Progress:       rec,
	})
	session.Close()

	var copyErr *DataCopyError
	if !errors.As(outcome.Err, &copyErr) || copyErr.Table != "archers" || copyErr.Batch != 2 {
		t.Fatalf("expected DataCopyError at batch 2, got %v", outcome.Err)
	}
	if IsConnectionError(outcome.Err) {
		t.Errorf("a rejected row is not a connection failure: %v", outcome.Err)
	}
	if outcome.Status != StatusFailed || outcome.Rows != 0 {
		t.Errorf("rolled back table reported %d rows with status %s", outcome.Rows, outcome.Status)
	}
	if got := rec.batches["archers"]; !slices.Equal(got, []int{500}) {
		t.Errorf("batches = %v, want [500]", got)
	}
	if len(rec.finished) != 1 || rec.finished[0].Rows != 0 {
		t.Errorf("finished outcomes = %+v", rec.finished)
	}
	if got := rowCount(t, target, "archers"); got != 0 {
		t.Errorf("target rows = %d, want 0 after rollback", got)
	}
}

func TestReplicateTableMissingSourceTable(t *testing.T) {
	source := openSQLite(t, sqliteConfig(t, "source.db"))
	target := openSQLite(t, sqliteConfig(t, "target.db"))

	outcome := ReplicateTable(context.Background(), source, newSession(t, target), "ghosts", ReplicateOptions{ChunkSize: 500})

	var structErr *StructuralApplyError
	if !errors.As(outcome.Err, &structErr) || structErr.Table != "ghosts" {
		t.Fatalf("expected StructuralApplyError, got %v", outcome.Err)
	}
	if outcome.Status != StatusFailed {
		t.Errorf("status = %s, want failed", outcome.Status)
	}
}

func TestReplicateTableTargetRejectsDefinition(t *testing.T) {
	source := openSQLite(t, sqliteConfig(t, "source.db"))
	target := openSQLite(t, sqliteConfig(t, "target.db"))
	mustExec(t, source, archersDDL)
	mustExec(t, target, `CREATE VIEW archers AS SELECT 1 AS id`)

	outcome := ReplicateTable(context.Background(), source, newSession(t, target), "archers", ReplicateOptions{ChunkSize: 500})

	var structErr *StructuralApplyError
	if !errors.As(outcome.Err, &structErr) {
		t.Fatalf("expected StructuralApplyError, got %v", outcome.Err)
	}
	if IsConnectionError(outcome.Err) {
		t.Error("a rejected definition is not a connection failure")
	}
}

func TestReplicateTableTimeoutIsTableScoped(t *testing.T) {
	source := openSQLite(t, sqliteConfig(t, "source.db"))
	target := openSQLite(t, sqliteConfig(t, "target.db"))
	mustExec(t, source, archersDDL)
	seedArchers(t, source, 5)

	outcome := ReplicateTable(context.Background(), source, newSession(t, target), "archers", ReplicateOptions{
		ChunkSize:    500,
		QueryTimeout: time.Nanosecond,
	})

	if outcome.Status != StatusFailed {
		t.Fatalf("expected a failed outcome, got %+v", outcome)
	}
	if IsConnectionError(outcome.Err) {
		t.Errorf("timeout must not be reported as connection loss: %v", outcome.Err)
	}
}

func TestWindowSize(t *testing.T) {
	tests := []struct {
		chunk, cols, limit, want int
	}{
		{500, 5, 65535, 500},
		{500, 100, 32766, 327},
		{500, 70000, 65535, 1},
		{500, 0, 65535, 500},
	}
	for _, tt := range tests {
		if got := windowSize(tt.chunk, tt.cols, tt.limit); got != tt.want {
			t.Errorf("windowSize(%d, %d, %d) = %d, want %d", tt.chunk, tt.cols, tt.limit, got, tt.want)
		}
	}
}
