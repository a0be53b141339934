package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"schema-sync/internal/database"
	"schema-sync/internal/schema"
	"schema-sync/pkg/types"
)

// Documents are parsed with the target engine's identifier quote.
const eventsDoc = `CREATE TABLE "events" (
  "id" INTEGER PRIMARY KEY,
  "name" TEXT NOT NULL,
  "start_date" TEXT
);
`

func setupCompare(t *testing.T, targetDDL string) (reportPath string) {
	t.Helper()
	dir := t.TempDir()

	schemaPath := filepath.Join(dir, "schema.sql")
	if err := os.WriteFile(schemaPath, []byte(eventsDoc), 0644); err != nil {
		t.Fatal(err)
	}

	target := types.Database{Type: "sqlite", Database: filepath.Join(dir, "live.db")}
	conn, err := database.Connect(context.Background(), database.RoleTarget, target)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.DB.Exec(targetDDL); err != nil {
		t.Fatal(err)
	}
	database.CloseConnection(conn)

	reportPath = filepath.Join(dir, "schema_report.txt")
	cfg = &types.Config{
		Target:  target,
		Compare: types.Compare{SchemaFile: schemaPath, ReportPath: reportPath},
	}
	compareCmd.SetContext(context.Background())
	return reportPath
}

func exitCodeOf(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if err != nil {
		return exitFailure
	}
	return exitOK
}

func TestCompareReportsDrift(t *testing.T) {
	reportPath := setupCompare(t, `CREATE TABLE events (id INTEGER PRIMARY KEY, name TEXT)`)

	err := runCompare(compareCmd, nil)
	if code := exitCodeOf(err); code != exitFailure || !errors.Is(err, errDrift) {
		t.Fatalf("expected drift exit, got %d (%v)", code, err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	want := schema.ReportHeader + "\n\nTable `events`:\n  [-] Missing columns in Prod: start_date\n"
	if string(data) != want {
		t.Errorf("report:\n%q\nwant:\n%q", data, want)
	}
}

func TestCompareNoDrift(t *testing.T) {
	reportPath := setupCompare(t, `CREATE TABLE events (id INTEGER PRIMARY KEY, name TEXT, start_date TEXT)`)

	if err := runCompare(compareCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(reportPath)
	if !strings.Contains(string(data), schema.NoDifferencesLine) {
		t.Errorf("unexpected report %q", data)
	}
}

func TestCompareUnreachableTarget(t *testing.T) {
	reportPath := setupCompare(t, `CREATE TABLE events (id INTEGER PRIMARY KEY)`)
	cfg.Target.Database = filepath.Join(t.TempDir(), "no", "such", "live.db")

	err := runCompare(compareCmd, nil)
	if code := exitCodeOf(err); code != exitConnection {
		t.Fatalf("expected connection exit code, got %d (%v)", code, err)
	}
	data, _ := os.ReadFile(reportPath)
	if strings.TrimSpace(string(data)) != schema.ReportFailedLine {
		t.Errorf("unexpected report %q", data)
	}
}

func TestCompareMissingSchemaFile(t *testing.T) {
	reportPath := setupCompare(t, `CREATE TABLE events (id INTEGER PRIMARY KEY)`)
	cfg.Compare.SchemaFile = filepath.Join(t.TempDir(), "missing.sql")

	err := runCompare(compareCmd, nil)
	if code := exitCodeOf(err); code != exitFailure {
		t.Fatalf("expected failure exit code, got %d (%v)", code, err)
	}
	if database.IsConnectionError(err) {
		t.Errorf("unreadable schema file reported as a connection failure: %v", err)
	}
	data, _ := os.ReadFile(reportPath)
	if strings.TrimSpace(string(data)) != schema.ReportFailedLine {
		t.Errorf("unexpected report %q", data)
	}
}

func TestMigrationWorkersUsesEngineLimit(t *testing.T) {
	dir := t.TempDir()
	source, err := database.Connect(context.Background(), database.RoleSource, types.Database{Type: "sqlite", Database: filepath.Join(dir, "source.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer database.CloseConnection(source)

	cfg = &types.Config{
		Target:    types.Database{Type: "sqlite", Database: filepath.Join(dir, "target.db")},
		Migration: types.Migration{Workers: 4},
	}
	workers, err := migrationWorkers(source)
	if err != nil {
		t.Fatal(err)
	}
	if workers != 1 {
		t.Errorf("workers = %d, want 1", workers)
	}

	cfg.Target.Type = "oracle"
	if _, err := migrationWorkers(source); err == nil {
		t.Error("expected an error for an unknown target type")
	}
}

func TestExitStatus(t *testing.T) {
	t.Setenv("LOG_PATH", filepath.Join(t.TempDir(), "none.log"))

	if got := exitStatus(nil); got != exitOK {
		t.Errorf("nil error -> %d", got)
	}
	if got := exitStatus(errors.New("plain")); got != exitFailure {
		t.Errorf("plain error -> %d", got)
	}
	if got := exitStatus(fail(exitConnection, &database.ConnectionError{Role: "target", Err: errors.New("refused")})); got != exitConnection {
		t.Errorf("connection error -> %d", got)
	}
}
