package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"schema-sync/pkg/types"

	"github.com/brianvoe/gofakeit/v6"
)

func sqliteConfig(t *testing.T, name string) types.Database {
	t.Helper()
	return types.Database{Type: "sqlite", Database: filepath.Join(t.TempDir(), name)}
}

func openSQLite(t *testing.T, cfg types.Database) *Connection {
	t.Helper()
	conn, err := Connect(context.Background(), RoleSource, cfg)
	if err != nil {
		t.Fatalf("connect %s: %v", cfg.Database, err)
	}
	t.Cleanup(func() { CloseConnection(conn) })
	return conn
}

func mustExec(t *testing.T, c *Connection, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if _, err := c.DB.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

func rowCount(t *testing.T, c *Connection, table string) int64 {
	t.Helper()
	n, err := GetRowCount(context.Background(), c.DB, c.Dialect, table)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

const archersDDL = `CREATE TABLE archers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	club TEXT,
	joined_at TEXT
)`

// suspendedArcherTrigger rejects archer 700. It is created after seeding and
// replayed at the target with the table definition.
const suspendedArcherTrigger = `CREATE TRIGGER archers_suspended BEFORE INSERT ON archers
	FOR EACH ROW WHEN NEW.id = 700
	BEGIN SELECT RAISE(ABORT, 'archer 700 is suspended'); END`

// seedArchers inserts n archers with fake but stable data.
func seedArchers(t *testing.T, c *Connection, n int) {
	t.Helper()
	faker := gofakeit.New(42)

	tx, err := c.DB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= n; i++ {
		_, err := tx.Exec(`INSERT INTO archers (id, name, email, club, joined_at) VALUES (?, ?, ?, ?, ?)`,
			i, faker.Name(), faker.Email(), faker.City()+" Archery Club", faker.Date().Format("2006-01-02"))
		if err != nil {
			tx.Rollback()
			t.Fatal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

// recorder is a ProgressReporter that keeps every call.
type recorder struct {
	mu       sync.Mutex
	started  map[string]int64
	batches  map[string][]int
	finished []TableOutcome
}

func newRecorder() *recorder {
	return &recorder{started: map[string]int64{}, batches: map[string][]int{}}
}

func (r *recorder) TableStarted(table string, totalRows int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[table] = totalRows
}

func (r *recorder) BatchCopied(table string, batch int, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[table] = append(r.batches[table], rows)
}

func (r *recorder) TableFinished(outcome TableOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, outcome)
}
