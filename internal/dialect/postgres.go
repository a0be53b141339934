package dialect

import (
	"context"
	"fmt"

	"schema-sync/pkg/types"

	_ "github.com/lib/pq" // PostgreSQL Driver
)

// PostgresDialect supports introspection and drift detection. PostgreSQL has no
// SHOW CREATE TABLE, so replication of a table fails with ErrNoNativeDefinition
// rather than recreating an approximation.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "postgres" }
func (d *PostgresDialect) ServerScoped() bool { return true }
func (d *PostgresDialect) MaxOpenConns() int  { return 0 }

func (d *PostgresDialect) DSN(cfg types.Database, database string) string {
	if database == "" {
		database = "postgres"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, database)
}

func (d *PostgresDialect) Quote(ident string) string { return quoteWith(`"`, ident) }
func (d *PostgresDialect) QuoteChar() byte           { return '"' }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) MaxPlaceholders() int { return 65535 }

func (d *PostgresDialect) TablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`
}

func (d *PostgresDialect) ColumnsQuery() string {
	return `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`
}

func (d *PostgresDialect) DatabaseExistsQuery() string {
	return `SELECT COUNT(*) FROM pg_database WHERE datname = $1`
}

func (d *PostgresDialect) CreateDatabaseQuery(name string) string {
	return "CREATE DATABASE " + d.Quote(name)
}

func (d *PostgresDialect) TableDefinition(ctx context.Context, q Querier, table string) ([]string, error) {
	return nil, fmt.Errorf("table %s: %w", table, ErrNoNativeDefinition)
}

func (d *PostgresDialect) DropTableQuery(table string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(table)
}

func (d *PostgresDialect) SelectAllQuery(table string) string {
	return "SELECT * FROM " + d.Quote(table)
}

func (d *PostgresDialect) CountQuery(table string) string {
	return "SELECT COUNT(*) FROM " + d.Quote(table)
}

func (d *PostgresDialect) InsertQuery(table string, cols []string, rows int) string {
	return multiRowInsert(d, table, cols, rows)
}

// session_replication_role = replica skips FK triggers for this session.
func (d *PostgresDialect) DisableForeignKeysQuery() string {
	return "SET session_replication_role = replica"
}

func (d *PostgresDialect) EnableForeignKeysQuery() string {
	return "SET session_replication_role = origin"
}

func (d *PostgresDialect) ForeignKeysEnabledQuery() string {
	return "SELECT CASE WHEN current_setting('session_replication_role') = 'origin' THEN 1 ELSE 0 END"
}
