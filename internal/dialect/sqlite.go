package dialect

import (
	"context"
	"fmt"

	"schema-sync/pkg/types"

	_ "modernc.org/sqlite" // SQLite Driver
)

// SQLiteDialect targets file databases through the pure-Go modernc driver.
// Foreign keys are enforced on every connection, as on a server engine.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }
func (d *SQLiteDialect) ServerScoped() bool { return false }

// MaxOpenConns is 1: PRAGMA state is per connection and writers serialize anyway.
func (d *SQLiteDialect) MaxOpenConns() int { return 1 }

func (d *SQLiteDialect) DSN(cfg types.Database, database string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", database)
}

func (d *SQLiteDialect) Quote(ident string) string    { return quoteWith(`"`, ident) }
func (d *SQLiteDialect) QuoteChar() byte              { return '"' }
func (d *SQLiteDialect) Placeholder(index int) string { return "?" }
func (d *SQLiteDialect) MaxPlaceholders() int         { return 32766 }

func (d *SQLiteDialect) TablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

func (d *SQLiteDialect) ColumnsQuery() string {
	return `SELECT name FROM pragma_table_info(?) ORDER BY cid`
}

// The file is the database; nothing to create ahead of connecting.
func (d *SQLiteDialect) DatabaseExistsQuery() string            { return "" }
func (d *SQLiteDialect) CreateDatabaseQuery(name string) string { return "" }

// TableDefinition returns the stored CREATE TABLE text followed by the table's
// explicit indexes and triggers, which SQLite keeps as separate statements.
func (d *SQLiteDialect) TableDefinition(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT sql FROM sqlite_master
		WHERE tbl_name = ? AND sql IS NOT NULL AND type IN ('table', 'index', 'trigger')
		ORDER BY CASE type WHEN 'table' THEN 0 WHEN 'index' THEN 1 ELSE 2 END, name`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema for table %s: %w", table, err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, fmt.Errorf("failed to scan schema for table %s: %w", table, err)
		}
		stmts = append(stmts, stmt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get schema for table %s: %w", table, err)
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("no definition returned for table %s", table)
	}
	return stmts, nil
}

func (d *SQLiteDialect) DropTableQuery(table string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(table)
}

func (d *SQLiteDialect) SelectAllQuery(table string) string {
	return "SELECT * FROM " + d.Quote(table)
}

func (d *SQLiteDialect) CountQuery(table string) string {
	return "SELECT COUNT(*) FROM " + d.Quote(table)
}

func (d *SQLiteDialect) InsertQuery(table string, cols []string, rows int) string {
	return multiRowInsert(d, table, cols, rows)
}

func (d *SQLiteDialect) DisableForeignKeysQuery() string { return "PRAGMA foreign_keys = OFF" }
func (d *SQLiteDialect) EnableForeignKeysQuery() string  { return "PRAGMA foreign_keys = ON" }
func (d *SQLiteDialect) ForeignKeysEnabledQuery() string { return "PRAGMA foreign_keys" }
