package dialect

import (
	"context"
	"database/sql"
	"errors"

	"schema-sync/pkg/types"
)

// ErrNoNativeDefinition is returned by engines that cannot hand back the
// original CREATE TABLE text of a table.
var ErrNoNativeDefinition = errors.New("engine does not expose native table definitions")

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect abstracts database-specific operations.
type Dialect interface {
	Name() string
	DriverName() string
	// DSN builds a connection string; an empty database connects to the server only.
	DSN(cfg types.Database, database string) string
	// ServerScoped is true when databases live inside a server and must be created
	// through an administrative connection.
	ServerScoped() bool
	// MaxOpenConns caps the pool; 0 means no limit.
	MaxOpenConns() int

	// Identifiers and placeholders
	Quote(ident string) string
	QuoteChar() byte
	Placeholder(index int) string
	MaxPlaceholders() int

	// Catalog queries (Schema Introspection). ColumnsQuery takes the table name as
	// its only argument and returns names in ordinal order.
	TablesQuery() string
	ColumnsQuery() string
	DatabaseExistsQuery() string
	CreateDatabaseQuery(name string) string

	// TableDefinition returns the statements that recreate the table exactly as
	// declared at the source, CREATE TABLE first.
	TableDefinition(ctx context.Context, q Querier, table string) ([]string, error)

	// Query generation
	DropTableQuery(table string) string
	SelectAllQuery(table string) string
	CountQuery(table string) string
	InsertQuery(table string, cols []string, rows int) string

	// Referential integrity (session level)
	DisableForeignKeysQuery() string
	EnableForeignKeysQuery() string
	ForeignKeysEnabledQuery() string
}
