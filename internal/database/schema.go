package database

import (
	"context"
	"database/sql"
	"fmt"

	"schema-sync/internal/dialect"
	"schema-sync/internal/schema"

	"github.com/sirupsen/logrus"
)

// Introspect reads every base table of the connection's current database and
// its columns in native order. It is all-or-nothing: any failure returns a
// *ConnectionError and no mapping.
func Introspect(ctx context.Context, c *Connection) (schema.Mapping, error) {
	tableNames, err := ListTables(ctx, c)
	if err != nil {
		return schema.Mapping{}, &ConnectionError{Role: c.Role, Err: err}
	}

	tables := make([]*schema.TableSchema, 0, len(tableNames))
	for _, name := range tableNames {
		cols, err := queryStrings(ctx, c.DB, c.Dialect.ColumnsQuery(), name)
		if err != nil {
			return schema.Mapping{}, &ConnectionError{
				Role: c.Role,
				Err:  fmt.Errorf("failed to describe table %s: %w", name, err),
			}
		}
		tables = append(tables, schema.NewTableSchema(name, cols))
	}

	logrus.WithField("role", c.Role).Infof("Introspected %d tables", len(tables))
	return schema.NewMapping(tables...), nil
}

// ListTables returns the base tables of the current database in name order.
func ListTables(ctx context.Context, c *Connection) ([]string, error) {
	names, err := queryStrings(ctx, c.DB, c.Dialect.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// GetRowCount gets the total number of rows of a table
func GetRowCount(ctx context.Context, q dialect.Querier, d dialect.Dialect, tableName string) (int64, error) {
	rows, err := q.QueryContext(ctx, d.CountQuery(tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to count rows for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to count rows for table %s: %w", tableName, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to count rows for table %s: %w", tableName, err)
	}
	return count, nil
}

func queryStrings(ctx context.Context, q dialect.Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Session is one pinned target connection. Session-level settings such as
// the foreign key flag stay in effect for everything run through it.
type Session struct {
	conn    *sql.Conn
	dialect dialect.Dialect
}

// Session pins a connection from the pool until Close.
func (c *Connection) Session(ctx context.Context) (*Session, error) {
	conn, err := c.DB.Conn(ctx)
	if err != nil {
		return nil, &ConnectionError{Role: c.Role, Err: fmt.Errorf("failed to acquire session: %w", err)}
	}
	return &Session{conn: conn, dialect: c.Dialect}, nil
}

// Close returns the connection to the pool.
func (s *Session) Close() error { return s.conn.Close() }

func (s *Session) DisableForeignKeys(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, s.dialect.DisableForeignKeysQuery()); err != nil {
		return fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	return nil
}

func (s *Session) EnableForeignKeys(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, s.dialect.EnableForeignKeysQuery()); err != nil {
		return fmt.Errorf("failed to re-enable foreign key checks: %w", err)
	}
	return nil
}

// ForeignKeysEnabled reads the session's current enforcement flag.
func (s *Session) ForeignKeysEnabled(ctx context.Context) (bool, error) {
	var on int
	if err := s.conn.QueryRowContext(ctx, s.dialect.ForeignKeysEnabledQuery()).Scan(&on); err != nil {
		return false, fmt.Errorf("failed to read foreign key checks: %w", err)
	}
	return on == 1, nil
}
