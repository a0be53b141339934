package dialect

import "fmt"

// Get returns the Dialect implementation for a configured database type.
func Get(dbType string) (Dialect, error) {
	switch dbType {
	case "mysql", "mariadb":
		return &MysqlDialect{}, nil
	case "sqlite", "sqlite3":
		return &SQLiteDialect{}, nil
	case "postgres", "postgresql":
		return &PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
var _ Dialect = (*SQLiteDialect)(nil)
var _ Dialect = (*PostgresDialect)(nil)
