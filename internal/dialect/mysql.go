package dialect

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"schema-sync/pkg/types"

	"github.com/go-sql-driver/mysql"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string       { return "mysql" }
func (d *MysqlDialect) DriverName() string { return "mysql" }
func (d *MysqlDialect) ServerScoped() bool { return true }
func (d *MysqlDialect) MaxOpenConns() int  { return 0 }

// DSN keeps parseTime off so rows travel as raw driver values and zero dates
// survive the copy unchanged.
func (d *MysqlDialect) DSN(cfg types.Database, database string) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = database
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

func (d *MysqlDialect) Quote(ident string) string    { return quoteWith("`", ident) }
func (d *MysqlDialect) QuoteChar() byte              { return '`' }
func (d *MysqlDialect) Placeholder(index int) string { return "?" }
func (d *MysqlDialect) MaxPlaceholders() int         { return 65535 }

func (d *MysqlDialect) TablesQuery() string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MysqlDialect) ColumnsQuery() string {
	return `SELECT COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
}

func (d *MysqlDialect) DatabaseExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?`
}

func (d *MysqlDialect) CreateDatabaseQuery(name string) string {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", d.Quote(name))
}

// TableDefinition uses SHOW CREATE TABLE, which already carries indexes,
// defaults and constraints.
func (d *MysqlDialect) TableDefinition(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SHOW CREATE TABLE "+d.Quote(table))
	if err != nil {
		return nil, fmt.Errorf("failed to get schema for table %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get schema for table %s: %w", table, err)
		}
		return nil, fmt.Errorf("no definition returned for table %s", table)
	}

	var name, createTableSQL string
	if err := rows.Scan(&name, &createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to get schema for table %s: %w", table, err)
	}
	return []string{createTableSQL}, rows.Err()
}

func (d *MysqlDialect) DropTableQuery(table string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(table)
}

func (d *MysqlDialect) SelectAllQuery(table string) string {
	return "SELECT * FROM " + d.Quote(table)
}

func (d *MysqlDialect) CountQuery(table string) string {
	return "SELECT COUNT(*) FROM " + d.Quote(table)
}

func (d *MysqlDialect) InsertQuery(table string, cols []string, rows int) string {
	return multiRowInsert(d, table, cols, rows)
}

func (d *MysqlDialect) DisableForeignKeysQuery() string { return "SET FOREIGN_KEY_CHECKS = 0" }
func (d *MysqlDialect) EnableForeignKeysQuery() string  { return "SET FOREIGN_KEY_CHECKS = 1" }
func (d *MysqlDialect) ForeignKeysEnabledQuery() string { return "SELECT @@SESSION.foreign_key_checks" }
