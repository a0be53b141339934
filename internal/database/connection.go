package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"schema-sync/internal/dialect"
	"schema-sync/pkg/types"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	RoleSource = "source"
	RoleTarget = "target"
)

// Connection is an open pool to one database instance.
type Connection struct {
	Role     string
	Database string
	Dialect  dialect.Dialect
	DB       *sql.DB

	// orm is set for engines opened through GORM (MySQL) and carries
	// administrative statements the same way the pool does.
	orm *gorm.DB
}

// Connect opens and pings a connection to the configured database.
// Any failure is returned as a *ConnectionError.
func Connect(ctx context.Context, role string, cfg types.Database) (*Connection, error) {
	d, err := dialect.Get(cfg.Type)
	if err != nil {
		return nil, &ConnectionError{Role: role, Err: err}
	}

	conn := &Connection{Role: role, Database: cfg.Database, Dialect: d}
	dsn := d.DSN(cfg, cfg.Database)

	if d.Name() == "mysql" {
		conn.orm, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger: gormLogger(),
		})
		if err != nil {
			return nil, &ConnectionError{Role: role, Err: fmt.Errorf("failed to connect to %s database: %w", role, err)}
		}
		conn.DB, err = conn.orm.DB()
		if err != nil {
			return nil, &ConnectionError{Role: role, Err: fmt.Errorf("failed to get underlying sql.DB: %w", err)}
		}
	} else {
		conn.DB, err = sql.Open(d.DriverName(), dsn)
		if err != nil {
			return nil, &ConnectionError{Role: role, Err: fmt.Errorf("failed to connect to %s database: %w", role, err)}
		}
	}

	if n := d.MaxOpenConns(); n > 0 {
		conn.DB.SetMaxOpenConns(n)
	}

	if err := TestConnection(ctx, conn); err != nil {
		conn.DB.Close()
		return nil, &ConnectionError{Role: role, Err: err}
	}

	name := cfg.Database
	if name == "" {
		name = "(server)"
	}
	logrus.WithFields(logrus.Fields{"role": role, "type": d.Name()}).Infof("Connected to %s database: %s", role, name)
	return conn, nil
}

// gormLogger keeps GORM quiet unless debug logging is on; logged SQL would
// otherwise carry row values into the log file.
func gormLogger() logger.Interface {
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}

// EnsureDatabase creates the configured database if it does not exist yet,
// through an administrative connection that selects no database.
func EnsureDatabase(ctx context.Context, cfg types.Database) error {
	d, err := dialect.Get(cfg.Type)
	if err != nil {
		return err
	}

	if !d.ServerScoped() {
		// SQLite creates the file on first use; only the directory has to exist.
		if dir := filepath.Dir(cfg.Database); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory for database %s: %w", cfg.Database, err)
			}
		}
		return nil
	}

	admin, err := Connect(ctx, RoleTarget, cfg.WithoutDatabase())
	if err != nil {
		return err
	}
	defer CloseConnection(admin)

	exists, err := admin.count(ctx, d.DatabaseExistsQuery(), cfg.Database)
	if err != nil {
		return asConnectionLoss(RoleTarget, fmt.Errorf("failed to check database %s: %w", cfg.Database, err))
	}
	if exists > 0 {
		logrus.Infof("Target database %s already exists", cfg.Database)
		return nil
	}

	if err := admin.exec(ctx, d.CreateDatabaseQuery(cfg.Database)); err != nil {
		return asConnectionLoss(RoleTarget, fmt.Errorf("failed to create target database %s: %w", cfg.Database, err))
	}

	logrus.Infof("Target database %s created", cfg.Database)
	return nil
}

// exec runs a statement on the pool, through GORM when the connection has it.
func (c *Connection) exec(ctx context.Context, query string, args ...any) error {
	if c.orm != nil {
		return c.orm.WithContext(ctx).Exec(query, args...).Error
	}
	_, err := c.DB.ExecContext(ctx, query, args...)
	return err
}

// count runs a single-value COUNT style query.
func (c *Connection) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if c.orm != nil {
		err := c.orm.WithContext(ctx).Raw(query, args...).Scan(&n).Error
		return n, err
	}
	err := c.DB.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// TestConnection tests the database connection
func TestConnection(ctx context.Context, c *Connection) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// CloseConnection closes the database connection
func CloseConnection(c *Connection) error {
	if c == nil || c.DB == nil {
		return nil
	}
	if err := c.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
