package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// ConnectionError means a connection to the source or target could not be
// established or was lost. Callers should exit immediately (non-zero) when it
// is returned from Connect, Introspect or Migrate.
type ConnectionError struct {
	Role string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Role, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StructuralApplyError is a table-scoped failure to read the source definition
// or recreate it at the target.
type StructuralApplyError struct {
	Table string
	Err   error
}

func (e *StructuralApplyError) Error() string {
	return fmt.Sprintf("failed to recreate table %s: %v", e.Table, e.Err)
}

func (e *StructuralApplyError) Unwrap() error { return e.Err }

// DataCopyError is a table-scoped failure while streaming, inserting,
// committing or validating rows. Batch is 0 when no batch was in flight.
type DataCopyError struct {
	Table string
	Batch int
	Err   error
}

func (e *DataCopyError) Error() string {
	if e.Batch > 0 {
		return fmt.Sprintf("failed to copy table %s at batch %d: %v", e.Table, e.Batch, e.Err)
	}
	return fmt.Sprintf("failed to copy table %s: %v", e.Table, e.Err)
}

func (e *DataCopyError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err carries a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// isConnectionLoss classifies driver errors that mean the session is gone.
// Timeouts and cancellations are not connection loss.
func isConnectionLoss(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// asConnectionLoss wraps err as a ConnectionError for role when the driver
// reports a dead session, leaving every other error untouched.
func asConnectionLoss(role string, err error) error {
	if isConnectionLoss(err) {
		return &ConnectionError{Role: role, Err: err}
	}
	return err
}

// withErrorFields attaches err and, for MySQL server errors, its error number.
func withErrorFields(entry *logrus.Entry, err error) *logrus.Entry {
	entry = entry.WithError(err)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		entry = entry.WithField("mysql_errno", myErr.Number)
	}
	return entry
}
