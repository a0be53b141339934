package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TableStatus is the terminal state of one replicated table.
type TableStatus int

const (
	StatusFailed TableStatus = iota
	StatusPopulated
	StatusEmpty
)

func (s TableStatus) String() string {
	switch s {
	case StatusPopulated:
		return "populated"
	case StatusEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// TableOutcome is the result of replicating one table. It is never retried.
type TableOutcome struct {
	Table    string
	Status   TableStatus
	Rows     int64
	Batches  int
	Err      error
	Duration time.Duration
}

// Succeeded is true for Populated and Empty outcomes.
func (o TableOutcome) Succeeded() bool { return o.Status != StatusFailed }

// ProgressReporter receives per-table progress. Implementations must be safe
// for concurrent use when more than one worker runs.
type ProgressReporter interface {
	TableStarted(table string, totalRows int64)
	BatchCopied(table string, batch int, rows int)
	TableFinished(outcome TableOutcome)
}

type nopReporter struct{}

func (nopReporter) TableStarted(string, int64)   {}
func (nopReporter) BatchCopied(string, int, int) {}
func (nopReporter) TableFinished(TableOutcome)   {}

// ReplicateOptions controls a single table replication.
type ReplicateOptions struct {
	// ChunkSize is the maximum number of rows per insert statement.
	ChunkSize int
	// QueryTimeout bounds every statement; 0 disables it.
	QueryTimeout time.Duration
	// ValidateCounts compares the committed target row count with rows copied.
	ValidateCounts bool
	Progress       ProgressReporter
}

// ReplicateTable recreates table at the target exactly as declared at the
// source (destructively) and copies every row in windows of at most
// ChunkSize rows, committing once at the end. Every failure is table-scoped
// and carried in the returned outcome.
func ReplicateTable(ctx context.Context, source *Connection, target *Session, table string, opts ReplicateOptions) TableOutcome {
	startTime := time.Now()
	if opts.Progress == nil {
		opts.Progress = nopReporter{}
	}
	logger := logrus.WithField("table", table)

	outcome := TableOutcome{Table: table}
	finish := func(err error) TableOutcome {
		outcome.Duration = time.Since(startTime)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Err = err
			withErrorFields(logger, err).Error("Table replication failed")
		}
		opts.Progress.TableFinished(outcome)
		return outcome
	}

	if err := recreateTable(ctx, source, target, table, opts.QueryTimeout); err != nil {
		return finish(err)
	}
	logger.Info("Table structure recreated")

	totalRows, err := withTimeout(ctx, opts.QueryTimeout, func(ctx context.Context) (int64, error) {
		return GetRowCount(ctx, source.DB, source.Dialect, table)
	})
	if err != nil {
		return finish(&DataCopyError{Table: table, Err: asConnectionLoss(RoleSource, err)})
	}
	opts.Progress.TableStarted(table, totalRows)

	rows, batches, err := copyRows(ctx, source, target, table, opts, logger)
	outcome.Rows, outcome.Batches = rows, batches
	if err != nil {
		return finish(err)
	}

	if rows == 0 {
		outcome.Status = StatusEmpty
		logger.Info("No data to migrate")
		return finish(nil)
	}

	if opts.ValidateCounts {
		if err := validateCount(ctx, target, table, rows, opts.QueryTimeout); err != nil {
			return finish(err)
		}
	}

	outcome.Status = StatusPopulated
	logger.Infof("%d records migrated (%d batches, duration=%s)", rows, batches, time.Since(startTime))
	return finish(nil)
}

// recreateTable drops the target table and replays the source's own
// definition statements.
func recreateTable(ctx context.Context, source *Connection, target *Session, table string, timeout time.Duration) error {
	stmts, err := withTimeout(ctx, timeout, func(ctx context.Context) ([]string, error) {
		return source.Dialect.TableDefinition(ctx, source.DB, table)
	})
	if err != nil {
		return &StructuralApplyError{Table: table, Err: asConnectionLoss(RoleSource, err)}
	}

	stmts = append([]string{target.dialect.DropTableQuery(table)}, stmts...)
	for _, stmt := range stmts {
		_, err := withTimeout(ctx, timeout, func(ctx context.Context) (sql.Result, error) {
			return target.conn.ExecContext(ctx, stmt)
		})
		if err != nil {
			return &StructuralApplyError{Table: table, Err: asConnectionLoss(RoleTarget, err)}
		}
	}
	return nil
}

// copyRows streams the source table and inserts it window by window inside a
// single target transaction. No transaction is opened for an empty table. On
// failure the transaction is rolled back and no rows are reported as copied.
func copyRows(ctx context.Context, source *Connection, target *Session, table string, opts ReplicateOptions, logger *logrus.Entry) (int64, int, error) {
	scanCtx, cancel := timeoutContext(ctx, opts.QueryTimeout)
	defer cancel()

	rows, err := source.DB.QueryContext(scanCtx, source.Dialect.SelectAllQuery(table))
	if err != nil {
		return 0, 0, &DataCopyError{Table: table, Err: asConnectionLoss(RoleSource, fmt.Errorf("failed to execute select query: %w", err))}
	}
	defer rows.Close()

	// Column order comes from the result set, not from any schema model.
	columns, err := rows.Columns()
	if err != nil {
		return 0, 0, &DataCopyError{Table: table, Err: fmt.Errorf("failed to read result columns: %w", err)}
	}

	chunkSize := windowSize(opts.ChunkSize, len(columns), target.dialect.MaxPlaceholders())
	if chunkSize < opts.ChunkSize {
		logger.Warnf("Chunk size reduced from %d to %d to stay within %d placeholders", opts.ChunkSize, chunkSize, target.dialect.MaxPlaceholders())
	}

	var (
		tx       *sql.Tx
		window   = make([]any, 0, chunkSize*len(columns))
		pending  int
		migrated int64
		batch    int
	)

	rollback := func() {
		if tx != nil {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Warnf("Rollback failed: %v", err)
			}
		}
	}

	flush := func() error {
		if pending == 0 {
			return nil
		}
		batch++
		if tx == nil {
			var err error
			if tx, err = target.conn.BeginTx(ctx, nil); err != nil {
				return asConnectionLoss(RoleTarget, fmt.Errorf("failed to begin transaction: %w", err))
			}
		}

		query := target.dialect.InsertQuery(table, columns, pending)
		if _, err := withTimeout(ctx, opts.QueryTimeout, func(ctx context.Context) (sql.Result, error) {
			return tx.ExecContext(ctx, query, window...)
		}); err != nil {
			return asConnectionLoss(RoleTarget, fmt.Errorf("failed to execute batch insert: %w", err))
		}

		migrated += int64(pending)
		logger.Debugf("Completed batch %d: %d rows (%d total)", batch, pending, migrated)
		opts.Progress.BatchCopied(table, batch, pending)

		window = window[:0]
		pending = 0
		return nil
	}

	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			rollback()
			return 0, batch, &DataCopyError{Table: table, Batch: batch + 1, Err: fmt.Errorf("failed to scan row: %w", err)}
		}

		window = append(window, values...)
		pending++
		if pending == chunkSize {
			if err := flush(); err != nil {
				rollback()
				return 0, batch, &DataCopyError{Table: table, Batch: batch, Err: err}
			}
		}
	}
	if err := rows.Err(); err != nil {
		rollback()
		return 0, batch, &DataCopyError{Table: table, Batch: batch + 1, Err: asConnectionLoss(RoleSource, fmt.Errorf("failed to read source rows: %w", err))}
	}

	if err := flush(); err != nil {
		rollback()
		return 0, batch, &DataCopyError{Table: table, Batch: batch, Err: err}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return 0, batch, &DataCopyError{Table: table, Err: asConnectionLoss(RoleTarget, fmt.Errorf("failed to commit: %w", err))}
		}
	}
	return migrated, batch, nil
}

// windowSize shrinks chunkSize so one insert stays within the engine's
// placeholder limit.
func windowSize(chunkSize, columns, maxPlaceholders int) int {
	if columns == 0 || maxPlaceholders <= 0 {
		return chunkSize
	}
	if limit := maxPlaceholders / columns; limit < chunkSize {
		return max(limit, 1)
	}
	return chunkSize
}

func validateCount(ctx context.Context, target *Session, table string, copied int64, timeout time.Duration) error {
	count, err := withTimeout(ctx, timeout, func(ctx context.Context) (int64, error) {
		return GetRowCount(ctx, target.conn, target.dialect, table)
	})
	if err != nil {
		return &DataCopyError{Table: table, Err: asConnectionLoss(RoleTarget, err)}
	}
	if count != copied {
		return &DataCopyError{Table: table, Err: fmt.Errorf("migration validation failed: copied %d rows, target has %d rows", copied, count)}
	}
	return nil
}

func timeoutContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// withTimeout runs fn under a per-statement deadline.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := timeoutContext(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
