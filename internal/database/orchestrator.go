package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"schema-sync/internal/dialect"
	"schema-sync/pkg/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Phases of a migration run, logged as state transitions.
const (
	PhaseConnectingTarget  = "connecting_target"
	PhaseEnsuringTargetDB  = "ensuring_target_db"
	PhaseDisablingFKChecks = "disabling_fk_checks"
	PhaseReplicating       = "replicating"
	PhaseEnablingFKChecks  = "enabling_fk_checks"
	PhaseDone              = "done"
)

// restoreTimeout bounds re-enabling foreign key checks after the run context
// has been cancelled.
const restoreTimeout = 30 * time.Second

// MigrationPlan is the snapshot of source tables taken once at run start.
type MigrationPlan struct {
	tables []string
}

// NewMigrationPlan lists the source tables. Tables created at the source after
// this point are not part of the run.
func NewMigrationPlan(ctx context.Context, source *Connection) (*MigrationPlan, error) {
	tables, err := ListTables(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("migration plan interrupted: %w", context.Cause(ctx))
		}
		return nil, &ConnectionError{Role: source.Role, Err: err}
	}
	return &MigrationPlan{tables: tables}, nil
}

// Tables returns a copy of the planned table names in order.
func (p *MigrationPlan) Tables() []string { return slices.Clone(p.tables) }

func (p *MigrationPlan) Len() int { return len(p.tables) }

// Describe writes the plan with each table's current source row count. It
// touches nothing at the target.
func (p *MigrationPlan) Describe(ctx context.Context, source *Connection, w io.Writer) error {
	fmt.Fprintf(w, "Found %d tables to migrate\n", len(p.tables))
	var total int64
	for _, table := range p.tables {
		count, err := GetRowCount(ctx, source.DB, source.Dialect, table)
		if err != nil {
			return asConnectionLoss(RoleSource, err)
		}
		total += count
		fmt.Fprintf(w, "  - %s: %d rows\n", table, count)
	}
	fmt.Fprintf(w, "[DRY RUN] Would migrate %d rows\n", total)
	return nil
}

// Migrate replicates every source table into the target database described by
// targetCfg. The target database is created when missing (if configured) and
// foreign key checks are disabled on every worker session for the whole run
// and always restored afterwards.
//
// The returned error is a *ConnectionError when a connection could not be
// established before any table was touched, in which case the report is nil.
// Per-table failures are recorded in the report only. A non-nil report with
// a non-nil error means the integrity flag could not be restored.
func Migrate(ctx context.Context, source *Connection, targetCfg types.Database, opts *types.Migration, reporter ProgressReporter) (report *MigrationReport, err error) {
	startTime := time.Now()
	if reporter == nil {
		reporter = nopReporter{}
	}
	targetDialect, err := dialect.Get(targetCfg.Type)
	if err != nil {
		return nil, err
	}
	if source.Dialect.Name() != targetDialect.Name() {
		return nil, fmt.Errorf("cross-engine migration is not supported: source is %s, target is %s", source.Dialect.Name(), targetDialect.Name())
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("migration interrupted before start: %w", context.Cause(ctx))
	}
	plan, err := NewMigrationPlan(ctx, source)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Found %d tables to migrate: %v", plan.Len(), plan.tables)

	if opts.CreateDatabase {
		logPhase(PhaseEnsuringTargetDB)
		if err := EnsureDatabase(ctx, targetCfg); err != nil {
			if !IsConnectionError(err) {
				err = &ConnectionError{Role: RoleTarget, Err: err}
			}
			return nil, err
		}
	}

	logPhase(PhaseConnectingTarget)
	target, err := Connect(ctx, RoleTarget, targetCfg)
	if err != nil {
		return nil, err
	}
	defer CloseConnection(target)

	workers := EffectiveWorkers(opts.Workers, source.Dialect, target.Dialect)
	if workers < opts.Workers {
		logrus.Warnf("%s supports %d connection(s); using %d worker(s) instead of %d", target.Dialect.Name(), workers, workers, opts.Workers)
	}
	sessions, err := openSessions(ctx, target, workers)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, s := range sessions {
			s.Close()
		}
	}()

	logPhase(PhaseDisablingFKChecks)
	for i, s := range sessions {
		if err := s.DisableForeignKeys(ctx); err != nil {
			restoreForeignKeys(ctx, sessions[:i])
			return nil, asConnectionLoss(RoleTarget, err)
		}
	}

	report = &MigrationReport{Outcomes: make([]TableOutcome, plan.Len())}

	// Every session that had checks disabled gets them back, whatever happens
	// to the tables.
	defer func() {
		logPhase(PhaseEnablingFKChecks)
		restoreErr := restoreForeignKeys(ctx, sessions)
		report.IntegrityRestored = restoreErr == nil
		report.finalize(time.Since(startTime))
		err = errors.Join(err, restoreErr)
		logPhase(PhaseDone)
	}()

	logPhase(PhaseReplicating)
	logrus.Infof("Replicating %d tables with %d worker(s), chunk size %d", plan.Len(), workers, opts.ChunkSize)

	free := make(chan *Session, len(sessions))
	for _, s := range sessions {
		free <- s
	}

	replicateOpts := ReplicateOptions{
		ChunkSize:      opts.ChunkSize,
		QueryTimeout:   opts.QueryTimeout,
		ValidateCounts: opts.ValidateCounts,
		Progress:       reporter,
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, table := range plan.tables {
		i, table := i, table
		g.Go(func() error {
			if ctx.Err() != nil {
				report.Outcomes[i] = TableOutcome{Table: table, Status: StatusFailed, Err: context.Cause(ctx)}
				reporter.TableFinished(report.Outcomes[i])
				return nil
			}
			s := <-free
			defer func() { free <- s }()

			logrus.Infof("Migrating table %d/%d: %s", i+1, plan.Len(), table)
			report.Outcomes[i] = ReplicateTable(ctx, source, s, table, replicateOpts)
			return nil
		})
	}
	_ = g.Wait()

	return report, nil
}

// EffectiveWorkers caps the requested worker count by what every engine's
// pool can hold, so a worker never waits on a connection another worker keeps.
func EffectiveWorkers(requested int, dialects ...dialect.Dialect) int {
	workers := max(requested, 1)
	for _, d := range dialects {
		if n := d.MaxOpenConns(); n > 0 && workers > n {
			workers = n
		}
	}
	return workers
}

func openSessions(ctx context.Context, target *Connection, n int) ([]*Session, error) {
	sessions := make([]*Session, 0, n)
	for j := 0; j < n; j++ {
		s, err := target.Session(ctx)
		if err != nil {
			for _, open := range sessions {
				open.Close()
			}
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// restoreForeignKeys re-enables checks on every session and verifies the flag.
// It runs detached from cancellation of ctx.
func restoreForeignKeys(ctx context.Context, sessions []*Session) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	var errs []error
	for _, s := range sessions {
		if err := s.EnableForeignKeys(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		on, err := s.ForeignKeysEnabled(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !on {
			errs = append(errs, errors.New("foreign key checks still disabled after restore"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logrus.WithError(err).Error("Failed to restore foreign key checks at target")
		return err
	}
	logrus.Infof("Foreign key checks re-enabled on %d session(s)", len(sessions))
	return nil
}

func logPhase(phase string) {
	logrus.WithField("phase", phase).Info("Migration phase")
}
