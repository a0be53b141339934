package main

import (
	"fmt"
	"os"

	"schema-sync/internal/database"
	"schema-sync/internal/dialect"
	"schema-sync/internal/progress"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Replicate every source table, structure and rows, into the target database",
	RunE:  runMigrate,
}

func init() {
	flags := migrateCmd.Flags()
	flags.Int("chunk-size", 0, "Rows per insert statement (default: migration.chunk_size)")
	flags.Int("workers", 0, "Tables replicated in parallel (default: migration.workers)")
	flags.Duration("query-timeout", 0, "Per-statement timeout, 0 disables (default: migration.query_timeout)")
	flags.Bool("dry-run", false, "Print the migration plan without touching the target")
	_ = v.BindPFlag("migration.chunk_size", flags.Lookup("chunk-size"))
	_ = v.BindPFlag("migration.workers", flags.Lookup("workers"))
	_ = v.BindPFlag("migration.query_timeout", flags.Lookup("query-timeout"))
	_ = v.BindPFlag("migration.dry_run", flags.Lookup("dry-run"))

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logrus.Infof("Migrating %s database %s into %s database %s",
		cfg.Source.Type, cfg.Source.Database, cfg.Target.Type, cfg.Target.Database)

	source, err := database.Connect(ctx, database.RoleSource, cfg.Source)
	if err != nil {
		return fail(exitConnection, err)
	}
	defer database.CloseConnection(source)

	if cfg.Migration.DryRun {
		plan, err := database.NewMigrationPlan(ctx, source)
		if err != nil {
			return failFor(err)
		}
		if err := plan.Describe(ctx, source, os.Stdout); err != nil {
			return failFor(err)
		}
		return nil
	}

	workers, err := migrationWorkers(source)
	if err != nil {
		return fail(exitFailure, err)
	}
	reporter := progress.NewConsole(progress.Options{
		HeartbeatInterval: cfg.Migration.HeartbeatBatchInterval,
		Workers:           workers,
	})
	defer reporter.Stop()

	report, err := database.Migrate(ctx, source, cfg.Target, &cfg.Migration, reporter)
	if report != nil {
		fmt.Println()
		report.Print(os.Stdout)
	}
	if err != nil {
		return failFor(err)
	}

	if report.HasConnectionLoss() {
		return fail(exitConnection, fmt.Errorf("connection lost during migration; %d of %d tables failed", len(report.Failed()), report.Attempted))
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fail(exitFailure, fmt.Errorf("%d of %d tables failed", len(failed), report.Attempted))
	}

	logrus.Infof("Migration completed: %d tables, %d rows", report.Succeeded, report.RowsMigrated)
	return nil
}

// migrationWorkers is the number of tables that will actually run at once.
func migrationWorkers(source *database.Connection) (int, error) {
	targetDialect, err := dialect.Get(cfg.Target.Type)
	if err != nil {
		return 0, err
	}
	return database.EffectiveWorkers(cfg.Migration.Workers, source.Dialect, targetDialect), nil
}
