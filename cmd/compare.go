package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"schema-sync/internal/database"
	"schema-sync/internal/dialect"
	"schema-sync/internal/schema"
	"schema-sync/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errDrift = errors.New("schema drift detected")

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a schema document (or the source database) against the target database",
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().String("schema", "", "Schema document with CREATE TABLE statements (default: compare.schema_file)")
	compareCmd.Flags().String("report", "", "Path of the comparison report (default: compare.report_path)")
	compareCmd.Flags().Bool("against-source", false, "Compare against the live source database instead of a schema document")
	_ = v.BindPFlag("compare.schema_file", compareCmd.Flags().Lookup("schema"))
	_ = v.BindPFlag("compare.report_path", compareCmd.Flags().Lookup("report"))

	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	againstSource, _ := cmd.Flags().GetBool("against-source")
	reportPath := cfg.Compare.ReportPath

	expected, actual, err := loadSchemas(ctx, cfg, againstSource)
	if err != nil {
		logrus.Errorf("Comparison aborted: %v", err)
		if werr := os.WriteFile(reportPath, []byte(schema.ReportFailedLine+"\n"), 0644); werr != nil {
			logrus.Errorf("Failed to write report %s: %v", reportPath, werr)
		}
		return failFor(err)
	}

	report := schema.Diff(expected, actual)

	f, err := os.Create(reportPath)
	if err != nil {
		return fail(exitFailure, fmt.Errorf("failed to create report %s: %w", reportPath, err))
	}
	defer f.Close()

	if _, err := report.WriteTo(f); err != nil {
		return fail(exitFailure, fmt.Errorf("failed to write report %s: %w", reportPath, err))
	}
	if _, err := report.WriteTo(os.Stdout); err != nil {
		return fail(exitFailure, err)
	}

	logrus.WithField("report", reportPath).Infof("Comparison finished: %d missing, %d extra, %d drifted tables",
		len(report.MissingTables), len(report.ExtraTables), len(report.ColumnDiffs))
	fmt.Printf("\nReport saved to %s\n", reportPath)

	if !report.Empty() {
		return fail(exitFailure, errDrift)
	}
	return nil
}

// loadSchemas obtains both sides of the comparison. Both must succeed; there
// is no partial comparison.
func loadSchemas(ctx context.Context, cfg *types.Config, againstSource bool) (expected, actual schema.Mapping, err error) {
	if againstSource {
		expected, err = introspect(ctx, database.RoleSource, cfg.Source)
	} else {
		expected, err = parseSchemaFile(cfg.Compare.SchemaFile, cfg.Target.Type)
	}
	if err != nil {
		return schema.Mapping{}, schema.Mapping{}, err
	}

	actual, err = introspect(ctx, database.RoleTarget, cfg.Target)
	if err != nil {
		return schema.Mapping{}, schema.Mapping{}, err
	}
	return expected, actual, nil
}

func parseSchemaFile(path, dbType string) (schema.Mapping, error) {
	d, err := dialect.Get(dbType)
	if err != nil {
		return schema.Mapping{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Mapping{}, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	mapping := schema.NewParser(d.QuoteChar()).Parse(string(data))
	logrus.Infof("Parsed %d tables from %s", mapping.Len(), path)
	return mapping, nil
}

func introspect(ctx context.Context, role string, dbCfg types.Database) (schema.Mapping, error) {
	conn, err := database.Connect(ctx, role, dbCfg)
	if err != nil {
		return schema.Mapping{}, err
	}
	defer database.CloseConnection(conn)

	return database.Introspect(ctx, conn)
}
