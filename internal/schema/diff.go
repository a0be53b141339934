package schema

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// ColumnDiff lists the columns of one table that differ between the two sides.
type ColumnDiff struct {
	Missing []string `json:"missing"`
	Extra   []string `json:"extra"`
}

// DiffReport is the drift between an expected and an actual Mapping.
// All slices are sorted, so equal inputs always give equal reports.
type DiffReport struct {
	MissingTables []string              `json:"missing_tables"`
	ExtraTables   []string              `json:"extra_tables"`
	ColumnDiffs   map[string]ColumnDiff `json:"column_diffs"`
}

// Diff compares expected against actual. Neither input is modified.
func Diff(expected, actual Mapping) DiffReport {
	report := DiffReport{
		MissingTables: []string{},
		ExtraTables:   []string{},
		ColumnDiffs:   map[string]ColumnDiff{},
	}

	for _, name := range expected.Names() {
		exp, _ := expected.Table(name)
		act, ok := actual.Table(name)
		if !ok {
			report.MissingTables = append(report.MissingTables, name)
			continue
		}

		missing := subtract(exp, act)
		extra := subtract(act, exp)
		if len(missing) > 0 || len(extra) > 0 {
			report.ColumnDiffs[name] = ColumnDiff{Missing: missing, Extra: extra}
		}
	}

	for _, name := range actual.Names() {
		if _, ok := expected.Table(name); !ok {
			report.ExtraTables = append(report.ExtraTables, name)
		}
	}

	return report
}

// subtract returns the sorted columns of a that b lacks.
func subtract(a, b *TableSchema) []string {
	out := []string{}
	for _, c := range a.ColumnSet() {
		if !b.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// Empty reports whether no drift was found.
func (r DiffReport) Empty() bool {
	return len(r.MissingTables) == 0 && len(r.ExtraTables) == 0 && len(r.ColumnDiffs) == 0
}

// Tables returns the names of tables with column drift, sorted.
func (r DiffReport) Tables() []string {
	out := make([]string, 0, len(r.ColumnDiffs))
	for name := range r.ColumnDiffs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

const (
	ReportHeader       = "--- SCHEMA COMPARISON REPORT ---"
	NoDifferencesLine  = "No differences found between schema.sql and production database."
	ReportFailedLine   = "Failed to perform comparison because schemas could not be retrieved."
	missingTablesLabel = "[!] Tables in schema.sql but MISSING in Database: "
	extraTablesLabel   = "[+] Extra tables in Database (not in schema.sql): "
	missingColsLabel   = "  [-] Missing columns in Prod: "
	extraColsLabel     = "  [+] Extra columns in Prod: "
)

// String renders the report in its fixed, grep-friendly layout.
func (r DiffReport) String() string {
	lines := []string{ReportHeader}

	if len(r.MissingTables) > 0 {
		lines = append(lines, "\n"+missingTablesLabel+strings.Join(r.MissingTables, ", "))
	}
	if len(r.ExtraTables) > 0 {
		lines = append(lines, "\n"+extraTablesLabel+strings.Join(r.ExtraTables, ", "))
	}

	for _, name := range r.Tables() {
		d := r.ColumnDiffs[name]
		lines = append(lines, fmt.Sprintf("\nTable `%s`:", name))
		if len(d.Missing) > 0 {
			lines = append(lines, missingColsLabel+strings.Join(d.Missing, ", "))
		}
		if len(d.Extra) > 0 {
			lines = append(lines, extraColsLabel+strings.Join(d.Extra, ", "))
		}
	}

	if len(lines) == 1 {
		lines = append(lines, "\n"+NoDifferencesLine)
	}

	return strings.Join(lines, "\n")
}

// WriteTo writes the rendered report followed by a newline.
func (r DiffReport) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String()+"\n")
	return int64(n), err
}
