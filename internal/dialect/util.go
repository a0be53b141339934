package dialect

import (
	"fmt"
	"strings"
)

// GeneratePlaceholders returns count comma-separated placeholders starting at
// index offset, so multi-row statements keep numbering continuous ($1..$n).
func GeneratePlaceholders(offset, count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(offset + i)
	}
	return strings.Join(placeholders, ", ")
}

// multiRowInsert builds INSERT INTO t (cols) VALUES (...), (...) for rows tuples.
func multiRowInsert(d Dialect, table string, cols []string, rows int) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
	}

	tuples := make([]string, rows)
	for r := 0; r < rows; r++ {
		tuples[r] = "(" + GeneratePlaceholders(r*len(cols), len(cols), d.Placeholder) + ")"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.Quote(table), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
}

// quoteWith doubles any embedded quote character.
func quoteWith(q string, ident string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}
