package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Parser recovers table and column names from a dump of CREATE TABLE statements.
// It does not understand SQL; it scans for the statement header, the closing
// ") ...;" line of the definition, and column lines that start with a quoted
// identifier. Constraint and index lines are skipped because they do not.
type Parser struct {
	// Quote is the identifier quoting character of the dump's engine.
	Quote byte

	header  *regexp.Regexp
	closing *regexp.Regexp
	column  *regexp.Regexp
}

// NewParser returns a Parser for identifiers quoted with q (backtick for MySQL,
// double quote for SQLite and PostgreSQL).
func NewParser(q byte) *Parser {
	quote := regexp.QuoteMeta(string(q))
	ident := fmt.Sprintf(`%s([^%s]+)%s`, quote, quote, quote)
	return &Parser{
		Quote:  q,
		header: regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + ident + `\s*\(`),
		// The closing line starts at column 0 and ends its statement on the same
		// line; engine/storage annotations may sit in between.
		closing: regexp.MustCompile(`(?m)^\)[^;\n]*;`),
		column:  regexp.MustCompile(`^` + ident),
	}
}

// ParseDocument parses a MySQL-style dump (backtick-quoted identifiers).
func ParseDocument(doc string) Mapping {
	return NewParser('`').Parse(doc)
}

// Parse returns the tables defined in doc. A block whose closing line cannot be
// found is left out of the result; the rest of the document is still parsed.
func (p *Parser) Parse(doc string) Mapping {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")

	headers := p.header.FindAllStringSubmatchIndex(doc, -1)
	tables := make([]*TableSchema, 0, len(headers))

	for i, h := range headers {
		name := doc[h[2]:h[3]]
		end := len(doc)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		body := doc[h[1]:end]

		closing := p.closing.FindStringIndex(body)
		if closing == nil {
			logrus.WithField("table", name).Warn("Skipping table definition without closing marker")
			continue
		}

		tables = append(tables, NewTableSchema(name, p.columns(body[:closing[0]])))
	}

	return NewMapping(tables...)
}

func (p *Parser) columns(block string) []string {
	var cols []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] != p.Quote {
			continue
		}
		if m := p.column.FindStringSubmatch(line); m != nil {
			cols = append(cols, m[1])
		}
	}
	return cols
}
