package schema

import "sort"

// TableSchema is the column-name view of one table. Columns keeps the order in
// which the source reported them; the column set is used for comparison.
type TableSchema struct {
	Name    string
	Columns []string

	columnSet map[string]struct{}
}

// NewTableSchema builds a TableSchema, dropping repeated column names.
func NewTableSchema(name string, columns []string) *TableSchema {
	t := &TableSchema{
		Name:      name,
		Columns:   make([]string, 0, len(columns)),
		columnSet: make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		if _, dup := t.columnSet[c]; dup {
			continue
		}
		t.columnSet[c] = struct{}{}
		t.Columns = append(t.Columns, c)
	}
	return t
}

// HasColumn reports whether the table declares the column.
func (t *TableSchema) HasColumn(name string) bool {
	_, ok := t.columnSet[name]
	return ok
}

// ColumnSet returns the sorted, de-duplicated column names.
func (t *TableSchema) ColumnSet() []string {
	out := make([]string, 0, len(t.columnSet))
	for c := range t.columnSet {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Mapping is an immutable table name -> TableSchema index. A new Mapping is built
// for every parse or introspection call.
type Mapping struct {
	tables map[string]*TableSchema
}

// NewMapping indexes tables by name. When a name repeats, the later definition wins.
func NewMapping(tables ...*TableSchema) Mapping {
	m := Mapping{tables: make(map[string]*TableSchema, len(tables))}
	for _, t := range tables {
		if t == nil {
			continue
		}
		m.tables[t.Name] = t
	}
	return m
}

// Table returns the named table.
func (m Mapping) Table(name string) (*TableSchema, bool) {
	t, ok := m.tables[name]
	return t, ok
}

// Names returns the table names in sorted order.
func (m Mapping) Names() []string {
	out := make([]string, 0, len(m.tables))
	for name := range m.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (m Mapping) Len() int {
	return len(m.tables)
}
