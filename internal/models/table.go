package models

import (
	"fmt"
	"sort"
)

// Record maps column name to cell value.
type Record map[string]Value

// Table is an immutable, column-oriented snapshot. Every record has a value for
// every column; absent cells are null.
type Table struct {
	names   []string
	index   map[string]int
	columns [][]Value
	rows    int
}

// Columns returns column names in table order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

// NumColumns returns the column count.
func (t *Table) NumColumns() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Len returns the record count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Column returns the values of the named column. The slice must not be modified.
func (t *Table) Column(name string) ([]Value, bool) {
	if t == nil {
		return nil, false
	}
	idx, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[idx], true
}

// Record materialises row i.
func (t *Table) Record(i int) Record {
	rec := make(Record, len(t.names))
	for c, name := range t.names {
		rec[name] = t.columns[c][i]
	}
	return rec
}

// TableBuilder accumulates records into a Table. Columns first seen after some
// records were added are backfilled with nulls.
type TableBuilder struct {
	names   []string
	index   map[string]int
	columns [][]Value
	rows    int
}

// NewTableBuilder starts a table with the given column order.
func NewTableBuilder(columns ...string) *TableBuilder {
	b := &TableBuilder{index: make(map[string]int, len(columns))}
	for _, name := range columns {
		b.ensureColumn(name)
	}
	return b
}

func (b *TableBuilder) ensureColumn(name string) int {
	if idx, ok := b.index[name]; ok {
		return idx
	}
	idx := len(b.names)
	b.names = append(b.names, name)
	b.index[name] = idx
	b.columns = append(b.columns, make([]Value, b.rows))
	return idx
}

// AddColumn declares a column without adding records.
func (b *TableBuilder) AddColumn(name string) {
	b.ensureColumn(name)
}

// Append adds a record given as ordered fields. Unknown names extend the column set.
func (b *TableBuilder) Append(fields ...Field) {
	for _, f := range fields {
		b.ensureColumn(f.Name)
	}
	for c := range b.columns {
		b.columns[c] = append(b.columns[c], Null())
	}
	for _, f := range fields {
		b.columns[b.index[f.Name]][b.rows] = f.Value
	}
	b.rows++
}

// AppendRecord adds a record given as a map. Known columns keep table order;
// new columns are appended in name order.
func (b *TableBuilder) AppendRecord(rec Record) {
	fields := make([]Field, 0, len(rec))
	for _, name := range b.names {
		if v, ok := rec[name]; ok {
			fields = append(fields, Field{Name: name, Value: v})
		}
	}
	var added []string
	for name := range rec {
		if _, ok := b.index[name]; !ok {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	for _, name := range added {
		fields = append(fields, Field{Name: name, Value: rec[name]})
	}
	b.Append(fields...)
}

// SetColumn replaces a whole column. The length must match the current record count
// unless the builder is empty, in which case the column defines the record count.
func (b *TableBuilder) SetColumn(name string, values []Value) error {
	if b.rows == 0 {
		b.rows = len(values)
		for c := range b.columns {
			b.columns[c] = make([]Value, b.rows)
		}
	}
	if len(values) != b.rows {
		return fmt.Errorf("column %s has %d values, table has %d records", name, len(values), b.rows)
	}
	idx := b.ensureColumn(name)
	b.columns[idx] = append([]Value(nil), values...)
	return nil
}

// Build freezes the builder into a Table.
func (b *TableBuilder) Build() *Table {
	t := &Table{
		names:   append([]string(nil), b.names...),
		index:   make(map[string]int, len(b.names)),
		columns: make([][]Value, len(b.columns)),
		rows:    b.rows,
	}
	for i, name := range t.names {
		t.index[name] = i
		t.columns[i] = append([]Value(nil), b.columns[i]...)
	}
	return t
}
