/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dataset holds the in-memory table model shared by the classifier,
// the preprocessing pipeline, the profiler and the recommender.
//
// Tables are treated as values: every operation that changes shape or content
// returns a new *Table. Untouched columns may be shared between the old and the
// new table, so a column must never be modified after it has been placed in a
// table.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column is a named, typed vector of cells. A nil cell is a missing value.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewColumn creates a column. The values slice is owned by the column.
func NewColumn(name string, kind Kind, values []any) *Column {
	return &Column{Name: name, Kind: kind, Values: values}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Values)
}

// IsNull reports whether cell i is missing.
func (c *Column) IsNull(i int) bool {
	return c.Values[i] == nil
}

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// AllNull reports whether every cell is missing. An empty column is all null.
func (c *Column) AllNull() bool {
	return c.NullCount() == len(c.Values)
}

// Distinct returns the number of distinct non-null values.
func (c *Column) Distinct() int {
	seen := make(map[string]struct{}, len(c.Values))
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		seen[CellKey(v)] = struct{}{}
	}
	return len(seen)
}

// Float returns cell i as a float64 for numeric columns.
func (c *Column) Float(i int) (float64, bool) {
	f, ok := c.Values[i].(float64)
	return f, ok
}

// Floats returns the non-null values of a numeric column in row order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Strings returns the non-null values rendered as strings in row order.
func (c *Column) Strings() []string {
	out := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		out = append(out, FormatCell(v))
	}
	return out
}

// Value returns cell i in its display form: integer columns yield int64.
func (c *Column) Value(i int) any {
	v := c.Values[i]
	if v == nil {
		return nil
	}
	if c.Kind == KindInteger {
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	}
	return v
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: values}
}

// Table is an ordered collection of equally long, uniquely named columns.
type Table struct {
	columns []*Column
	index   map[string]int
}

// New builds a table, rejecting duplicate names and ragged columns.
func New(columns ...*Column) (*Table, error) {
	t := &Table{
		columns: make([]*Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("column cannot be nil")
		}
		if _, dup := t.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		if len(t.columns) > 0 && col.Len() != t.columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), t.columns[0].Len())
		}
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// MustNew is New that panics on error. Intended for literals in tests and examples.
func MustNew(columns ...*Column) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count. A nil table has zero rows.
func (t *Table) NumRows() int {
	if t == nil || len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.columns)
}

// Columns returns the columns in table order. The slice is a copy.
func (t *Table) Columns() []*Column {
	if t == nil {
		return nil
	}
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column {
	return t.columns[i]
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Names returns the column names in table order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.Clone()
	}
	return MustNew(cols...)
}

// WithColumn returns a new table in which the column with the same name is
// replaced by col, or col is appended when no such column exists.
// The receiver is left unchanged.
func (t *Table) WithColumn(col *Column) *Table {
	cols := t.Columns()
	if i, ok := t.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return MustNew(cols...)
}

// DropColumns returns a new table without the named columns.
func (t *Table) DropColumns(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	cols := make([]*Column, 0, len(t.columns))
	for _, c := range t.columns {
		if _, ok := drop[c.Name]; ok {
			continue
		}
		cols = append(cols, c)
	}
	return MustNew(cols...)
}

// SelectRows returns a new table holding only the given row indices, in the
// order provided.
func (t *Table) SelectRows(rows []int) *Table {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		values := make([]any, len(rows))
		for j, r := range rows {
			values[j] = c.Values[r]
		}
		cols[i] = &Column{Name: c.Name, Kind: c.Kind, Values: values}
	}
	return MustNew(cols...)
}

// Row returns row i in display form.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Value(i)
	}
	return row
}

// RowKey returns a string identifying the content of row i, used to detect
// exact duplicates. Each cell key is length-prefixed so that no two
// different rows share a key, whatever bytes their cells contain.
func (t *Table) RowKey(i int) string {
	var b strings.Builder
	for _, c := range t.columns {
		v := c.Values[i]
		if v == nil {
			b.WriteByte('-')
			continue
		}
		k := CellKey(v)
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}

// Head returns the first n rows in display form.
func (t *Table) Head(n int) [][]any {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, t.Row(i))
	}
	return rows
}

// Preview is the JSON-friendly view of the first rows of a table.
type Preview struct {
	Columns  []string `json:"columns" yaml:"columns"`
	Rows     [][]any  `json:"rows" yaml:"rows"`
	RowCount int      `json:"rowCount" yaml:"rowCount"`
}

// Preview returns the first n rows together with the column names and the
// total row count.
func (t *Table) Preview(n int) Preview {
	if t == nil {
		return Preview{Columns: []string{}, Rows: [][]any{}}
	}
	return Preview{
		Columns:  t.Names(),
		Rows:     t.Head(n),
		RowCount: t.NumRows(),
	}
}

// CellKey renders a non-null cell into a canonical string used for distinct
// counting and equality.
func CellKey(v any) string {
	switch x := v.(type) {
	case float64:
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("?:%v", x)
	}
}

// FormatCell renders a non-null cell for humans.
func FormatCell(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
