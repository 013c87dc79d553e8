// package dataset implements the tabular frame type shared by all dashboard
// pipelines and the JSON codec used to persist frames as cache artifacts.
package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies the value type of a frame column.
type Kind int

const (
	String Kind = iota
	Float
	Int
	Bool
	Time
	StringList
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Time:
		return "time"
	case StringList:
		return "string_list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column declares one column of a frame schema.
type Column struct {
	Name string
	Kind Kind
}

// Frame is an ordered, schema-checked table. Row values are stored row-major;
// times are always UTC so that encoding and decoding round-trip exactly.
type Frame struct {
	columns []Column
	rows    [][]any
}

// New creates an empty frame with the given column schema.
func New(columns ...Column) *Frame {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Frame{columns: cols}
}

// Columns returns a copy of the frame's column schema.
func (f *Frame) Columns() []Column {
	cols := make([]Column, len(f.columns))
	copy(cols, f.columns)
	return cols
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Col returns the index of the named column, or -1 if absent.
func (f *Frame) Col(name string) int {
	for i, c := range f.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Append adds one row. Values must match the schema in arity and kind.
func (f *Frame) Append(values ...any) error {
	if len(values) != len(f.columns) {
		return fmt.Errorf("expected %d values, got %d", len(f.columns), len(values))
	}

	row := make([]any, len(values))
	for i, v := range values {
		coerced, err := coerce(v, f.columns[i].Kind)
		if err != nil {
			return fmt.Errorf("column %q: %w", f.columns[i].Name, err)
		}
		row[i] = coerced
	}

	f.rows = append(f.rows, row)
	return nil
}

// coerce validates a value against a column kind, normalizing representations
// (ints used as floats, nil lists, non-UTC times).
func coerce(v any, kind Kind) (any, error) {
	switch kind {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Float:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
	case Int:
		if n, ok := v.(int); ok {
			return n, nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Time:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
	case StringList:
		if v == nil {
			return []string{}, nil
		}
		if l, ok := v.([]string); ok {
			if l == nil {
				return []string{}, nil
			}
			return l, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not match kind %s", v, v, kind)
}

// ValueAt returns the raw cell value at (row, col index).
func (f *Frame) ValueAt(row, col int) any {
	return f.rows[row][col]
}

// StringAt returns the string cell in the named column, or "" on mismatch.
func (f *Frame) StringAt(row int, name string) string {
	if v, ok := f.cell(row, name).(string); ok {
		return v
	}
	return ""
}

// FloatAt returns the float cell in the named column, or 0 on mismatch.
func (f *Frame) FloatAt(row int, name string) float64 {
	switch v := f.cell(row, name).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// IntAt returns the int cell in the named column, or 0 on mismatch.
func (f *Frame) IntAt(row int, name string) int {
	if v, ok := f.cell(row, name).(int); ok {
		return v
	}
	return 0
}

// BoolAt returns the bool cell in the named column, or false on mismatch.
func (f *Frame) BoolAt(row int, name string) bool {
	if v, ok := f.cell(row, name).(bool); ok {
		return v
	}
	return false
}

// TimeAt returns the time cell in the named column, or the zero time on mismatch.
func (f *Frame) TimeAt(row int, name string) time.Time {
	if v, ok := f.cell(row, name).(time.Time); ok {
		return v
	}
	return time.Time{}
}

// StringsAt returns the string-list cell in the named column, or nil on mismatch.
func (f *Frame) StringsAt(row int, name string) []string {
	if v, ok := f.cell(row, name).([]string); ok {
		return v
	}
	return nil
}

func (f *Frame) cell(row int, name string) any {
	col := f.Col(name)
	if col < 0 || row < 0 || row >= len(f.rows) {
		return nil
	}
	return f.rows[row][col]
}

// SortStable sorts rows in place using the provided comparison, keeping the
// original order of equal rows.
func (f *Frame) SortStable(less func(i, j int) bool) {
	sort.SliceStable(f.rows, less)
}

// Filter returns a new frame with the same schema containing only rows for
// which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	out := New(f.columns...)
	for i, row := range f.rows {
		if keep(i) {
			copied := make([]any, len(row))
			copy(copied, row)
			out.rows = append(out.rows, copied)
		}
	}
	return out
}

// Equal reports whether two frames have identical schemas and cell values.
func (f *Frame) Equal(other *Frame) bool {
	if other == nil || len(f.columns) != len(other.columns) || len(f.rows) != len(other.rows) {
		return false
	}
	for i := range f.columns {
		if f.columns[i] != other.columns[i] {
			return false
		}
	}
	for i := range f.rows {
		for j := range f.rows[i] {
			if !cellEqual(f.rows[i][j], other.rows[i][j], f.columns[j].Kind) {
				return false
			}
		}
	}
	return true
}

func cellEqual(a, b any, kind Kind) bool {
	switch kind {
	case Time:
		at, aok := a.(time.Time)
		bt, bok := b.(time.Time)
		return aok && bok && at.Equal(bt)
	case StringList:
		al, aok := a.([]string)
		bl, bok := b.([]string)
		if !aok || !bok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if al[i] != bl[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
