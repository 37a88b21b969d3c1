package domain

import "fmt"

// ColumnType is the declared type of a column's values.
type ColumnType string

const (
	ColumnInt      ColumnType = "int64"
	ColumnFloat    ColumnType = "float64"
	ColumnString   ColumnType = "string"
	ColumnBool     ColumnType = "bool"
	ColumnDatetime ColumnType = "datetime"
)

// Column is one named, typed column of a DataFrame.
type Column struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Values []any      `json:"values"`
}

// NamedDataSet is the payload of an addRows delta.
type NamedDataSet struct {
	Name string    `json:"name,omitempty"`
	Data DataFrame `json:"data"`
}

// NumRows returns the row count (the length of the first column).
func (df DataFrame) NumRows() int {
	if len(df.Columns) == 0 {
		return 0
	}
	return len(df.Columns[0].Values)
}

// Validate checks that every column has the same length.
func (df DataFrame) Validate() error {
	n := df.NumRows()
	for _, c := range df.Columns {
		if len(c.Values) != n {
			return fmt.Errorf("column %q has %d values, want %d", c.Name, len(c.Values), n)
		}
	}
	return nil
}

// SameSchema reports whether both frames declare identical columns in the same order.
func (df DataFrame) SameSchema(other DataFrame) bool {
	if len(df.Columns) != len(other.Columns) {
		return false
	}
	for i := range df.Columns {
		if df.Columns[i].Name != other.Columns[i].Name || df.Columns[i].Type != other.Columns[i].Type {
			return false
		}
	}
	return true
}

// Schema renders the column list as "name:type" pairs for diagnostics.
func (df DataFrame) Schema() []string {
	out := make([]string, len(df.Columns))
	for i, c := range df.Columns {
		out[i] = c.Name + ":" + string(c.Type)
	}
	return out
}

// Append returns a new frame holding df's rows followed by rows' rows.
// The receiver is never modified.
func (df DataFrame) Append(rows DataFrame) (DataFrame, error) {
	if !df.SameSchema(rows) {
		return df, fmt.Errorf("schema %v does not match %v", rows.Schema(), df.Schema())
	}
	if err := rows.Validate(); err != nil {
		return df, err
	}

	out := DataFrame{Columns: make([]Column, len(df.Columns))}
	for i, c := range df.Columns {
		values := make([]any, 0, len(c.Values)+len(rows.Columns[i].Values))
		values = append(values, c.Values...)
		values = append(values, rows.Columns[i].Values...)
		out.Columns[i] = Column{Name: c.Name, Type: c.Type, Values: values}
	}
	return out, nil
}

// Clone returns a deep copy of the column slices.
func (df DataFrame) Clone() DataFrame {
	out := DataFrame{Columns: make([]Column, len(df.Columns))}
	for i, c := range df.Columns {
		out.Columns[i] = Column{Name: c.Name, Type: c.Type, Values: append([]any(nil), c.Values...)}
	}
	return out
}
