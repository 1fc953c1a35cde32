package dataset

import (
	"fmt"
	"math"
	"strconv"
)

// ColumnKind classifies a column as numeric or categorical.
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
)

// Column holds a single column of a Dataset. Numeric columns keep parsed
// values in Floats; categorical columns keep raw strings in Strings. Missing
// marks cells that had no usable value in the source; the corresponding slot
// in Floats/Strings is a zero value and must not be read.
type Column struct {
	Name    string     `json:"name"`
	Kind    ColumnKind `json:"kind"`
	Floats  []float64  `json:"floats,omitempty"`
	Strings []string   `json:"strings,omitempty"`
	Missing []bool     `json:"missing"`
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.Missing)
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// Dataset is an in-memory tabular frame with named, typed columns. All
// columns have the same length.
type Dataset struct {
	cols  []*Column
	index map[string]int
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// FromRecords builds a dataset from a header row and string records, sniffing
// a kind for each column: a column is numeric when every non-missing cell
// parses as a float.
func FromRecords(header []string, records [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("dataset: empty header")
	}
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("dataset: row %d has %d fields, header has %d", i+1, len(rec), len(header))
		}
	}

	ds := New()
	for j, name := range header {
		col := &Column{
			Name:    name,
			Kind:    KindNumeric,
			Missing: make([]bool, len(records)),
		}
		raw := make([]string, len(records))
		for i, rec := range records {
			raw[i] = rec[j]
			if IsMissing(rec[j]) {
				col.Missing[i] = true
				continue
			}
			if col.Kind == KindNumeric {
				if _, err := strconv.ParseFloat(rec[j], 64); err != nil {
					col.Kind = KindCategorical
				}
			}
		}
		switch col.Kind {
		case KindNumeric:
			col.Floats = make([]float64, len(records))
			for i, v := range raw {
				if col.Missing[i] {
					continue
				}
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, fmt.Errorf("dataset: column %s row %d: %w", name, i+1, err)
				}
				col.Floats[i] = f
			}
		case KindCategorical:
			col.Strings = make([]string, len(records))
			for i, v := range raw {
				if !col.Missing[i] {
					col.Strings[i] = v
				}
			}
		}
		if err := ds.AppendColumn(col); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// IsMissing reports whether a raw cell value counts as a missing value.
func IsMissing(v string) bool {
	switch v {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL":
		return true
	}
	return false
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int {
	if len(d.cols) == 0 {
		return 0
	}
	return d.cols[0].Len()
}

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int {
	return len(d.cols)
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order.
func (d *Dataset) Columns() []*Column {
	return d.cols
}

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("dataset: column %s not found", name)
	}
	return d.cols[i], nil
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Numeric returns the values of a numeric column. Missing cells come back as
// NaN so callers can filter them explicitly.
func (d *Dataset) Numeric(name string) ([]float64, error) {
	col, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	if col.Kind != KindNumeric {
		return nil, fmt.Errorf("dataset: column %s is %s, not numeric", name, col.Kind)
	}
	out := make([]float64, col.Len())
	for i := range out {
		if col.Missing[i] {
			out[i] = math.NaN()
		} else {
			out[i] = col.Floats[i]
		}
	}
	return out, nil
}

// AppendColumn adds a column. Its length must match existing columns.
func (d *Dataset) AppendColumn(col *Column) error {
	if col == nil || col.Name == "" {
		return fmt.Errorf("dataset: column must have a name")
	}
	if _, exists := d.index[col.Name]; exists {
		return fmt.Errorf("dataset: column %s already exists", col.Name)
	}
	if len(d.cols) > 0 && col.Len() != d.NumRows() {
		return fmt.Errorf("dataset: column %s has %d rows, dataset has %d", col.Name, col.Len(), d.NumRows())
	}
	d.index[col.Name] = len(d.cols)
	d.cols = append(d.cols, col)
	return nil
}

// DropColumn removes the named column.
func (d *Dataset) DropColumn(name string) error {
	i, ok := d.index[name]
	if !ok {
		return fmt.Errorf("dataset: column %s not found", name)
	}
	d.cols = append(d.cols[:i], d.cols[i+1:]...)
	delete(d.index, name)
	for j := i; j < len(d.cols); j++ {
		d.index[d.cols[j].Name] = j
	}
	return nil
}

// Select returns a new dataset containing only the named columns, sharing no
// storage with the receiver.
func (d *Dataset) Select(names []string) (*Dataset, error) {
	out := New()
	for _, name := range names {
		col, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		if err := out.AppendColumn(cloneColumn(col)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DropRows removes every row i where drop[i] is true, in place.
func (d *Dataset) DropRows(drop []bool) error {
	if len(drop) != d.NumRows() {
		return fmt.Errorf("dataset: mask has %d entries, dataset has %d rows", len(drop), d.NumRows())
	}
	for _, col := range d.cols {
		keepMissing := col.Missing[:0]
		if col.Kind == KindNumeric {
			keepFloats := col.Floats[:0]
			for i, m := range drop {
				if m {
					continue
				}
				keepFloats = append(keepFloats, col.Floats[i])
				keepMissing = append(keepMissing, col.Missing[i])
			}
			col.Floats = keepFloats
		} else {
			keepStrings := col.Strings[:0]
			for i, m := range drop {
				if m {
					continue
				}
				keepStrings = append(keepStrings, col.Strings[i])
				keepMissing = append(keepMissing, col.Missing[i])
			}
			col.Strings = keepStrings
		}
		col.Missing = keepMissing
	}
	return nil
}

// TakeRows returns a new dataset containing the rows at the given indices, in
// the given order.
func (d *Dataset) TakeRows(indices []int) (*Dataset, error) {
	out := New()
	for _, col := range d.cols {
		nc := &Column{
			Name:    col.Name,
			Kind:    col.Kind,
			Missing: make([]bool, len(indices)),
		}
		if col.Kind == KindNumeric {
			nc.Floats = make([]float64, len(indices))
		} else {
			nc.Strings = make([]string, len(indices))
		}
		for i, idx := range indices {
			if idx < 0 || idx >= col.Len() {
				return nil, fmt.Errorf("dataset: row index %d out of range", idx)
			}
			nc.Missing[i] = col.Missing[idx]
			if col.Kind == KindNumeric {
				nc.Floats[i] = col.Floats[idx]
			} else {
				nc.Strings[i] = col.Strings[idx]
			}
		}
		if err := out.AppendColumn(nc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	out := New()
	for _, col := range d.cols {
		// AppendColumn cannot fail here: names are unique, lengths match.
		_ = out.AppendColumn(cloneColumn(col))
	}
	return out
}

// Matrix extracts the named numeric columns as a row-major matrix. Columns
// must be numeric and fully imputed; a missing cell is an error.
func (d *Dataset) Matrix(names []string) ([][]float64, error) {
	rows := d.NumRows()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, len(names))
	}
	for j, name := range names {
		col, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Kind != KindNumeric {
			return nil, fmt.Errorf("dataset: column %s is %s, not numeric", name, col.Kind)
		}
		for i := 0; i < rows; i++ {
			if col.Missing[i] {
				return nil, fmt.Errorf("dataset: column %s row %d is missing; impute before extracting", name, i+1)
			}
			out[i][j] = col.Floats[i]
		}
	}
	return out, nil
}

func cloneColumn(col *Column) *Column {
	nc := &Column{
		Name:    col.Name,
		Kind:    col.Kind,
		Missing: make([]bool, len(col.Missing)),
	}
	copy(nc.Missing, col.Missing)
	if col.Floats != nil {
		nc.Floats = make([]float64, len(col.Floats))
		copy(nc.Floats, col.Floats)
	}
	if col.Strings != nil {
		nc.Strings = make([]string, len(col.Strings))
		copy(nc.Strings, col.Strings)
	}
	return nc
}

// Cell returns the string form of a cell, for export. Missing cells come back
// empty.
func (d *Dataset) Cell(row int, col *Column) string {
	if col.Missing[row] {
		return ""
	}
	if col.Kind == KindNumeric {
		return strconv.FormatFloat(col.Floats[row], 'g', -1, 64)
	}
	return col.Strings[row]
}
