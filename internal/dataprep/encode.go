package dataprep

import (
	"fmt"
	"sort"

	"pricepipe/internal/dataset"
)

// OneHotEncoder replaces each categorical column with one numeric indicator
// column per level seen during fit. Levels unseen at transform time map to
// all zeros. The source column is dropped.
type OneHotEncoder struct {
	// Columns restricts encoding to the named columns; empty means every
	// categorical column.
	Columns []string
	// DropFirst omits the first (alphabetical) level of each column, the
	// usual guard against collinear designs.
	DropFirst bool

	fitted bool
	levels map[string][]string
}

// Name implements Transformer.
func (e *OneHotEncoder) Name() string { return "one_hot" }

// Fit records the sorted levels of each target column.
func (e *OneHotEncoder) Fit(ds *dataset.Dataset) error {
	e.levels = make(map[string][]string)
	for _, col := range e.targets(ds) {
		seen := make(map[string]struct{})
		for i, v := range col.Strings {
			if !col.Missing[i] {
				seen[v] = struct{}{}
			}
		}
		levels := make([]string, 0, len(seen))
		for v := range seen {
			levels = append(levels, v)
		}
		sort.Strings(levels)
		if e.DropFirst && len(levels) > 0 {
			levels = levels[1:]
		}
		e.levels[col.Name] = levels
	}
	e.fitted = true
	return nil
}

// Transform appends indicator columns and drops the source columns.
func (e *OneHotEncoder) Transform(ds *dataset.Dataset) error {
	if !e.fitted {
		return ErrNotFitted
	}
	for name, levels := range e.levels {
		col, err := ds.Column(name)
		if err != nil {
			continue // column absent in this split
		}
		if col.Kind != dataset.KindCategorical {
			return fmt.Errorf("dataprep: one-hot target %s is not categorical", name)
		}
		for _, level := range levels {
			ind := &dataset.Column{
				Name:    name + "=" + level,
				Kind:    dataset.KindNumeric,
				Floats:  make([]float64, col.Len()),
				Missing: make([]bool, col.Len()),
			}
			for i, v := range col.Strings {
				if col.Missing[i] {
					ind.Missing[i] = true
					continue
				}
				if v == level {
					ind.Floats[i] = 1
				}
			}
			if err := ds.AppendColumn(ind); err != nil {
				return err
			}
		}
		if err := ds.DropColumn(name); err != nil {
			return err
		}
	}
	return nil
}

// EncodedNames returns the indicator column names produced for a source
// column, in level order.
func (e *OneHotEncoder) EncodedNames(column string) []string {
	levels := e.levels[column]
	out := make([]string, len(levels))
	for i, level := range levels {
		out[i] = column + "=" + level
	}
	return out
}

func (e *OneHotEncoder) targets(ds *dataset.Dataset) []*dataset.Column {
	var out []*dataset.Column
	if len(e.Columns) == 0 {
		for _, col := range ds.Columns() {
			if col.Kind == dataset.KindCategorical {
				out = append(out, col)
			}
		}
		return out
	}
	for _, name := range e.Columns {
		if col, err := ds.Column(name); err == nil {
			out = append(out, col)
		}
	}
	return out
}

// OrdinalEncoder replaces categorical columns with integer codes assigned by
// sorted level order. Unseen levels at transform time become missing cells.
type OrdinalEncoder struct {
	Columns []string

	fitted bool
	codes  map[string]map[string]float64
}

// Name implements Transformer.
func (e *OrdinalEncoder) Name() string { return "ordinal" }

// Fit assigns a code to each level of each target column.
func (e *OrdinalEncoder) Fit(ds *dataset.Dataset) error {
	e.codes = make(map[string]map[string]float64)
	for _, col := range e.targets(ds) {
		seen := make(map[string]struct{})
		for i, v := range col.Strings {
			if !col.Missing[i] {
				seen[v] = struct{}{}
			}
		}
		levels := make([]string, 0, len(seen))
		for v := range seen {
			levels = append(levels, v)
		}
		sort.Strings(levels)
		m := make(map[string]float64, len(levels))
		for i, v := range levels {
			m[v] = float64(i)
		}
		e.codes[col.Name] = m
	}
	e.fitted = true
	return nil
}

// Transform swaps each target column for its coded numeric form in place.
func (e *OrdinalEncoder) Transform(ds *dataset.Dataset) error {
	if !e.fitted {
		return ErrNotFitted
	}
	for name, codes := range e.codes {
		col, err := ds.Column(name)
		if err != nil {
			continue
		}
		if col.Kind != dataset.KindCategorical {
			return fmt.Errorf("dataprep: ordinal target %s is not categorical", name)
		}
		col.Floats = make([]float64, col.Len())
		for i, v := range col.Strings {
			if col.Missing[i] {
				continue
			}
			code, ok := codes[v]
			if !ok {
				col.Missing[i] = true
				continue
			}
			col.Floats[i] = code
		}
		col.Kind = dataset.KindNumeric
		col.Strings = nil
	}
	return nil
}

func (e *OrdinalEncoder) targets(ds *dataset.Dataset) []*dataset.Column {
	var out []*dataset.Column
	if len(e.Columns) == 0 {
		for _, col := range ds.Columns() {
			if col.Kind == dataset.KindCategorical {
				out = append(out, col)
			}
		}
		return out
	}
	for _, name := range e.Columns {
		if col, err := ds.Column(name); err == nil {
			out = append(out, col)
		}
	}
	return out
}
