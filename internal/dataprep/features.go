package dataprep

import (
	"fmt"
	"math"

	"pricepipe/internal/dataset"
)

// LogTransform replaces the named numeric columns with log1p(x), the usual
// treatment for right-skewed features like price and living area. Negative
// values are an error since log1p is undefined below -1.
type LogTransform struct {
	Columns []string

	fitted bool
}

// Name implements Transformer.
func (lt *LogTransform) Name() string { return "log_transform" }

// Fit verifies the target columns exist, are numeric, and are non-negative.
func (lt *LogTransform) Fit(ds *dataset.Dataset) error {
	if len(lt.Columns) == 0 {
		return fmt.Errorf("dataprep: log transform needs at least one column")
	}
	for _, name := range lt.Columns {
		col, err := ds.Column(name)
		if err != nil {
			return err
		}
		if col.Kind != dataset.KindNumeric {
			return fmt.Errorf("dataprep: log transform target %s is not numeric", name)
		}
		for i, v := range col.Floats {
			if !col.Missing[i] && v < 0 {
				return fmt.Errorf("dataprep: log transform target %s has negative value at row %d", name, i+1)
			}
		}
	}
	lt.fitted = true
	return nil
}

// Transform applies log1p in place.
func (lt *LogTransform) Transform(ds *dataset.Dataset) error {
	if !lt.fitted {
		return ErrNotFitted
	}
	for _, name := range lt.Columns {
		col, err := ds.Column(name)
		if err != nil {
			continue // column absent in this split
		}
		for i := range col.Floats {
			if !col.Missing[i] {
				col.Floats[i] = math.Log1p(col.Floats[i])
			}
		}
	}
	return nil
}

// Expm1 reverses a log1p transform on predictions.
func Expm1(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Expm1(v)
	}
	return out
}

// Indicator appends a binary column that is 1 where the source numeric
// column exceeds the threshold. The source column is kept.
type Indicator struct {
	Source    string
	Threshold float64
	// As names the new column; defaults to Source+"_gt_"+Threshold.
	As string

	fitted bool
}

// Name implements Transformer.
func (in *Indicator) Name() string { return "indicator" }

// Fit verifies the source column is numeric.
func (in *Indicator) Fit(ds *dataset.Dataset) error {
	col, err := ds.Column(in.Source)
	if err != nil {
		return err
	}
	if col.Kind != dataset.KindNumeric {
		return fmt.Errorf("dataprep: indicator source %s is not numeric", in.Source)
	}
	in.fitted = true
	return nil
}

// Transform appends the indicator column.
func (in *Indicator) Transform(ds *dataset.Dataset) error {
	if !in.fitted {
		return ErrNotFitted
	}
	col, err := ds.Column(in.Source)
	if err != nil {
		return err
	}
	name := in.As
	if name == "" {
		name = fmt.Sprintf("%s_gt_%g", in.Source, in.Threshold)
	}
	ind := &dataset.Column{
		Name:    name,
		Kind:    dataset.KindNumeric,
		Floats:  make([]float64, col.Len()),
		Missing: make([]bool, col.Len()),
	}
	for i, v := range col.Floats {
		if col.Missing[i] {
			ind.Missing[i] = true
			continue
		}
		if v > in.Threshold {
			ind.Floats[i] = 1
		}
	}
	return ds.AppendColumn(ind)
}
