// Package outliers detects and handles outlying values in numeric columns,
// either by removing the offending rows or by capping values to the detector
// fences.
package outliers

import (
	"fmt"
	"math"
	"sort"

	"pricepipe/internal/dataset"
)

// Method selects the detection rule.
type Method string

const (
	// MethodZScore flags values more than Threshold standard deviations
	// from the column mean.
	MethodZScore Method = "zscore"
	// MethodIQR flags values outside [Q1 - k*IQR, Q3 + k*IQR].
	MethodIQR Method = "iqr"
)

// Strategy selects what happens to flagged values.
type Strategy string

const (
	// StrategyRemove drops every row containing a flagged value.
	StrategyRemove Strategy = "remove"
	// StrategyCap clamps flagged values to the fence.
	StrategyCap Strategy = "cap"
)

// ParseMethod validates a method string.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodZScore, MethodIQR:
		return Method(s), nil
	}
	return "", fmt.Errorf("outliers: unknown method %q", s)
}

// ParseStrategy validates a strategy string.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRemove, StrategyCap:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("outliers: unknown strategy %q", s)
}

// Detector finds outliers in numeric columns.
type Detector struct {
	Method Method
	// Threshold is the z-score cutoff (default 3) or the IQR multiplier
	// (default 1.5).
	Threshold float64
	// Columns restricts detection; empty means every numeric column except
	// those in Exclude.
	Columns []string
	Exclude []string
}

// ColumnReport describes the outliers found in one column.
type ColumnReport struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Lower  float64 `json:"lower_fence"`
	Upper  float64 `json:"upper_fence"`
}

// Report summarizes a detection pass.
type Report struct {
	Method      Method         `json:"method"`
	Threshold   float64        `json:"threshold"`
	Columns     []ColumnReport `json:"columns"`
	RowsFlagged int            `json:"rows_flagged"`
}

// Detect flags outlier cells and returns a per-row mask along with a report.
// Missing cells are never flagged.
func (d *Detector) Detect(ds *dataset.Dataset) ([]bool, *Report, error) {
	threshold := d.Threshold
	if threshold <= 0 {
		switch d.Method {
		case MethodZScore:
			threshold = 3
		case MethodIQR:
			threshold = 1.5
		default:
			return nil, nil, fmt.Errorf("outliers: unknown method %q", d.Method)
		}
	}

	mask := make([]bool, ds.NumRows())
	report := &Report{Method: d.Method, Threshold: threshold}

	for _, col := range d.targets(ds) {
		lower, upper, err := d.fences(col, threshold)
		if err != nil {
			return nil, nil, err
		}
		cr := ColumnReport{Column: col.Name, Lower: lower, Upper: upper}
		for i, v := range col.Floats {
			if col.Missing[i] {
				continue
			}
			if v < lower || v > upper {
				cr.Count++
				mask[i] = true
			}
		}
		report.Columns = append(report.Columns, cr)
	}

	for _, flagged := range mask {
		if flagged {
			report.RowsFlagged++
		}
	}
	return mask, report, nil
}

// Apply detects outliers and applies the strategy in place, returning the
// report.
func (d *Detector) Apply(ds *dataset.Dataset, strategy Strategy) (*Report, error) {
	mask, report, err := d.Detect(ds)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case StrategyRemove:
		if err := ds.DropRows(mask); err != nil {
			return nil, err
		}
	case StrategyCap:
		for _, cr := range report.Columns {
			col, err := ds.Column(cr.Column)
			if err != nil {
				return nil, err
			}
			for i, v := range col.Floats {
				if col.Missing[i] {
					continue
				}
				if v < cr.Lower {
					col.Floats[i] = cr.Lower
				} else if v > cr.Upper {
					col.Floats[i] = cr.Upper
				}
			}
		}
	default:
		return nil, fmt.Errorf("outliers: unknown strategy %q", strategy)
	}
	return report, nil
}

func (d *Detector) fences(col *dataset.Column, threshold float64) (float64, float64, error) {
	var present []float64
	for i, v := range col.Floats {
		if !col.Missing[i] {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return math.Inf(-1), math.Inf(1), nil
	}

	switch d.Method {
	case MethodZScore:
		mean := dataset.Mean(present)
		std := dataset.StdDev(present)
		if std == 0 {
			return math.Inf(-1), math.Inf(1), nil
		}
		return mean - threshold*std, mean + threshold*std, nil
	case MethodIQR:
		sorted := append([]float64(nil), present...)
		sort.Float64s(sorted)
		q1 := dataset.Percentile(sorted, 25)
		q3 := dataset.Percentile(sorted, 75)
		iqr := q3 - q1
		return q1 - threshold*iqr, q3 + threshold*iqr, nil
	}
	return 0, 0, fmt.Errorf("outliers: unknown method %q", d.Method)
}

func (d *Detector) targets(ds *dataset.Dataset) []*dataset.Column {
	skip := make(map[string]struct{}, len(d.Exclude))
	for _, name := range d.Exclude {
		skip[name] = struct{}{}
	}
	var out []*dataset.Column
	if len(d.Columns) == 0 {
		for _, col := range ds.Columns() {
			if col.Kind != dataset.KindNumeric {
				continue
			}
			if _, ok := skip[col.Name]; ok {
				continue
			}
			out = append(out, col)
		}
		return out
	}
	for _, name := range d.Columns {
		if _, ok := skip[name]; ok {
			continue
		}
		if col, err := ds.Column(name); err == nil && col.Kind == dataset.KindNumeric {
			out = append(out, col)
		}
	}
	return out
}
