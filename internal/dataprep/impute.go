package dataprep

import (
	"fmt"
	"sort"

	"pricepipe/internal/dataset"
)

// ImputeStrategy selects how missing values are filled.
type ImputeStrategy string

const (
	ImputeMean     ImputeStrategy = "mean"
	ImputeMedian   ImputeStrategy = "median"
	ImputeMode     ImputeStrategy = "mode"
	ImputeConstant ImputeStrategy = "constant"
	ImputeDrop     ImputeStrategy = "drop"
)

// ParseImputeStrategy validates a strategy string.
func ParseImputeStrategy(s string) (ImputeStrategy, error) {
	switch ImputeStrategy(s) {
	case ImputeMean, ImputeMedian, ImputeMode, ImputeConstant, ImputeDrop:
		return ImputeStrategy(s), nil
	}
	return "", fmt.Errorf("dataprep: unknown imputation strategy %q", s)
}

// Imputer fills missing cells. Mean and median apply to numeric columns
// only: naming a categorical column explicitly is an error, and with no
// column list categoricals are left untouched. Mode fills both kinds,
// constant fills numerics with FillValue and categoricals with FillLabel.
// The drop strategy removes rows with any missing cell instead of filling.
type Imputer struct {
	Strategy ImputeStrategy
	// Columns restricts imputation to the named columns; empty means all.
	Columns []string
	// FillValue is the numeric fill for constant strategy.
	FillValue float64
	// FillLabel is the categorical fill for constant strategy.
	FillLabel string

	fitted       bool
	numericFills map[string]float64
	labelFills   map[string]string
}

// Name implements Transformer.
func (im *Imputer) Name() string { return "impute_" + string(im.Strategy) }

// Fit computes fill values from the present cells of each target column.
func (im *Imputer) Fit(ds *dataset.Dataset) error {
	im.numericFills = make(map[string]float64)
	im.labelFills = make(map[string]string)

	for _, col := range im.targets(ds) {
		if im.Strategy == ImputeDrop {
			continue // nothing to learn
		}
		if col.Kind == dataset.KindNumeric {
			fill, err := im.numericFill(col)
			if err != nil {
				return err
			}
			im.numericFills[col.Name] = fill
		} else {
			if im.Strategy == ImputeMean || im.Strategy == ImputeMedian {
				if im.named(col.Name) {
					return fmt.Errorf("dataprep: strategy %s cannot fill categorical column %s", im.Strategy, col.Name)
				}
				continue
			}
			im.labelFills[col.Name] = im.labelFill(col)
		}
	}
	im.fitted = true
	return nil
}

// Transform fills (or drops) missing cells in place.
func (im *Imputer) Transform(ds *dataset.Dataset) error {
	if !im.fitted {
		return ErrNotFitted
	}

	if im.Strategy == ImputeDrop {
		drop := make([]bool, ds.NumRows())
		for _, col := range im.targets(ds) {
			for i, m := range col.Missing {
				if m {
					drop[i] = true
				}
			}
		}
		return ds.DropRows(drop)
	}

	for _, col := range im.targets(ds) {
		if col.Kind == dataset.KindNumeric {
			fill, ok := im.numericFills[col.Name]
			if !ok {
				continue // column not seen during fit
			}
			for i, m := range col.Missing {
				if m {
					col.Floats[i] = fill
					col.Missing[i] = false
				}
			}
		} else {
			fill, ok := im.labelFills[col.Name]
			if !ok {
				continue
			}
			for i, m := range col.Missing {
				if m {
					col.Strings[i] = fill
					col.Missing[i] = false
				}
			}
		}
	}
	return nil
}

// named reports whether the column was explicitly requested.
func (im *Imputer) named(name string) bool {
	for _, c := range im.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (im *Imputer) targets(ds *dataset.Dataset) []*dataset.Column {
	if len(im.Columns) == 0 {
		return ds.Columns()
	}
	var out []*dataset.Column
	for _, name := range im.Columns {
		if col, err := ds.Column(name); err == nil {
			out = append(out, col)
		}
	}
	return out
}

func (im *Imputer) numericFill(col *dataset.Column) (float64, error) {
	var present []float64
	for i, v := range col.Floats {
		if !col.Missing[i] {
			present = append(present, v)
		}
	}
	if len(present) == 0 && im.Strategy != ImputeConstant {
		return 0, fmt.Errorf("dataprep: column %s has no present values to impute from", col.Name)
	}
	switch im.Strategy {
	case ImputeMean:
		return dataset.Mean(present), nil
	case ImputeMedian:
		return dataset.Median(present), nil
	case ImputeMode:
		return dataset.Mode(present), nil
	case ImputeConstant:
		return im.FillValue, nil
	}
	return 0, fmt.Errorf("dataprep: strategy %s cannot fill numeric column %s", im.Strategy, col.Name)
}

func (im *Imputer) labelFill(col *dataset.Column) string {
	if im.Strategy == ImputeConstant {
		return im.FillLabel
	}
	counts := make(map[string]int)
	for i, v := range col.Strings {
		if !col.Missing[i] {
			counts[v]++
		}
	}
	labels := make([]string, 0, len(counts))
	for v := range counts {
		labels = append(labels, v)
	}
	// Ties break alphabetically so refits are deterministic.
	sort.Strings(labels)
	best, bestCount := "", -1
	for _, v := range labels {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
