package dataprep

import (
	"pricepipe/internal/dataset"
)

// ScaleParams holds the fitted parameters for one scaled column.
type ScaleParams struct {
	Center float64 `json:"center"` // mean (standard) or min (min-max)
	Spread float64 `json:"spread"` // stddev (standard) or max-min (min-max)
}

// StandardScaler centers numeric columns to zero mean and unit variance.
// Zero-variance columns are centered but left unscaled.
type StandardScaler struct {
	// Columns restricts scaling; empty means every numeric column except
	// those listed in Exclude.
	Columns []string
	// Exclude names columns never to scale, typically the target.
	Exclude []string

	fitted bool
	params map[string]ScaleParams
}

// Name implements Transformer.
func (s *StandardScaler) Name() string { return "standard_scale" }

// Fit computes mean and stddev of each target column's present values.
func (s *StandardScaler) Fit(ds *dataset.Dataset) error {
	s.params = make(map[string]ScaleParams)
	for _, col := range numericTargets(ds, s.Columns, s.Exclude) {
		var present []float64
		for i, v := range col.Floats {
			if !col.Missing[i] {
				present = append(present, v)
			}
		}
		if len(present) == 0 {
			continue
		}
		s.params[col.Name] = ScaleParams{
			Center: dataset.Mean(present),
			Spread: dataset.StdDev(present),
		}
	}
	s.fitted = true
	return nil
}

// Transform applies (x - mean) / stddev in place.
func (s *StandardScaler) Transform(ds *dataset.Dataset) error {
	if !s.fitted {
		return ErrNotFitted
	}
	return applyScale(ds, s.params)
}

// Params returns the fitted per-column parameters.
func (s *StandardScaler) Params() map[string]ScaleParams {
	return s.params
}

// MinMaxScaler rescales numeric columns into [0, 1]. Constant columns are
// shifted to zero but left unscaled.
type MinMaxScaler struct {
	Columns []string
	Exclude []string

	fitted bool
	params map[string]ScaleParams
}

// Name implements Transformer.
func (s *MinMaxScaler) Name() string { return "minmax_scale" }

// Fit records min and range of each target column's present values.
func (s *MinMaxScaler) Fit(ds *dataset.Dataset) error {
	s.params = make(map[string]ScaleParams)
	for _, col := range numericTargets(ds, s.Columns, s.Exclude) {
		first := true
		var lo, hi float64
		for i, v := range col.Floats {
			if col.Missing[i] {
				continue
			}
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if first {
			continue // no present values
		}
		s.params[col.Name] = ScaleParams{Center: lo, Spread: hi - lo}
	}
	s.fitted = true
	return nil
}

// Transform applies (x - min) / (max - min) in place.
func (s *MinMaxScaler) Transform(ds *dataset.Dataset) error {
	if !s.fitted {
		return ErrNotFitted
	}
	return applyScale(ds, s.params)
}

// Params returns the fitted per-column parameters.
func (s *MinMaxScaler) Params() map[string]ScaleParams {
	return s.params
}

func applyScale(ds *dataset.Dataset, params map[string]ScaleParams) error {
	for name, p := range params {
		col, err := ds.Column(name)
		if err != nil {
			continue // column absent in this split
		}
		for i := range col.Floats {
			if col.Missing[i] {
				continue
			}
			col.Floats[i] -= p.Center
			if p.Spread != 0 {
				col.Floats[i] /= p.Spread
			}
		}
	}
	return nil
}

func numericTargets(ds *dataset.Dataset, include, exclude []string) []*dataset.Column {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	var out []*dataset.Column
	if len(include) == 0 {
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
	for _, name := range include {
		if _, ok := skip[name]; ok {
			continue
		}
		if col, err := ds.Column(name); err == nil && col.Kind == dataset.KindNumeric {
			out = append(out, col)
		}
	}
	return out
}
