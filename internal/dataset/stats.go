package dataset

import (
	"fmt"
	"math"
	"sort"
)

// Summary describes one column of a dataset.
type Summary struct {
	Name     string     `json:"name"`
	Kind     ColumnKind `json:"kind"`
	Count    int        `json:"count"`
	Missing  int        `json:"missing"`
	Mean     float64    `json:"mean,omitempty"`
	StdDev   float64    `json:"std_dev,omitempty"`
	Min      float64    `json:"min,omitempty"`
	P25      float64    `json:"p25,omitempty"`
	Median   float64    `json:"median,omitempty"`
	P75      float64    `json:"p75,omitempty"`
	Max      float64    `json:"max,omitempty"`
	Distinct int        `json:"distinct,omitempty"`
}

// Summarize computes a Summary for every column.
func (d *Dataset) Summarize() []Summary {
	out := make([]Summary, 0, len(d.cols))
	for _, col := range d.cols {
		s := Summary{
			Name:    col.Name,
			Kind:    col.Kind,
			Count:   col.Len() - col.MissingCount(),
			Missing: col.MissingCount(),
		}
		if col.Kind == KindNumeric {
			vals := presentValues(col)
			if len(vals) > 0 {
				s.Mean = Mean(vals)
				s.StdDev = StdDev(vals)
				sorted := append([]float64(nil), vals...)
				sort.Float64s(sorted)
				s.Min = sorted[0]
				s.Max = sorted[len(sorted)-1]
				s.P25 = Percentile(sorted, 25)
				s.Median = Percentile(sorted, 50)
				s.P75 = Percentile(sorted, 75)
			}
		} else {
			seen := make(map[string]struct{})
			for i, v := range col.Strings {
				if !col.Missing[i] {
					seen[v] = struct{}{}
				}
			}
			s.Distinct = len(seen)
		}
		out = append(out, s)
	}
	return out
}

// Correlation returns the Pearson correlation between two numeric columns,
// computed over rows where both are present.
func (d *Dataset) Correlation(a, b string) (float64, error) {
	ca, err := d.Column(a)
	if err != nil {
		return 0, err
	}
	cb, err := d.Column(b)
	if err != nil {
		return 0, err
	}
	if ca.Kind != KindNumeric || cb.Kind != KindNumeric {
		return 0, fmt.Errorf("dataset: correlation requires numeric columns")
	}

	var xs, ys []float64
	for i := 0; i < ca.Len(); i++ {
		if ca.Missing[i] || cb.Missing[i] {
			continue
		}
		xs = append(xs, ca.Floats[i])
		ys = append(ys, cb.Floats[i])
	}
	if len(xs) < 2 {
		return 0, fmt.Errorf("dataset: not enough paired values between %s and %s", a, b)
	}

	mx, my := Mean(xs), Mean(ys)
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, fmt.Errorf("dataset: zero variance in %s or %s", a, b)
	}
	return cov / math.Sqrt(vx*vy), nil
}

// Mean returns the arithmetic mean of vals, 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// StdDev returns the population standard deviation of vals.
func StdDev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := Mean(vals)
	s := 0.0
	for _, v := range vals {
		d := v - m
		s += d * d
	}
	return math.Sqrt(s / float64(len(vals)))
}

// Median returns the median of vals.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return Percentile(sorted, 50)
}

// Mode returns the most frequent value in vals, breaking ties toward the
// smaller value.
func Mode(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	counts := make(map[float64]int)
	for _, v := range vals {
		counts[v]++
	}
	best, bestCount := math.Inf(1), 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}

// Percentile returns the p-th percentile of an already sorted slice using
// linear interpolation. p is in [0, 100].
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func presentValues(col *Column) []float64 {
	var out []float64
	for i, v := range col.Floats {
		if !col.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}
