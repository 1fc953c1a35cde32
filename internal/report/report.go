// Package report builds exploratory summaries of a dataset and writes
// them as CSV files or a multi-sheet workbook.
package report

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pricepipe/internal/dataset"
)

// ColumnProfile describes one column of the profiled dataset.
type ColumnProfile struct {
	Summary     dataset.Summary
	MissingPct  float64
	Correlation float64 // with the target; NaN when not computable
}

// Report is a full exploratory profile of a dataset.
type Report struct {
	Source      string
	Target      string
	Rows        int
	Columns     []ColumnProfile
	GeneratedAt time.Time
}

// Build profiles every column of ds. target may be empty, in which
// case no correlations are computed.
func Build(ds *dataset.Dataset, source, target string, logger *slog.Logger) (*Report, error) {
	if target != "" && !ds.HasColumn(target) {
		return nil, fmt.Errorf("target column %s not in dataset", target)
	}

	rpt := &Report{
		Source:      source,
		Target:      target,
		Rows:        ds.NumRows(),
		GeneratedAt: time.Now().UTC(),
	}

	for _, summary := range ds.Summarize() {
		profile := ColumnProfile{
			Summary:     summary,
			Correlation: math.NaN(),
		}
		if rpt.Rows > 0 {
			profile.MissingPct = 100 * float64(summary.Missing) / float64(rpt.Rows)
		}

		if target != "" && summary.Name != target && summary.Kind == dataset.KindNumeric {
			corr, err := ds.Correlation(summary.Name, target)
			if err != nil {
				logger.Debug("correlation skipped",
					"column", summary.Name,
					"reason", err.Error())
			} else {
				profile.Correlation = corr
			}
		}

		rpt.Columns = append(rpt.Columns, profile)
	}

	logger.Info("profile built",
		"source", source,
		"rows", rpt.Rows,
		"columns", len(rpt.Columns))
	return rpt, nil
}

// TopCorrelations returns the numeric columns most correlated with the
// target, strongest absolute correlation first.
func (r *Report) TopCorrelations(n int) []ColumnProfile {
	var correlated []ColumnProfile
	for _, profile := range r.Columns {
		if !math.IsNaN(profile.Correlation) {
			correlated = append(correlated, profile)
		}
	}
	sort.Slice(correlated, func(i, j int) bool {
		return math.Abs(correlated[i].Correlation) > math.Abs(correlated[j].Correlation)
	})
	if n > 0 && len(correlated) > n {
		correlated = correlated[:n]
	}
	return correlated
}

// MissingColumns returns profiles of columns with at least one missing
// value, most missing first.
func (r *Report) MissingColumns() []ColumnProfile {
	var missing []ColumnProfile
	for _, profile := range r.Columns {
		if profile.Summary.Missing > 0 {
			missing = append(missing, profile)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		return missing[i].Summary.Missing > missing[j].Summary.Missing
	})
	return missing
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return nil
}
