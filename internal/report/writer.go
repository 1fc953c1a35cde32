package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"pricepipe/internal/dataset"
)

var summaryHeader = []string{
	"column", "kind", "count", "missing", "missing_pct",
	"mean", "std_dev", "min", "p25", "median", "p75", "max",
	"distinct", "target_corr",
}

func (p ColumnProfile) record() []string {
	s := p.Summary
	rec := []string{
		s.Name,
		string(s.Kind),
		strconv.Itoa(s.Count),
		strconv.Itoa(s.Missing),
		formatFloat(p.MissingPct),
	}
	if s.Kind == dataset.KindNumeric {
		rec = append(rec,
			formatFloat(s.Mean), formatFloat(s.StdDev),
			formatFloat(s.Min), formatFloat(s.P25), formatFloat(s.Median),
			formatFloat(s.P75), formatFloat(s.Max),
			"",
		)
	} else {
		rec = append(rec, "", "", "", "", "", "", "", strconv.Itoa(s.Distinct))
	}
	if math.IsNaN(p.Correlation) {
		rec = append(rec, "")
	} else {
		rec = append(rec, formatFloat(p.Correlation))
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// WriteCSV writes the profile as a single CSV file.
func (r *Report) WriteCSV(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(summaryHeader); err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}
	for _, profile := range r.Columns {
		if err := w.Write(profile.record()); err != nil {
			return fmt.Errorf("writing report row %s: %w", profile.Summary.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing report: %w", err)
	}
	return f.Close()
}

// WriteWorkbook writes the profile as an xlsx workbook with Summary,
// Missing and Correlations sheets.
func (r *Report) WriteWorkbook(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	f.SetSheetName("Sheet1", summarySheet)

	writeRow(f, summarySheet, 1, toAny(summaryHeader))
	for i, profile := range r.Columns {
		writeRow(f, summarySheet, i+2, profileCells(profile))
	}

	const missingSheet = "Missing"
	f.NewSheet(missingSheet)
	writeRow(f, missingSheet, 1, []interface{}{"column", "missing", "missing_pct"})
	for i, profile := range r.MissingColumns() {
		writeRow(f, missingSheet, i+2, []interface{}{
			profile.Summary.Name, profile.Summary.Missing, profile.MissingPct,
		})
	}

	if r.Target != "" {
		const corrSheet = "Correlations"
		f.NewSheet(corrSheet)
		writeRow(f, corrSheet, 1, []interface{}{"column", "correlation"})
		for i, profile := range r.TopCorrelations(0) {
			writeRow(f, corrSheet, i+2, []interface{}{
				profile.Summary.Name, profile.Correlation,
			})
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}

func profileCells(p ColumnProfile) []interface{} {
	s := p.Summary
	cells := []interface{}{s.Name, string(s.Kind), s.Count, s.Missing, p.MissingPct}
	if s.Kind == dataset.KindNumeric {
		cells = append(cells, s.Mean, s.StdDev, s.Min, s.P25, s.Median, s.P75, s.Max, "")
	} else {
		cells = append(cells, "", "", "", "", "", "", "", s.Distinct)
	}
	if math.IsNaN(p.Correlation) {
		cells = append(cells, "")
	} else {
		cells = append(cells, p.Correlation)
	}
	return cells
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) {
	for col, value := range cells {
		name, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		f.SetCellValue(sheet, name, value)
	}
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
