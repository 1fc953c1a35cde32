package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"pricepipe/internal/tracking"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printOperationResult prints a finished operation in text format.
func printOperationResult(result operationResult) {
	fmt.Printf("Operation %s (%s): %s in %s\n", result.ID, result.Kind, result.Status, result.Duration)
	for _, step := range result.Steps {
		line := fmt.Sprintf("  %-10s %s", step.ID, step.Status)
		if step.Message != "" {
			line += "  " + step.Message
		}
		fmt.Println(line)
	}
	if result.RunID != "" {
		fmt.Printf("Run: %s\n", result.RunID)
	}
	if len(result.Metrics) > 0 {
		keys := make([]string, 0, len(result.Metrics))
		for k := range result.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Metrics:")
		for _, k := range keys {
			fmt.Printf("  %-18s %.4f\n", k, result.Metrics[k])
		}
	}
	if result.Error != "" {
		fmt.Printf("Error: %s\n", result.Error)
	}
}

// printRunTable prints tracked runs as a formatted table.
func printRunTable(runs []*tracking.Run) error {
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tRMSE\tR2"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}

	for _, r := range runs {
		rmse := "-"
		if v, ok := r.Metrics["rmse"]; ok {
			rmse = fmt.Sprintf("%.2f", v)
		}
		r2 := "-"
		if v, ok := r.Metrics["r2"]; ok {
			r2 = fmt.Sprintf("%.4f", v)
		}

		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), rmse, r2); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d runs\n", len(runs))
	return nil
}
