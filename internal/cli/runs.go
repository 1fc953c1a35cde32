package cli

import (
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List tracked pipeline runs",
		Long:  "List recorded pipeline runs from the tracking store, newest first, with their status and key metrics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

func runRuns(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

	tracker, err := openTracker(cfg)
	if err != nil {
		return err
	}
	defer closeTracker(tracker)

	runs, err := tracker.ListRuns(limit)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(runs)
	}

	return printRunTable(runs)
}
