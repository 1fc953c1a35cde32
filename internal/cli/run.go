package cli

import (
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		step     string
		impute   string
		logScale bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the training pipeline",
		Long:  "Run the full training pipeline (ingest, clean, features, outliers, split, train, evaluate), or a single step with --step. Each run is recorded in the tracking store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make(map[string]interface{})
			if cmd.Flags().Changed("impute") {
				params["impute"] = impute
			}
			if cmd.Flags().Changed("log-target") {
				params["log_target"] = logScale
			}
			return executeOperation(cmd.Context(), "training", step, params)
		},
	}

	cmd.Flags().StringVar(&step, "step", "", "run a single step (ingest|clean|features|outliers|split|train|evaluate)")
	cmd.Flags().StringVar(&impute, "impute", "median", "imputation strategy for numeric gaps (median|mean)")
	cmd.Flags().BoolVar(&logScale, "log-target", true, "train on the log of the target column")

	return cmd
}
