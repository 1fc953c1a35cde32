package cli

import (
	"github.com/spf13/cobra"
)

func newEDACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eda",
		Short: "Generate the exploratory data report",
		Long:  "Ingest the raw archive and write the exploratory data report (CSV summary and workbook) to the reports directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeOperation(cmd.Context(), "eda", "", nil)
		},
	}

	return cmd
}
