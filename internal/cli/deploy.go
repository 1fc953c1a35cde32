package cli

import (
	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Promote the latest staged model to production",
		Long:  "Promote the most recently staged model to production, archiving any previously promoted model and writing the production pointer file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeOperation(cmd.Context(), "deploy", "", nil)
		},
	}

	return cmd
}
