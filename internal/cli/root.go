// Package cli defines the cobra command tree for the pipeline tool.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pricepipe/internal/config"
	"pricepipe/internal/infrastructure"
	"pricepipe/internal/tracking"
)

var (
	flagFormat string
	flagConfig string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Train and track house price models",
		Long:          "Run the house price regression pipeline: ingest the raw archive, clean and engineer features, train and evaluate models, and manage deployments. Runs are recorded in a local SQLite tracking store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: config.yaml or PRICEPIPE_CONFIG)")

	root.AddCommand(
		newRunCmd(),
		newEDACmd(),
		newDeployCmd(),
		newRunsCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig loads the configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		if err := os.Setenv("PRICEPIPE_CONFIG", flagConfig); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

// newLogger builds the structured logger from the loaded configuration.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return infrastructure.InitializeLogger(cfg.Logging)
}

// openTracker opens the SQLite tracking store at the configured path.
func openTracker(cfg *config.Config) (*tracking.Store, error) {
	return tracking.Open(cfg.Paths.TrackingDB)
}

// closeTracker closes the tracking store, logging any error to stderr.
func closeTracker(store *tracking.Store) {
	if err := store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing tracking store: %v\n", err)
	}
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}
