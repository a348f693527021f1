// Package commands defines all Cobra CLI commands for the gearsage binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/gearsage/gearsage-go/internal/audit"
	"github.com/gearsage/gearsage-go/internal/config"
	"github.com/gearsage/gearsage-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gearsage",
		Short: "GearSage — grounded gaming gear recommendations powered by LLMs",
		Long: `GearSage is a retrieval-augmented assistant for gaming peripherals.

It ingests scraped product catalogs (mice, keyboards, headsets, monitors)
into a vector index and answers buying questions with recommendations
grounded in the indexed catalog, citing the product ids it relied on.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.gearsage/config.yaml).
See 'gearsage --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.gearsage/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
