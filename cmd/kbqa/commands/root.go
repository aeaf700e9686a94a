// Package commands defines all Cobra CLI commands for the kbqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/kbqa-dev/kbqa-go/internal/audit"
	"github.com/kbqa-dev/kbqa-go/internal/config"
	"github.com/kbqa-dev/kbqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// cfg is the configuration resolved in PersistentPreRunE, shared by all
// subcommands.
var cfg *config.Config

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kbqa",
		Short: "kbqa — retrieval-augmented question answering over your knowledge base",
		Long: `kbqa answers natural language questions grounded in your own document
collection. Each question is embedded, matched against a vector store
(Qdrant or Postgres/pgvector), and answered by a configured LLM provider
with the retrieved passages as context.

Providers and models are selected via a YAML config file
(~/.kbqa/config.yaml) with environment variable overrides.
See 'kbqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			loaded, path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			cfg = loaded
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.kbqa/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewModelsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
