// Package commands defines all Cobra CLI commands for the medrag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/medrag-io/medrag-go/internal/audit"
	"github.com/medrag-io/medrag-go/internal/config"
	"github.com/medrag-io/medrag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "medrag",
		Short: "MedRAG — a grounded medical document assistant powered by LLMs",
		Long: `MedRAG is a local-first assistant for healthcare professionals.

It ingests clinical guidelines, research papers, and reference documents into
a vector store, then answers natural language questions grounded in that
corpus, citing the source documents it retrieved.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.medrag/config.yaml).
See 'medrag --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.medrag/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewEvalCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
