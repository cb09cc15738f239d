// Package commands defines all Cobra CLI commands for the ragagent binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragagent-go/internal/audit"
	"github.com/54b3r/ragagent-go/internal/config"
	"github.com/54b3r/ragagent-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragagent",
		Short: "ragagent manages and queries document corpora with an LLM agent",
		Long: `ragagent is an assistant for Retrieval Augmented Generation corpora.

It creates and lists corpora, imports documents from Google Drive and Cloud
Storage, and answers questions grounded in the retrieved passages. Corpora
live in the Vertex AI RAG Engine, or in a local Qdrant instance for
development (RAG_BACKEND=qdrant).

Settings come from the environment, a .env file, or a YAML config file
(~/.ragagent/config.yaml). Environment variables always win.
See 'ragagent --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML and .env config (env vars always override both).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(cmd.Context(), log, cmd.CommandPath(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragagent/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewChatCmd(),
		NewAskCmd(),
		NewCheckCmd(),
		NewCorporaCmd(),
		NewQueryCmd(),
		NewVersionCmd(),
	)

	return root
}
