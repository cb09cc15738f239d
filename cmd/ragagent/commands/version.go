package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragagent-go/internal/version"
)

// NewVersionCmd constructs the `ragagent version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragagent version, git commit, and build date",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ragagent", version.String())
		},
	}
}
