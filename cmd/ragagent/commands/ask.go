package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragagent-go/internal/logging"
)

// NewAskCmd constructs the `ragagent ask` command, which sends a single
// natural language message to the agent and streams the response to stdout.
// The message runs in an ephemeral session and is not saved to history.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message to the agent",
		Long: `Send one natural language message to the RAG agent and print the answer.

The agent can list, create and delete corpora, import documents and answer
questions from a corpus. Nothing is remembered between invocations; use
'ragagent chat' for a multi-turn conversation.

Examples:
  ragagent ask "what corpora do I have?"
  ragagent ask "in the cement-manuals corpus, what is the kiln inlet temperature?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			rt, err := buildRuntime(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer rt.close()

			chatModel, _, flush, err := newChatModel(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer flush()

			ragAgent, err := newAgent(ctx, chatModel, rt, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			_, err = ragAgent.Query(ctx, nil, strings.Join(args, " "), out) //nolint:wrapcheck // CLI entry point, cobra prints the error
			fmt.Fprintln(out)
			return err
		},
	}

	return cmd
}
