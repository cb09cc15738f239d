package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragagent-go/internal/agent"
	"github.com/54b3r/ragagent-go/internal/corpus"
	"github.com/54b3r/ragagent-go/internal/logging"
)

// chatHelp is printed by the REPL's help command.
const chatHelp = `Commands:
  help            show this message
  corpus          show the current corpus
  quit, exit      leave the chat

Anything else is sent to the agent. Examples:
  list my corpora
  create a corpus called cement-manuals
  add https://drive.google.com/file/d/FILE_ID/view to cement-manuals
  what does the cement-manuals corpus say about kiln maintenance?`

// NewChatCmd constructs the `ragagent chat` command, an interactive REPL
// holding one session, so the current corpus carries across turns.
func NewChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with the agent",
		Long: `Start an interactive conversation with the RAG agent.

The conversation keeps a current corpus: once you create, query or add data
to a corpus, later questions use it unless you name another one. Turns are
saved to the history store; pass --session to resume an earlier
conversation.

Examples:
  ragagent chat
  ragagent chat --session 6f1c2b8e-5d1e-4a1f-9a57-1f0c3e2b7d11`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			rt, err := buildRuntime(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer rt.close()

			chatModel, _, flush, err := newChatModel(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer flush()

			history, closeHistory := openHistory(ctx, log, rt.settings.HistoryRetention)
			defer closeHistory()

			ragAgent, err := newAgent(ctx, chatModel, rt, history)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			return runREPL(cmd, ragAgent, corpus.NewSession(sessionID), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Resume the conversation with this session ID")

	return cmd
}

// runREPL reads lines from in until EOF or a quit command and answers each
// through the agent.
func runREPL(cmd *cobra.Command, a *agent.RAGAgent, sess *corpus.Session, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	prompt := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	errColor := color.New(color.FgRed)

	fmt.Fprintf(out, "%s chat (session %s). Type 'help' for commands, 'quit' to exit.\n\n", agent.Name, sess.ID)

	scanner := bufio.NewScanner(in)
	for {
		prompt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			dim.Fprintln(out, "bye")
			return nil
		case "help":
			fmt.Fprintln(out, chatHelp)
			continue
		case "corpus":
			if name, ok := sess.CurrentCorpus(); ok {
				fmt.Fprintf(out, "current corpus: %s\n", name)
			} else {
				dim.Fprintln(out, "no current corpus yet")
			}
			continue
		}

		prompt.Fprint(out, "agent> ")
		if _, err := a.Query(ctx, sess, line, out); err != nil {
			fmt.Fprintln(out)
			errColor.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		fmt.Fprint(out, "\n\n")
	}
}
