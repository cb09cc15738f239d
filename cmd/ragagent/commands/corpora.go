package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragagent-go/internal/logging"
	"github.com/54b3r/ragagent-go/internal/rag"
)

// NewCorporaCmd constructs the `ragagent corpora` command group for direct
// corpus management without the agent.
func NewCorporaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "corpora",
		Aliases: []string{"corpus"},
		Short:   "Manage corpora directly",
		Long: `List, create, inspect and delete corpora without going through the agent.

Corpus names may be display names, bare corpus IDs or full resource names
(projects/{project}/locations/{location}/ragCorpora/{id}).`,
	}

	cmd.AddCommand(
		newCorporaListCmd(),
		newCorporaCreateCmd(),
		newCorporaInfoCmd(),
		newCorporaDeleteCmd(),
	)
	return cmd
}

// withRuntime runs fn with a freshly built runtime and a logger-carrying
// context.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	log := logging.New()
	ctx := logging.WithLogger(cmd.Context(), log)
	rt, err := buildRuntime(ctx, log, nil)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, rt)
}

func newCorporaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all corpora",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				corpora, err := rt.service.ListCorpora(ctx)
				if err != nil {
					return fmt.Errorf("corpora list: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(corpora) == 0 {
					fmt.Fprintln(out, "No corpora found. Create one with 'ragagent corpora create <name>'.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DISPLAY NAME\tID\tUPDATED")
				for _, c := range corpora {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.DisplayName, rag.LastSegment(c.Name), c.UpdateTime)
				}
				return tw.Flush()
			})
		},
	}
}

func newCorporaCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				name := strings.TrimSpace(args[0])
				if rt.resolver.CorpusExists(ctx, name, nil) {
					return fmt.Errorf("corpora create: corpus %q already exists", name)
				}
				created, err := rt.service.CreateCorpus(ctx, name, description)
				if err != nil {
					return fmt.Errorf("corpora create: %w", err)
				}
				rt.resolver.Invalidate()
				logging.FromContext(ctx).Info("corpus created", slog.String("resource_name", created.Name))

				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Created corpus %q\n", created.DisplayName)
				fmt.Fprintf(cmd.OutOrStdout(), "  resource name: %s\n", created.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Optional corpus description")
	return cmd
}

func newCorporaInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show a corpus and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				resource, err := resolveExisting(ctx, rt, args[0])
				if err != nil {
					return fmt.Errorf("corpora info: %w", err)
				}
				c, err := rt.service.GetCorpus(ctx, resource)
				if err != nil {
					return fmt.Errorf("corpora info: %w", err)
				}
				files, err := rt.service.ListFiles(ctx, resource)
				if err != nil {
					return fmt.Errorf("corpora info: %w", err)
				}

				out := cmd.OutOrStdout()
				color.New(color.Bold).Fprintln(out, c.DisplayName)
				fmt.Fprintf(out, "  resource name: %s\n", c.Name)
				if c.Description != "" {
					fmt.Fprintf(out, "  description:   %s\n", c.Description)
				}
				fmt.Fprintf(out, "  created:       %s\n  updated:       %s\n", c.CreateTime, c.UpdateTime)
				fmt.Fprintf(out, "  documents:     %d\n\n", len(files))
				if len(files) == 0 {
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DOCUMENT ID\tNAME\tSOURCE")
				for _, f := range files {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", rag.LastSegment(f.Name), f.DisplayName, f.SourceURI)
				}
				return tw.Flush()
			})
		},
	}
}

func newCorporaDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a corpus and all of its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				resource, err := resolveExisting(ctx, rt, args[0])
				if err != nil {
					return fmt.Errorf("corpora delete: %w", err)
				}
				if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Permanently delete %s and all of its documents?", resource)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
				if err := rt.service.DeleteCorpus(ctx, resource); err != nil {
					return fmt.Errorf("corpora delete: %w", err)
				}
				rt.resolver.Invalidate()
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Deleted %s\n", resource)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// resolveExisting resolves name and fails when no such corpus exists.
func resolveExisting(ctx context.Context, rt *runtime, name string) (string, error) {
	if !rt.resolver.CorpusExists(ctx, name, nil) {
		return "", fmt.Errorf("corpus %q does not exist; run 'ragagent corpora list'", name)
	}
	return rt.resolver.ResolveResourceName(ctx, name)
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
