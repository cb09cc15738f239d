package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragagent-go/internal/retrieval"
)

// NewQueryCmd constructs the `ragagent query` command, which runs a raw
// retrieval query against one corpus and prints the ranked contexts without
// involving the LLM.
func NewQueryCmd() *cobra.Command {
	var topK int
	var full bool

	cmd := &cobra.Command{
		Use:   "query <corpus> <text...>",
		Short: "Run a retrieval query against a corpus",
		Long: `Run a semantic retrieval query against one corpus and print the ranked
contexts with their relevance level. Useful for tuning RAG_TOP_K and
RAG_DISTANCE_THRESHOLD without spending model tokens.

Examples:
  ragagent query product-docs "how do I rotate credentials"
  ragagent query product-docs --top-k 10 refund policy`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" {
				return fmt.Errorf("query: query text is required")
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				resource, err := resolveExisting(ctx, rt, args[0])
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}

				cfg := rt.retrievalConfig()
				if topK > 0 {
					cfg.TopK = topK
				}
				resp, err := rt.service.RetrievalQuery(ctx, resource, text, cfg)
				if err != nil {
					return fmt.Errorf("query: %w (%s)", err, retrieval.Suggest(err))
				}

				results := retrieval.Process(resp)
				printResults(cmd, results, full)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum number of contexts (default RAG_TOP_K)")
	cmd.Flags().BoolVar(&full, "full", false, "Print full context text instead of a preview")
	return cmd
}

// previewLen caps the context text printed per result unless --full is set.
const previewLen = 240

func printResults(cmd *cobra.Command, results []retrieval.Result, full bool) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No relevant contexts found.")
		return
	}

	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	for _, r := range results {
		levelColor(r.RelevanceLevel).Fprintf(out, "#%d  %.3f  %s\n", r.Rank, r.Score, r.RelevanceLevel)
		if r.SourceName != "" || r.SourceURI != "" {
			bold.Fprintf(out, "    %s", r.SourceName)
			if r.SourceType != "" {
				faint.Fprintf(out, "  [%s]", r.SourceType)
			}
			fmt.Fprintln(out)
			if r.SourceURI != "" {
				faint.Fprintf(out, "    %s\n", r.SourceURI)
			}
		}
		text := r.Text
		if !full {
			text = preview(text, previewLen)
		}
		fmt.Fprintf(out, "    %s\n\n", strings.ReplaceAll(text, "\n", "\n    "))
	}

	sum := retrieval.Summarize(results)
	fmt.Fprintf(out, "%d contexts: %d high relevance, %d medium relevance\n",
		len(results), len(sum.High), len(sum.Medium))
}

// levelColor maps a relevance level to its display colour.
func levelColor(level retrieval.RelevanceLevel) *color.Color {
	switch level {
	case retrieval.RelevanceVeryHigh:
		return color.New(color.FgGreen, color.Bold)
	case retrieval.RelevanceHigh:
		return color.New(color.FgGreen)
	case retrieval.RelevanceMedium:
		return color.New(color.FgYellow)
	case retrieval.RelevanceLow:
		return color.New(color.FgRed)
	default:
		return color.New(color.Faint)
	}
}

// preview returns at most n runes of s, marking truncation with an ellipsis.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
