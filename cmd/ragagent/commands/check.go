package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragagent-go/internal/logging"
	"github.com/54b3r/ragagent-go/internal/server"
)

// checkTimeout bounds each individual setup probe.
const checkTimeout = 30 * time.Second

// NewCheckCmd constructs the `ragagent check` command, which verifies the
// configuration and reachability of the corpus backend and the chat model.
func NewCheckCmd() *cobra.Command {
	var skipModel bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify configuration and connectivity",
		Long: `Verify that ragagent is configured correctly.

The check reads the RAG settings, connects to the corpus backend, lists the
corpora and sends a one-word prompt to the chat model. The model probe
consumes a few tokens; skip it with --skip-model.

Examples:
  ragagent check
  ragagent check --skip-model`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			out := cmd.OutOrStdout()

			rt, err := buildRuntime(ctx, log, nil)
			if err != nil {
				report(out, "configuration", err)
				return fmt.Errorf("check: %w", err)
			}
			defer rt.close()
			report(out, "configuration", nil)
			fmt.Fprintf(out, "    project=%s location=%s backend=%s top_k=%d distance_threshold=%g\n",
				rt.settings.Project, rt.settings.Location, rt.settings.Backend,
				rt.settings.TopK, rt.settings.DistanceThreshold)

			failed := 0
			probes := []server.Pinger{server.NewServicePinger(rt.settings.Backend, rt.service)}

			if !skipModel {
				chatModel, providerCfg, flush, err := newChatModel(ctx, log)
				if err != nil {
					report(out, "chat model", err)
					failed++
				} else {
					defer flush()
					probes = append(probes, server.NewLLMPinger(chatModel, string(providerCfg.Backend)))
				}
			}

			for _, p := range probes {
				pctx, cancel := context.WithTimeout(ctx, checkTimeout)
				err := p.Ping(pctx)
				cancel()
				report(out, p.Name(), err)
				if err != nil {
					failed++
				}
			}

			lctx, cancel := context.WithTimeout(ctx, checkTimeout)
			corpora, err := rt.service.ListCorpora(lctx)
			cancel()
			report(out, "list corpora", err)
			if err != nil {
				failed++
			} else {
				fmt.Fprintf(out, "    %d corpora found\n", len(corpora))
			}

			if failed > 0 {
				return fmt.Errorf("check: %d check(s) failed", failed)
			}
			color.New(color.FgGreen, color.Bold).Fprintln(out, "all checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipModel, "skip-model", false, "Do not probe the chat model")

	return cmd
}

// report prints one check outcome.
func report(out io.Writer, name string, err error) {
	if err != nil {
		color.New(color.FgRed).Fprintf(out, "  ✗ %s: %v\n", name, err)
		return
	}
	color.New(color.FgGreen).Fprintf(out, "  ✓ %s\n", name)
}
