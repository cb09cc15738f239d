package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragagent-go/internal/logging"
	"github.com/54b3r/ragagent-go/internal/server"
	"github.com/54b3r/ragagent-go/internal/session"
)

// NewServeCmd constructs the `ragagent serve` command, which starts the HTTP
// server exposing the chat and corpus API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragagent HTTP server",
		Long: `Start the ragagent HTTP server.

The server exposes a JSON/SSE API for chatting with the agent and managing
corpora. Each browser session gets its own current corpus and conversation
history (capped at the last 50 messages).

Examples:
  ragagent serve
  ragagent serve --port 9090
  RAG_BACKEND=qdrant ragagent serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Flags win over RAGAGENT_HOST / RAGAGENT_PORT when set explicitly.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("RAGAGENT_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("RAGAGENT_PORT", port)
			}

			rt, err := buildRuntime(ctx, log, prometheus.DefaultRegisterer)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer rt.close()

			chatModel, _, flush, err := newChatModel(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer flush()

			history, closeHistory := openHistory(ctx, log, rt.settings.HistoryRetention)
			defer closeHistory()

			ragAgent, err := newAgent(ctx, chatModel, rt, history)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{server.NewServicePinger(rt.settings.Backend, rt.service)}
			if history != nil {
				pingers = append(pingers, server.NewServicePinger("history", history))
			}

			srv, err := server.New(&server.Deps{
				Agent:    ragAgent,
				Tools:    rt.tools,
				Sessions: session.NewRegistry(rt.settings.SessionTTL, log),
				History:  history,
			}, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Backend: rt.settings.Backend,
				Pingers: pingers,
				APIKey:  os.Getenv("RAGAGENT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
