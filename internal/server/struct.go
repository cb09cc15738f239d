package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragagent-go/internal/corpus"
	"github.com/54b3r/ragagent-go/internal/session"
	"github.com/54b3r/ragagent-go/internal/store"
	"github.com/54b3r/ragagent-go/internal/tools"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds a single agent turn. Defaults to 5 minutes.
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Backend is the corpus backend name reported by GET /api/status.
	Backend string
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Deps carries the collaborators the server routes requests to.
type Deps struct {
	// Agent answers chat messages.
	Agent querier
	// Tools are invoked directly by the corpus endpoints.
	Tools []tools.RAGTool
	// Sessions holds per-conversation corpus state.
	Sessions *session.Registry
	// History is the optional conversation store.
	History store.ConversationStore
}

// querier is the interface handleChat calls to stream a response.
// *agent.RAGAgent satisfies it; tests inject a fake.
type querier interface {
	// Query streams the agent response for userMessage to w and returns the
	// full response text.
	Query(ctx context.Context, sess *corpus.Session, userMessage string, w io.Writer) (string, error)
}

// toolRunner is the subset of an Eino tool the corpus endpoints call.
type toolRunner interface {
	InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error)
}

// Server is the HTTP server that exposes the RAG agent.
type Server struct {
	// querier answers chat messages.
	querier querier
	// tools maps tool name to tool for the corpus endpoints.
	tools map[string]toolRunner
	// sessions holds per-conversation corpus state.
	sessions *session.Registry
	// history is the optional conversation store.
	history store.ConversationStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// started is when New returned, reported as uptime by /api/health.
	started time.Time
}

// envelope is the JSON body shared by every /api/* response except health
// and readiness.
type envelope struct {
	// Status is success or error.
	Status string `json:"status"`
	// Message describes the outcome for humans.
	Message string `json:"message,omitempty"`
	// Response is the agent's answer for chat requests.
	Response string `json:"response,omitempty"`
	// SessionID identifies the conversation.
	SessionID string `json:"session_id,omitempty"`
	// Result is the raw tool result for corpus endpoints.
	Result any `json:"result,omitempty"`
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's natural language query.
	Message string `json:"message"`
	// Stream selects a Server-Sent Events response instead of JSON.
	Stream bool `json:"stream,omitempty"`
}

// statusResponse is the JSON body for GET /api/status.
type statusResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	AgentLoaded    bool   `json:"agent_loaded"`
	ToolCount      int    `json:"tool_count"`
	Backend        string `json:"backend,omitempty"`
	ActiveSessions int    `json:"active_sessions"`
	CurrentCorpus  string `json:"current_corpus,omitempty"`
	Version        string `json:"version"`
}

// historyEntry is one message in GET /api/conversation-history.
type historyEntry struct {
	Role      string `json:"role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// historyResponse is the JSON body for GET /api/conversation-history.
type historyResponse struct {
	Status  string         `json:"status"`
	History []historyEntry `json:"history"`
}

// createCorpusRequest is the JSON body for POST /api/corpus/create.
type createCorpusRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// addDocumentRequest is the JSON body for POST /api/corpus/add-document.
type addDocumentRequest struct {
	CorpusName  string `json:"corpus_name"`
	DocumentURL string `json:"document_url"`
}
