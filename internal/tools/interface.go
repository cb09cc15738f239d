// Package tools defines the corpus-management and retrieval tools that the
// agent can invoke during a conversation. Each tool satisfies both this
// package's interface and Eino's tool.InvokableTool interface so they can be
// registered directly with the ReAct agent.
//
// Tools never fail the agent loop on a domain error. Every outcome is a JSON
// object with a "status" of success, warning or error, a human-readable
// "message", and for errors a "suggestion" the model can pass on.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"

	"github.com/54b3r/ragagent-go/internal/corpus"
	"github.com/54b3r/ragagent-go/internal/rag"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// RAGTool is the interface that all corpus tools must satisfy. It extends the
// basic Eino tool contract with a Name accessor so the agent can log and
// route tool calls by name without type assertions.
type RAGTool interface {
	tool.InvokableTool

	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}

// Deps carries the shared dependencies of every tool.
type Deps struct {
	// Service is the remote corpus service.
	Service rag.Service

	// Resolver resolves corpus names and tracks per-session state.
	Resolver *corpus.Resolver

	// Retrieval holds the query parameters used by rag_query.
	Retrieval rag.RetrievalConfig

	// Import holds the chunking parameters used by add_data.
	Import rag.ImportConfig

	// AllowHTTP accepts plain web URLs in add_data. Only the local backend
	// can fetch them.
	AllowHTTP bool

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// validate checks the required dependencies and fills defaults.
func (d *Deps) validate() error {
	if d == nil {
		return fmt.Errorf("tools: deps must not be nil")
	}
	if d.Service == nil {
		return fmt.Errorf("tools: service must not be nil")
	}
	if d.Resolver == nil {
		return fmt.Errorf("tools: resolver must not be nil")
	}
	if d.Retrieval.TopK <= 0 {
		d.Retrieval.TopK = 3
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return nil
}

// All returns every tool in the order the agent should see them, with
// list_corpora first for discovery.
func All(d *Deps) ([]RAGTool, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	return []RAGTool{
		NewListCorporaTool(d),
		NewQueryTool(d),
		NewCreateCorpusTool(d),
		NewAddDataTool(d),
		NewCorpusInfoTool(d),
		NewDeleteDocumentTool(d),
		NewDeleteCorpusTool(d),
	}, nil
}

// BaseTools converts tools for registration with the Eino tools node.
func BaseTools(ts []RAGTool) []tool.BaseTool {
	out := make([]tool.BaseTool, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

// fields holds the extra keys of a tool response.
type fields map[string]any

// reply encodes a tool response. Encoding failures are the only Go errors a
// tool returns.
func reply(status, message string, extra fields) (string, error) {
	out := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		out[k] = v
	}
	out["status"] = status
	out["message"] = message
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("tools: encode response: %w", err)
	}
	return string(b), nil
}

// fail encodes an error response with a suggestion.
func fail(message, suggestion string, extra fields) (string, error) {
	if extra == nil {
		extra = fields{}
	}
	if suggestion != "" {
		extra["suggestion"] = suggestion
	}
	return reply(StatusError, message, extra)
}

// decode unmarshals tool arguments into v.
func decode(name, argumentsInJSON string, v any) error {
	if argumentsInJSON == "" {
		argumentsInJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), v); err != nil {
		return fmt.Errorf("%s: invalid input: %w", name, err)
	}
	return nil
}

// errorType names the error class reported to the model.
func errorType(err error) string {
	switch err.(type) {
	case *rag.RemoteUnavailableError:
		return "RemoteUnavailableError"
	case *corpus.InvalidNameError:
		return "InvalidNameError"
	default:
		return fmt.Sprintf("%T", err)
	}
}

// Suggestions shared by several tools.
const (
	suggestList   = "Use list_corpora to see available corpora or create_corpus to create a new one"
	suggestNoName = "Try using the list_corpora tool to see available corpora"
	msgNoCorpus   = "No corpus specified and no current corpus available. Please specify a corpus name or create a corpus first."
)

// target resolves the corpus a tool should operate on: the given name or the
// session's current corpus, checked for existence. On failure it returns the
// encoded error response in msg.
func target(ctx context.Context, d *Deps, name string, s *corpus.Session, extra fields) (key, resource string, msg string, err error) {
	key, ok := corpus.ResolveOrCurrent(name, s)
	if !ok {
		msg, err = fail(msgNoCorpus, suggestNoName, extra)
		return "", "", msg, err
	}
	if !d.Resolver.CorpusExists(ctx, key, s) {
		msg, err = fail(fmt.Sprintf("Corpus '%s' does not exist.", key), suggestList, extra)
		return "", "", msg, err
	}
	resource, rerr := d.Resolver.ResolveResourceName(ctx, key)
	if rerr != nil {
		msg, err = fail(rerr.Error(), suggestList, extra)
		return "", "", msg, err
	}
	return key, resource, "", nil
}
