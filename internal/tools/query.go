package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragagent-go/internal/corpus"
	"github.com/54b3r/ragagent-go/internal/rag"
	"github.com/54b3r/ragagent-go/internal/retrieval"
)

// QueryTool answers questions by retrieving contexts from a corpus.
type QueryTool struct {
	deps *Deps
}

// queryInput is the JSON-serialisable input schema for QueryTool.
type queryInput struct {
	// CorpusName is a resource name, display name or corpus ID. Empty means
	// the current corpus.
	CorpusName string `json:"corpus_name"`

	// Query is the natural-language question.
	Query string `json:"query"`
}

// NewQueryTool constructs a QueryTool.
func NewQueryTool(d *Deps) *QueryTool {
	return &QueryTool{deps: d}
}

// Name returns the tool name registered with the agent.
func (t *QueryTool) Name() string { return "rag_query" }

// Description returns the LLM-facing description of this tool.
func (t *QueryTool) Description() string {
	return "Searches a document corpus for passages relevant to a question and returns them " +
		"ranked by relevance with their sources. If corpus_name is empty the current corpus is used."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *QueryTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"corpus_name": {
				Type: schema.String,
				Desc: "Corpus to search: full resource name from list_corpora, display name, or empty for the current corpus.",
			},
			"query": {
				Type:     schema.String,
				Desc:     "The question or search terms.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *QueryTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in queryInput
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return fail("Query cannot be empty. Please provide a question or search term.", "",
			fields{"query": in.Query, "corpus_name": in.CorpusName})
	}

	sess := corpus.SessionFromContext(ctx)
	key, resource, msg, err := target(ctx, t.deps, in.CorpusName, sess, fields{"query": query, "corpus_name": in.CorpusName})
	if msg != "" || err != nil {
		return msg, err
	}

	info := t.deps.Resolver.DisplayInfo(ctx, key)
	t.deps.Logger.Info("tools: querying corpus",
		slog.String("corpus", info.DisplayName),
		slog.String("query", truncate(query, 100)),
	)

	resp, err := t.deps.Service.RetrievalQuery(ctx, resource, query, t.deps.Retrieval)
	if err != nil {
		t.deps.Logger.Error("tools: retrieval failed", slog.String("corpus", key), slog.Any("error", err))
		return fail(fmt.Sprintf("Error querying corpus '%s': %v", key, err), retrieval.Suggest(err), fields{
			"query":       query,
			"corpus_name": key,
			"error_type":  errorType(err),
		})
	}

	results := retrieval.Process(resp)
	if resp == nil {
		resp = &rag.RetrievalResponse{}
	}
	if dropped := len(resp.Contexts) - len(results); dropped > 0 {
		t.deps.Logger.Warn("tools: dropped empty retrieval contexts", slog.Int("dropped", dropped))
	}
	t.deps.Resolver.SetCurrentCorpus(ctx, key, sess)

	base := fields{
		"query":               query,
		"corpus_name":         resource,
		"corpus_display_name": info.DisplayName,
		"results":             results,
		"results_count":       len(results),
	}
	if len(results) == 0 {
		base["suggestions"] = []string{
			"Try rephrasing your question",
			"Use more general search terms",
			"Check if the relevant documents are in the corpus using get_corpus_info",
		}
		return reply(StatusWarning, fmt.Sprintf("No relevant results found in corpus '%s' for your query.", info.DisplayName), base)
	}

	sum := retrieval.Summarize(results)
	base["high_relevance_count"] = len(sum.High)
	base["medium_relevance_count"] = len(sum.Medium)
	base["search_config"] = fields{
		"top_k":              t.deps.Retrieval.TopK,
		"distance_threshold": t.deps.Retrieval.DistanceThreshold,
	}
	return reply(StatusSuccess, fmt.Sprintf("Found %d relevant result(s) in corpus '%s'", len(results), info.DisplayName), base)
}

// truncate shortens s to at most n runes for logging.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
