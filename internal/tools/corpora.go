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

// corpusEntry is one corpus as reported to the model.
type corpusEntry struct {
	ResourceName string `json:"resource_name"`
	DisplayName  string `json:"display_name"`
	Description  string `json:"description,omitempty"`
	CreateTime   string `json:"create_time,omitempty"`
	UpdateTime   string `json:"update_time,omitempty"`
	Current      bool   `json:"current,omitempty"`
}

// corpusArgs is the input schema shared by tools taking only a corpus name.
type corpusArgs struct {
	CorpusName string `json:"corpus_name"`
}

// corpusNameParam is the schema of an optional corpus_name argument.
var corpusNameParam = &schema.ParameterInfo{
	Type: schema.String,
	Desc: "Corpus resource name from list_corpora, display name, or empty for the current corpus.",
}

// ListCorporaTool lists every available corpus.
type ListCorporaTool struct {
	deps *Deps
}

// NewListCorporaTool constructs a ListCorporaTool.
func NewListCorporaTool(d *Deps) *ListCorporaTool {
	return &ListCorporaTool{deps: d}
}

// Name returns the tool name registered with the agent.
func (t *ListCorporaTool) Name() string { return "list_corpora" }

// Description returns the LLM-facing description of this tool.
func (t *ListCorporaTool) Description() string {
	return "Lists all available document corpora with their resource names and display names. " +
		"Call this first when the user asks what data is available."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *ListCorporaTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.Name(),
		Desc:        t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *ListCorporaTool) InvokableRun(ctx context.Context, _ string, _ ...tool.Option) (string, error) {
	list, err := t.deps.Service.ListCorpora(ctx)
	if err != nil {
		t.deps.Logger.Error("tools: list corpora failed", slog.Any("error", err))
		return fail(fmt.Sprintf("Error listing corpora: %v", err), retrieval.Suggest(err),
			fields{"error_type": errorType(err)})
	}

	current, _ := corpus.ResolveOrCurrent("", corpus.SessionFromContext(ctx))
	entries := make([]corpusEntry, 0, len(list))
	for _, c := range list {
		entries = append(entries, corpusEntry{
			ResourceName: c.Name,
			DisplayName:  c.DisplayName,
			Description:  c.Description,
			CreateTime:   c.CreateTime,
			UpdateTime:   c.UpdateTime,
			Current:      current != "" && (current == c.Name || current == c.DisplayName),
		})
	}

	extra := fields{"corpora": entries, "count": len(entries)}
	if current != "" {
		extra["current_corpus"] = current
	}
	if len(entries) == 0 {
		extra["suggestion"] = "Create a corpus with create_corpus, then add documents with add_data"
		return reply(StatusSuccess, "No corpora found.", extra)
	}
	return reply(StatusSuccess, fmt.Sprintf("Found %d corpus(es)", len(entries)), extra)
}

// CreateCorpusTool creates a new, empty corpus.
type CreateCorpusTool struct {
	deps *Deps
}

// createInput is the JSON-serialisable input schema for CreateCorpusTool.
type createInput struct {
	CorpusName  string `json:"corpus_name"`
	Description string `json:"description,omitempty"`
}

// NewCreateCorpusTool constructs a CreateCorpusTool.
func NewCreateCorpusTool(d *Deps) *CreateCorpusTool {
	return &CreateCorpusTool{deps: d}
}

// Name returns the tool name registered with the agent.
func (t *CreateCorpusTool) Name() string { return "create_corpus" }

// Description returns the LLM-facing description of this tool.
func (t *CreateCorpusTool) Description() string {
	return "Creates a new, empty document corpus and makes it the current corpus. " +
		"Names should use letters, digits, underscores and hyphens."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *CreateCorpusTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"corpus_name": {
				Type:     schema.String,
				Desc:     "Display name of the new corpus.",
				Required: true,
			},
			"description": {
				Type: schema.String,
				Desc: "Optional description of what the corpus contains.",
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *CreateCorpusTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in createInput
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}
	name := strings.TrimSpace(in.CorpusName)
	if name == "" || rag.SanitizeCorpusID(name) == "" {
		return fail("Corpus name cannot be empty.", "Use letters, digits, underscores or hyphens.",
			fields{"corpus_name": in.CorpusName})
	}

	sess := corpus.SessionFromContext(ctx)
	if t.deps.Resolver.CorpusExists(ctx, name, sess) {
		return fail(fmt.Sprintf("Corpus '%s' already exists.", name),
			"Use add_data to add documents to it, or choose a different name.",
			fields{"corpus_name": name})
	}

	created, err := t.deps.Service.CreateCorpus(ctx, name, in.Description)
	if err != nil {
		t.deps.Logger.Error("tools: create corpus failed", slog.String("corpus", name), slog.Any("error", err))
		return fail(fmt.Sprintf("Error creating corpus '%s': %v", name, err), retrieval.Suggest(err),
			fields{"corpus_name": name, "error_type": errorType(err)})
	}

	t.deps.Resolver.Invalidate()
	if sess != nil {
		sess.Forget(name, created.Name)
	}
	t.deps.Resolver.SetCurrentCorpus(ctx, name, sess)
	t.deps.Logger.Info("tools: corpus created", slog.String("corpus", name), slog.String("resource_name", created.Name))

	return reply(StatusSuccess, fmt.Sprintf("Successfully created corpus '%s'", name), fields{
		"corpus_name":  created.Name,
		"display_name": created.DisplayName,
		"next_steps":   "The corpus is empty. Add documents with add_data using Google Drive, Google Docs or gs:// paths.",
	})
}

// CorpusInfoTool reports a corpus's details and its files.
type CorpusInfoTool struct {
	deps *Deps
}

// NewCorpusInfoTool constructs a CorpusInfoTool.
func NewCorpusInfoTool(d *Deps) *CorpusInfoTool {
	return &CorpusInfoTool{deps: d}
}

// Name returns the tool name registered with the agent.
func (t *CorpusInfoTool) Name() string { return "get_corpus_info" }

// Description returns the LLM-facing description of this tool.
func (t *CorpusInfoTool) Description() string {
	return "Shows the details of a corpus and the documents it contains, including the document_id " +
		"values needed by delete_document. If corpus_name is empty the current corpus is used."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *CorpusInfoTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"corpus_name": corpusNameParam,
		}),
	}, nil
}

// fileEntry is one file as reported to the model.
type fileEntry struct {
	DocumentID  string `json:"document_id"`
	DisplayName string `json:"display_name"`
	SourceURI   string `json:"source_uri,omitempty"`
	CreateTime  string `json:"create_time,omitempty"`
	UpdateTime  string `json:"update_time,omitempty"`
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *CorpusInfoTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in corpusArgs
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}

	sess := corpus.SessionFromContext(ctx)
	key, resource, msg, err := target(ctx, t.deps, in.CorpusName, sess, fields{"corpus_name": in.CorpusName})
	if msg != "" || err != nil {
		return msg, err
	}

	c, err := t.deps.Service.GetCorpus(ctx, resource)
	if err != nil {
		return fail(fmt.Sprintf("Error getting corpus '%s': %v", key, err), retrieval.Suggest(err),
			fields{"corpus_name": key, "error_type": errorType(err)})
	}
	files, err := t.deps.Service.ListFiles(ctx, resource)
	if err != nil {
		return fail(fmt.Sprintf("Error listing files of corpus '%s': %v", key, err), retrieval.Suggest(err),
			fields{"corpus_name": key, "error_type": errorType(err)})
	}

	entries := make([]fileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, fileEntry{
			DocumentID:  rag.LastSegment(f.Name),
			DisplayName: f.DisplayName,
			SourceURI:   f.SourceURI,
			CreateTime:  f.CreateTime,
			UpdateTime:  f.UpdateTime,
		})
	}

	return reply(StatusSuccess, fmt.Sprintf("Corpus '%s' contains %d document(s)", c.DisplayName, len(entries)), fields{
		"corpus_name":  c.Name,
		"display_name": c.DisplayName,
		"description":  c.Description,
		"create_time":  c.CreateTime,
		"update_time":  c.UpdateTime,
		"file_count":   len(entries),
		"files":        entries,
	})
}

// DeleteCorpusTool deletes a corpus and every document in it.
type DeleteCorpusTool struct {
	deps *Deps
}

// deleteCorpusInput is the JSON-serialisable input schema for DeleteCorpusTool.
type deleteCorpusInput struct {
	CorpusName string `json:"corpus_name"`
	Confirm    bool   `json:"confirm"`
}

// NewDeleteCorpusTool constructs a DeleteCorpusTool.
func NewDeleteCorpusTool(d *Deps) *DeleteCorpusTool {
	return &DeleteCorpusTool{deps: d}
}

// Name returns the tool name registered with the agent.
func (t *DeleteCorpusTool) Name() string { return "delete_corpus" }

// Description returns the LLM-facing description of this tool.
func (t *DeleteCorpusTool) Description() string {
	return "Permanently deletes a corpus and ALL of its documents. Ask the user for explicit " +
		"confirmation first and pass confirm=true only after they agree."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *DeleteCorpusTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"corpus_name": {
				Type:     schema.String,
				Desc:     "Corpus to delete: resource name from list_corpora or display name.",
				Required: true,
			},
			"confirm": {
				Type:     schema.Boolean,
				Desc:     "Must be true; set only after the user explicitly confirmed the deletion.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *DeleteCorpusTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in deleteCorpusInput
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}
	if !in.Confirm {
		return fail("Deleting a corpus requires explicit confirmation.",
			"Ask the user to confirm, then call delete_corpus again with confirm=true.",
			fields{"corpus_name": in.CorpusName})
	}
	if strings.TrimSpace(in.CorpusName) == "" {
		return fail("Corpus name is required to delete a corpus.", suggestNoName, nil)
	}

	sess := corpus.SessionFromContext(ctx)
	key, resource, msg, err := target(ctx, t.deps, in.CorpusName, sess, fields{"corpus_name": in.CorpusName})
	if msg != "" || err != nil {
		return msg, err
	}
	info := t.deps.Resolver.DisplayInfo(ctx, key)

	if err := t.deps.Service.DeleteCorpus(ctx, resource); err != nil {
		t.deps.Logger.Error("tools: delete corpus failed", slog.String("corpus", key), slog.Any("error", err))
		return fail(fmt.Sprintf("Error deleting corpus '%s': %v", key, err), retrieval.Suggest(err),
			fields{"corpus_name": key, "error_type": errorType(err)})
	}

	t.deps.Resolver.Invalidate()
	if sess != nil {
		sess.Forget(key, resource, info.DisplayName)
		sess.ClearCurrentIf(key, resource, info.DisplayName)
	}
	t.deps.Logger.Info("tools: corpus deleted", slog.String("corpus", key), slog.String("resource_name", resource))

	return reply(StatusSuccess, fmt.Sprintf("Successfully deleted corpus '%s'", info.DisplayName), fields{
		"corpus_name": resource,
	})
}
