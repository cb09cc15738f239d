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

// supportedFormats is shown when no source path is importable.
const supportedFormats = "Supported formats: https://drive.google.com/file/d/{id}/view, " +
	"https://drive.google.com/drive/folders/{id}, https://docs.google.com/document/d/{id}, " +
	"gs://bucket/path"

// AddDataTool imports documents into a corpus.
type AddDataTool struct {
	deps *Deps
}

// addDataInput is the JSON-serialisable input schema for AddDataTool.
type addDataInput struct {
	CorpusName string   `json:"corpus_name"`
	Paths      []string `json:"paths"`
}

// NewAddDataTool constructs an AddDataTool.
func NewAddDataTool(d *Deps) *AddDataTool {
	return &AddDataTool{deps: d}
}

// Name returns the tool name registered with the agent.
func (t *AddDataTool) Name() string { return "add_data" }

// Description returns the LLM-facing description of this tool.
func (t *AddDataTool) Description() string {
	desc := "Adds documents to a corpus from Google Drive files or folders, Google Docs, Sheets or " +
		"Slides URLs (converted to Drive form automatically), or gs:// Cloud Storage paths."
	if t.deps.AllowHTTP {
		desc += " Plain http(s) web pages are also accepted."
	}
	return desc + " If corpus_name is empty the current corpus is used."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *AddDataTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"corpus_name": corpusNameParam,
			"paths": {
				Type:     schema.Array,
				Desc:     "Document URLs or gs:// paths to import.",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *AddDataTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in addDataInput
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}
	if len(in.Paths) == 0 {
		return fail("No paths provided.", supportedFormats, fields{"corpus_name": in.CorpusName})
	}

	sess := corpus.SessionFromContext(ctx)
	key, resource, msg, err := target(ctx, t.deps, in.CorpusName, sess, fields{"corpus_name": in.CorpusName})
	if msg != "" || err != nil {
		return msg, err
	}

	src := rag.NormalizeSourcePaths(in.Paths, t.deps.AllowHTTP)
	base := fields{
		"corpus_name":     resource,
		"converted_paths": src.Converted,
		"invalid_paths":   src.Rejected,
	}
	if len(src.Accepted) == 0 {
		return fail("None of the provided paths can be imported.", supportedFormats, base)
	}

	res, err := t.deps.Service.ImportFiles(ctx, resource, src.Accepted, t.deps.Import)
	if err != nil {
		t.deps.Logger.Error("tools: import failed", slog.String("corpus", key), slog.Any("error", err))
		base["error_type"] = errorType(err)
		return fail(fmt.Sprintf("Error adding data to corpus '%s': %v", key, err), importSuggestion(err), base)
	}

	t.deps.Resolver.SetCurrentCorpus(ctx, key, sess)
	t.deps.Logger.Info("tools: files imported",
		slog.String("corpus", key),
		slog.Int("imported", res.Imported),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped),
	)

	base["files_added"] = res.Imported
	base["files_failed"] = res.Failed
	base["files_skipped"] = res.Skipped
	base["paths_submitted"] = len(src.Accepted)

	status := StatusSuccess
	if res.Imported == 0 && (res.Failed > 0 || len(src.Rejected) > 0) {
		status = StatusWarning
	}
	summary := fmt.Sprintf("Added %d file(s) to corpus '%s'", res.Imported, key)
	if res.Failed > 0 {
		summary += fmt.Sprintf(", %d failed", res.Failed)
	}
	if res.Skipped > 0 {
		summary += fmt.Sprintf(", %d skipped", res.Skipped)
	}
	if len(src.Rejected) > 0 {
		summary += fmt.Sprintf(", %d invalid path(s) ignored", len(src.Rejected))
	}
	return reply(status, summary, base)
}

// importSuggestion adds Drive sharing guidance to permission failures.
func importSuggestion(err error) string {
	if strings.Contains(strings.ToLower(err.Error()), "permission") {
		return "Check that the Drive files are shared with the Vertex AI RAG service account."
	}
	return retrieval.Suggest(err)
}

// DeleteDocumentTool removes one document from a corpus.
type DeleteDocumentTool struct {
	deps *Deps
}

// deleteDocumentInput is the JSON-serialisable input schema for DeleteDocumentTool.
type deleteDocumentInput struct {
	CorpusName string `json:"corpus_name"`
	DocumentID string `json:"document_id"`
}

// NewDeleteDocumentTool constructs a DeleteDocumentTool.
func NewDeleteDocumentTool(d *Deps) *DeleteDocumentTool {
	return &DeleteDocumentTool{deps: d}
}

// Name returns the tool name registered with the agent.
func (t *DeleteDocumentTool) Name() string { return "delete_document" }

// Description returns the LLM-facing description of this tool.
func (t *DeleteDocumentTool) Description() string {
	return "Deletes one document from a corpus. Get document_id from get_corpus_info and confirm " +
		"with the user which document is being deleted."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *DeleteDocumentTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"corpus_name": corpusNameParam,
			"document_id": {
				Type:     schema.String,
				Desc:     "The document_id from get_corpus_info, or the full file resource name.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *DeleteDocumentTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in deleteDocumentInput
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}
	docID := strings.TrimSpace(in.DocumentID)
	if docID == "" {
		return fail("Document ID cannot be empty.", "Use get_corpus_info to list document IDs.",
			fields{"corpus_name": in.CorpusName})
	}

	sess := corpus.SessionFromContext(ctx)
	key, resource, msg, err := target(ctx, t.deps, in.CorpusName, sess,
		fields{"corpus_name": in.CorpusName, "document_id": docID})
	if msg != "" || err != nil {
		return msg, err
	}

	fileName := docID
	if !rag.IsFileName(docID) {
		fileName = rag.FileName(resource, docID)
	} else if rag.CorpusOfFile(docID) != resource {
		return fail(fmt.Sprintf("Document '%s' does not belong to corpus '%s'.", docID, key),
			"Use get_corpus_info on the document's corpus.", fields{"corpus_name": resource, "document_id": docID})
	}

	if err := t.deps.Service.DeleteFile(ctx, fileName); err != nil {
		t.deps.Logger.Error("tools: delete document failed", slog.String("file", fileName), slog.Any("error", err))
		suggestion := retrieval.Suggest(err)
		if rag.IsNotFound(err) {
			suggestion = "The document may already be deleted. Use get_corpus_info to list current documents."
		}
		return fail(fmt.Sprintf("Error deleting document '%s': %v", docID, err), suggestion,
			fields{"corpus_name": resource, "document_id": docID, "error_type": errorType(err)})
	}

	t.deps.Logger.Info("tools: document deleted", slog.String("file", fileName))
	return reply(StatusSuccess, fmt.Sprintf("Successfully deleted document '%s' from corpus '%s'", docID, key), fields{
		"corpus_name": resource,
		"document_id": rag.LastSegment(fileName),
	})
}
