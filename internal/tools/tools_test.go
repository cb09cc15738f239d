package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/54b3r/ragagent-go/internal/corpus"
	"github.com/54b3r/ragagent-go/internal/rag"
)

// fakeService is an in-memory rag.Service.
type fakeService struct {
	mu       sync.Mutex
	nextID   int
	corpora  []rag.Corpus
	files    map[string][]rag.File
	response *rag.RetrievalResponse
	queryErr error

	imported     []string
	importCfg    rag.ImportConfig
	deletedFiles []string
	queries      []string
}

func newFakeService(displayNames ...string) *fakeService {
	f := &fakeService{nextID: 100, files: map[string][]rag.File{}}
	for _, d := range displayNames {
		_, _ = f.CreateCorpus(context.Background(), d, "")
	}
	return f
}

func (f *fakeService) ListCorpora(context.Context) ([]rag.Corpus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rag.Corpus(nil), f.corpora...), nil
}

func (f *fakeService) CreateCorpus(_ context.Context, displayName, description string) (*rag.Corpus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := rag.Corpus{
		Name:        rag.ResourceName("p", "l", fmt.Sprint(f.nextID)),
		DisplayName: displayName,
		Description: description,
	}
	f.corpora = append(f.corpora, c)
	return &c, nil
}

func (f *fakeService) GetCorpus(_ context.Context, name string) (*rag.Corpus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.corpora {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, &rag.RemoteUnavailableError{Op: "get corpus", StatusCode: http.StatusNotFound, Message: "not found"}
}

func (f *fakeService) DeleteCorpus(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.corpora {
		if c.Name == name {
			f.corpora = append(f.corpora[:i], f.corpora[i+1:]...)
			return nil
		}
	}
	return &rag.RemoteUnavailableError{Op: "delete corpus", StatusCode: http.StatusNotFound}
}

func (f *fakeService) ListFiles(_ context.Context, corpusName string) ([]rag.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[corpusName], nil
}

func (f *fakeService) DeleteFile(_ context.Context, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedFiles = append(f.deletedFiles, fileName)
	return nil
}

func (f *fakeService) ImportFiles(_ context.Context, _ string, paths []string, cfg rag.ImportConfig) (*rag.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, paths...)
	f.importCfg = cfg
	return &rag.ImportResult{Imported: len(paths)}, nil
}

func (f *fakeService) RetrievalQuery(_ context.Context, corpusName, _ string, _ rag.RetrievalConfig) (*rag.RetrievalResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, corpusName)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.response == nil {
		return &rag.RetrievalResponse{}, nil
	}
	return f.response, nil
}

func (f *fakeService) Ping(context.Context) error { return nil }

// newDeps wires a resolver over svc.
func newDeps(t *testing.T, svc *fakeService) *Deps {
	t.Helper()
	cache, err := corpus.NewCache(svc, nil)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	res, err := corpus.NewResolver(cache, &corpus.ResolverConfig{Project: "p", Location: "l"})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	d := &Deps{
		Service:   svc,
		Resolver:  res,
		Retrieval: rag.RetrievalConfig{TopK: 3, DistanceThreshold: 0.5},
		Import:    rag.ImportConfig{ChunkSize: 512, ChunkOverlap: 100},
	}
	if err := d.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return d
}

// run invokes tool with args inside a session context and decodes the reply.
func run(t *testing.T, tl RAGTool, sess *corpus.Session, args string) map[string]any {
	t.Helper()
	ctx := context.Background()
	if sess != nil {
		ctx = corpus.WithSession(ctx, sess)
	}
	out, err := tl.InvokableRun(ctx, args)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", tl.Name(), err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("%s: reply is not JSON: %v\n%s", tl.Name(), err, out)
	}
	return m
}

func TestAll_NamesAndSchemas(t *testing.T) {
	t.Parallel()
	d := newDeps(t, newFakeService())

	ts, err := All(d)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []string{"list_corpora", "rag_query", "create_corpus", "add_data", "get_corpus_info", "delete_document", "delete_corpus"}
	if len(ts) != len(want) {
		t.Fatalf("got %d tools, want %d", len(ts), len(want))
	}
	for i, tl := range ts {
		if tl.Name() != want[i] {
			t.Errorf("tool %d = %q, want %q", i, tl.Name(), want[i])
		}
		info, err := tl.Info(context.Background())
		if err != nil {
			t.Fatalf("%s Info: %v", tl.Name(), err)
		}
		if info.Name != tl.Name() {
			t.Errorf("Info name %q != %q", info.Name, tl.Name())
		}
	}
	if len(BaseTools(ts)) != len(ts) {
		t.Error("BaseTools dropped tools")
	}
}

func TestAll_RequiresDeps(t *testing.T) {
	t.Parallel()
	if _, err := All(&Deps{}); err == nil {
		t.Error("expected error for missing service")
	}
	if _, err := All(nil); err == nil {
		t.Error("expected error for nil deps")
	}
}

func TestInvalidJSONIsAnError(t *testing.T) {
	t.Parallel()
	d := newDeps(t, newFakeService())
	if _, err := NewQueryTool(d).InvokableRun(context.Background(), "{not json"); err == nil {
		t.Error("expected an error for malformed arguments")
	}
}

func TestQuery_EmptyQuery(t *testing.T) {
	t.Parallel()
	d := newDeps(t, newFakeService("docs"))

	got := run(t, NewQueryTool(d), corpus.NewSession("s"), `{"corpus_name":"docs","query":"   "}`)
	if got["status"] != StatusError {
		t.Errorf("status = %v, want error", got["status"])
	}
}

func TestQuery_NoCorpusAndNoCurrent(t *testing.T) {
	t.Parallel()
	d := newDeps(t, newFakeService("docs"))

	got := run(t, NewQueryTool(d), corpus.NewSession("s"), `{"query":"what?"}`)
	if got["status"] != StatusError {
		t.Fatalf("status = %v, want error", got["status"])
	}
	if got["suggestion"] != suggestNoName {
		t.Errorf("suggestion = %v", got["suggestion"])
	}
}

func TestQuery_UnknownCorpus(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	d := newDeps(t, svc)

	got := run(t, NewQueryTool(d), corpus.NewSession("s"), `{"corpus_name":"nope","query":"what?"}`)
	if got["status"] != StatusError {
		t.Fatalf("status = %v, want error", got["status"])
	}
	if !strings.Contains(got["message"].(string), "does not exist") {
		t.Errorf("message = %v", got["message"])
	}
	if len(svc.queries) != 0 {
		t.Error("no retrieval should run for an unknown corpus")
	}
}

func TestQuery_SuccessRanksAndSetsCurrent(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	svc.response = &rag.RetrievalResponse{Contexts: []rag.ContextChunk{
		{Text: "low", Score: 0.45},
		{Text: "  "},
		{Text: "high", Score: 0.9, SourceURI: "gs://b/a.pdf"},
	}}
	d := newDeps(t, svc)
	sess := corpus.NewSession("s")

	got := run(t, NewQueryTool(d), sess, `{"corpus_name":"docs","query":"what?"}`)
	if got["status"] != StatusSuccess {
		t.Fatalf("status = %v: %v", got["status"], got["message"])
	}
	if got["results_count"].(float64) != 2 {
		t.Errorf("results_count = %v, want 2", got["results_count"])
	}
	results := got["results"].([]any)
	first := results[0].(map[string]any)
	if first["text"] != "high" || first["rank"].(float64) != 1 {
		t.Errorf("first result = %v", first)
	}
	if got["high_relevance_count"].(float64) != 1 || got["medium_relevance_count"].(float64) != 1 {
		t.Errorf("relevance counts = %v/%v", got["high_relevance_count"], got["medium_relevance_count"])
	}
	if svc.queries[0] != rag.ResourceName("p", "l", "101") {
		t.Errorf("queried %q, want the resolved resource name", svc.queries[0])
	}
	if cur, _ := sess.CurrentCorpus(); cur != "docs" {
		t.Errorf("current corpus = %q, want docs", cur)
	}
}

func TestQuery_UsesCurrentCorpus(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	d := newDeps(t, svc)
	sess := corpus.NewSession("s")
	if !d.Resolver.SetCurrentCorpus(context.Background(), "docs", sess) {
		t.Fatal("SetCurrentCorpus failed")
	}

	got := run(t, NewQueryTool(d), sess, `{"query":"anything"}`)
	if got["status"] != StatusWarning {
		t.Errorf("status = %v, want warning for no results", got["status"])
	}
	if _, ok := got["suggestions"]; !ok {
		t.Error("warning should carry suggestions")
	}
}

func TestQuery_RemoteErrorSuggestion(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	svc.queryErr = &rag.RemoteUnavailableError{Op: "retrieve contexts", StatusCode: http.StatusTooManyRequests, Message: "Quota exceeded"}
	d := newDeps(t, svc)

	got := run(t, NewQueryTool(d), corpus.NewSession("s"), `{"corpus_name":"docs","query":"q"}`)
	if got["status"] != StatusError {
		t.Fatalf("status = %v", got["status"])
	}
	if !strings.Contains(got["suggestion"].(string), "quota") {
		t.Errorf("suggestion = %v", got["suggestion"])
	}
	if got["error_type"] != "RemoteUnavailableError" {
		t.Errorf("error_type = %v", got["error_type"])
	}
}

func TestListCorpora_MarksCurrent(t *testing.T) {
	t.Parallel()
	svc := newFakeService("a", "b")
	d := newDeps(t, svc)
	sess := corpus.NewSession("s")
	d.Resolver.SetCurrentCorpus(context.Background(), "b", sess)

	got := run(t, NewListCorporaTool(d), sess, ``)
	if got["count"].(float64) != 2 {
		t.Fatalf("count = %v", got["count"])
	}
	for _, e := range got["corpora"].([]any) {
		m := e.(map[string]any)
		if (m["display_name"] == "b") != (m["current"] == true) {
			t.Errorf("entry %v has wrong current flag", m)
		}
	}
}

func TestCreateCorpus_CreatesAndBecomesCurrent(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	d := newDeps(t, svc)
	sess := corpus.NewSession("s")

	got := run(t, NewCreateCorpusTool(d), sess, `{"corpus_name":"research"}`)
	if got["status"] != StatusSuccess {
		t.Fatalf("status = %v: %v", got["status"], got["message"])
	}
	if cur, _ := sess.CurrentCorpus(); cur != "research" {
		t.Errorf("current corpus = %q, want research", cur)
	}
	if !d.Resolver.CorpusExists(context.Background(), "research", sess) {
		t.Error("created corpus should exist for the session")
	}
}

func TestCreateCorpus_RejectsExisting(t *testing.T) {
	t.Parallel()
	svc := newFakeService("research")
	d := newDeps(t, svc)

	got := run(t, NewCreateCorpusTool(d), corpus.NewSession("s"), `{"corpus_name":"research"}`)
	if got["status"] != StatusError {
		t.Errorf("status = %v, want error", got["status"])
	}
	if len(svc.corpora) != 1 {
		t.Errorf("corpora = %d, want 1", len(svc.corpora))
	}
}

func TestDeleteCorpus_RequiresConfirm(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	d := newDeps(t, svc)

	got := run(t, NewDeleteCorpusTool(d), corpus.NewSession("s"), `{"corpus_name":"docs"}`)
	if got["status"] != StatusError {
		t.Errorf("status = %v, want error", got["status"])
	}
	if len(svc.corpora) != 1 {
		t.Error("corpus must not be deleted without confirmation")
	}
}

func TestDeleteCorpus_ClearsCurrent(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	d := newDeps(t, svc)
	sess := corpus.NewSession("s")
	d.Resolver.SetCurrentCorpus(context.Background(), "docs", sess)

	got := run(t, NewDeleteCorpusTool(d), sess, `{"corpus_name":"docs","confirm":true}`)
	if got["status"] != StatusSuccess {
		t.Fatalf("status = %v: %v", got["status"], got["message"])
	}
	if _, ok := sess.CurrentCorpus(); ok {
		t.Error("current corpus should be cleared")
	}
	if d.Resolver.CorpusExists(context.Background(), "docs", sess) {
		t.Error("deleted corpus should no longer exist")
	}
}

func TestAddData_NormalizesAndImports(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	d := newDeps(t, svc)
	sess := corpus.NewSession("s")

	args := `{"corpus_name":"docs","paths":["https://docs.google.com/document/d/abc123/edit","gs://bucket/x.pdf","ftp://nope"]}`
	got := run(t, NewAddDataTool(d), sess, args)
	if got["status"] != StatusSuccess {
		t.Fatalf("status = %v: %v", got["status"], got["message"])
	}
	want := []string{"https://drive.google.com/file/d/abc123/view", "gs://bucket/x.pdf"}
	if len(svc.imported) != 2 || svc.imported[0] != want[0] || svc.imported[1] != want[1] {
		t.Errorf("imported = %v, want %v", svc.imported, want)
	}
	if svc.importCfg.ChunkSize != 512 {
		t.Errorf("chunk size = %d", svc.importCfg.ChunkSize)
	}
	if len(got["invalid_paths"].([]any)) != 1 {
		t.Errorf("invalid_paths = %v", got["invalid_paths"])
	}
	if cur, _ := sess.CurrentCorpus(); cur != "docs" {
		t.Errorf("current corpus = %q", cur)
	}
}

func TestAddData_AllInvalid(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	d := newDeps(t, svc)

	got := run(t, NewAddDataTool(d), corpus.NewSession("s"), `{"corpus_name":"docs","paths":["not a url"]}`)
	if got["status"] != StatusError {
		t.Errorf("status = %v, want error", got["status"])
	}
	if len(svc.imported) != 0 {
		t.Error("nothing should be imported")
	}
}

func TestDeleteDocument_BuildsFileName(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	d := newDeps(t, svc)

	got := run(t, NewDeleteDocumentTool(d), corpus.NewSession("s"), `{"corpus_name":"docs","document_id":"f1"}`)
	if got["status"] != StatusSuccess {
		t.Fatalf("status = %v: %v", got["status"], got["message"])
	}
	want := rag.FileName(rag.ResourceName("p", "l", "101"), "f1")
	if len(svc.deletedFiles) != 1 || svc.deletedFiles[0] != want {
		t.Errorf("deleted = %v, want %s", svc.deletedFiles, want)
	}
}

func TestDeleteDocument_RejectsForeignFile(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	d := newDeps(t, svc)

	foreign := rag.FileName(rag.ResourceName("p", "l", "999"), "f1")
	got := run(t, NewDeleteDocumentTool(d), corpus.NewSession("s"), `{"corpus_name":"docs","document_id":"`+foreign+`"}`)
	if got["status"] != StatusError {
		t.Errorf("status = %v, want error", got["status"])
	}
	if len(svc.deletedFiles) != 0 {
		t.Error("no file should be deleted")
	}
}

func TestCorpusInfo_ListsFiles(t *testing.T) {
	t.Parallel()
	svc := newFakeService("docs")
	name := rag.ResourceName("p", "l", "101")
	svc.files[name] = []rag.File{{Name: rag.FileName(name, "f1"), DisplayName: "a.pdf"}}
	d := newDeps(t, svc)

	got := run(t, NewCorpusInfoTool(d), corpus.NewSession("s"), `{"corpus_name":"docs"}`)
	if got["status"] != StatusSuccess {
		t.Fatalf("status = %v: %v", got["status"], got["message"])
	}
	files := got["files"].([]any)
	if len(files) != 1 || files[0].(map[string]any)["document_id"] != "f1" {
		t.Errorf("files = %v", files)
	}
}

func TestErrorType(t *testing.T) {
	t.Parallel()
	if got := errorType(&corpus.InvalidNameError{Name: ""}); got != "InvalidNameError" {
		t.Errorf("errorType = %q", got)
	}
	if got := errorType(errors.New("x")); got == "" {
		t.Error("errorType should never be empty")
	}
}
