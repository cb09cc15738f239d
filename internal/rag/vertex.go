package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

// cloudPlatformScope is the OAuth scope required by the Vertex AI API.
const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// VertexConfig holds connection parameters for the Vertex AI RAG Engine.
type VertexConfig struct {
	// Project is the Google Cloud project ID.
	Project string

	// Location is the Vertex AI region (e.g. "us-central1").
	Location string

	// Endpoint overrides the API base URL. Defaults to
	// https://{Location}-aiplatform.googleapis.com/v1.
	Endpoint string

	// HTTPClient is the authenticated client. If nil, Application Default
	// Credentials are resolved with the cloud-platform scope.
	HTTPClient *http.Client

	// Timeout bounds every individual API call. Defaults to 30s.
	Timeout time.Duration

	// OperationTimeout bounds waiting for a long-running operation.
	// Defaults to 5m.
	OperationTimeout time.Duration

	// PollInterval is the delay between long-running operation polls.
	// Defaults to 2s.
	PollInterval time.Duration

	// RateLimit is the sustained number of API calls per second. Defaults to 5.
	RateLimit float64

	// RateBurst is the maximum burst of API calls. Defaults to 10.
	RateBurst int

	// Logger receives debug logs for every call. Defaults to slog.Default.
	Logger *slog.Logger
}

// VertexClient implements Service against the Vertex AI RAG Engine REST API.
type VertexClient struct {
	// cfg holds the resolved configuration.
	cfg *VertexConfig

	// baseURL is the API root without a trailing slash.
	baseURL string

	// http is the authenticated HTTP client.
	http *http.Client

	// limiter throttles outgoing calls.
	limiter *rate.Limiter

	// log is the structured logger for this client.
	log *slog.Logger
}

// NewVertexClient validates cfg, resolves credentials when no HTTP client is
// supplied and returns a ready-to-use client.
func NewVertexClient(ctx context.Context, cfg *VertexConfig) (*VertexClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rag: vertex config must not be nil")
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("rag: GOOGLE_CLOUD_PROJECT is required for the vertex backend")
	}
	if cfg.Location == "" {
		return nil, fmt.Errorf("rag: GOOGLE_CLOUD_LOCATION is required for the vertex backend")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := cfg.HTTPClient
	if client == nil {
		var err error
		client, err = google.DefaultClient(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("rag: failed to resolve application default credentials: %w", err)
		}
	}

	base := cfg.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", cfg.Location)
	}

	return &VertexClient{
		cfg:     cfg,
		baseURL: strings.TrimRight(base, "/"),
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		log:     cfg.Logger,
	}, nil
}

// parent returns the project/location parent resource.
func (c *VertexClient) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.cfg.Project, c.cfg.Location)
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// vertexCorpus is the JSON shape of a RagCorpus.
type vertexCorpus struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	CreateTime  string `json:"createTime,omitempty"`
	UpdateTime  string `json:"updateTime,omitempty"`
}

func (v vertexCorpus) toCorpus() Corpus {
	return Corpus{
		Name:        v.Name,
		DisplayName: v.DisplayName,
		Description: v.Description,
		CreateTime:  v.CreateTime,
		UpdateTime:  v.UpdateTime,
	}
}

type listCorporaResponse struct {
	RagCorpora    []vertexCorpus `json:"ragCorpora"`
	NextPageToken string         `json:"nextPageToken"`
}

// vertexFile is the JSON shape of a RagFile.
type vertexFile struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	CreateTime  string `json:"createTime"`
	UpdateTime  string `json:"updateTime"`
	GcsSource   *struct {
		URIs []string `json:"uris"`
	} `json:"gcsSource,omitempty"`
	GoogleDriveSource *struct {
		ResourceIDs []driveResourceID `json:"resourceIds"`
	} `json:"googleDriveSource,omitempty"`
}

type driveResourceID struct {
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
}

func (v vertexFile) toFile() File {
	f := File{
		Name:        v.Name,
		DisplayName: v.DisplayName,
		CreateTime:  v.CreateTime,
		UpdateTime:  v.UpdateTime,
	}
	switch {
	case v.GcsSource != nil && len(v.GcsSource.URIs) > 0:
		f.SourceURI = v.GcsSource.URIs[0]
	case v.GoogleDriveSource != nil && len(v.GoogleDriveSource.ResourceIDs) > 0:
		f.SourceURI = "https://drive.google.com/file/d/" + v.GoogleDriveSource.ResourceIDs[0].ResourceID + "/view"
	}
	return f
}

type listFilesResponse struct {
	RagFiles      []vertexFile `json:"ragFiles"`
	NextPageToken string       `json:"nextPageToken"`
}

// operation is a google.longrunning.Operation.
type operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *apiStatus      `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// apiStatus is a google.rpc.Status.
type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type errorEnvelope struct {
	Error apiStatus `json:"error"`
}

// flexInt decodes an int64 that proto3 JSON may render as a string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("rag: invalid integer %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

type importResponse struct {
	Imported flexInt `json:"importedRagFilesCount"`
	Failed   flexInt `json:"failedRagFilesCount"`
	Skipped  flexInt `json:"skippedRagFilesCount"`
}

type retrieveContextsResponse struct {
	Contexts struct {
		Contexts []ContextChunk `json:"contexts"`
	} `json:"contexts"`
}

// ---------------------------------------------------------------------------
// Service implementation
// ---------------------------------------------------------------------------

// ListCorpora returns every corpus in the configured project and location,
// following pagination until exhausted.
func (c *VertexClient) ListCorpora(ctx context.Context) ([]Corpus, error) {
	var out []Corpus
	token := ""
	for {
		q := url.Values{"pageSize": {"100"}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var page listCorporaResponse
		if err := c.do(ctx, "list corpora", http.MethodGet, c.parent()+"/ragCorpora", q, nil, &page); err != nil {
			return nil, err
		}
		for _, v := range page.RagCorpora {
			out = append(out, v.toCorpus())
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

// CreateCorpus creates a corpus and waits for the operation to finish.
func (c *VertexClient) CreateCorpus(ctx context.Context, displayName, description string) (*Corpus, error) {
	body := vertexCorpus{DisplayName: displayName, Description: description}
	var op operation
	if err := c.do(ctx, "create corpus", http.MethodPost, c.parent()+"/ragCorpora", nil, body, &op); err != nil {
		return nil, err
	}
	done, err := c.wait(ctx, "create corpus", &op)
	if err != nil {
		return nil, err
	}
	var v vertexCorpus
	if len(done.Response) > 0 {
		if err := json.Unmarshal(done.Response, &v); err != nil {
			return nil, fmt.Errorf("rag: create corpus: decode operation response: %w", err)
		}
	}
	if v.DisplayName == "" {
		v.DisplayName = displayName
	}
	corpus := v.toCorpus()
	return &corpus, nil
}

// GetCorpus fetches a single corpus by resource name.
func (c *VertexClient) GetCorpus(ctx context.Context, name string) (*Corpus, error) {
	var v vertexCorpus
	if err := c.do(ctx, "get corpus", http.MethodGet, name, nil, nil, &v); err != nil {
		return nil, err
	}
	corpus := v.toCorpus()
	return &corpus, nil
}

// DeleteCorpus force-deletes a corpus, including its files.
func (c *VertexClient) DeleteCorpus(ctx context.Context, name string) error {
	var op operation
	q := url.Values{"force": {"true"}}
	if err := c.do(ctx, "delete corpus", http.MethodDelete, name, q, nil, &op); err != nil {
		return err
	}
	_, err := c.wait(ctx, "delete corpus", &op)
	return err
}

// ListFiles lists every file in the corpus, following pagination.
func (c *VertexClient) ListFiles(ctx context.Context, corpusName string) ([]File, error) {
	var out []File
	token := ""
	for {
		q := url.Values{"pageSize": {"100"}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var page listFilesResponse
		if err := c.do(ctx, "list files", http.MethodGet, corpusName+"/ragFiles", q, nil, &page); err != nil {
			return nil, err
		}
		for _, v := range page.RagFiles {
			out = append(out, v.toFile())
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

// DeleteFile deletes a single file.
func (c *VertexClient) DeleteFile(ctx context.Context, fileName string) error {
	var op operation
	if err := c.do(ctx, "delete file", http.MethodDelete, fileName, nil, nil, &op); err != nil {
		return err
	}
	_, err := c.wait(ctx, "delete file", &op)
	return err
}

// ImportFiles imports Drive and Cloud Storage sources. The API accepts one
// source kind per request, so Drive and gs:// paths are imported separately
// and their counts summed.
func (c *VertexClient) ImportFiles(ctx context.Context, corpusName string, paths []string, cfg ImportConfig) (*ImportResult, error) {
	var gcs []string
	var drive []driveResourceID
	for _, p := range paths {
		if strings.HasPrefix(p, "gs://") {
			gcs = append(gcs, p)
			continue
		}
		res, ok := ParseDriveResource(p)
		if !ok {
			return nil, fmt.Errorf("rag: import files: unsupported source %q", p)
		}
		kind := "RESOURCE_TYPE_FILE"
		if res.Folder {
			kind = "RESOURCE_TYPE_FOLDER"
		}
		drive = append(drive, driveResourceID{ResourceType: kind, ResourceID: res.ID})
	}

	chunking := map[string]any{
		"ragFileChunkingConfig": map[string]any{
			"fixedLengthChunking": map[string]any{
				"chunkSize":    cfg.ChunkSize,
				"chunkOverlap": cfg.ChunkOverlap,
			},
		},
	}

	total := &ImportResult{}
	if len(gcs) > 0 {
		src := map[string]any{"gcsSource": map[string]any{"uris": gcs}}
		if err := c.importBatch(ctx, corpusName, src, chunking, total); err != nil {
			return nil, err
		}
	}
	if len(drive) > 0 {
		src := map[string]any{"googleDriveSource": map[string]any{"resourceIds": drive}}
		if err := c.importBatch(ctx, corpusName, src, chunking, total); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// importBatch runs one ragFiles:import operation and adds its counts to total.
func (c *VertexClient) importBatch(ctx context.Context, corpusName string, source, chunking map[string]any, total *ImportResult) error {
	cfg := map[string]any{"ragFileTransformationConfig": chunking}
	for k, v := range source {
		cfg[k] = v
	}
	body := map[string]any{"importRagFilesConfig": cfg}

	var op operation
	if err := c.do(ctx, "import files", http.MethodPost, corpusName+"/ragFiles:import", nil, body, &op); err != nil {
		return err
	}
	done, err := c.wait(ctx, "import files", &op)
	if err != nil {
		return err
	}
	if len(done.Response) == 0 {
		return nil
	}
	var res importResponse
	if err := json.Unmarshal(done.Response, &res); err != nil {
		return fmt.Errorf("rag: import files: decode operation response: %w", err)
	}
	total.Imported += int(res.Imported)
	total.Failed += int(res.Failed)
	total.Skipped += int(res.Skipped)
	return nil
}

// RetrievalQuery runs retrieveContexts against a single corpus.
func (c *VertexClient) RetrievalQuery(ctx context.Context, corpusName, text string, cfg RetrievalConfig) (*RetrievalResponse, error) {
	retrieval := map[string]any{}
	if cfg.TopK > 0 {
		retrieval["topK"] = cfg.TopK
	}
	if cfg.DistanceThreshold > 0 {
		retrieval["filter"] = map[string]any{"vectorDistanceThreshold": cfg.DistanceThreshold}
	}
	body := map[string]any{
		"vertexRagStore": map[string]any{
			"ragResources": []map[string]string{{"ragCorpus": corpusName}},
		},
		"query": map[string]any{
			"text":               text,
			"ragRetrievalConfig": retrieval,
		},
	}

	var resp retrieveContextsResponse
	if err := c.do(ctx, "retrieve contexts", http.MethodPost, c.parent()+":retrieveContexts", nil, body, &resp); err != nil {
		return nil, err
	}
	return &RetrievalResponse{Contexts: resp.Contexts.Contexts}, nil
}

// Ping lists a single corpus to confirm credentials and reachability.
func (c *VertexClient) Ping(ctx context.Context) error {
	var page listCorporaResponse
	return c.do(ctx, "ping", http.MethodGet, c.parent()+"/ragCorpora", url.Values{"pageSize": {"1"}}, nil, &page)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// wait polls a long-running operation until it is done, fails, or the
// operation timeout elapses.
func (c *VertexClient) wait(ctx context.Context, op string, o *operation) (*operation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	cur := o
	for !cur.Done {
		if cur.Name == "" {
			return nil, fmt.Errorf("rag: %s: operation has no name and is not done", op)
		}
		select {
		case <-ctx.Done():
			return nil, &RemoteUnavailableError{Op: op, Err: fmt.Errorf("waiting for operation %s: %w", cur.Name, ctx.Err())}
		case <-time.After(c.cfg.PollInterval):
		}
		var next operation
		if err := c.do(ctx, op, http.MethodGet, cur.Name, nil, nil, &next); err != nil {
			return nil, err
		}
		cur = &next
	}

	if cur.Error != nil && cur.Error.Code != 0 {
		return nil, &RemoteUnavailableError{
			Op:         op,
			StatusCode: grpcToHTTP(cur.Error.Code),
			Message:    cur.Error.Message,
		}
	}
	return cur, nil
}

// do issues one API call under the rate limiter and per-call timeout, and
// decodes a JSON response into out.
func (c *VertexClient) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RemoteUnavailableError{Op: op, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rag: %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("rag: %s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteUnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("vertex call",
		slog.String("op", op),
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteUnavailableError{Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env errorEnvelope
		msg := ""
		if json.Unmarshal(data, &env) == nil {
			msg = env.Error.Message
		}
		return &RemoteUnavailableError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rag: %s: decode response: %w", op, err)
	}
	return nil
}

// grpcToHTTP maps the google.rpc.Code values that matter for user-facing
// suggestions onto HTTP status codes.
func grpcToHTTP(code int) int {
	switch code {
	case 3:
		return http.StatusBadRequest
	case 5:
		return http.StatusNotFound
	case 6:
		return http.StatusConflict
	case 7:
		return http.StatusForbidden
	case 8:
		return http.StatusTooManyRequests
	case 16:
		return http.StatusUnauthorized
	case 4:
		return http.StatusGatewayTimeout
	case 14:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// compile-time interface check.
var _ Service = (*VertexClient)(nil)
