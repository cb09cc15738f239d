// Package ingestion implements the fetch, chunk, embed and upsert pipeline
// used by the local backend to import documents into a corpus.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/ragagent-go/internal/rag"
)

// Sink persists embedded chunks into a named collection.
type Sink interface {
	// Upsert stores docs with their parallel vectors in collection.
	Upsert(ctx context.Context, collection string, docs []rag.Document, vectors [][]float32) error
	// DeleteSource removes every chunk previously stored for fileID.
	DeleteSource(ctx context.Context, collection, fileID string) error
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to 512 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Defaults to 100 when negative or not smaller than ChunkSize.
	ChunkOverlap int

	// BatchSize caps the number of chunks embedded per call. Defaults to 64.
	BatchSize int

	// HTTPTimeout is the timeout for each fetch. Defaults to 30s.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string

	// HTTPClient overrides the fetch client.
	HTTPClient *http.Client

	// Logger receives per-source progress. Defaults to slog.Default.
	Logger *slog.Logger
}

// Stats summarises an ingestion run.
type Stats struct {
	// Imported counts sources that were stored.
	Imported int
	// Failed counts sources that could not be fetched, embedded or stored.
	Failed int
	// Skipped counts sources with no text content.
	Skipped int
	// Chunks is the total number of chunks stored.
	Chunks int
}

// Pipeline orchestrates fetch, chunk, embed and upsert for a set of sources.
type Pipeline struct {
	// embedder converts text chunks into dense vectors.
	embedder rag.Embedder

	// sink persists the embedded chunks.
	sink Sink

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient fetches source documents.
	httpClient *http.Client

	// log is the structured logger for progress.
	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, sink Sink, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("ingestion: sink must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = min(100, cfg.ChunkSize/5)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ragagent-go/1.0 (document import)"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		embedder:   embedder,
		sink:       sink,
		cfg:        cfg,
		httpClient: client,
		log:        log,
	}, nil
}

// Ingest imports every source URL into collection. A source that fails is
// counted and logged, and the run continues; only context cancellation
// aborts the run. Re-importing a URL replaces its previous chunks.
// chunkSize and chunkOverlap override the pipeline defaults when positive.
func (p *Pipeline) Ingest(ctx context.Context, collection string, urls []string, chunkSize, chunkOverlap int) (Stats, error) {
	size, overlap := p.cfg.ChunkSize, p.cfg.ChunkOverlap
	if chunkSize > 0 {
		size, overlap = chunkSize, chunkOverlap
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var stats Stats
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, err := p.ingestOne(ctx, collection, u, size, overlap)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return stats, err
		case errors.Is(err, errNoContent):
			stats.Skipped++
			p.log.Info("ingestion: source has no content", slog.String("url", u))
		case err != nil:
			stats.Failed++
			p.log.Warn("ingestion: source failed", slog.String("url", u), slog.String("error", err.Error()))
		default:
			stats.Imported++
			stats.Chunks += n
			p.log.Info("ingestion: source imported", slog.String("url", u), slog.Int("chunks", n))
		}
	}
	return stats, nil
}

// errNoContent marks a source whose text is empty after extraction.
var errNoContent = errors.New("ingestion: no content")

// ingestOne fetches, chunks, embeds and stores a single source and returns
// the number of chunks stored.
func (p *Pipeline) ingestOne(ctx context.Context, collection, u string, size, overlap int) (int, error) {
	meta := InferMetadata(u)

	raw, contentType, err := p.fetch(ctx, u)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", u, err)
	}
	text := raw
	if meta.Kind == "html" || strings.Contains(contentType, "html") {
		text = extractText(raw)
	}

	chunks := chunk(text, size, overlap)
	if len(chunks) == 0 {
		return 0, errNoContent
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(chunks))
		batch, err := p.embedder.Embed(ctx, chunks[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", u, err)
		}
		vectors = append(vectors, batch...)
	}

	docs := make([]rag.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = rag.Document{
			ID:      chunkID(u, i),
			Content: c,
			Source:  u,
			Metadata: map[string]string{
				"file_id":      meta.FileID,
				"display_name": meta.DisplayName,
				"chunk_index":  strconv.Itoa(i),
				"imported_at":  time.Now().UTC().Format(time.RFC3339),
			},
		}
	}

	if err := p.sink.DeleteSource(ctx, collection, meta.FileID); err != nil {
		return 0, fmt.Errorf("replace %s: %w", u, err)
	}
	if err := p.sink.Upsert(ctx, collection, docs, vectors); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", u, err)
	}
	return len(chunks), nil
}

// fetch retrieves the body and content type of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("reading body: %w", err)
	}
	return string(body), resp.Header.Get("Content-Type"), nil
}

var (
	scriptPattern = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]+>`)
	spacePattern  = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankPattern  = regexp.MustCompile(`\n\s*\n+`)
)

// extractText strips markup from an HTML page and collapses whitespace.
func extractText(page string) string {
	s := scriptPattern.ReplaceAllString(page, " ")
	s = tagPattern.ReplaceAllString(s, "\n")
	s = html.UnescapeString(s)
	s = spacePattern.ReplaceAllString(s, " ")
	s = blankPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// chunk splits text into overlapping chunks of size characters. overlap must
// be smaller than size.
func chunk(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := min(start+size, len(runes))
		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
