// Package localrag implements rag.Service on top of a Qdrant instance so the
// agent can run against a local stack during development. Each corpus is a
// Qdrant collection; corpus metadata lives in a small registry collection;
// imported files are groups of chunks sharing a file_id payload.
package localrag

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/54b3r/ragagent-go/internal/ingestion"
	"github.com/54b3r/ragagent-go/internal/rag"
)

// Payload keys.
const (
	keyName        = "name"
	keyDisplayName = "display_name"
	keyDescription = "description"
	keyCreateTime  = "create_time"
	keyUpdateTime  = "update_time"
	keyContent     = "content"
	keySource      = "source"
	keyFileID      = "file_id"
	keyImportedAt  = "imported_at"
)

// scrollPageSize is how many points one Scroll call reads. Listings follow
// the next-page offset until the collection is exhausted.
const scrollPageSize = 1000

// Config holds connection parameters for the local backend.
type Config struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Project and Location are used to build corpus resource names, so names
	// look the same as on Vertex AI.
	Project  string
	Location string

	// VectorSize is the dimensionality of the embeddings.
	VectorSize uint64

	// CollectionPrefix namespaces every collection this backend owns.
	// Defaults to "ragagent_".
	CollectionPrefix string

	// QueryCacheSize bounds the LRU of query embeddings. Defaults to 256.
	QueryCacheSize int

	// Ingestion configures the import pipeline.
	Ingestion *ingestion.Config

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Store implements rag.Service backed by Qdrant.
type Store struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration.
	cfg *Config

	// embedder embeds query text.
	embedder rag.Embedder

	// pipeline imports documents into corpus collections.
	pipeline *ingestion.Pipeline

	// queries caches query embeddings by text.
	queries *lru.Cache[string, []float32]

	// log is the structured logger for this store.
	log *slog.Logger
}

// NewStore connects to Qdrant, ensures the corpus registry exists and
// returns a ready-to-use Store.
func NewStore(ctx context.Context, embedder rag.Embedder, cfg *Config) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("localrag: embedder must not be nil")
	}
	if cfg == nil || cfg.Project == "" || cfg.Location == "" {
		return nil, fmt.Errorf("localrag: project and location are required")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("localrag: vector size must be set")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "ragagent_"
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("localrag: failed to create qdrant client: %w", err)
	}

	queries, err := lru.New[string, []float32](cfg.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("localrag: query cache: %w", err)
	}

	s := &Store{
		client:   client,
		cfg:      cfg,
		embedder: embedder,
		queries:  queries,
		log:      cfg.Logger,
	}

	ingestCfg := cfg.Ingestion
	if ingestCfg == nil {
		ingestCfg = &ingestion.Config{}
	}
	if ingestCfg.Logger == nil {
		ingestCfg.Logger = cfg.Logger
	}
	s.pipeline, err = ingestion.NewPipeline(embedder, s, ingestCfg)
	if err != nil {
		return nil, fmt.Errorf("localrag: %w", err)
	}

	if err := s.ensureRegistry(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// registry is the name of the collection that stores corpus metadata.
func (s *Store) registry() string {
	return s.cfg.CollectionPrefix + "corpora"
}

// collection maps a corpus resource name to its Qdrant collection.
func (s *Store) collection(corpusName string) string {
	return s.cfg.CollectionPrefix + "c_" + rag.LastSegment(corpusName)
}

// ensureRegistry creates the registry collection if it does not exist.
func (s *Store) ensureRegistry(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.registry())
	if err != nil {
		return remoteErr("check registry", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.registry(),
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     1,
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return remoteErr("create registry", err)
	}
	return nil
}

// Ping reports whether Qdrant is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return remoteErr("ping", err)
	}
	return nil
}

// now returns the current time as an RFC 3339 string.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// remoteErr converts a Qdrant gRPC error into a *rag.RemoteUnavailableError
// carrying the closest HTTP status.
func remoteErr(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &rag.RemoteUnavailableError{Op: op, Err: err}
	}
	code := http.StatusInternalServerError
	switch st.Code() {
	case codes.NotFound:
		code = http.StatusNotFound
	case codes.AlreadyExists:
		code = http.StatusConflict
	case codes.PermissionDenied:
		code = http.StatusForbidden
	case codes.Unauthenticated:
		code = http.StatusUnauthorized
	case codes.ResourceExhausted:
		code = http.StatusTooManyRequests
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.Unavailable:
		code = http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		code = http.StatusGatewayTimeout
	}
	return &rag.RemoteUnavailableError{Op: op, StatusCode: code, Message: st.Message()}
}

// notFound builds a 404 error for op.
func notFound(op, what string) error {
	return &rag.RemoteUnavailableError{Op: op, StatusCode: http.StatusNotFound, Message: what + " not found"}
}

// compile-time interface checks.
var (
	_ rag.Service    = (*Store)(nil)
	_ ingestion.Sink = (*Store)(nil)
)

// pageFunc reads one page of points and returns the offset of the next page,
// or nil on the last page.
type pageFunc func(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)

// scrollPage reads one page through the raw points client, which exposes the
// next-page offset.
func (s *Store) scrollPage(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
	resp, err := s.client.GetPointsClient().Scroll(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return resp.GetResult(), resp.GetNextPageOffset(), nil
}

// scrollAll reads every point matched by req, page by page.
func scrollAll(ctx context.Context, req *qdrant.ScrollPoints, page pageFunc) ([]*qdrant.RetrievedPoint, error) {
	limit := uint32(scrollPageSize)
	req.Limit = &limit
	req.Offset = nil

	var out []*qdrant.RetrievedPoint
	for {
		points, next, err := page(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, points...)
		if next == nil || len(points) == 0 {
			return out, nil
		}
		req.Offset = next
	}
}
