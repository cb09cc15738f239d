package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported corpus backends.
const (
	// BackendVertex serves corpora from the Vertex AI RAG Engine.
	BackendVertex = "vertex"
	// BackendQdrant serves corpora from a local Qdrant instance.
	BackendQdrant = "qdrant"
)

// RAGSettings is the typed view of the retrieval environment.
type RAGSettings struct {
	// Project is the Google Cloud project ID.
	Project string
	// Location is the Vertex AI region.
	Location string
	// Backend is BackendVertex or BackendQdrant.
	Backend string
	// TopK is the number of contexts returned per query.
	TopK int
	// DistanceThreshold drops contexts farther than this vector distance.
	DistanceThreshold float64
	// ChunkSize and ChunkOverlap tune file imports.
	ChunkSize    int
	ChunkOverlap int
	// RequestTimeout bounds each remote call.
	RequestTimeout time.Duration
	// RateLimit is the sustained remote call rate per second.
	RateLimit float64
	// RateBurst is the remote call burst size.
	RateBurst int
	// SessionTTL is the idle lifetime of a chat session.
	SessionTTL time.Duration
	// HistoryRetention is how long a conversation's messages are kept
	// after its last message.
	HistoryRetention time.Duration
}

// RAGFromEnv reads RAGSettings from the environment, applying defaults for
// unset values. Malformed values are reported rather than silently ignored.
func RAGFromEnv() (*RAGSettings, error) {
	s := &RAGSettings{
		Project:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Location: os.Getenv("GOOGLE_CLOUD_LOCATION"),
		Backend:  strings.ToLower(envOr("RAG_BACKEND", BackendVertex)),
	}

	var err error
	if s.TopK, err = envInt("RAG_TOP_K", 3); err != nil {
		return nil, err
	}
	if s.DistanceThreshold, err = envFloat("RAG_DISTANCE_THRESHOLD", 0.5); err != nil {
		return nil, err
	}
	if s.ChunkSize, err = envInt("RAG_CHUNK_SIZE", 512); err != nil {
		return nil, err
	}
	if s.ChunkOverlap, err = envInt("RAG_CHUNK_OVERLAP", 100); err != nil {
		return nil, err
	}
	if s.RequestTimeout, err = envDuration("RAG_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if s.RateLimit, err = envFloat("RAG_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if s.RateBurst, err = envInt("RAG_RATE_BURST", 10); err != nil {
		return nil, err
	}
	if s.SessionTTL, err = envDuration("RAGAGENT_SESSION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if s.HistoryRetention, err = envDuration("RAGAGENT_HISTORY_RETENTION", 30*24*time.Hour); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks ranges and required fields. Project and location are
// required by both backends since corpus resource names embed them.
func (s *RAGSettings) Validate() error {
	switch s.Backend {
	case BackendVertex, BackendQdrant:
	default:
		return fmt.Errorf("config: unknown RAG_BACKEND %q (supported: vertex, qdrant)", s.Backend)
	}
	if s.Project == "" {
		return fmt.Errorf("config: GOOGLE_CLOUD_PROJECT is required")
	}
	if s.Location == "" {
		return fmt.Errorf("config: GOOGLE_CLOUD_LOCATION is required")
	}
	if s.TopK <= 0 {
		return fmt.Errorf("config: RAG_TOP_K must be positive, got %d", s.TopK)
	}
	if s.DistanceThreshold < 0 || s.DistanceThreshold > 2 {
		return fmt.Errorf("config: RAG_DISTANCE_THRESHOLD must be within [0, 2], got %g", s.DistanceThreshold)
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("config: RAG_CHUNK_OVERLAP (%d) must be smaller than RAG_CHUNK_SIZE (%d)", s.ChunkOverlap, s.ChunkSize)
	}
	return nil
}

// envOr returns the env var value or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %s", key, v)
	}
	return d, nil
}
