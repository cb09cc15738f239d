// Package config provides layered configuration for ragagent.
// Configuration is loaded with the precedence: defaults → YAML file → .env
// file → env vars. Environment variables always win.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGAGENT_CONFIG environment variable
//  3. ~/.ragagent/config.yaml
//  4. ./ragagent.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config mirrors the YAML file. Every leaf maps to one env var in envMapping.
type Config struct {
	// Google configures the Google Cloud project hosting the corpora.
	Google GoogleConfig `yaml:"google"`

	// RAG configures corpus retrieval and import.
	RAG RAGConfig `yaml:"rag"`

	// Model selects and configures the chat model.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider for the local backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the local backend's vector store.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Server configures `ragagent serve`.
	Server ServerConfig `yaml:"server"`

	// Session configures chat session lifetime.
	Session SessionConfig `yaml:"session"`

	// Logging sets LOG_LEVEL and LOG_FORMAT.
	Logging LoggingConfig `yaml:"logging"`

	// History configures the SQLite conversation store.
	History HistoryConfig `yaml:"history"`

	// Tracing holds Langfuse credentials.
	Tracing TracingConfig `yaml:"tracing"`
}

// GoogleConfig holds Google Cloud settings.
type GoogleConfig struct {
	// Project is the Google Cloud project ID.
	Project string `yaml:"project"`
	// Location is the Vertex AI region, e.g. us-central1.
	Location string `yaml:"location"`
}

// RAGConfig holds corpus retrieval settings.
type RAGConfig struct {
	// Backend selects the corpus service: vertex or qdrant.
	Backend string `yaml:"backend"`
	// TopK is the number of contexts returned per query.
	TopK int `yaml:"top_k"`
	// DistanceThreshold drops contexts farther than this vector distance.
	DistanceThreshold float32 `yaml:"distance_threshold"`
	// ChunkSize is the chunk size used when importing files.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
	// RequestTimeout bounds each remote call, e.g. "30s".
	RequestTimeout string `yaml:"request_timeout"`
	// RateLimit is the sustained remote call rate per second.
	RateLimit float32 `yaml:"rate_limit"`
	// RateBurst is the remote call burst size.
	RateBurst int `yaml:"rate_burst"`
}

// ModelConfig holds chat model settings shared by every provider.
type ModelConfig struct {
	// Provider selects the backend: gemini, ollama, openai, azure, ark.
	Provider string `yaml:"provider"`

	// MaxTokens caps the length of each answer.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is passed through to the provider.
	Temperature float32 `yaml:"temperature"`

	Gemini GeminiConfig `yaml:"gemini"`

	Ollama OllamaConfig `yaml:"ollama"`

	OpenAI OpenAIConfig `yaml:"openai"`

	Azure AzureConfig `yaml:"azure"`

	Ark ArkConfig `yaml:"ark"`
}

// GeminiConfig maps to GOOGLE_API_KEY, GEMINI_MODEL and GOOGLE_GENAI_USE_VERTEXAI.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// UseVertex serves the model from Vertex AI instead of AI Studio.
	UseVertex bool `yaml:"use_vertex"`
}

// OllamaConfig maps to OLLAMA_HOST and OLLAMA_MODEL.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig maps to OPENAI_API_KEY and OPENAI_MODEL.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AzureConfig maps to the AZURE_OPENAI_* variables.
type AzureConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// ArkConfig holds Volcano Engine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Ark endpoint or model ID.
	Model string `yaml:"model"`
	// BaseURL overrides the Ark API endpoint.
	BaseURL string `yaml:"base_url"`
	// Region is the Ark region.
	Region string `yaml:"region"`
}

// EmbeddingConfig holds embedding provider settings for the local backend.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (gemini, ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// CollectionPrefix namespaces the collections owned by ragagent.
	CollectionPrefix string `yaml:"collection_prefix"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RAGAGENT_API_KEY.
	APIKey string `yaml:"api_key"`
}

// SessionConfig holds chat session settings.
type SessionConfig struct {
	// TTL is the idle lifetime of a session, e.g. "1h".
	TTL string `yaml:"ttl"`
}

// LoggingConfig holds the slog level (debug|info|warn|error) and format (json|text).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HistoryConfig holds conversation history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
	// Retention drops conversations idle for longer (e.g. "720h").
	Retention string `yaml:"retention"`
}

// TracingConfig maps to the LANGFUSE_* variables. Keys belong in the
// environment rather than the file.
type TracingConfig struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// envMapping lists the env var each YAML leaf is exported as.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"GOOGLE_CLOUD_PROJECT", func(c *Config) string { return c.Google.Project }},
	{"GOOGLE_CLOUD_LOCATION", func(c *Config) string { return c.Google.Location }},
	{"RAG_BACKEND", func(c *Config) string { return c.RAG.Backend }},
	{"RAG_TOP_K", func(c *Config) string { return intStr(c.RAG.TopK) }},
	{"RAG_DISTANCE_THRESHOLD", func(c *Config) string { return float32Str(c.RAG.DistanceThreshold) }},
	{"RAG_CHUNK_SIZE", func(c *Config) string { return intStr(c.RAG.ChunkSize) }},
	{"RAG_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.RAG.ChunkOverlap) }},
	{"RAG_REQUEST_TIMEOUT", func(c *Config) string { return c.RAG.RequestTimeout }},
	{"RAG_RATE_LIMIT", func(c *Config) string { return float32Str(c.RAG.RateLimit) }},
	{"RAG_RATE_BURST", func(c *Config) string { return intStr(c.RAG.RateBurst) }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"GOOGLE_GENAI_USE_VERTEXAI", func(c *Config) string { return boolStr(c.Model.Gemini.UseVertex) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"ARK_REGION", func(c *Config) string { return c.Model.Ark.Region }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION_PREFIX", func(c *Config) string { return c.Qdrant.CollectionPrefix }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"RAGAGENT_HOST", func(c *Config) string { return c.Server.Host }},
	{"RAGAGENT_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"RAGAGENT_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"RAGAGENT_SESSION_TTL", func(c *Config) string { return c.Session.TTL }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"RAGAGENT_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"RAGAGENT_HISTORY_RETENTION", func(c *Config) string { return c.History.Retention }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables, then loads a .env file from the working directory. Existing env
// vars are never overwritten (env always wins, and YAML beats .env because
// it is applied first). Returns the YAML path that was loaded, or empty
// string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
	} else if err := applyYAML(path, log); err != nil {
		return "", err
	}

	if err := LoadDotEnv(".env", log); err != nil {
		return path, err
	}
	return path, nil
}

// applyYAML parses path and exports its non-empty values.
func applyYAML(path string, log *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env wins
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string, log *slog.Logger) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded dotenv file", slog.String("path", path))
	return nil
}

// resolveConfigPath returns the first existing file in the search order.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGAGENT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragagent", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragagent.yaml"); err == nil {
		return "ragagent.yaml"
	}

	return ""
}

// intStr formats v, with zero as "".
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str formats v without trailing zeros, with zero as "".
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr maps false to "".
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
