// Package audit logs one structured record per CLI invocation: the command,
// the config file in effect and the settings that shape retrieval and model
// calls. Secret values are reduced to "set" or "unset".
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// auditKeys is the ordered list of env vars recorded for every command.
var auditKeys = []string{
	"GOOGLE_CLOUD_PROJECT",
	"GOOGLE_CLOUD_LOCATION",
	"RAG_BACKEND",
	"RAG_TOP_K",
	"RAG_DISTANCE_THRESHOLD",
	"RAG_CHUNK_SIZE",
	"RAG_CHUNK_OVERLAP",
	"MODEL_PROVIDER",
	"OLLAMA_HOST",
	"OLLAMA_MODEL",
	"OPENAI_API_KEY",
	"OPENAI_MODEL",
	"AZURE_OPENAI_API_KEY",
	"AZURE_OPENAI_ENDPOINT",
	"AZURE_OPENAI_DEPLOYMENT",
	"GOOGLE_API_KEY",
	"GEMINI_MODEL",
	"GOOGLE_GENAI_USE_VERTEXAI",
	"ARK_API_KEY",
	"ARK_MODEL",
	"EMBEDDING_PROVIDER",
	"EMBEDDING_MODEL",
	"EMBEDDING_API_KEY",
	"QDRANT_HOST",
	"QDRANT_PORT",
	"QDRANT_COLLECTION_PREFIX",
	"QDRANT_API_KEY",
	"RAGAGENT_API_KEY",
	"RAGAGENT_HISTORY_DB",
	"RAGAGENT_SESSION_TTL",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"LANGFUSE_PUBLIC_KEY",
	"LANGFUSE_SECRET_KEY",
}

// secretSuffixes mark an env var as secret by naming convention.
var secretSuffixes = []string{"_API_KEY", "_SECRET_KEY", "_PUBLIC_KEY", "_TOKEN", "_PASSWORD"}

// LogCommandStart records the start of command with its config source and
// sanitised settings.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, key := range auditKeys {
		attrs = append(attrs, slog.String(key, SanitiseKey(key, os.Getenv(key))))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// IsSecret reports whether the value of key must never be logged.
func IsSecret(key string) bool {
	key = strings.ToUpper(key)
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// SanitiseKey returns "set" or "unset" for secret keys, and the value (or
// "unset") for everything else.
func SanitiseKey(key, value string) string {
	if IsSecret(key) {
		return presence(value)
	}
	if value == "" {
		return "unset"
	}
	return value
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// sanitiseConfigPath returns p with the home directory shortened to "~", or
// "none" when no config file was loaded.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
