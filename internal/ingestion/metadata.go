package ingestion

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// SourceMetadata holds what can be inferred about an import source from its
// URL alone.
type SourceMetadata struct {
	// FileID is a stable identifier derived from the URL. Re-importing the
	// same URL replaces the same file.
	FileID string
	// DisplayName is the last path segment, or the host for bare URLs.
	DisplayName string
	// Kind guesses the content format: "html", "markdown" or "text".
	Kind string
}

// InferMetadata inspects rawURL and returns best-effort metadata. Unparseable
// URLs fall back to the raw string as display name and "text" as kind.
func InferMetadata(rawURL string) SourceMetadata {
	m := SourceMetadata{
		FileID:      FileID(rawURL),
		DisplayName: rawURL,
		Kind:        "text",
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return m
	}

	base := path.Base(strings.TrimRight(parsed.Path, "/"))
	if base == "." || base == "/" || base == "" {
		m.DisplayName = parsed.Host
	} else if unescaped, err := url.PathUnescape(base); err == nil {
		m.DisplayName = unescaped
	} else {
		m.DisplayName = base
	}

	switch strings.ToLower(path.Ext(parsed.Path)) {
	case ".md", ".markdown":
		m.Kind = "markdown"
	case ".txt", ".text", ".csv", ".json", ".yaml", ".yml":
		m.Kind = "text"
	default:
		m.Kind = "html"
	}
	return m
}

// FileID returns the stable file identifier for a source URL.
func FileID(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("%x", h[:8])
}

// chunkID derives a deterministic UUID for a chunk so it can be used
// directly as a Qdrant point ID.
func chunkID(sourceURL string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", sourceURL, index))).String()
}
