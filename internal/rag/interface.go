// Package rag defines the contract for the remote retrieval service that
// hosts document corpora, plus the concrete Vertex AI RAG Engine client.
// The resolver, tool and agent layers depend only on [Service], so a local
// backend (see internal/localrag) can stand in for Vertex during development.
package rag

import (
	"context"
)

// Corpus is one corpus as reported by the remote service.
type Corpus struct {
	// Name is the canonical resource name
	// (projects/{project}/locations/{location}/ragCorpora/{id}).
	Name string `json:"name"`

	// DisplayName is the human-assigned label. Not guaranteed unique.
	DisplayName string `json:"displayName"`

	// Description is an optional free-text description.
	Description string `json:"description,omitempty"`

	// CreateTime and UpdateTime are opaque timestamps from the service.
	CreateTime string `json:"createTime,omitempty"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// File is a document that has been imported into a corpus.
type File struct {
	// Name is the full resource name ({corpus}/ragFiles/{id}).
	Name string

	// DisplayName is the file's label, usually the original file name.
	DisplayName string

	// SourceURI is the location the file was imported from, when known.
	SourceURI string

	// CreateTime and UpdateTime are opaque timestamps from the service.
	CreateTime string
	UpdateTime string
}

// ContextChunk is one retrieved context. Every field is optional on the wire;
// missing values decode to their zero value.
type ContextChunk struct {
	Text              string  `json:"text"`
	Score             float64 `json:"score"`
	SourceURI         string  `json:"sourceUri"`
	SourceDisplayName string  `json:"sourceDisplayName"`
}

// RetrievalResponse is the raw response of a retrieval query.
type RetrievalResponse struct {
	Contexts []ContextChunk
}

// RetrievalConfig tunes a retrieval query.
type RetrievalConfig struct {
	// TopK is the maximum number of contexts to return.
	TopK int

	// DistanceThreshold drops contexts whose vector distance exceeds it.
	// Zero disables the filter.
	DistanceThreshold float64
}

// ImportConfig tunes how imported files are chunked.
type ImportConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// ImportResult reports the outcome of an import operation.
type ImportResult struct {
	Imported int
	Failed   int
	Skipped  int
}

// Service is the remote corpus-management and retrieval service.
// Implementations must be safe to call from multiple goroutines.
type Service interface {
	// ListCorpora returns every corpus visible to the caller.
	ListCorpora(ctx context.Context) ([]Corpus, error)

	// CreateCorpus creates a corpus with the given display name.
	CreateCorpus(ctx context.Context, displayName, description string) (*Corpus, error)

	// GetCorpus fetches a single corpus by resource name.
	GetCorpus(ctx context.Context, name string) (*Corpus, error)

	// DeleteCorpus deletes a corpus and all of its files.
	DeleteCorpus(ctx context.Context, name string) error

	// ListFiles lists the files imported into a corpus.
	ListFiles(ctx context.Context, corpusName string) ([]File, error)

	// DeleteFile deletes a single file by its full resource name.
	DeleteFile(ctx context.Context, fileName string) error

	// ImportFiles imports documents from the given source paths.
	ImportFiles(ctx context.Context, corpusName string, paths []string, cfg ImportConfig) (*ImportResult, error)

	// RetrievalQuery runs a semantic retrieval query against one corpus.
	RetrievalQuery(ctx context.Context, corpusName, text string, cfg RetrievalConfig) (*RetrievalResponse, error)

	// Ping reports whether the service is reachable.
	Ping(ctx context.Context) error
}

// Document is a chunk of text stored in a local vector store.
type Document struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Content is the raw text of the chunk.
	Content string

	// Source is the origin URI of the document the chunk came from.
	Source string

	// Metadata holds arbitrary key-value pairs.
	Metadata map[string]string

	// Score is the similarity score assigned during search.
	Score float32
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into embeddings parallel to the input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
