package localrag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragagent-go/internal/rag"
)

// RetrievalQuery embeds text and runs a cosine similarity search over the
// corpus collection. The distance threshold becomes a minimum similarity of
// 1 - threshold.
func (s *Store) RetrievalQuery(ctx context.Context, corpusName, text string, cfg rag.RetrievalConfig) (*rag.RetrievalResponse, error) {
	vec, err := s.embedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection(corpusName),
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if threshold := minSimilarity(cfg.DistanceThreshold); threshold > 0 {
		req.ScoreThreshold = &threshold
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, remoteErr("retrieve contexts", err)
	}

	resp := &rag.RetrievalResponse{Contexts: make([]rag.ContextChunk, 0, len(points))}
	for _, p := range points {
		pl := p.GetPayload()
		resp.Contexts = append(resp.Contexts, rag.ContextChunk{
			Text:              pl[keyContent].GetStringValue(),
			Score:             float64(p.GetScore()),
			SourceURI:         pl[keySource].GetStringValue(),
			SourceDisplayName: pl[keyDisplayName].GetStringValue(),
		})
	}
	return resp, nil
}

// minSimilarity converts a cosine distance threshold into the minimum
// similarity score Qdrant should return. Zero disables the filter.
func minSimilarity(distance float64) float32 {
	if distance <= 0 || distance >= 1 {
		return 0
	}
	return float32(1 - distance)
}

// embedQuery returns the embedding of text, consulting the LRU first.
func (s *Store) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.queries.Get(text); ok {
		return v, nil
	}
	out, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, &rag.RemoteUnavailableError{Op: "embed query", Err: err}
	}
	if len(out) != 1 || len(out[0]) == 0 {
		return nil, fmt.Errorf("localrag: embedder returned no vector for the query")
	}
	s.queries.Add(text, out[0])
	return out[0], nil
}
