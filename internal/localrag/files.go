package localrag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragagent-go/internal/rag"
)

// fileFilter selects every chunk of one imported file.
func fileFilter(fileID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(keyFileID, fileID)},
	}
}

// ListFiles groups the corpus chunks by file and returns one File per group,
// ordered by display name.
func (s *Store) ListFiles(ctx context.Context, corpusName string) ([]rag.File, error) {
	if _, err := s.GetCorpus(ctx, corpusName); err != nil {
		return nil, err
	}

	points, err := scrollAll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection(corpusName),
		WithPayload:    qdrant.NewWithPayloadInclude(keyFileID, keyDisplayName, keySource, keyImportedAt),
	}, s.scrollPage)
	if err != nil {
		return nil, remoteErr("list files", err)
	}

	byID := make(map[string]*rag.File)
	for _, p := range points {
		pl := p.GetPayload()
		id := pl[keyFileID].GetStringValue()
		if id == "" {
			continue
		}
		f, ok := byID[id]
		if !ok {
			f = &rag.File{
				Name:        rag.FileName(corpusName, id),
				DisplayName: pl[keyDisplayName].GetStringValue(),
				SourceURI:   pl[keySource].GetStringValue(),
			}
			byID[id] = f
		}
		ts := pl[keyImportedAt].GetStringValue()
		if f.CreateTime == "" || ts < f.CreateTime {
			f.CreateTime = ts
		}
		if ts > f.UpdateTime {
			f.UpdateTime = ts
		}
	}

	out := make([]rag.File, 0, len(byID))
	for _, f := range byID {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// DeleteFile removes every chunk of the file.
func (s *Store) DeleteFile(ctx context.Context, fileName string) error {
	corpus := rag.CorpusOfFile(fileName)
	if corpus == "" {
		return fmt.Errorf("localrag: %q is not a file resource name", fileName)
	}
	if err := s.DeleteSource(ctx, s.collection(corpus), rag.LastSegment(fileName)); err != nil {
		return err
	}
	s.touch(ctx, corpus)
	return nil
}

// ImportFiles fetches each HTTP(S) source and stores its chunks. Google
// Drive and Cloud Storage sources need the Vertex backend and are counted as
// failed.
func (s *Store) ImportFiles(ctx context.Context, corpusName string, paths []string, cfg rag.ImportConfig) (*rag.ImportResult, error) {
	if _, err := s.GetCorpus(ctx, corpusName); err != nil {
		return nil, err
	}

	res := &rag.ImportResult{}
	var urls []string
	for _, p := range paths {
		if strings.HasPrefix(p, "gs://") || strings.Contains(p, "drive.google.com") {
			s.log.Warn("localrag: source requires the vertex backend", "path", p)
			res.Failed++
			continue
		}
		urls = append(urls, p)
	}

	stats, err := s.pipeline.Ingest(ctx, s.collection(corpusName), urls, cfg.ChunkSize, cfg.ChunkOverlap)
	res.Imported += stats.Imported
	res.Failed += stats.Failed
	res.Skipped += stats.Skipped
	if err != nil {
		return res, &rag.RemoteUnavailableError{Op: "import files", Err: err}
	}
	if stats.Imported > 0 {
		s.touch(ctx, corpusName)
	}
	return res, nil
}

// Upsert stores embedded chunks in collection. It implements ingestion.Sink.
func (s *Store) Upsert(ctx context.Context, collection string, docs []rag.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("localrag: %d documents but %d vectors", len(docs), len(vectors))
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]any{
			keyContent: doc.Content,
			keySource:  doc.Source,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return remoteErr("upsert", err)
	}
	return nil
}

// DeleteSource removes every chunk of fileID from collection. It implements
// ingestion.Sink.
func (s *Store) DeleteSource(ctx context.Context, collection, fileID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(fileFilter(fileID)),
	})
	if err != nil {
		return remoteErr("delete file", err)
	}
	return nil
}
