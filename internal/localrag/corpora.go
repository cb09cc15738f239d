package localrag

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragagent-go/internal/rag"
)

// registryID is the registry point ID for a corpus resource name.
func registryID(resourceName string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(resourceName)).String())
}

// corpusFromPayload decodes a registry point payload.
func corpusFromPayload(p map[string]*qdrant.Value) rag.Corpus {
	return rag.Corpus{
		Name:        p[keyName].GetStringValue(),
		DisplayName: p[keyDisplayName].GetStringValue(),
		Description: p[keyDescription].GetStringValue(),
		CreateTime:  p[keyCreateTime].GetStringValue(),
		UpdateTime:  p[keyUpdateTime].GetStringValue(),
	}
}

// ListCorpora returns every corpus in the registry.
func (s *Store) ListCorpora(ctx context.Context) ([]rag.Corpus, error) {
	points, err := scrollAll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.registry(),
		WithPayload:    qdrant.NewWithPayload(true),
	}, s.scrollPage)
	if err != nil {
		return nil, remoteErr("list corpora", err)
	}

	out := make([]rag.Corpus, 0, len(points))
	for _, p := range points {
		out = append(out, corpusFromPayload(p.GetPayload()))
	}
	return out, nil
}

// CreateCorpus creates a collection for the corpus and records it in the
// registry. The corpus ID is the sanitised display name, so the resolver's
// synthesised names match local corpora.
func (s *Store) CreateCorpus(ctx context.Context, displayName, description string) (*rag.Corpus, error) {
	id := rag.SanitizeCorpusID(displayName)
	if id == "" {
		return nil, &rag.RemoteUnavailableError{Op: "create corpus", StatusCode: http.StatusBadRequest, Message: "display name is empty"}
	}
	name := rag.ResourceName(s.cfg.Project, s.cfg.Location, id)
	coll := s.collection(name)

	exists, err := s.client.CollectionExists(ctx, coll)
	if err != nil {
		return nil, remoteErr("create corpus", err)
	}
	if exists {
		return nil, &rag.RemoteUnavailableError{Op: "create corpus", StatusCode: http.StatusConflict, Message: "corpus " + id + " already exists"}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: coll,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, remoteErr("create corpus", err)
	}

	ts := now()
	corpus := rag.Corpus{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		CreateTime:  ts,
		UpdateTime:  ts,
	}
	if err := s.putRegistry(ctx, corpus); err != nil {
		_ = s.client.DeleteCollection(ctx, coll)
		return nil, err
	}

	s.log.Info("localrag: corpus created", "name", name, "collection", coll)
	return &corpus, nil
}

// putRegistry upserts corpus metadata into the registry.
func (s *Store) putRegistry(ctx context.Context, c rag.Corpus) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.registry(),
		Points: []*qdrant.PointStruct{{
			Id:      registryID(c.Name),
			Vectors: qdrant.NewVectors(1),
			Payload: qdrant.NewValueMap(map[string]any{
				keyName:        c.Name,
				keyDisplayName: c.DisplayName,
				keyDescription: c.Description,
				keyCreateTime:  c.CreateTime,
				keyUpdateTime:  c.UpdateTime,
			}),
		}},
	})
	if err != nil {
		return remoteErr("update registry", err)
	}
	return nil
}

// GetCorpus fetches a corpus from the registry.
func (s *Store) GetCorpus(ctx context.Context, name string) (*rag.Corpus, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.registry(),
		Ids:            []*qdrant.PointId{registryID(name)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, remoteErr("get corpus", err)
	}
	if len(points) == 0 {
		return nil, notFound("get corpus", "RagCorpus "+name)
	}
	c := corpusFromPayload(points[0].GetPayload())
	return &c, nil
}

// DeleteCorpus drops the corpus collection and its registry entry.
func (s *Store) DeleteCorpus(ctx context.Context, name string) error {
	if _, err := s.GetCorpus(ctx, name); err != nil {
		return err
	}
	if err := s.client.DeleteCollection(ctx, s.collection(name)); err != nil {
		return remoteErr("delete corpus", err)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.registry(),
		Points:         qdrant.NewPointsSelector(registryID(name)),
	})
	if err != nil {
		return remoteErr("delete corpus", err)
	}
	s.log.Info("localrag: corpus deleted", "name", name)
	return nil
}

// touch refreshes the corpus update time after its files change.
func (s *Store) touch(ctx context.Context, name string) {
	c, err := s.GetCorpus(ctx, name)
	if err != nil {
		return
	}
	c.UpdateTime = now()
	if err := s.putRegistry(ctx, *c); err != nil {
		s.log.Warn("localrag: failed to update corpus time", "name", name, "error", err)
	}
}
