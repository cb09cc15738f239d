package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragagent-go/internal/agent"
	"github.com/54b3r/ragagent-go/internal/config"
	"github.com/54b3r/ragagent-go/internal/corpus"
	"github.com/54b3r/ragagent-go/internal/embedder"
	"github.com/54b3r/ragagent-go/internal/ingestion"
	"github.com/54b3r/ragagent-go/internal/localrag"
	"github.com/54b3r/ragagent-go/internal/provider"
	"github.com/54b3r/ragagent-go/internal/rag"
	"github.com/54b3r/ragagent-go/internal/store"
	"github.com/54b3r/ragagent-go/internal/tools"
	"github.com/54b3r/ragagent-go/internal/tracing"
)

// runtime bundles the corpus-side collaborators every command needs.
type runtime struct {
	// settings is the typed retrieval configuration.
	settings *config.RAGSettings
	// service is the corpus backend (Vertex AI or Qdrant).
	service rag.Service
	// resolver maps corpus names to resource names.
	resolver *corpus.Resolver
	// tools is the agent toolset bound to service and resolver.
	tools []tools.RAGTool
	// closers run in reverse order on close.
	closers []func()
}

// close releases every resource opened by buildRuntime.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// retrievalConfig returns the per-query retrieval parameters.
func (rt *runtime) retrievalConfig() rag.RetrievalConfig {
	return rag.RetrievalConfig{
		TopK:              rt.settings.TopK,
		DistanceThreshold: rt.settings.DistanceThreshold,
	}
}

// buildRuntime reads the RAG settings and constructs the corpus backend,
// the name resolver and the tools. reg receives the cache metrics and may
// be nil.
func buildRuntime(ctx context.Context, log *slog.Logger, reg prometheus.Registerer) (*runtime, error) {
	settings, err := config.RAGFromEnv()
	if err != nil {
		return nil, err
	}
	rt := &runtime{settings: settings}

	switch settings.Backend {
	case config.BackendQdrant:
		st, err := newLocalStore(ctx, settings, log)
		if err != nil {
			return nil, err
		}
		rt.service = st
		rt.closers = append(rt.closers, func() { _ = st.Close() })
	default:
		vc, err := rag.NewVertexClient(ctx, &rag.VertexConfig{
			Project:   settings.Project,
			Location:  settings.Location,
			Timeout:   settings.RequestTimeout,
			RateLimit: settings.RateLimit,
			RateBurst: settings.RateBurst,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		rt.service = vc
	}
	log.Info("corpus backend ready",
		slog.String("backend", settings.Backend),
		slog.String("project", settings.Project),
		slog.String("location", settings.Location),
	)

	cache, err := corpus.NewCache(rt.service, &corpus.CacheConfig{
		Timeout:    settings.RequestTimeout,
		Logger:     log,
		Registerer: reg,
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.resolver, err = corpus.NewResolver(cache, &corpus.ResolverConfig{
		Project:  settings.Project,
		Location: settings.Location,
		Logger:   log,
	})
	if err != nil {
		rt.close()
		return nil, err
	}

	rt.tools, err = tools.All(&tools.Deps{
		Service:   rt.service,
		Resolver:  rt.resolver,
		Retrieval: rt.retrievalConfig(),
		Import: rag.ImportConfig{
			ChunkSize:    settings.ChunkSize,
			ChunkOverlap: settings.ChunkOverlap,
		},
		AllowHTTP: settings.Backend == config.BackendQdrant,
		Logger:    log,
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

// newLocalStore builds the Qdrant-backed corpus service.
func newLocalStore(ctx context.Context, settings *config.RAGSettings, log *slog.Logger) (*localrag.Store, error) {
	if err := embedder.ValidateForLocal(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	backend := embedder.Backend()
	log.Info("embedder initialised", slog.String("provider", backend))

	port, err := strconv.Atoi(getEnvOrDefault("QDRANT_PORT", "6334"))
	if err != nil {
		return nil, fmt.Errorf("invalid QDRANT_PORT: %w", err)
	}

	st, err := localrag.NewStore(ctx, emb, &localrag.Config{
		Host:             getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:             port,
		APIKey:           os.Getenv("QDRANT_API_KEY"),
		UseTLS:           os.Getenv("QDRANT_TLS") == "true",
		Project:          settings.Project,
		Location:         settings.Location,
		VectorSize:       uint64(embedder.DefaultDimensions(backend)), //nolint:gosec // dimensions are bounded
		CollectionPrefix: os.Getenv("QDRANT_COLLECTION_PREFIX"),
		Ingestion: &ingestion.Config{
			ChunkSize:    settings.ChunkSize,
			ChunkOverlap: settings.ChunkOverlap,
			HTTPTimeout:  settings.RequestTimeout,
			Logger:       log,
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return st, nil
}

// newChatModel builds the chat model and, when Langfuse keys are present,
// registers the tracing handler. The returned flush must run before exit.
func newChatModel(ctx context.Context, log *slog.Logger) (model.ToolCallingChatModel, *provider.Config, func(), error) {
	flush := func() {}
	handler, flusher, ok := tracing.Setup()
	if ok {
		callbacks.AppendGlobalHandlers(handler)
		flush = flusher
		log.Info("langfuse tracing enabled")
	} else {
		log.Debug("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
	}

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		flush()
		return nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)
	return chatModel, providerCfg, flush, nil
}

// openHistory opens the conversation store. RAGAGENT_HISTORY_DB overrides
// the default path (~/.ragagent/history.db); "disabled" turns history off.
// Conversations idle for longer than retention are purged on open.
// Failures disable history rather than aborting the command.
func openHistory(ctx context.Context, log *slog.Logger, retention time.Duration) (store.ConversationStore, func()) {
	dbPath := os.Getenv("RAGAGENT_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via RAGAGENT_HISTORY_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("history: store opened", slog.String("path", dbPath))

	if retention > 0 {
		n, err := hs.Expire(ctx, time.Now().Add(-retention))
		switch {
		case err != nil:
			log.Warn("history: expire failed", slog.Any("error", err))
		case n > 0:
			log.Info("history: expired old conversations",
				slog.Int64("messages", n),
				slog.Duration("retention", retention),
			)
		}
	}
	return hs, func() { _ = hs.Close() }
}

// newAgent assembles the RAG agent over rt's tools.
func newAgent(ctx context.Context, chatModel model.ToolCallingChatModel, rt *runtime, history store.ConversationStore) (*agent.RAGAgent, error) {
	a, err := agent.New(ctx, &agent.Config{
		ChatModel: chatModel,
		Tools:     tools.BaseTools(rt.tools),
		History:   history,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise agent: %w", err)
	}
	return a, nil
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as an int, or fallback when unset or
// malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
