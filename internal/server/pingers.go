package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ServicePinger adapts any dependency exposing Ping(ctx) to the Pinger
// interface. Both corpus backends (Vertex AI and Qdrant) satisfy it.
type ServicePinger struct {
	// probe is the dependency to check.
	probe interface {
		Ping(ctx context.Context) error
	}
	// name identifies the dependency in readiness responses.
	name string
}

// NewServicePinger constructs a ServicePinger labelled name.
func NewServicePinger(name string, probe interface {
	Ping(ctx context.Context) error
}) *ServicePinger {
	return &ServicePinger{probe: probe, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *ServicePinger) Name() string { return p.name }

// Ping delegates to the wrapped dependency.
func (p *ServicePinger) Ping(ctx context.Context) error {
	if err := p.probe.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// LLMPinger probes an LLM backend by sending a minimal generate request.
// Every probe consumes tokens, so it backs the `ragagent check` command
// rather than the readiness endpoint.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.BaseChatModel
	// name identifies the backend in probe results (e.g. "gemini").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.BaseChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a one-word prompt and expects a non-nil reply.
func (p *LLMPinger) Ping(ctx context.Context) error {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}
