// Package agent wires together the Eino ReAct agent with the corpus tools to
// form the core RAG assistant. The agent handles the full ReAct loop: it
// decides when to list, create or query corpora, when to import documents,
// and when to respond directly.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragagent-go/internal/budget"
	"github.com/54b3r/ragagent-go/internal/corpus"
	"github.com/54b3r/ragagent-go/internal/logging"
	"github.com/54b3r/ragagent-go/internal/store"
)

// Name is the agent name reported by the CLI and status endpoint.
const Name = "RagAgent"

// Config holds the dependencies required to construct a RAGAgent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the list of corpus tools available to the agent.
	Tools []tool.BaseTool

	// History is the optional conversation store used to persist and replay
	// prior turns. If nil, each query is stateless.
	History store.ConversationStore
	// HistoryDepth is the number of prior turns (user+assistant pairs) to
	// inject per query. Defaults to 10 if zero.
	HistoryDepth int
	// HistoryLimit is the number of messages kept per session after each
	// turn. Defaults to store.DefaultHistoryLimit.
	HistoryLimit int
	// MaxContextTokens is the estimated token budget for the full input context
	// (system prompt + history + user message). History is trimmed
	// oldest-first to fit. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
	// MaxSteps bounds the number of ReAct iterations per query. Defaults to 12.
	MaxSteps int
}

// RAGAgent wraps the Eino ReAct agent with per-session state and history.
type RAGAgent struct {
	// reactAgent is the underlying Eino ReAct loop agent.
	reactAgent *react.Agent

	// toolCount is the number of registered tools.
	toolCount int

	// history is the optional conversation store for multi-turn context.
	history store.ConversationStore

	// historyDepth is the number of recent messages to inject per query.
	historyDepth int

	// historyLimit is the number of messages retained per session.
	historyLimit int

	// maxContextTokens is the estimated token budget for the full input context.
	maxContextTokens int
}

// New constructs a RAGAgent from the provided Config.
func New(ctx context.Context, cfg *Config) (*RAGAgent, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}

	steps := cfg.MaxSteps
	if steps <= 0 {
		steps = 12
	}

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
		MaxStep: steps,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	depth := cfg.HistoryDepth
	if depth <= 0 {
		depth = 10
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = store.DefaultHistoryLimit
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &RAGAgent{
		reactAgent:       reactAgent,
		toolCount:        len(cfg.Tools),
		history:          cfg.History,
		historyDepth:     depth,
		historyLimit:     limit,
		maxContextTokens: maxCtx,
	}, nil
}

// ToolCount returns the number of tools registered with the agent.
func (a *RAGAgent) ToolCount() int {
	return a.toolCount
}

// Query sends a user message to the agent and streams the response to w.
// The session travels to the tools through the context, so the current
// corpus and existence memo are per conversation. If a conversation store is
// configured, prior turns of the session are injected and the new turn is
// persisted after completion. The full response text is returned.
func (a *RAGAgent) Query(ctx context.Context, sess *corpus.Session, userMessage string, w io.Writer) (string, error) {
	if sess == nil {
		sess = corpus.NewSession("")
	}
	ctx = corpus.WithSession(ctx, sess)
	if sess.ID != "" {
		ctx = logging.With(ctx, slog.String("session_id", sess.ID))
	}
	log := logging.FromContext(ctx)

	messages := a.buildMessages(ctx, sess.ID, userMessage)

	sr, err := a.reactAgent.Stream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent: stream failed: %w", err)
	}
	defer sr.Close()

	var msgBuf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return msgBuf.String(), fmt.Errorf("agent: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		msgBuf.WriteString(msg.Content)
		if w != nil {
			if _, err := io.WriteString(w, msg.Content); err != nil {
				return msgBuf.String(), fmt.Errorf("agent: write error: %w", err)
			}
		}
	}

	response := msgBuf.String()

	// Persist the turn to the conversation store (non-fatal on error).
	if a.history != nil && sess.ID != "" {
		if err := a.history.Append(ctx, sess.ID, store.RoleUser, userMessage); err != nil {
			log.Warn("history: failed to persist user message", slog.Any("error", err))
		}
		if err := a.history.Append(ctx, sess.ID, store.RoleAssistant, response); err != nil {
			log.Warn("history: failed to persist assistant message", slog.Any("error", err))
		}
		if err := a.history.Prune(ctx, sess.ID, a.historyLimit); err != nil {
			log.Warn("history: failed to prune conversation", slog.Any("error", err))
		}
	}

	return response, nil
}

// buildMessages constructs the message slice for the agent: the system
// prompt, the session's recent history trimmed to the token budget, and the
// user message.
func (a *RAGAgent) buildMessages(ctx context.Context, sessionID, userMessage string) []*schema.Message {
	log := logging.FromContext(ctx)
	system := schema.SystemMessage(systemPrompt)

	var historyMsgs []*schema.Message
	if a.history != nil && sessionID != "" {
		prior, err := a.history.Recent(ctx, sessionID, a.historyDepth*2)
		if err != nil {
			log.Warn("history: failed to load prior messages", slog.Any("error", err))
		} else {
			for _, m := range prior {
				switch m.Role {
				case store.RoleUser:
					historyMsgs = append(historyMsgs, schema.UserMessage(m.Content))
				case store.RoleAssistant:
					historyMsgs = append(historyMsgs, schema.AssistantMessage(m.Content, nil))
				}
			}
		}
	}

	user := schema.UserMessage(userMessage)
	fixed := []*schema.Message{system, user}

	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		log.Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	result := make([]*schema.Message, 0, len(historyMsgs)+2)
	result = append(result, system)
	result = append(result, historyMsgs...)
	result = append(result, user)
	return result
}
