package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/ragagent-go/internal/corpus"
	"github.com/54b3r/ragagent-go/internal/logging"
	"github.com/54b3r/ragagent-go/internal/store"
	"github.com/54b3r/ragagent-go/internal/version"
)

// sessionCookie holds the conversation ID.
const sessionCookie = "ragagent_session"

// Tool names invoked by the corpus endpoints.
const (
	toolListCorpora  = "list_corpora"
	toolCreateCorpus = "create_corpus"
	toolAddData      = "add_data"
)

// sessionID returns the conversation ID carried by r, or "" when the request
// has no valid session cookie.
func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// session returns the caller's session, issuing a new cookie when the
// request carries none.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *corpus.Session {
	id := sessionID(r)
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s.sessions.LoadOrCreate(id)
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:         "success",
		Message:        "System ready",
		AgentLoaded:    s.querier != nil,
		ToolCount:      len(s.tools),
		Backend:        s.cfg.Backend,
		ActiveSessions: s.sessions.Len(),
		Version:        version.Version,
	}
	if !resp.AgentLoaded {
		resp.Status = "error"
		resp.Message = "RAG agent not available"
	}
	if id := sessionID(r); id != "" {
		if sess, ok := s.sessions.Get(id); ok {
			resp.CurrentCorpus, _ = sess.CurrentCorpus()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory handles GET /api/conversation-history. It returns at most the
// last store.DefaultHistoryLimit messages of the caller's session.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp := historyResponse{Status: "success", History: []historyEntry{}}

	id := sessionID(r)
	if id == "" || s.history == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	msgs, err := s.history.Recent(r.Context(), id, store.DefaultHistoryLimit)
	if err != nil {
		logging.FromContext(r.Context()).Error("history: load failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "failed to load history"})
		return
	}
	for _, m := range msgs {
		resp.History = append(resp.History, historyEntry{
			Role:      string(m.Role),
			Message:   m.Content,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleClear handles POST /api/clear-conversation. The session's corpus
// state survives; only the message history is dropped.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" && s.history != nil {
		if err := s.history.Clear(r.Context(), id); err != nil {
			logging.FromContext(r.Context()).Error("history: clear failed", slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "failed to clear conversation"})
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Conversation cleared"})
}

// handleCorpusList handles GET /api/corpus/list.
func (s *Server) handleCorpusList(w http.ResponseWriter, r *http.Request) {
	s.runTool(w, r, toolListCorpora, map[string]any{})
}

// handleCorpusCreate handles POST /api/corpus/create.
func (s *Server) handleCorpusCreate(w http.ResponseWriter, r *http.Request) {
	var req createCorpusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "invalid request body"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "corpus name is required"})
		return
	}
	s.runTool(w, r, toolCreateCorpus, map[string]any{
		"corpus_name": req.Name,
		"description": req.Description,
	})
}

// handleAddDocument handles POST /api/corpus/add-document.
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "invalid request body"})
		return
	}
	req.CorpusName = strings.TrimSpace(req.CorpusName)
	req.DocumentURL = strings.TrimSpace(req.DocumentURL)
	if req.CorpusName == "" || req.DocumentURL == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "corpus name and document URL are required"})
		return
	}
	s.runTool(w, r, toolAddData, map[string]any{
		"corpus_name": req.CorpusName,
		"paths":       []string{req.DocumentURL},
	})
}

// runTool invokes the named tool inside the caller's session and relays its
// JSON result. Tool-level errors keep HTTP 200 and surface through the
// result's own status field.
func (s *Server) runTool(w http.ResponseWriter, r *http.Request, name string, args map[string]any) {
	r = r.WithContext(logging.With(r.Context(), slog.String("tool", name)))
	log := logging.FromContext(r.Context())

	t, ok := s.tools[name]
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, envelope{Status: "error", Message: name + " is not available"})
		return
	}

	in, err := json.Marshal(args)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: err.Error()})
		return
	}

	sess := s.session(w, r)
	ctx := corpus.WithSession(r.Context(), sess)
	out, err := t.InvokableRun(ctx, string(in))
	if err != nil {
		s.metrics.observeTool(name, "failed")
		log.Error("tool call failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: err.Error()})
		return
	}

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		s.metrics.observeTool(name, "failed")
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "malformed tool result"})
		return
	}
	s.metrics.observeTool(name, result.Status)
	writeJSON(w, http.StatusOK, envelope{
		Status:    result.Status,
		Message:   result.Message,
		SessionID: sess.ID,
		Result:    json.RawMessage(out),
	})
}
