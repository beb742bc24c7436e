package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aretw0/tollgate"
	"github.com/aretw0/tollgate/internal/presentation/graph"
	"github.com/aretw0/tollgate/internal/runtime"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Message is a turn flattened to the shape chat front-ends render.
type Message struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// ConversationState is the response body of every conversation endpoint.
type ConversationState struct {
	ConversationID       string            `json:"conversation_id"`
	Messages             []Message         `json:"messages"`
	IsWaitingForApproval bool              `json:"is_waiting_for_approval"`
	Next                 domain.StepID     `json:"next"`
	Pending              []domain.ToolCall `json:"pending,omitempty"`
	Version              int64             `json:"version"`
	Turns                []domain.Turn     `json:"turns"`
}

// MessageRequest is the body of the send, reject and legacy send endpoints.
type MessageRequest struct {
	Message string `json:"message"`
}

// CreateRequest optionally pins the id of a new conversation.
type CreateRequest struct {
	ID string `json:"id,omitempty"`
}

// CreateResponse carries the new id under both of its historical names.
type CreateResponse struct {
	ThreadID       string `json:"thread_id"`
	ConversationID string `json:"conversation_id"`
}

func newConversationState(snap *tollgate.Snapshot) ConversationState {
	turns := snap.Turns
	if turns == nil {
		turns = []domain.Turn{}
	}
	msgs := make([]Message, len(turns))
	for i, t := range turns {
		msgs[i] = Message{Content: t.Content, Type: messageType(t.Kind)}
	}
	return ConversationState{
		ConversationID:       snap.ConversationID,
		Messages:             msgs,
		IsWaitingForApproval: snap.Suspended,
		Next:                 snap.Next,
		Pending:              snap.Pending,
		Version:              snap.Version,
		Turns:                turns,
	}
}

func messageType(kind domain.TurnKind) string {
	switch kind {
	case domain.TurnHuman:
		return "human"
	case domain.TurnAgent:
		return "ai"
	default:
		return string(kind)
	}
}

// CreateConversation handles POST /conversations.
func (s *Server) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if err := decodeOptional(r, &body); err != nil {
		s.writeError(w, r, errBadBody(err))
		return
	}

	id := body.ID
	var err error
	if id == "" {
		id, err = s.Engine.Start(r.Context())
	} else {
		err = s.Engine.StartWithID(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, CreateResponse{ThreadID: id, ConversationID: id})
}

// ListConversations handles GET /conversations.
func (s *Server) ListConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"conversations": ids})
}

// GetConversation handles GET /conversations/{id}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.State(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, snap, err)
}

// DeleteConversation handles DELETE /conversations/{id}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage handles POST /conversations/{id}/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, errBadBody(err))
		return
	}
	snap, err := s.Engine.SendMessage(r.Context(), chi.URLParam(r, "id"), body.Message)
	s.respond(w, r, snap, err)
}

// Reject handles POST /conversations/{id}/reject.
func (s *Server) Reject(w http.ResponseWriter, r *http.Request) {
	var body MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, errBadBody(err))
		return
	}
	snap, err := s.Engine.Reject(r.Context(), chi.URLParam(r, "id"), body.Message)
	s.respond(w, r, snap, err)
}

// Approve handles POST /conversations/{id}/approve.
func (s *Server) Approve(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.Approve(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, snap, err)
}

// Resume handles POST /conversations/{id}/resume.
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.Resume(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, snap, err)
}

// GetGraph handles GET /graph. ?format=json returns the raw edge list.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	edges := runtime.Edges()
	if r.URL.Query().Get("format") == "json" {
		s.writeJSON(w, http.StatusOK, edges)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(edges, nil))
}

// GetConversationGraph handles GET /conversations/{id}/graph.
func (s *Server) GetConversationGraph(w http.ResponseWriter, r *http.Request) {
	cp, err := s.Engine.Checkpoint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(runtime.Edges(), graph.OverlayFor(cp)))
}

// ListTools handles GET /tools.
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	specs := s.Engine.Tools()
	if specs == nil {
		specs = []domain.ToolSpec{}
	}
	s.writeJSON(w, http.StatusOK, specs)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "tollgate-http",
		"version": strings.TrimSpace(tollgate.Version),
	})
}

// -- Helpers --

func (s *Server) respond(w http.ResponseWriter, r *http.Request, snap *tollgate.Snapshot, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newConversationState(snap))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// decodeOptional decodes a JSON body, treating an empty body as zero value.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
