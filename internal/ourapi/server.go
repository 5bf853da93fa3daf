package ourapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/agentworkforce/chatrelay/internal/httpapi"
)

const maxBodyBytes = 1 << 20

type Server struct {
	store   *Store
	logger  *log.Logger
	metrics *httpapi.Metrics
	schemas *requestSchemas
}

func NewServer(store *Store, logger *log.Logger) *Server {
	return &Server{
		store:   store,
		logger:  logger,
		metrics: httpapi.NewMetrics("ourapi"),
		schemas: compileRequestSchemas(),
	}
}

// Handler wraps the routes with request instrumentation.
func (s *Server) Handler() http.Handler {
	return s.metrics.Instrument(s)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := httpapi.SplitPath(r.URL.Path)
	switch {
	case len(parts) == 1 && parts[0] == "health" && r.Method == http.MethodGet:
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case len(parts) == 1 && parts[0] == "metrics" && r.Method == http.MethodGet:
		s.metrics.Handler().ServeHTTP(w, r)
	case len(parts) == 1 && parts[0] == "chats" && r.Method == http.MethodPost:
		s.handleCreateChat(w, r)
	case len(parts) == 1 && parts[0] == "chats" && r.Method == http.MethodGet:
		s.handleListChats(w, r)
	case len(parts) == 2 && parts[0] == "chats" && r.Method == http.MethodGet:
		s.handleGetChat(w, r, parts[1])
	case len(parts) == 2 && parts[0] == "chats" && r.Method == http.MethodPatch:
		s.handlePatchChat(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "chats" && parts[2] == "messages" && r.Method == http.MethodPost:
		s.handleCreateMessage(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "chats" && parts[2] == "messages" && r.Method == http.MethodGet:
		s.handleListMessages(w, r, parts[1])
	case len(parts) == 1 && parts[0] == "agents" && r.Method == http.MethodPost:
		s.handleCreateAgent(w, r)
	case len(parts) == 1 && parts[0] == "agents" && r.Method == http.MethodGet:
		s.handleListAgents(w, r)
	case len(parts) == 2 && parts[0] == "agents" && r.Method == http.MethodGet:
		s.handleGetAgent(w, r, parts[1])
	default:
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

type chatCreateBody struct {
	AgentID    *string    `json:"agent_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ExternalID string     `json:"external_id"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var body chatCreateBody
	if !s.decodeJSONBody(w, r, &body) {
		return
	}
	body.ExternalID = strings.TrimSpace(body.ExternalID)
	if err := validateAgainst(s.schemas.chatCreate, body); err != nil {
		s.writeStoreError(w, err)
		return
	}
	chat, err := s.store.CreateChat(r.Context(), ChatCreate{
		AgentID:    body.AgentID,
		StartedAt:  *body.StartedAt,
		EndedAt:    body.EndedAt,
		ExternalID: body.ExternalID,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Printf("created chat %s (external_id=%s)", chat.ChatID, chat.ExternalID)
	w.Header().Set("Location", "/chats/"+chat.ChatID)
	httpapi.WriteJSON(w, http.StatusCreated, chat)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListChats(r.Context(), r.URL.Query().Get("external_id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, chats)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request, chatID string) {
	chat, err := s.store.GetChat(r.Context(), chatID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, chat)
}

type chatUpdateBody struct {
	AgentID   *string    `json:"agent_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (s *Server) handlePatchChat(w http.ResponseWriter, r *http.Request, chatID string) {
	var body chatUpdateBody
	if !s.decodeJSONBody(w, r, &body) {
		return
	}
	if err := validateAgainst(s.schemas.chatUpdate, body); err != nil {
		s.writeStoreError(w, err)
		return
	}
	err := s.store.UpdateChat(r.Context(), chatID, ChatPatch{
		AgentID:   body.AgentID,
		StartedAt: body.StartedAt,
		EndedAt:   body.EndedAt,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageCreateBody struct {
	AgentID *string    `json:"agent_id,omitempty"`
	SentAt  *time.Time `json:"sent_at,omitempty"`
	Text    string     `json:"text"`
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request, chatID string) {
	var body messageCreateBody
	if !s.decodeJSONBody(w, r, &body) {
		return
	}
	body.Text = strings.TrimSpace(body.Text)
	if err := validateAgainst(s.schemas.messageCreate, body); err != nil {
		s.writeStoreError(w, err)
		return
	}
	message, err := s.store.CreateMessage(r.Context(), chatID, MessageCreate{
		AgentID: body.AgentID,
		SentAt:  *body.SentAt,
		Text:    body.Text,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Printf("created message %s for chat %s", message.MessageID, chatID)

	// The original contract answers a message create with the parent chat
	// representation.
	chat, err := s.store.GetChat(r.Context(), chatID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, chat)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, chatID string) {
	messages, err := s.store.ListMessages(r.Context(), chatID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, messages)
}

type agentCreateBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var body agentCreateBody
	if !s.decodeJSONBody(w, r, &body) {
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	if err := validateAgainst(s.schemas.agentCreate, body); err != nil {
		s.writeStoreError(w, err)
		return
	}
	agent, err := s.store.CreateAgent(r.Context(), body.Name, body.Email)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Printf("created agent %s (%s)", agent.AgentID, agent.Email)
	w.Header().Set("Location", "/agents/"+agent.AgentID)
	httpapi.WriteJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.Context(), r.URL.Query().Get("name"), r.URL.Query().Get("email"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request, agentID string) {
	agent, err := s.store.GetAgent(r.Context(), agentID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, agent)
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid json body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrUnknownAgent):
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ErrConflict):
		httpapi.WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		s.logger.Printf("internal error: %v", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
