package chatsync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Chat struct {
	ChatID     string     `json:"chat_id"`
	ExternalID string     `json:"external_id"`
	AgentID    *string    `json:"agent_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
}

type Agent struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

type CreateChatRequest struct {
	ExternalID string    `json:"external_id"`
	StartedAt  time.Time `json:"started_at"`
	AgentID    *string   `json:"agent_id,omitempty"`
}

// UpdateChatRequest is a partial update; nil fields are left untouched by
// the sink.
type UpdateChatRequest struct {
	AgentID   *string    `json:"agent_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type CreateMessageRequest struct {
	SentAt  time.Time `json:"sent_at"`
	Text    string    `json:"text"`
	AgentID *string   `json:"agent_id,omitempty"`
}

type CreateAgentRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SinkClient writes replayed mutations to the destination store and performs
// the lookups the resolver needs to correlate the two systems.
type SinkClient interface {
	FindChatsByExternalID(ctx context.Context, externalID string) ([]Chat, error)
	CreateChat(ctx context.Context, req CreateChatRequest) (Chat, error)
	UpdateChat(ctx context.Context, chatID string, req UpdateChatRequest) error
	CreateMessage(ctx context.Context, chatID string, req CreateMessageRequest) error
	FindAgentsByEmail(ctx context.Context, email string) ([]Agent, error)
	CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error)
}

type HTTPSink struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSink(baseURL string, httpClient *http.Client) *HTTPSink {
	return &HTTPSink{
		baseURL:    normalizeBaseURL(baseURL, "http://127.0.0.1:8266"),
		httpClient: orDefaultClient(httpClient),
	}
}

func (c *HTTPSink) FindChatsByExternalID(ctx context.Context, externalID string) ([]Chat, error) {
	q := url.Values{}
	q.Set("external_id", externalID)
	var chats []Chat
	err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/chats?"+q.Encode(), nil, &chats)
	return chats, err
}

func (c *HTTPSink) CreateChat(ctx context.Context, req CreateChatRequest) (Chat, error) {
	var chat Chat
	err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/chats", req, &chat)
	return chat, err
}

func (c *HTTPSink) UpdateChat(ctx context.Context, chatID string, req UpdateChatRequest) error {
	return doJSON(ctx, c.httpClient, http.MethodPatch, c.baseURL+"/chats/"+url.PathEscape(chatID), req, nil)
}

func (c *HTTPSink) CreateMessage(ctx context.Context, chatID string, req CreateMessageRequest) error {
	return doJSON(ctx, c.httpClient, http.MethodPost, fmt.Sprintf("%s/chats/%s/messages", c.baseURL, url.PathEscape(chatID)), req, nil)
}

func (c *HTTPSink) FindAgentsByEmail(ctx context.Context, email string) ([]Agent, error) {
	q := url.Values{}
	q.Set("email", email)
	var agents []Agent
	err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/agents?"+q.Encode(), nil, &agents)
	return agents, err
}

func (c *HTTPSink) CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error) {
	var agent Agent
	err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/agents", req, &agent)
	return agent, err
}
