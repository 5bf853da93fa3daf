// Package ourapi is the destination sink: a CRUD service for chats, agents,
// and messages backed by a relational store with uniqueness constraints.
package ourapi

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnknownAgent = errors.New("that agent does not exist")
	ErrInvalidInput = errors.New("invalid input")
)

type Agent struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

type Chat struct {
	ChatID     string     `json:"chat_id"`
	AgentID    *string    `json:"agent_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	ExternalID string     `json:"external_id"`
}

type Message struct {
	MessageID string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	AgentID   *string   `json:"agent_id"`
	SentAt    time.Time `json:"sent_at"`
	Text      string    `json:"text"`
}

type ChatCreate struct {
	AgentID    *string
	StartedAt  time.Time
	EndedAt    *time.Time
	ExternalID string
}

// ChatPatch is a partial update; nil fields are left untouched.
type ChatPatch struct {
	AgentID   *string
	StartedAt *time.Time
	EndedAt   *time.Time
}

type MessageCreate struct {
	AgentID *string
	SentAt  time.Time
	Text    string
}
