package ourapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// Timestamps are stored as RFC3339 text so the same statements run on both
// drivers.
const timestampLayout = time.RFC3339Nano

type StoreConfig struct {
	// Driver is "sqlite" (modernc, default) or "postgres" (lib/pq).
	Driver string
	DSN    string
}

// Store is the relational backing for the sink. Uniqueness of chat
// external_id and agent name/email is enforced by the schema, not by the
// callers.
type Store struct {
	db     *sql.DB
	driver string
}

func OpenStore(cfg StoreConfig) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = driverSQLite
	}
	dsn := strings.TrimSpace(cfg.DSN)
	switch driver {
	case driverSQLite:
		if dsn == "" {
			dsn = "ourapi.db"
		}
	case driverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("%w: postgres driver requires a dsn", ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", ErrInvalidInput, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, driver: driver}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	statements := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS chats (
			chat_id TEXT PRIMARY KEY,
			agent_id TEXT REFERENCES agents (agent_id),
			started_at TEXT NOT NULL,
			ended_at TEXT,
			external_id TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			chat_id TEXT REFERENCES chats (chat_id),
			agent_id TEXT REFERENCES agents (agent_id),
			sent_at TEXT NOT NULL,
			text TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind converts ? placeholders to the $N form lib/pq expects.
func (s *Store) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func (s *Store) agentExists(ctx context.Context, agentID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM agents WHERE agent_id = ?`), agentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) requireAgent(ctx context.Context, agentID *string) error {
	if agentID == nil {
		return nil
	}
	exists, err := s.agentExists(ctx, *agentID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUnknownAgent
	}
	return nil
}

func (s *Store) CreateAgent(ctx context.Context, name, email string) (Agent, error) {
	agent := Agent{AgentID: uuid.NewString(), Name: name, Email: email}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO agents (agent_id, name, email) VALUES (?, ?, ?)`),
		agent.AgentID, agent.Name, agent.Email,
	)
	if isUniqueViolation(err) {
		return Agent{}, fmt.Errorf("%w: an agent with that name or email already exists", ErrConflict)
	}
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

func (s *Store) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var agent Agent
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT agent_id, name, email FROM agents WHERE agent_id = ?`), agentID,
	).Scan(&agent.AgentID, &agent.Name, &agent.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

func (s *Store) ListAgents(ctx context.Context, name, email string) ([]Agent, error) {
	query := `SELECT agent_id, name, email FROM agents`
	clauses := []string{}
	args := []any{}
	if email != "" {
		clauses = append(clauses, "email = ?")
		args = append(args, email)
	}
	if name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, name)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := []Agent{}
	for rows.Next() {
		var agent Agent
		if err := rows.Scan(&agent.AgentID, &agent.Name, &agent.Email); err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (s *Store) CreateChat(ctx context.Context, data ChatCreate) (Chat, error) {
	if err := s.requireAgent(ctx, data.AgentID); err != nil {
		return Chat{}, err
	}
	chat := Chat{
		ChatID:     uuid.NewString(),
		AgentID:    data.AgentID,
		StartedAt:  data.StartedAt.UTC(),
		EndedAt:    data.EndedAt,
		ExternalID: data.ExternalID,
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO chats (chat_id, agent_id, started_at, ended_at, external_id) VALUES (?, ?, ?, ?, ?)`),
		chat.ChatID, nullableString(chat.AgentID), formatTime(chat.StartedAt), nullableTime(chat.EndedAt), chat.ExternalID,
	)
	if isUniqueViolation(err) {
		return Chat{}, fmt.Errorf("%w: a chat with that external ID already exists", ErrConflict)
	}
	if err != nil {
		return Chat{}, err
	}
	return chat, nil
}

func (s *Store) GetChat(ctx context.Context, chatID string) (Chat, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT chat_id, agent_id, started_at, ended_at, external_id FROM chats WHERE chat_id = ?`), chatID,
	)
	chat, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	return chat, err
}

func (s *Store) ListChats(ctx context.Context, externalID string) ([]Chat, error) {
	query := `SELECT chat_id, agent_id, started_at, ended_at, external_id FROM chats`
	args := []any{}
	if externalID != "" {
		query += " WHERE external_id = ?"
		args = append(args, externalID)
	}
	query += " ORDER BY started_at"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *Store) UpdateChat(ctx context.Context, chatID string, patch ChatPatch) error {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return err
	}
	if err := s.requireAgent(ctx, patch.AgentID); err != nil {
		return err
	}
	sets := []string{}
	args := []any{}
	if patch.AgentID != nil {
		sets = append(sets, "agent_id = ?")
		args = append(args, *patch.AgentID)
	}
	if patch.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, formatTime(*patch.StartedAt))
	}
	if patch.EndedAt != nil {
		sets = append(sets, "ended_at = ?")
		args = append(args, formatTime(*patch.EndedAt))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, chatID)
	query := "UPDATE chats SET " + strings.Join(sets, ", ") + " WHERE chat_id = ?"
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

func (s *Store) CreateMessage(ctx context.Context, chatID string, data MessageCreate) (Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return Message{}, err
	}
	if err := s.requireAgent(ctx, data.AgentID); err != nil {
		return Message{}, err
	}
	message := Message{
		MessageID: uuid.NewString(),
		ChatID:    chatID,
		AgentID:   data.AgentID,
		SentAt:    data.SentAt.UTC(),
		Text:      data.Text,
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO messages (message_id, chat_id, agent_id, sent_at, text) VALUES (?, ?, ?, ?, ?)`),
		message.MessageID, message.ChatID, nullableString(message.AgentID), formatTime(message.SentAt), message.Text,
	)
	if err != nil {
		return Message{}, err
	}
	return message, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT message_id, chat_id, agent_id, sent_at, text FROM messages WHERE chat_id = ? ORDER BY sent_at`), chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			message Message
			agentID sql.NullString
			sentAt  string
		)
		if err := rows.Scan(&message.MessageID, &message.ChatID, &agentID, &sentAt, &message.Text); err != nil {
			return nil, err
		}
		if agentID.Valid {
			message.AgentID = &agentID.String
		}
		message.SentAt, err = parseTime(sentAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (Chat, error) {
	var (
		chat    Chat
		agentID sql.NullString
		started string
		ended   sql.NullString
	)
	if err := row.Scan(&chat.ChatID, &agentID, &started, &ended, &chat.ExternalID); err != nil {
		return Chat{}, err
	}
	if agentID.Valid {
		chat.AgentID = &agentID.String
	}
	startedAt, err := parseTime(started)
	if err != nil {
		return Chat{}, err
	}
	chat.StartedAt = startedAt
	if ended.Valid {
		endedAt, err := parseTime(ended.String)
		if err != nil {
			return Chat{}, err
		}
		chat.EndedAt = &endedAt
	}
	return chat, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(timestampLayout, raw)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
