package chatsync

import (
	"context"
	"strconv"
)

// ChatState is the destination-side lifecycle of a conversation, derived
// once per event from the resolver result.
type ChatState int

const (
	// ChatUnstarted: no destination chat exists for the conversation.
	ChatUnstarted ChatState = iota
	// ChatOpen: the chat exists and has no ended_at.
	ChatOpen
	// ChatClosed: the chat exists and carries an ended_at.
	ChatClosed
)

// ChatRef is the resolver's view of one conversation on the destination
// side. ChatID is empty iff State is ChatUnstarted.
type ChatRef struct {
	State  ChatState
	ChatID string
}

// Resolver translates source identifiers into destination identifiers.
// Conversation-to-chat mappings are memoized in the injected cache; cache
// hits never re-query the sink, so an out-of-band delete or re-create on the
// destination side will be served stale for the rest of the process.
type Resolver struct {
	source SourceClient
	sink   SinkClient
	cache  ChatCache
	logger Logger
}

func NewResolver(source SourceClient, sink SinkClient, cache ChatCache, logger Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryChatCache()
	}
	return &Resolver{source: source, sink: sink, cache: cache, logger: logger}
}

// ResolveChat resolves a conversation to its chat reference. An ambiguous
// lookup (more than one chat sharing the external ID) is treated as
// unstarted; the sink's uniqueness constraint means it should never happen,
// and this code never disambiguates. A cache hit reports ChatOpen: the cache
// carries no closed marker, and the sink accepts mutations on ended chats.
func (r *Resolver) ResolveChat(ctx context.Context, conversationID int64) (ChatRef, error) {
	if chatID, ok := r.cache.Lookup(conversationID); ok {
		return ChatRef{State: ChatOpen, ChatID: chatID}, nil
	}
	chats, err := r.sink.FindChatsByExternalID(ctx, strconv.FormatInt(conversationID, 10))
	if err != nil {
		return ChatRef{}, err
	}
	if len(chats) != 1 {
		return ChatRef{State: ChatUnstarted}, nil
	}
	chat := chats[0]
	r.cache.Insert(conversationID, chat.ChatID)
	state := ChatOpen
	if chat.EndedAt != nil {
		state = ChatClosed
	}
	return ChatRef{State: state, ChatID: chat.ChatID}, nil
}

// RememberChat seeds the cache with a mapping the caller just created, so a
// later event for the same conversation needs no external_id lookup.
func (r *Resolver) RememberChat(conversationID int64, chatID string) {
	r.cache.Insert(conversationID, chatID)
}

// ResolveOrCreateAgent maps a source advisor to a destination agent, creating
// the agent when the email lookup comes back empty. Two concurrent calls for
// the same advisor can both observe "not found" and both create; the sink's
// email uniqueness constraint is the only backstop.
func (r *Resolver) ResolveOrCreateAgent(ctx context.Context, advisorID int64) (string, error) {
	advisor, err := r.source.GetAdvisor(ctx, advisorID)
	if err != nil {
		return "", err
	}
	agents, err := r.sink.FindAgentsByEmail(ctx, advisor.EmailAddress)
	if err != nil {
		return "", err
	}
	if len(agents) > 0 {
		return agents[0].AgentID, nil
	}
	agent, err := r.sink.CreateAgent(ctx, CreateAgentRequest{Name: advisor.Name, Email: advisor.EmailAddress})
	if err != nil {
		return "", err
	}
	r.logf("created agent %s for advisor %d", agent.AgentID, advisorID)
	return agent.AgentID, nil
}

func (r *Resolver) logf(format string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
