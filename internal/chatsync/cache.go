package chatsync

import "sync"

// ChatCache maps source conversation IDs to destination chat IDs. Entries
// are never expired within a process lifetime; a multi-instance deployment
// should back this with a shared store instead.
type ChatCache interface {
	Lookup(conversationID int64) (string, bool)
	Insert(conversationID int64, chatID string)
	Clear()
}

type memoryChatCache struct {
	mu    sync.Mutex
	chats map[int64]string
}

// NewMemoryChatCache returns the default in-process cache.
func NewMemoryChatCache() ChatCache {
	return &memoryChatCache{chats: map[int64]string{}}
}

func (c *memoryChatCache) Lookup(conversationID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chatID, ok := c.chats[conversationID]
	return chatID, ok
}

func (c *memoryChatCache) Insert(conversationID int64, chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats[conversationID] = chatID
}

func (c *memoryChatCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = map[int64]string{}
}
