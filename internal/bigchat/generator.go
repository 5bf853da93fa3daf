// Package bigchat is the synthetic source: a fake chat platform that invents
// conversation lifecycle events and serves them through a paginated feed.
package bigchat

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

type Advisor struct {
	AdvisorID    int64  `json:"advisor_id"`
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
}

type Event struct {
	ConversationID int64          `json:"conversation_id"`
	EventName      string         `json:"event_name"`
	EventAt        int64          `json:"event_at"`
	Data           map[string]any `json:"data,omitempty"`
}

type Conversation struct {
	Events         []Event `json:"events"`
	ConversationID int64   `json:"conversation_id"`
	AdvisorID      int64   `json:"advisor_id"`
}

const (
	eventStart    = "START"
	eventEnd      = "END"
	eventMessage  = "MESSAGE"
	eventTransfer = "TRANSFER"
)

const (
	advisorCount          = 10
	maxEventsPerChat      = 20
	endChancePct          = 20
	transferChancePct     = 20
	messageChancePct      = 70
	continuationChancePct = 20
)

var firstNames = []string{
	"Oliver", "Amelia", "George", "Isla", "Noah", "Ava", "Arthur", "Freya",
	"Leo", "Ivy", "Oscar", "Willow", "Harry", "Grace", "Archie", "Daisy",
}

var lastNames = []string{
	"Smith", "Jones", "Taylor", "Brown", "Williams", "Wilson", "Johnson",
	"Davies", "Patel", "Wright", "Evans", "Thomas", "Walker", "Roberts",
}

var sentenceWords = []string{
	"hello", "thanks", "order", "refund", "delivery", "account", "update",
	"please", "waiting", "confirm", "issue", "resolved", "payment", "card",
	"parcel", "address", "tomorrow", "sorry", "help", "details",
}

// Generator holds the fake platform's mutable world: advisors, conversations,
// and their event histories. All randomness flows through one seeded source
// so tests can pin it down.
type Generator struct {
	mu            sync.Mutex
	rng           *rand.Rand
	advisors      map[int64]Advisor
	conversations map[int64]*Conversation
}

func NewGenerator(seed int64) *Generator {
	g := &Generator{
		rng:           rand.New(rand.NewSource(seed)),
		advisors:      map[int64]Advisor{},
		conversations: map[int64]*Conversation{},
	}
	for i := int64(1); i <= advisorCount; i++ {
		name := g.randomName()
		g.advisors[i] = Advisor{
			AdvisorID:    i,
			Name:         name,
			EmailAddress: strings.ToLower(strings.ReplaceAll(name, " ", "_")) + "@company.com",
		}
	}
	g.conversations[1] = &Conversation{
		ConversationID: 1,
		AdvisorID:      1,
		Events: []Event{{
			ConversationID: 1,
			EventName:      eventStart,
			EventAt:        time.Now().Unix(),
		}},
	}
	return g
}

// Tick advances every active conversation at most one event and maybe opens
// a new conversation, returning the batch. The same window polled twice
// yields different events; the feed makes no idempotency promises.
func (g *Generator) Tick(startAt, endAt time.Time) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	events := []Event{}
	for _, conversation := range g.conversations {
		if hasEvent(conversation, eventEnd) {
			continue
		}
		var event *Event
		switch {
		case g.chanceLocked(endChancePct) || len(conversation.Events) > maxEventsPerChat:
			event = &Event{
				ConversationID: conversation.ConversationID,
				EventName:      eventEnd,
				EventAt:        g.timestampBetweenLocked(startAt, endAt),
			}
		case conversation.AdvisorID != 0 && g.chanceLocked(transferChancePct) && !hasEvent(conversation, eventTransfer):
			newAdvisor := g.randomAdvisorLocked(conversation.AdvisorID)
			event = &Event{
				ConversationID: conversation.ConversationID,
				EventName:      eventTransfer,
				EventAt:        g.timestampBetweenLocked(startAt, endAt),
				Data: map[string]any{
					"old_advisor_id": conversation.AdvisorID,
					"new_advisor_id": newAdvisor,
				},
			}
		case g.chanceLocked(messageChancePct):
			event = &Event{
				ConversationID: conversation.ConversationID,
				EventName:      eventMessage,
				EventAt:        g.timestampBetweenLocked(startAt, endAt),
				Data:           map[string]any{"message": g.sentenceLocked()},
			}
		}
		if event != nil {
			conversation.Events = append(conversation.Events, *event)
			events = append(events, *event)
		}
	}

	if g.rng.Intn(2) == 1 {
		conversationID := int64(len(g.conversations) + 1)
		conversation := &Conversation{
			ConversationID: conversationID,
			AdvisorID:      g.randomAdvisorLocked(0),
			Events: []Event{{
				ConversationID: conversationID,
				EventName:      eventStart,
				EventAt:        time.Now().Unix(),
			}},
		}
		g.conversations[conversationID] = conversation
		events = append(events, conversation.Events...)
	}
	return events
}

// Continue reports whether the feed should hand out another page.
func (g *Generator) Continue() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chanceLocked(continuationChancePct)
}

func (g *Generator) Conversation(conversationID int64) (Conversation, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	conversation, ok := g.conversations[conversationID]
	if !ok {
		return Conversation{}, false
	}
	snapshot := *conversation
	snapshot.Events = append([]Event(nil), conversation.Events...)
	return snapshot, true
}

func (g *Generator) Advisor(advisorID int64) (Advisor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	advisor, ok := g.advisors[advisorID]
	return advisor, ok
}

func hasEvent(conversation *Conversation, eventName string) bool {
	for _, event := range conversation.Events {
		if strings.EqualFold(event.EventName, eventName) {
			return true
		}
	}
	return false
}

func (g *Generator) chanceLocked(pct int) bool {
	return g.rng.Intn(100) < pct
}

func (g *Generator) timestampBetweenLocked(startAt, endAt time.Time) int64 {
	start := startAt.Unix()
	end := endAt.Unix()
	if end <= start {
		return start
	}
	return start + g.rng.Int63n(end-start+1)
}

func (g *Generator) randomAdvisorLocked(exclude int64) int64 {
	for {
		advisorID := int64(g.rng.Intn(advisorCount) + 1)
		if advisorID != exclude {
			return advisorID
		}
	}
}

func (g *Generator) randomName() string {
	return firstNames[g.rng.Intn(len(firstNames))] + " " + lastNames[g.rng.Intn(len(lastNames))]
}

func (g *Generator) sentenceLocked() string {
	count := 4 + g.rng.Intn(5)
	words := make([]string, count)
	for i := range words {
		words[i] = sentenceWords[g.rng.Intn(len(sentenceWords))]
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ") + "."
}
