// Package chatsync replays the Big Chat event feed against the destination
// chat store: it polls the paginated feed, resolves source identifiers to
// destination identifiers, and performs one mutation per event.
package chatsync

import (
	"encoding/json"
	"fmt"
)

// EventKind is the closed set of feed event kinds. The feed itself is
// forward-evolving, so names outside this set decode to KindUnknown and are
// skipped rather than failing the batch.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindStart
	KindEnd
	KindMessage
	KindTransfer
)

const (
	eventNameStart    = "START"
	eventNameEnd      = "END"
	eventNameMessage  = "MESSAGE"
	eventNameTransfer = "TRANSFER"
)

func ParseEventKind(name string) EventKind {
	switch name {
	case eventNameStart:
		return KindStart
	case eventNameEnd:
		return KindEnd
	case eventNameMessage:
		return KindMessage
	case eventNameTransfer:
		return KindTransfer
	default:
		return KindUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case KindStart:
		return eventNameStart
	case KindEnd:
		return eventNameEnd
	case KindMessage:
		return eventNameMessage
	case KindTransfer:
		return eventNameTransfer
	default:
		return "UNKNOWN"
	}
}

type MessagePayload struct {
	Message string `json:"message"`
}

type TransferPayload struct {
	OldAdvisorID int64 `json:"old_advisor_id"`
	NewAdvisorID int64 `json:"new_advisor_id"`
}

// Event is one unit of the source feed. OccurredAt is the source-side Unix
// timestamp; every replayed mutation carries it instead of processing time,
// so out-of-order arrival across pages does not corrupt chat timestamps.
type Event struct {
	ConversationID int64
	Kind           EventKind
	RawName        string
	OccurredAt     int64
	Message        *MessagePayload
	Transfer       *TransferPayload
}

type eventWire struct {
	ConversationID int64           `json:"conversation_id"`
	EventName      string          `json:"event_name"`
	EventAt        int64           `json:"event_at"`
	Data           json.RawMessage `json:"data"`
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	decoded := Event{
		ConversationID: wire.ConversationID,
		Kind:           ParseEventKind(wire.EventName),
		RawName:        wire.EventName,
		OccurredAt:     wire.EventAt,
	}
	if len(wire.Data) > 0 {
		switch decoded.Kind {
		case KindMessage:
			var payload MessagePayload
			if err := json.Unmarshal(wire.Data, &payload); err != nil {
				return fmt.Errorf("decode MESSAGE payload: %w", err)
			}
			decoded.Message = &payload
		case KindTransfer:
			var payload TransferPayload
			if err := json.Unmarshal(wire.Data, &payload); err != nil {
				return fmt.Errorf("decode TRANSFER payload: %w", err)
			}
			decoded.Transfer = &payload
		}
	}
	*e = decoded
	return nil
}

// EventPage is one page of the feed. NextPageURL is an opaque absolute URL
// to fetch verbatim, or nil when the feed is exhausted.
type EventPage struct {
	Events      []Event `json:"events"`
	NextPageURL *string `json:"nextPageUrl"`
}
