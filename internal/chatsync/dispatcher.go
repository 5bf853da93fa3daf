package chatsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Logger interface {
	Printf(format string, args ...any)
}

// Dispatcher replays a batch of feed events against the sink, strictly in
// feed order. A missing chat on END/MESSAGE/TRANSFER is logged and skipped;
// any other sink or source failure aborts the batch.
type Dispatcher struct {
	source   SourceClient
	sink     SinkClient
	resolver *Resolver
	logger   Logger
	metrics  *Metrics
}

func NewDispatcher(source SourceClient, sink SinkClient, resolver *Resolver, logger Logger, metrics *Metrics) *Dispatcher {
	if resolver == nil {
		resolver = NewResolver(source, sink, nil, logger)
	}
	return &Dispatcher{
		source:   source,
		sink:     sink,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Process tallies the batch for observability and then dispatches each event
// in sequence.
func (d *Dispatcher) Process(ctx context.Context, events []Event) error {
	d.logf("found the following events: %s", tally(events))

	for _, event := range events {
		d.metrics.eventSeen(event.Kind)
		if err := d.dispatch(ctx, event); err != nil {
			return fmt.Errorf("replay %s for conversation %d: %w", event.Kind, event.ConversationID, err)
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event Event) error {
	switch event.Kind {
	case KindStart:
		return d.startChat(ctx, event)
	case KindEnd:
		return d.endChat(ctx, event)
	case KindMessage:
		return d.createMessage(ctx, event)
	case KindTransfer:
		return d.transferChat(ctx, event)
	case KindUnknown:
		d.logf("skipping unrecognized event %q for conversation %d", event.RawName, event.ConversationID)
		return nil
	default:
		return nil
	}
}

func (d *Dispatcher) startChat(ctx context.Context, event Event) error {
	conversation, err := d.source.GetConversation(ctx, event.ConversationID)
	if err != nil {
		return err
	}
	agentID, err := d.resolver.ResolveOrCreateAgent(ctx, conversation.AdvisorID)
	if err != nil {
		return err
	}
	chat, err := d.sink.CreateChat(ctx, CreateChatRequest{
		ExternalID: strconv.FormatInt(event.ConversationID, 10),
		StartedAt:  time.Unix(event.OccurredAt, 0).UTC(),
		AgentID:    &agentID,
	})
	if err != nil {
		return err
	}
	d.resolver.RememberChat(event.ConversationID, chat.ChatID)
	d.logf("START created chat %s", chat.ChatID)
	return nil
}

// Replay transition table for END/MESSAGE/TRANSFER:
//
//	ChatUnstarted -> log and skip, processing continues
//	ChatOpen      -> perform the mutation
//	ChatClosed    -> perform the mutation; the sink accepts writes on ended
//	                 chats and the feed may deliver stragglers after an END
func (d *Dispatcher) endChat(ctx context.Context, event Event) error {
	ref, err := d.resolver.ResolveChat(ctx, event.ConversationID)
	if err != nil {
		return err
	}
	switch ref.State {
	case ChatUnstarted:
		d.skipMissingChat(event)
		return nil
	case ChatOpen, ChatClosed:
	}
	endedAt := time.Unix(event.OccurredAt, 0).UTC()
	if err := d.sink.UpdateChat(ctx, ref.ChatID, UpdateChatRequest{EndedAt: &endedAt}); err != nil {
		return err
	}
	d.logf("END ended chat %s", ref.ChatID)
	return nil
}

func (d *Dispatcher) createMessage(ctx context.Context, event Event) error {
	ref, err := d.resolver.ResolveChat(ctx, event.ConversationID)
	if err != nil {
		return err
	}
	switch ref.State {
	case ChatUnstarted:
		d.skipMissingChat(event)
		return nil
	case ChatOpen, ChatClosed:
	}
	text := ""
	if event.Message != nil {
		text = event.Message.Message
	}
	if err := d.sink.CreateMessage(ctx, ref.ChatID, CreateMessageRequest{
		SentAt: time.Unix(event.OccurredAt, 0).UTC(),
		Text:   text,
	}); err != nil {
		return err
	}
	d.logf("MESSAGE created message for chat %s", ref.ChatID)
	return nil
}

func (d *Dispatcher) transferChat(ctx context.Context, event Event) error {
	ref, err := d.resolver.ResolveChat(ctx, event.ConversationID)
	if err != nil {
		return err
	}
	switch ref.State {
	case ChatUnstarted:
		d.skipMissingChat(event)
		return nil
	case ChatOpen, ChatClosed:
	}
	if event.Transfer == nil {
		d.logf("TRANSFER for conversation %d has no payload, skipping", event.ConversationID)
		return nil
	}
	agentID, err := d.resolver.ResolveOrCreateAgent(ctx, event.Transfer.NewAdvisorID)
	if err != nil {
		return err
	}
	if err := d.sink.UpdateChat(ctx, ref.ChatID, UpdateChatRequest{AgentID: &agentID}); err != nil {
		return err
	}
	d.logf("TRANSFER updated agent for chat %s", ref.ChatID)
	return nil
}

func (d *Dispatcher) skipMissingChat(event Event) {
	d.metrics.replaySkipped(event.Kind)
	d.logf("%s chat not found for conversation %d, skipping", event.Kind, event.ConversationID)
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.logger == nil {
		return
	}
	d.logger.Printf(format, args...)
}

// tally summarizes a batch by event name in first-seen order, e.g.
// "2 START, 1 MESSAGE".
func tally(events []Event) string {
	counts := map[string]int{}
	order := make([]string, 0, 4)
	for _, event := range events {
		if _, seen := counts[event.RawName]; !seen {
			order = append(order, event.RawName)
		}
		counts[event.RawName]++
	}
	if len(order) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[name], name))
	}
	return strings.Join(parts, ", ")
}
