package chatsync

import (
	"context"
	"time"
)

type eventProcessor interface {
	Process(ctx context.Context, events []Event) error
}

// Poller drives one polling tick: a windowed fetch followed by every
// continuation page, each handed to the processor in feed order. Window
// boundaries are caller-supplied; whether the source includes events landing
// exactly on end_at is the source's call, not ours.
type Poller struct {
	source    SourceClient
	processor eventProcessor
	logger    Logger
}

func NewPoller(source SourceClient, processor eventProcessor, logger Logger) *Poller {
	return &Poller{source: source, processor: processor, logger: logger}
}

func (p *Poller) Run(ctx context.Context, startAt, endAt time.Time) error {
	page, err := p.source.FetchEvents(ctx, startAt, endAt)
	if err != nil {
		return err
	}
	if err := p.processor.Process(ctx, page.Events); err != nil {
		return err
	}
	for page.NextPageURL != nil && *page.NextPageURL != "" {
		next := *page.NextPageURL
		p.logf("following next page %s", next)
		page, err = p.source.FetchEventsPage(ctx, next)
		if err != nil {
			return err
		}
		if err := p.processor.Process(ctx, page.Events); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) logf(format string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
