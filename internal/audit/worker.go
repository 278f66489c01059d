package audit

import (
	"context"
	"log/slog"
)

// AsyncPublisher decouples the request path from the downstream sink.
// Emit enqueues without blocking; a dropped event is logged, never an
// error; audit delivery must not fail a lifecycle operation.
type AsyncPublisher struct {
	next   Publisher
	inbox  chan Event
	logger *slog.Logger
}

// NewAsyncPublisher wraps a publisher with a buffered inbox.
func NewAsyncPublisher(next Publisher, buffer int, logger *slog.Logger) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &AsyncPublisher{
		next:   next,
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit enqueues the event. Never blocks.
func (p *AsyncPublisher) Emit(_ context.Context, event Event) error {
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit inbox full, dropping event", "action", string(event.Action))
	}
	return nil
}

// Run drains the inbox until ctx is cancelled, then flushes whatever is
// queued.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return ctx.Err()
		case event := <-p.inbox:
			p.deliver(ctx, event)
		}
	}
}

func (p *AsyncPublisher) flush() {
	for {
		select {
		case event := <-p.inbox:
			p.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) deliver(ctx context.Context, event Event) {
	if err := p.next.Emit(ctx, event); err != nil {
		p.logger.Error("failed to deliver audit event", "action", string(event.Action), "error", err)
	}
}
