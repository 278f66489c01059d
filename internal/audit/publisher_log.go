package audit

import (
	"context"
	"log/slog"
	"sync"
)

// LogPublisher writes audit events to the process log. Used when no
// Kafka brokers are configured (dev mode, single-node deployments).
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a log-backed publisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Emit(_ context.Context, event Event) error {
	p.logger.Info("audit event",
		"action", string(event.Action),
		"document_id", event.DocumentID,
		"number", event.Number,
		"kind", event.Kind,
		"actor_id", event.ActorID,
		"request_id", event.RequestID,
		"reason", event.Reason,
		"occurred_at", event.OccurredAt,
	)
	return nil
}

// Recorder collects events in memory. Test double.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder constructs an empty event recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
