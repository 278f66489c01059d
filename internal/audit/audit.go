// Package audit emits lifecycle events for issued documents. Every
// issuance, approval, revocation and serial action produces one event so
// the surrounding LIMS can reconstruct who did what to which document.
package audit

import (
	"context"
	"time"

	id "labcert/pkg/domain"
)

// Action enumerates auditable lifecycle actions.
type Action string

const (
	ActionIssued         Action = "document.issued"
	ActionApproved       Action = "document.approved"
	ActionRevoked        Action = "document.revoked"
	ActionRendered       Action = "document.rendered"
	ActionSerialAssigned Action = "serial.assigned"
	ActionSerialPrinted  Action = "serial.printed"
	ActionSerialRevoked  Action = "serial.revoked"
)

// Event is one audit record.
type Event struct {
	Action     Action    `json:"action"`
	DocumentID string    `json:"document_id,omitempty"`
	Number     string    `json:"number,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers audit events. Implementations must not block the
// request path on broker availability.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// NewEvent fills the common envelope fields.
func NewEvent(action Action, actor id.UserID, requestID string, at time.Time) Event {
	e := Event{Action: action, RequestID: requestID, OccurredAt: at}
	if !actor.IsZero() {
		e.ActorID = actor.String()
	}
	return e
}
