package models

// Status is the stored lifecycle state of a document.
//
// Transitions: Pending → Issued → Revoked, and Pending → Revoked.
// Expiry is a derived condition of Issued (valid_until in the past),
// never a stored transition.
type Status string

const (
	StatusPending Status = "pending"
	StatusIssued  Status = "issued"
	StatusRevoked Status = "revoked"
)

var statusTransitions = map[Status][]Status{
	StatusPending: {StatusIssued, StatusRevoked},
	StatusIssued:  {StatusRevoked},
	StatusRevoked: {},
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s Status) String() string { return string(s) }
