// Package serial binds printable serial numbers to lab results. A lab
// result gets exactly one serial for its lifetime: assignment is
// idempotent, printing is tracked by first-print timestamp, and
// revocation is a tombstone: the row and serial persist as an audit
// record while validity turns false permanently.
package serial

import (
	"time"

	id "labcert/pkg/domain"
)

// Binding ties a lab result to its serial.
type Binding struct {
	LabResultID    id.LabResultID `json:"lab_result_id"`
	Serial         string         `json:"serial"`
	Year           int            `json:"year"`
	Sequence       int64          `json:"sequence"`
	FirstPrintedAt *time.Time     `json:"first_printed_at,omitempty"`
	IsRevoked      bool           `json:"is_revoked"`
	CreatedAt      time.Time      `json:"created_at"`
}

// IsValid reports whether the serial still vouches for the lab result.
// Serials do not expire; only revocation invalidates them.
func (b *Binding) IsValid() bool {
	return !b.IsRevoked
}
