package document

import (
	"fmt"

	"labcert/pkg/platform/sentinel"
)

// Conflict causes. Create distinguishes which unique constraint rejected
// the insert so the lifecycle service can pick the right recovery:
// a code collision is retried with a fresh code, a duplicate source is a
// caller error, and a number collision means the sequence allocator is
// broken and must not be retried blindly.
var (
	// ErrDuplicateSource: a non-revoked document already exists for
	// (kind, source_kind, source_id). Backstop for the check-then-insert
	// race during issuance.
	ErrDuplicateSource = fmt.Errorf("live document exists for source: %w", sentinel.ErrConflict)

	// ErrCodeTaken: the verification code is already in use.
	ErrCodeTaken = fmt.Errorf("verification code taken: %w", sentinel.ErrConflict)

	// ErrNumberTaken: the formatted number is already in use.
	ErrNumberTaken = fmt.Errorf("formatted number taken: %w", sentinel.ErrConflict)
)
