package models

import (
	"time"

	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
)

// Document is an issued certificate, report, or serial-bound artifact.
// It is the audit record of an issuance: created once, mutated only via
// Approve/Revoke, never physically deleted.
//
// Invariants:
//   - FormattedNumber unique globally (and by construction per kind+year)
//   - VerificationCode unique globally
//   - ValidUntil, when set, is not before IssuedAt
//   - At most one non-revoked document per (Kind, Source.Kind, Source.ID)
//   - Status transitions follow the Status state machine
type Document struct {
	ID               id.DocumentID `json:"id"`
	Kind             Kind          `json:"kind"`
	FormattedNumber  string        `json:"formatted_number"`
	VerificationCode string        `json:"verification_code"`
	Source           SourceRef     `json:"source"`
	TemplateID       id.TemplateID `json:"template_id"`
	Status           Status        `json:"status"`
	IssuedAt         time.Time     `json:"issued_at"`
	ValidUntil       *time.Time    `json:"valid_until,omitempty"`
	GeneratedBy      id.UserID     `json:"generated_by"`
	ApprovedBy       *id.UserID    `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time    `json:"approved_at,omitempty"`
	IsRevoked        bool          `json:"is_revoked"`
	RevokedReason    *string       `json:"revoked_reason,omitempty"`
	RevokedAt        *time.Time    `json:"revoked_at,omitempty"`
	ArtifactRef      *string       `json:"artifact_ref,omitempty"`

	// Fields holds the merge data captured at issuance so a failed render
	// can be retried later without the original request.
	Fields map[string]string `json:"fields,omitempty"`
}

// NewDocument validates and constructs a freshly issued document.
// initial must be StatusPending or StatusIssued depending on whether the
// deployment requires a separate approval step.
func NewDocument(
	docID id.DocumentID,
	kind Kind,
	number, code string,
	source SourceRef,
	templateID id.TemplateID,
	generatedBy id.UserID,
	initial Status,
	issuedAt time.Time,
	fields map[string]string,
) (*Document, error) {
	if !kind.IsValid() {
		return nil, derrors.New(derrors.CodeValidation, "unknown document kind")
	}
	if err := source.Validate(); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeValidation, "invalid source reference")
	}
	if number == "" || code == "" {
		return nil, derrors.New(derrors.CodeValidation, "number and verification code are required")
	}
	if initial != StatusPending && initial != StatusIssued {
		return nil, derrors.New(derrors.CodeValidation, "initial status must be pending or issued")
	}

	doc := &Document{
		ID:               docID,
		Kind:             kind,
		FormattedNumber:  number,
		VerificationCode: code,
		Source:           source,
		TemplateID:       templateID,
		Status:           initial,
		IssuedAt:         issuedAt,
		GeneratedBy:      generatedBy,
		Fields:           fields,
	}
	if window := kind.ValidityWindow(); window > 0 {
		until := issuedAt.Add(window)
		doc.ValidUntil = &until
	}
	return doc, nil
}

// IsExpired reports the derived expiry condition. Not a stored transition.
func (d *Document) IsExpired(now time.Time) bool {
	return d.ValidUntil != nil && now.After(*d.ValidUntil)
}

// IsValid reports whether the document currently vouches for its source:
// issued, not revoked, and inside the validity window.
func (d *Document) IsValid(now time.Time) bool {
	return d.Status == StatusIssued && !d.IsRevoked && !d.IsExpired(now)
}

// CanApprove checks the approval transition. Approving an already-issued
// document is treated as a no-op success by the service; this only rejects
// terminal states.
func (d *Document) CanApprove() error {
	if d.Status == StatusRevoked || d.IsRevoked {
		return derrors.New(derrors.CodeInvariantViolation, "cannot approve a revoked document")
	}
	return nil
}

// ApplyApproval transitions Pending → Issued and records the approver.
func (d *Document) ApplyApproval(approver id.UserID, now time.Time) {
	if d.Status != StatusPending {
		return // already issued, idempotent no-op
	}
	d.Status = StatusIssued
	d.ApprovedBy = &approver
	d.ApprovedAt = &now
}

// CanRevoke checks the revocation transition. An already-revoked document
// is reported via ErrAlreadyRevoked handling at the service layer, so the
// model only rejects statuses outside the state machine entirely.
func (d *Document) CanRevoke() error {
	if d.IsRevoked || d.Status == StatusRevoked {
		return derrors.New(derrors.CodeInvariantViolation, "document is already revoked")
	}
	return nil
}

// ApplyRevocation transitions to the terminal Revoked state.
func (d *Document) ApplyRevocation(reason string, now time.Time) {
	d.Status = StatusRevoked
	d.IsRevoked = true
	d.RevokedReason = &reason
	d.RevokedAt = &now
}

// ApplyArtifactRef records the rendered artifact location.
func (d *Document) ApplyArtifactRef(ref string) {
	d.ArtifactRef = &ref
}

// HasArtifact reports whether rendering already completed for this document.
func (d *Document) HasArtifact() bool {
	return d.ArtifactRef != nil && *d.ArtifactRef != ""
}
