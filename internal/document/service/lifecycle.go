package service

import (
	"context"
	"errors"

	"labcert/internal/audit"
	"labcert/internal/document/models"
	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/platform/sentinel"
	"labcert/pkg/requestcontext"
)

var errAlreadyRevoked = errors.New("already revoked")

// Approve transitions a Pending document to Issued and records the
// approver. Approving an already-Issued document is a no-op success.
// Approving a revoked document fails with an invariant violation.
func (s *Service) Approve(ctx context.Context, docID id.DocumentID, approver id.UserID) (*models.Document, error) {
	if approver.IsZero() {
		return nil, derrors.New(derrors.CodeValidation, "approver is required")
	}
	now := requestcontext.Now(ctx)

	doc, err := s.documents.Execute(ctx, docID,
		func(d *models.Document) error { return d.CanApprove() },
		func(d *models.Document) { d.ApplyApproval(approver, now) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "document not found")
		}
		if derrors.HasCode(err, derrors.CodeInvariantViolation) {
			return nil, err
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to approve document")
	}

	if s.metrics != nil {
		s.metrics.DocumentsApproved.Inc()
	}
	event := audit.NewEvent(audit.ActionApproved, approver, requestcontext.RequestID(ctx), now)
	event.DocumentID = doc.ID.String()
	event.Number = doc.FormattedNumber
	event.Kind = doc.Kind.String()
	s.emitAudit(ctx, event)
	return doc, nil
}

// RevokeOutcome reports a revocation result. AlreadyRevoked distinguishes
// the non-fatal second-revoke case from a state change.
type RevokeOutcome struct {
	Document       *models.Document
	AlreadyRevoked bool
}

// Revoke transitions a Pending or Issued document to the terminal
// Revoked state. A second revoke call is reported as AlreadyRevoked, not
// an error.
func (s *Service) Revoke(ctx context.Context, docID id.DocumentID, reason string) (*RevokeOutcome, error) {
	if reason == "" {
		return nil, derrors.New(derrors.CodeValidation, "revocation reason is required")
	}
	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	doc, err := s.documents.Execute(ctx, docID,
		func(d *models.Document) error {
			if d.IsRevoked || d.Status == models.StatusRevoked {
				return errAlreadyRevoked
			}
			return nil
		},
		func(d *models.Document) { d.ApplyRevocation(reason, now) },
	)
	if errors.Is(err, errAlreadyRevoked) {
		existing, findErr := s.documents.FindByID(ctx, docID)
		if findErr != nil {
			return nil, derrors.Wrap(findErr, derrors.CodeInternal, "failed to load revoked document")
		}
		return &RevokeOutcome{Document: existing, AlreadyRevoked: true}, nil
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "document not found")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to revoke document")
	}

	if s.metrics != nil {
		s.metrics.DocumentsRevoked.Inc()
	}
	event := audit.NewEvent(audit.ActionRevoked, actor, requestcontext.RequestID(ctx), now)
	event.DocumentID = doc.ID.String()
	event.Number = doc.FormattedNumber
	event.Kind = doc.Kind.String()
	event.Reason = reason
	s.emitAudit(ctx, event)
	return &RevokeOutcome{Document: doc}, nil
}

// GetDocument returns a document by ID. Staff-facing; the public surface
// is the verification service, which exposes only the public projection.
func (s *Service) GetDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "document not found")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load document")
	}
	return doc, nil
}

// ListDocuments returns documents of a kind for staff screens.
func (s *Service) ListDocuments(ctx context.Context, kind models.Kind) ([]*models.Document, error) {
	if !kind.IsValid() {
		return nil, derrors.New(derrors.CodeValidation, "unknown document kind")
	}
	docs, err := s.documents.ListByKind(ctx, kind)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}
