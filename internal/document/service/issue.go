package service

import (
	"context"
	"errors"
	"time"

	"labcert/internal/audit"
	"labcert/internal/document/models"
	docstore "labcert/internal/document/store/document"
	"labcert/internal/render"
	"labcert/internal/sequence"
	"labcert/internal/verifycode"
	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/platform/sentinel"
	"labcert/pkg/requestcontext"
)

// IssuanceRequest describes one issuance action.
type IssuanceRequest struct {
	Kind   models.Kind
	Source models.SourceRef
	Fields map[string]string
}

// RequestIssuance mints a number and verification code, persists the
// document, then renders the artifact. Allocation and persistence are
// atomic; rendering is resumable: a render failure leaves a valid,
// uniquely numbered document that RenderArtifact can complete later
// without reallocating anything.
func (s *Service) RequestIssuance(ctx context.Context, req IssuanceRequest) (*models.Document, error) {
	if !req.Kind.IsValid() {
		return nil, derrors.New(derrors.CodeValidation, "unknown document kind")
	}
	if err := req.Source.Validate(); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeValidation, "invalid source reference")
	}

	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)
	start := time.Now()

	var doc *models.Document
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		issued, err := s.issueInTx(txCtx, req, actor, now)
		if err != nil {
			return err
		}
		doc = issued
		return nil
	})
	if err != nil {
		s.countIssuanceFailure(err)
		return nil, err
	}

	s.observeIssuance(doc.Kind, time.Since(start))
	event := audit.NewEvent(audit.ActionIssued, actor, requestcontext.RequestID(ctx), now)
	event.DocumentID = doc.ID.String()
	event.Number = doc.FormattedNumber
	event.Kind = doc.Kind.String()
	s.emitAudit(ctx, event)

	// Rendering happens outside the transaction and holds no locks. A
	// failure here is logged, not returned: the document is already
	// committed and can be re-rendered idempotently.
	if _, err := s.RenderArtifact(ctx, doc.ID); err != nil {
		s.logger.Warn("artifact render failed after issuance",
			"document_id", doc.ID.String(), "number", doc.FormattedNumber, "error", err)
	} else if refreshed, err := s.documents.FindByID(ctx, doc.ID); err == nil {
		doc = refreshed
	}
	return doc, nil
}

func (s *Service) issueInTx(ctx context.Context, req IssuanceRequest, actor id.UserID, now time.Time) (*models.Document, error) {
	// Fast-path duplicate check; the partial unique index on
	// (kind, source_kind, source_id) catches the concurrent case below.
	if _, err := s.documents.FindLiveBySource(ctx, req.Kind, req.Source); err == nil {
		return nil, derrors.New(derrors.CodeConflict, "a live document already exists for this source")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to check for existing document")
	}

	tmpl, err := s.templates.FindActiveByKind(ctx, req.Kind)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "no active template for kind")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load active template")
	}

	if missing := render.MissingFields(tmpl.Body, req.Fields); len(missing) > 0 {
		// Unresolved tokens render verbatim by design; surface the gap
		// for operators without failing the issuance.
		s.logger.Warn("issuance fields do not cover all template placeholders",
			"kind", req.Kind.String(), "missing", missing)
	}

	year := now.Year()
	seq, err := s.allocator.Allocate(ctx, req.Kind, year)
	if err != nil {
		if errors.Is(err, sequence.ErrExhausted) {
			return nil, derrors.Wrap(err, derrors.CodeExhausted, "sequence space exhausted")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "sequence allocation failed")
	}
	number := sequence.Format(req.Kind, year, seq)

	initial := models.StatusIssued
	if s.approvalRequired {
		initial = models.StatusPending
	}

	// Insert with a fresh code; on a code collision retry with another
	// code, bounded. Any other conflict is not retryable.
	for attempt := 1; attempt <= verifycode.MaxAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, derrors.Wrap(err, derrors.CodeInternal, "verification code generation failed")
		}
		doc, err := models.NewDocument(
			id.NewDocumentID(), req.Kind, number, code, req.Source, tmpl.ID, actor, initial, now, req.Fields)
		if err != nil {
			return nil, err
		}

		switch createErr := s.documents.Create(ctx, doc); {
		case createErr == nil:
			return doc, nil
		case errors.Is(createErr, docstore.ErrCodeTaken):
			continue
		case errors.Is(createErr, docstore.ErrDuplicateSource):
			return nil, derrors.New(derrors.CodeConflict, "a live document already exists for this source")
		case errors.Is(createErr, docstore.ErrNumberTaken):
			return nil, derrors.Wrap(createErr, derrors.CodeInternal, "allocated number already in use")
		default:
			return nil, derrors.Wrap(createErr, derrors.CodeInternal, "failed to persist document")
		}
	}
	return nil, derrors.Wrap(verifycode.ErrExhausted, derrors.CodeExhausted, "verification code generation exhausted")
}

// RenderArtifact renders the stored document's template with its captured
// fields and records the artifact reference. Idempotent: a document that
// already has an artifact is returned unchanged, and retries never touch
// the number or verification code.
func (s *Service) RenderArtifact(ctx context.Context, docID id.DocumentID) (string, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", derrors.New(derrors.CodeNotFound, "document not found")
		}
		return "", derrors.Wrap(err, derrors.CodeInternal, "failed to load document")
	}
	if doc.HasArtifact() {
		return *doc.ArtifactRef, nil
	}

	tmpl, err := s.templates.FindByID(ctx, doc.TemplateID)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "failed to load template for render")
	}

	data, err := s.renderer.Render(tmpl.Body, doc.Fields)
	if err != nil {
		s.countRenderFailure()
		return "", derrors.Wrap(err, derrors.CodeRender, "template rendering failed")
	}
	ref, err := s.artifacts.Put(ctx, doc.ID, data)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "failed to store artifact")
	}
	if err := s.documents.SetArtifactRef(ctx, doc.ID, ref); err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "failed to record artifact reference")
	}

	event := audit.NewEvent(audit.ActionRendered, requestcontext.ActorID(ctx), requestcontext.RequestID(ctx), requestcontext.Now(ctx))
	event.DocumentID = doc.ID.String()
	event.Number = doc.FormattedNumber
	event.Kind = doc.Kind.String()
	s.emitAudit(ctx, event)
	return ref, nil
}

func (s *Service) countIssuanceFailure(err error) {
	if s.metrics != nil {
		s.metrics.IssuanceFailures.WithLabelValues(string(derrors.CodeOf(err))).Inc()
	}
}

func (s *Service) countRenderFailure() {
	if s.metrics != nil {
		s.metrics.RenderFailures.Inc()
	}
}

func (s *Service) observeIssuance(kind models.Kind, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.DocumentsIssued.WithLabelValues(string(kind)).Inc()
		s.metrics.IssuanceDuration.Observe(elapsed.Seconds())
	}
}
