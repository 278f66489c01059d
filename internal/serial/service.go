package serial

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"labcert/internal/audit"
	"labcert/internal/document/models"
	"labcert/internal/sequence"
	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/platform/sentinel"
	"labcert/pkg/requestcontext"
)

// Store persists serial bindings. Create must reject a second binding
// for the same lab result with sentinel.ErrConflict.
type Store interface {
	Create(ctx context.Context, b *Binding) error
	FindByLabResult(ctx context.Context, labResultID id.LabResultID) (*Binding, error)
	// MarkPrinted sets the first-print timestamp only if unset and
	// returns the binding either way.
	MarkPrinted(ctx context.Context, labResultID id.LabResultID) (*Binding, error)
	// Revoke sets the tombstone flag and returns the binding.
	Revoke(ctx context.Context, labResultID id.LabResultID) (*Binding, error)
}

// Service assigns and manages lab-result serials.
type Service struct {
	bindings  Store
	allocator *sequence.Allocator

	logger         *slog.Logger
	auditPublisher audit.Publisher
	verifyBaseURL  string
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAuditPublisher attaches an audit event publisher.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.auditPublisher = p }
}

// WithVerifyBaseURL sets the public verification endpoint embedded in QR
// payloads, e.g. https://lab.example.com/verify.
func WithVerifyBaseURL(base string) Option {
	return func(s *Service) { s.verifyBaseURL = base }
}

// New constructs the serial binding service.
func New(bindings Store, allocator *sequence.Allocator, opts ...Option) *Service {
	s := &Service{
		bindings:  bindings,
		allocator: allocator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditPublisher == nil {
		s.auditPublisher = audit.NewLogPublisher(s.logger)
	}
	return s
}

// AssignSerial returns the serial for a lab result, allocating one on
// first call. Idempotent: repeated calls, including concurrent ones,
// observe the same persisted serial, and a losing racer discards its
// allocation (sequence gaps are acceptable, duplicates are not).
func (s *Service) AssignSerial(ctx context.Context, labResultID id.LabResultID) (*Binding, error) {
	if labResultID <= 0 {
		return nil, derrors.New(derrors.CodeValidation, "lab result id must be positive")
	}

	existing, err := s.bindings.FindByLabResult(ctx, labResultID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to look up serial binding")
	}

	now := requestcontext.Now(ctx)
	year := now.Year()
	seq, err := s.allocator.Allocate(ctx, models.KindLabResult, year)
	if err != nil {
		if errors.Is(err, sequence.ErrExhausted) {
			return nil, derrors.Wrap(err, derrors.CodeExhausted, "serial space exhausted")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "serial allocation failed")
	}

	binding := &Binding{
		LabResultID: labResultID,
		Serial:      sequence.Format(models.KindLabResult, year, seq),
		Year:        year,
		Sequence:    seq,
		CreatedAt:   now,
	}
	if err := s.bindings.Create(ctx, binding); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race; the winner's serial is the one that counts.
			winner, findErr := s.bindings.FindByLabResult(ctx, labResultID)
			if findErr != nil {
				return nil, derrors.Wrap(findErr, derrors.CodeInternal, "failed to load winning serial binding")
			}
			return winner, nil
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to persist serial binding")
	}

	event := audit.NewEvent(audit.ActionSerialAssigned, requestcontext.ActorID(ctx), requestcontext.RequestID(ctx), now)
	event.Number = binding.Serial
	event.Kind = models.KindLabResult.String()
	s.emitAudit(ctx, event)
	return binding, nil
}

// MarkPrinted records the first print time. Later prints keep the
// original timestamp and are not blocked.
func (s *Service) MarkPrinted(ctx context.Context, labResultID id.LabResultID) (*Binding, error) {
	binding, err := s.bindings.MarkPrinted(ctx, labResultID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "no serial assigned to lab result")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to mark serial printed")
	}

	event := audit.NewEvent(audit.ActionSerialPrinted, requestcontext.ActorID(ctx), requestcontext.RequestID(ctx), requestcontext.Now(ctx))
	event.Number = binding.Serial
	event.Kind = models.KindLabResult.String()
	s.emitAudit(ctx, event)
	return binding, nil
}

// Revoke tombstones the serial. The binding persists; IsValid is false
// from here on, permanently.
func (s *Service) Revoke(ctx context.Context, labResultID id.LabResultID) (*Binding, error) {
	binding, err := s.bindings.Revoke(ctx, labResultID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "no serial assigned to lab result")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to revoke serial")
	}

	event := audit.NewEvent(audit.ActionSerialRevoked, requestcontext.ActorID(ctx), requestcontext.RequestID(ctx), requestcontext.Now(ctx))
	event.Number = binding.Serial
	event.Kind = models.KindLabResult.String()
	s.emitAudit(ctx, event)
	return binding, nil
}

// GetBinding returns the binding for a lab result.
func (s *Service) GetBinding(ctx context.Context, labResultID id.LabResultID) (*Binding, error) {
	binding, err := s.bindings.FindByLabResult(ctx, labResultID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "no serial assigned to lab result")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load serial binding")
	}
	return binding, nil
}

// QRPayload builds the verification URL embedded in the printed QR code.
// Image rendering is delegated to the caller's QR library.
func (s *Service) QRPayload(binding *Binding) string {
	base := s.verifyBaseURL
	if base == "" {
		base = "/verify"
	}
	return base + "?token=" + url.QueryEscape(binding.Serial)
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.Error("failed to emit audit event", "action", string(event.Action), "error", err)
	}
}
