// Package service orchestrates the document lifecycle: issuance with
// atomic number/code allocation, approval, revocation, and resumable
// artifact rendering.
package service

import (
	"context"
	"log/slog"

	"labcert/internal/artifact"
	"labcert/internal/audit"
	docmetrics "labcert/internal/document/metrics"
	"labcert/internal/document/models"
	"labcert/internal/render"
	"labcert/internal/sequence"
	id "labcert/pkg/domain"
)

// DocumentStore is the persistence surface the lifecycle needs.
// Implementations enforce the uniqueness constraints documented on
// models.Document.
type DocumentStore interface {
	Create(ctx context.Context, d *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	FindLiveBySource(ctx context.Context, kind models.Kind, source models.SourceRef) (*models.Document, error)
	Execute(ctx context.Context, docID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error)
	SetArtifactRef(ctx context.Context, docID id.DocumentID, ref string) error
	ListByKind(ctx context.Context, kind models.Kind) ([]*models.Document, error)
}

// TemplateStore resolves templates for issuance and rendering.
type TemplateStore interface {
	Create(ctx context.Context, t *models.Template) error
	FindByID(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	FindActiveByKind(ctx context.Context, kind models.Kind) (*models.Template, error)
	Activate(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	Deactivate(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	ListByKind(ctx context.Context, kind models.Kind) ([]*models.Template, error)
}

// CodeGenerator produces candidate verification codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// Service drives documents through their lifecycle.
type Service struct {
	documents DocumentStore
	templates TemplateStore
	allocator *sequence.Allocator
	codes     CodeGenerator
	renderer  render.Renderer
	artifacts artifact.Store
	tx        StoreTx

	logger           *slog.Logger
	metrics          *docmetrics.Metrics
	auditPublisher   audit.Publisher
	approvalRequired bool
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *docmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher attaches an audit event publisher.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.auditPublisher = p }
}

// WithApprovalRequired makes new documents start in Pending and require
// an explicit Approve before they are valid.
func WithApprovalRequired(required bool) Option {
	return func(s *Service) { s.approvalRequired = required }
}

// WithStoreTx sets the transactional boundary used during issuance.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

// New constructs the lifecycle service.
func New(
	documents DocumentStore,
	templates TemplateStore,
	allocator *sequence.Allocator,
	codes CodeGenerator,
	renderer render.Renderer,
	artifacts artifact.Store,
	opts ...Option,
) *Service {
	s := &Service{
		documents: documents,
		templates: templates,
		allocator: allocator,
		codes:     codes,
		renderer:  renderer,
		artifacts: artifacts,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryStoreTx()
	}
	if s.auditPublisher == nil {
		s.auditPublisher = audit.NewLogPublisher(s.logger)
	}
	return s
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.Error("failed to emit audit event", "action", string(event.Action), "error", err)
	}
}
