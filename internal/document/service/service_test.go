package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"labcert/internal/artifact"
	"labcert/internal/document/models"
	docstore "labcert/internal/document/store/document"
	"labcert/internal/document/store/template"
	"labcert/internal/render"
	"labcert/internal/sequence"
	"labcert/internal/verifycode"
	mockrenderer "labcert/mocks/renderer"
	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/requestcontext"
)

// scriptedCodes replays a fixed list of verification codes so collision
// handling can be exercised deterministically.
type scriptedCodes struct {
	codes []string
	calls int
}

func (g *scriptedCodes) Generate() (string, error) {
	if g.calls >= len(g.codes) {
		return "", errors.New("script exhausted")
	}
	code := g.codes[g.calls]
	g.calls++
	return code, nil
}

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	documents *docstore.InMemory
	templates *template.InMemory
	counters  *sequence.InMemoryCounterStore
	artifacts *artifact.InMemory
	renderer  *mockrenderer.MockRenderer
	svc       *Service
	ctx       context.Context
	actor     id.UserID
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.documents = docstore.NewInMemory()
	s.templates = template.NewInMemory()
	s.counters = sequence.NewInMemoryCounterStore()
	s.artifacts = artifact.NewInMemory()
	s.renderer = mockrenderer.NewMockRenderer(s.ctrl)
	s.svc = s.newService()

	s.actor = id.NewUserID()
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithActorID(ctx, s.actor)
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	return New(
		s.documents,
		s.templates,
		sequence.NewAllocator(s.counters),
		verifycode.New(),
		s.renderer,
		s.artifacts,
		opts...,
	)
}

func (s *ServiceSuite) activateTemplate(kind models.Kind, body string) *models.Template {
	tmpl, err := s.svc.CreateTemplate(s.ctx, kind, "default", body)
	s.Require().NoError(err)
	tmpl, err = s.svc.ActivateTemplate(s.ctx, tmpl.ID)
	s.Require().NoError(err)
	return tmpl
}

func (s *ServiceSuite) issueRequest(sourceID int64) IssuanceRequest {
	return IssuanceRequest{
		Kind:   models.KindCalibration,
		Source: models.SourceRef{Kind: models.SourceCalibrationRecord, ID: sourceID},
		Fields: map[string]string{"instrument": "scale-7"},
	}
}

func (s *ServiceSuite) TestIssuanceAssignsSequentialNumbers() {
	s.activateTemplate(models.KindCalibration, "Certificate for {{instrument}}")
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil).Times(2)

	first, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().NoError(err)
	second, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(2))
	s.Require().NoError(err)

	s.Equal("CAL-2026-00001", first.FormattedNumber)
	s.Equal("CAL-2026-00002", second.FormattedNumber)
	s.NotEqual(first.VerificationCode, second.VerificationCode)
	s.Equal(models.StatusIssued, first.Status)
	s.Equal(s.actor, first.GeneratedBy)
	s.True(first.HasArtifact())

	s.Run("validity window is derived from the kind", func() {
		s.Require().NotNil(first.ValidUntil)
		s.Equal(s.now.Add(models.KindCalibration.ValidityWindow()), *first.ValidUntil)
	})

	s.Run("artifact bytes are retrievable", func() {
		data, err := s.artifacts.Get(s.ctx, *first.ArtifactRef)
		s.Require().NoError(err)
		s.Equal([]byte("rendered"), data)
	})
}

func (s *ServiceSuite) TestIssuanceRejectsDuplicateLiveSource() {
	s.activateTemplate(models.KindCalibration, "body")
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil)

	_, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().NoError(err)

	_, err = s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().Error(err)
	s.True(derrors.HasCode(err, derrors.CodeConflict))

	n, err := s.documents.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n, "the rejected issuance must not persist anything")

	s.Run("revocation frees the source for reissue", func() {
		docs, err := s.documents.ListByKind(s.ctx, models.KindCalibration)
		s.Require().NoError(err)
		s.Require().Len(docs, 1)

		_, err = s.svc.Revoke(s.ctx, docs[0].ID, "instrument recalibrated")
		s.Require().NoError(err)

		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil)
		replacement, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
		s.Require().NoError(err)
		s.Equal("CAL-2026-00002", replacement.FormattedNumber)
	})
}

func (s *ServiceSuite) TestIssuanceWithoutActiveTemplate() {
	_, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().Error(err)
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ServiceSuite) TestIssuanceRejectsInvalidInput() {
	s.Run("unknown kind", func() {
		_, err := s.svc.RequestIssuance(s.ctx, IssuanceRequest{
			Kind:   models.Kind("warranty"),
			Source: models.SourceRef{Kind: models.SourceCalibrationRecord, ID: 1},
		})
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})

	s.Run("invalid source", func() {
		req := s.issueRequest(0)
		_, err := s.svc.RequestIssuance(s.ctx, req)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestIssuanceRetriesOnCodeCollision() {
	s.activateTemplate(models.KindCalibration, "body")
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil).Times(2)

	_, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().NoError(err)
	docs, err := s.documents.ListByKind(s.ctx, models.KindCalibration)
	s.Require().NoError(err)
	taken := docs[0].VerificationCode

	codes := &scriptedCodes{codes: []string{taken, "ZYXWVUTSRQPNMKJH"}}
	svc := New(s.documents, s.templates, sequence.NewAllocator(s.counters), codes,
		s.renderer, s.artifacts)

	doc, err := svc.RequestIssuance(s.ctx, s.issueRequest(2))
	s.Require().NoError(err)
	s.Equal("ZYXWVUTSRQPNMKJH", doc.VerificationCode)
	s.Equal(2, codes.calls, "one retry after the collision")
}

func (s *ServiceSuite) TestIssuanceGivesUpAfterBoundedCollisions() {
	s.activateTemplate(models.KindCalibration, "body")
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil)

	_, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().NoError(err)
	docs, err := s.documents.ListByKind(s.ctx, models.KindCalibration)
	s.Require().NoError(err)
	taken := docs[0].VerificationCode

	script := make([]string, verifycode.MaxAttempts)
	for i := range script {
		script[i] = taken
	}
	svc := New(s.documents, s.templates, sequence.NewAllocator(s.counters),
		&scriptedCodes{codes: script}, s.renderer, s.artifacts)

	_, err = svc.RequestIssuance(s.ctx, s.issueRequest(2))
	s.Require().Error(err)
	s.True(derrors.HasCode(err, derrors.CodeExhausted))
}

func (s *ServiceSuite) TestIssuanceSequenceExhaustion() {
	s.activateTemplate(models.KindCalibration, "body")
	s.counters.Set(models.KindCalibration, 2026, sequence.MaxPerYear)

	_, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().Error(err)
	s.True(derrors.HasCode(err, derrors.CodeExhausted))
	s.ErrorIs(err, sequence.ErrExhausted)
}

func (s *ServiceSuite) TestRenderFailureLeavesIssuedDocument() {
	s.activateTemplate(models.KindCalibration, "body")
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return(nil, render.ErrMalformed)

	doc, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().NoError(err, "a render failure must not fail the committed issuance")
	s.Equal("CAL-2026-00001", doc.FormattedNumber)
	s.False(doc.HasArtifact())

	s.Run("render is resumable without reallocation", func() {
		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil)
		ref, err := s.svc.RenderArtifact(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.NotEmpty(ref)

		got, err := s.svc.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal("CAL-2026-00001", got.FormattedNumber)
		s.Equal(doc.VerificationCode, got.VerificationCode)
		s.True(got.HasArtifact())
	})

	s.Run("a second render returns the existing ref untouched", func() {
		// No renderer expectation: the mock fails the test if called again.
		got, err := s.svc.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		ref, err := s.svc.RenderArtifact(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(*got.ArtifactRef, ref)
	})
}

func (s *ServiceSuite) TestRenderArtifactUnknownDocument() {
	_, err := s.svc.RenderArtifact(s.ctx, id.NewDocumentID())
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ServiceSuite) TestApprovalFlow() {
	svc := s.newService(WithApprovalRequired(true))
	s.activateTemplate(models.KindCalibration, "body")
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil).AnyTimes()

	doc, err := svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().NoError(err)
	s.Equal(models.StatusPending, doc.Status)
	s.False(doc.IsValid(s.now), "pending documents do not vouch for anything yet")

	approver := id.NewUserID()
	approved, err := svc.Approve(s.ctx, doc.ID, approver)
	s.Require().NoError(err)
	s.Equal(models.StatusIssued, approved.Status)
	s.Require().NotNil(approved.ApprovedBy)
	s.Equal(approver, *approved.ApprovedBy)
	s.Require().NotNil(approved.ApprovedAt)
	s.Equal(s.now, *approved.ApprovedAt)

	s.Run("re-approval is a no-op", func() {
		again, err := svc.Approve(s.ctx, doc.ID, id.NewUserID())
		s.Require().NoError(err)
		s.Equal(approver, *again.ApprovedBy, "original approver is preserved")
	})

	s.Run("approving a revoked document violates the state machine", func() {
		_, err := svc.Revoke(s.ctx, doc.ID, "withdrawn")
		s.Require().NoError(err)

		_, err = svc.Approve(s.ctx, doc.ID, approver)
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeInvariantViolation))
	})
}

func (s *ServiceSuite) TestApproveValidation() {
	_, err := s.svc.Approve(s.ctx, id.NewDocumentID(), id.UserID{})
	s.True(derrors.HasCode(err, derrors.CodeValidation))

	_, err = s.svc.Approve(s.ctx, id.NewDocumentID(), id.NewUserID())
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ServiceSuite) TestRevokeIsIdempotent() {
	s.activateTemplate(models.KindCalibration, "body")
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil)

	doc, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().NoError(err)

	outcome, err := s.svc.Revoke(s.ctx, doc.ID, "sample contaminated")
	s.Require().NoError(err)
	s.False(outcome.AlreadyRevoked)
	s.True(outcome.Document.IsRevoked)
	s.Require().NotNil(outcome.Document.RevokedReason)
	s.Equal("sample contaminated", *outcome.Document.RevokedReason)
	s.False(outcome.Document.IsValid(s.now))

	s.Run("second revoke reports already revoked", func() {
		again, err := s.svc.Revoke(s.ctx, doc.ID, "different reason")
		s.Require().NoError(err)
		s.True(again.AlreadyRevoked)
		s.Equal("sample contaminated", *again.Document.RevokedReason, "first reason wins")
	})

	s.Run("reason is required", func() {
		_, err := s.svc.Revoke(s.ctx, doc.ID, "")
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestTemplateVersioning() {
	v1, err := s.svc.CreateTemplate(s.ctx, models.KindCalibration, "first", "body v1")
	s.Require().NoError(err)
	s.Equal(1, v1.Version)

	v2, err := s.svc.CreateTemplate(s.ctx, models.KindCalibration, "second", "body v2")
	s.Require().NoError(err)
	s.Equal(2, v2.Version)

	_, err = s.svc.ActivateTemplate(s.ctx, v1.ID)
	s.Require().NoError(err)
	_, err = s.svc.ActivateTemplate(s.ctx, v2.ID)
	s.Require().NoError(err)

	active, err := s.templates.FindActiveByKind(s.ctx, models.KindCalibration)
	s.Require().NoError(err)
	s.Equal(v2.ID, active.ID)

	s.Run("deactivation blocks issuance for the kind", func() {
		_, err := s.svc.DeactivateTemplate(s.ctx, v2.ID)
		s.Require().NoError(err)

		_, err = s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})

	s.Run("unknown template id", func() {
		_, err := s.svc.ActivateTemplate(s.ctx, id.NewTemplateID())
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListDocuments() {
	s.activateTemplate(models.KindCalibration, "body")
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("rendered"), nil).Times(2)

	_, err := s.svc.RequestIssuance(s.ctx, s.issueRequest(1))
	s.Require().NoError(err)
	_, err = s.svc.RequestIssuance(s.ctx, s.issueRequest(2))
	s.Require().NoError(err)

	docs, err := s.svc.ListDocuments(s.ctx, models.KindCalibration)
	s.Require().NoError(err)
	s.Len(docs, 2)

	_, err = s.svc.ListDocuments(s.ctx, models.Kind("warranty"))
	s.True(derrors.HasCode(err, derrors.CodeValidation))
}
