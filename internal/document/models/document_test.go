package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
)

type DocumentSuite struct {
	suite.Suite
	now time.Time
}

func TestDocumentSuite(t *testing.T) {
	suite.Run(t, new(DocumentSuite))
}

func (s *DocumentSuite) SetupTest() {
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
}

func (s *DocumentSuite) newDoc(kind Kind, initial Status) *Document {
	doc, err := NewDocument(
		id.NewDocumentID(),
		kind,
		"CAL-2026-00001",
		"ABCDEFGHJKLMNPQR",
		SourceRef{Kind: SourceCalibrationRecord, ID: 42},
		id.NewTemplateID(),
		id.NewUserID(),
		initial,
		s.now,
		map[string]string{"instrument": "scale-7"},
	)
	s.Require().NoError(err)
	return doc
}

func (s *DocumentSuite) TestNewDocument() {
	s.Run("sets validity window from kind", func() {
		doc := s.newDoc(KindCalibration, StatusIssued)
		s.Require().NotNil(doc.ValidUntil)
		s.Equal(s.now.Add(KindCalibration.ValidityWindow()), *doc.ValidUntil)
	})

	s.Run("no expiry for lab results", func() {
		doc, err := NewDocument(
			id.NewDocumentID(), KindLabResult, "LAB-2026-00001", "ABCDEFGHJKLMNPQR",
			SourceRef{Kind: SourceLabResult, ID: 7}, id.NewTemplateID(), id.NewUserID(),
			StatusIssued, s.now, nil,
		)
		s.Require().NoError(err)
		s.Nil(doc.ValidUntil)
	})

	s.Run("rejects empty number", func() {
		_, err := NewDocument(
			id.NewDocumentID(), KindCalibration, "", "ABCDEFGHJKLMNPQR",
			SourceRef{Kind: SourceCalibrationRecord, ID: 42}, id.NewTemplateID(), id.NewUserID(),
			StatusIssued, s.now, nil,
		)
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})

	s.Run("rejects revoked as initial status", func() {
		_, err := NewDocument(
			id.NewDocumentID(), KindCalibration, "CAL-2026-00001", "ABCDEFGHJKLMNPQR",
			SourceRef{Kind: SourceCalibrationRecord, ID: 42}, id.NewTemplateID(), id.NewUserID(),
			StatusRevoked, s.now, nil,
		)
		s.Require().Error(err)
	})

	s.Run("rejects invalid source", func() {
		_, err := NewDocument(
			id.NewDocumentID(), KindCalibration, "CAL-2026-00001", "ABCDEFGHJKLMNPQR",
			SourceRef{Kind: SourceCalibrationRecord, ID: 0}, id.NewTemplateID(), id.NewUserID(),
			StatusIssued, s.now, nil,
		)
		s.Require().Error(err)
	})
}

func (s *DocumentSuite) TestApproval() {
	s.Run("pending to issued records approver", func() {
		doc := s.newDoc(KindCalibration, StatusPending)
		approver := id.NewUserID()

		s.Require().NoError(doc.CanApprove())
		doc.ApplyApproval(approver, s.now)

		s.Equal(StatusIssued, doc.Status)
		s.Require().NotNil(doc.ApprovedBy)
		s.Equal(approver, *doc.ApprovedBy)
	})

	s.Run("approving issued document is a no-op", func() {
		doc := s.newDoc(KindCalibration, StatusIssued)
		doc.ApplyApproval(id.NewUserID(), s.now)
		s.Equal(StatusIssued, doc.Status)
		s.Nil(doc.ApprovedBy)
	})

	s.Run("cannot approve revoked document", func() {
		doc := s.newDoc(KindCalibration, StatusIssued)
		doc.ApplyRevocation("mistake", s.now)

		err := doc.CanApprove()
		s.Require().Error(err)
		s.True(derrors.HasCode(err, derrors.CodeInvariantViolation))
	})
}

func (s *DocumentSuite) TestRevocation() {
	s.Run("revocation is terminal and records reason", func() {
		doc := s.newDoc(KindCalibration, StatusIssued)

		s.Require().NoError(doc.CanRevoke())
		doc.ApplyRevocation("instrument recalled", s.now)

		s.Equal(StatusRevoked, doc.Status)
		s.True(doc.IsRevoked)
		s.Require().NotNil(doc.RevokedReason)
		s.Equal("instrument recalled", *doc.RevokedReason)
		s.False(doc.IsValid(s.now))
	})

	s.Run("cannot revoke twice", func() {
		doc := s.newDoc(KindCalibration, StatusIssued)
		doc.ApplyRevocation("first", s.now)
		s.Error(doc.CanRevoke())
	})
}

func (s *DocumentSuite) TestValidity() {
	s.Run("issued document inside window is valid", func() {
		doc := s.newDoc(KindCalibration, StatusIssued)
		s.True(doc.IsValid(s.now))
		s.True(doc.IsValid(s.now.Add(364 * 24 * time.Hour)))
	})

	s.Run("expiry is derived, not stored", func() {
		doc := s.newDoc(KindCalibration, StatusIssued)
		later := s.now.Add(2 * 365 * 24 * time.Hour)

		s.True(doc.IsExpired(later))
		s.False(doc.IsValid(later))
		s.Equal(StatusIssued, doc.Status)
	})

	s.Run("pending document is not valid", func() {
		doc := s.newDoc(KindCalibration, StatusPending)
		s.False(doc.IsValid(s.now))
	})
}

func (s *DocumentSuite) TestArtifact() {
	doc := s.newDoc(KindCalibration, StatusIssued)
	s.False(doc.HasArtifact())

	doc.ApplyArtifactRef("mem://artifacts/abc")
	s.True(doc.HasArtifact())
}
