// Package domain defines typed identifiers and primitives shared across the
// issuance engine. Wrapping uuid.UUID in distinct types prevents accidentally
// passing a template ID where a document ID is expected.
package domain

import "github.com/google/uuid"

// DocumentID identifies an issued document.
type DocumentID uuid.UUID

// TemplateID identifies a document template version.
type TemplateID uuid.UUID

// UserID identifies a staff member (issuer, approver).
type UserID uuid.UUID

func (id DocumentID) String() string { return uuid.UUID(id).String() }
func (id TemplateID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }

func (id DocumentID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }

// NewDocumentID allocates a random document ID.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// NewTemplateID allocates a random template ID.
func NewTemplateID() TemplateID { return TemplateID(uuid.New()) }

// NewUserID allocates a random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// ParseDocumentID parses a document ID from its string form.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DocumentID{}, err
	}
	return DocumentID(u), nil
}

// ParseTemplateID parses a template ID from its string form.
func ParseTemplateID(s string) (TemplateID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TemplateID{}, err
	}
	return TemplateID(u), nil
}

// ParseUserID parses a user ID from its string form.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// LabResultID identifies a lab result row in the surrounding LIMS schema.
// Lab results are numbered by the upstream CRUD layer, not by this engine.
type LabResultID int64
