package handler

import (
	"strings"

	"labcert/internal/document/models"
	derrors "labcert/pkg/domain-errors"
)

// IssueRequest is the HTTP request body for POST /api/documents/issue.
type IssueRequest struct {
	Kind   string            `json:"kind" validate:"required"`
	Source SourceRequest     `json:"source" validate:"required"`
	Fields map[string]string `json:"fields"`

	parsedKind   models.Kind
	parsedSource models.SourceRef
}

// SourceRequest identifies the record a document is issued for.
type SourceRequest struct {
	Kind string `json:"kind" validate:"required"`
	ID   int64  `json:"id" validate:"required,gt=0"`
}

// Validate parses the enum fields.
func (r *IssueRequest) Validate() error {
	kind, err := models.ParseKind(strings.TrimSpace(r.Kind))
	if err != nil {
		return err
	}
	r.parsedKind = kind

	sourceKind, err := models.ParseSourceKind(strings.TrimSpace(r.Source.Kind))
	if err != nil {
		return err
	}
	r.parsedSource = models.SourceRef{Kind: sourceKind, ID: r.Source.ID}
	return r.parsedSource.Validate()
}

// ParsedKind returns the validated document kind.
func (r *IssueRequest) ParsedKind() models.Kind { return r.parsedKind }

// ParsedSource returns the validated source reference.
func (r *IssueRequest) ParsedSource() models.SourceRef { return r.parsedSource }

// RevokeRequest is the HTTP request body for POST /api/documents/{id}/revoke.
type RevokeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Validate trims and re-checks the reason.
func (r *RevokeRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return derrors.New(derrors.CodeValidation, "reason is required")
	}
	return nil
}

// CreateTemplateRequest is the HTTP request body for POST /api/templates.
type CreateTemplateRequest struct {
	Kind string `json:"kind" validate:"required"`
	Name string `json:"name" validate:"required,max=200"`
	Body string `json:"body" validate:"required"`

	parsedKind models.Kind
}

// Validate parses the kind.
func (r *CreateTemplateRequest) Validate() error {
	kind, err := models.ParseKind(strings.TrimSpace(r.Kind))
	if err != nil {
		return err
	}
	r.parsedKind = kind
	return nil
}

// ParsedKind returns the validated template kind.
func (r *CreateTemplateRequest) ParsedKind() models.Kind { return r.parsedKind }
