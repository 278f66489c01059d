package handler

import (
	"time"

	"labcert/internal/document/models"
	"labcert/internal/document/service"
)

// DocumentResponse is the staff-facing projection of a document.
type DocumentResponse struct {
	ID               string            `json:"id"`
	Kind             string            `json:"kind"`
	FormattedNumber  string            `json:"formatted_number"`
	VerificationCode string            `json:"verification_code"`
	SourceKind       string            `json:"source_kind"`
	SourceID         int64             `json:"source_id"`
	TemplateID       string            `json:"template_id"`
	Status           string            `json:"status"`
	IssuedAt         time.Time         `json:"issued_at"`
	ValidUntil       *time.Time        `json:"valid_until,omitempty"`
	GeneratedBy      string            `json:"generated_by"`
	ApprovedBy       *string           `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
	IsRevoked        bool              `json:"is_revoked"`
	RevokedReason    *string           `json:"revoked_reason,omitempty"`
	RevokedAt        *time.Time        `json:"revoked_at,omitempty"`
	ArtifactRef      *string           `json:"artifact_ref,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}

// FromDocument builds the response projection.
func FromDocument(doc *models.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:               doc.ID.String(),
		Kind:             doc.Kind.String(),
		FormattedNumber:  doc.FormattedNumber,
		VerificationCode: doc.VerificationCode,
		SourceKind:       doc.Source.Kind.String(),
		SourceID:         doc.Source.ID,
		TemplateID:       doc.TemplateID.String(),
		Status:           doc.Status.String(),
		IssuedAt:         doc.IssuedAt,
		ValidUntil:       doc.ValidUntil,
		GeneratedBy:      doc.GeneratedBy.String(),
		ApprovedAt:       doc.ApprovedAt,
		IsRevoked:        doc.IsRevoked,
		RevokedReason:    doc.RevokedReason,
		RevokedAt:        doc.RevokedAt,
		ArtifactRef:      doc.ArtifactRef,
		Fields:           doc.Fields,
	}
	if doc.ApprovedBy != nil {
		s := doc.ApprovedBy.String()
		resp.ApprovedBy = &s
	}
	return resp
}

// DocumentListResponse wraps a list of documents.
type DocumentListResponse struct {
	Documents []*DocumentResponse `json:"documents"`
}

// FromDocuments builds the list projection.
func FromDocuments(docs []*models.Document) *DocumentListResponse {
	out := &DocumentListResponse{Documents: make([]*DocumentResponse, 0, len(docs))}
	for _, doc := range docs {
		out.Documents = append(out.Documents, FromDocument(doc))
	}
	return out
}

// RevokeResponse reports a revocation, flagging idempotent repeats.
type RevokeResponse struct {
	Document       *DocumentResponse `json:"document"`
	AlreadyRevoked bool              `json:"already_revoked"`
}

// FromRevokeOutcome builds the revocation response.
func FromRevokeOutcome(outcome *service.RevokeOutcome) *RevokeResponse {
	return &RevokeResponse{
		Document:       FromDocument(outcome.Document),
		AlreadyRevoked: outcome.AlreadyRevoked,
	}
}

// RenderResponse reports the artifact reference after a render.
type RenderResponse struct {
	ArtifactRef string `json:"artifact_ref"`
}

// TemplateResponse is the staff-facing projection of a template.
type TemplateResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	Version   int       `json:"version"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromTemplate builds the response projection.
func FromTemplate(t *models.Template) *TemplateResponse {
	return &TemplateResponse{
		ID:        t.ID.String(),
		Kind:      t.Kind.String(),
		Name:      t.Name,
		Body:      t.Body,
		Version:   t.Version,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// TemplateListResponse wraps a list of templates.
type TemplateListResponse struct {
	Templates []*TemplateResponse `json:"templates"`
}

// FromTemplates builds the list projection.
func FromTemplates(templates []*models.Template) *TemplateListResponse {
	out := &TemplateListResponse{Templates: make([]*TemplateResponse, 0, len(templates))}
	for _, t := range templates {
		out.Templates = append(out.Templates, FromTemplate(t))
	}
	return out
}
