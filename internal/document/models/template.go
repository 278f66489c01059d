package models

import (
	"strings"
	"time"

	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
)

// TemplateStatus is the lifecycle state of a template version.
type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "active"
	TemplateStatusInactive TemplateStatus = "inactive"
)

// Template is a versioned document body with {{field}} placeholders.
//
// Invariants:
//   - Body is non-empty
//   - Version is positive
//   - At most one active template per kind (enforced by the store swap
//     in Activate operations; issuance loads the single active one)
type Template struct {
	ID        id.TemplateID  `json:"id"`
	Kind      Kind           `json:"kind"`
	Name      string         `json:"name"`
	Body      string         `json:"body"`
	Version   int            `json:"version"`
	Status    TemplateStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewTemplate validates and constructs an inactive template version.
// Templates go live only through an explicit activation, which also
// deactivates the previous active version of the same kind.
func NewTemplate(templateID id.TemplateID, kind Kind, name, body string, version int, now time.Time) (*Template, error) {
	if !kind.IsValid() {
		return nil, derrors.New(derrors.CodeValidation, "unknown document kind")
	}
	if strings.TrimSpace(body) == "" {
		return nil, derrors.New(derrors.CodeValidation, "template body cannot be empty")
	}
	if version < 1 {
		return nil, derrors.New(derrors.CodeValidation, "template version must be positive")
	}
	return &Template{
		ID:        templateID,
		Kind:      kind,
		Name:      strings.TrimSpace(name),
		Body:      body,
		Version:   version,
		Status:    TemplateStatusInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (t *Template) IsActive() bool { return t.Status == TemplateStatusActive }

// ApplyActivation marks the template active. The store is responsible for
// deactivating the previously active version of the same kind in the same
// transaction.
func (t *Template) ApplyActivation(now time.Time) {
	t.Status = TemplateStatusActive
	t.UpdatedAt = now
}

// ApplyDeactivation marks the template inactive.
func (t *Template) ApplyDeactivation(now time.Time) {
	t.Status = TemplateStatusInactive
	t.UpdatedAt = now
}
