package service

import (
	"context"
	"errors"

	"labcert/internal/document/models"
	id "labcert/pkg/domain"
	derrors "labcert/pkg/domain-errors"
	"labcert/pkg/platform/sentinel"
	"labcert/pkg/requestcontext"
)

// CreateTemplate stores a new template version for a kind. Versions are
// assigned monotonically per kind; the new version starts inactive and
// goes live through ActivateTemplate.
func (s *Service) CreateTemplate(ctx context.Context, kind models.Kind, name, body string) (*models.Template, error) {
	existing, err := s.templates.ListByKind(ctx, kind)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to list template versions")
	}
	version := 1
	for _, t := range existing {
		if t.Version >= version {
			version = t.Version + 1
		}
	}

	tmpl, err := models.NewTemplate(id.NewTemplateID(), kind, name, body, version, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, tmpl); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to create template")
	}
	return tmpl, nil
}

// ActivateTemplate makes the given version the single active template
// for its kind, deactivating the previous active version atomically.
func (s *Service) ActivateTemplate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	tmpl, err := s.templates.Activate(ctx, templateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "template not found")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to activate template")
	}
	return tmpl, nil
}

// DeactivateTemplate retires a template version. Issuance for the kind
// fails with no-active-template until another version is activated.
func (s *Service) DeactivateTemplate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	tmpl, err := s.templates.Deactivate(ctx, templateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "template not found")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to deactivate template")
	}
	return tmpl, nil
}

// ListTemplates returns all versions for a kind.
func (s *Service) ListTemplates(ctx context.Context, kind models.Kind) ([]*models.Template, error) {
	if !kind.IsValid() {
		return nil, derrors.New(derrors.CodeValidation, "unknown document kind")
	}
	tmpls, err := s.templates.ListByKind(ctx, kind)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to list templates")
	}
	return tmpls, nil
}
