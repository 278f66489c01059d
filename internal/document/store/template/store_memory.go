package template

import (
	"context"
	"sync"

	"labcert/internal/document/models"
	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
	"labcert/pkg/requestcontext"
)

// InMemory is a mutex-guarded template store for tests and dev mode.
type InMemory struct {
	mu        sync.RWMutex
	templates map[id.TemplateID]*models.Template
}

// NewInMemory creates an empty in-memory template store.
func NewInMemory() *InMemory {
	return &InMemory{templates: make(map[id.TemplateID]*models.Template)}
}

// Create stores a new template version.
func (s *InMemory) Create(_ context.Context, t *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

// FindByID returns a template by ID.
func (s *InMemory) FindByID(_ context.Context, templateID id.TemplateID) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// FindActiveByKind returns the single active template for a kind.
func (s *InMemory) FindActiveByKind(_ context.Context, kind models.Kind) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.templates {
		if t.Kind == kind && t.IsActive() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Activate marks the template active and deactivates any other active
// template of the same kind, atomically under the store lock. This keeps
// the exactly-one-active-per-kind rule that issuance depends on.
func (s *InMemory) Activate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	now := requestcontext.Now(ctx)
	for _, t := range s.templates {
		if t.Kind == target.Kind && t.IsActive() && t.ID != templateID {
			t.ApplyDeactivation(now)
		}
	}
	target.ApplyActivation(now)
	cp := *target
	return &cp, nil
}

// Deactivate marks the template inactive.
func (s *InMemory) Deactivate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	t.ApplyDeactivation(requestcontext.Now(ctx))
	cp := *t
	return &cp, nil
}

// ListByKind returns all template versions for a kind.
func (s *InMemory) ListByKind(_ context.Context, kind models.Kind) ([]*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Template
	for _, t := range s.templates {
		if t.Kind == kind {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
