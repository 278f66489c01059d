package serial

import (
	"context"
	"strings"
	"sync"

	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
	"labcert/pkg/requestcontext"
)

// InMemory is a mutex-guarded serial binding store.
type InMemory struct {
	mu       sync.RWMutex
	byResult map[id.LabResultID]*Binding
	bySerial map[string]id.LabResultID
}

// NewInMemory creates an empty in-memory binding store.
func NewInMemory() *InMemory {
	return &InMemory{
		byResult: make(map[id.LabResultID]*Binding),
		bySerial: make(map[string]id.LabResultID),
	}
}

// Create inserts a binding, rejecting a second binding for the same lab
// result or a reused serial.
func (s *InMemory) Create(_ context.Context, b *Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byResult[b.LabResultID]; ok {
		return sentinel.ErrConflict
	}
	key := strings.ToUpper(b.Serial)
	if _, ok := s.bySerial[key]; ok {
		return sentinel.ErrConflict
	}
	cp := *b
	s.byResult[b.LabResultID] = &cp
	s.bySerial[key] = b.LabResultID
	return nil
}

// FindByLabResult returns the binding for a lab result.
func (s *InMemory) FindByLabResult(_ context.Context, labResultID id.LabResultID) (*Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byResult[labResultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// FindBySerial resolves a serial case-insensitively.
func (s *InMemory) FindBySerial(ctx context.Context, serial string) (*Binding, error) {
	s.mu.RLock()
	labResultID, ok := s.bySerial[strings.ToUpper(serial)]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByLabResult(ctx, labResultID)
}

// MarkPrinted sets the first-print timestamp only if unset.
func (s *InMemory) MarkPrinted(ctx context.Context, labResultID id.LabResultID) (*Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byResult[labResultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if b.FirstPrintedAt == nil {
		now := requestcontext.Now(ctx)
		b.FirstPrintedAt = &now
	}
	cp := *b
	return &cp, nil
}

// Revoke sets the tombstone flag.
func (s *InMemory) Revoke(_ context.Context, labResultID id.LabResultID) (*Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byResult[labResultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	b.IsRevoked = true
	cp := *b
	return &cp, nil
}
