package document

import (
	"context"
	"sort"
	"strings"
	"sync"

	"labcert/internal/document/models"
	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
)

type sourceKey struct {
	kind       models.Kind
	sourceKind models.SourceKind
	sourceID   int64
}

// InMemory is a mutex-guarded document store enforcing the same unique
// constraints as the postgres schema: global formatted number
// (case-insensitive), global verification code, and at most one
// non-revoked document per (kind, source kind, source id).
type InMemory struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*models.Document
	byNumber  map[string]id.DocumentID // key: uppercased number
	byCode    map[string]id.DocumentID
	liveBySrc map[sourceKey]id.DocumentID
}

// NewInMemory creates an empty in-memory document store.
func NewInMemory() *InMemory {
	return &InMemory{
		documents: make(map[id.DocumentID]*models.Document),
		byNumber:  make(map[string]id.DocumentID),
		byCode:    make(map[string]id.DocumentID),
		liveBySrc: make(map[sourceKey]id.DocumentID),
	}
}

func srcKey(d *models.Document) sourceKey {
	return sourceKey{kind: d.Kind, sourceKind: d.Source.Kind, sourceID: d.Source.ID}
}

// Create inserts a document, enforcing all uniqueness constraints under
// one lock acquisition so concurrent issuance attempts cannot both pass.
func (s *InMemory) Create(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[d.ID]; ok {
		return sentinel.ErrConflict
	}
	if !d.IsRevoked {
		if _, ok := s.liveBySrc[srcKey(d)]; ok {
			return ErrDuplicateSource
		}
	}
	numKey := strings.ToUpper(d.FormattedNumber)
	if _, ok := s.byNumber[numKey]; ok {
		return ErrNumberTaken
	}
	if _, ok := s.byCode[d.VerificationCode]; ok {
		return ErrCodeTaken
	}

	cp := *d
	s.documents[d.ID] = &cp
	s.byNumber[numKey] = d.ID
	s.byCode[d.VerificationCode] = d.ID
	if !d.IsRevoked {
		s.liveBySrc[srcKey(d)] = d.ID
	}
	return nil
}

// FindByID returns a document by ID.
func (s *InMemory) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// FindByNumber matches a formatted number case-insensitively.
func (s *InMemory) FindByNumber(ctx context.Context, number string) (*models.Document, error) {
	s.mu.RLock()
	docID, ok := s.byNumber[strings.ToUpper(number)]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, docID)
}

// FindByCode matches a verification code case-sensitively.
func (s *InMemory) FindByCode(ctx context.Context, code string) (*models.Document, error) {
	s.mu.RLock()
	docID, ok := s.byCode[code]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, docID)
}

// FindLiveBySource returns the non-revoked document for a source, if any.
func (s *InMemory) FindLiveBySource(ctx context.Context, kind models.Kind, source models.SourceRef) (*models.Document, error) {
	s.mu.RLock()
	docID, ok := s.liveBySrc[sourceKey{kind: kind, sourceKind: source.Kind, sourceID: source.ID}]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, docID)
}

// Execute atomically validates and mutates a document while the store
// lock is held, mirroring the postgres store's SELECT FOR UPDATE flow.
func (s *InMemory) Execute(
	_ context.Context,
	docID id.DocumentID,
	validate func(*models.Document) error,
	mutate func(*models.Document),
) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	wasLive := !d.IsRevoked
	mutate(d)
	if wasLive && d.IsRevoked {
		delete(s.liveBySrc, srcKey(d))
	}
	cp := *d
	return &cp, nil
}

// SetArtifactRef records the rendered artifact location.
func (s *InMemory) SetArtifactRef(_ context.Context, docID id.DocumentID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[docID]
	if !ok {
		return sentinel.ErrNotFound
	}
	d.ApplyArtifactRef(ref)
	return nil
}

// ListByKind returns documents of a kind ordered by issue time.
func (s *InMemory) ListByKind(_ context.Context, kind models.Kind) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, d := range s.documents {
		if d.Kind == kind {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

// Count reports the total number of stored documents. Test helper for
// asserting failed issuance created zero rows.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}
