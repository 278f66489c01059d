// Package artifact stores rendered document bytes and hands back opaque
// references. Production deployments plug an object store in behind the
// Store interface; the in-memory implementation backs tests and dev mode.
package artifact

import (
	"context"
	"fmt"
	"sync"

	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
)

// Store persists rendered artifacts.
type Store interface {
	// Put stores the artifact bytes for a document and returns an opaque
	// reference that can later be resolved with Get.
	Put(ctx context.Context, docID id.DocumentID, data []byte) (string, error)
	// Get resolves a reference produced by Put.
	Get(ctx context.Context, ref string) ([]byte, error)
}

// InMemory keeps artifacts in a map. Refs are deterministic per document
// so a re-render overwrites rather than leaks.
type InMemory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewInMemory creates an empty in-memory artifact store.
func NewInMemory() *InMemory {
	return &InMemory{blobs: make(map[string][]byte)}
}

func (s *InMemory) Put(_ context.Context, docID id.DocumentID, data []byte) (string, error) {
	ref := fmt.Sprintf("mem://artifacts/%s", docID)
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[ref] = buf
	return ref, nil
}

func (s *InMemory) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
