package storage

import (
	"context"
	"sync"

	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
)

// MemoryStore keeps blobs in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

var _ outbound.BlobStore = (*MemoryStore)(nil)

// Put implements outbound.BlobStore
func (s *MemoryStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	key := ContentKey(data, contentType)

	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.blobs[key] = stored
	s.mu.Unlock()
	return "mem://" + key, nil
}

// Get implements outbound.BlobStore
func (s *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	u, err := parseRef(ref, "mem")
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.blobs[u.Host+u.Path]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBlobNotFound
	}
	return data, nil
}
