package internal

import (
	"context"
	"strings"
	"sync"
)

// BlobStore keeps binary field payloads outside the record documents.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the payload stored under key; ok is false when nothing is stored.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// blobKey builds the object key of one binary field of one record.
func blobKey(prefix, model, id, field string) string {
	parts := make([]string, 0, 4)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, model, id, field)
	return strings.Join(parts, "/")
}

// MemoryBlobStore is a BlobStore held in process memory.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Len returns the number of stored payloads.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
