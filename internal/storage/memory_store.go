package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process DocumentStore used by tests and by the
// "memory" backend. Its contents are lost when the process exits.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
	now         func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Document),
		now:         time.Now,
	}
}

func (s *MemoryStore) Insert(_ context.Context, collection string, doc Document) (string, error) {
	doc, err := prepare(collection, doc, s.now())
	if err != nil {
		return "", err
	}
	doc.Data = append([]byte(nil), doc.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], doc)
	return doc.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.collections[collection] {
		if doc.ID == id {
			doc.Data = append([]byte(nil), doc.Data...)
			return &doc, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Query(_ context.Context, collection string, filter Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []Document
	for _, doc := range s.collections[collection] {
		if filter.matches(doc) {
			doc.Data = append([]byte(nil), doc.Data...)
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
