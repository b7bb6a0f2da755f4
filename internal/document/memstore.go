package document

import (
	"context"
	"net/http"
	"sync"

	apperrors "github.com/lanternsearch/lantern/pkg/errors"
)

// MemStore is an in-memory Store used by tests and embedded deployments.
type MemStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]Document)}
}

func (s *MemStore) Put(_ context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound,
			"document %q not found", id)
	}
	return d, nil
}

func (s *MemStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *MemStore) ForEach(_ context.Context, fn func(Document) error) error {
	s.mu.RLock()
	// Copy ids so fn can call back into the store without deadlocking.
	snapshot := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		snapshot = append(snapshot, d)
	}
	s.mu.RUnlock()
	for _, d := range snapshot {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *MemStore) Close() error { return nil }
