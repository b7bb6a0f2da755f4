package index

import (
	"context"
	"sync"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/settings"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
	"github.com/lanternsearch/lantern/pkg/metrics"
)

// Registry holds the live indexes by name. Creation is idempotent per
// name; each created index gets its own mutation goroutine tied to the
// registry's context.
type Registry struct {
	mu        sync.RWMutex
	indexes   map[string]*Index
	queueSize int
	metrics   *metrics.Metrics
	newStore  func(name string) (document.Store, error)
}

// NewRegistry builds a registry that backs each index with a store from
// newStore.
func NewRegistry(queueSize int, m *metrics.Metrics, newStore func(name string) (document.Store, error)) *Registry {
	return &Registry{
		indexes:   make(map[string]*Index),
		queueSize: queueSize,
		metrics:   m,
		newStore:  newStore,
	}
}

// GetOrCreate returns the named index, creating and starting it with the
// given settings when missing. Settings are ignored for an existing index.
func (r *Registry) GetOrCreate(ctx context.Context, name string, s settings.Settings) (*Index, error) {
	r.mu.RLock()
	idx, ok := r.indexes[name]
	r.mu.RUnlock()
	if ok {
		return idx, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[name]; ok {
		return idx, nil
	}
	store, err := r.newStore(name)
	if err != nil {
		return nil, err
	}
	idx = New(name, store, s, r.queueSize, r.metrics)
	go idx.Run(ctx)
	r.indexes[name] = idx
	return idx, nil
}

// Get returns the named index or ErrIndexNotFound.
func (r *Registry) Get(name string) (*Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx, ok := r.indexes[name]; ok {
		return idx, nil
	}
	return nil, apperrors.Newf(apperrors.ErrIndexNotFound, 404, "index %q does not exist", name)
}

// Names returns the registered index names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.indexes))
	for name := range r.indexes {
		out = append(out, name)
	}
	return out
}
