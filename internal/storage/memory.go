// Package storage contains the in-memory persistence layer: a document
// catalog, a schema store and a blob store. They back the "memory" backends
// and the package tests of the services above them.
package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// MemoryCatalog keeps catalog entries in insertion order. RWMutex lets
// concurrent List and Get calls share the read lock.
type MemoryCatalog struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]model.CatalogEntry
}

// NewMemoryCatalog constructs a MemoryCatalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		entries: make(map[string]model.CatalogEntry),
	}
}

// Insert assigns a fresh id and stores a copy of entry.
func (m *MemoryCatalog) Insert(ctx context.Context, entry *model.CatalogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.NewString()
	m.entries[entry.ID] = *entry
	m.order = append(m.order, entry.ID)
	return nil
}

// Get returns a copy of the entry. Ids that are not UUIDs can never have
// been issued, so they report ErrNotFound like unknown ones.
func (m *MemoryCatalog) Get(ctx context.Context, id string) (*model.CatalogEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NotFoundf("document %q", id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, model.NotFoundf("document %q", id)
	}
	return &entry, nil
}

// List returns every entry in insertion order.
func (m *MemoryCatalog) List(ctx context.Context) ([]model.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.CatalogEntry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id])
	}
	return out, nil
}

// FindByName returns the newest entry with the given name.
func (m *MemoryCatalog) FindByName(ctx context.Context, name string) (*model.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		entry := m.entries[m.order[i]]
		if entry.Name == name {
			return &entry, nil
		}
	}
	return nil, model.NotFoundf("document named %q", name)
}
