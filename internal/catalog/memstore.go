package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process catalog store with the same CAS semantics as the
// Postgres repo. Used by tests and local development.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]Item
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]Item)}
}

func copyItem(it Item) Item {
	cp := it
	cp.Sizes = append([]SizeBucket(nil), it.Sizes...)
	return cp
}

func (m *MemStore) Get(ctx context.Context, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyItem(it)
	return &cp, nil
}

func (m *MemStore) Create(ctx context.Context, it *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now
	m.items[it.ID] = copyItem(*it)
	return nil
}

func (m *MemStore) Update(ctx context.Context, it *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; !ok {
		return ErrNotFound
	}
	it.UpdatedAt = time.Now().UTC()
	m.items[it.ID] = copyItem(*it)
	return nil
}

func (m *MemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemStore) List(ctx context.Context) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, copyItem(it))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Brand != out[j].Brand {
			return out[i].Brand < out[j].Brand
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemStore) Restock(ctx context.Context, id string, size, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	for i := range it.Sizes {
		if it.Sizes[i].Size == size {
			it.Sizes[i].Quantity += qty
			it.UpdatedAt = time.Now().UTC()
			m.items[id] = it
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemStore) CompareAndSwapSizeQuantity(ctx context.Context, id string, size, expected, next int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	for i := range it.Sizes {
		if it.Sizes[i].Size != size {
			continue
		}
		if it.Sizes[i].Quantity != expected {
			return ErrConflict
		}
		it.Sizes[i].Quantity = next
		it.UpdatedAt = time.Now().UTC()
		m.items[id] = it
		return nil
	}
	return ErrNotFound
}
