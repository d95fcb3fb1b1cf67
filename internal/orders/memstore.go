package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process order store with the same CAS semantics as the
// Postgres repo. Used by tests and local development.
type MemStore struct {
	mu         sync.RWMutex
	orders     map[string]Order
	byExternal map[string]string
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		orders:     make(map[string]Order),
		byExternal: make(map[string]string),
	}
}

func copyOrder(o Order) Order {
	cp := o
	cp.Items = append([]LineItem(nil), o.Items...)
	return cp
}

func (m *MemStore) Get(ctx context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyOrder(o)
	return &cp, nil
}

func (m *MemStore) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byExternal[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyOrder(m.orders[id])
	return &cp, nil
}

func (m *MemStore) Create(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	m.orders[o.ID] = copyOrder(*o)
	if o.ExternalID != "" {
		m.byExternal[o.ExternalID] = o.ID
	}
	return nil
}

func (m *MemStore) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sortByCreated(out)
	return out, nil
}

func (m *MemStore) ListAll(ctx context.Context) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, copyOrder(o))
	}
	sortByCreated(out)
	return out, nil
}

func sortByCreated(out []Order) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func (m *MemStore) CompareAndSwapStatus(ctx context.Context, id string, expected, next Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != expected {
		return ErrConflict
	}
	o.Status = next
	stamp := at
	switch next {
	case StatusConfirmed:
		o.ConfirmedAt = &stamp
	case StatusShipped:
		o.ShippedAt = &stamp
	case StatusDelivered:
		o.DeliveredAt = &stamp
	case StatusCancelled:
		o.CancelledAt = &stamp
	}
	o.UpdatedAt = at
	m.orders[id] = o
	return nil
}
