package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("catalog item not found")
	// ErrConflict is returned by CompareAndSwapSizeQuantity when the bucket
	// quantity no longer matches the expected value.
	ErrConflict = errors.New("catalog item modified concurrently")
)

// Store is the catalog item store contract. Mutations of stock quantities go
// through CompareAndSwapSizeQuantity (the order engine) or Restock (additive,
// catalog management); everything else is plain CRUD.
type Store interface {
	Get(ctx context.Context, id string) (*Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Item, error)

	// Restock adds qty units to the bucket. Additive only.
	Restock(ctx context.Context, id string, size, qty int) error

	// CompareAndSwapSizeQuantity sets the bucket quantity to next only if it
	// currently equals expected. ErrConflict on mismatch, ErrNotFound when the
	// item or bucket does not exist.
	CompareAndSwapSizeQuantity(ctx context.Context, id string, size, expected, next int) error
}
