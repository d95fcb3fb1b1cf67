package orders

import (
	"context"
	"time"
)

// Store is the order store contract. Status mutations go through
// CompareAndSwapStatus so two engine workers can never both win a write
// against a stale read.
type Store interface {
	Get(ctx context.Context, id string) (*Order, error)
	GetByExternalID(ctx context.Context, externalID string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	ListForUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)

	// CompareAndSwapStatus moves the order from expected to next and stamps
	// the timestamp column belonging to next with at. ErrConflict when the
	// current status is no longer expected, ErrNotFound when the order is
	// absent.
	CompareAndSwapStatus(ctx context.Context, id string, expected, next Status, at time.Time) error
}
