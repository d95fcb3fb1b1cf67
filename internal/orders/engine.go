package orders

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/kicklover/go-sneaker-orders/internal/catalog"
)

// Engine is the order lifecycle engine: it is the only component that touches
// the catalog and order stores together, and it supplies the cross-record
// coordination (per-bucket and per-order serialization, two-phase
// reservation, bounded retries) the stores themselves do not.
type Engine struct {
	catalog catalog.Store
	orders  Store

	stockLocks *keyedMutex // key: itemID#size
	orderLocks *keyedMutex // key: order id

	maxAttempts int
	baseBackoff time.Duration
	now         func() time.Time
}

func NewEngine(c catalog.Store, o Store) *Engine {
	return &Engine{
		catalog:     c,
		orders:      o,
		stockLocks:  newKeyedMutex(),
		orderLocks:  newKeyedMutex(),
		maxAttempts: 4,
		baseBackoff: 50 * time.Millisecond,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// callStore runs op, retrying transient failures with exponential backoff and
// jitter before surfacing ErrStoreUnavailable. Domain sentinels (not found,
// CAS conflict) pass through untouched: a lost race is not an outage, and
// neither is ever read as stock insufficiency.
func (e *Engine) callStore(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		err = op()
		if err == nil || !transient(err) {
			return err
		}
		if attempt == e.maxAttempts-1 {
			break
		}
		if serr := sleepCtx(ctx, backoffDelay(e.baseBackoff, attempt)); serr != nil {
			break
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func transient(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrConflict):
		return false
	}
	return true
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base << attempt
	return d + time.Duration(rand.Int63n(int64(d/2)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) getItem(ctx context.Context, id string) (*catalog.Item, error) {
	var it *catalog.Item
	err := e.callStore(ctx, func() error {
		var err error
		it, err = e.catalog.Get(ctx, id)
		return err
	})
	return it, err
}

func (e *Engine) getOrder(ctx context.Context, id string) (*Order, error) {
	var o *Order
	err := e.callStore(ctx, func() error {
		var err error
		o, err = e.orders.Get(ctx, id)
		return err
	})
	return o, err
}

// PlaceRequest carries client input for order placement. Only ItemID, Size
// and Quantity of each line item are trusted; name, brand, image and price
// are snapshotted from the catalog inside Place.
type PlaceRequest struct {
	ExternalID         string
	Items              []LineItem
	Shipping           ShippingAddress
	PaymentMethod      string
	DeclaredTotalCents int
}

// Place validates the request, reserves stock for every line item
// all-or-nothing, and persists the order in Pending. On any reservation
// failure no order is persisted and stock is unchanged. A non-empty
// ExternalID makes placement idempotent: a retry returns the original order
// instead of reserving twice.
func (e *Engine) Place(ctx context.Context, caller Identity, req PlaceRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, li := range req.Items {
		if li.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %s size %d", ErrInvalidQuantity, li.ItemID, li.Size)
		}
	}

	if req.ExternalID != "" {
		existing, err := e.orders.GetByExternalID(ctx, req.ExternalID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	plan := planDemands(req.Items)
	e.stockLocks.lockAll(plan.keys)
	defer e.stockLocks.unlockAll(plan.keys)

	snap, err := e.validateStock(ctx, req.Items, plan)
	if err != nil {
		return nil, err
	}

	lines := make([]LineItem, len(req.Items))
	total := 0
	for i, li := range req.Items {
		it := snap[li.ItemID]
		lines[i] = LineItem{
			ItemID:     it.ID,
			Name:       it.Name,
			Brand:      it.Brand,
			ImageURL:   it.ImageURL,
			Size:       li.Size,
			Quantity:   li.Quantity,
			PriceCents: it.PriceCents,
		}
		total += it.PriceCents * li.Quantity
	}
	// The catalog is the source of truth for pricing. A client-declared total
	// is checked, never trusted.
	if req.DeclaredTotalCents != 0 && req.DeclaredTotalCents != total {
		return nil, fmt.Errorf("%w: declared %d, catalog %d", ErrTotalMismatch, req.DeclaredTotalCents, total)
	}

	if err := e.commitStock(ctx, plan, snap); err != nil {
		return nil, err
	}

	now := e.now()
	order := &Order{
		ID:            uuid.NewString(),
		ExternalID:    req.ExternalID,
		UserID:        caller.UserID,
		Items:         lines,
		Shipping:      req.Shipping,
		PaymentMethod: req.PaymentMethod,
		TotalCents:    total,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.callStore(ctx, func() error { return e.orders.Create(ctx, order) }); err != nil {
		// a reservation must not outlive a failed persist
		e.restoreDemands(ctx, plan)
		return nil, err
	}
	return order, nil
}

// Advance moves the order one step forward. Only admins drive forward
// transitions, only to the immediate successor, and re-applying the current
// status is rejected rather than silently accepted.
func (e *Engine) Advance(ctx context.Context, caller Identity, orderID string, target Status) (*Order, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("%w: forward transitions require an admin caller", ErrNotAuthorized)
	}
	if !target.Valid() || target == StatusPending || target == StatusCancelled {
		return nil, fmt.Errorf("%w: cannot advance to %s", ErrInvalidTransition, target)
	}

	e.orderLocks.lock(orderID)
	defer e.orderLocks.unlock(orderID)

	o, err := e.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == target {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInStatus, target)
	}
	if !CanTransition(o.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	at := e.now()
	if err := e.casStatus(ctx, orderID, o.Status, target, at); err != nil {
		return nil, err
	}
	applyStatus(o, target, at)
	return o, nil
}

// Cancel restores every reserved unit and marks the order Cancelled. The
// status CAS is the commit point: restoration runs first, inside the order's
// critical section, so a retried cancel re-reads the status and can never
// restore twice.
func (e *Engine) Cancel(ctx context.Context, caller Identity, orderID string) (*Order, error) {
	e.orderLocks.lock(orderID)
	defer e.orderLocks.unlock(orderID)

	o, err := e.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != caller.UserID && !caller.Admin {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrNotAuthorized)
	}
	if o.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !Cancellable(o.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrNotCancellable, o.Status)
	}

	plan := planDemands(o.Items)
	e.stockLocks.lockAll(plan.keys)
	e.restoreDemands(ctx, plan)
	e.stockLocks.unlockAll(plan.keys)

	at := e.now()
	if err := e.casStatus(ctx, orderID, o.Status, StatusCancelled, at); err != nil {
		return nil, err
	}
	applyStatus(o, StatusCancelled, at)
	return o, nil
}

// casStatus performs the guarded status write. Every engine status write
// serializes on the order lock, so a CAS conflict means an out-of-band
// writer; it is surfaced as unavailability, not retried blindly.
func (e *Engine) casStatus(ctx context.Context, orderID string, expected, next Status, at time.Time) error {
	err := e.callStore(ctx, func() error {
		return e.orders.CompareAndSwapStatus(ctx, orderID, expected, next, at)
	})
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func applyStatus(o *Order, s Status, at time.Time) {
	o.Status = s
	stamp := at
	switch s {
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
}

// GetByID returns the order if the caller owns it or is an admin.
func (e *Engine) GetByID(ctx context.Context, caller Identity, orderID string) (*Order, error) {
	o, err := e.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != caller.UserID && !caller.Admin {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrNotAuthorized)
	}
	return o, nil
}

// ListForUser lists a user's orders. Non-admins may only list their own.
func (e *Engine) ListForUser(ctx context.Context, caller Identity, userID string) ([]Order, error) {
	if userID == "" {
		userID = caller.UserID
	}
	if userID != caller.UserID && !caller.Admin {
		return nil, fmt.Errorf("%w: cannot list another user's orders", ErrNotAuthorized)
	}
	var out []Order
	err := e.callStore(ctx, func() error {
		var err error
		out, err = e.orders.ListForUser(ctx, userID)
		return err
	})
	return out, err
}

// ListAll is admin-only.
func (e *Engine) ListAll(ctx context.Context, caller Identity) ([]Order, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("%w: listing all orders requires an admin caller", ErrNotAuthorized)
	}
	var out []Order
	err := e.callStore(ctx, func() error {
		var err error
		out, err = e.orders.ListAll(ctx)
		return err
	})
	return out, err
}
