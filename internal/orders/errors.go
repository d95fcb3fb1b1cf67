package orders

import "errors"

// Client input errors. Reported verbatim, never retried.
var (
	ErrEmptyOrder        = errors.New("order has no line items")
	ErrInvalidQuantity   = errors.New("line item quantity must be positive")
	ErrItemNotFound      = errors.New("catalog item not found")
	ErrInvalidSize       = errors.New("size not offered for item")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTotalMismatch     = errors.New("declared total does not match catalog pricing")
)

// Precondition and authorization errors. Reported, never retried.
var (
	ErrNotFound          = errors.New("order not found")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyInStatus   = errors.New("order already in requested status")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrNotCancellable    = errors.New("order can no longer be cancelled")
)

// ErrStoreUnavailable surfaces after bounded retries of a transient store
// failure. Never conflated with stock insufficiency.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrConflict is the order store CAS sentinel: the status changed between
// read and write.
var ErrConflict = errors.New("order modified concurrently")
