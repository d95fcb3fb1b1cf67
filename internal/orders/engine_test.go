package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kicklover/go-sneaker-orders/internal/catalog"
)

var (
	owner    = Identity{UserID: "user-1"}
	stranger = Identity{UserID: "user-2"}
	admin    = Identity{UserID: "staff-1", Admin: true}
)

func newTestEngine(t *testing.T) (*Engine, *catalog.MemStore, *MemStore) {
	t.Helper()
	cs := catalog.NewMemStore()
	os := NewMemStore()
	return NewEngine(cs, os), cs, os
}

func seedItem(t *testing.T, cs *catalog.MemStore, id string, priceCents int, buckets ...catalog.SizeBucket) {
	t.Helper()
	err := cs.Create(context.Background(), &catalog.Item{
		ID:          id,
		Brand:       "Nike",
		Name:        "Air Max 90",
		Description: "classic runner",
		PriceCents:  priceCents,
		ImageURL:    "https://img.example.com/" + id + ".png",
		Category:    catalog.CategoryMen,
		Sizes:       buckets,
	})
	require.NoError(t, err)
}

func bucketQty(t *testing.T, cs *catalog.MemStore, id string, size int) int {
	t.Helper()
	it, err := cs.Get(context.Background(), id)
	require.NoError(t, err)
	b, ok := it.Bucket(size)
	require.True(t, ok, "item %s has no size %d", id, size)
	return b.Quantity
}

func placeReq(items ...LineItem) PlaceRequest {
	return PlaceRequest{
		Items: items,
		Shipping: ShippingAddress{
			Address: "1 Main St", City: "Amsterdam", PostalCode: "1011AB", Country: "NL",
		},
		PaymentMethod: "card",
	}
}

func TestPlaceReservesStock(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, owner.UserID, o.UserID)
	assert.Equal(t, 24000, o.TotalCents)
	assert.Equal(t, 0, bucketQty(t, cs, "sneaker-1", 42))

	// snapshot fields frozen from the catalog
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Air Max 90", o.Items[0].Name)
	assert.Equal(t, "Nike", o.Items[0].Brand)
	assert.Equal(t, 12000, o.Items[0].PriceCents)

	_, err = e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
	require.ErrorIs(t, err, ErrInsufficientStock)

	all, err := e.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2}))
	require.NoError(t, err)

	got, err := e.Cancel(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, 2, bucketQty(t, cs, "sneaker-1", 42))

	// the freed units are sellable again
	_, err = e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, 0, bucketQty(t, cs, "sneaker-1", 42))
}

func TestCancelTwiceRestoresOnce(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2}))
	require.NoError(t, err)

	_, err = e.Cancel(ctx, owner, o.ID)
	require.NoError(t, err)
	_, err = e.Cancel(ctx, owner, o.ID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, 2, bucketQty(t, cs, "sneaker-1", 42))
}

func TestAdvanceLifecycle(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 1})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
	require.NoError(t, err)

	o2, err := e.Advance(ctx, admin, o.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o2.Status)
	require.NotNil(t, o2.ConfirmedAt)
	assert.Nil(t, o2.ShippedAt)

	o3, err := e.Advance(ctx, admin, o.ID, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o3.Status)
	require.NotNil(t, o3.ShippedAt)

	// shipped goods are out of the cancellation window
	_, err = e.Cancel(ctx, owner, o.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 0, bucketQty(t, cs, "sneaker-1", 42))

	o4, err := e.Advance(ctx, admin, o.ID, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o4.Status)
	_, err = e.Cancel(ctx, owner, o.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
}

func TestAdvanceRejectsSkipping(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 1})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
	require.NoError(t, err)

	_, err = e.Advance(ctx, admin, o.ID, StatusShipped)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.Advance(ctx, admin, o.ID, StatusDelivered)
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := e.GetByID(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestAdvanceRejectsReapplyingCurrentStatus(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 1})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
	require.NoError(t, err)

	_, err = e.Advance(ctx, admin, o.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = e.Advance(ctx, admin, o.ID, StatusConfirmed)
	require.ErrorIs(t, err, ErrAlreadyInStatus)
}

func TestAdvanceRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 1})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
	require.NoError(t, err)

	_, err = e.Advance(ctx, owner, o.ID, StatusConfirmed)
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestAdvanceUnknownOrder(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	_, err := e.Advance(ctx, admin, "missing", StatusConfirmed)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelAuthorization(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2}))
	require.NoError(t, err)

	// non-owner, non-admin: rejected, nothing changes
	_, err = e.Cancel(ctx, stranger, o.ID)
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 0, bucketQty(t, cs, "sneaker-1", 42))
	got, err := e.GetByID(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	// an admin may cancel on the user's behalf
	_, err = e.Cancel(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, bucketQty(t, cs, "sneaker-1", 42))
}

func TestPlaceEmptyOrder(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Place(ctx, owner, placeReq())
	require.ErrorIs(t, err, ErrEmptyOrder)

	all, err := e.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPlaceInputErrors(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	_, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "ghost", Size: 42, Quantity: 1}))
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 44, Quantity: 1}))
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 0}))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	assert.Equal(t, 2, bucketQty(t, cs, "sneaker-1", 42))
}

func TestPlaceValidatesDeclaredTotal(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	req := placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2})
	req.DeclaredTotalCents = 1 // lowballed client total
	_, err := e.Place(ctx, owner, req)
	require.ErrorIs(t, err, ErrTotalMismatch)
	assert.Equal(t, 2, bucketQty(t, cs, "sneaker-1", 42))

	req.DeclaredTotalCents = 24000
	o, err := e.Place(ctx, owner, req)
	require.NoError(t, err)
	assert.Equal(t, 24000, o.TotalCents)
}

func TestPlaceIdempotentByExternalID(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	req := placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2})
	req.ExternalID = "checkout-77"

	first, err := e.Place(ctx, owner, req)
	require.NoError(t, err)
	second, err := e.Place(ctx, owner, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0, bucketQty(t, cs, "sneaker-1", 42)) // reserved once
}

func TestPlaceIsAtomicAcrossItems(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 5})
	seedItem(t, cs, "sneaker-2", 15000, catalog.SizeBucket{Size: 43, Quantity: 1})

	_, err := e.Place(ctx, owner, placeReq(
		LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 3},
		LineItem{ItemID: "sneaker-2", Size: 43, Quantity: 2},
	))
	require.ErrorIs(t, err, ErrInsufficientStock)

	// the passing first line item must not leave a partial decrement behind
	assert.Equal(t, 5, bucketQty(t, cs, "sneaker-1", 42))
	assert.Equal(t, 1, bucketQty(t, cs, "sneaker-2", 43))
}

func TestPlaceSumsDuplicateLineItems(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	// 1 + 2 against a bucket of 2: the combined demand is what counts
	_, err := e.Place(ctx, owner, placeReq(
		LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1},
		LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2},
	))
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, bucketQty(t, cs, "sneaker-1", 42))

	require.NoError(t, cs.Restock(ctx, "sneaker-1", 42, 1))
	o, err := e.Place(ctx, owner, placeReq(
		LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1},
		LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 0, bucketQty(t, cs, "sneaker-1", 42))
	assert.Equal(t, 36000, o.TotalCents)
}

func TestConcurrentPlaceNeverOversells(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 5})

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 5, won)
	assert.Equal(t, 0, bucketQty(t, cs, "sneaker-1", 42))
}

func TestConcurrentCancelRestoresOnce(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 2}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.Cancel(ctx, owner, o.ID)
		}(i)
	}
	wg.Wait()

	var ok, already int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyCancelled):
			already++
		default:
			t.Fatalf("unexpected cancel error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, already)
	assert.Equal(t, 2, bucketQty(t, cs, "sneaker-1", 42))
}

func TestCancelAfterCatalogDeleteDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})
	seedItem(t, cs, "sneaker-2", 15000, catalog.SizeBucket{Size: 43, Quantity: 2})

	o, err := e.Place(ctx, owner, placeReq(
		LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1},
		LineItem{ItemID: "sneaker-2", Size: 43, Quantity: 1},
	))
	require.NoError(t, err)

	// the first item disappears from the catalog before cancellation
	require.NoError(t, cs.Delete(ctx, "sneaker-1"))

	got, err := e.Cancel(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	// the surviving item is still restored
	assert.Equal(t, 2, bucketQty(t, cs, "sneaker-2", 43))
}

func TestRestoreIsExactInverse(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000,
		catalog.SizeBucket{Size: 42, Quantity: 4},
		catalog.SizeBucket{Size: 43, Quantity: 7})

	o, err := e.Place(ctx, owner, placeReq(
		LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 3},
		LineItem{ItemID: "sneaker-1", Size: 43, Quantity: 2},
	))
	require.NoError(t, err)

	// an unrelated restock between reservation and restoration must survive
	require.NoError(t, cs.Restock(ctx, "sneaker-1", 43, 10))

	_, err = e.Cancel(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, bucketQty(t, cs, "sneaker-1", 42))
	assert.Equal(t, 17, bucketQty(t, cs, "sneaker-1", 43))
}

func TestSnapshotSurvivesCatalogEdits(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 2})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
	require.NoError(t, err)

	it, err := cs.Get(ctx, "sneaker-1")
	require.NoError(t, err)
	it.PriceCents = 99999
	it.Name = "Air Max 90 SE"
	require.NoError(t, cs.Update(ctx, it))

	got, err := e.GetByID(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 12000, got.Items[0].PriceCents)
	assert.Equal(t, "Air Max 90", got.Items[0].Name)
	assert.Equal(t, 12000, got.TotalCents)
}

func TestReadAuthorization(t *testing.T) {
	ctx := context.Background()
	e, cs, _ := newTestEngine(t)
	seedItem(t, cs, "sneaker-1", 12000, catalog.SizeBucket{Size: 42, Quantity: 4})

	o, err := e.Place(ctx, owner, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
	require.NoError(t, err)
	_, err = e.Place(ctx, stranger, placeReq(LineItem{ItemID: "sneaker-1", Size: 42, Quantity: 1}))
	require.NoError(t, err)

	// owners and admins may read, strangers may not
	_, err = e.GetByID(ctx, owner, o.ID)
	require.NoError(t, err)
	_, err = e.GetByID(ctx, admin, o.ID)
	require.NoError(t, err)
	_, err = e.GetByID(ctx, stranger, o.ID)
	require.ErrorIs(t, err, ErrNotAuthorized)

	// listing another user's orders needs admin
	_, err = e.ListForUser(ctx, stranger, owner.UserID)
	require.ErrorIs(t, err, ErrNotAuthorized)
	mine, err := e.ListForUser(ctx, owner, owner.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := e.ListForUser(ctx, admin, owner.UserID)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	_, err = e.ListAll(ctx, owner)
	require.ErrorIs(t, err, ErrNotAuthorized)
	all, err := e.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
