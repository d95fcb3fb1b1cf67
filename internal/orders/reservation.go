package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/kicklover/go-sneaker-orders/internal/catalog"
)

type demand struct {
	itemID string
	size   int
}

func (d demand) key() string { return fmt.Sprintf("%s#%d", d.itemID, d.size) }

// demandPlan aggregates a line-item sequence into one entry per distinct
// (item, size) bucket. Duplicate line items for the same bucket are summed so
// the sufficiency check sees their combined demand.
type demandPlan struct {
	ordered []demand // first-appearance order
	need    map[demand]int
	keys    []string // sorted lock keys, deduplicated
}

func planDemands(items []LineItem) demandPlan {
	p := demandPlan{need: make(map[demand]int, len(items))}
	for _, li := range items {
		d := demand{itemID: li.ItemID, size: li.Size}
		if _, seen := p.need[d]; !seen {
			p.ordered = append(p.ordered, d)
			p.keys = append(p.keys, d.key())
		}
		p.need[d] += li.Quantity
	}
	sort.Strings(p.keys)
	return p
}

// validateStock is phase one of the reservation: every line item is checked
// against a consistent snapshot before any decrement is applied. The caller
// must hold the stock locks for plan.keys. Line items are walked in input
// order so the first offending one is the one reported.
func (e *Engine) validateStock(ctx context.Context, items []LineItem, plan demandPlan) (map[string]*catalog.Item, error) {
	snap := make(map[string]*catalog.Item)
	running := make(map[demand]int, len(plan.need))

	for _, li := range items {
		it, ok := snap[li.ItemID]
		if !ok {
			var err error
			it, err = e.getItem(ctx, li.ItemID)
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrItemNotFound, li.ItemID)
			}
			if err != nil {
				return nil, err
			}
			snap[li.ItemID] = it
		}
		b, ok := it.Bucket(li.Size)
		if !ok {
			return nil, fmt.Errorf("%w: item %s has no size %d", ErrInvalidSize, li.ItemID, li.Size)
		}
		d := demand{itemID: li.ItemID, size: li.Size}
		running[d] += li.Quantity
		if running[d] > b.Quantity {
			return nil, fmt.Errorf("%w: item %s size %d: requested %d, available %d",
				ErrInsufficientStock, li.ItemID, li.Size, running[d], b.Quantity)
		}
	}
	return snap, nil
}

// commitStock is phase two: apply every decrement via CAS against the phase
// one snapshot. A CAS conflict means an out-of-band mutation (restock,
// catalog edit) raced us between read and write; re-read, re-validate and
// retry. If the re-read shows a shortfall, every decrement applied so far is
// rolled back and the whole order fails.
func (e *Engine) commitStock(ctx context.Context, plan demandPlan, snap map[string]*catalog.Item) error {
	var applied []demand

	rollback := func() {
		e.restorePartial(ctx, applied, plan.need)
	}

	for _, d := range plan.ordered {
		b, _ := snap[d.itemID].Bucket(d.size)
		expected := b.Quantity
		need := plan.need[d]

		var err error
		for attempt := 0; attempt < e.maxAttempts; attempt++ {
			err = e.callStore(ctx, func() error {
				return e.catalog.CompareAndSwapSizeQuantity(ctx, d.itemID, d.size, expected, expected-need)
			})
			if err == nil {
				applied = append(applied, d)
				break
			}
			if !errors.Is(err, catalog.ErrConflict) {
				break
			}
			cur, gerr := e.getItem(ctx, d.itemID)
			if errors.Is(gerr, catalog.ErrNotFound) {
				rollback()
				return fmt.Errorf("%w: %s", ErrItemNotFound, d.itemID)
			}
			if gerr != nil {
				rollback()
				return gerr
			}
			cb, ok := cur.Bucket(d.size)
			if !ok {
				rollback()
				return fmt.Errorf("%w: item %s has no size %d", ErrInvalidSize, d.itemID, d.size)
			}
			if cb.Quantity < need {
				rollback()
				return fmt.Errorf("%w: item %s size %d: requested %d, available %d",
					ErrInsufficientStock, d.itemID, d.size, need, cb.Quantity)
			}
			expected = cb.Quantity
		}
		if err != nil {
			rollback()
			switch {
			case errors.Is(err, catalog.ErrNotFound):
				return fmt.Errorf("%w: %s", ErrItemNotFound, d.itemID)
			case errors.Is(err, catalog.ErrConflict):
				return fmt.Errorf("%w: bucket %s kept changing", ErrStoreUnavailable, d.key())
			}
			return err
		}
	}
	return nil
}

// restoreDemands is the unconditional inverse of a committed reservation. A
// bucket that no longer exists makes that restoration a no-op; nothing here
// aborts the remaining restorations, since putting units back can only move
// stock toward the invariant, never away from it. The caller must hold the
// stock locks for plan.keys.
func (e *Engine) restoreDemands(ctx context.Context, plan demandPlan) {
	e.restorePartial(ctx, plan.ordered, plan.need)
}

func (e *Engine) restorePartial(ctx context.Context, demands []demand, need map[demand]int) {
	for _, d := range demands {
		qty := need[d]
		for attempt := 0; attempt < e.maxAttempts; attempt++ {
			cur, err := e.getItem(ctx, d.itemID)
			if errors.Is(err, catalog.ErrNotFound) {
				break // item deleted since purchase; nothing to restore into
			}
			if err != nil {
				log.Printf("orders: restore %s: read: %v", d.key(), err)
				break
			}
			b, ok := cur.Bucket(d.size)
			if !ok {
				break // size removed since purchase
			}
			err = e.callStore(ctx, func() error {
				return e.catalog.CompareAndSwapSizeQuantity(ctx, d.itemID, d.size, b.Quantity, b.Quantity+qty)
			})
			if err == nil {
				break
			}
			if errors.Is(err, catalog.ErrConflict) {
				continue // lost a race with a restock; re-read and try again
			}
			if !errors.Is(err, catalog.ErrNotFound) {
				log.Printf("orders: restore %s: %v", d.key(), err)
			}
			break
		}
	}
}
