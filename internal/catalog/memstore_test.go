package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	it := validItem()
	require.NoError(t, m.Create(ctx, it))

	// happy path
	require.NoError(t, m.CompareAndSwapSizeQuantity(ctx, it.ID, 42, 3, 1))
	got, err := m.Get(ctx, it.ID)
	require.NoError(t, err)
	b, ok := got.Bucket(42)
	require.True(t, ok)
	assert.Equal(t, 1, b.Quantity)

	// stale expected value loses
	err = m.CompareAndSwapSizeQuantity(ctx, it.ID, 42, 3, 0)
	require.ErrorIs(t, err, ErrConflict)

	// missing bucket and missing item
	require.ErrorIs(t, m.CompareAndSwapSizeQuantity(ctx, it.ID, 44, 1, 0), ErrNotFound)
	require.ErrorIs(t, m.CompareAndSwapSizeQuantity(ctx, "nope", 42, 1, 0), ErrNotFound)
}

func TestMemStoreRestock(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	it := validItem()
	require.NoError(t, m.Create(ctx, it))

	require.NoError(t, m.Restock(ctx, it.ID, 42, 5))
	got, err := m.Get(ctx, it.ID)
	require.NoError(t, err)
	b, _ := got.Bucket(42)
	assert.Equal(t, 8, b.Quantity)

	require.ErrorIs(t, m.Restock(ctx, it.ID, 45, 5), ErrNotFound)
}

func TestMemStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	it := validItem()
	require.NoError(t, m.Create(ctx, it))

	got, err := m.Get(ctx, it.ID)
	require.NoError(t, err)
	got.Sizes[0].Quantity = 999

	again, err := m.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Sizes[0].Quantity)
}
