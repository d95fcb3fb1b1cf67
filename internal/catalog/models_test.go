package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() *Item {
	return &Item{
		Brand:       "Nike",
		Name:        "Air Max 90",
		Description: "classic runner",
		PriceCents:  12900,
		ImageURL:    "https://img.example.com/am90.png",
		Category:    CategoryMen,
		Sizes:       []SizeBucket{{Size: 42, Quantity: 3}, {Size: 43, Quantity: 1}},
	}
}

func TestValidateAcceptsWellFormedItem(t *testing.T) {
	require.NoError(t, validItem().Validate())
}

func TestCategorySizeDomains(t *testing.T) {
	assert.True(t, CategoryMen.AllowsSize(40))
	assert.True(t, CategoryMen.AllowsSize(47))
	assert.False(t, CategoryMen.AllowsSize(39))
	assert.False(t, CategoryMen.AllowsSize(48))

	assert.True(t, CategoryWomen.AllowsSize(36))
	assert.True(t, CategoryWomen.AllowsSize(43))
	assert.False(t, CategoryWomen.AllowsSize(35))
	assert.False(t, CategoryWomen.AllowsSize(44))

	assert.False(t, Category("Kids").AllowsSize(40))
}

func TestValidateRejectsSizeOutsideCategory(t *testing.T) {
	it := validItem()
	it.Sizes = []SizeBucket{{Size: 36, Quantity: 1}} // women's size on a men's item
	err := it.Validate()
	require.ErrorIs(t, err, ErrInvalidItem)

	it.Category = CategoryWomen
	require.NoError(t, it.Validate())
}

func TestValidateRejectsDuplicateSizes(t *testing.T) {
	it := validItem()
	it.Sizes = []SizeBucket{{Size: 42, Quantity: 1}, {Size: 42, Quantity: 2}}
	require.ErrorIs(t, it.Validate(), ErrInvalidItem)
}

func TestValidateRejectsNegativeQuantity(t *testing.T) {
	it := validItem()
	it.Sizes = []SizeBucket{{Size: 42, Quantity: -1}}
	require.ErrorIs(t, it.Validate(), ErrInvalidItem)
}

func TestValidateRejectsUnknownCategory(t *testing.T) {
	it := validItem()
	it.Category = "Kids"
	require.ErrorIs(t, it.Validate(), ErrInvalidItem)
}

func TestValidateRejectsMissingFields(t *testing.T) {
	it := validItem()
	it.Brand = ""
	require.ErrorIs(t, it.Validate(), ErrInvalidItem)

	it = validItem()
	it.PriceCents = 0
	require.ErrorIs(t, it.Validate(), ErrInvalidItem)

	it = validItem()
	it.Sizes = nil
	require.ErrorIs(t, it.Validate(), ErrInvalidItem)
}
