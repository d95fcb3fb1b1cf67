package catalog

import (
	"errors"
	"fmt"
	"time"
)

type Category string

const (
	CategoryMen   Category = "Men"
	CategoryWomen Category = "Women"
)

// Each category sells eight contiguous EU sizes.
const (
	menSizeMin   = 40
	menSizeMax   = 47
	womenSizeMin = 36
	womenSizeMax = 43
)

func (c Category) Valid() bool {
	return c == CategoryMen || c == CategoryWomen
}

// AllowsSize reports whether size falls inside the category's size domain.
func (c Category) AllowsSize(size int) bool {
	switch c {
	case CategoryMen:
		return size >= menSizeMin && size <= menSizeMax
	case CategoryWomen:
		return size >= womenSizeMin && size <= womenSizeMax
	}
	return false
}

// SizeBucket is the per-size stock counter of an item.
type SizeBucket struct {
	Size     int `json:"size"`
	Quantity int `json:"quantity"`
}

type Item struct {
	ID          string       `json:"id"`
	Brand       string       `json:"brand"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	PriceCents  int          `json:"price_cents"`
	ImageURL    string       `json:"image_url"`
	Category    Category     `json:"category"`
	Sizes       []SizeBucket `json:"sizes"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Bucket returns the stock bucket for size, if the item offers it.
func (it *Item) Bucket(size int) (SizeBucket, bool) {
	for _, b := range it.Sizes {
		if b.Size == size {
			return b, true
		}
	}
	return SizeBucket{}, false
}

var ErrInvalidItem = errors.New("invalid catalog item")

// Validate enforces the category size domain, size uniqueness and
// non-negative quantities. Called on create and update.
func (it *Item) Validate() error {
	if it.Brand == "" || it.Name == "" {
		return fmt.Errorf("%w: brand and name are required", ErrInvalidItem)
	}
	if it.PriceCents <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidItem)
	}
	if !it.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidItem, it.Category)
	}
	if len(it.Sizes) == 0 {
		return fmt.Errorf("%w: at least one size is required", ErrInvalidItem)
	}
	seen := make(map[int]bool, len(it.Sizes))
	for _, b := range it.Sizes {
		if !it.Category.AllowsSize(b.Size) {
			return fmt.Errorf("%w: size %d not valid for category %s", ErrInvalidItem, b.Size, it.Category)
		}
		if seen[b.Size] {
			return fmt.Errorf("%w: duplicate size %d", ErrInvalidItem, b.Size)
		}
		seen[b.Size] = true
		if b.Quantity < 0 {
			return fmt.Errorf("%w: negative quantity for size %d", ErrInvalidItem, b.Size)
		}
	}
	return nil
}
