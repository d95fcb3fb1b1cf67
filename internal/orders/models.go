package orders

import "time"

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// LineItem carries a snapshot of the catalog item at placement time. Name,
// brand, image and price are frozen so later catalog edits (or deletion) do
// not rewrite order history.
type LineItem struct {
	ItemID     string `json:"item_id"`
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	ImageURL   string `json:"image_url"`
	Size       int    `json:"size"`
	Quantity   int    `json:"quantity"`
	PriceCents int    `json:"price_cents"`
}

type Order struct {
	ID            string          `json:"id"`
	ExternalID    string          `json:"external_id,omitempty"`
	UserID        string          `json:"user_id"`
	Items         []LineItem      `json:"items"`
	Shipping      ShippingAddress `json:"shipping_address"`
	PaymentMethod string          `json:"payment_method"`
	TotalCents    int             `json:"total_cents"`
	Status        Status          `json:"status"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
	ShippedAt     *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Identity is the caller as supplied by the upstream auth layer. The engine
// trusts it as given.
type Identity struct {
	UserID string
	Admin  bool
}
