package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- per-event payloads ----

type EventItem struct {
	ItemID     string `json:"item_id"`
	Size       int    `json:"size"`
	Quantity   int    `json:"quantity"`
	PriceCents int    `json:"price_cents"`
}

type OrderPlacedPayload struct {
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	Items      []EventItem `json:"items"`
	TotalCents int         `json:"total_cents"`
}

type OrderStatusChangedPayload struct {
	OrderID string    `json:"order_id"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	At      time.Time `json:"at"`
}

type OrderCancelledPayload struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Items   []EventItem `json:"items"` // units put back into stock
	At      time.Time   `json:"at"`
}

func ToEventItems(items []LineItem) []EventItem {
	out := make([]EventItem, 0, len(items))
	for _, li := range items {
		out = append(out, EventItem{ItemID: li.ItemID, Size: li.Size, Quantity: li.Quantity, PriceCents: li.PriceCents})
	}
	return out
}
