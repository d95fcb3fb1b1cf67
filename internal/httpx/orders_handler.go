package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/kicklover/go-sneaker-orders/internal/kafka"
	"github.com/kicklover/go-sneaker-orders/internal/orders"
	"github.com/kicklover/go-sneaker-orders/internal/redisx"
)

type OrdersHandler struct {
	Engine *orders.Engine
	Redis  *redis.Client

	PlacedProducer    *kafkax.Producer
	StatusProducer    *kafkax.Producer
	CancelledProducer *kafkax.Producer

	Service string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Get("/", h.listAll)
		r.Get("/myorders", h.myOrders)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getStatus)
		r.Put("/{id}/confirm", h.advanceTo(orders.StatusConfirmed))
		r.Put("/{id}/ship", h.advanceTo(orders.StatusShipped))
		r.Put("/{id}/deliver", h.advanceTo(orders.StatusDelivered))
		r.Put("/{id}/cancel", h.cancelOrder)
	})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidSize),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrTotalMismatch):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrItemNotFound),
		errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrAlreadyInStatus),
		errors.Is(err, orders.ErrAlreadyCancelled),
		errors.Is(err, orders.ErrNotCancellable):
		return http.StatusConflict
	case errors.Is(err, orders.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type placeItemReq struct {
	ItemID   string `json:"item_id"`
	Size     int    `json:"size"`
	Quantity int    `json:"quantity"`
}

type placeOrderReq struct {
	ExternalID    string                 `json:"external_id,omitempty"`
	Items         []placeItemReq         `json:"items"`
	Shipping      orders.ShippingAddress `json:"shipping_address"`
	PaymentMethod string                 `json:"payment_method"`
	TotalCents    int                    `json:"total_cents,omitempty"`
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	items := make([]orders.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.LineItem{ItemID: it.ItemID, Size: it.Size, Quantity: it.Quantity})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.Place(ctx, caller, orders.PlaceRequest{
		ExternalID:         req.ExternalID,
		Items:              items,
		Shipping:           req.Shipping,
		PaymentMethod:      req.PaymentMethod,
		DeclaredTotalCents: req.TotalCents,
	})
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}

	h.cacheStatus(ctx, o.ID, o.Status, o.CreatedAt)
	h.publish(h.PlacedProducer, orders.EventOrderPlaced, o.ID, r, orders.OrderPlacedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      orders.ToEventItems(o.Items),
		TotalCents: o.TotalCents,
	})

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) advanceTo(target orders.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		orderID := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		o, err := h.Engine.Advance(ctx, caller, orderID, target)
		if err != nil {
			writeError(w, errStatus(err), err.Error())
			return
		}

		h.cacheStatus(ctx, o.ID, o.Status, o.UpdatedAt)
		h.publish(h.StatusProducer, orders.EventOrderStatusChanged, o.ID, r, orders.OrderStatusChangedPayload{
			OrderID: o.ID,
			From:    prevStatus(target),
			To:      target,
			At:      o.UpdatedAt,
		})

		writeJSON(w, http.StatusOK, o)
	}
}

func prevStatus(s orders.Status) orders.Status {
	switch s {
	case orders.StatusConfirmed:
		return orders.StatusPending
	case orders.StatusShipped:
		return orders.StatusConfirmed
	case orders.StatusDelivered:
		return orders.StatusShipped
	}
	return ""
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.Cancel(ctx, caller, orderID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}

	h.cacheStatus(ctx, o.ID, o.Status, o.UpdatedAt)
	h.publish(h.CancelledProducer, orders.EventOrderCancelled, o.ID, r, orders.OrderCancelledPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Items:   orders.ToEventItems(o.Items),
		At:      o.UpdatedAt,
	})

	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Engine.GetByID(ctx, caller, orderID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus serves the status from the Redis cache when warm and falls back
// to the order store. Admins and owners only, same rule as getOrder.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if caller.Admin && h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Engine.GetByID(ctx, caller, orderID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	body := map[string]any{"status": o.Status, "updated_at": o.UpdatedAt}
	if h.Redis != nil {
		b, _ := json.Marshal(body)
		_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID), b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Engine.ListForUser(ctx, caller, caller.UserID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Engine.ListAll(ctx, caller)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, s orders.Status, at time.Time) {
	if h.Redis == nil {
		return
	}
	b, _ := json.Marshal(map[string]any{"status": s, "updated_at": at})
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publish(p *kafkax.Producer, eventType, orderID string, r *http.Request, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
