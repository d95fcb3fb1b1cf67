package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/kicklover/go-sneaker-orders/internal/kafka"
	"github.com/kicklover/go-sneaker-orders/internal/orders"
	"github.com/kicklover/go-sneaker-orders/internal/redisx"
)

// StatusCache keeps the Redis order-status cache in sync with the order
// lifecycle events. Consumers are at-least-once, so processing dedups on
// event id.
type StatusCache struct {
	Redis       *redis.Client
	ServiceName string
}

type cachedStatus struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// HandleEvent is installed as the consumer handler for every order topic.
func (s *StatusCache) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	var orderID string
	var status orders.Status
	var at time.Time

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		orderID, status, at = p.OrderID, orders.StatusPending, env.OccurredAt
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		orderID, status, at = p.OrderID, p.To, p.At
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		orderID, status, at = p.OrderID, orders.StatusCancelled, p.At
	default:
		return nil // ignore
	}

	body, err := json.Marshal(cachedStatus{Status: status, UpdatedAt: at})
	if err != nil {
		return err
	}
	skey := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if err := s.Redis.Set(ctx, skey, body, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}
	return s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
}
