package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

type Type string

const (
	OrderCreated   Type = "order.created"
	OrderPaid      Type = "order.paid"
	OrderCompleted Type = "order.completed"
	PayoutFailed   Type = "payout.failed"
)

type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	OrderID    string            `json:"orderId"`
	Status     order.OrderStatus `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Order      order.Order       `json:"order"`
}

func New(t Type, o order.Order, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OrderID:    o.OrderID,
		Status:     o.Status,
		OccurredAt: at,
		Order:      o,
	}
}

func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Notify(e Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(Event) {}
