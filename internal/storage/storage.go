package storage

import (
	"context"
	"errors"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

var ErrNotFound = errors.New("order not found")

// OrderStore is the only place order state is read or written.
// UpsertOrder must be durable before it returns.
type OrderStore interface {
	UpsertOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
	// ListOrders returns all orders, newest first.
	ListOrders(ctx context.Context) ([]order.Order, error)

	Close() error
}
