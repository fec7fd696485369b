package order

import (
	"context"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

type OrderRepository interface {
	UpsertOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
	ListOrders(ctx context.Context) ([]order.Order, error)
}

type QuoteEngine interface {
	Quote(ctx context.Context, fiatAmount float64, fiatCurrency, asset string) (order.Quote, error)
	QuoteFromCrypto(ctx context.Context, cryptoAmount float64, fiatCurrency, asset string) (order.Quote, error)
}

type PayoutDispatcher interface {
	Dispatch(ctx context.Context, o order.Order) (string, error)
}
