package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/storage"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

func newTestStorage(t *testing.T) *PostgresStorage {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI not set, skipping Postgres integration tests")
	}
	s, err := NewPostgresStorage(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.db.Exec(`TRUNCATE orders`)
	require.NoError(t, err)
	return s
}

func TestPostgresUpsertAndGet(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	o := &order.Order{
		OrderID:       "ord-pg-1",
		Status:        order.StatusPending,
		Asset:         "USDT",
		Network:       "TRC20",
		FiatAmount:    10,
		FiatCurrency:  "USD",
		FiatAmountUSD: 10,
		CryptoAmount:  "10.000000",
		Rate:          1,
		FxRateToUSD:   1,
		WalletAddress: "TXYZ",
		Country:       "US",
		Message:       "Order created, waiting for payment",
		CreatedAt:     created,
	}
	require.NoError(t, s.UpsertOrder(ctx, o))

	hash := "MOCKUSDT-1"
	o.Status = order.StatusCompleted
	o.TxHash = &hash
	o.CompletedAt = &created
	o.PaymentChannel = "card_direct"
	o.CardLast4 = "4242"
	require.NoError(t, s.UpsertOrder(ctx, o))

	got, err := s.GetOrder(ctx, "ord-pg-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.Equal(t, "4242", got.CardLast4)
	require.NotNil(t, got.TxHash)
	assert.Equal(t, hash, *got.TxHash)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPostgresGetMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetOrder(context.Background(), "ord-none")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresListNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"ord-a", "ord-b", "ord-c"} {
		require.NoError(t, s.UpsertOrder(ctx, &order.Order{
			OrderID:      id,
			Status:       order.StatusPending,
			Asset:        "BTC",
			Network:      "Native",
			FiatCurrency: "USD",
			CryptoAmount: "0.000100",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "ord-c", orders[0].OrderID)
	assert.Equal(t, "ord-a", orders[2].OrderID)
}
