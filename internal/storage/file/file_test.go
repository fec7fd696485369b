package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/storage"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

func newOrder(id string, createdAt time.Time) *order.Order {
	return &order.Order{
		OrderID:       id,
		Status:        order.StatusPending,
		Asset:         "USDT",
		Network:       "TRC20",
		FiatAmount:    10,
		FiatCurrency:  "USD",
		FiatAmountUSD: 10,
		CryptoAmount:  "10.000000",
		WalletAddress: "TXYZ",
		Country:       "US",
		Message:       "Order created, waiting for payment",
		CreatedAt:     createdAt,
	}
}

func TestOpenCreatesEmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "orders.json")

	s, err := Open(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	orders, err := s.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpsertTwiceKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)

	o := newOrder("ord-1", time.Now().UTC())
	require.NoError(t, s.UpsertOrder(ctx, o))

	o.Status = order.StatusPaid
	o.Message = "Payment approved. Waiting for crypto delivery."
	require.NoError(t, s.UpsertOrder(ctx, o))

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.StatusPaid, orders[0].Status)
	assert.Equal(t, "Payment approved. Waiting for crypto delivery.", orders[0].Message)
}

func TestGetMissingOrder(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)

	_, err = s.GetOrder(context.Background(), "ord-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)
	require.NoError(t, s.UpsertOrder(ctx, newOrder("ord-1", time.Now())))

	got, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	got.Status = order.StatusCompleted

	again, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, again.Status)
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orders.json")
	s, err := Open(path)
	require.NoError(t, err)

	hash := "MOCKUSDT-18f"
	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := newOrder("ord-1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	o.Status = order.StatusCompleted
	o.TxHash = &hash
	o.CompletedAt = &done
	require.NoError(t, s.UpsertOrder(ctx, o))

	reopened, err := Open(path)
	require.NoError(t, err)
	got, err := reopened.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.NotNil(t, got.TxHash)
	assert.Equal(t, hash, *got.TxHash)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.Equal(t, "10.000000", got.CryptoAmount)
}

func TestOpenRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestFailedWriteKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertOrder(ctx, newOrder("ord-1", time.Now())))

	// Point the store at a directory that no longer exists so the temp file cannot be created.
	s.path = filepath.Join(dir, "gone", "orders.json")
	err = s.UpsertOrder(ctx, newOrder("ord-2", time.Now()))
	require.Error(t, err)

	_, err = s.GetOrder(ctx, "ord-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	reopened, err := Open(path)
	require.NoError(t, err)
	orders, err := reopened.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertOrder(ctx, newOrder("ord-old", base)))
	require.NoError(t, s.UpsertOrder(ctx, newOrder("ord-new", base.Add(time.Hour))))
	require.NoError(t, s.UpsertOrder(ctx, newOrder("ord-tie-a", base)))

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	ids := []string{orders[0].OrderID, orders[1].OrderID, orders[2].OrderID}
	assert.Equal(t, []string{"ord-new", "ord-old", "ord-tie-a"}, ids)
}

func TestConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orders.json")
	s, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.UpsertOrder(ctx, newOrder(fmt.Sprintf("ord-%d", i), time.Now())))
		}(i)
	}
	wg.Wait()

	reopened, err := Open(path)
	require.NoError(t, err)
	orders, err := reopened.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 20)
}

func TestSyncDir(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, syncDir(dir))

	err := syncDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
