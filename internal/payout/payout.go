package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/clock"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

var (
	ErrUnsupportedAssetNetwork = errors.New("auto delivery is not enabled for this asset and network")
	ErrInvalidAmount           = errors.New("invalid payout amount")
	ErrPayoutUnavailable       = errors.New("payout wallet is not configured")
	ErrTransferError           = errors.New("transfer failed")
)

const (
	ModeMock = "mock"
	ModeReal = "real"

	DefaultUSDTContract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	DefaultFeeLimit     = 10_000_000
)

type token struct {
	decimals int32
}

var supported = map[string]token{
	"USDT/TRC20": {decimals: 6},
}

func pairKey(asset, network string) string {
	return strings.ToUpper(asset) + "/" + strings.ToUpper(network)
}

// Supports reports whether orders for asset on network can be paid out automatically.
func Supports(asset, network string) bool {
	_, ok := supported[pairKey(asset, network)]
	return ok
}

type Config struct {
	Mode     string
	Contract string
	FeeLimit int64
	Timeout  time.Duration
}

type Dispatcher struct {
	cfg    Config
	wallet WalletClient
	clock  clock.Clock
}

// NewDispatcher builds a dispatcher. wallet may be nil; in real mode every
// dispatch then fails with ErrPayoutUnavailable.
func NewDispatcher(cfg Config, wallet WalletClient, clk clock.Clock) *Dispatcher {
	if cfg.Mode == "" {
		cfg.Mode = ModeReal
	}
	if cfg.Contract == "" {
		cfg.Contract = DefaultUSDTContract
	}
	if cfg.FeeLimit <= 0 {
		cfg.FeeLimit = DefaultFeeLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	switch {
	case cfg.Mode == ModeMock:
		logger.Log.Info("USDT TRC20 payouts run in mock mode, no real transfers will be made")
	case wallet == nil:
		logger.Log.Warn("no TRON wallet configured, USDT TRC20 auto delivery is disabled")
	}
	return &Dispatcher{cfg: cfg, wallet: wallet, clock: clk}
}

// Dispatch sends the order's crypto amount to its wallet address and returns
// the transaction hash.
func (d *Dispatcher) Dispatch(ctx context.Context, o order.Order) (string, error) {
	tok, ok := supported[pairKey(o.Asset, o.Network)]
	if !ok {
		return "", ErrUnsupportedAssetNetwork
	}
	amount, err := ToBaseUnits(o.CryptoAmount, tok.decimals)
	if err != nil {
		return "", err
	}

	if d.cfg.Mode == ModeMock {
		tx := "MOCKUSDT-" + strconv.FormatInt(d.clock.Now().UnixMilli(), 16)
		logger.Log.Info("mock USDT TRC20 send",
			zap.String("order_id", o.OrderID),
			zap.String("amount", o.CryptoAmount),
			zap.String("to", o.WalletAddress),
			zap.String("tx", tx))
		return tx, nil
	}
	if d.wallet == nil {
		return "", ErrPayoutUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	raw, err := d.wallet.Transfer(ctx, TransferRequest{
		Contract: d.cfg.Contract,
		To:       o.WalletAddress,
		Amount:   amount,
		FeeLimit: d.cfg.FeeLimit,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransferError, err)
	}
	return extractTxID(raw)
}

var maxUnits = decimal.NewFromInt(math.MaxInt64)

// ToBaseUnits converts a decimal token amount into integer base units.
func ToBaseUnits(amount string, decimals int32) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	units := d.Shift(decimals).Round(0)
	if !units.IsPositive() || units.GreaterThan(maxUnits) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return units.IntPart(), nil
}

// extractTxID accepts either a bare JSON string or an object carrying the id
// under txid, txID or id.
func extractTxID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, nil
	}
	var obj struct {
		TxIDLower string `json:"txid"`
		TxID      string `json:"txID"`
		ID        string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, v := range []string{obj.TxIDLower, obj.TxID, obj.ID} {
			if v != "" {
				return v, nil
			}
		}
	}
	return "", fmt.Errorf("%w: unexpected wallet response %s", ErrTransferError, truncate(raw, 128))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
