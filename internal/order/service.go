package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/clock"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/events"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/metrics"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/payment"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/payout"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/quote"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/storage"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyCompleted = errors.New("order already completed")
	ErrAlreadyPaid      = errors.New("order already paid")
	ErrValidation       = errors.New("validation error")
	ErrUnknownChannel   = errors.New("unknown payment channel")
)

const (
	msgCreated        = "Order created, waiting for payment"
	msgSentAuto       = "Crypto sent automatically."
	msgAwaitDelivery  = "Waiting for crypto delivery."
	msgManualDelivery = "Crypto delivered manually."
)

// ValidationError describes rejected input. It matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

type Service struct {
	repo     OrderRepository
	quotes   QuoteEngine
	payouts  PayoutDispatcher
	clock    clock.Clock
	events   events.Notifier
	channels map[string]payment.Channel
	locks    *keyLocker
}

func NewService(
	repo OrderRepository,
	quotes QuoteEngine,
	payouts PayoutDispatcher,
	clk clock.Clock,
	notifier events.Notifier,
	channels ...payment.Channel,
) *Service {
	if notifier == nil {
		notifier = events.Discard{}
	}
	s := &Service{
		repo:     repo,
		quotes:   quotes,
		payouts:  payouts,
		clock:    clk,
		events:   notifier,
		channels: make(map[string]payment.Channel, len(channels)),
		locks:    newKeyLocker(),
	}
	for _, ch := range channels {
		s.channels[ch.Name()] = ch
	}
	return s
}

// parseAmount accepts a JSON number or numeric string. ok is false for
// anything that is not a finite positive number.
func parseAmount(n json.Number) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(n.String()), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func (s *Service) Quote(ctx context.Context, req order.QuoteRequest) (order.Quote, error) {
	amount, ok := parseAmount(req.FiatAmount)
	if !ok {
		return order.Quote{}, invalid("Invalid amount")
	}
	return s.quotes.Quote(ctx, amount, req.FiatCurrency, strings.ToUpper(strings.TrimSpace(req.Asset)))
}

func (s *Service) QuoteFromCrypto(ctx context.Context, req order.CryptoQuoteRequest) (order.Quote, error) {
	qty, ok := parseAmount(req.CryptoAmount)
	if !ok {
		return order.Quote{}, invalid("Invalid quantity")
	}
	return s.quotes.QuoteFromCrypto(ctx, qty, req.FiatCurrency, strings.ToUpper(strings.TrimSpace(req.Asset)))
}

// CreateOrder prices the request and stores a pending order. The crypto
// amount is fixed here and never re-quoted.
func (s *Service) CreateOrder(ctx context.Context, req order.CreateRequest) (*order.Order, error) {
	asset := strings.ToUpper(strings.TrimSpace(req.Asset))
	wallet := strings.TrimSpace(req.WalletAddress)
	country := strings.TrimSpace(req.Country)
	network := strings.TrimSpace(req.Network)

	if strings.TrimSpace(req.FiatAmount.String()) == "" || asset == "" || wallet == "" || country == "" {
		return nil, invalid("Missing required fields")
	}
	amount, ok := parseAmount(req.FiatAmount)
	if !ok {
		return nil, invalid("Invalid amount")
	}
	if network == "" {
		return nil, invalid("Network is required")
	}

	q, err := s.quotes.Quote(ctx, amount, req.FiatCurrency, asset)
	if errors.Is(err, quote.ErrInvalidAmount) {
		return nil, invalid("Invalid amount")
	}
	if err != nil {
		return nil, fmt.Errorf("quote order: %w", err)
	}

	o := &order.Order{
		OrderID:       "ord-" + uuid.NewString(),
		Status:        order.StatusPending,
		Asset:         asset,
		Network:       network,
		FiatAmount:    q.FiatAmount,
		FiatCurrency:  q.FiatCurrency,
		FiatAmountUSD: q.FiatAmountUSD,
		CryptoAmount:  q.CryptoAmount,
		Rate:          q.Rate,
		FxRateToUSD:   q.FxRateToUSD,
		WalletAddress: wallet,
		Country:       country,
		Message:       msgCreated,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.UpsertOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	metrics.OrdersCreated.Inc()
	logger.Log.Info("order created",
		zap.String("order_id", o.OrderID),
		zap.String("asset", o.Asset),
		zap.String("network", o.Network),
		zap.String("crypto_amount", o.CryptoAmount))
	s.events.Notify(events.New(events.OrderCreated, *o, o.CreatedAt))
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (s *Service) ListOrders(ctx context.Context) ([]order.Order, error) {
	return s.repo.ListOrders(ctx)
}

func guard(o *order.Order) error {
	if !o.Settled() {
		return nil
	}
	if o.Status == order.StatusCompleted {
		return ErrAlreadyCompleted
	}
	return ErrAlreadyPaid
}

// SubmitPayment authorizes the order through the named channel, attempts an
// automatic payout and records the outcome in a single write.
//
// The per-order lock is held from the status check until the write, so two
// concurrent submissions for one order authorize at most once. Once the
// channel is called, request cancellation no longer applies.
func (s *Service) SubmitPayment(ctx context.Context, orderID, channel string, in payment.Instrument) (*order.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := guard(o); err != nil {
		return nil, err
	}
	ch, ok := s.channels[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	rc, err := ch.Authorize(ctx, *o, in)
	metrics.PaymentDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	if err != nil {
		result := payment.Kind(err)
		if result == "" {
			result = "error"
		}
		metrics.PaymentsTotal.WithLabelValues(channel, result).Inc()
		logger.Log.Warn("payment not authorized",
			zap.String("order_id", orderID),
			zap.String("channel", channel),
			zap.Error(err))
		return nil, err
	}
	metrics.PaymentsTotal.WithLabelValues(channel, "approved").Inc()

	o.PaymentChannel = rc.Channel
	o.PaymentID = rc.TransactionID
	o.AuthCode = rc.AuthCode
	o.CardLast4 = rc.CardLast4
	o.CardHolder = rc.CardHolder

	txHash, payoutErr := s.dispatchPayout(ctx, *o)
	if txHash != "" {
		now := s.clock.Now()
		o.Status = order.StatusCompleted
		o.TxHash = &txHash
		o.CompletedAt = &now
		o.Message = rc.Summary + " " + msgSentAuto
	} else {
		o.Status = order.StatusPaid
		o.TxHash = nil
		o.CompletedAt = nil
		o.Message = rc.Summary + " " + msgAwaitDelivery
	}

	if err := s.repo.UpsertOrder(ctx, o); err != nil {
		logger.Log.Error("payment authorized but order not saved",
			zap.String("order_id", orderID),
			zap.String("channel", channel),
			zap.String("transaction_id", rc.TransactionID),
			zap.Error(err))
		return nil, fmt.Errorf("save order: %w", err)
	}

	at := s.clock.Now()
	if o.Status == order.StatusCompleted {
		s.events.Notify(events.New(events.OrderCompleted, *o, at))
	} else {
		s.events.Notify(events.New(events.OrderPaid, *o, at))
	}
	if payoutErr != nil {
		e := events.New(events.PayoutFailed, *o, at)
		e.Reason = payoutErr.Error()
		s.events.Notify(e)
	}
	return o, nil
}

// dispatchPayout never fails the payment. It returns the transaction hash on
// success and the payout error, if any, for reporting.
func (s *Service) dispatchPayout(ctx context.Context, o order.Order) (string, error) {
	if s.payouts == nil {
		return "", nil
	}
	if !payout.Supports(o.Asset, o.Network) {
		metrics.PayoutsTotal.WithLabelValues("skipped").Inc()
		return "", nil
	}
	txHash, err := s.payouts.Dispatch(ctx, o)
	switch {
	case err == nil:
		metrics.PayoutsTotal.WithLabelValues("sent").Inc()
		logger.Log.Info("payout sent", zap.String("order_id", o.OrderID), zap.String("tx_hash", txHash))
		return txHash, nil
	case errors.Is(err, payout.ErrUnsupportedAssetNetwork):
		metrics.PayoutsTotal.WithLabelValues("skipped").Inc()
		return "", nil
	default:
		metrics.PayoutsTotal.WithLabelValues("failed").Inc()
		logger.Log.Error("automatic payout failed, manual delivery required",
			zap.String("order_id", o.OrderID), zap.Error(err))
		return "", err
	}
}

// BeginRedirectPayment returns the provider URL where the payer approves the
// payment. The order is not modified.
func (s *Service) BeginRedirectPayment(ctx context.Context, orderID, channel string) (string, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if err := guard(o); err != nil {
		return "", err
	}
	ch, ok := s.channels[channel]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	r, ok := ch.(payment.Redirector)
	if !ok {
		return "", fmt.Errorf("%w: %s has no redirect step", ErrUnknownChannel, channel)
	}
	return r.CreatePayment(ctx, *o)
}

// CompleteManually records an off-system delivery. An empty txHash is
// stored as order.ManualTransfer.
func (s *Service) CompleteManually(ctx context.Context, orderID, txHash string) (*order.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	hash := strings.TrimSpace(txHash)
	if hash == "" {
		hash = order.ManualTransfer
	}
	o.Status = order.StatusCompleted
	o.TxHash = &hash
	if o.CompletedAt == nil {
		now := s.clock.Now()
		o.CompletedAt = &now
	}
	o.Message = msgManualDelivery

	if err := s.repo.UpsertOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	logger.Log.Info("order completed manually", zap.String("order_id", orderID), zap.String("tx_hash", hash))
	s.events.Notify(events.New(events.OrderCompleted, *o, s.clock.Now()))
	return o, nil
}
