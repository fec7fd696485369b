// Package quote converts between fiat and crypto amounts.
//
// The engine favours availability over pricing accuracy: when the price oracle
// is slow, unreachable, or has no price for an asset, a built-in fallback price
// is used instead of failing the request. Callers that need an authoritative
// price must not rely on this package alone.
package quote

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/metrics"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

var ErrInvalidAmount = errors.New("amount must be greater than zero")

const (
	cryptoPlaces = 6
	fiatPlaces   = 2
)

type PriceSource interface {
	Price(ctx context.Context, asset string) (float64, error)
}

type Engine struct {
	src     PriceSource
	timeout time.Duration
}

func NewEngine(src PriceSource, timeout time.Duration) *Engine {
	return &Engine{src: src, timeout: timeout}
}

// UnitPrice returns the USD price of asset and whether a fallback was used.
func (e *Engine) UnitPrice(ctx context.Context, asset string) (float64, bool) {
	if e.src != nil {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		price, err := e.src.Price(ctx, asset)
		if err == nil && price > 0 {
			return price, false
		}
		logger.Log.Warn("price oracle unavailable, using fallback",
			zap.String("asset", asset), zap.Error(err))
	}
	metrics.QuoteFallbacks.WithLabelValues(strings.ToUpper(asset)).Inc()
	return FallbackPrice(asset), true
}

// Quote converts a fiat amount into the crypto amount it buys.
func (e *Engine) Quote(ctx context.Context, fiatAmount float64, fiatCurrency, asset string) (order.Quote, error) {
	if fiatAmount <= 0 {
		return order.Quote{}, ErrInvalidAmount
	}
	currency := NormalizeCurrency(fiatCurrency)
	fx := FxRateToUSD(currency)
	price, _ := e.UnitPrice(ctx, asset)

	amountUSD := decimal.NewFromFloat(fiatAmount).Mul(decimal.NewFromFloat(fx))
	crypto := amountUSD.Div(decimal.NewFromFloat(price))

	return order.Quote{
		Asset:         asset,
		FiatAmount:    fiatAmount,
		FiatCurrency:  currency,
		FiatAmountUSD: amountUSD.Round(fiatPlaces).InexactFloat64(),
		CryptoAmount:  crypto.StringFixed(cryptoPlaces),
		Rate:          price,
		FxRateToUSD:   fx,
	}, nil
}

// QuoteFromCrypto converts a crypto quantity into its fiat price.
func (e *Engine) QuoteFromCrypto(ctx context.Context, cryptoAmount float64, fiatCurrency, asset string) (order.Quote, error) {
	if cryptoAmount <= 0 {
		return order.Quote{}, ErrInvalidAmount
	}
	currency := NormalizeCurrency(fiatCurrency)
	fx := FxRateToUSD(currency)
	price, _ := e.UnitPrice(ctx, asset)

	qty := decimal.NewFromFloat(cryptoAmount)
	amountUSD := qty.Mul(decimal.NewFromFloat(price))
	fiat := amountUSD.Div(decimal.NewFromFloat(fx))

	return order.Quote{
		Asset:         asset,
		FiatAmount:    fiat.Round(fiatPlaces).InexactFloat64(),
		FiatCurrency:  currency,
		FiatAmountUSD: amountUSD.Round(fiatPlaces).InexactFloat64(),
		CryptoAmount:  qty.StringFixed(cryptoPlaces),
		Rate:          price,
		FxRateToUSD:   fx,
	}, nil
}
