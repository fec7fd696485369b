package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/clock"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/util/luhn"
)

const (
	CardModeSimulation = "simulation"
	CardModeLive       = "live"

	DefaultCardGatewayURL = "https://secure.nmi.com/api/transact.php"
	placeholderKey        = "INSERT_YOUR_REAL_API_KEY_HERE"
)

type CardConfig struct {
	Mode       string
	GatewayURL string
	APIKey     string
	AuthDelay  time.Duration
	Client     *http.Client
}

type CardChannel struct {
	cfg   CardConfig
	clock clock.Clock
}

func NewCardChannel(cfg CardConfig, clk clock.Clock) *CardChannel {
	if cfg.Mode == "" {
		cfg.Mode = CardModeSimulation
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultCardGatewayURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CardChannel{cfg: cfg, clock: clk}
}

func (c *CardChannel) Name() string { return ChannelCard }

func (c *CardChannel) Authorize(ctx context.Context, o order.Order, in Instrument) (Receipt, error) {
	card, ok := in.(Card)
	if !ok {
		return Receipt{}, newError(ErrInvalidInstrument, "card details are required")
	}
	if !luhn.Validate(card.Number) {
		return Receipt{}, newError(ErrInvalidInstrument, "invalid card number")
	}
	month, year, err := parseExpiry(card.Expiry)
	if err != nil {
		return Receipt{}, newError(ErrInvalidInstrument, "invalid expiry date format (MM/YY)")
	}
	if clock.MonthEnded(c.clock, 2000+year, time.Month(month)) {
		return Receipt{}, newError(ErrExpiredInstrument, "card has expired")
	}

	digits := luhn.Digits(card.Number)
	var rc Receipt
	switch c.cfg.Mode {
	case CardModeLive:
		rc, err = c.authorizeLive(ctx, o, digits, fmt.Sprintf("%02d%02d", month, year), card.CVV)
	default:
		rc, err = c.authorizeSimulated(ctx)
	}
	if err != nil {
		return Receipt{}, err
	}
	rc.Channel = ChannelCard
	rc.CardLast4 = lastFour(digits)
	rc.CardHolder = strings.TrimSpace(card.Holder)
	rc.SettledAt = c.clock.Now()
	rc.Summary = "Payment approved."
	return rc, nil
}

// parseExpiry accepts MM/YY and returns the month and two-digit year.
func parseExpiry(s string) (int, int, error) {
	mm, yy, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, fmt.Errorf("expiry %q: missing separator", s)
	}
	month, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("expiry %q: bad month", s)
	}
	yy = strings.TrimSpace(yy)
	if len(yy) != 2 {
		return 0, 0, fmt.Errorf("expiry %q: bad year", s)
	}
	year, err := strconv.Atoi(yy)
	if err != nil {
		return 0, 0, fmt.Errorf("expiry %q: bad year", s)
	}
	return month, year, nil
}

func (c *CardChannel) authorizeSimulated(ctx context.Context) (Receipt, error) {
	if c.cfg.AuthDelay > 0 {
		t := time.NewTimer(c.cfg.AuthDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Receipt{}, wrapError(ErrGatewayUnavailable, "authorization interrupted", ctx.Err())
		case <-t.C:
		}
	}
	txID, err := randomString(12, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	if err != nil {
		return Receipt{}, wrapError(ErrGatewayUnavailable, "authorization failed", err)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return Receipt{}, wrapError(ErrGatewayUnavailable, "authorization failed", err)
	}
	return Receipt{
		TransactionID: "tx_" + txID,
		AuthCode:      strconv.FormatInt(100000+n.Int64(), 10),
	}, nil
}

func (c *CardChannel) authorizeLive(ctx context.Context, o order.Order, number, exp, cvv string) (Receipt, error) {
	if c.cfg.APIKey == "" || c.cfg.APIKey == placeholderKey {
		return Receipt{}, newError(ErrGatewayUnavailable, "live card gateway is not configured")
	}

	form := url.Values{}
	form.Set("security_key", c.cfg.APIKey)
	form.Set("type", "sale")
	form.Set("ccnumber", number)
	form.Set("ccexp", exp)
	form.Set("cvv", cvv)
	form.Set("amount", strconv.FormatFloat(o.FiatAmount, 'f', 2, 64))
	form.Set("currency", o.FiatCurrency)
	form.Set("orderid", o.OrderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, wrapError(ErrGatewayUnavailable, "card gateway unavailable", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		logger.Log.Error("card gateway request failed", zap.String("order_id", o.OrderID), zap.Error(err))
		return Receipt{}, wrapError(ErrGatewayUnavailable, "card gateway unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Receipt{}, wrapError(ErrGatewayUnavailable, "card gateway unavailable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, gatewayf("card gateway returned status %d", resp.StatusCode)
	}

	vals, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return Receipt{}, wrapError(ErrGatewayUnavailable, "unreadable card gateway response", err)
	}
	switch vals.Get("response") {
	case "1":
		return Receipt{
			TransactionID: vals.Get("transactionid"),
			AuthCode:      vals.Get("authcode"),
		}, nil
	case "2":
		msg := "transaction declined by issuer"
		if text := vals.Get("responsetext"); text != "" {
			msg = "transaction declined: " + text
		}
		return Receipt{}, newError(ErrDeclined, msg)
	default:
		return Receipt{}, gatewayf("card gateway error: %s", vals.Get("responsetext"))
	}
}

func lastFour(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func randomString(n int, alphabet string) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
