package payment

import (
	"context"
	"time"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

const (
	ChannelCard   = "card_direct"
	ChannelPayPal = "paypal"
)

// Instrument is what a payer presents to a channel. The set is closed.
type Instrument interface {
	instrument()
}

type Card struct {
	Number string
	Expiry string
	CVV    string
	Holder string
}

func (Card) instrument() {}

// WalletApproval is the payer's consent returned by a redirect provider.
type WalletApproval struct {
	ProviderPaymentID string
	PayerID           string
}

func (WalletApproval) instrument() {}

type Receipt struct {
	Channel       string
	TransactionID string
	AuthCode      string
	SettledAt     time.Time
	CardLast4     string
	CardHolder    string
	Summary       string
}

type Channel interface {
	Name() string
	Authorize(ctx context.Context, o order.Order, in Instrument) (Receipt, error)
}

// Redirector is implemented by channels that need a hosted approval step
// before Authorize can be called.
type Redirector interface {
	CreatePayment(ctx context.Context, o order.Order) (string, error)
}
