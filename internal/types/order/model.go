package order

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusCompleted OrderStatus = "completed"
)

// ManualTransfer marks a completion recorded by an operator without an on-chain hash.
const ManualTransfer = "Manual Transfer"

type Order struct {
	OrderID       string      `db:"order_id" json:"orderId"`
	Status        OrderStatus `db:"status" json:"status"`
	Asset         string      `db:"asset" json:"asset"`
	Network       string      `db:"network" json:"network"`
	FiatAmount    float64     `db:"fiat_amount" json:"fiatAmount"`
	FiatCurrency  string      `db:"fiat_currency" json:"fiatCurrency"`
	FiatAmountUSD float64     `db:"fiat_amount_usd" json:"fiatAmountUsd"`
	CryptoAmount  string      `db:"crypto_amount" json:"cryptoAmount"`
	Rate          float64     `db:"rate" json:"rate"`
	FxRateToUSD   float64     `db:"fx_rate_to_usd" json:"fxRateToUsd"`
	WalletAddress string      `db:"wallet_address" json:"walletAddress"`
	Country       string      `db:"country" json:"country"`

	PaymentChannel string `db:"payment_channel" json:"paymentChannel,omitempty"`
	CardLast4      string `db:"card_last4" json:"cardLast4,omitempty"`
	CardHolder     string `db:"card_holder" json:"cardHolder,omitempty"`
	PaymentID      string `db:"payment_id" json:"paymentId,omitempty"`
	AuthCode       string `db:"auth_code" json:"authCode,omitempty"`

	TxHash      *string    `db:"tx_hash" json:"txHash"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt"`

	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Settled reports whether a payment receipt has been recorded.
func (o *Order) Settled() bool {
	return o.Status == StatusPaid || o.Status == StatusCompleted
}

type Quote struct {
	Asset         string  `json:"asset"`
	FiatAmount    float64 `json:"fiatAmount"`
	FiatCurrency  string  `json:"fiatCurrency"`
	FiatAmountUSD float64 `json:"fiatAmountUsd"`
	CryptoAmount  string  `json:"cryptoAmount"`
	Rate          float64 `json:"rate"`
	FxRateToUSD   float64 `json:"fxRateToUsd"`
}

// Amounts arrive either as JSON numbers or numeric strings, so json.Number is used.
type QuoteRequest struct {
	FiatAmount   json.Number `json:"fiatAmount"`
	FiatCurrency string      `json:"fiatCurrency"`
	Asset        string      `json:"asset"`
}

type CryptoQuoteRequest struct {
	CryptoAmount json.Number `json:"cryptoAmount"`
	FiatCurrency string      `json:"fiatCurrency"`
	Asset        string      `json:"asset"`
}

type CreateRequest struct {
	FiatAmount    json.Number `json:"fiatAmount"`
	FiatCurrency  string      `json:"fiatCurrency"`
	Asset         string      `json:"asset"`
	Network       string      `json:"network"`
	WalletAddress string      `json:"walletAddress"`
	Country       string      `json:"country"`
}

type PayRequest struct {
	OrderID    string `json:"orderId"`
	CardNumber string `json:"cardNumber"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	CardHolder string `json:"cardHolder"`
}

type PayResponse struct {
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	TxHash    *string     `json:"txHash"`
	Message   string      `json:"message"`
	CardLast4 string      `json:"cardLast4"`
}

type CompleteRequest struct {
	TxHash string `json:"txHash"`
}
