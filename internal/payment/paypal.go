package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/clock"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

const (
	PayPalSandboxURL = "https://api-m.sandbox.paypal.com"
	PayPalLiveURL    = "https://api-m.paypal.com"

	tokenLeeway = time.Minute
)

var paypalCurrencies = map[string]bool{
	"AUD": true, "BRL": true, "CAD": true, "CNY": true, "CZK": true, "DKK": true, "EUR": true,
	"HKD": true, "HUF": true, "ILS": true, "JPY": true, "MYR": true, "MXN": true, "TWD": true,
	"NZD": true, "NOK": true, "PHP": true, "PLN": true, "GBP": true, "RUB": true, "SGD": true,
	"SEK": true, "CHF": true, "THB": true, "USD": true,
}

type PayPalConfig struct {
	Mode         string
	ClientID     string
	ClientSecret string
	// BaseURL overrides the API host picked from Mode.
	BaseURL    string
	AppBaseURL string
	Client     *http.Client
}

type PayPalChannel struct {
	cfg   PayPalConfig
	clock clock.Clock

	tokenMu   sync.Mutex
	token     string
	expiresAt time.Time

	mu        sync.Mutex
	profileID string
}

func NewPayPalChannel(cfg PayPalConfig, clk clock.Clock) *PayPalChannel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = PayPalSandboxURL
		if strings.EqualFold(cfg.Mode, "live") {
			cfg.BaseURL = PayPalLiveURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PayPalChannel{cfg: cfg, clock: clk}
}

func (p *PayPalChannel) Name() string { return ChannelPayPal }

// chargeFor returns the currency and total PayPal is asked to collect.
// Unsupported currencies are charged in USD using the order's USD amount.
func chargeFor(o order.Order) (string, string) {
	currency := strings.ToUpper(o.FiatCurrency)
	if currency == "" {
		currency = "USD"
	}
	amount := o.FiatAmount
	if !paypalCurrencies[currency] {
		currency = "USD"
		if o.FiatAmountUSD > 0 {
			amount = o.FiatAmountUSD
		}
	}
	return currency, strconv.FormatFloat(amount, 'f', 2, 64)
}

type paypalAmount struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

type paypalItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

type paypalTransaction struct {
	ItemList *struct {
		Items []paypalItem `json:"items"`
	} `json:"item_list,omitempty"`
	Amount      paypalAmount `json:"amount"`
	Description string       `json:"description,omitempty"`
}

type createPaymentRequest struct {
	Intent              string `json:"intent"`
	ExperienceProfileID string `json:"experience_profile_id,omitempty"`
	Payer               struct {
		PaymentMethod string `json:"payment_method"`
	} `json:"payer"`
	RedirectURLs struct {
		ReturnURL string `json:"return_url"`
		CancelURL string `json:"cancel_url"`
	} `json:"redirect_urls"`
	Transactions []paypalTransaction `json:"transactions"`
}

type paymentResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	Transactions []struct {
		RelatedResources []struct {
			Sale *struct {
				ID string `json:"id"`
			} `json:"sale"`
		} `json:"related_resources"`
	} `json:"transactions"`
}

// CreatePayment registers a sale with PayPal and returns the URL the payer
// must visit to approve it.
func (p *PayPalChannel) CreatePayment(ctx context.Context, o order.Order) (string, error) {
	currency, total := chargeFor(o)
	name := fmt.Sprintf("%s %s", o.CryptoAmount, o.Asset)

	var body createPaymentRequest
	body.Intent = "sale"
	body.ExperienceProfileID = p.profile()
	body.Payer.PaymentMethod = "paypal"
	body.RedirectURLs.ReturnURL = p.cfg.AppBaseURL + "/paypal/success?orderId=" + url.QueryEscape(o.OrderID)
	body.RedirectURLs.CancelURL = p.cfg.AppBaseURL + "/paypal/cancel"
	tx := paypalTransaction{
		Amount:      paypalAmount{Currency: currency, Total: total},
		Description: "Purchase of " + name,
	}
	tx.ItemList = &struct {
		Items []paypalItem `json:"items"`
	}{Items: []paypalItem{{Name: name, SKU: o.OrderID, Price: total, Currency: currency, Quantity: 1}}}
	body.Transactions = []paypalTransaction{tx}

	var resp paymentResponse
	status, err := p.do(ctx, http.MethodPost, "/v1/payments/payment", body, &resp)
	if err != nil {
		return "", wrapError(ErrGatewayUnavailable, "paypal is unavailable", err)
	}
	if status >= 300 {
		return "", gatewayf("paypal rejected payment creation with status %d", status)
	}
	for _, l := range resp.Links {
		if l.Rel == "approval_url" {
			return l.Href, nil
		}
	}
	return "", gatewayf("paypal response has no approval url")
}

type executeRequest struct {
	PayerID      string              `json:"payer_id"`
	Transactions []paypalTransaction `json:"transactions"`
}

// Authorize executes a payment the payer has approved on PayPal.
func (p *PayPalChannel) Authorize(ctx context.Context, o order.Order, in Instrument) (Receipt, error) {
	approval, ok := in.(WalletApproval)
	if !ok || approval.ProviderPaymentID == "" || approval.PayerID == "" {
		return Receipt{}, newError(ErrInvalidInstrument, "paypal approval is required")
	}
	currency, total := chargeFor(o)
	body := executeRequest{
		PayerID:      approval.PayerID,
		Transactions: []paypalTransaction{{Amount: paypalAmount{Currency: currency, Total: total}}},
	}

	var resp paymentResponse
	path := "/v1/payments/payment/" + url.PathEscape(approval.ProviderPaymentID) + "/execute"
	status, err := p.do(ctx, http.MethodPost, path, body, &resp)
	switch {
	case err != nil && status >= 200 && status < 300:
		// Funds are captured; only the reply is unreadable.
		logger.Log.Error("paypal executed payment with unreadable response",
			zap.String("order_id", o.OrderID),
			zap.String("payment_id", approval.ProviderPaymentID),
			zap.Error(err))
		resp = paymentResponse{}
	case err != nil:
		return Receipt{}, wrapError(ErrGatewayUnavailable, "paypal is unavailable", err)
	case status >= 500:
		return Receipt{}, gatewayf("paypal returned status %d", status)
	case status >= 400:
		return Receipt{}, newError(ErrDeclined, "payment execution failed")
	}
	if resp.State != "" && resp.State != "approved" {
		return Receipt{}, newError(ErrDeclined, "payment was not approved")
	}

	rc := Receipt{
		Channel:       ChannelPayPal,
		TransactionID: approval.ProviderPaymentID,
		SettledAt:     p.clock.Now(),
		Summary:       "Payment received via PayPal.",
	}
	for _, t := range resp.Transactions {
		for _, r := range t.RelatedResources {
			if r.Sale != nil && r.Sale.ID != "" {
				rc.AuthCode = r.Sale.ID
			}
		}
	}
	return rc, nil
}

type webProfileRequest struct {
	Name         string `json:"name"`
	Presentation struct {
		BrandName  string `json:"brand_name"`
		LocaleCode string `json:"locale_code"`
	} `json:"presentation"`
	InputFields struct {
		NoShipping      int `json:"no_shipping"`
		AddressOverride int `json:"address_override"`
	} `json:"input_fields"`
	FlowConfig struct {
		LandingPageType string `json:"landing_page_type"`
		UserAction      string `json:"user_action"`
	} `json:"flow_config"`
}

// SetupProfile creates a guest-checkout experience profile. Failures are
// logged and payments are created without a profile.
func (p *PayPalChannel) SetupProfile(ctx context.Context) {
	var body webProfileRequest
	body.Name = fmt.Sprintf("CRYPBUY_Guest_%d", p.clock.Now().UnixMilli())
	body.Presentation.BrandName = "CRYPBUY"
	body.Presentation.LocaleCode = "US"
	body.InputFields.NoShipping = 1
	body.InputFields.AddressOverride = 1
	body.FlowConfig.LandingPageType = "billing"
	body.FlowConfig.UserAction = "commit"

	var resp struct {
		ID string `json:"id"`
	}
	status, err := p.do(ctx, http.MethodPost, "/v1/payment-experience/web-profiles", body, &resp)
	if err != nil || status >= 300 || resp.ID == "" {
		logger.Log.Warn("paypal web profile not created", zap.Int("status", status), zap.Error(err))
		return
	}
	p.mu.Lock()
	p.profileID = resp.ID
	p.mu.Unlock()
	logger.Log.Info("paypal web profile created", zap.String("profile_id", resp.ID))
}

func (p *PayPalChannel) profile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profileID
}

func (p *PayPalChannel) accessToken(ctx context.Context) (string, error) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()
	if p.token != "" && p.clock.Now().Add(tokenLeeway).Before(p.expiresAt) {
		return p.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}
	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response without access_token")
	}
	p.token = tr.AccessToken
	p.expiresAt = p.clock.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return p.token, nil
}

// do sends an authenticated JSON request. A non-nil error means the call did
// not produce an HTTP response; the status code is returned otherwise.
func (p *PayPalChannel) do(ctx context.Context, method, path string, in, out any) (int, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return 0, err
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		logger.Log.Warn("paypal request failed",
			zap.String("path", path), zap.Int("status", resp.StatusCode), zap.ByteString("body", detail))
		return resp.StatusCode, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode body: %w", err)
		}
	}
	return resp.StatusCode, nil
}
