package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/payment"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/payout"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(f.svc)
	r := chi.NewRouter()
	h.Routes(r)
	r.Get("/admin/orders", h.ListOrders)
	r.Post("/admin/order/{id}/complete", h.CompleteOrder)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestHandlerQuote(t *testing.T) {
	f := newFixture(t, nil)
	h := newTestRouter(f)

	rec := do(t, h, http.MethodPost, "/quote", `{"fiatAmount":"10","fiatCurrency":"USD","asset":"USDT"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var q order.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "10.000000", q.CryptoAmount)

	rec = do(t, h, http.MethodPost, "/quote", `{"fiatAmount":0,"asset":"USDT"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errorResponse{Error: "Invalid amount", Code: "validation_error"}, decodeError(t, rec))

	rec = do(t, h, http.MethodPost, "/quote-from-crypto", `{"cryptoAmount":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid quantity", decodeError(t, rec).Error)
}

func TestHandlerCreateAndPay(t *testing.T) {
	payouts := payout.NewDispatcher(payout.Config{Mode: payout.ModeMock}, nil, testClock)
	f := newFixture(t, payouts)
	h := newTestRouter(f)

	rec := do(t, h, http.MethodPost, "/order",
		`{"fiatAmount":10,"fiatCurrency":"USD","asset":"USDT","network":"TRC20","walletAddress":"TWallet","country":"US"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var created order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, order.StatusPending, created.Status)
	assert.Contains(t, rec.Body.String(), `"txHash":null`)

	rec = do(t, h, http.MethodPost, "/pay",
		`{"orderId":"`+created.OrderID+`","cardNumber":"4242 4242 4242 4242","expiry":"12/30","cvv":"123","cardHolder":"Jane"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp order.PayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, order.StatusCompleted, resp.Status)
	assert.Equal(t, "4242", resp.CardLast4)
	require.NotNil(t, resp.TxHash)
	assert.NotContains(t, rec.Body.String(), "4242424242424242")

	rec = do(t, h, http.MethodPost, "/pay",
		`{"orderId":"`+created.OrderID+`","cardNumber":"4242424242424242","expiry":"12/30"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errorResponse{Error: "Order already completed", Code: "already_completed"}, decodeError(t, rec))

	rec = do(t, h, http.MethodGet, "/order/"+created.OrderID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerCreateOrderValidation(t *testing.T) {
	f := newFixture(t, nil)
	h := newTestRouter(f)

	rec := do(t, h, http.MethodPost, "/order", `{"fiatAmount":10,"asset":"USDT"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errorResponse{Error: "Missing required fields", Code: "validation_error"}, decodeError(t, rec))

	rec = do(t, h, http.MethodPost, "/order", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerPayErrors(t *testing.T) {
	f := newFixture(t, nil)
	h := newTestRouter(f)

	rec := do(t, h, http.MethodPost, "/pay", `{"orderId":"ord-missing","cardNumber":"4242424242424242","expiry":"12/30"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)

	created, err := f.svc.CreateOrder(context.Background(), createReq("USDT", "TRC20"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		card   string
		status int
		code   string
		msg    string
	}{
		{"bad number", `"cardNumber":"1234","expiry":"12/30"`, http.StatusBadRequest, "invalid_instrument", "invalid card number"},
		{"expired", `"cardNumber":"4242424242424242","expiry":"01/20"`, http.StatusBadRequest, "expired_instrument", "card has expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/pay", `{"orderId":"`+created.OrderID+`",`+tt.card+`}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, errorResponse{Error: tt.msg, Code: tt.code}, decodeError(t, rec))
		})
	}
}

func TestHandlerGatewayUnavailable(t *testing.T) {
	live := payment.NewCardChannel(payment.CardConfig{Mode: payment.CardModeLive}, testClock)
	f := newFixture(t, nil, live)
	h := newTestRouter(f)

	created, err := f.svc.CreateOrder(context.Background(), createReq("USDT", "TRC20"))
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/pay", `{"orderId":"`+created.OrderID+`","cardNumber":"4242424242424242","expiry":"12/30"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "gateway_unavailable", decodeError(t, rec).Code)
}

func TestHandlerAdmin(t *testing.T) {
	f := newFixture(t, nil)
	h := newTestRouter(f)

	created, err := f.svc.CreateOrder(context.Background(), createReq("BTC", "Native"))
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/admin/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(t, h, http.MethodPost, "/admin/order/"+created.OrderID+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var done order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &done))
	assert.Equal(t, order.StatusCompleted, done.Status)
	assert.Equal(t, order.ManualTransfer, *done.TxHash)

	rec = do(t, h, http.MethodPost, "/admin/order/ord-missing/complete", `{"txHash":"abc"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerPayPalFlow(t *testing.T) {
	redirect := &redirectChannel{url: "https://paypal.example/approve"}
	payouts := payout.NewDispatcher(payout.Config{Mode: payout.ModeMock}, nil, testClock)
	f := newFixture(t, payouts, redirect)
	h := newTestRouter(f)

	created, err := f.svc.CreateOrder(context.Background(), createReq("USDT", "TRC20"))
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/paypal/create-payment", `{"orderId":"`+created.OrderID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"approvalUrl":"https://paypal.example/approve"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/paypal/success?orderId="+created.OrderID+"&paymentId=PAY-1&PayerID=P1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "COMPLETED")
	assert.Contains(t, rec.Body.String(), created.OrderID)

	stored, err := f.repo.GetOrder(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, stored.Status)

	rec = do(t, h, http.MethodGet, "/paypal/success?orderId=ord-missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Order not found")

	rec = do(t, h, http.MethodGet, "/paypal/cancel", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment cancelled", rec.Body.String())
}

func TestHandlerPayPalProviderError(t *testing.T) {
	redirect := &redirectChannel{err: &payment.Error{Kind: payment.ErrGatewayUnavailable, Message: "paypal is unavailable"}}
	f := newFixture(t, nil, redirect)
	h := newTestRouter(f)

	created, err := f.svc.CreateOrder(context.Background(), createReq("USDT", "TRC20"))
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/paypal/create-payment", `{"orderId":"`+created.OrderID+`"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "paypal is unavailable", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, "/paypal/create-payment", `{"orderId":"ord-missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
