package order

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/payment"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the public endpoints. Admin endpoints are mounted by the
// router so they can sit behind authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/quote", h.Quote)
	r.Post("/quote-from-crypto", h.QuoteFromCrypto)
	r.Post("/order", h.CreateOrder)
	r.Get("/order/{id}", h.GetOrder)
	r.Post("/pay", h.Pay)
	r.Post("/paypal/create-payment", h.CreatePayPalPayment)
	r.Get("/paypal/success", h.PayPalSuccess)
	r.Get("/paypal/cancel", h.PayPalCancel)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req order.QuoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid amount")
		return
	}
	q, err := h.svc.Quote(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) QuoteFromCrypto(w http.ResponseWriter, r *http.Request) {
	var req order.CryptoQuoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid quantity")
		return
	}
	q, err := h.svc.QuoteFromCrypto(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Missing required fields")
		return
	}
	o, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CompleteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid request body")
		return
	}
	o, err := h.svc.CompleteManually(r.Context(), chi.URLParam(r, "id"), req.TxHash)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	var req order.PayRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid request body")
		return
	}
	card := payment.Card{
		Number: req.CardNumber,
		Expiry: req.Expiry,
		CVV:    req.CVV,
		Holder: req.CardHolder,
	}
	o, err := h.svc.SubmitPayment(r.Context(), req.OrderID, payment.ChannelCard, card)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order.PayResponse{
		OrderID:   o.OrderID,
		Status:    o.Status,
		TxHash:    o.TxHash,
		Message:   o.Message,
		CardLast4: o.CardLast4,
	})
}

type createPaymentRequest struct {
	OrderID string `json:"orderId"`
}

type createPaymentResponse struct {
	ApprovalURL string `json:"approvalUrl"`
}

func (h *Handler) CreatePayPalPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid request body")
		return
	}
	approval, err := h.svc.BeginRedirectPayment(r.Context(), req.OrderID, payment.ChannelPayPal)
	if err != nil {
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			logger.Log.Error("paypal create payment failed", zap.String("order_id", req.OrderID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, payment.Kind(err), err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createPaymentResponse{ApprovalURL: approval})
}

var successPage = template.Must(template.New("paypal-success").Parse(`<html>
  <body style="font-family: sans-serif; text-align: center; padding-top: 50px;">
    <h1 style="color: green;">Payment Received!</h1>
    <p>Order #{{.OrderID}} is now <strong>{{.Label}}</strong>.</p>
    <p>{{if .Completed}}Your {{.Asset}} has been sent automatically to your wallet.{{else}}We will send your crypto shortly.{{end}}</p>
    <p>You can close this window.</p>
    <script>
      if (window.opener) {
        window.opener.postMessage({ status: {{.Status}}, orderId: {{.OrderID}} }, '*');
        window.close();
      }
    </script>
  </body>
</html>
`))

type successView struct {
	OrderID   string
	Status    string
	Label     string
	Asset     string
	Completed bool
}

func (h *Handler) PayPalSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("orderId")
	approval := payment.WalletApproval{
		ProviderPaymentID: q.Get("paymentId"),
		PayerID:           q.Get("PayerID"),
	}

	o, err := h.svc.SubmitPayment(r.Context(), orderID, payment.ChannelPayPal, approval)
	if err != nil {
		status, _, msg := classify(err)
		if status != http.StatusNotFound {
			logger.Log.Warn("paypal execute failed", zap.String("order_id", orderID), zap.Error(err))
			msg = "Payment execution failed"
		}
		http.Error(w, msg, status)
		return
	}

	view := successView{
		OrderID:   o.OrderID,
		Status:    string(o.Status),
		Label:     strings.ToUpper(string(o.Status)),
		Asset:     o.Asset,
		Completed: o.Status == order.StatusCompleted,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := successPage.Execute(w, view); err != nil {
		logger.Log.Error("render paypal success page", zap.Error(err))
	}
}

func (h *Handler) PayPalCancel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Payment cancelled")
}
