package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/payment"
)

const (
	codeValidation       = "validation_error"
	codeNotFound         = "not_found"
	codeAlreadyCompleted = "already_completed"
	codeAlreadyPaid      = "already_paid"
	codeInternalError    = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{Error: msg, Code: code})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("encode response", zap.Error(err))
	}
}

// classify maps a service error to its HTTP status, code and client message.
func classify(err error) (int, string, string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, codeValidation, verr.Msg
	case errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound, codeNotFound, "Order not found"
	case errors.Is(err, ErrAlreadyCompleted):
		return http.StatusBadRequest, codeAlreadyCompleted, "Order already completed"
	case errors.Is(err, ErrAlreadyPaid):
		return http.StatusBadRequest, codeAlreadyPaid, "Order already paid"
	case errors.Is(err, ErrUnknownChannel):
		return http.StatusBadRequest, codeValidation, err.Error()
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return http.StatusBadGateway, payment.Kind(err), err.Error()
	}
	if kind := payment.Kind(err); kind != "" {
		return http.StatusBadRequest, kind, err.Error()
	}
	return http.StatusInternalServerError, codeInternalError, "internal error"
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status == http.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Error(err))
	}
	writeError(w, status, code, msg)
}
