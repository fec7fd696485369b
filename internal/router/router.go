package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/admin"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/metrics"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/middleware"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/order"
)

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "name": "CRYPBUY"})
}

func NewRouter(
	orderH *order.Handler,
	adminH *admin.Handler,
	adminAuth middleware.TokenVerifier,
	metricsHandler http.Handler,
) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Instrument)

	r.Get("/health", health)
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.GzipHandler)

		orderH.Routes(r)
		r.Post("/admin/login", adminH.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTMiddleware(adminAuth))

			r.Get("/admin/orders", orderH.ListOrders)
			r.Post("/admin/order/{id}/complete", orderH.CompleteOrder)
		})
	})

	return r
}
