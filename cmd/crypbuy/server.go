package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/admin"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/clock"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/events"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/logger"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/metrics"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/order"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/payment"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/payout"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/quote"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/router"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/storage"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/storage/file"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("crypbuy: %v", err)
	}
}

func openStore(cfg *Config) (storage.OrderStore, error) {
	if cfg.DatabaseConnection != "" {
		logger.Log.Info("using postgres order store")
		return postgres.NewPostgresStorage(cfg.DatabaseConnection)
	}
	logger.Log.Info("using file order store", zap.String("path", cfg.OrdersFile))
	return file.Open(cfg.OrdersFile)
}

func newPublisher(cfg *Config) (events.Publisher, error) {
	switch cfg.EventsBroker {
	case "rabbitmq":
		return events.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
	case "kafka":
		return events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
		})
	default:
		return events.LogPublisher{}, nil
	}
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		return err
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Log.Sync()
	metrics.Register()

	clk := clock.NewSystem()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	pub, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	relay := events.NewRelay(pub, cfg.EventWorkers, cfg.EventTimeout)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	engine := quote.NewEngine(&quote.CoinGeckoClient{
		Client:  &http.Client{Timeout: cfg.PriceTimeout},
		BaseURL: cfg.PriceAPIURL,
	}, cfg.PriceTimeout)

	var wallet payout.WalletClient
	if cfg.TronWalletURL != "" {
		wallet = &payout.HTTPWalletClient{
			Client: httpClient,
			URL:    cfg.TronWalletURL,
			Token:  cfg.TronWalletToken,
		}
	}
	payouts := payout.NewDispatcher(payout.Config{
		Mode:     cfg.PayoutMode,
		Contract: cfg.USDTContract,
		FeeLimit: cfg.TronFeeLimit,
		Timeout:  cfg.PayoutTimeout,
	}, wallet, clk)

	card := payment.NewCardChannel(payment.CardConfig{
		Mode:       cfg.CardMode,
		GatewayURL: cfg.CardGatewayURL,
		APIKey:     cfg.CardGatewayKey,
		AuthDelay:  cfg.CardAuthDelay,
		Client:     httpClient,
	}, clk)
	paypal := payment.NewPayPalChannel(payment.PayPalConfig{
		Mode:         cfg.PayPalMode,
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		BaseURL:      cfg.PayPalBaseURL,
		AppBaseURL:   cfg.AppBaseURL,
		Client:       httpClient,
	}, clk)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		paypal.SetupProfile(ctx)
	}()

	orderSvc := order.NewService(store, engine, payouts, clk, relay, card, paypal)
	orderHandler := order.NewHandler(orderSvc)

	adminSvc := admin.NewService(admin.Config{
		Login:        cfg.AdminLogin,
		PasswordHash: cfg.AdminPasswordHash,
		JWTSecret:    []byte(cfg.JWTSecret),
		JWTTTL:       cfg.JWTTTL,
	}, clk)
	if !adminSvc.Enabled() {
		logger.Log.Warn("ADMIN_PASSWORD_HASH is not set, admin routes are unauthenticated")
	}
	adminHandler := admin.NewHandler(adminSvc)

	r := router.NewRouter(orderHandler, adminHandler, adminSvc, nil)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info("starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	logger.Log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := relay.Close(ctxShutdown); err != nil {
		logger.Log.Warn("failed to close event publisher", zap.Error(err))
	}

	logger.Log.Info("server stopped gracefully")
	return nil
}
