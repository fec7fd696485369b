package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/storage"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

type PostgresStorage struct {
	db *sql.DB
}

var _ storage.OrderStore = (*PostgresStorage)(nil)

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStorage{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
            order_id        TEXT PRIMARY KEY,
            status          TEXT NOT NULL,
            asset           TEXT NOT NULL,
            network         TEXT NOT NULL,
            fiat_amount     DOUBLE PRECISION NOT NULL,
            fiat_currency   TEXT NOT NULL,
            fiat_amount_usd DOUBLE PRECISION NOT NULL,
            crypto_amount   TEXT NOT NULL,
            rate            DOUBLE PRECISION NOT NULL DEFAULT 0,
            fx_rate_to_usd  DOUBLE PRECISION NOT NULL DEFAULT 1,
            wallet_address  TEXT NOT NULL,
            country         TEXT NOT NULL,
            payment_channel TEXT NOT NULL DEFAULT '',
            card_last4      TEXT NOT NULL DEFAULT '',
            card_holder     TEXT NOT NULL DEFAULT '',
            payment_id      TEXT NOT NULL DEFAULT '',
            auth_code       TEXT NOT NULL DEFAULT '',
            tx_hash         TEXT,
            completed_at    TIMESTAMPTZ,
            message         TEXT NOT NULL DEFAULT '',
            created_at      TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) UpsertOrder(ctx context.Context, o *order.Order) error {
	const q = `
        INSERT INTO orders (
            order_id, status, asset, network, fiat_amount, fiat_currency, fiat_amount_usd,
            crypto_amount, rate, fx_rate_to_usd, wallet_address, country,
            payment_channel, card_last4, card_holder, payment_id, auth_code,
            tx_hash, completed_at, message, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
        ON CONFLICT (order_id) DO UPDATE SET
            status = EXCLUDED.status,
            asset = EXCLUDED.asset,
            network = EXCLUDED.network,
            fiat_amount = EXCLUDED.fiat_amount,
            fiat_currency = EXCLUDED.fiat_currency,
            fiat_amount_usd = EXCLUDED.fiat_amount_usd,
            crypto_amount = EXCLUDED.crypto_amount,
            rate = EXCLUDED.rate,
            fx_rate_to_usd = EXCLUDED.fx_rate_to_usd,
            wallet_address = EXCLUDED.wallet_address,
            country = EXCLUDED.country,
            payment_channel = EXCLUDED.payment_channel,
            card_last4 = EXCLUDED.card_last4,
            card_holder = EXCLUDED.card_holder,
            payment_id = EXCLUDED.payment_id,
            auth_code = EXCLUDED.auth_code,
            tx_hash = EXCLUDED.tx_hash,
            completed_at = EXCLUDED.completed_at,
            message = EXCLUDED.message,
            created_at = EXCLUDED.created_at`
	_, err := s.db.ExecContext(ctx, q,
		o.OrderID, o.Status, o.Asset, o.Network, o.FiatAmount, o.FiatCurrency, o.FiatAmountUSD,
		o.CryptoAmount, o.Rate, o.FxRateToUSD, o.WalletAddress, o.Country,
		o.PaymentChannel, o.CardLast4, o.CardHolder, o.PaymentID, o.AuthCode,
		o.TxHash, o.CompletedAt, o.Message, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.OrderID, err)
	}
	return nil
}

const selectColumns = `
    SELECT order_id, status, asset, network, fiat_amount, fiat_currency, fiat_amount_usd,
           crypto_amount, rate, fx_rate_to_usd, wallet_address, country,
           payment_channel, card_last4, card_holder, payment_id, auth_code,
           tx_hash, completed_at, message, created_at
    FROM orders`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*order.Order, error) {
	var o order.Order
	var txHash sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(
		&o.OrderID, &o.Status, &o.Asset, &o.Network, &o.FiatAmount, &o.FiatCurrency, &o.FiatAmountUSD,
		&o.CryptoAmount, &o.Rate, &o.FxRateToUSD, &o.WalletAddress, &o.Country,
		&o.PaymentChannel, &o.CardLast4, &o.CardHolder, &o.PaymentID, &o.AuthCode,
		&txHash, &completedAt, &o.Message, &o.CreatedAt,
	); err != nil {
		return nil, err
	}
	if txHash.Valid {
		o.TxHash = &txHash.String
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		o.CompletedAt = &t
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func (s *PostgresStorage) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, selectColumns+` WHERE order_id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return o, nil
}

func (s *PostgresStorage) ListOrders(ctx context.Context) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, order_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
