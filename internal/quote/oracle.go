package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var (
	ErrUnknownAsset = errors.New("asset is not listed by the price oracle")
	ErrNoPrice      = errors.New("price oracle returned no price")
)

var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
	"XRP":  "ripple",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"USDC": "usd-coin",
	"TRX":  "tron",
	"DOGE": "dogecoin",
	"ADA":  "cardano",
}

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGeckoClient fetches USD prices from the CoinGecko simple price API.
type CoinGeckoClient struct {
	Client  *http.Client
	BaseURL string
}

func (c *CoinGeckoClient) Price(ctx context.Context, asset string) (float64, error) {
	coinID, ok := coinIDs[strings.ToUpper(asset)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	}

	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", "usd")
	endpoint := fmt.Sprintf("%s/simple/price?%s", strings.TrimRight(c.BaseURL, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return 0, fmt.Errorf("too many requests (429) for %s", coinID)
	default:
		return 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode body: %w", err)
	}
	price, ok := body[coinID]["usd"]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w for %s", ErrNoPrice, coinID)
	}
	return price, nil
}
