package quote

import "strings"

// USD value of one unit of each fiat currency.
var fiatToUSD = map[string]float64{
	"USD": 1,
	"EUR": 1.08,
	"GBP": 1.27,
	"AED": 0.27,
	"INR": 0.012,
	"CNY": 0.14,
	"AUD": 0.66,
	"CAD": 0.75,
	"JPY": 0.0067,
	"BRL": 0.20,
	"MXN": 0.059,
	"HKD": 0.13,
	"SGD": 0.74,
	"NZD": 0.61,
	"CHF": 1.13,
	"SEK": 0.096,
	"NOK": 0.095,
	"DKK": 0.15,
	"PLN": 0.25,
	"RUB": 0.011,
	"ZAR": 0.053,
	"TRY": 0.031,
	"KRW": 0.00075,
	"MYR": 0.21,
	"THB": 0.028,
	"PHP": 0.018,
	"IDR": 0.000064,
	"VND": 0.000041,
	"SAR": 0.27,
	"KWD": 3.25,
}

// Used when the oracle cannot price an asset.
var fallbackPrices = map[string]float64{
	"BTC":  65000,
	"ETH":  2600,
	"USDT": 1.00,
	"XRP":  0.60,
	"BNB":  600,
	"SOL":  150,
	"USDC": 1.00,
	"TRX":  0.12,
	"DOGE": 0.16,
	"ADA":  0.45,
}

const defaultPrice = 1.0

// NormalizeCurrency upper-cases a currency code, defaulting to USD.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "USD"
	}
	return code
}

// FxRateToUSD returns the USD value of one unit of code. Unknown codes are treated as USD.
func FxRateToUSD(code string) float64 {
	if rate, ok := fiatToUSD[NormalizeCurrency(code)]; ok {
		return rate
	}
	return 1
}

// FallbackPrice returns the built-in USD price for asset, or 1.0 for unknown assets.
func FallbackPrice(asset string) float64 {
	if p, ok := fallbackPrices[strings.ToUpper(asset)]; ok {
		return p
	}
	return defaultPrice
}
