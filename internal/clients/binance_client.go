package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceMarketClient creates a Binance client for public market data.
// Klines need no credentials, so the keys may be empty. An empty baseURL keeps the production endpoint.
func NewBinanceMarketClient(apiKey, apiSecret, baseURL string) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return client
}
