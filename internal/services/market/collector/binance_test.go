package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/perpagent/internal/clients"
)

func TestBinanceKlineProvider_GetKlines(t *testing.T) {
	var gotSymbol, gotInterval, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/klines", r.URL.Path)
		gotSymbol = r.URL.Query().Get("symbol")
		gotInterval = r.URL.Query().Get("interval")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			[1735812000000,"50000.1","50100.0","49900.5","50050.0","12.5",1735812179999,"625000",100,"6","300000","0"],
			[1735812180000,"50050.0","50200.0","50000.0","50150.0","8.25",1735812359999,"413000",80,"4","200000","0"]
		]`))
	}))
	defer srv.Close()

	p := NewBinanceKlineProvider(clients.NewBinanceMarketClient("", "", srv.URL))

	candles, err := p.GetKlines(context.Background(), "btc", "3m", 2)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", gotSymbol)
	assert.Equal(t, "3m", gotInterval)
	assert.Equal(t, "2", gotLimit)
	require.Len(t, candles, 2)
	assert.Equal(t, "50000.1", candles[0].Open.String())
	assert.Equal(t, "8.25", candles[1].Volume.String())
	assert.Equal(t, int64(1735812180000), candles[1].OpenTime.UnixMilli())
}

func TestBinanceKlineProvider_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	p := NewBinanceKlineProvider(clients.NewBinanceMarketClient("", "", srv.URL))

	_, err := p.GetKlines(context.Background(), "NOPE", "3m", 2)
	assert.Error(t, err)
}
