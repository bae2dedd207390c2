package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH", "SOL", "BNB", "DOGE", "XRP"}, cfg.Symbols)
	assert.Equal(t, 500.0, cfg.StartingCapital)
	assert.Equal(t, 20, cfg.MaxLeverage)
	assert.Equal(t, 90.0, cfg.MaxPositionPercent)
	assert.Equal(t, 0.65, cfg.MinConfidence)
	assert.Equal(t, 5*time.Minute, cfg.CheckInterval)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 20, cfg.FallbackLeverage())
	assert.False(t, cfg.ProtectiveStops)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
symbols: [btc, " eth "]
exchange: paper
market_data_source: binance
protective_stops: true
starting_capital: 1000
max_leverage: 15
default_leverage: 5
min_confidence: 0.7
check_interval: 3m
llm:
  model: gpt-4o
  temperature: 0.2
  timeout: 30s
market:
  intraday_limit: 80
http:
  addr: ":8080"
log:
  level: debug
  file: /tmp/agent.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Symbols)
	assert.Equal(t, ExchangePaper, cfg.Exchange)
	assert.Equal(t, MarketDataBinance, cfg.MarketDataSource)
	assert.True(t, cfg.ProtectiveStops)
	assert.Equal(t, 1000.0, cfg.StartingCapital)
	assert.Equal(t, 15, cfg.MaxLeverage)
	assert.Equal(t, 5, cfg.FallbackLeverage())
	assert.Equal(t, 0.7, cfg.MinConfidence)
	assert.Equal(t, 3*time.Minute, cfg.CheckInterval)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 80, cfg.Market.IntradayLimit)
	assert.Equal(t, 60, cfg.Market.HigherLimit)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Presets(t *testing.T) {
	cfg, err := Load(writeConfig(t, "preset: conservative\n"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxLeverage)
	assert.Equal(t, 50.0, cfg.MaxPositionPercent)
	assert.Equal(t, 3.0, cfg.StopLossPercent)
	assert.Equal(t, 0.75, cfg.MinConfidence)

	cfg, err = Load(writeConfig(t, "preset: aggressive\nmax_leverage: 25\n"))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxLeverage, "explicit key overrides preset")
	assert.Equal(t, 95.0, cfg.MaxPositionPercent)
	assert.Equal(t, 0.60, cfg.MinConfidence)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown preset":    "preset: yolo\n",
		"bad number":        "max_leverage: lots\n",
		"bad duration":      "check_interval: often\n",
		"leverage range":    "max_leverage: 80\n",
		"default above max": "max_leverage: 10\ndefault_leverage: 20\n",
		"unknown exchange":  "exchange: ftx\n",
		"bad source":        "market_data_source: bybit\n",
		"confidence range":  "min_confidence: 1.5\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, domain.ErrFatalStartup)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrFatalStartup)

	_, err = Load(writeConfig(t, "symbols: [unclosed\n"))
	assert.ErrorIs(t, err, domain.ErrFatalStartup)
}

func TestValidate_FatalStartup(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.MaxLeverage = 0
	err := cfg.Validate()
	assert.ErrorIs(t, err, domain.ErrFatalStartup)
	assert.Contains(t, err.Error(), "max_leverage")
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv(EnvPrivateKey, "")
	t.Setenv(EnvMasterAddress, "")
	t.Setenv(EnvDeepSeekKey, "")
	t.Setenv(EnvLLMKey, "")

	cfg := Default()

	_, err := LoadCredentials(cfg)
	assert.ErrorIs(t, err, domain.ErrFatalStartup)

	t.Setenv(EnvLLMKey, "sk-test")
	_, err = LoadCredentials(cfg)
	assert.ErrorIs(t, err, domain.ErrFatalStartup, "live exchange needs a signing key")

	cfg.Exchange = ExchangePaper
	creds, err := LoadCredentials(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", creds.LLMAPIKey)

	t.Setenv(EnvDeepSeekKey, "ds-key")
	t.Setenv(EnvPrivateKey, "0xabc")
	creds, err = LoadCredentials(Default())
	require.NoError(t, err)
	assert.Equal(t, "ds-key", creds.LLMAPIKey)
	assert.Equal(t, "0xabc", creds.PrivateKey)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LLM_API_KEY=from-file\n"), 0o644))
	t.Setenv(EnvLLMKey, "")
	require.NoError(t, os.Unsetenv(EnvLLMKey))

	LoadEnvFile(path)

	assert.Equal(t, "from-file", os.Getenv(EnvLLMKey))
}
