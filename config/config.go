// Package config loads the agent configuration from YAML with presets and
// defaults, and the exchange and model credentials from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"github.com/vadiminshakov/perpagent/internal/logging"
	"gopkg.in/yaml.v3"
)

const (
	ExchangeHyperliquid = "hyperliquid"
	ExchangePaper       = "paper"

	MarketDataHyperliquid = "hyperliquid"
	MarketDataBinance     = "binance"

	PresetDefault      = "default"
	PresetConservative = "conservative"
	PresetAggressive   = "aggressive"
)

// Config immutable agent configuration.
type Config struct {
	Preset   string
	Symbols  []string
	Exchange string
	// MarketDataSource candle provider, hyperliquid or binance.
	MarketDataSource string
	HyperliquidURL   string
	ProtectiveStops  bool

	StartingCapital    float64
	MaxLeverage        int
	DefaultLeverage    int
	MaxPositionPercent float64
	MinConfidence      float64
	StopLossPercent    float64
	TakeProfitPercent  float64
	CheckInterval      time.Duration

	LLM       LLMConfig
	Market    MarketConfig
	Execution ExecutionConfig

	LiquidationFactor float64
	PaperSpread       float64

	HTTPAddr string
	DataDir  string
	WALDir   string
	Log      logging.Config
}

// LLMConfig model endpoint settings. The key comes from the environment.
type LLMConfig struct {
	APIURL      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// MarketConfig candle windows.
type MarketConfig struct {
	IntradayInterval string
	IntradayLimit    int
	HigherInterval   string
	HigherLimit      int
}

// ExecutionConfig order planning constants.
type ExecutionConfig struct {
	PriceOffset    float64
	MinOrderValue  float64
	MinOrderBuffer float64
}

// ConfigTmp raw YAML document. Numbers are strings so a bad value can be
// reported with the key that carries it.
type ConfigTmp struct {
	Preset           string   `yaml:"preset,omitempty"`
	Symbols          []string `yaml:"symbols,omitempty"`
	Exchange         string   `yaml:"exchange,omitempty"`
	MarketDataSource string   `yaml:"market_data_source,omitempty"`
	HyperliquidURL   string   `yaml:"hyperliquid_url,omitempty"`
	ProtectiveStops  *bool    `yaml:"protective_stops,omitempty"`

	StartingCapitalStr    string `yaml:"starting_capital,omitempty"`
	MaxLeverageStr        string `yaml:"max_leverage,omitempty"`
	DefaultLeverageStr    string `yaml:"default_leverage,omitempty"`
	MaxPositionPercentStr string `yaml:"max_position_percent,omitempty"`
	MinConfidenceStr      string `yaml:"min_confidence,omitempty"`
	StopLossPercentStr    string `yaml:"stop_loss_percent,omitempty"`
	TakeProfitPercentStr  string `yaml:"take_profit_percent,omitempty"`
	CheckInterval         string `yaml:"check_interval,omitempty"`

	LLM struct {
		APIURL         string `yaml:"api_url,omitempty"`
		Model          string `yaml:"model,omitempty"`
		TemperatureStr string `yaml:"temperature,omitempty"`
		MaxTokensStr   string `yaml:"max_tokens,omitempty"`
		Timeout        string `yaml:"timeout,omitempty"`
	} `yaml:"llm,omitempty"`

	Market struct {
		IntradayInterval string `yaml:"intraday_interval,omitempty"`
		IntradayLimitStr string `yaml:"intraday_limit,omitempty"`
		HigherInterval   string `yaml:"higher_interval,omitempty"`
		HigherLimitStr   string `yaml:"higher_limit,omitempty"`
	} `yaml:"market,omitempty"`

	Execution struct {
		PriceOffsetStr    string `yaml:"price_offset,omitempty"`
		MinOrderValueStr  string `yaml:"min_order_value,omitempty"`
		MinOrderBufferStr string `yaml:"min_order_buffer,omitempty"`
	} `yaml:"execution,omitempty"`

	LiquidationFactorStr string `yaml:"liquidation_factor,omitempty"`
	PaperSpreadStr       string `yaml:"paper_spread,omitempty"`

	HTTP struct {
		Addr string `yaml:"addr,omitempty"`
	} `yaml:"http,omitempty"`
	DataDir string         `yaml:"data_dir,omitempty"`
	WALDir  string         `yaml:"wal_dir,omitempty"`
	Log     logging.Config `yaml:"log,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Preset:             PresetDefault,
		Symbols:            []string{"BTC", "ETH", "SOL", "BNB", "DOGE", "XRP"},
		Exchange:           ExchangeHyperliquid,
		MarketDataSource:   MarketDataHyperliquid,
		HyperliquidURL:     "https://api.hyperliquid.xyz",
		StartingCapital:    500,
		MaxLeverage:        20,
		MaxPositionPercent: 90,
		MinConfidence:      0.65,
		StopLossPercent:    5,
		TakeProfitPercent:  10,
		CheckInterval:      5 * time.Minute,
		LLM: LLMConfig{
			APIURL:      "https://api.deepseek.com/v1/chat/completions",
			Model:       "deepseek-chat",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     120 * time.Second,
		},
		Market: MarketConfig{
			IntradayInterval: "3m",
			IntradayLimit:    100,
			HigherInterval:   "4h",
			HigherLimit:      60,
		},
		Execution: ExecutionConfig{
			PriceOffset:    0.001,
			MinOrderValue:  10,
			MinOrderBuffer: 11,
		},
		LiquidationFactor: 0.9,
		PaperSpread:       0.0002,
		DataDir:           "./data/agents",
		WALDir:            "./wal",
		Log:               logging.Config{Level: "info"},
	}
}

// applyPreset overlays the named risk profile.
func applyPreset(c *Config, preset string) error {
	switch preset {
	case "", PresetDefault:
		c.Preset = PresetDefault
	case PresetConservative:
		c.Preset = preset
		c.MaxLeverage = 10
		c.MaxPositionPercent = 50
		c.StopLossPercent = 3
		c.MinConfidence = 0.75
	case PresetAggressive:
		c.Preset = preset
		c.MaxLeverage = 30
		c.MaxPositionPercent = 95
		c.StopLossPercent = 7
		c.MinConfidence = 0.60
	default:
		return fmt.Errorf("incorrect 'preset' param in yaml config: %q (use default, conservative or aggressive)", preset)
	}
	return nil
}

// Load reads the YAML file at path. An empty path yields the defaults.
// Every error is a domain.ErrFatalStartup.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, startupErr(err)
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, startupErr(fmt.Errorf("parse yaml config %s: %w", path, err))
	}

	cfg, err := tmp.ToConfig()
	if err != nil {
		return Config{}, startupErr(err)
	}
	return cfg, nil
}

func startupErr(err error) error {
	if err == nil || errors.Is(err, domain.ErrFatalStartup) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrFatalStartup, err)
}

// ToConfig converts and validates the raw document. Explicit keys override the preset.
func (c ConfigTmp) ToConfig() (Config, error) {
	cfg := Default()
	if err := applyPreset(&cfg, strings.ToLower(strings.TrimSpace(c.Preset))); err != nil {
		return Config{}, err
	}

	if len(c.Symbols) > 0 {
		symbols := make([]string, 0, len(c.Symbols))
		for _, s := range c.Symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) == 0 {
			return Config{}, fmt.Errorf("incorrect 'symbols' param in yaml config: no symbols listed")
		}
		cfg.Symbols = symbols
	}

	if c.Exchange != "" {
		cfg.Exchange = strings.ToLower(c.Exchange)
	}
	if c.MarketDataSource != "" {
		cfg.MarketDataSource = strings.ToLower(c.MarketDataSource)
	}
	setString(&cfg.HyperliquidURL, c.HyperliquidURL)
	if c.ProtectiveStops != nil {
		cfg.ProtectiveStops = *c.ProtectiveStops
	}

	floats := []struct {
		key string
		raw string
		dst *float64
	}{
		{"starting_capital", c.StartingCapitalStr, &cfg.StartingCapital},
		{"max_position_percent", c.MaxPositionPercentStr, &cfg.MaxPositionPercent},
		{"min_confidence", c.MinConfidenceStr, &cfg.MinConfidence},
		{"stop_loss_percent", c.StopLossPercentStr, &cfg.StopLossPercent},
		{"take_profit_percent", c.TakeProfitPercentStr, &cfg.TakeProfitPercent},
		{"llm.temperature", c.LLM.TemperatureStr, &cfg.LLM.Temperature},
		{"execution.price_offset", c.Execution.PriceOffsetStr, &cfg.Execution.PriceOffset},
		{"execution.min_order_value", c.Execution.MinOrderValueStr, &cfg.Execution.MinOrderValue},
		{"execution.min_order_buffer", c.Execution.MinOrderBufferStr, &cfg.Execution.MinOrderBuffer},
		{"liquidation_factor", c.LiquidationFactorStr, &cfg.LiquidationFactor},
		{"paper_spread", c.PaperSpreadStr, &cfg.PaperSpread},
	}
	for _, f := range floats {
		if err := parseFloat(f.key, f.raw, f.dst); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		key string
		raw string
		dst *int
	}{
		{"max_leverage", c.MaxLeverageStr, &cfg.MaxLeverage},
		{"default_leverage", c.DefaultLeverageStr, &cfg.DefaultLeverage},
		{"llm.max_tokens", c.LLM.MaxTokensStr, &cfg.LLM.MaxTokens},
		{"market.intraday_limit", c.Market.IntradayLimitStr, &cfg.Market.IntradayLimit},
		{"market.higher_limit", c.Market.HigherLimitStr, &cfg.Market.HigherLimit},
	}
	for _, i := range ints {
		if err := parseInt(i.key, i.raw, i.dst); err != nil {
			return Config{}, err
		}
	}

	if err := parseDuration("check_interval", c.CheckInterval, &cfg.CheckInterval); err != nil {
		return Config{}, err
	}
	if err := parseDuration("llm.timeout", c.LLM.Timeout, &cfg.LLM.Timeout); err != nil {
		return Config{}, err
	}

	setString(&cfg.LLM.APIURL, c.LLM.APIURL)
	setString(&cfg.LLM.Model, c.LLM.Model)
	setString(&cfg.Market.IntradayInterval, c.Market.IntradayInterval)
	setString(&cfg.Market.HigherInterval, c.Market.HigherInterval)
	setString(&cfg.HTTPAddr, c.HTTP.Addr)
	setString(&cfg.DataDir, c.DataDir)
	setString(&cfg.WALDir, c.WALDir)
	if c.Log.Level != "" || c.Log.File != "" {
		cfg.Log = c.Log
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges; failures are domain.ErrFatalStartup.
func (c Config) Validate() error {
	return startupErr(c.validate())
}

func (c Config) validate() error {
	switch {
	case len(c.Symbols) == 0:
		return fmt.Errorf("incorrect 'symbols' param: at least one symbol is required")
	case c.Exchange != ExchangeHyperliquid && c.Exchange != ExchangePaper:
		return fmt.Errorf("incorrect 'exchange' param: %q (use hyperliquid or paper)", c.Exchange)
	case c.MarketDataSource != MarketDataHyperliquid && c.MarketDataSource != MarketDataBinance:
		return fmt.Errorf("incorrect 'market_data_source' param: %q (use hyperliquid or binance)", c.MarketDataSource)
	case c.StartingCapital <= 0:
		return fmt.Errorf("incorrect 'starting_capital' param: must be positive")
	case c.MaxLeverage < 1 || c.MaxLeverage > 50:
		return fmt.Errorf("incorrect 'max_leverage' param: %d (must be 1-50)", c.MaxLeverage)
	case c.DefaultLeverage < 0 || c.DefaultLeverage > c.MaxLeverage:
		return fmt.Errorf("incorrect 'default_leverage' param: %d (must be 0-%d)", c.DefaultLeverage, c.MaxLeverage)
	case c.MaxPositionPercent <= 0 || c.MaxPositionPercent > 100:
		return fmt.Errorf("incorrect 'max_position_percent' param: %g (must be in (0, 100])", c.MaxPositionPercent)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("incorrect 'min_confidence' param: %g (must be 0-1)", c.MinConfidence)
	case c.StopLossPercent <= 0 || c.TakeProfitPercent <= 0:
		return fmt.Errorf("incorrect 'stop_loss_percent'/'take_profit_percent' params: must be positive")
	case c.CheckInterval < time.Second:
		return fmt.Errorf("incorrect 'check_interval' param: %s (must be at least 1s)", c.CheckInterval)
	case c.LLM.Model == "":
		return fmt.Errorf("incorrect 'llm.model' param: must not be empty")
	}
	return nil
}

// FallbackLeverage leverage assigned to keyword-classified decisions.
func (c Config) FallbackLeverage() int {
	if c.DefaultLeverage > 0 {
		return c.DefaultLeverage
	}
	return c.MaxLeverage
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func parseFloat(key, raw string, dst *float64) error {
	if raw = strings.TrimSpace(raw); raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("incorrect '%s' param in yaml config (must be a number), error: %w", key, err)
	}
	*dst = v
	return nil
}

func parseInt(key, raw string, dst *int) error {
	if raw = strings.TrimSpace(raw); raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("incorrect '%s' param in yaml config (must be an integer), error: %w", key, err)
	}
	*dst = v
	return nil
}

func parseDuration(key, raw string, dst *time.Duration) error {
	if raw = strings.TrimSpace(raw); raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("incorrect '%s' param in yaml config (e.g. 5m), error: %w", key, err)
	}
	*dst = v
	return nil
}
