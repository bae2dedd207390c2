// Package setup implements the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/perpagent/config"
	"gopkg.in/yaml.v3"
)

// DefaultOutput file written by the wizard.
const DefaultOutput = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collected by the wizard.
type Answers struct {
	Preset           string
	Exchange         string
	MarketDataSource string
	Symbols          string
	StartingCapital  string
	CheckInterval    string
	LLMAPIURL        string
	Model            string
	ProtectiveStops  bool
	HTTPAddr         string
}

func defaultAnswers() Answers {
	d := config.Default()
	return Answers{
		Preset:           config.PresetDefault,
		Exchange:         config.ExchangePaper,
		MarketDataSource: d.MarketDataSource,
		Symbols:          strings.Join(d.Symbols, ","),
		StartingCapital:  strconv.FormatFloat(d.StartingCapital, 'f', -1, 64),
		CheckInterval:    d.CheckInterval.String(),
		LLMAPIURL:        d.LLM.APIURL,
		Model:            d.LLM.Model,
	}
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PERPAGENT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultOutput
	}
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PERPAGENT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Configure the perpetuals trading agent.\n"))

	fmt.Println(stepStyle.Render("STEP 1: EXCHANGE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should orders go?").
				Options(
					huh.NewOption("Paper trading (simulated account)", config.ExchangePaper),
					huh.NewOption("Hyperliquid (live)", config.ExchangeHyperliquid),
				).
				Value(&a.Exchange),
			huh.NewSelect[string]().
				Title("Candle source").
				Options(
					huh.NewOption("Hyperliquid", config.MarketDataHyperliquid),
					huh.NewOption("Binance", config.MarketDataBinance),
				).
				Value(&a.MarketDataSource),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: RISK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Risk preset").
				Options(
					huh.NewOption("Default (20x, 90%, 5% stop)", config.PresetDefault),
					huh.NewOption("Conservative (10x, 50%, 3% stop)", config.PresetConservative),
					huh.NewOption("Aggressive (30x, 95%, 7% stop)", config.PresetAggressive),
				).
				Value(&a.Preset),
			huh.NewConfirm().
				Title("Place exchange-side TP/SL triggers after opens?").
				Value(&a.ProtectiveStops),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 3: MARKETS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Symbols").
				Description("Comma separated coins (e.g. BTC,ETH,SOL)").
				Value(&a.Symbols).
				Validate(validateSymbols),
			huh.NewInput().
				Title("Starting capital (USD)").
				Value(&a.StartingCapital).
				Validate(validatePositive),
			huh.NewInput().
				Title("Check interval").
				Description("Duration string (e.g. 3m, 5m)").
				Value(&a.CheckInterval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 4: MODEL")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("LLM API URL").
				Description("OpenAI-compatible /chat/completions endpoint").
				Value(&a.LLMAPIURL),
			huh.NewInput().
				Title("Model Name").
				Value(&a.Model),
			huh.NewInput().
				Title("Status server address").
				Description("Leave empty to disable (e.g. :8080)").
				Value(&a.HTTPAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Exchange: %s\nCandles: %s\nPreset: %s\nSymbols: %s\nInterval: %s\nModel: %s\n",
		a.Exchange, a.MarketDataSource, a.Preset, a.Symbols, a.CheckInterval, a.Model,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render(
		fmt.Sprintf("Secrets are read from the environment or .env: %s, %s", config.EnvDeepSeekKey, config.EnvPrivateKey)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := Write(path, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

// Build converts wizard answers into a validated raw config document.
func Build(a Answers) (config.ConfigTmp, error) {
	var tmp config.ConfigTmp
	tmp.Preset = a.Preset
	tmp.Exchange = a.Exchange
	tmp.MarketDataSource = a.MarketDataSource
	tmp.Symbols = splitSymbols(a.Symbols)
	tmp.StartingCapitalStr = a.StartingCapital
	tmp.CheckInterval = a.CheckInterval
	tmp.LLM.APIURL = a.LLMAPIURL
	tmp.LLM.Model = a.Model
	tmp.HTTP.Addr = a.HTTPAddr
	if a.ProtectiveStops {
		stops := true
		tmp.ProtectiveStops = &stops
	}

	if _, err := tmp.ToConfig(); err != nil {
		return config.ConfigTmp{}, err
	}
	return tmp, nil
}

// Write builds the document from the answers and saves it as YAML.
func Write(path string, a Answers) error {
	tmp, err := Build(a)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateSymbols(s string) error {
	if len(splitSymbols(s)) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	return nil
}

func validatePositive(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if v <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
