package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

// Environment variables holding secrets.
const (
	EnvPrivateKey    = "HYPER_LIQUID_ETH_PRIVATE_KEY"
	EnvMasterAddress = "HYPER_LIQUID_MASTER_ADDRESS"
	EnvDeepSeekKey   = "DEEPSEEK_KEY"
	EnvLLMKey        = "LLM_API_KEY"
)

// Credentials secrets read from the environment.
type Credentials struct {
	PrivateKey string
	// MasterAddress queried account; empty means the key's own address.
	MasterAddress string
	LLMAPIKey     string
}

// LoadEnvFile loads variables from the given .env files (".env" when none),
// never overriding variables already set. Missing files are ignored.
func LoadEnvFile(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// LoadCredentials reads the credentials the configuration needs.
// A missing secret is reported as domain.ErrFatalStartup.
func LoadCredentials(cfg Config) (Credentials, error) {
	creds := Credentials{
		PrivateKey:    strings.TrimSpace(os.Getenv(EnvPrivateKey)),
		MasterAddress: strings.TrimSpace(os.Getenv(EnvMasterAddress)),
		LLMAPIKey:     strings.TrimSpace(os.Getenv(EnvDeepSeekKey)),
	}
	if creds.LLMAPIKey == "" {
		creds.LLMAPIKey = strings.TrimSpace(os.Getenv(EnvLLMKey))
	}

	if creds.LLMAPIKey == "" {
		return Credentials{}, errors.Wrapf(domain.ErrFatalStartup, "%s (or %s) is not set", EnvDeepSeekKey, EnvLLMKey)
	}
	if cfg.Exchange == ExchangeHyperliquid && creds.PrivateKey == "" {
		return Credentials{}, errors.Wrapf(domain.ErrFatalStartup, "%s is not set", EnvPrivateKey)
	}

	return creds, nil
}
