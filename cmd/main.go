// Command perpagent runs an LLM-driven trading agent on Hyperliquid perpetuals.
// Every cycle it collects market state, asks the model for one decision, bounds it
// by the risk policy and trades it live or on a paper account.
//
// Usage:
//
//	perpagent run --config config.yaml
//	perpagent run --dry-run        (paper trading, no signing key needed)
//	perpagent once --config config.yaml
//	perpagent setup                (interactive config wizard)
//
// Required environment variables (also read from .env):
//
//	DEEPSEEK_KEY or LLM_API_KEY
//	HYPER_LIQUID_ETH_PRIVATE_KEY for live trading
//	HYPER_LIQUID_MASTER_ADDRESS when the key belongs to an API wallet
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
