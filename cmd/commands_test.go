package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/perpagent/config"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "perpagent dev\n", out.String())
}

func TestLoadConfig_DryRunForcesPaper(t *testing.T) {
	cfg, err := loadConfig(&options{dryRun: true})
	require.NoError(t, err)
	assert.Equal(t, config.ExchangePaper, cfg.Exchange)

	cfg, err = loadConfig(&options{})
	require.NoError(t, err)
	assert.Equal(t, config.ExchangeHyperliquid, cfg.Exchange)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_leverage: \"99\"\n"), 0o600))

	_, err := loadConfig(&options{configPath: path})
	assert.Error(t, err)

	_, err = loadConfig(&options{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
