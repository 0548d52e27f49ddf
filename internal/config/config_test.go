package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Assets = []AssetConfig{
		{Symbol: "WETH", ChainID: 1, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
		{Symbol: "USDC", ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
	}
	cfg.Scanner.BaseAssets = []string{"WETH"}
	return cfg
}

func TestDefaultsWithAssetsValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Scanner.MaxHops = 1
	cfg.Scanner.ProbeAmount = "-5"
	cfg.Policy.ReductionFactor = 1.5
	cfg.Intel.ConfidenceLowMax = 0.8 // above high_min

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"unknown mode",
		"unknown log_level",
		"max_hops",
		"probe_amount",
		"reduction_factor",
		"confidence_low_max",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateBaseAssetMustBeRegistered(t *testing.T) {
	cfg := validConfig()
	cfg.Scanner.BaseAssets = []string{"DOGE"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `base asset "DOGE"`)
}

func TestValidateAddressFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Assets[0].Address = "not-an-address"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hex address")
}

func TestProbeAmountInt(t *testing.T) {
	cfg := ScannerConfig{ProbeAmount: "1000000000000000000"}
	n, ok := cfg.ProbeAmountInt()
	require.True(t, ok)
	assert.Equal(t, "1000000000000000000", n.String())

	for _, bad := range []string{"", "abc", "-1", "0", "1.5"} {
		cfg.ProbeAmount = bad
		_, ok := cfg.ProbeAmountInt()
		assert.False(t, ok, "probe_amount %q", bad)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "scan"
log_level = "debug"

[[assets]]
symbol = "WETH"
chain_id = 1
address = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
decimals = 18

[[assets]]
symbol = "USDC"
chain_id = 1
address = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
decimals = 6

[scanner]
base_assets = ["WETH"]
max_hops = 4
scan_interval = "10s"

[graph]
staleness_window = "90s"
`
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(body)), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Scanner.MaxHops)
	assert.Equal(t, 10*time.Second, cfg.Scanner.ScanInterval.Duration)
	assert.Equal(t, 90*time.Second, cfg.Graph.StalenessWindow.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.InDelta(t, 0.003, cfg.Scanner.MinProfitRatio, 1e-12)

	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POOLBOT_MODE", "monitor")
	t.Setenv("POOLBOT_SCANNER_MAX_HOPS", "5")
	t.Setenv("POOLBOT_SCANNER_DRY_RUN", "true")
	t.Setenv("POOLBOT_POLICY_REDUCTION_FACTOR", "0.8")
	t.Setenv("POOLBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("POOLBOT_INTEL_REFRESH_INTERVAL", "45s")
	t.Setenv("POOLBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 5, cfg.Scanner.MaxHops)
	assert.True(t, cfg.Scanner.DryRun)
	assert.InDelta(t, 0.8, cfg.Policy.ReductionFactor, 1e-12)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 45*time.Second, cfg.Intel.RefreshInterval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("POOLBOT_SCANNER_MAX_HOPS", "many")
	t.Setenv("POOLBOT_INTEL_REFRESH_INTERVAL", "soon")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, Defaults().Scanner.MaxHops, cfg.Scanner.MaxHops)
	assert.Equal(t, Defaults().Intel.RefreshInterval.Duration, cfg.Intel.RefreshInterval.Duration)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "secret"
	cfg.S3.SecretKey = "aws-secret"
	cfg.Feed.ApiKey = "feed-key"
	cfg.Server.ApiKey = "server-key"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Feed.ApiKey)
	assert.Equal(t, "***", red.Server.ApiKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Originals untouched, and the copy does not alias the slices.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	red.Scanner.BaseAssets[0] = "MUTATED"
	assert.Equal(t, "WETH", cfg.Scanner.BaseAssets[0])

	// Empty secrets stay empty rather than becoming "***".
	assert.Empty(t, red.Postgres.DSN)
}
