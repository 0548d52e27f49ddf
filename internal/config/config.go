// Package config defines the top-level configuration for the pool bot and
// provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POOLBOT_* environment variables.
type Config struct {
	Assets   []AssetConfig  `toml:"assets"`
	Graph    GraphConfig    `toml:"graph"`
	Scanner  ScannerConfig  `toml:"scanner"`
	Intel    IntelConfig    `toml:"intel"`
	Policy   PolicyConfig   `toml:"policy"`
	Feed     FeedConfig     `toml:"feed"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// AssetConfig registers one tradable asset with the pool graph.
type AssetConfig struct {
	Symbol   string `toml:"symbol"`
	ChainID  uint64 `toml:"chain_id"`
	Address  string `toml:"address"`
	Decimals uint8  `toml:"decimals"`
}

// GraphConfig holds pool graph parameters.
type GraphConfig struct {
	// StalenessWindow is how long a pool may go without a fresh reading
	// before it is excluded from quoting.
	StalenessWindow duration `toml:"staleness_window"`
}

// ScannerConfig holds cycle scanner parameters.
type ScannerConfig struct {
	BaseAssets     []string `toml:"base_assets"` // symbols of the assets scans start from
	MaxHops        int      `toml:"max_hops"`
	MinProfitRatio float64  `toml:"min_profit_ratio"`
	ProbeAmount    string   `toml:"probe_amount"` // integer notional in base asset units
	ScanInterval   duration `toml:"scan_interval"`
	TickBudget     duration `toml:"tick_budget"`
	DryRun         bool     `toml:"dry_run"`

	SettlementCost         float64            `toml:"settlement_cost"` // per hop, in ratio terms
	PerVenueSettlementCost map[string]float64 `toml:"per_venue_settlement_cost"`
}

// IntelConfig holds intelligence aggregation parameters.
type IntelConfig struct {
	RefreshInterval     duration `toml:"refresh_interval"`
	Window              duration `toml:"window"`
	ConfidenceLowMax    float64  `toml:"confidence_low_max"`
	ConfidenceHighMin   float64  `toml:"confidence_high_min"`
	RegulatoryThreshold int      `toml:"regulatory_threshold"`
}

// PolicyConfig holds decision table thresholds.
type PolicyConfig struct {
	MinProfitRatio   float64 `toml:"min_profit_ratio"`
	BullishThreshold float64 `toml:"bullish_threshold"`
	ReductionFactor  float64 `toml:"reduction_factor"`
	BoostFactor      float64 `toml:"boost_factor"`
	MinMultiplier    float64 `toml:"min_multiplier"`
	MaxMultiplier    float64 `toml:"max_multiplier"`
}

// FeedConfig holds the external feed endpoints and credentials.
type FeedConfig struct {
	PoolWsURL            string   `toml:"pool_ws_url"`
	Pools                []string `toml:"pools"` // empty subscribes to every pool the venue publishes
	ApiKey               string   `toml:"api_key"`
	EncryptedKeyPath     string   `toml:"encrypted_key_path"`
	KeyPassword          string   `toml:"key_password"`
	ReconnectBackoff     duration `toml:"reconnect_backoff"`
	ReconnectBackoffMax  duration `toml:"reconnect_backoff_max"`
	NewsChannel          string   `toml:"news_channel"`
	MarketsChannel       string   `toml:"markets_channel"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint             string   `toml:"endpoint"`
	Region               string   `toml:"region"`
	Bucket               string   `toml:"bucket"`
	AccessKey            string   `toml:"access_key"`
	SecretKey            string   `toml:"secret_key"`
	UseSSL               bool     `toml:"use_ssl"`
	ForcePathStyle       bool     `toml:"force_path_style"`
	ArchiveEnabled       bool     `toml:"archive_enabled"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveInterval      duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	ApiKey      string   `toml:"api_key"`

	// RateLimit is the per-client request budget per RateLimitWindow.
	// Zero disables rate limiting.
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Graph: GraphConfig{
			StalenessWindow: duration{2 * time.Minute},
		},
		Scanner: ScannerConfig{
			BaseAssets:     []string{"WETH"},
			MaxHops:        3,
			MinProfitRatio: 0.003,
			ProbeAmount:    "1000000000000000000", // 1e18
			ScanInterval:   duration{5 * time.Second},
			TickBudget:     duration{2 * time.Second},
			DryRun:         false,
			SettlementCost: 0.0005,
			PerVenueSettlementCost: map[string]float64{},
		},
		Intel: IntelConfig{
			RefreshInterval:     duration{30 * time.Second},
			Window:              duration{time.Hour},
			ConfidenceLowMax:    0.40,
			ConfidenceHighMin:   0.70,
			RegulatoryThreshold: 3,
		},
		Policy: PolicyConfig{
			MinProfitRatio:   0.003,
			BullishThreshold: 0.3,
			ReductionFactor:  0.6,
			BoostFactor:      0.25,
			MinMultiplier:    0.1,
			MaxMultiplier:    2.0,
		},
		Feed: FeedConfig{
			PoolWsURL:           "ws://localhost:8546/pools",
			ReconnectBackoff:    duration{time.Second},
			ReconnectBackoffMax: duration{30 * time.Second},
			NewsChannel:         "intel.news",
			MarketsChannel:      "intel.markets",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "poolbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:             "http://localhost:9000",
			Region:               "us-east-1",
			Bucket:               "poolbot-data",
			UseSSL:               false,
			ForcePathStyle:       true,
			ArchiveEnabled:       false,
			ArchiveRetentionDays: 90,
			ArchiveInterval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"verdict_executed", "risk_flag_changed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ProbeAmountInt parses the scanner probe amount as a big integer.
func (c *ScannerConfig) ProbeAmountInt() (*big.Int, bool) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(c.ProbeAmount), 10)
	if !ok || n.Sign() <= 0 {
		return nil, false
	}
	return n, true
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. Invalid configuration is the
// only fatal error class in the process.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, monitor, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Assets
	if len(c.Assets) < 2 {
		errs = append(errs, "assets: at least two assets must be registered")
	}
	seen := map[string]bool{}
	for i, a := range c.Assets {
		if a.Symbol == "" {
			errs = append(errs, fmt.Sprintf("assets[%d]: symbol must not be empty", i))
		}
		if a.ChainID == 0 {
			errs = append(errs, fmt.Sprintf("assets[%d]: chain_id must be positive", i))
		}
		if !isHexAddress(a.Address) {
			errs = append(errs, fmt.Sprintf("assets[%d]: address %q is not a valid hex address", i, a.Address))
		}
		if seen[a.Symbol] {
			errs = append(errs, fmt.Sprintf("assets[%d]: duplicate symbol %q", i, a.Symbol))
		}
		seen[a.Symbol] = true
	}

	// Graph
	if c.Graph.StalenessWindow.Duration <= 0 {
		errs = append(errs, "graph: staleness_window must be > 0")
	}

	// Scanner
	if len(c.Scanner.BaseAssets) == 0 {
		errs = append(errs, "scanner: base_assets must not be empty")
	}
	for _, sym := range c.Scanner.BaseAssets {
		if !seen[sym] {
			errs = append(errs, fmt.Sprintf("scanner: base asset %q is not a registered asset", sym))
		}
	}
	if c.Scanner.MaxHops < 2 {
		errs = append(errs, "scanner: max_hops must be >= 2")
	}
	if c.Scanner.MinProfitRatio < 0 {
		errs = append(errs, "scanner: min_profit_ratio must be >= 0")
	}
	if _, ok := c.Scanner.ProbeAmountInt(); !ok {
		errs = append(errs, fmt.Sprintf("scanner: probe_amount %q must be a positive integer", c.Scanner.ProbeAmount))
	}
	if c.Scanner.ScanInterval.Duration <= 0 {
		errs = append(errs, "scanner: scan_interval must be > 0")
	}
	if c.Scanner.TickBudget.Duration <= 0 {
		errs = append(errs, "scanner: tick_budget must be > 0")
	}
	if c.Scanner.SettlementCost < 0 {
		errs = append(errs, "scanner: settlement_cost must be >= 0")
	}
	for venue, cost := range c.Scanner.PerVenueSettlementCost {
		if cost < 0 {
			errs = append(errs, fmt.Sprintf("scanner: per_venue_settlement_cost[%q] must be >= 0", venue))
		}
	}

	// Intel
	if c.Intel.RefreshInterval.Duration <= 0 {
		errs = append(errs, "intel: refresh_interval must be > 0")
	}
	if c.Intel.Window.Duration <= 0 {
		errs = append(errs, "intel: window must be > 0")
	}
	if c.Intel.ConfidenceLowMax <= 0 || c.Intel.ConfidenceLowMax >= 1 {
		errs = append(errs, "intel: confidence_low_max must be in (0, 1)")
	}
	if c.Intel.ConfidenceHighMin <= 0 || c.Intel.ConfidenceHighMin >= 1 {
		errs = append(errs, "intel: confidence_high_min must be in (0, 1)")
	}
	if c.Intel.ConfidenceLowMax >= c.Intel.ConfidenceHighMin {
		errs = append(errs, "intel: confidence_low_max must be below confidence_high_min")
	}
	if c.Intel.RegulatoryThreshold < 1 {
		errs = append(errs, "intel: regulatory_threshold must be >= 1")
	}

	// Policy
	if c.Policy.MinProfitRatio < 0 {
		errs = append(errs, "policy: min_profit_ratio must be >= 0")
	}
	if c.Policy.BullishThreshold < -1 || c.Policy.BullishThreshold > 1 {
		errs = append(errs, "policy: bullish_threshold must be in [-1, 1]")
	}
	if c.Policy.ReductionFactor < 0 || c.Policy.ReductionFactor > 1 {
		errs = append(errs, "policy: reduction_factor must be in [0, 1]")
	}
	if c.Policy.BoostFactor < 0 {
		errs = append(errs, "policy: boost_factor must be >= 0")
	}
	if c.Policy.MinMultiplier < 0 {
		errs = append(errs, "policy: min_multiplier must be >= 0")
	}
	if c.Policy.MaxMultiplier <= 0 {
		errs = append(errs, "policy: max_multiplier must be > 0")
	}
	if c.Policy.MinMultiplier > c.Policy.MaxMultiplier {
		errs = append(errs, "policy: min_multiplier must not exceed max_multiplier")
	}

	// Feed
	if c.Mode != "monitor" {
		if c.Feed.PoolWsURL == "" {
			errs = append(errs, "feed: pool_ws_url must not be empty for mode "+c.Mode)
		}
		if c.Feed.EncryptedKeyPath != "" && c.Feed.KeyPassword == "" {
			errs = append(errs, "feed: key_password is required when encrypted_key_path is set")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.S3.ArchiveRetentionDays < 1 {
			errs = append(errs, "s3: archive_retention_days must be >= 1 when archiving is enabled")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0 when archiving is enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
			errs = append(errs, "server: rate_limit_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isHexAddress reports whether s looks like a 0x-prefixed 20-byte hex address.
func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
