package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POOLBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POOLBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Graph ──
	setDuration(&cfg.Graph.StalenessWindow, "POOLBOT_GRAPH_STALENESS_WINDOW")

	// ── Scanner ──
	setStringSlice(&cfg.Scanner.BaseAssets, "POOLBOT_SCANNER_BASE_ASSETS")
	setInt(&cfg.Scanner.MaxHops, "POOLBOT_SCANNER_MAX_HOPS")
	setFloat64(&cfg.Scanner.MinProfitRatio, "POOLBOT_SCANNER_MIN_PROFIT_RATIO")
	setStr(&cfg.Scanner.ProbeAmount, "POOLBOT_SCANNER_PROBE_AMOUNT")
	setDuration(&cfg.Scanner.ScanInterval, "POOLBOT_SCANNER_SCAN_INTERVAL")
	setDuration(&cfg.Scanner.TickBudget, "POOLBOT_SCANNER_TICK_BUDGET")
	setBool(&cfg.Scanner.DryRun, "POOLBOT_SCANNER_DRY_RUN")
	setFloat64(&cfg.Scanner.SettlementCost, "POOLBOT_SCANNER_SETTLEMENT_COST")

	// ── Intel ──
	setDuration(&cfg.Intel.RefreshInterval, "POOLBOT_INTEL_REFRESH_INTERVAL")
	setDuration(&cfg.Intel.Window, "POOLBOT_INTEL_WINDOW")
	setFloat64(&cfg.Intel.ConfidenceLowMax, "POOLBOT_INTEL_CONFIDENCE_LOW_MAX")
	setFloat64(&cfg.Intel.ConfidenceHighMin, "POOLBOT_INTEL_CONFIDENCE_HIGH_MIN")
	setInt(&cfg.Intel.RegulatoryThreshold, "POOLBOT_INTEL_REGULATORY_THRESHOLD")

	// ── Policy ──
	setFloat64(&cfg.Policy.MinProfitRatio, "POOLBOT_POLICY_MIN_PROFIT_RATIO")
	setFloat64(&cfg.Policy.BullishThreshold, "POOLBOT_POLICY_BULLISH_THRESHOLD")
	setFloat64(&cfg.Policy.ReductionFactor, "POOLBOT_POLICY_REDUCTION_FACTOR")
	setFloat64(&cfg.Policy.BoostFactor, "POOLBOT_POLICY_BOOST_FACTOR")
	setFloat64(&cfg.Policy.MinMultiplier, "POOLBOT_POLICY_MIN_MULTIPLIER")
	setFloat64(&cfg.Policy.MaxMultiplier, "POOLBOT_POLICY_MAX_MULTIPLIER")

	// ── Feed ──
	setStr(&cfg.Feed.PoolWsURL, "POOLBOT_FEED_POOL_WS_URL")
	setStringSlice(&cfg.Feed.Pools, "POOLBOT_FEED_POOLS")
	setStr(&cfg.Feed.ApiKey, "POOLBOT_FEED_API_KEY")
	setStr(&cfg.Feed.EncryptedKeyPath, "POOLBOT_FEED_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Feed.KeyPassword, "POOLBOT_FEED_KEY_PASSWORD")
	setDuration(&cfg.Feed.ReconnectBackoff, "POOLBOT_FEED_RECONNECT_BACKOFF")
	setDuration(&cfg.Feed.ReconnectBackoffMax, "POOLBOT_FEED_RECONNECT_BACKOFF_MAX")
	setStr(&cfg.Feed.NewsChannel, "POOLBOT_FEED_NEWS_CHANNEL")
	setStr(&cfg.Feed.MarketsChannel, "POOLBOT_FEED_MARKETS_CHANNEL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POOLBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POOLBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POOLBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POOLBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POOLBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POOLBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POOLBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POOLBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POOLBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POOLBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POOLBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POOLBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POOLBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POOLBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POOLBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POOLBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POOLBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POOLBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "POOLBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POOLBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POOLBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POOLBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POOLBOT_S3_FORCE_PATH_STYLE")
	setBool(&cfg.S3.ArchiveEnabled, "POOLBOT_S3_ARCHIVE_ENABLED")
	setInt(&cfg.S3.ArchiveRetentionDays, "POOLBOT_S3_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.S3.ArchiveInterval, "POOLBOT_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POOLBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POOLBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POOLBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "POOLBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "POOLBOT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "POOLBOT_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POOLBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POOLBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POOLBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POOLBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POOLBOT_MODE")
	setStr(&cfg.LogLevel, "POOLBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
