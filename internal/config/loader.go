package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LOTTOBET_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LOTTOBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Upstream ──
	setStr(&cfg.Upstream.BaseURL, "LOTTOBET_UPSTREAM_BASE_URL")
	setStr(&cfg.Upstream.APIKey, "LOTTOBET_UPSTREAM_API_KEY")
	setStr(&cfg.Upstream.APISecret, "LOTTOBET_UPSTREAM_API_SECRET")
	setStr(&cfg.Upstream.EncryptedSecretPath, "LOTTOBET_UPSTREAM_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Upstream.SecretPassword, "LOTTOBET_UPSTREAM_SECRET_PASSWORD")
	setDuration(&cfg.Upstream.Timeout, "LOTTOBET_UPSTREAM_TIMEOUT")
	setFloat64(&cfg.Upstream.CheckRPS, "LOTTOBET_UPSTREAM_CHECK_RPS")
	setInt(&cfg.Upstream.CheckBurst, "LOTTOBET_UPSTREAM_CHECK_BURST")

	// ── Betting ──
	setBool(&cfg.Betting.DefaultShuffle, "LOTTOBET_BETTING_DEFAULT_SHUFFLE")
	setInt(&cfg.Betting.LookupConcurrency, "LOTTOBET_BETTING_LOOKUP_CONCURRENCY")
	setDuration(&cfg.Betting.QuoteCacheTTL, "LOTTOBET_BETTING_QUOTE_CACHE_TTL")
	setDuration(&cfg.Betting.SessionIdleTTL, "LOTTOBET_BETTING_SESSION_IDLE_TTL")
	setDuration(&cfg.Betting.SweepInterval, "LOTTOBET_BETTING_SWEEP_INTERVAL")
	setDuration(&cfg.Betting.SubmitLockTTL, "LOTTOBET_BETTING_SUBMIT_LOCK_TTL")
	setStr(&cfg.Betting.TokenPepper, "LOTTOBET_BETTING_TOKEN_PEPPER")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "LOTTOBET_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "DATABASE_URL") // platform-provided alias
	setStr(&cfg.Supabase.Host, "LOTTOBET_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "LOTTOBET_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "LOTTOBET_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "LOTTOBET_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "LOTTOBET_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "LOTTOBET_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "LOTTOBET_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "LOTTOBET_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "LOTTOBET_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LOTTOBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LOTTOBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LOTTOBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LOTTOBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LOTTOBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LOTTOBET_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "LOTTOBET_REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LOTTOBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LOTTOBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "LOTTOBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LOTTOBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LOTTOBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LOTTOBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LOTTOBET_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "LOTTOBET_S3_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "LOTTOBET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LOTTOBET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LOTTOBET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "LOTTOBET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "LOTTOBET_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LOTTOBET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LOTTOBET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LOTTOBET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LOTTOBET_NOTIFY_EVENTS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "LOTTOBET_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "LOTTOBET_ARCHIVE_CRON")
	setDuration(&cfg.Archive.Retention, "LOTTOBET_ARCHIVE_RETENTION")
	setBool(&cfg.Archive.Prune, "LOTTOBET_ARCHIVE_PRUNE")

	// ── Top-level ──
	setStr(&cfg.Mode, "LOTTOBET_MODE")
	setStr(&cfg.LogLevel, "LOTTOBET_LOG_LEVEL")
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
