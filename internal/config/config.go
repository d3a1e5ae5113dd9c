// Package config defines the lottobet configuration and its validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LOTTOBET_* environment variables.
type Config struct {
	Upstream UpstreamConfig `toml:"upstream"`
	Betting  BettingConfig  `toml:"betting"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Archive  ArchiveConfig  `toml:"archive"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// UpstreamConfig points at the lottery backend's member API. The agent
// secret may be given raw or as a file encrypted with the key manager.
type UpstreamConfig struct {
	BaseURL             string   `toml:"base_url"`
	APIKey              string   `toml:"api_key"`
	APISecret           string   `toml:"api_secret"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	Timeout             duration `toml:"timeout"`
	CheckRPS            float64  `toml:"check_rps"` // 0 disables the outbound limiter
	CheckBurst          int      `toml:"check_burst"`
}

// BettingConfig holds session and cart behaviour.
type BettingConfig struct {
	DefaultShuffle    bool     `toml:"default_shuffle"`
	LookupConcurrency int      `toml:"lookup_concurrency"`
	QuoteCacheTTL     duration `toml:"quote_cache_ttl"` // 0 disables quote caching
	SessionIdleTTL    duration `toml:"session_idle_ttl"`
	SweepInterval     duration `toml:"sweep_interval"`
	SubmitLockTTL     duration `toml:"submit_lock_ttl"`
	TokenPepper       string   `toml:"token_pepper"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
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
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters. An empty endpoint
// means AWS S3.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"` // requests per window per IP; 0 disables
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ArchiveConfig controls receipt archival to S3.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"` // schedule in server mode
	Cron      string   `toml:"cron"`
	Retention duration `toml:"retention"`
	Prune     bool     `toml:"prune"` // delete archived rows from Postgres
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
		Upstream: UpstreamConfig{
			Timeout:    duration{30 * time.Second},
			CheckRPS:   20,
			CheckBurst: 10,
		},
		Betting: BettingConfig{
			DefaultShuffle:    true,
			LookupConcurrency: 4,
			QuoteCacheTTL:     duration{30 * time.Second},
			SessionIdleTTL:    duration{2 * time.Hour},
			SweepInterval:     duration{5 * time.Minute},
			SubmitLockTTL:     duration{30 * time.Second},
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "lottobet:",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "lottobet-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"submission_success", "submission_failed"},
		},
		Archive: ArchiveConfig{
			Enabled:   true,
			Cron:      "0 4 * * *",
			Retention: duration{90 * 24 * time.Hour},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Upstream and betting only matter when serving members.
	if mode == "server" {
		if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "upstream: base_url must be an absolute URL")
		}
		if c.Upstream.APIKey != "" && c.Upstream.APISecret == "" && c.Upstream.EncryptedSecretPath == "" {
			errs = append(errs, "upstream: api_secret or encrypted_secret_path is required when api_key is set")
		}
		if c.Upstream.EncryptedSecretPath != "" && c.Upstream.SecretPassword == "" {
			errs = append(errs, "upstream: secret_password is required when encrypted_secret_path is set")
		}
		if c.Upstream.Timeout.Duration <= 0 {
			errs = append(errs, "upstream: timeout must be > 0")
		}
		if c.Upstream.CheckRPS < 0 {
			errs = append(errs, "upstream: check_rps must be >= 0")
		}

		if c.Betting.LookupConcurrency < 1 {
			errs = append(errs, "betting: lookup_concurrency must be >= 1")
		}
		if c.Betting.QuoteCacheTTL.Duration < 0 {
			errs = append(errs, "betting: quote_cache_ttl must be >= 0")
		}
		if c.Betting.SessionIdleTTL.Duration <= 0 {
			errs = append(errs, "betting: session_idle_ttl must be > 0")
		}
		if c.Betting.SweepInterval.Duration <= 0 {
			errs = append(errs, "betting: sweep_interval must be > 0")
		}
		if c.Betting.SubmitLockTTL.Duration <= 0 {
			errs = append(errs, "betting: submit_lock_ttl must be > 0")
		}
		if strings.TrimSpace(c.Betting.TokenPepper) == "" {
			errs = append(errs, "betting: token_pepper must not be empty")
		}

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

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}
	if c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty")
	}

	// Archive
	if c.Archive.Retention.Duration <= 0 {
		errs = append(errs, "archive: retention must be > 0")
	}
	if c.Archive.Enabled && mode == "server" {
		if _, err := cron.ParseStandard(c.Archive.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("archive: invalid cron %q: %v", c.Archive.Cron, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
