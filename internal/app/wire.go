package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	s3blob "github.com/alanyoungcy/lottobet/internal/blob/s3"
	"github.com/alanyoungcy/lottobet/internal/cache/redis"
	"github.com/alanyoungcy/lottobet/internal/catalog"
	"github.com/alanyoungcy/lottobet/internal/config"
	"github.com/alanyoungcy/lottobet/internal/crypto"
	"github.com/alanyoungcy/lottobet/internal/notify"
	"github.com/alanyoungcy/lottobet/internal/platform/huay"
	"github.com/alanyoungcy/lottobet/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Catalog *catalog.Catalog

	// Stores
	Postgres  *postgres.Client
	Receipts  *postgres.ReceiptStore
	Templates *postgres.TemplateStore
	Audit     *postgres.AuditStore

	// Caches and coordination (server mode only)
	Redis       *redis.Client
	QuoteCache  *redis.QuoteCache
	RateLimiter *redis.RateLimiter
	Locks       *redis.LockManager
	Bus         *redis.EventBus

	// Blob storage
	S3         *s3blob.Client
	BlobReader *s3blob.Reader
	Archiver   *s3blob.ReceiptArchiver

	// Lottery backend (server mode only)
	Upstream *huay.Client

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations for mode and
// returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, mode string, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Catalog: catalog.Default()}
	serving := mode == "server"

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		return fail("postgres", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail("postgres migrations", err)
		}
	}
	stores := pgClient.Stores()
	deps.Postgres = pgClient
	deps.Receipts = stores.Receipts
	deps.Templates = stores.Templates
	deps.Audit = stores.Audit

	// --- S3 blob storage ---
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
		Prefix:         cfg.S3.Prefix,
	})
	if err != nil {
		return fail("s3", err)
	}
	deps.S3 = s3Client
	deps.BlobReader = s3blob.NewReader(s3Client)
	deps.Archiver = s3blob.NewReceiptArchiver(s3blob.NewWriter(s3Client), deps.Receipts, deps.Audit)

	if !serving {
		return deps, cleanup, nil
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return fail("redis", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Betting.QuoteCacheTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewEventBus(redisClient)

	// --- Lottery backend ---
	upstream, err := newUpstream(cfg.Upstream)
	if err != nil {
		return fail("upstream", err)
	}
	deps.Upstream = upstream

	// --- Notifications ---
	deps.Notifier = notify.NewNotifier(buildSenders(cfg.Notify), cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// newUpstream builds the backend client. Requests are HMAC-signed when an
// agent API key is configured; the secret comes from config or from an
// encrypted key file.
func newUpstream(cfg config.UpstreamConfig) (*huay.Client, error) {
	opts := []huay.Option{
		huay.WithHTTPClient(&http.Client{Timeout: cfg.Timeout.Duration}),
		huay.WithCheckRate(cfg.CheckRPS, cfg.CheckBurst),
	}
	if cfg.APIKey != "" {
		secret, err := crypto.LoadSecret(crypto.SecretConfig{
			Raw:           cfg.APISecret,
			EncryptedPath: cfg.EncryptedSecretPath,
			Password:      cfg.SecretPassword,
		})
		if err != nil {
			return nil, err
		}
		if secret == "" {
			return nil, fmt.Errorf("api_key %q has no secret configured", cfg.APIKey)
		}
		opts = append(opts, huay.WithHMAC(&crypto.HMACAuth{Key: cfg.APIKey, Secret: secret}))
	}
	return huay.NewClient(cfg.BaseURL, opts...), nil
}

// buildSenders returns a sender for every fully configured channel.
func buildSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}
