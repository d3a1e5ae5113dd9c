package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/metrics"
	"github.com/alanyoungcy/lottobet/internal/server"
	"github.com/alanyoungcy/lottobet/internal/server/handler"
	"github.com/alanyoungcy/lottobet/internal/server/ws"
	"github.com/alanyoungcy/lottobet/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServerMode serves the HTTP API and WebSocket hub and runs the scheduled
// jobs until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering server mode")
	g, ctx := errgroup.WithContext(ctx)
	cfg := a.cfg

	// --- Services ---
	resolver := service.NewRateResolver(deps.Upstream, deps.QuoteCache, cfg.Betting.LookupConcurrency, a.logger)
	sessions := service.NewSessionService(
		deps.Catalog,
		deps.Upstream,
		resolver,
		deps.Bus,
		cfg.Betting.DefaultShuffle,
		cfg.Betting.SessionIdleTTL.Duration,
		a.logger,
	)
	submit := service.NewSubmitService(sessions, deps.Upstream, deps.Receipts, deps.Archiver, deps.Bus, deps.Audit, a.logger).
		WithLocks(deps.Locks, cfg.Betting.SubmitLockTTL.Duration)
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		submit.WithNotifier(deps.Notifier)
	}
	templates := service.NewTemplateService(deps.Templates, sessions, a.logger)
	lottery := service.NewLotteryService(deps.Upstream, deps.Audit, a.logger)
	receipts := service.NewReceiptService(deps.Receipts, deps.BlobReader, a.logger)

	// --- HTTP ---
	hub := ws.NewHub(deps.Bus, sessions, cfg.Server.CORSOrigins, a.logger)
	srv := server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		APIKey:          cfg.Server.APIKey,
		TokenPepper:     cfg.Betting.TokenPepper,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Check{
			"postgres": deps.Postgres.Ping,
			"redis":    deps.Redis.Ping,
			"s3":       deps.S3.Health,
		}, a.logger),
		Catalog:   handler.NewCatalogHandler(deps.Catalog),
		Lottery:   handler.NewLotteryHandler(lottery, a.logger),
		Sessions:  handler.NewSessionHandler(sessions, submit, a.logger),
		Receipts:  handler.NewReceiptHandler(receipts, a.logger),
		Templates: handler.NewTemplateHandler(templates, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	sched, err := a.newScheduler(ctx, sessions, deps)
	if err != nil {
		return err
	}

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// --- Schedules ---
	sched.Start()
	g.Go(func() error {
		<-ctx.Done()
		<-sched.Stop().Done()
		return nil
	})

	return g.Wait()
}

// newScheduler registers the idle-session sweep and, when enabled, the
// periodic receipt archive.
func (a *App) newScheduler(ctx context.Context, sessions *service.SessionService, deps *Dependencies) (*cron.Cron, error) {
	sched := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	sweepSpec := "@every " + a.cfg.Betting.SweepInterval.Duration.String()
	if _, err := sched.AddFunc(sweepSpec, func() {
		if n := sessions.SweepIdle(ctx); n > 0 {
			a.logger.InfoContext(ctx, "idle sessions closed", slog.Int("count", n))
		}
		metrics.SetOpenSessions(sessions.OpenCount())
	}); err != nil {
		return nil, fmt.Errorf("app: schedule session sweep: %w", err)
	}

	if a.cfg.Archive.Enabled {
		if _, err := sched.AddFunc(a.cfg.Archive.Cron, func() {
			if _, _, err := a.archive(ctx, deps); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.ErrorContext(ctx, "scheduled archive failed", slog.String("error", err.Error()))
			}
		}); err != nil {
			return nil, fmt.Errorf("app: schedule archive %q: %w", a.cfg.Archive.Cron, err)
		}
	}
	return sched, nil
}

// ArchiveMode archives receipts older than the retention window once and
// exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering archive mode")
	_, _, err := a.archive(ctx, deps)
	return err
}

func (a *App) archive(ctx context.Context, deps *Dependencies) (int64, int64, error) {
	before := time.Now().UTC().Add(-a.cfg.Archive.Retention.Duration)
	return runArchive(ctx, deps.Archiver, deps.Receipts, before, a.cfg.Archive.Prune, a.logger)
}

// receiptPruner deletes receipts that have been archived.
type receiptPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// runArchive uploads receipts older than before and, when prune is set and
// the upload succeeded, deletes those rows. It returns archived and deleted
// counts.
func runArchive(ctx context.Context, archiver domain.ReceiptArchiver, pruner receiptPruner, before time.Time, prune bool, logger *slog.Logger) (int64, int64, error) {
	archived, err := archiver.ArchiveBefore(ctx, before)
	if err != nil {
		return archived, 0, fmt.Errorf("app: archive receipts: %w", err)
	}
	logger.InfoContext(ctx, "receipts archived",
		slog.Int64("count", archived),
		slog.Time("before", before),
	)
	if !prune || archived == 0 {
		return archived, 0, nil
	}

	deleted, err := pruner.DeleteBefore(ctx, before)
	if err != nil {
		return archived, 0, fmt.Errorf("app: prune receipts: %w", err)
	}
	logger.InfoContext(ctx, "archived receipts pruned", slog.Int64("count", deleted))
	return archived, deleted, nil
}
