// Package server exposes the betting API over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/metrics"
	"github.com/alanyoungcy/lottobet/internal/server/handler"
	"github.com/alanyoungcy/lottobet/internal/server/middleware"
	"github.com/alanyoungcy/lottobet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, the X-API-Key check is disabled
	TokenPepper string // keys member owner ids

	RateLimit       int // requests per window per client IP; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Catalog   *handler.CatalogHandler
	Lottery   *handler.LotteryHandler
	Sessions  *handler.SessionHandler
	Receipts  *handler.ReceiptHandler
	Templates *handler.TemplateHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in metrics, API key,
// rate limit, CORS and access logging middleware, innermost first.
// limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	authed := middleware.RequireMember(cfg.TokenPepper)
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authed(h))
	}

	// Public.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/catalog", handlers.Catalog.List)

	// Periods and bet history.
	route("GET /api/periods", handlers.Lottery.ListPeriods)
	route("GET /api/periods/{id}/rates", handlers.Lottery.ListRates)
	route("GET /api/bets", handlers.Lottery.ListBets)
	route("POST /api/bets/{id}/cancel", handlers.Lottery.CancelBet)

	// Sessions and carts.
	route("POST /api/sessions", handlers.Sessions.Open)
	route("GET /api/sessions/{id}", handlers.Sessions.Get)
	route("DELETE /api/sessions/{id}", handlers.Sessions.Close)
	route("POST /api/sessions/{id}/numbers", handlers.Sessions.AddNumber)
	route("POST /api/sessions/{id}/numbers/bulk", handlers.Sessions.AddNumbers)
	route("PATCH /api/sessions/{id}/lines/{lineId}", handlers.Sessions.UpdateLine)
	route("DELETE /api/sessions/{id}/lines/{lineId}", handlers.Sessions.RemoveLine)
	route("DELETE /api/sessions/{id}/lines", handlers.Sessions.Clear)
	route("POST /api/sessions/{id}/undo", handlers.Sessions.Undo)
	route("POST /api/sessions/{id}/price", handlers.Sessions.SetPrice)
	route("POST /api/sessions/{id}/submit", handlers.Sessions.Submit)

	// Receipts and templates.
	route("GET /api/receipts", handlers.Receipts.List)
	route("GET /api/receipts/{poyId}", handlers.Receipts.Get)
	route("GET /api/templates", handlers.Templates.List)
	route("POST /api/templates", handlers.Templates.Save)
	route("POST /api/templates/{id}/load", handlers.Templates.Load)
	route("DELETE /api/templates/{id}", handlers.Templates.Delete)

	if wsHub != nil {
		route("GET /ws", wsHub.HandleWS)
	}

	// The mux must see the original request for r.Pattern to reach the
	// metrics wrapper, so instrumentation sits directly around it.
	var h http.Handler = metrics.InstrumentHandler(mux)
	h = middleware.APIKey(cfg.APIKey)(h)
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
