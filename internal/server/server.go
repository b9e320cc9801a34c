package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/alanyoungcy/goldbridge/internal/server/handler"
	"github.com/alanyoungcy/goldbridge/internal/server/middleware"
	"github.com/alanyoungcy/goldbridge/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
	// RateLimit is requests per RateWindow per client IP; zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Symbols *handler.SymbolHandler
	Prices  *handler.PriceHandler
	Trades  *handler.TradeHandler
	Account *handler.AccountHandler
}

// Server is the gateway's HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain. Routes other than status, health and /ws require a signed envelope
// checked by gate. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, gate *middleware.AuthGate, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	signed := func(h http.HandlerFunc) http.Handler { return gate.Middleware(h) }

	// Unauthenticated probes.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Symbol management.
	mux.Handle("POST /api/detect_gold_symbol", signed(handlers.Symbols.Detect))
	mux.Handle("POST /api/set_gold_symbol", signed(handlers.Symbols.Set))
	mux.Handle("POST /api/list_symbols", signed(handlers.Symbols.List))

	// Market data and trading.
	mux.Handle("POST /api/get_price", signed(handlers.Prices.GetPrice))
	mux.Handle("POST /api/execute_trade", signed(handlers.Trades.ExecuteTrade))

	// Account.
	mux.Handle("POST /api/get_account_info", signed(handlers.Account.GetAccountInfo))
	mux.Handle("POST /api/get_positions", signed(handlers.Account.GetPositions))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
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
