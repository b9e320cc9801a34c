package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/alanyoungcy/goldbridge/internal/server"
	"github.com/alanyoungcy/goldbridge/internal/server/handler"
	"github.com/alanyoungcy/goldbridge/internal/server/middleware"
)

const (
	// shutdownTimeout bounds the graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second
	alertTimeout    = 15 * time.Second
)

// Serve starts the HTTP server, the websocket hub, the notifier and, for the
// paper terminal, the price walk. It blocks until ctx is cancelled or one of
// them fails.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := a.newServer(deps)

	if deps.Hub != nil {
		g.Go(func() error {
			return deps.Hub.Run(ctx)
		})
	}

	if deps.Notifier.Enabled() {
		g.Go(func() error {
			return deps.Notifier.Run(ctx)
		})
	}

	if deps.Paper != nil {
		interval := a.cfg.Terminal.Paper.WalkInterval.Duration
		g.Go(func() error {
			return deps.Paper.Run(ctx, interval)
		})
	}

	if a.cfg.Resolver.DetectOnStart {
		g.Go(func() error {
			a.detectOnStart(ctx, deps)
			return nil
		})
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening", slog.String("addr", srv.Addr()))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

func (a *App) newServer(deps *Dependencies) *server.Server {
	gate := middleware.NewAuthGate(deps.Auth, a.cfg.Auth.ReplayWindow.Duration, a.logger)

	return server.NewServer(server.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.RateLimit.Requests,
		RateWindow:  a.cfg.RateLimit.Window.Duration,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(),
		Status:  handler.NewStatusHandler(deps.Prices),
		Symbols: handler.NewSymbolHandler(deps.Resolver, a.logger),
		Prices:  handler.NewPriceHandler(deps.Prices, a.logger),
		Trades:  handler.NewTradeHandler(deps.Trades, a.cfg.Trade.DefaultVolume, a.logger),
		Account: handler.NewAccountHandler(deps.Accounts, a.logger),
	}, gate, deps.RateLimiter, deps.Hub, a.logger)
}

// detectOnStart runs one detection pass when the terminal is reachable. A
// failure logs and alerts operators; requests retry detection on demand.
func (a *App) detectOnStart(ctx context.Context, deps *Dependencies) {
	if !deps.Terminal.Connected(ctx) {
		a.logger.WarnContext(ctx, "startup detection skipped: terminal unavailable")
		a.alertDetectionFailed(ctx, deps, "Terminal unavailable at startup")
		return
	}
	sym, err := deps.Resolver.Resolve(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "startup detection failed", slog.String("error", err.Error()))
		a.alertDetectionFailed(ctx, deps, err.Error())
		return
	}
	a.logger.InfoContext(ctx, "gold symbol detected at startup",
		slog.String("symbol", sym.Name),
		slog.String("source", string(sym.Source)),
	)
}

// alertDetectionFailed delivers the startup alert directly rather than through
// the notifier queue, whose Run loop may not be draining yet.
func (a *App) alertDetectionFailed(ctx context.Context, deps *Dependencies, reason string) {
	if deps.Notifier == nil || !deps.Notifier.Enabled() {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()
	err := deps.Notifier.Notify(sendCtx, domain.Event{
		Type:    domain.EventDetectionFailed,
		Time:    time.Now().UTC(),
		Title:   "Gold symbol not detected",
		Message: reason,
	})
	if err != nil {
		a.logger.WarnContext(ctx, "startup alert failed", slog.String("error", err.Error()))
	}
}
