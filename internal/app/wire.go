package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/cache/memory"
	"github.com/alanyoungcy/goldbridge/internal/cache/redis"
	"github.com/alanyoungcy/goldbridge/internal/config"
	"github.com/alanyoungcy/goldbridge/internal/crypto"
	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/alanyoungcy/goldbridge/internal/notify"
	"github.com/alanyoungcy/goldbridge/internal/platform/mt5bridge"
	"github.com/alanyoungcy/goldbridge/internal/platform/paper"
	"github.com/alanyoungcy/goldbridge/internal/server/ws"
	"github.com/alanyoungcy/goldbridge/internal/service"
)

// Dependencies bundles everything the gateway needs to serve. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Auth     *crypto.HMACAuth
	Terminal domain.Terminal
	// Paper is set when the terminal is the in-process simulator.
	Paper *paper.Terminal

	Resolver *service.SymbolResolver
	Prices   *service.PriceService
	Trades   *service.TradeService
	Accounts *service.AccountService

	// RateLimiter is nil when rate limiting is disabled.
	RateLimiter domain.RateLimiter

	Notifier *notify.Notifier
	// Hub is nil when the websocket stream is disabled.
	Hub *ws.Hub
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Auth: &crypto.HMACAuth{Key: cfg.Auth.APIKey, Secret: cfg.Auth.Secret},
	}

	// --- Terminal ---
	switch strings.ToLower(cfg.Terminal.Kind) {
	case "mt5bridge":
		deps.Terminal = mt5bridge.NewClient(cfg.Terminal.BridgeURL, cfg.Terminal.BridgeToken, cfg.Terminal.Timeout.Duration)
		logger.InfoContext(ctx, "wire: using mt5 bridge terminal", slog.String("url", cfg.Terminal.BridgeURL))
	default:
		deps.Paper = newPaperTerminal(cfg.Terminal.Paper, logger)
		deps.Terminal = deps.Paper
		logger.InfoContext(ctx, "wire: using paper terminal",
			slog.Int("symbols", len(cfg.Terminal.Paper.Symbols)),
			slog.Float64("balance", cfg.Terminal.Paper.Balance),
		)
	}

	// --- Rate limiting ---
	if cfg.RateLimit.Enabled {
		switch strings.ToLower(cfg.RateLimit.Backend) {
		case "redis":
			redisClient, err := redis.New(ctx, redis.ClientConfig{
				Addr:       cfg.Redis.Addr,
				Password:   cfg.Redis.Password,
				DB:         cfg.Redis.DB,
				PoolSize:   cfg.Redis.PoolSize,
				MaxRetries: cfg.Redis.MaxRetries,
				TLSEnabled: cfg.Redis.TLSEnabled,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: redis: %w", err)
			}
			closers = append(closers, func() { _ = redisClient.Close() })
			deps.RateLimiter = redis.NewRateLimiter(redisClient)
		default:
			deps.RateLimiter = memory.NewRateLimiter()
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, nil))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger).
		WithDedup(cfg.Notify.DedupWindow.Duration)

	// --- Event stream ---
	events := domain.Fanout{}
	if deps.Notifier.Enabled() {
		events = append(events, deps.Notifier)
	}
	if cfg.Server.WebSocket {
		deps.Hub = ws.NewHub(logger, ws.Config{
			StartedAt: time.Now().UTC(),
			Authorize: wsAuthorizer(deps.Auth),
		})
		events = append(events, deps.Hub)
	}

	// --- Services ---
	currency, err := regexp.Compile(cfg.Resolver.CurrencyPattern)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: resolver currency pattern: %w", err)
	}
	deps.Resolver = service.NewSymbolResolver(deps.Terminal, service.ResolverConfig{
		Aliases:         cfg.Resolver.Aliases,
		Keywords:        cfg.Resolver.Keywords,
		CurrencyPattern: currency,
		CommodityTokens: cfg.Resolver.CommodityTokens,
		MinPrice:        cfg.Resolver.MinPrice,
		MaxPrice:        cfg.Resolver.MaxPrice,
		CandidateCap:    cfg.Resolver.CandidateCap,
	}, events, logger)
	deps.Prices = service.NewPriceService(deps.Terminal, deps.Resolver, logger)
	deps.Trades = service.NewTradeService(deps.Terminal, deps.Resolver, service.TradeConfig{
		Deviation: cfg.Trade.Deviation,
		Magic:     cfg.Trade.Magic,
		Comment:   cfg.Trade.Comment,
	}, events, logger)
	deps.Accounts = service.NewAccountService(deps.Terminal, deps.Resolver)

	return deps, cleanup, nil
}

func newPaperTerminal(cfg config.PaperConfig, logger *slog.Logger) *paper.Terminal {
	symbols := make([]paper.Symbol, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols = append(symbols, paper.Symbol{
			Name:       s.Name,
			Bid:        s.Bid,
			Ask:        s.Ask,
			VolumeMin:  s.VolumeMin,
			VolumeMax:  s.VolumeMax,
			VolumeStep: s.VolumeStep,
			Disabled:   s.Disabled,
		})
	}
	return paper.New(paper.Config{
		Balance:  cfg.Balance,
		Currency: cfg.Currency,
		Leverage: cfg.Leverage,
	}, symbols, logger)
}

// wsAuthorizer admits upgrades that carry the API key in the X-API-Key header
// or, for browsers that cannot set headers, the api_key query parameter.
func wsAuthorizer(auth *crypto.HMACAuth) func(*http.Request) bool {
	return func(r *http.Request) bool {
		key := r.Header.Get(crypto.HeaderAPIKey)
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		return key != "" && auth.KeyMatches(key)
	}
}
