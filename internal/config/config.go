// Package config defines the top-level configuration for the gold trading
// gateway and its client, and provides validation helpers.
package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by GOLDBRIDGE_* environment variables.
type Config struct {
	Auth      AuthConfig      `toml:"auth"`
	Server    ServerConfig    `toml:"server"`
	Terminal  TerminalConfig  `toml:"terminal"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Trade     TradeConfig     `toml:"trade"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Redis     RedisConfig     `toml:"redis"`
	Notify    NotifyConfig    `toml:"notify"`
	Client    ClientConfig    `toml:"client"`
	LogLevel  string          `toml:"log_level"`
}

// AuthConfig holds the single static credential shared by gateway and client.
type AuthConfig struct {
	APIKey       string   `toml:"api_key"`
	Secret       string   `toml:"secret"`
	ReplayWindow duration `toml:"replay_window"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	WebSocket   bool     `toml:"websocket"`
}

// TerminalConfig selects and configures the broker terminal adapter.
type TerminalConfig struct {
	// Kind is "paper" (in-process simulator) or "mt5bridge" (REST bridge).
	Kind        string      `toml:"kind"`
	BridgeURL   string      `toml:"bridge_url"`
	BridgeToken string      `toml:"bridge_token"`
	Timeout     duration    `toml:"timeout"`
	Paper       PaperConfig `toml:"paper"`
}

// PaperConfig seeds the simulated terminal.
type PaperConfig struct {
	Balance      float64       `toml:"balance"`
	Currency     string        `toml:"currency"`
	Leverage     int           `toml:"leverage"`
	WalkInterval duration      `toml:"walk_interval"`
	Symbols      []PaperSymbol `toml:"symbols"`
}

// PaperSymbol is one instrument in the simulated catalog.
type PaperSymbol struct {
	Name       string  `toml:"name"`
	Bid        float64 `toml:"bid"`
	Ask        float64 `toml:"ask"`
	VolumeMin  float64 `toml:"volume_min"`
	VolumeMax  float64 `toml:"volume_max"`
	VolumeStep float64 `toml:"volume_step"`
	Disabled   bool    `toml:"disabled"`
}

// ResolverConfig tunes gold symbol detection.
type ResolverConfig struct {
	Aliases         []string `toml:"aliases"`
	Keywords        []string `toml:"keywords"`
	CurrencyPattern string   `toml:"currency_pattern"`
	CommodityTokens []string `toml:"commodity_tokens"`
	MinPrice        float64  `toml:"min_price"`
	MaxPrice        float64  `toml:"max_price"`
	CandidateCap    int      `toml:"candidate_cap"`
	DetectOnStart   bool     `toml:"detect_on_start"`
}

// TradeConfig holds fixed order parameters.
type TradeConfig struct {
	Deviation     int     `toml:"deviation"`
	Magic         int64   `toml:"magic"`
	Comment       string  `toml:"comment"`
	DefaultVolume float64 `toml:"default_volume"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled  bool     `toml:"enabled"`
	Backend  string   `toml:"backend"` // "memory" or "redis"
	Requests int      `toml:"requests"`
	Window   duration `toml:"window"`
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

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	DedupWindow       duration `toml:"dedup_window"`
}

// ClientConfig holds settings for the goldclient command.
type ClientConfig struct {
	BaseURL        string   `toml:"base_url"`
	PollInterval   duration `toml:"poll_interval"`
	ProbeTimeout   duration `toml:"probe_timeout"`
	StatusTimeout  duration `toml:"status_timeout"`
	DetectTimeout  duration `toml:"detect_timeout"`
	RequestTimeout duration `toml:"request_timeout"`
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

// DefaultAliases lists broker naming conventions for spot gold, most common
// first. Order is the tie-break during detection.
var DefaultAliases = []string{
	"XAUUSD", "GOLD", "GOLDUSD", "XAU/USD", "XAU_USD",
	"GOLD.a", "GOLD.c", "GOLD.m", "GOLDm", "XAUUSDm",
	"Au", "AUUSD", "GC", "XAUEUR", "XAUGBP",
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Auth: AuthConfig{
			ReplayWindow: duration{60 * time.Second},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5000,
			CORSOrigins: []string{"*"},
			WebSocket:   true,
		},
		Terminal: TerminalConfig{
			Kind:    "paper",
			Timeout: duration{10 * time.Second},
			Paper: PaperConfig{
				Balance:      10_000,
				Currency:     "USD",
				Leverage:     100,
				WalkInterval: duration{time.Second},
				Symbols: []PaperSymbol{
					{Name: "XAUUSD", Bid: 2400.30, Ask: 2400.50, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01},
					{Name: "XAGUSD", Bid: 29.10, Ask: 29.13, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01},
					{Name: "EURUSD", Bid: 1.0841, Ask: 1.0842, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01},
					{Name: "AUDUSD", Bid: 0.6612, Ask: 0.6613, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01},
					{Name: "USDJPY", Bid: 151.20, Ask: 151.22, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01},
				},
			},
		},
		Resolver: ResolverConfig{
			Aliases:         append([]string(nil), DefaultAliases...),
			Keywords:        []string{"XAU", "GOLD", "AU", "GC"},
			CurrencyPattern: "USD",
			CommodityTokens: []string{"GOLD"},
			MinPrice:        1000,
			MaxPrice:        5000,
			CandidateCap:    20,
			DetectOnStart:   true,
		},
		Trade: TradeConfig{
			Deviation:     20,
			Magic:         234000,
			Comment:       "Gold trading app",
			DefaultVolume: 0.01,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Backend:  "memory",
			Requests: 120,
			Window:   duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Notify: NotifyConfig{
			Events:      []string{"order_filled", "order_rejected", "symbol_invalidated", "symbol_detection_failed"},
			DedupWindow: duration{30 * time.Second},
		},
		Client: ClientConfig{
			BaseURL:        "http://localhost:5000/api",
			PollInterval:   duration{3 * time.Second},
			ProbeTimeout:   duration{5 * time.Second},
			StatusTimeout:  duration{10 * time.Second},
			DetectTimeout:  duration{15 * time.Second},
			RequestTimeout: duration{10 * time.Second},
		},
		LogLevel: "info",
	}
}

// validTerminalKinds enumerates the accepted values for TerminalConfig.Kind.
var validTerminalKinds = map[string]bool{
	"paper":     true,
	"mt5bridge": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ParseLevel maps a log_level value to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Auth
	if c.Auth.APIKey == "" {
		errs = append(errs, "auth: api_key must not be empty")
	}
	if c.Auth.Secret == "" {
		errs = append(errs, "auth: secret must not be empty")
	}
	if c.Auth.ReplayWindow.Duration <= 0 {
		errs = append(errs, "auth: replay_window must be > 0")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Terminal
	if !validTerminalKinds[strings.ToLower(c.Terminal.Kind)] {
		errs = append(errs, fmt.Sprintf("terminal: unknown kind %q (valid: paper, mt5bridge)", c.Terminal.Kind))
	}
	if strings.EqualFold(c.Terminal.Kind, "mt5bridge") && c.Terminal.BridgeURL == "" {
		errs = append(errs, "terminal: bridge_url is required for kind mt5bridge")
	}
	if c.Terminal.Timeout.Duration <= 0 {
		errs = append(errs, "terminal: timeout must be > 0")
	}
	for i, s := range c.Terminal.Paper.Symbols {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("terminal.paper.symbols[%d]: name must not be empty", i))
		}
		if s.VolumeMin > s.VolumeMax {
			errs = append(errs, fmt.Sprintf("terminal.paper.symbols[%d]: volume_min must not exceed volume_max", i))
		}
	}

	// Resolver
	if len(c.Resolver.Aliases) == 0 && len(c.Resolver.Keywords) == 0 {
		errs = append(errs, "resolver: at least one alias or keyword is required")
	}
	if c.Resolver.MinPrice < 0 || c.Resolver.MinPrice >= c.Resolver.MaxPrice {
		errs = append(errs, fmt.Sprintf("resolver: min_price (%g) must be >= 0 and below max_price (%g)", c.Resolver.MinPrice, c.Resolver.MaxPrice))
	}
	if _, err := regexp.Compile(c.Resolver.CurrencyPattern); err != nil {
		errs = append(errs, fmt.Sprintf("resolver: currency_pattern does not compile: %v", err))
	}
	if c.Resolver.CandidateCap < 1 {
		errs = append(errs, "resolver: candidate_cap must be >= 1")
	}

	// Trade
	if c.Trade.Deviation < 0 {
		errs = append(errs, "trade: deviation must be >= 0")
	}
	if c.Trade.DefaultVolume <= 0 {
		errs = append(errs, "trade: default_volume must be > 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests < 1 {
			errs = append(errs, "rate_limit: requests must be >= 1")
		}
		if c.RateLimit.Window.Duration <= 0 {
			errs = append(errs, "rate_limit: window must be > 0")
		}
		switch strings.ToLower(c.RateLimit.Backend) {
		case "memory":
		case "redis":
			if c.Redis.Addr == "" {
				errs = append(errs, "redis: addr must not be empty when rate_limit.backend is redis")
			}
			if c.Redis.PoolSize < 1 {
				errs = append(errs, "redis: pool_size must be >= 1")
			}
		default:
			errs = append(errs, fmt.Sprintf("rate_limit: unknown backend %q (valid: memory, redis)", c.RateLimit.Backend))
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.DedupWindow.Duration < 0 {
		errs = append(errs, "notify: dedup_window must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateClient checks only what the goldclient command needs.
func (c *Config) ValidateClient() error {
	var errs []string
	if c.Auth.APIKey == "" || c.Auth.Secret == "" {
		errs = append(errs, "auth: api_key and secret must be set")
	}
	if c.Client.BaseURL == "" {
		errs = append(errs, "client: base_url must not be empty")
	}
	if c.Client.PollInterval.Duration <= 0 {
		errs = append(errs, "client: poll_interval must be > 0")
	}
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"probe_timeout", c.Client.ProbeTimeout.Duration},
		{"status_timeout", c.Client.StatusTimeout.Duration},
		{"detect_timeout", c.Client.DetectTimeout.Duration},
		{"request_timeout", c.Client.RequestTimeout.Duration},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			errs = append(errs, fmt.Sprintf("client: %s must be > 0", t.name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
