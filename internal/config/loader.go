package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOLDBRIDGE_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GOLDBRIDGE_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GOLDBRIDGE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Secrets are expected to arrive this way rather than through the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Auth ──
	setStr(&cfg.Auth.APIKey, EnvPrefix+"AUTH_API_KEY")
	setStr(&cfg.Auth.Secret, EnvPrefix+"AUTH_SECRET")
	setDuration(&cfg.Auth.ReplayWindow, EnvPrefix+"AUTH_REPLAY_WINDOW")

	// ── Server ──
	setStr(&cfg.Server.Host, EnvPrefix+"SERVER_HOST")
	setInt(&cfg.Server.Port, EnvPrefix+"SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, EnvPrefix+"SERVER_CORS_ORIGINS")
	setBool(&cfg.Server.WebSocket, EnvPrefix+"SERVER_WEBSOCKET")

	// ── Terminal ──
	setStr(&cfg.Terminal.Kind, EnvPrefix+"TERMINAL_KIND")
	setStr(&cfg.Terminal.BridgeURL, EnvPrefix+"TERMINAL_BRIDGE_URL")
	setStr(&cfg.Terminal.BridgeToken, EnvPrefix+"TERMINAL_BRIDGE_TOKEN")
	setDuration(&cfg.Terminal.Timeout, EnvPrefix+"TERMINAL_TIMEOUT")
	setFloat64(&cfg.Terminal.Paper.Balance, EnvPrefix+"TERMINAL_PAPER_BALANCE")
	setDuration(&cfg.Terminal.Paper.WalkInterval, EnvPrefix+"TERMINAL_PAPER_WALK_INTERVAL")

	// ── Resolver ──
	setStringSlice(&cfg.Resolver.Aliases, EnvPrefix+"RESOLVER_ALIASES")
	setStringSlice(&cfg.Resolver.Keywords, EnvPrefix+"RESOLVER_KEYWORDS")
	setStr(&cfg.Resolver.CurrencyPattern, EnvPrefix+"RESOLVER_CURRENCY_PATTERN")
	setFloat64(&cfg.Resolver.MinPrice, EnvPrefix+"RESOLVER_MIN_PRICE")
	setFloat64(&cfg.Resolver.MaxPrice, EnvPrefix+"RESOLVER_MAX_PRICE")
	setBool(&cfg.Resolver.DetectOnStart, EnvPrefix+"RESOLVER_DETECT_ON_START")

	// ── Trade ──
	setInt(&cfg.Trade.Deviation, EnvPrefix+"TRADE_DEVIATION")
	setInt64(&cfg.Trade.Magic, EnvPrefix+"TRADE_MAGIC")
	setStr(&cfg.Trade.Comment, EnvPrefix+"TRADE_COMMENT")

	// ── Rate limit ──
	setBool(&cfg.RateLimit.Enabled, EnvPrefix+"RATE_LIMIT_ENABLED")
	setStr(&cfg.RateLimit.Backend, EnvPrefix+"RATE_LIMIT_BACKEND")
	setInt(&cfg.RateLimit.Requests, EnvPrefix+"RATE_LIMIT_REQUESTS")
	setDuration(&cfg.RateLimit.Window, EnvPrefix+"RATE_LIMIT_WINDOW")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, EnvPrefix+"REDIS_ADDR")
	setStr(&cfg.Redis.Password, EnvPrefix+"REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, EnvPrefix+"REDIS_DB")
	setInt(&cfg.Redis.PoolSize, EnvPrefix+"REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, EnvPrefix+"REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, EnvPrefix+"REDIS_TLS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, EnvPrefix+"NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, EnvPrefix+"NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, EnvPrefix+"NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, EnvPrefix+"NOTIFY_EVENTS")
	setDuration(&cfg.Notify.DedupWindow, EnvPrefix+"NOTIFY_DEDUP_WINDOW")

	// ── Client ──
	setStr(&cfg.Client.BaseURL, EnvPrefix+"CLIENT_BASE_URL")
	setDuration(&cfg.Client.PollInterval, EnvPrefix+"CLIENT_POLL_INTERVAL")
	setDuration(&cfg.Client.RequestTimeout, EnvPrefix+"CLIENT_REQUEST_TIMEOUT")

	// ── Top-level ──
	setStr(&cfg.LogLevel, EnvPrefix+"LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
