package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Auth.APIKey = "12345"
	cfg.Auth.Secret = "mysecret123"
	return cfg
}

func TestDefaultsNeedOnlyCredentials(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth: api_key must not be empty")
	assert.Contains(t, err.Error(), "auth: secret must not be empty")

	valid := validConfig()
	assert.NoError(t, valid.Validate())
	assert.NoError(t, valid.ValidateClient())
}

func TestDefaultsMatchGatewayContract(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 60*time.Second, cfg.Auth.ReplayWindow.Duration)
	assert.Equal(t, 20, cfg.Trade.Deviation)
	assert.Equal(t, "XAUUSD", cfg.Resolver.Aliases[0])
	assert.Equal(t, "XAUGBP", cfg.Resolver.Aliases[len(cfg.Resolver.Aliases)-1])
	assert.Equal(t, 1000.0, cfg.Resolver.MinPrice)
	assert.Equal(t, 5000.0, cfg.Resolver.MaxPrice)
	assert.Equal(t, 20, cfg.Resolver.CandidateCap)
	assert.Equal(t, 3*time.Second, cfg.Client.PollInterval.Duration)

	// Defaults must not share the package-level alias slice.
	cfg.Resolver.Aliases[0] = "changed"
	assert.Equal(t, "XAUUSD", DefaultAliases[0])
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0
	cfg.Terminal.Kind = "mt5bridge"
	cfg.Resolver.MinPrice = 6000
	cfg.Resolver.CurrencyPattern = "("
	cfg.RateLimit.Backend = "memcached"
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		`unknown log_level "loud"`,
		"server: port must be 1-65535, got 0",
		"terminal: bridge_url is required for kind mt5bridge",
		"resolver: min_price (6000) must be >= 0 and below max_price (5000)",
		"resolver: currency_pattern does not compile",
		`rate_limit: unknown backend "memcached"`,
		"notify: telegram_token and telegram_chat_id must be set together",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateRedisBackendNeedsAddr(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Backend = "redis"
	cfg.Redis.Addr = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[auth]
api_key = "file-key"
secret = "file-secret"
replay_window = "30s"

[resolver]
aliases = ["GOLD.pro", "XAUUSD"]
max_price = 6000.0

[[terminal.paper.symbols]]
name = "GOLD.pro"
bid = 2399.0
ask = 2399.4
volume_min = 0.1
volume_max = 5.0
`), 0o600))

	t.Setenv("GOLDBRIDGE_AUTH_SECRET", "env-secret")
	t.Setenv("GOLDBRIDGE_SERVER_PORT", "8081")
	t.Setenv("GOLDBRIDGE_RESOLVER_KEYWORDS", "XAU, GOLD ,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "file-key", cfg.Auth.APIKey)
	assert.Equal(t, "env-secret", cfg.Auth.Secret)
	assert.Equal(t, 30*time.Second, cfg.Auth.ReplayWindow.Duration)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, []string{"GOLD.pro", "XAUUSD"}, cfg.Resolver.Aliases)
	assert.Equal(t, []string{"XAU", "GOLD"}, cfg.Resolver.Keywords)
	assert.Equal(t, 6000.0, cfg.Resolver.MaxPrice)
	assert.Equal(t, 1000.0, cfg.Resolver.MinPrice, "untouched keys keep defaults")
	require.Len(t, cfg.Terminal.Paper.Symbols, 1)
	assert.Equal(t, "GOLD.pro", cfg.Terminal.Paper.Symbols[0].Name)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("GOLDBRIDGE_AUTH_API_KEY", "k")
	t.Setenv("GOLDBRIDGE_CLIENT_POLL_INTERVAL", "bogus")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Auth.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Client.PollInterval.Duration, "unparseable overrides are ignored")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Terminal.BridgeToken = "bridge"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Auth.APIKey)
	assert.Equal(t, "***", out.Auth.Secret)
	assert.Equal(t, "***", out.Terminal.BridgeToken)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Equal(t, "", out.Redis.Password, "empty secrets stay empty")

	out.Resolver.Aliases[0] = "mutated"
	assert.Equal(t, "XAUUSD", cfg.Resolver.Aliases[0])
	assert.Equal(t, "12345", cfg.Auth.APIKey)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	t.Setenv("GOLDBRIDGE_AUTH_API_KEY", "k")
	t.Setenv("GOLDBRIDGE_AUTH_SECRET", "s")

	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	want := Defaults()
	want.Auth.APIKey = "k"
	want.Auth.Secret = "s"
	want.Terminal.BridgeURL = cfg.Terminal.BridgeURL
	assert.Equal(t, want, *cfg)
}
