package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/goldbridge/internal/client"
	"github.com/alanyoungcy/goldbridge/internal/config"
	"github.com/alanyoungcy/goldbridge/internal/crypto"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "goldclient",
	Short: "Client for the goldbridge gold trading gateway",
	Long: `goldclient signs requests with the shared API key and secret and sends
them to a goldbridge gateway.

Credentials come from the config file or the GOLDBRIDGE_AUTH_API_KEY and
GOLDBRIDGE_AUTH_SECRET environment variables (a .env file is honoured).`,
	SilenceUsage: true,
}

var (
	configPath string
	baseURL    string
)

// Execute adds all child commands to the root command and sets flags appropriately.
// Commands run under a context cancelled by SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (TOML)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "", "gateway API base URL, e.g. http://localhost:5000/api")
}

// loadConfig reads and validates the client side of the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAPI(cfg *config.Config) *client.API {
	return client.NewAPI(cfg.Client.BaseURL, &crypto.HMACAuth{
		Key:    cfg.Auth.APIKey,
		Secret: cfg.Auth.Secret,
	}, client.Timeouts{
		Probe:   cfg.Client.ProbeTimeout.Duration,
		Status:  cfg.Client.StatusTimeout.Duration,
		Detect:  cfg.Client.DetectTimeout.Duration,
		Request: cfg.Client.RequestTimeout.Duration,
	})
}

// apiFromFlags is the common preamble of every one-shot command.
func apiFromFlags() (*client.API, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newAPI(cfg), nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.LogLevel),
	}))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
