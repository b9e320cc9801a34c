// Package mt5bridge implements domain.Terminal against a REST bridge process
// that runs next to a MetaTrader 5 terminal and exposes its Python API over
// HTTP.
package mt5bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// Client is the REST client for the MT5 bridge.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a bridge client.
//
// baseURL is the bridge root, e.g. "http://127.0.0.1:8228".
// token, when non-empty, is sent as a Bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Connected reports whether the bridge is up and logged in to the terminal.
func (c *Client) Connected(ctx context.Context) bool {
	var health APIHealth
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return false
	}
	return health.Connected
}

// Symbols returns every instrument name in the terminal catalog.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var out APISymbols
	if err := c.do(ctx, http.MethodGet, "/symbols", nil, &out); err != nil {
		return nil, fmt.Errorf("mt5bridge: symbols: %w", err)
	}
	return out.Symbols, nil
}

// SelectSymbol adds the instrument to market watch so it streams quotes.
func (c *Client) SelectSymbol(ctx context.Context, name string) error {
	if err := c.do(ctx, http.MethodPost, symbolPath(name, "select"), nil, nil); err != nil {
		return fmt.Errorf("mt5bridge: select %s: %w", name, err)
	}
	return nil
}

// SymbolInfo returns the instrument specification.
func (c *Client) SymbolInfo(ctx context.Context, name string) (domain.SymbolInfo, error) {
	var info APISymbolInfo
	if err := c.do(ctx, http.MethodGet, symbolPath(name, ""), nil, &info); err != nil {
		return domain.SymbolInfo{}, fmt.Errorf("mt5bridge: symbol info %s: %w", name, err)
	}
	return info.ToDomain(), nil
}

// Tick returns the latest quote. A zero bid or ask is reported as ErrNoTick.
func (c *Client) Tick(ctx context.Context, name string) (domain.Tick, error) {
	var tick APITick
	if err := c.do(ctx, http.MethodGet, symbolPath(name, "tick"), nil, &tick); err != nil {
		return domain.Tick{}, fmt.Errorf("mt5bridge: tick %s: %w", name, err)
	}
	t := tick.ToDomain(name)
	if !t.Live() {
		return domain.Tick{}, fmt.Errorf("mt5bridge: tick %s: %w", name, domain.ErrNoTick)
	}
	return t, nil
}

// SendOrder submits a market order. Broker rejections come back as a
// non-DONE retcode with a nil error.
func (c *Client) SendOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	var res APIOrderResult
	if err := c.do(ctx, http.MethodPost, "/orders", newAPIOrderRequest(order), &res); err != nil {
		return domain.OrderResult{}, fmt.Errorf("mt5bridge: send order: %w", err)
	}
	return res.ToDomain(), nil
}

// Account returns the account snapshot.
func (c *Client) Account(ctx context.Context) (domain.AccountSnapshot, error) {
	var acct APIAccount
	if err := c.do(ctx, http.MethodGet, "/account", nil, &acct); err != nil {
		return domain.AccountSnapshot{}, fmt.Errorf("mt5bridge: account: %w", err)
	}
	return acct.ToDomain(), nil
}

// Positions returns every open position.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var out APIPositions
	if err := c.do(ctx, http.MethodGet, "/positions", nil, &out); err != nil {
		return nil, fmt.Errorf("mt5bridge: positions: %w", err)
	}
	positions := make([]domain.Position, 0, len(out.Positions))
	for _, p := range out.Positions {
		positions = append(positions, p.ToDomain())
	}
	return positions, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// symbolPath escapes name so broker names such as "XAU/USD" stay one segment.
func symbolPath(name, suffix string) string {
	p := "/symbols/" + url.PathEscape(name)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

// do builds, sends, and reads a bridge request, decoding a 2xx body into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", domain.ErrTerminalUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError is the bridge's error body.
type apiError struct {
	Error string `json:"error"`
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error != "" {
		msg = ae.Error
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrSymbolUnavailable, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return fmt.Errorf("%w: %s", domain.ErrTerminalUnavailable, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}

var _ domain.Terminal = (*Client)(nil)
