// Package client is the caller side of the gateway: a signed HTTP client and
// the orchestrator that drives symbol resolution, price polling and trading.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/crypto"
	"github.com/shopspring/decimal"
)

// ErrNetwork wraps transport failures and timeouts. The orchestrator
// recovers from it locally.
var ErrNetwork = errors.New("network error")

// APIError is a gateway response with a non-2xx status.
type APIError struct {
	Status     int
	Message    string
	Code       string
	Retcode    int
	SymbolUsed string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return e.Message
}

// Timeouts bounds each kind of call. There is no other cancellation of
// in-flight calls.
type Timeouts struct {
	Probe   time.Duration
	Status  time.Duration
	Detect  time.Duration
	Request time.Duration
}

// DefaultTimeouts mirrors the gateway's expected latencies.
var DefaultTimeouts = Timeouts{
	Probe:   5 * time.Second,
	Status:  10 * time.Second,
	Detect:  15 * time.Second,
	Request: 10 * time.Second,
}

// StatusResponse is the unauthenticated status probe body.
type StatusResponse struct {
	Success            bool     `json:"success"`
	MT5Connected       bool     `json:"mt5_connected"`
	DetectedGoldSymbol string   `json:"detected_gold_symbol"`
	SymbolSource       string   `json:"symbol_source"`
	GoldPrice          *float64 `json:"gold_price"`
	APIVersion         string   `json:"api_version"`
	Message            string   `json:"message"`
}

// DetectResponse is returned by detection whether or not it succeeded.
type DetectResponse struct {
	Success             bool     `json:"success"`
	GoldSymbol          string   `json:"gold_symbol"`
	Source              string   `json:"source"`
	Message             string   `json:"message"`
	PossibleGoldSymbols []string `json:"possible_gold_symbols"`
	Instruction         string   `json:"instruction"`
}

// SetSymbolResponse confirms a manual override.
type SetSymbolResponse struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"current_price"`
	Message      string  `json:"message"`
}

// SymbolList is the diagnostic catalog view.
type SymbolList struct {
	DetectedGoldSymbol string   `json:"detected_gold_symbol"`
	GoldRelatedSymbols []string `json:"gold_related_symbols"`
	SampleSymbols      []string `json:"sample_symbols"`
	TotalSymbols       int      `json:"total_symbols"`
}

// Quote is a price snapshot.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Spread    float64 `json:"spread"`
	Timestamp int64   `json:"timestamp"`
}

// TradeRequest is a market order. Symbol is optional.
type TradeRequest struct {
	Action string
	Volume decimal.Decimal
	Symbol string
}

// TradeResult is a filled order.
type TradeResult struct {
	OrderID uint64  `json:"order_id"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Action  string  `json:"action"`
	Symbol  string  `json:"symbol"`
}

// Account is the account snapshot.
type Account struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Leverage   int     `json:"leverage"`
	Currency   string  `json:"currency"`
}

// Position is one open position.
type Position struct {
	Ticket       uint64  `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Volume       float64 `json:"volume"`
	Type         string  `json:"type"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	Comment      string  `json:"comment"`
}

// Positions splits open positions into all and gold-only.
type Positions struct {
	All                []Position `json:"all_positions"`
	Gold               []Position `json:"gold_positions"`
	DetectedGoldSymbol string     `json:"detected_gold_symbol"`
}

// NetVolume returns buy volume minus sell volume, summed exactly.
func NetVolume(ps []Position) decimal.Decimal {
	net := decimal.Zero
	for _, p := range ps {
		v := decimal.NewFromFloat(p.Volume)
		if strings.EqualFold(p.Type, "sell") {
			v = v.Neg()
		}
		net = net.Add(v)
	}
	return net
}

// API is a signed client for the gateway's HTTP interface.
type API struct {
	baseURL  string
	auth     *crypto.HMACAuth
	http     *http.Client
	timeouts Timeouts
	now      func() time.Time
}

// NewAPI creates an API client. baseURL includes the /api prefix, e.g.
// http://localhost:5000/api. Zero timeouts take DefaultTimeouts.
func NewAPI(baseURL string, auth *crypto.HMACAuth, timeouts Timeouts) *API {
	if timeouts.Probe <= 0 {
		timeouts.Probe = DefaultTimeouts.Probe
	}
	if timeouts.Status <= 0 {
		timeouts.Status = DefaultTimeouts.Status
	}
	if timeouts.Detect <= 0 {
		timeouts.Detect = DefaultTimeouts.Detect
	}
	if timeouts.Request <= 0 {
		timeouts.Request = DefaultTimeouts.Request
	}
	return &API{
		baseURL:  strings.TrimRight(baseURL, "/"),
		auth:     auth,
		http:     &http.Client{},
		timeouts: timeouts,
		now:      time.Now,
	}
}

// Probe checks that the gateway answers its status route.
func (a *API) Probe(ctx context.Context) error {
	var st StatusResponse
	return a.get(ctx, "/status", a.timeouts.Probe, &st)
}

// Status reads the gateway status without triggering detection.
func (a *API) Status(ctx context.Context) (StatusResponse, error) {
	var st StatusResponse
	err := a.get(ctx, "/status", a.timeouts.Status, &st)
	return st, err
}

// Detect triggers symbol detection. A failed detection is not an error; it
// comes back with Success false and the candidate list.
func (a *API) Detect(ctx context.Context) (DetectResponse, error) {
	var out DetectResponse
	err := a.post(ctx, "/detect_gold_symbol", nil, a.timeouts.Detect, &out)
	return out, err
}

// SetSymbol installs a manual gold symbol.
func (a *API) SetSymbol(ctx context.Context, name string) (SetSymbolResponse, error) {
	var out SetSymbolResponse
	err := a.post(ctx, "/set_gold_symbol", map[string]any{"symbol": name}, a.timeouts.Request, &out)
	return out, err
}

// ListSymbols returns the catalog view.
func (a *API) ListSymbols(ctx context.Context) (SymbolList, error) {
	var out SymbolList
	err := a.post(ctx, "/list_symbols", nil, a.timeouts.Request, &out)
	return out, err
}

// Price quotes symbol, or the gateway's gold symbol when symbol is empty.
func (a *API) Price(ctx context.Context, symbol string) (Quote, error) {
	payload := map[string]any{}
	if symbol != "" {
		payload["symbol"] = symbol
	}
	var out Quote
	err := a.post(ctx, "/get_price", payload, a.timeouts.Request, &out)
	return out, err
}

// Trade submits a market order.
func (a *API) Trade(ctx context.Context, req TradeRequest) (TradeResult, error) {
	payload := map[string]any{
		"action":   req.Action,
		"lot_size": json.Number(req.Volume.String()),
	}
	if req.Symbol != "" {
		payload["symbol"] = req.Symbol
	}
	var out TradeResult
	err := a.post(ctx, "/execute_trade", payload, a.timeouts.Request, &out)
	return out, err
}

// Account reads the account snapshot.
func (a *API) Account(ctx context.Context) (Account, error) {
	var out Account
	err := a.post(ctx, "/get_account_info", nil, a.timeouts.Request, &out)
	return out, err
}

// Positions reads open positions.
func (a *API) Positions(ctx context.Context) (Positions, error) {
	var out Positions
	err := a.post(ctx, "/get_positions", nil, a.timeouts.Request, &out)
	return out, err
}

func (a *API) get(ctx context.Context, path string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("client: build request %s: %w", path, err)
	}
	return a.do(req, path, out)
}

func (a *API) post(ctx context.Context, path string, payload map[string]any, timeout time.Duration, out any) error {
	body, headers, err := a.auth.SignPayloadAt(payload, a.now())
	if err != nil {
		return fmt.Errorf("client: sign %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return a.do(req, path, out)
}

func (a *API) do(req *http.Request, path string, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrNetwork, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error      string `json:"error"`
			Code       string `json:"code"`
			Retcode    int    `json:"retcode"`
			SymbolUsed string `json:"symbol_used"`
		}
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error
			apiErr.Code = body.Code
			apiErr.Retcode = body.Retcode
			apiErr.SymbolUsed = body.SymbolUsed
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}
