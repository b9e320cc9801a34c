package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/cache/memory"
	"github.com/alanyoungcy/goldbridge/internal/crypto"
	"github.com/alanyoungcy/goldbridge/internal/platform/paper"
	"github.com/alanyoungcy/goldbridge/internal/server/handler"
	"github.com/alanyoungcy/goldbridge/internal/server/middleware"
	"github.com/alanyoungcy/goldbridge/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.UnixMilli(1_700_000_000_000)

type gateway struct {
	handler http.Handler
	term    *paper.Terminal
	auth    *crypto.HMACAuth
}

func newGateway(t *testing.T, symbols ...paper.Symbol) *gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if symbols == nil {
		symbols = []paper.Symbol{
			{Name: "XAUUSD", Bid: 2400.30, Ask: 2400.50, VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01},
			{Name: "EURUSD", Bid: 1.0812, Ask: 1.0814, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01, Digits: 5},
		}
	}
	term := paper.New(paper.Config{Balance: 10_000, Login: 5001}, symbols, logger)

	resolver := service.NewSymbolResolver(term, service.ResolverConfig{
		Aliases:         []string{"XAUUSD", "GOLD"},
		Keywords:        []string{"XAU", "GOLD", "AU", "GC"},
		CurrencyPattern: regexp.MustCompile("USD"),
		CommodityTokens: []string{"GOLD"},
		MinPrice:        1000,
		MaxPrice:        5000,
		CandidateCap:    20,
	}, nil, logger)
	prices := service.NewPriceService(term, resolver, logger)
	trades := service.NewTradeService(term, resolver, service.TradeConfig{Deviation: 20, Magic: 234000, Comment: "Gold trading app"}, nil, logger)
	accounts := service.NewAccountService(term, resolver)

	auth := &crypto.HMACAuth{Key: "key-123", Secret: "mysecret123"}
	gate := middleware.NewAuthGate(auth, time.Minute, logger).WithClock(func() time.Time { return now })

	srv := NewServer(Config{Port: 0, RateLimit: 1000, RateWindow: time.Minute}, Handlers{
		Health:  handler.NewHealthHandler(),
		Status:  handler.NewStatusHandler(prices),
		Symbols: handler.NewSymbolHandler(resolver, logger),
		Prices:  handler.NewPriceHandler(prices, logger),
		Trades:  handler.NewTradeHandler(trades, 0.01, logger),
		Account: handler.NewAccountHandler(accounts, logger),
	}, gate, memory.NewRateLimiter(), nil, logger)

	return &gateway{handler: srv.Handler(), term: term, auth: auth}
}

func (g *gateway) post(t *testing.T, path string, payload map[string]any, at time.Time) (int, map[string]any) {
	t.Helper()
	body, headers, err := g.auth.SignPayloadAt(payload, at)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return g.do(t, req)
}

func (g *gateway) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestExecuteTradeEndToEnd(t *testing.T) {
	t.Parallel()
	g := newGateway(t)

	code, resp := g.post(t, "/api/execute_trade", map[string]any{"action": "buy", "lot_size": 0.01}, now)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, 2400.50, resp["price"])
	assert.Equal(t, 0.01, resp["volume"])
	assert.Equal(t, "buy", resp["action"])
	assert.Equal(t, "XAUUSD", resp["symbol"])
	assert.NotZero(t, resp["order_id"])

	orders := g.term.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, 20, orders[0].Deviation)
}

func TestExecuteTradeIgnoresClientPriceAndParsesStringLots(t *testing.T) {
	t.Parallel()
	g := newGateway(t)

	code, resp := g.post(t, "/api/execute_trade", map[string]any{
		"action": "sell", "lot_size": "0.05", "price": 1.0,
	}, now)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, 2400.30, resp["price"])
	assert.Equal(t, 0.05, resp["volume"])
}

func TestExecuteTradeDefaultsLotSize(t *testing.T) {
	t.Parallel()
	g := newGateway(t)

	code, resp := g.post(t, "/api/execute_trade", map[string]any{"action": "buy"}, now)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, 0.01, resp["volume"])
}

func TestStaleRequestIsRejected(t *testing.T) {
	t.Parallel()
	g := newGateway(t)

	code, resp := g.post(t, "/api/execute_trade", map[string]any{"action": "buy", "lot_size": 0.01}, now.Add(-120_000*time.Millisecond))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "StaleRequest", resp["code"])
	assert.Empty(t, g.term.Orders())
}

func TestTradeFailures(t *testing.T) {
	t.Parallel()

	t.Run("broker rejection", func(t *testing.T) {
		g := newGateway(t)
		g.term.RejectNext(paper.RetcodeNoMoney, "No money")

		code, resp := g.post(t, "/api/execute_trade", map[string]any{"action": "buy", "lot_size": 1}, now)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, "Trade failed: No money", resp["error"])
		assert.Equal(t, float64(paper.RetcodeNoMoney), resp["retcode"])
		assert.Equal(t, "XAUUSD", resp["symbol_used"])
		assert.Len(t, g.term.Orders(), 1)
	})

	t.Run("volume bound", func(t *testing.T) {
		g := newGateway(t)
		code, resp := g.post(t, "/api/execute_trade", map[string]any{"action": "buy", "lot_size": 50.5}, now)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Lot size too large. Maximum: 50", resp["error"])
	})

	t.Run("invalid action", func(t *testing.T) {
		g := newGateway(t)
		code, resp := g.post(t, "/api/execute_trade", map[string]any{"action": "hold", "lot_size": 1}, now)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, `Invalid action. Use "buy" or "sell"`, resp["error"])
	})

	t.Run("no gold symbol", func(t *testing.T) {
		g := newGateway(t, paper.Symbol{Name: "EURUSD", Bid: 1.08, Ask: 1.09, VolumeMin: 0.01})
		code, resp := g.post(t, "/api/execute_trade", map[string]any{"action": "buy", "lot_size": 1}, now)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "No symbol provided and could not auto-detect gold symbol", resp["error"])
	})

	t.Run("terminal down", func(t *testing.T) {
		g := newGateway(t)
		g.term.SetConnected(false)
		code, resp := g.post(t, "/api/execute_trade", map[string]any{"action": "buy", "symbol": "XAUUSD"}, now)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, false, resp["success"])
	})
}

func TestStatusNeverRequiresAuthOrDetects(t *testing.T) {
	t.Parallel()
	g := newGateway(t)

	code, resp := g.do(t, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["mt5_connected"])
	assert.Nil(t, resp["detected_gold_symbol"])
	assert.Equal(t, "1.1", resp["api_version"])
	assert.NotContains(t, resp, "gold_price")

	code, _ = g.post(t, "/api/detect_gold_symbol", map[string]any{}, now)
	require.Equal(t, http.StatusOK, code)

	_, resp = g.do(t, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, "XAUUSD", resp["detected_gold_symbol"])
	assert.Equal(t, 2400.4, resp["gold_price"])

	g.term.ClearTick("XAUUSD")
	_, resp = g.do(t, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, "Gold symbol XAUUSD detected but price unavailable", resp["message"])
}

func TestSymbolEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("detect failure lists candidates", func(t *testing.T) {
		g := newGateway(t,
			paper.Symbol{Name: "AUDUSD", Bid: 0.66, Ask: 0.67},
			paper.Symbol{Name: "GOLDFIELDS", Bid: 12, Ask: 12.1},
		)
		code, resp := g.post(t, "/api/detect_gold_symbol", map[string]any{}, now)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, []any{"AUDUSD", "GOLDFIELDS"}, resp["possible_gold_symbols"])
		assert.Contains(t, resp["instruction"], "/api/set_gold_symbol")
	})

	t.Run("set then list", func(t *testing.T) {
		g := newGateway(t)
		code, resp := g.post(t, "/api/set_gold_symbol", map[string]any{"symbol": "EURUSD"}, now)
		require.Equal(t, http.StatusOK, code, resp)
		assert.Equal(t, "EURUSD", resp["symbol"])
		assert.Equal(t, 1.08, resp["current_price"])

		code, resp = g.post(t, "/api/list_symbols", map[string]any{}, now)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "EURUSD", resp["detected_gold_symbol"])
		assert.Equal(t, []any{"XAUUSD"}, resp["gold_related_symbols"])
		assert.Equal(t, float64(2), resp["total_symbols"])
	})

	t.Run("set requires symbol", func(t *testing.T) {
		g := newGateway(t)
		code, resp := g.post(t, "/api/set_gold_symbol", map[string]any{}, now)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Symbol parameter required", resp["error"])
	})
}

func TestGetPrice(t *testing.T) {
	t.Parallel()
	g := newGateway(t)

	code, resp := g.post(t, "/api/get_price", map[string]any{}, now)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "XAUUSD", resp["symbol"])
	assert.Equal(t, 2400.4, resp["price"])
	assert.Equal(t, 2400.3, resp["bid"])
	assert.Equal(t, 2400.5, resp["ask"])
	assert.Equal(t, 0.2, resp["spread"])

	g.term.ClearTick("XAUUSD")
	code, resp = g.post(t, "/api/get_price", map[string]any{}, now)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No price data available for XAUUSD (market may be closed)", resp["error"])
}

func TestAccountEndpoints(t *testing.T) {
	t.Parallel()
	g := newGateway(t)

	code, resp := g.post(t, "/api/get_account_info", map[string]any{}, now)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 10000.0, resp["balance"])
	assert.Equal(t, "USD", resp["currency"])
	assert.Equal(t, float64(100), resp["leverage"])

	code, _ = g.post(t, "/api/execute_trade", map[string]any{"action": "buy", "lot_size": 0.1}, now)
	require.Equal(t, http.StatusOK, code)

	code, resp = g.post(t, "/api/get_positions", map[string]any{}, now)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "XAUUSD", resp["detected_gold_symbol"])
	gold, ok := resp["gold_positions"].([]any)
	require.True(t, ok)
	require.Len(t, gold, 1)
	pos := gold[0].(map[string]any)
	assert.Equal(t, "buy", pos["type"])
	assert.Equal(t, 2400.5, pos["price_open"])
	assert.Equal(t, -2.0, pos["profit"])
}

func TestRoutesAndMethods(t *testing.T) {
	t.Parallel()
	g := newGateway(t)

	code, resp := g.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["status"])

	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/get_price", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	g.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/get_price", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}
