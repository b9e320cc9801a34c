package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method    string
	path      string
	body      map[string]any
	raw       []byte
	key       string
	signature string
}

func newTestAPI(t *testing.T, handle func(w http.ResponseWriter, r recordedRequest)) (*API, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recordedRequest{
			method:    r.Method,
			path:      r.URL.Path,
			raw:       raw,
			key:       r.Header.Get(crypto.HeaderAPIKey),
			signature: r.Header.Get(crypto.HeaderSignature),
		}
		if len(raw) > 0 {
			d := json.NewDecoder(bytes.NewReader(raw))
			d.UseNumber()
			_ = d.Decode(&rec.body)
		}
		seen = append(seen, rec)
		w.Header().Set("Content-Type", "application/json")
		handle(w, rec)
	}))
	t.Cleanup(srv.Close)

	api := NewAPI(srv.URL+"/api/", &crypto.HMACAuth{Key: "key-123", Secret: "mysecret123"}, Timeouts{})
	api.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return api, &seen
}

func TestAPI_SignsPostBodies(t *testing.T) {
	api, seen := newTestAPI(t, func(w http.ResponseWriter, _ recordedRequest) {
		w.Write([]byte(`{"success":true,"symbol":"XAUUSD","price":2400.4,"bid":2400.3,"ask":2400.5,"spread":0.2,"timestamp":1700000000}`))
	})

	q, err := api.Price(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD", q.Symbol)
	assert.InDelta(t, 2400.4, q.Price, 1e-9)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/get_price", req.path)
	assert.Equal(t, "key-123", req.key)
	assert.Equal(t, json.Number("1700000000000"), req.body["timestamp"])
	assert.NotContains(t, req.body, "symbol")

	auth := &crypto.HMACAuth{Key: "key-123", Secret: "mysecret123"}
	assert.True(t, auth.Verify(req.raw, req.signature))
}

func TestAPI_TradeSendsExactLotSize(t *testing.T) {
	api, seen := newTestAPI(t, func(w http.ResponseWriter, _ recordedRequest) {
		w.Write([]byte(`{"success":true,"order_id":42,"volume":0.05,"price":2400.5,"action":"buy","symbol":"XAUUSD"}`))
	})

	res, err := api.Trade(context.Background(), TradeRequest{Action: "buy", Volume: decimal.RequireFromString("0.05")})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.OrderID)

	req := (*seen)[0]
	assert.Equal(t, "/api/execute_trade", req.path)
	assert.Equal(t, json.Number("0.05"), req.body["lot_size"])
	assert.Equal(t, "buy", req.body["action"])
}

func TestAPI_StatusIsUnsignedGet(t *testing.T) {
	api, seen := newTestAPI(t, func(w http.ResponseWriter, _ recordedRequest) {
		w.Write([]byte(`{"success":true,"mt5_connected":true,"detected_gold_symbol":"XAUUSD","api_version":"1.1"}`))
	})

	st, err := api.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.MT5Connected)
	assert.Equal(t, "XAUUSD", st.DetectedGoldSymbol)

	req := (*seen)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/api/status", req.path)
	assert.Empty(t, req.signature)
}

func TestAPI_ErrorBody(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, _ recordedRequest) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Trade failed: Requote","retcode":10004,"symbol_used":"XAUUSD"}`))
	})

	_, err := api.Trade(context.Background(), TradeRequest{Action: "sell", Volume: decimal.RequireFromString("0.01")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Trade failed: Requote", apiErr.Message)
	assert.Equal(t, 10004, apiErr.Retcode)
	assert.Equal(t, "XAUUSD", apiErr.SymbolUsed)
}

func TestAPI_NonJSONError(t *testing.T) {
	api, _ := newTestAPI(t, func(w http.ResponseWriter, _ recordedRequest) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway\n"))
	})

	err := api.Probe(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.Equal(t, OutcomeOtherError, Classify(err))
}

func TestAPI_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	api := NewAPI(url+"/api", &crypto.HMACAuth{Key: "k", Secret: "s"}, Timeouts{})
	err := api.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestAPI_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	api := NewAPI(srv.URL+"/api", &crypto.HMACAuth{Key: "k", Secret: "s"}, Timeouts{Probe: 50 * time.Millisecond})
	err := api.Probe(context.Background())
	assert.Equal(t, OutcomeNetworkError, Classify(err))
}

func TestNetVolume(t *testing.T) {
	net := NetVolume([]Position{
		{Type: "buy", Volume: 0.1},
		{Type: "buy", Volume: 0.2},
		{Type: "sell", Volume: 0.05},
	})
	assert.True(t, net.Equal(decimal.RequireFromString("0.25")), net.String())
	assert.True(t, NetVolume(nil).IsZero())
}
