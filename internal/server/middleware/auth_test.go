package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/crypto"
	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGate() (*AuthGate, *crypto.HMACAuth) {
	auth := &crypto.HMACAuth{Key: "key-123", Secret: "mysecret123"}
	gate := NewAuthGate(auth, 0, discardLogger()).WithClock(func() time.Time { return epoch })
	return gate, auth
}

func signAt(t *testing.T, auth *crypto.HMACAuth, payload map[string]any, at time.Time) ([]byte, string) {
	t.Helper()
	body, headers, err := auth.SignPayloadAt(payload, at)
	require.NoError(t, err)
	return body, headers[crypto.HeaderSignature]
}

func TestAuthGateReplayWindowIsInclusive(t *testing.T) {
	t.Parallel()
	gate, auth := testGate()

	tests := []struct {
		name   string
		offset time.Duration
		want   error
	}{
		{"now", 0, nil},
		{"60000ms old", -60_000 * time.Millisecond, nil},
		{"60000ms ahead", 60_000 * time.Millisecond, nil},
		{"60001ms old", -60_001 * time.Millisecond, domain.ErrStaleRequest},
		{"60001ms ahead", 60_001 * time.Millisecond, domain.ErrStaleRequest},
		{"two minutes old", -2 * time.Minute, domain.ErrStaleRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, sig := signAt(t, auth, map[string]any{"action": "buy"}, epoch.Add(tt.offset))
			err := gate.Check("key-123", sig, body)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthGateCheckOrder(t *testing.T) {
	t.Parallel()
	gate, auth := testGate()
	staleBody, staleSig := signAt(t, auth, map[string]any{}, epoch.Add(-time.Hour))

	tests := []struct {
		name string
		key  string
		sig  string
		body string
		code string
	}{
		{"missing key wins over everything", "", "deadbeef", string(staleBody), "MissingAuth"},
		{"missing signature", "key-123", "", string(staleBody), "MissingAuth"},
		{"bad key wins over bad signature", "nope", "deadbeef", string(staleBody), "InvalidKey"},
		{"bad signature wins over stale", "key-123", "deadbeef", string(staleBody), "InvalidSignature"},
		{"non-object body", "key-123", staleSig, `[1,2]`, "InvalidSignature"},
		{"stale", "key-123", staleSig, string(staleBody), "StaleRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Check(tt.key, tt.sig, []byte(tt.body))
			require.Error(t, err)
			assert.True(t, domain.IsAuthError(err))
			assert.Equal(t, tt.code, domain.AuthErrorCode(err))
		})
	}
}

func TestAuthGateTimestampMustBeIntegral(t *testing.T) {
	t.Parallel()
	gate, auth := testGate()

	for _, body := range []string{
		`{}`,
		`{"timestamp":"1700000000000"}`,
		`{"timestamp":1700000000000.5}`,
	} {
		_, sig, err := auth.Sign([]byte(body))
		require.NoError(t, err)
		assert.ErrorIs(t, gate.Check("key-123", sig, []byte(body)), domain.ErrStaleRequest, body)
	}

	// An integral value written with a fraction is still accepted.
	body := []byte(`{"timestamp":1700000000000.0}`)
	_, sig, err := auth.Sign(body)
	require.NoError(t, err)
	assert.NoError(t, gate.Check("key-123", sig, body))
}

func TestAuthGateRejectsExtremeTimestamps(t *testing.T) {
	t.Parallel()
	gate, auth := testGate()

	for _, ts := range []string{
		"-9223370336854775808", // now minus this wraps to MinInt64
		"-9223372036854775808",
		"9223372036854775807",
		"0",
	} {
		body := []byte(`{"action":"buy","timestamp":` + ts + `}`)
		_, sig, err := auth.Sign(body)
		require.NoError(t, err)
		assert.ErrorIs(t, gate.Check("key-123", sig, body), domain.ErrStaleRequest, ts)
	}
}

func TestAuthGateAcceptsReorderedKeys(t *testing.T) {
	t.Parallel()
	gate, auth := testGate()

	canonical := []byte(`{"action":"buy","lot_size":0.01,"timestamp":1700000000000}`)
	_, sig, err := auth.Sign(canonical)
	require.NoError(t, err)

	wire := []byte(`{ "timestamp": 1700000000000, "lot_size": 0.01, "action": "buy" }`)
	assert.NoError(t, gate.Check("key-123", strings.ToUpper(sig), wire))
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()
	gate, auth := testGate()

	var seen []byte
	h := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("passes body through", func(t *testing.T) {
		body, sig := signAt(t, auth, map[string]any{"symbol": "XAUUSD"}, epoch)
		req := httptest.NewRequest(http.MethodPost, "/api/get_price", strings.NewReader(string(body)))
		req.Header.Set(crypto.HeaderAPIKey, "key-123")
		req.Header.Set(crypto.HeaderSignature, sig)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, body, seen)
	})

	t.Run("stale request is 401", func(t *testing.T) {
		body, sig := signAt(t, auth, map[string]any{}, epoch.Add(-120_000*time.Millisecond))
		req := httptest.NewRequest(http.MethodPost, "/api/get_price", strings.NewReader(string(body)))
		req.Header.Set(crypto.HeaderAPIKey, "key-123")
		req.Header.Set(crypto.HeaderSignature, sig)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, "Request too old", resp["error"])
		assert.Equal(t, "StaleRequest", resp["code"])
	})

	t.Run("missing headers is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/get_price", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Missing authentication headers","code":"MissingAuth"}`, rec.Body.String())
	})
}
