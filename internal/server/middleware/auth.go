package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/crypto"
	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// maxBodyBytes bounds how much of a request body the gate will buffer.
const maxBodyBytes = 1 << 20

// DefaultReplayWindow is the accepted clock skew between a request's
// timestamp and the server clock.
const DefaultReplayWindow = 60 * time.Second

// AuthGate verifies the HMAC envelope on gateway requests. It keeps no state
// between requests, so a valid envelope may be replayed until its timestamp
// leaves the window.
type AuthGate struct {
	auth   *crypto.HMACAuth
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewAuthGate creates an AuthGate. A non-positive window uses
// DefaultReplayWindow.
func NewAuthGate(auth *crypto.HMACAuth, window time.Duration, logger *slog.Logger) *AuthGate {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &AuthGate{auth: auth, window: window, now: time.Now, logger: logger}
}

// WithClock replaces the gate's clock and returns the gate.
func (g *AuthGate) WithClock(now func() time.Time) *AuthGate {
	g.now = now
	return g
}

// Check runs the four checks in order and returns the first failure:
// headers present, key match, signature match, timestamp within the window.
func (g *AuthGate) Check(apiKey, signature string, body []byte) error {
	if apiKey == "" || signature == "" {
		return domain.ErrMissingAuth
	}
	if !g.auth.KeyMatches(apiKey) {
		return domain.ErrInvalidKey
	}
	if !g.auth.Verify(body, signature) {
		return domain.ErrInvalidSignature
	}

	ts, err := payloadTimestamp(body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStaleRequest, err)
	}
	// Bounds are compared directly so far-off timestamps cannot overflow.
	now, window := g.now().UnixMilli(), g.window.Milliseconds()
	if ts < now-window || ts > now+window {
		return domain.ErrStaleRequest
	}
	return nil
}

// Middleware buffers the body, runs Check and restores the body for the
// next handler. Failures are answered with 401.
func (g *AuthGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		err = g.Check(
			strings.TrimSpace(r.Header.Get(crypto.HeaderAPIKey)),
			strings.TrimSpace(r.Header.Get(crypto.HeaderSignature)),
			body,
		)
		if err != nil {
			code := domain.AuthErrorCode(err)
			g.logger.WarnContext(r.Context(), "auth: request rejected",
				slog.String("path", r.URL.Path),
				slog.String("code", code),
				slog.String("remote_addr", r.RemoteAddr),
			)
			writeUnauthorized(w, authMessages[code], code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var authMessages = map[string]string{
	"MissingAuth":      "Missing authentication headers",
	"InvalidKey":       "Invalid API key",
	"InvalidSignature": "Invalid signature",
	"StaleRequest":     "Request too old",
}

// payloadTimestamp extracts the integral timestamp field from a body that
// has already passed signature verification.
func payloadTimestamp(body []byte) (int64, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return 0, fmt.Errorf("missing %s", crypto.TimestampField)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return 0, err
	}
	n, ok := payload[crypto.TimestampField].(json.Number)
	if !ok {
		return 0, fmt.Errorf("missing %s", crypto.TimestampField)
	}
	if ts, err := n.Int64(); err == nil {
		return ts, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, fmt.Errorf("%s is not an integer", crypto.TimestampField)
	}
	return int64(f), nil
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg, code string) {
	writeJSONError(w, http.StatusUnauthorized, msg, code)
}

func writeJSONError(w http.ResponseWriter, status int, msg, code string) {
	body := map[string]any{"success": false, "error": msg}
	if code != "" {
		body["code"] = code
	}
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}
