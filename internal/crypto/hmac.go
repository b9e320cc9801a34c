package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Header names carried on every authenticated gateway request.
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderSignature = "X-Signature"
)

// TimestampField is the payload field holding the signing time in Unix ms.
const TimestampField = "timestamp"

// HMACAuth holds the shared credential used to sign and verify gateway
// requests. The signature is hex(HMAC-SHA256(secret, canonical(body))).
type HMACAuth struct {
	Key    string
	Secret string
}

// Sign canonicalizes body and returns its hex signature together with the
// canonical bytes, which are what the caller should put on the wire.
func (h *HMACAuth) Sign(body []byte) (canonical []byte, signature string, err error) {
	canonical, err = Canonicalize(body)
	if err != nil {
		return nil, "", err
	}
	return canonical, hmacSHA256Hex([]byte(h.Secret), canonical), nil
}

// Verify reports whether signature matches body under constant-time
// comparison. Bodies that are not JSON objects never verify.
func (h *HMACAuth) Verify(body []byte, signature string) bool {
	canonical, err := Canonicalize(body)
	if err != nil {
		return false
	}
	want := hmacSHA256Hex([]byte(h.Secret), canonical)
	got := strings.ToLower(strings.TrimSpace(signature))
	return hmac.Equal([]byte(want), []byte(got))
}

// SignPayload stamps payload with the current time and signs it. It returns
// the canonical body and the headers to send with it.
func (h *HMACAuth) SignPayload(payload map[string]any) ([]byte, map[string]string, error) {
	return h.SignPayloadAt(payload, time.Now())
}

// SignPayloadAt is like SignPayload but lets the caller supply the signing
// time (useful for deterministic testing).
func (h *HMACAuth) SignPayloadAt(payload map[string]any, at time.Time) ([]byte, map[string]string, error) {
	stamped := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		stamped[k] = v
	}
	stamped[TimestampField] = at.UnixMilli()

	raw, err := marshalCompact(stamped)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: marshal payload: %w", err)
	}
	body, sig, err := h.Sign(raw)
	if err != nil {
		return nil, nil, err
	}
	return body, map[string]string{
		HeaderAPIKey:    h.Key,
		HeaderSignature: sig,
	}, nil
}

// KeyMatches compares key against the configured API key in constant time.
func (h *HMACAuth) KeyMatches(key string) bool {
	return hmac.Equal([]byte(h.Key), []byte(key))
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// lowercase hex digest.
func hmacSHA256Hex(key, message []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
