package domain

import (
	"errors"
	"fmt"
)

// Authentication failures. All of them map to 401.
var (
	ErrMissingAuth      = errors.New("missing authentication headers")
	ErrInvalidKey       = errors.New("invalid api key")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleRequest     = errors.New("request too old")
)

// Symbol resolution.
var (
	ErrNoSymbol       = errors.New("no gold symbol detected")
	ErrNoSymbolFound  = errors.New("could not detect gold symbol")
	ErrUnknownSymbol  = errors.New("symbol not found")
	ErrSymbolRequired = errors.New("symbol parameter required")
)

// Trade and quote validation.
var (
	ErrInvalidAction     = errors.New(`invalid action, use "buy" or "sell"`)
	ErrInvalidVolume     = errors.New("volume must be a positive number")
	ErrSymbolUnavailable = errors.New("symbol not available")
	ErrTradingDisabled   = errors.New("trading disabled")
	ErrNoQuote           = errors.New("no price data available (market may be closed)")
	ErrVolumeOutOfRange  = errors.New("volume out of range")
)

// Terminal and infrastructure.
var (
	ErrNotFound            = errors.New("not found")
	ErrNoTick              = errors.New("no tick")
	ErrTerminalUnavailable = errors.New("terminal unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
)

// ExecutionError is a broker-reported non-success result for a submitted
// order. Retcode and Comment are passed through verbatim.
type ExecutionError struct {
	Retcode int
	Comment string
	Symbol  string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("trade failed: %s (retcode %d)", e.Comment, e.Retcode)
}

// ValidationError pairs a validation sentinel with the message shown to the
// client. errors.Is matches the sentinel.
type ValidationError struct {
	Err error
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid returns a ValidationError for sentinel with a formatted message.
func Invalid(sentinel error, format string, args ...any) error {
	return &ValidationError{Err: sentinel, Msg: fmt.Sprintf(format, args...)}
}

// ResolutionError reports a failed detection together with the names a
// human could pick from for a manual override.
type ResolutionError struct {
	Possible []string
	Probed   []SymbolCandidate
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s (%d possible symbols)", ErrNoSymbolFound, len(e.Possible))
}

func (e *ResolutionError) Unwrap() error { return ErrNoSymbolFound }

// IsAuthError reports whether err is one of the authentication failures.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingAuth) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrStaleRequest)
}

// AuthErrorCode returns the stable code sent to clients for an auth failure.
func AuthErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingAuth):
		return "MissingAuth"
	case errors.Is(err, ErrInvalidKey):
		return "InvalidKey"
	case errors.Is(err, ErrInvalidSignature):
		return "InvalidSignature"
	case errors.Is(err, ErrStaleRequest):
		return "StaleRequest"
	default:
		return ""
	}
}
