package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/shopspring/decimal"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

type executionErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Retcode    int    `json:"retcode"`
	SymbolUsed string `json:"symbol_used"`
}

// writeServiceError maps a service error to its HTTP status. Only 5xx
// outcomes are logged here; the access log covers the rest.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	var (
		verr *domain.ValidationError
		xerr *domain.ExecutionError
	)
	switch {
	case domain.IsAuthError(err):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: domain.AuthErrorCode(err)})
	case errors.As(err, &xerr):
		writeJSON(w, http.StatusBadRequest, executionErrorResponse{
			Error:      "Trade failed: " + xerr.Comment,
			Retcode:    xerr.Retcode,
			SymbolUsed: xerr.Symbol,
		})
	case errors.Is(err, domain.ErrNoSymbol):
		writeError(w, http.StatusBadRequest, "No symbol provided and could not auto-detect gold symbol")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, domain.ErrNoSymbolFound):
		writeError(w, http.StatusBadRequest, "Could not auto-detect gold symbol")
	case errors.Is(err, domain.ErrTerminalUnavailable):
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "MT5 terminal unavailable")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	default:
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// decodeBody decodes an optional JSON object body into dst. An empty body
// leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// nullable renders "" as JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
