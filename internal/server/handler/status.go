package handler

import (
	"context"
	"net/http"

	"github.com/alanyoungcy/goldbridge/internal/service"
)

// APIVersion is reported by the status endpoint.
const APIVersion = "1.1"

// StatusReader reports gateway health without side effects.
type StatusReader interface {
	Status(ctx context.Context) service.Status
}

// StatusHandler serves the unauthenticated status probe.
type StatusHandler struct {
	status StatusReader
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(status StatusReader) *StatusHandler {
	return &StatusHandler{status: status}
}

type statusResponse struct {
	Success            bool     `json:"success"`
	MT5Connected       bool     `json:"mt5_connected"`
	DetectedGoldSymbol *string  `json:"detected_gold_symbol"`
	SymbolSource       string   `json:"symbol_source,omitempty"`
	GoldPrice          *float64 `json:"gold_price,omitempty"`
	APIVersion         string   `json:"api_version"`
	Message            string   `json:"message"`
}

// GetStatus reports terminal connectivity, the cached gold symbol and its
// price. It never runs symbol detection.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status(r.Context())

	resp := statusResponse{
		Success:            true,
		MT5Connected:       st.Connected,
		DetectedGoldSymbol: nullable(st.Symbol),
		SymbolSource:       string(st.Source),
		APIVersion:         APIVersion,
		Message:            "Gateway is alive",
	}
	if st.Price != nil {
		p := round2(*st.Price)
		resp.GoldPrice = &p
	} else if st.Symbol != "" {
		resp.Message = "Gold symbol " + st.Symbol + " detected but price unavailable"
	}
	writeJSON(w, http.StatusOK, resp)
}
