package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// PriceService quotes a symbol, falling back to the gold symbol.
type PriceService interface {
	Quote(ctx context.Context, symbol string) (domain.Tick, error)
}

// PriceHandler serves quotes.
type PriceHandler struct {
	prices PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(prices PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, logger: logger}
}

type priceRequest struct {
	Symbol string `json:"symbol"`
}

type priceResponse struct {
	Success   bool    `json:"success"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Spread    float64 `json:"spread"`
	Timestamp int64   `json:"timestamp"`
}

// GetPrice returns mid, bid, ask and spread rounded to two decimals. The
// timestamp is the tick time in Unix seconds.
// POST /api/get_price
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	tick, err := h.prices.Quote(r.Context(), req.Symbol)
	if err != nil {
		writeServiceError(w, r, h.logger, "get price", err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		Success:   true,
		Symbol:    tick.Symbol,
		Price:     round2(tick.Mid()),
		Bid:       round2(tick.Bid),
		Ask:       round2(tick.Ask),
		Spread:    round2(tick.Spread()),
		Timestamp: tick.Time.Unix(),
	})
}
