package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/alanyoungcy/goldbridge/internal/service"
	"github.com/shopspring/decimal"
)

// TradeExecutor places market orders.
type TradeExecutor interface {
	Execute(ctx context.Context, req service.TradeRequest) (domain.Execution, error)
}

// TradeHandler serves order execution.
type TradeHandler struct {
	trades        TradeExecutor
	defaultVolume float64
	logger        *slog.Logger
}

// NewTradeHandler creates a TradeHandler. defaultVolume applies when a
// request omits lot_size.
func NewTradeHandler(trades TradeExecutor, defaultVolume float64, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, defaultVolume: defaultVolume, logger: logger}
}

// tradeRequest accepts lot_size as a JSON number or a numeric string.
// Any client-supplied price is ignored.
type tradeRequest struct {
	Symbol  string           `json:"symbol"`
	Action  string           `json:"action"`
	LotSize *decimal.Decimal `json:"lot_size"`
}

type tradeResponse struct {
	Success bool    `json:"success"`
	OrderID uint64  `json:"order_id"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Action  string  `json:"action"`
	Symbol  string  `json:"symbol"`
}

// ExecuteTrade validates and submits a market order at the current quote.
// POST /api/execute_trade
func (h *TradeHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	volume := h.defaultVolume
	if req.LotSize != nil {
		volume = req.LotSize.InexactFloat64()
	}

	exec, err := h.trades.Execute(r.Context(), service.TradeRequest{
		Symbol: req.Symbol,
		Action: req.Action,
		Volume: volume,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "execute trade", err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse{
		Success: true,
		OrderID: exec.OrderID,
		Volume:  exec.Volume,
		Price:   exec.Price,
		Action:  string(exec.Action),
		Symbol:  exec.Symbol,
	})
}
