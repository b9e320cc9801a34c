package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/alanyoungcy/goldbridge/internal/service"
)

// AccountReader reads account and position state.
type AccountReader interface {
	Account(ctx context.Context) (domain.AccountSnapshot, error)
	Positions(ctx context.Context) (service.PositionsView, error)
}

// AccountHandler serves account and position endpoints.
type AccountHandler struct {
	accounts AccountReader
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountReader, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type accountResponse struct {
	Success    bool    `json:"success"`
	Login      int64   `json:"login,omitempty"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Leverage   int     `json:"leverage"`
	Currency   string  `json:"currency"`
}

// GetAccountInfo returns the account snapshot with money rounded to cents.
// POST /api/get_account_info
func (h *AccountHandler) GetAccountInfo(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Account(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "get account info", err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Success:    true,
		Login:      acct.Login,
		Balance:    round2(acct.Balance),
		Equity:     round2(acct.Equity),
		Margin:     round2(acct.Margin),
		FreeMargin: round2(acct.FreeMargin),
		Leverage:   acct.Leverage,
		Currency:   acct.Currency,
	})
}

type positionJSON struct {
	Ticket       uint64  `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Volume       float64 `json:"volume"`
	Type         string  `json:"type"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	Comment      string  `json:"comment"`
}

func toPositionJSON(ps []domain.Position) []positionJSON {
	out := make([]positionJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, positionJSON{
			Ticket:       p.Ticket,
			Symbol:       p.Symbol,
			Volume:       p.Volume,
			Type:         string(p.Type),
			PriceOpen:    round2(p.PriceOpen),
			PriceCurrent: round2(p.PriceCurrent),
			Profit:       round2(p.Profit),
			Comment:      p.Comment,
		})
	}
	return out
}

// GetPositions returns all open positions and those on the gold symbol.
// POST /api/get_positions
func (h *AccountHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	view, err := h.accounts.Positions(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "get positions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"all_positions":        toPositionJSON(view.All),
		"gold_positions":       toPositionJSON(view.Gold),
		"detected_gold_symbol": nullable(view.Symbol),
	})
}
