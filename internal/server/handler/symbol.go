package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// SymbolService defines what the symbol handler needs from the resolver.
type SymbolService interface {
	Resolve(ctx context.Context) (domain.ResolvedSymbol, error)
	SetManual(ctx context.Context, name string) (domain.ResolvedSymbol, domain.Tick, error)
	Catalog(ctx context.Context) (domain.SymbolCatalog, error)
}

// SymbolHandler serves gold symbol detection and override.
type SymbolHandler struct {
	symbols SymbolService
	logger  *slog.Logger
}

// NewSymbolHandler creates a SymbolHandler.
func NewSymbolHandler(symbols SymbolService, logger *slog.Logger) *SymbolHandler {
	return &SymbolHandler{symbols: symbols, logger: logger}
}

const detectInstruction = "Please check MT5 terminal for the exact gold symbol name or use /api/set_gold_symbol"

type detectResponse struct {
	Success             bool     `json:"success"`
	GoldSymbol          string   `json:"gold_symbol,omitempty"`
	Source              string   `json:"source,omitempty"`
	Message             string   `json:"message"`
	PossibleGoldSymbols []string `json:"possible_gold_symbols,omitempty"`
	Instruction         string   `json:"instruction,omitempty"`
}

// Detect runs gold symbol detection. A failed detection is still a 200 and
// lists the keyword matches so a human can pick one.
// POST /api/detect_gold_symbol
func (h *SymbolHandler) Detect(w http.ResponseWriter, r *http.Request) {
	sym, err := h.symbols.Resolve(r.Context())
	if err != nil {
		var rerr *domain.ResolutionError
		if errors.As(err, &rerr) {
			possible := rerr.Possible
			if possible == nil {
				possible = []string{}
			}
			writeJSON(w, http.StatusOK, detectResponse{
				Message:             "Could not auto-detect gold symbol",
				PossibleGoldSymbols: possible,
				Instruction:         detectInstruction,
			})
			return
		}
		writeServiceError(w, r, h.logger, "detect gold symbol", err)
		return
	}

	msg := "Gold symbol auto-detected as: " + sym.Name
	if sym.Source == domain.SymbolSourceManual {
		msg = "Gold symbol manually set to: " + sym.Name
	}
	writeJSON(w, http.StatusOK, detectResponse{
		Success:    true,
		GoldSymbol: sym.Name,
		Source:     string(sym.Source),
		Message:    msg,
	})
}

type setSymbolRequest struct {
	Symbol string `json:"symbol"`
}

// Set installs a manual gold symbol after checking it is quotable.
// POST /api/set_gold_symbol
func (h *SymbolHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setSymbolRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sym, tick, err := h.symbols.SetManual(r.Context(), req.Symbol)
	if err != nil {
		writeServiceError(w, r, h.logger, "set gold symbol", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Gold symbol set to " + sym.Name,
		"symbol":        sym.Name,
		"current_price": round2(tick.Mid()),
	})
}

// List returns the diagnostic catalog view.
// POST /api/list_symbols
func (h *SymbolHandler) List(w http.ResponseWriter, r *http.Request) {
	cat, err := h.symbols.Catalog(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list symbols", err)
		return
	}
	if cat.GoldRelated == nil {
		cat.GoldRelated = []string{}
	}
	if cat.Sample == nil {
		cat.Sample = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"detected_gold_symbol": nullable(cat.Detected),
		"gold_related_symbols": cat.GoldRelated,
		"sample_symbols":       cat.Sample,
		"total_symbols":        cat.TotalSymbols,
	})
}
