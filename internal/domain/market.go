package domain

import "time"

// Tick is a timestamped bid/ask quote for one instrument.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Mid returns (bid+ask)/2.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Spread returns ask-bid.
func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Live reports whether the tick carries a usable quote. Terminals return a
// zeroed tick for instruments whose session is closed.
func (t Tick) Live() bool {
	return t.Bid > 0 && t.Ask > 0
}

// TradeMode mirrors the terminal's per-instrument trading permission.
type TradeMode int

const (
	TradeModeDisabled TradeMode = iota
	TradeModeLongOnly
	TradeModeShortOnly
	TradeModeCloseOnly
	TradeModeFull
)

// SymbolInfo holds the instrument specification exposed by the terminal.
type SymbolInfo struct {
	Name        string
	Description string
	TradeMode   TradeMode
	VolumeMin   float64
	VolumeMax   float64
	VolumeStep  float64
	Digits      int
}

// SymbolSource records how the active symbol was chosen.
type SymbolSource string

const (
	SymbolSourceAuto   SymbolSource = "auto"
	SymbolSourceManual SymbolSource = "manual"
)

// ResolvedSymbol is the broker-specific name currently used for gold.
type ResolvedSymbol struct {
	Name       string
	Source     SymbolSource
	ResolvedAt time.Time
}

// SymbolCandidate is produced while probing the catalog during detection.
type SymbolCandidate struct {
	Name         string  `json:"name"`
	IsExactAlias bool    `json:"is_exact_alias"`
	MidPrice     float64 `json:"mid_price"`
	HasQuote     bool    `json:"has_quote"`
}

// SymbolCatalog is the diagnostic view of the terminal's instrument list.
type SymbolCatalog struct {
	Detected     string
	GoldRelated  []string
	Sample       []string
	TotalSymbols int
}
