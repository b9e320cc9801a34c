package domain

import "context"

// Terminal is the broker terminal the gateway trades through. Implementations
// must be safe for concurrent use.
//
// Lookups of unknown instruments return ErrNotFound. Tick returns ErrNoTick
// when no quote is available. Loss of the terminal connection surfaces as
// ErrTerminalUnavailable.
type Terminal interface {
	Connected(ctx context.Context) bool
	Symbols(ctx context.Context) ([]string, error)
	// SelectSymbol makes the instrument quotable (market watch).
	SelectSymbol(ctx context.Context, name string) error
	SymbolInfo(ctx context.Context, name string) (SymbolInfo, error)
	Tick(ctx context.Context, name string) (Tick, error)
	SendOrder(ctx context.Context, order Order) (OrderResult, error)
	Account(ctx context.Context) (AccountSnapshot, error)
	Positions(ctx context.Context) ([]Position, error)
}
