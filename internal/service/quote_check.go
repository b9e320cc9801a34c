package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// checkQuotable runs the checks shared by quoting and trading, in order:
// the symbol is selectable, its trade mode is not disabled, and it has a
// live tick. The first failure wins.
func checkQuotable(ctx context.Context, term domain.Terminal, name string) (domain.SymbolInfo, domain.Tick, error) {
	if err := term.SelectSymbol(ctx, name); err != nil {
		if errors.Is(err, domain.ErrTerminalUnavailable) {
			return domain.SymbolInfo{}, domain.Tick{}, err
		}
		return domain.SymbolInfo{}, domain.Tick{}, domain.Invalid(domain.ErrSymbolUnavailable,
			"Symbol %s not found or not available", name)
	}

	info, err := term.SymbolInfo(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SymbolInfo{}, domain.Tick{}, domain.Invalid(domain.ErrSymbolUnavailable,
				"Could not get symbol info for %s", name)
		}
		return domain.SymbolInfo{}, domain.Tick{}, fmt.Errorf("symbol info %s: %w", name, err)
	}
	if info.TradeMode == domain.TradeModeDisabled {
		return info, domain.Tick{}, domain.Invalid(domain.ErrTradingDisabled, "Trading disabled for %s", name)
	}

	tick, err := term.Tick(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNoTick) && !errors.Is(err, domain.ErrNotFound) {
		return info, domain.Tick{}, fmt.Errorf("tick %s: %w", name, err)
	}
	if err != nil || !tick.Live() {
		return info, domain.Tick{}, domain.Invalid(domain.ErrNoQuote,
			"No price data available for %s (market may be closed)", name)
	}
	return info, tick, nil
}
