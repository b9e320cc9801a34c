package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// PriceService serves quotes for the gold symbol or an explicit one.
type PriceService struct {
	term     domain.Terminal
	resolver *SymbolResolver
	logger   *slog.Logger
}

// NewPriceService creates a PriceService.
func NewPriceService(term domain.Terminal, resolver *SymbolResolver, logger *slog.Logger) *PriceService {
	return &PriceService{term: term, resolver: resolver, logger: logger}
}

// Quote returns the current tick for symbol, or for the resolved gold symbol
// when symbol is empty. If the resolved symbol has become unavailable it is
// invalidated so the next request runs detection.
func (s *PriceService) Quote(ctx context.Context, symbol string) (domain.Tick, error) {
	name, fromCache, err := s.resolver.Target(ctx, symbol)
	if err != nil {
		return domain.Tick{}, err
	}
	_, tick, err := checkQuotable(ctx, s.term, name)
	if err != nil {
		if fromCache && errors.Is(err, domain.ErrSymbolUnavailable) {
			s.resolver.Invalidate(name)
		}
		return domain.Tick{}, err
	}
	tick.Symbol = name
	return tick, nil
}

// Status is the cheap gateway health view.
type Status struct {
	Connected bool
	Symbol    string
	Source    domain.SymbolSource
	// Price is the current mid of Symbol, when one is resolved and quoted.
	Price *float64
}

// Status reports terminal connectivity and the cached symbol without
// triggering detection.
func (s *PriceService) Status(ctx context.Context) Status {
	st := Status{Connected: s.term.Connected(ctx)}
	sym, ok := s.resolver.Current()
	if !ok {
		return st
	}
	st.Symbol = sym.Name
	st.Source = sym.Source
	if !st.Connected {
		return st
	}
	tick, err := s.term.Tick(ctx, sym.Name)
	if err != nil || !tick.Live() {
		s.logger.DebugContext(ctx, "price_service: status without price",
			slog.String("symbol", sym.Name),
		)
		return st
	}
	mid := tick.Mid()
	st.Price = &mid
	return st
}
