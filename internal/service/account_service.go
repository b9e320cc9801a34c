package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// AccountService reads account state from the terminal.
type AccountService struct {
	term     domain.Terminal
	resolver *SymbolResolver
}

// NewAccountService creates an AccountService.
func NewAccountService(term domain.Terminal, resolver *SymbolResolver) *AccountService {
	return &AccountService{term: term, resolver: resolver}
}

// Account returns the account snapshot.
func (s *AccountService) Account(ctx context.Context) (domain.AccountSnapshot, error) {
	acct, err := s.term.Account(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, fmt.Errorf("account_service: account: %w", err)
	}
	return acct, nil
}

// PositionsView splits open positions into all and gold-only.
type PositionsView struct {
	All    []domain.Position
	Gold   []domain.Position
	Symbol string
}

// Positions returns open positions. The gold subset uses the resolved symbol,
// running detection if needed; when none can be found the subset is empty.
func (s *AccountService) Positions(ctx context.Context) (PositionsView, error) {
	all, err := s.term.Positions(ctx)
	if err != nil {
		return PositionsView{}, fmt.Errorf("account_service: positions: %w", err)
	}
	view := PositionsView{All: all, Gold: []domain.Position{}}

	sym, err := s.resolver.Get(ctx)
	switch {
	case err == nil:
		view.Symbol = sym.Name
		for _, p := range all {
			if p.Symbol == sym.Name {
				view.Gold = append(view.Gold, p)
			}
		}
	case errors.Is(err, domain.ErrNoSymbolFound):
	default:
		return PositionsView{}, err
	}
	return view, nil
}
