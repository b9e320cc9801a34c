package service

import (
	"context"
	"testing"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionsSplitsGold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, term, _ := newResolver(t, gold("XAUUSD", 2400.30, 2400.50), gold("EURUSD", 1.08, 1.09))
	trades := NewTradeService(term, r, TradeConfig{Deviation: 20}, nil, discardLogger())
	accounts := NewAccountService(term, r)

	_, err := trades.Execute(ctx, TradeRequest{Action: "buy", Volume: 0.10})
	require.NoError(t, err)
	_, err = trades.Execute(ctx, TradeRequest{Symbol: "EURUSD", Action: "sell", Volume: 1})
	require.NoError(t, err)

	view, err := accounts.Positions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD", view.Symbol)
	assert.Len(t, view.All, 2)
	require.Len(t, view.Gold, 1)
	assert.Equal(t, domain.PositionBuy, view.Gold[0].Type)
	assert.InDelta(t, 2400.50, view.Gold[0].PriceOpen, 1e-9)
	// Marked at bid: (2400.30 - 2400.50) * 0.10 * 100.
	assert.InDelta(t, -2.0, view.Gold[0].Profit, 1e-6)
}

func TestPositionsWithoutGoldSymbol(t *testing.T) {
	t.Parallel()
	r, term, _ := newResolver(t, gold("EURUSD", 1.08, 1.09))
	accounts := NewAccountService(term, r)

	view, err := accounts.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, view.Symbol)
	assert.NotNil(t, view.Gold)
	assert.Empty(t, view.Gold)
}

func TestAccountSnapshot(t *testing.T) {
	t.Parallel()
	r, term, _ := newResolver(t, gold("XAUUSD", 2400.30, 2400.50))
	accounts := NewAccountService(term, r)

	acct, err := accounts.Account(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10_000, acct.Balance, 1e-9)
	assert.InDelta(t, 10_000, acct.Equity, 1e-9)
	assert.Equal(t, "USD", acct.Currency)
	assert.Equal(t, 100, acct.Leverage)

	term.SetConnected(false)
	_, err = accounts.Account(context.Background())
	assert.ErrorIs(t, err, domain.ErrTerminalUnavailable)
	_, err = accounts.Positions(context.Background())
	assert.ErrorIs(t, err, domain.ErrTerminalUnavailable)
}
