package paper

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal() *Terminal {
	return New(Config{Balance: 10_000, Login: 42}, []Symbol{
		{Name: "XAUUSD", Bid: 2400.30, Ask: 2400.50, VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01},
		{Name: "EURUSD", Bid: 1.0841, Ask: 1.0842, VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01, Digits: 5},
		{Name: "GOLD.x", VolumeMin: 0.1, VolumeMax: 5},
		{Name: "XAUEUR", Bid: 2200, Ask: 2201, Hidden: true},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCatalogAndQuotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	term := newTestTerminal()

	names, err := term.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "GOLD.x", "XAUEUR", "XAUUSD"}, names)

	tick, err := term.Tick(ctx, "XAUUSD")
	require.NoError(t, err)
	assert.InDelta(t, 2400.40, tick.Mid(), 1e-9)
	assert.InDelta(t, 0.20, tick.Spread(), 1e-9)

	_, err = term.Tick(ctx, "GOLD.x")
	assert.ErrorIs(t, err, domain.ErrNoTick)
	_, err = term.Tick(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, term.SelectSymbol(ctx, "XAUUSD"))
	assert.ErrorIs(t, term.SelectSymbol(ctx, "XAUEUR"), domain.ErrSymbolUnavailable)
	assert.ErrorIs(t, term.SelectSymbol(ctx, "NOPE"), domain.ErrNotFound)

	info, err := term.SymbolInfo(ctx, "GOLD.x")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeModeFull, info.TradeMode)
	assert.Equal(t, 0.1, info.VolumeMin)
	assert.Equal(t, 2, info.Digits)
}

func TestSendOrderFillsAndMarksPositions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	term := newTestTerminal()

	res, err := term.SendOrder(ctx, domain.Order{Symbol: "XAUUSD", Action: domain.ActionBuy, Volume: 0.5, Price: 2400.50})
	require.NoError(t, err)
	assert.True(t, res.Done())
	assert.Equal(t, uint64(100_001), res.OrderID)
	assert.Equal(t, 2400.50, res.Price)

	_, err = term.SendOrder(ctx, domain.Order{Symbol: "XAUUSD", Action: domain.ActionSell, Volume: 0.2, Price: 2400.30})
	require.NoError(t, err)

	require.NoError(t, term.SetTick("XAUUSD", 2410.30, 2410.50))

	positions, err := term.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, domain.PositionBuy, positions[0].Type)
	assert.InDelta(t, 2410.30, positions[0].PriceCurrent, 1e-9)
	assert.InDelta(t, (2410.30-2400.50)*0.5*100, positions[0].Profit, 1e-6)
	assert.InDelta(t, (2400.30-2410.50)*0.2*100, positions[1].Profit, 1e-6)
	assert.InDelta(t, 0.3, domain.NetVolume(positions), 1e-9)

	acct, err := term.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), acct.Login)
	assert.Equal(t, "USD", acct.Currency)
	assert.Equal(t, 100, acct.Leverage)
	assert.InDelta(t, 10_000+positions[0].Profit+positions[1].Profit, acct.Equity, 1e-6)
	assert.InDelta(t, acct.Equity-acct.Margin, acct.FreeMargin, 1e-6)

	assert.Len(t, term.Orders(), 2)
}

func TestSendOrderRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	term := newTestTerminal()

	term.RejectNext(RetcodeNoMoney, "No money")
	res, err := term.SendOrder(ctx, domain.Order{Symbol: "XAUUSD", Action: domain.ActionBuy, Volume: 1, Price: 2400.5})
	require.NoError(t, err)
	assert.False(t, res.Done())
	assert.Equal(t, RetcodeNoMoney, res.Retcode)
	assert.Equal(t, "No money", res.Comment)

	res, err = term.SendOrder(ctx, domain.Order{Symbol: "GOLD.x", Action: domain.ActionBuy, Volume: 1})
	require.NoError(t, err)
	assert.Equal(t, RetcodeMarketClosed, res.Retcode)

	positions, err := term.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestDisconnected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	term := newTestTerminal()
	term.SetConnected(false)

	assert.False(t, term.Connected(ctx))
	_, err := term.Symbols(ctx)
	assert.ErrorIs(t, err, domain.ErrTerminalUnavailable)
	_, err = term.Tick(ctx, "XAUUSD")
	assert.ErrorIs(t, err, domain.ErrTerminalUnavailable)
	_, err = term.Account(ctx)
	assert.ErrorIs(t, err, domain.ErrTerminalUnavailable)
}

func TestStepKeepsSpread(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	term := newTestTerminal()

	term.step(func() float64 { return 1 })

	tick, err := term.Tick(ctx, "XAUUSD")
	require.NoError(t, err)
	assert.InDelta(t, 2400.78, tick.Bid, 1e-9)
	assert.InDelta(t, 0.20, tick.Spread(), 1e-9)

	_, err = term.Tick(ctx, "GOLD.x")
	assert.ErrorIs(t, err, domain.ErrNoTick, "unquoted symbols stay unquoted")
}
