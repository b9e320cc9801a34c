package service

import (
	"context"
	"testing"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteResolvesOnDemand(t *testing.T) {
	t.Parallel()
	r, term, _ := newResolver(t, gold("XAUUSD", 2400.30, 2400.50), gold("EURUSD", 1.08, 1.09))
	svc := NewPriceService(term, r, discardLogger())

	tick, err := svc.Quote(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD", tick.Symbol)
	assert.InDelta(t, 2400.30, tick.Bid, 1e-9)
	assert.InDelta(t, 2400.50, tick.Ask, 1e-9)
	assert.InDelta(t, 0.20, tick.Spread(), 1e-9)

	fx, err := svc.Quote(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", fx.Symbol)
}

func TestQuoteInvalidatesVanishedSymbol(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, term, rec := newResolver(t, gold("XAUUSD", 2400.30, 2400.50), gold("GOLD", 2401, 2402))
	svc := NewPriceService(term, r, discardLogger())

	_, err := svc.Quote(ctx, "")
	require.NoError(t, err)

	term.RemoveSymbol("XAUUSD")
	_, err = svc.Quote(ctx, "")
	assert.ErrorIs(t, err, domain.ErrSymbolUnavailable)
	_, ok := r.Current()
	assert.False(t, ok)

	// The next call detects afresh and lands on the remaining alias.
	tick, err := svc.Quote(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "GOLD", tick.Symbol)
	assert.Equal(t, []domain.EventType{
		domain.EventSymbolResolved,
		domain.EventSymbolInvalidated,
		domain.EventSymbolResolved,
	}, rec.types())
}

func TestQuoteMarketClosedKeepsSymbol(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, term, _ := newResolver(t, gold("XAUUSD", 2400.30, 2400.50))
	svc := NewPriceService(term, r, discardLogger())

	_, err := svc.Quote(ctx, "")
	require.NoError(t, err)

	term.ClearTick("XAUUSD")
	_, err = svc.Quote(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNoQuote)
	_, ok := r.Current()
	assert.True(t, ok)
}

func TestStatusNeverDetects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, term, rec := newResolver(t, gold("XAUUSD", 2400.30, 2400.50))
	svc := NewPriceService(term, r, discardLogger())

	st := svc.Status(ctx)
	assert.True(t, st.Connected)
	assert.Empty(t, st.Symbol)
	assert.Nil(t, st.Price)
	assert.Empty(t, rec.types())

	_, err := r.Resolve(ctx)
	require.NoError(t, err)

	st = svc.Status(ctx)
	assert.Equal(t, "XAUUSD", st.Symbol)
	assert.Equal(t, domain.SymbolSourceAuto, st.Source)
	require.NotNil(t, st.Price)
	assert.InDelta(t, 2400.40, *st.Price, 1e-9)

	term.SetConnected(false)
	st = svc.Status(ctx)
	assert.False(t, st.Connected)
	assert.Equal(t, "XAUUSD", st.Symbol)
	assert.Nil(t, st.Price)
}
