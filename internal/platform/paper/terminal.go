// Package paper implements domain.Terminal as an in-process simulated
// broker. Orders fill immediately at the submitted price and are kept as
// open positions.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// Retcodes the simulator can produce besides domain.RetcodeDone.
const (
	RetcodeRequote      = 10004
	RetcodeRejected     = 10006
	RetcodeMarketClosed = 10018
	RetcodeNoMoney      = 10019
)

// Symbol seeds one instrument.
type Symbol struct {
	Name        string
	Description string
	Bid         float64
	Ask         float64
	VolumeMin   float64
	VolumeMax   float64
	VolumeStep  float64
	Digits      int
	Disabled    bool
	// Hidden symbols exist in the catalog but refuse SelectSymbol.
	Hidden bool
}

// Config seeds the simulated account.
type Config struct {
	Balance  float64
	Currency string
	Leverage int
	Login    int64
}

type instrument struct {
	info     domain.SymbolInfo
	tick     domain.Tick
	hasTick  bool
	hidden   bool
	selected bool
}

type rejection struct {
	retcode int
	comment string
}

// Terminal is a thread-safe simulated broker terminal.
type Terminal struct {
	mu          sync.RWMutex
	cfg         Config
	symbols     map[string]*instrument
	positions   []domain.Position
	nextTicket  uint64
	connected   bool
	rejectQueue []rejection
	orders      []domain.Order
	now         func() time.Time
	logger      *slog.Logger
}

// New returns a connected terminal with the given catalog.
func New(cfg Config, symbols []Symbol, logger *slog.Logger) *Terminal {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Leverage == 0 {
		cfg.Leverage = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Terminal{
		cfg:        cfg,
		symbols:    make(map[string]*instrument, len(symbols)),
		nextTicket: 100_000,
		connected:  true,
		now:        time.Now,
		logger:     logger,
	}
	for _, s := range symbols {
		t.AddSymbol(s)
	}
	return t
}

// AddSymbol adds or replaces an instrument. A zero bid/ask leaves it unquoted.
func (t *Terminal) AddSymbol(s Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()

	mode := domain.TradeModeFull
	if s.Disabled {
		mode = domain.TradeModeDisabled
	}
	if s.Digits == 0 {
		s.Digits = 2
	}
	inst := &instrument{
		info: domain.SymbolInfo{
			Name:        s.Name,
			Description: s.Description,
			TradeMode:   mode,
			VolumeMin:   s.VolumeMin,
			VolumeMax:   s.VolumeMax,
			VolumeStep:  s.VolumeStep,
			Digits:      s.Digits,
		},
		hidden: s.Hidden,
	}
	if s.Bid > 0 && s.Ask > 0 {
		inst.tick = domain.Tick{Symbol: s.Name, Bid: s.Bid, Ask: s.Ask, Time: t.now()}
		inst.hasTick = true
	}
	t.symbols[s.Name] = inst
}

// RemoveSymbol drops an instrument from the catalog.
func (t *Terminal) RemoveSymbol(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.symbols, name)
}

// SetTick installs a quote for name.
func (t *Terminal) SetTick(name string, bid, ask float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.symbols[name]
	if !ok {
		return fmt.Errorf("paper: set tick %s: %w", name, domain.ErrNotFound)
	}
	inst.tick = domain.Tick{Symbol: name, Bid: bid, Ask: ask, Time: t.now()}
	inst.hasTick = true
	return nil
}

// ClearTick removes the quote for name, as when its session closes.
func (t *Terminal) ClearTick(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if inst, ok := t.symbols[name]; ok {
		inst.hasTick = false
		inst.tick = domain.Tick{}
	}
}

// SetTradeMode changes the trading permission for name.
func (t *Terminal) SetTradeMode(name string, mode domain.TradeMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if inst, ok := t.symbols[name]; ok {
		inst.info.TradeMode = mode
	}
}

// SetConnected simulates losing or regaining the terminal connection.
func (t *Terminal) SetConnected(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = v
}

// RejectNext makes the next order submission return retcode with comment.
func (t *Terminal) RejectNext(retcode int, comment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejectQueue = append(t.rejectQueue, rejection{retcode: retcode, comment: comment})
}

// Orders returns every order received, in submission order.
func (t *Terminal) Orders() []domain.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Order, len(t.orders))
	copy(out, t.orders)
	return out
}

// Connected implements domain.Terminal.
func (t *Terminal) Connected(_ context.Context) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Symbols implements domain.Terminal. Names are returned sorted.
func (t *Terminal) Symbols(_ context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.connected {
		return nil, domain.ErrTerminalUnavailable
	}
	names := make([]string, 0, len(t.symbols))
	for name := range t.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SelectSymbol implements domain.Terminal.
func (t *Terminal) SelectSymbol(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return domain.ErrTerminalUnavailable
	}
	inst, ok := t.symbols[name]
	if !ok {
		return fmt.Errorf("paper: select %s: %w", name, domain.ErrNotFound)
	}
	if inst.hidden {
		return fmt.Errorf("paper: select %s: %w", name, domain.ErrSymbolUnavailable)
	}
	inst.selected = true
	return nil
}

// SymbolInfo implements domain.Terminal.
func (t *Terminal) SymbolInfo(_ context.Context, name string) (domain.SymbolInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.connected {
		return domain.SymbolInfo{}, domain.ErrTerminalUnavailable
	}
	inst, ok := t.symbols[name]
	if !ok {
		return domain.SymbolInfo{}, fmt.Errorf("paper: symbol info %s: %w", name, domain.ErrNotFound)
	}
	return inst.info, nil
}

// Tick implements domain.Terminal.
func (t *Terminal) Tick(_ context.Context, name string) (domain.Tick, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.connected {
		return domain.Tick{}, domain.ErrTerminalUnavailable
	}
	inst, ok := t.symbols[name]
	if !ok {
		return domain.Tick{}, fmt.Errorf("paper: tick %s: %w", name, domain.ErrNotFound)
	}
	if !inst.hasTick {
		return domain.Tick{}, fmt.Errorf("paper: tick %s: %w", name, domain.ErrNoTick)
	}
	return inst.tick, nil
}

// SendOrder implements domain.Terminal. Queued rejections are consumed first.
// Otherwise the order fills in full at its own price.
func (t *Terminal) SendOrder(_ context.Context, order domain.Order) (domain.OrderResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return domain.OrderResult{}, domain.ErrTerminalUnavailable
	}
	t.orders = append(t.orders, order)

	if len(t.rejectQueue) > 0 {
		r := t.rejectQueue[0]
		t.rejectQueue = t.rejectQueue[1:]
		return domain.OrderResult{Retcode: r.retcode, Comment: r.comment}, nil
	}

	inst, ok := t.symbols[order.Symbol]
	if !ok {
		return domain.OrderResult{Retcode: RetcodeRejected, Comment: "Invalid symbol"}, nil
	}
	if !inst.hasTick {
		return domain.OrderResult{Retcode: RetcodeMarketClosed, Comment: "Market closed"}, nil
	}

	t.nextTicket++
	ticket := t.nextTicket
	typ := domain.PositionBuy
	if order.Action == domain.ActionSell {
		typ = domain.PositionSell
	}
	t.positions = append(t.positions, domain.Position{
		Ticket:       ticket,
		Symbol:       order.Symbol,
		Type:         typ,
		Volume:       order.Volume,
		PriceOpen:    order.Price,
		PriceCurrent: order.Price,
		Comment:      order.Comment,
	})

	t.logger.Debug("paper: order filled",
		slog.Uint64("ticket", ticket),
		slog.String("symbol", order.Symbol),
		slog.String("action", string(order.Action)),
		slog.Float64("volume", order.Volume),
		slog.Float64("price", order.Price),
	)

	return domain.OrderResult{
		Retcode: domain.RetcodeDone,
		Comment: "Request executed",
		OrderID: ticket,
		Volume:  order.Volume,
		Price:   order.Price,
	}, nil
}

// Account implements domain.Terminal. Equity marks open positions to the
// current quote.
func (t *Terminal) Account(_ context.Context) (domain.AccountSnapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.connected {
		return domain.AccountSnapshot{}, domain.ErrTerminalUnavailable
	}

	var profit, margin float64
	for _, p := range t.positions {
		pp := t.markLocked(p)
		profit += pp.Profit
		margin += pp.PriceOpen * pp.Volume * contractSize / float64(t.cfg.Leverage)
	}
	equity := t.cfg.Balance + profit
	return domain.AccountSnapshot{
		Login:      t.cfg.Login,
		Balance:    t.cfg.Balance,
		Equity:     equity,
		Margin:     margin,
		FreeMargin: equity - margin,
		Leverage:   t.cfg.Leverage,
		Currency:   t.cfg.Currency,
	}, nil
}

// Positions implements domain.Terminal.
func (t *Terminal) Positions(_ context.Context) ([]domain.Position, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.connected {
		return nil, domain.ErrTerminalUnavailable
	}
	out := make([]domain.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, t.markLocked(p))
	}
	return out, nil
}

// contractSize is units per lot, as for spot gold at most brokers.
const contractSize = 100

func (t *Terminal) markLocked(p domain.Position) domain.Position {
	inst, ok := t.symbols[p.Symbol]
	if !ok || !inst.hasTick {
		return p
	}
	switch p.Type {
	case domain.PositionBuy:
		p.PriceCurrent = inst.tick.Bid
		p.Profit = (p.PriceCurrent - p.PriceOpen) * p.Volume * contractSize
	case domain.PositionSell:
		p.PriceCurrent = inst.tick.Ask
		p.Profit = (p.PriceOpen - p.PriceCurrent) * p.Volume * contractSize
	}
	return p
}

// Run moves every quoted price by a small random step on each interval
// until ctx is cancelled. The spread of each instrument is preserved.
func (t *Terminal) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.step(rand.NormFloat64)
		}
	}
}

// step applies one random-walk move; draw returns a standard normal sample.
func (t *Terminal) step(draw func() float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for _, inst := range t.symbols {
		if !inst.hasTick {
			continue
		}
		spread := inst.tick.Spread()
		scale := math.Pow10(inst.info.Digits)
		bid := inst.tick.Bid * (1 + draw()*0.0002)
		bid = math.Round(bid*scale) / scale
		if bid <= 0 {
			continue
		}
		inst.tick = domain.Tick{Symbol: inst.info.Name, Bid: bid, Ask: bid + spread, Time: now}
	}
}

var _ domain.Terminal = (*Terminal)(nil)
