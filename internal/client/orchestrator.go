package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// State is the orchestrator's connection and trading state.
type State string

const (
	StateDisconnected           State = "disconnected"
	StateConnectedNoSymbol      State = "connected_no_symbol"
	StateResolving              State = "resolving"
	StateReady                  State = "ready"
	StateTrading                State = "trading"
	StateMarketClosedSuppressed State = "market_closed_suppressed"
)

// maxCandidates is how many detection candidates are offered for manual
// selection.
const maxCandidates = 10

// Gateway is the subset of API the orchestrator drives.
type Gateway interface {
	Probe(ctx context.Context) error
	Status(ctx context.Context) (StatusResponse, error)
	Detect(ctx context.Context) (DetectResponse, error)
	SetSymbol(ctx context.Context, name string) (SetSymbolResponse, error)
	Price(ctx context.Context, symbol string) (Quote, error)
	Trade(ctx context.Context, req TradeRequest) (TradeResult, error)
	Account(ctx context.Context) (Account, error)
	Positions(ctx context.Context) (Positions, error)
}

// EventKind identifies an orchestrator event.
type EventKind string

const (
	EventStateChanged     EventKind = "state_changed"
	EventStatus           EventKind = "status"
	EventNotification     EventKind = "notification"
	EventPriceUpdated     EventKind = "price_updated"
	EventAccountUpdated   EventKind = "account_updated"
	EventSymbolCandidates EventKind = "symbol_candidates"
)

// Event is emitted to the presentation layer. Which fields are set depends
// on Kind.
type Event struct {
	Kind       EventKind
	State      State
	Text       string
	Title      string
	Quote      Quote
	Balance    float64
	NetVolume  decimal.Decimal
	Candidates []string
}

// ClientState is a copy of the orchestrator's loop-owned state.
type ClientState struct {
	State                State
	Symbol               string
	LastPrice            float64
	MarketClosedNotified bool
	TradesInFlight       int
	Balance              float64
	NetVolume            decimal.Decimal
}

// Config tunes the orchestrator.
type Config struct {
	PollInterval time.Duration
}

// result is delivered from a background call to the run loop.
type result interface{ isResult() }

type probeResult struct {
	gen int
	err error
}

type resolveResult struct {
	gen        int
	symbol     string
	candidates []string
	message    string
	err        error
}

type manualResult struct {
	name string
	err  error
}

type priceResult struct {
	gen   int
	quote Quote
	err   error
}

type tradeResult struct {
	req TradeRequest
	res TradeResult
	err error
}

type accountResult struct {
	account  Account
	net      decimal.Decimal
	err      error
	posError error
}

func (probeResult) isResult()   {}
func (resolveResult) isResult() {}
func (manualResult) isResult()  {}
func (priceResult) isResult()   {}
func (tradeResult) isResult()   {}
func (accountResult) isResult() {}

type command func(o *Orchestrator)

// Orchestrator drives a Gateway from a single run-loop goroutine, which owns
// all client state. Background calls report back over a channel and never
// touch that state directly.
type Orchestrator struct {
	gw     Gateway
	cfg    Config
	logger *slog.Logger

	events  chan Event
	cmds    chan command
	results chan result
	done    chan struct{}
	ctx     context.Context

	// Owned by the run loop.
	st           ClientState
	gen          int
	resolving    bool
	pollInFlight bool
}

// NewOrchestrator creates an Orchestrator. Call Run to start it and drain
// Events concurrently.
func NewOrchestrator(gw Gateway, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	return &Orchestrator{
		gw:      gw,
		cfg:     cfg,
		logger:  logger,
		events:  make(chan Event, 64),
		cmds:    make(chan command),
		results: make(chan result, 16),
		done:    make(chan struct{}),
		st:      ClientState{State: StateDisconnected, NetVolume: decimal.Zero},
	}
}

// Events returns the event stream. It is closed when Run returns.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Run probes the gateway and then serves commands, poll ticks and
// background results until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	defer close(o.events)
	defer close(o.done)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	o.status("Connecting to gateway...")
	o.startProbe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-o.cmds:
			cmd(o)
		case res := <-o.results:
			o.handle(res)
		case <-ticker.C:
			o.poll()
		}
	}
}

// SubmitTrade validates volumeText locally and, if it is a positive number,
// submits a market order in the background.
func (o *Orchestrator) SubmitTrade(action, volumeText string) {
	o.send(func(o *Orchestrator) { o.submitTrade(action, volumeText) })
}

// SetManualSymbol asks the gateway to use name as the gold symbol.
func (o *Orchestrator) SetManualSymbol(name string) {
	o.send(func(o *Orchestrator) {
		o.status("Setting gold symbol to " + name + "...")
		o.spawn(func(ctx context.Context) result {
			_, err := o.gw.SetSymbol(ctx, name)
			return manualResult{name: name, err: err}
		})
	})
}

// Refresh drops the symbol and starts over from the reachability probe.
func (o *Orchestrator) Refresh() {
	o.send(func(o *Orchestrator) {
		o.st.Symbol = ""
		o.st.MarketClosedNotified = false
		o.resolving = false
		o.setState(StateDisconnected)
		o.status("Refreshing connection...")
		o.startProbe()
	})
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot(ctx context.Context) (ClientState, error) {
	reply := make(chan ClientState, 1)
	if !o.sendCtx(ctx, func(o *Orchestrator) { reply <- o.st }) {
		return ClientState{}, errors.New("client: orchestrator not running")
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return ClientState{}, ctx.Err()
	}
}

func (o *Orchestrator) send(cmd command) {
	o.sendCtx(context.Background(), cmd)
}

func (o *Orchestrator) sendCtx(ctx context.Context, cmd command) bool {
	select {
	case o.cmds <- cmd:
		return true
	case <-o.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// spawn runs call in the background and posts its result to the loop.
func (o *Orchestrator) spawn(call func(ctx context.Context) result) {
	ctx := o.ctx
	go func() {
		res := call(ctx)
		select {
		case o.results <- res:
		case <-o.done:
		}
	}()
}

func (o *Orchestrator) startProbe() {
	o.gen++
	gen := o.gen
	o.spawn(func(ctx context.Context) result {
		return probeResult{gen: gen, err: o.gw.Probe(ctx)}
	})
}

// startResolve reads the status first and only triggers detection when the
// gateway has no symbol cached.
func (o *Orchestrator) startResolve() {
	if o.resolving {
		return
	}
	o.resolving = true
	o.gen++
	gen := o.gen
	o.setState(StateResolving)
	o.status("Detecting gold symbol...")

	o.spawn(func(ctx context.Context) result {
		if st, err := o.gw.Status(ctx); err == nil && st.DetectedGoldSymbol != "" {
			return resolveResult{gen: gen, symbol: st.DetectedGoldSymbol}
		}
		det, err := o.gw.Detect(ctx)
		if err != nil {
			return resolveResult{gen: gen, err: err}
		}
		if det.Success && det.GoldSymbol != "" {
			return resolveResult{gen: gen, symbol: det.GoldSymbol}
		}
		return resolveResult{gen: gen, candidates: det.PossibleGoldSymbols, message: det.Message}
	})
}

func (o *Orchestrator) poll() {
	if o.st.Symbol == "" || o.resolving || o.pollInFlight {
		return
	}
	o.pollInFlight = true
	gen := o.gen
	o.spawn(func(ctx context.Context) result {
		q, err := o.gw.Price(ctx, "")
		return priceResult{gen: gen, quote: q, err: err}
	})
}

func (o *Orchestrator) submitTrade(action, volumeText string) {
	if o.st.Symbol == "" {
		o.notify("Error", "Gold symbol not detected yet. Please wait or refresh connection.")
		return
	}
	volume, err := decimal.NewFromString(strings.TrimSpace(volumeText))
	if err != nil {
		o.notify("Error", "Invalid lot size. Please enter a number.")
		return
	}
	if !volume.IsPositive() {
		o.notify("Error", "Lot size must be positive")
		return
	}

	req := TradeRequest{Action: strings.ToLower(strings.TrimSpace(action)), Volume: volume}
	o.st.TradesInFlight++
	if o.st.State == StateReady {
		o.setState(StateTrading)
	}
	o.status(fmt.Sprintf("Executing %s...", strings.ToUpper(req.Action)))
	o.spawn(func(ctx context.Context) result {
		res, err := o.gw.Trade(ctx, req)
		return tradeResult{req: req, res: res, err: err}
	})
}

func (o *Orchestrator) refreshAccount() {
	o.spawn(func(ctx context.Context) result {
		acct, err := o.gw.Account(ctx)
		if err != nil {
			return accountResult{err: err}
		}
		pos, perr := o.gw.Positions(ctx)
		return accountResult{account: acct, net: NetVolume(pos.Gold), posError: perr}
	})
}

func (o *Orchestrator) handle(res result) {
	switch r := res.(type) {
	case probeResult:
		o.onProbe(r)
	case resolveResult:
		o.onResolve(r)
	case manualResult:
		o.onManual(r)
	case priceResult:
		o.onPrice(r)
	case tradeResult:
		o.onTrade(r)
	case accountResult:
		o.onAccount(r)
	}
}

func (o *Orchestrator) onProbe(r probeResult) {
	if r.gen != o.gen {
		return
	}
	if r.err != nil {
		o.logger.Warn("client: gateway unreachable", slog.String("error", r.err.Error()))
		o.status("Server offline - please start the gateway")
		o.notify("Connection Error", "Cannot connect to the gateway: "+r.err.Error())
		return
	}
	o.setState(StateConnectedNoSymbol)
	o.status("Server connected - detecting gold symbol...")
	o.startResolve()
}

func (o *Orchestrator) onResolve(r resolveResult) {
	if r.gen != o.gen {
		return
	}
	o.resolving = false

	if r.symbol != "" {
		o.becomeReady(r.symbol, "Gold symbol detected - Ready to trade")
		return
	}

	o.setState(StateConnectedNoSymbol)
	switch {
	case r.err != nil && Classify(r.err) == OutcomeNetworkError:
		o.status("Symbol detection failed: " + r.err.Error())
		o.notify("Network Error", "Network error during symbol detection: "+r.err.Error())
	case r.err != nil:
		o.status("Failed to detect gold symbol: " + r.err.Error())
		o.notify("Detection Error", "Failed to detect gold symbol: "+r.err.Error())
	case len(r.candidates) > 0:
		cands := r.candidates[:min(len(r.candidates), maxCandidates)]
		o.status("Select your broker's gold symbol")
		o.emit(Event{Kind: EventSymbolCandidates, Candidates: append([]string(nil), cands...)})
	default:
		o.status("No gold symbols found. Check MT5 configuration.")
		o.notify("No Symbols", "No gold symbols detected. Ensure gold is available in the MT5 terminal.")
	}
}

func (o *Orchestrator) onManual(r manualResult) {
	if r.err != nil {
		o.notify("Error", "Failed to set symbol: "+r.err.Error())
		return
	}
	// A detection still in flight must not override the user's choice.
	o.gen++
	o.resolving = false
	o.becomeReady(r.name, "Symbol set to "+r.name+" - Ready to trade")
}

func (o *Orchestrator) becomeReady(symbol, msg string) {
	o.st.Symbol = symbol
	o.st.MarketClosedNotified = false
	if o.st.TradesInFlight > 0 {
		o.setState(StateTrading)
	} else {
		o.setState(StateReady)
	}
	o.status(msg)
	o.refreshAccount()
}

func (o *Orchestrator) onPrice(r priceResult) {
	o.pollInFlight = false
	if r.gen != o.gen || o.st.Symbol == "" {
		return
	}

	switch Classify(r.err) {
	case OutcomeOK:
		o.st.LastPrice = r.quote.Price
		if o.st.MarketClosedNotified {
			o.st.MarketClosedNotified = false
			o.setState(o.activeState())
			o.status("Market open - price updates resumed")
		}
		o.emit(Event{Kind: EventPriceUpdated, Quote: r.quote})
	case OutcomeSymbolError:
		o.lostSymbol("Symbol issue - Re-detecting...")
	case OutcomeMarketClosed:
		o.marketClosed(fmt.Sprintf("Market is closed for %s. Price updates paused.", o.st.Symbol))
	case OutcomeNetworkError:
		o.status("Price update failed")
	default:
		o.status("Price error: " + r.err.Error())
	}
}

func (o *Orchestrator) onTrade(r tradeResult) {
	o.st.TradesInFlight--
	if o.st.State == StateTrading && o.st.TradesInFlight == 0 {
		o.setState(StateReady)
	}

	side := strings.ToUpper(r.req.Action)
	switch Classify(r.err) {
	case OutcomeOK:
		o.status(fmt.Sprintf("%s %s executed successfully", side, r.req.Volume))
		o.notify("Trade Executed", fmt.Sprintf("%s %s %s\nPrice: %.2f\nOrder ID: %d",
			side, r.req.Volume, r.res.Symbol, r.res.Price, r.res.OrderID))
		o.refreshAccount()
	case OutcomeSymbolError:
		o.notify("Symbol Error", "Gold symbol issue. Trying to re-detect symbol...")
		o.lostSymbol("Symbol issue - Re-detecting...")
	case OutcomeMarketClosed:
		o.marketClosed(fmt.Sprintf("Cannot execute trade: Market is closed for %s.", o.st.Symbol))
	default:
		o.status("Trade failed")
		o.notify("Trade Failed", r.err.Error())
	}
}

func (o *Orchestrator) onAccount(r accountResult) {
	if r.err != nil {
		o.logger.Warn("client: account refresh failed", slog.String("error", r.err.Error()))
		return
	}
	o.st.Balance = r.account.Balance
	if r.posError == nil {
		o.st.NetVolume = r.net
	}
	o.emit(Event{Kind: EventAccountUpdated, Balance: o.st.Balance, NetVolume: o.st.NetVolume})
}

// lostSymbol drops the cached symbol and re-runs resolution without user
// action.
func (o *Orchestrator) lostSymbol(msg string) {
	if o.resolving {
		return
	}
	o.st.Symbol = ""
	o.st.MarketClosedNotified = false
	o.status(msg)
	o.startResolve()
}

// marketClosed notifies once, then only updates the status text until a
// price fetch succeeds.
func (o *Orchestrator) marketClosed(msg string) {
	o.status("Market closed for " + o.st.Symbol)
	if o.st.MarketClosedNotified {
		return
	}
	o.st.MarketClosedNotified = true
	o.setState(StateMarketClosedSuppressed)
	o.notify("Market Closed", msg)
}

func (o *Orchestrator) activeState() State {
	if o.st.TradesInFlight > 0 {
		return StateTrading
	}
	return StateReady
}

func (o *Orchestrator) setState(s State) {
	if o.st.State == s {
		return
	}
	o.logger.Debug("client: state changed",
		slog.String("from", string(o.st.State)),
		slog.String("to", string(s)),
	)
	o.st.State = s
	o.emit(Event{Kind: EventStateChanged, State: s})
}

func (o *Orchestrator) status(text string) {
	o.emit(Event{Kind: EventStatus, Text: text})
}

func (o *Orchestrator) notify(title, text string) {
	o.emit(Event{Kind: EventNotification, Title: title, Text: text})
}

// emit blocks until the consumer takes the event or the loop is stopping.
func (o *Orchestrator) emit(e Event) {
	e.State = o.st.State
	select {
	case o.events <- e:
	case <-o.ctx.Done():
	}
}
