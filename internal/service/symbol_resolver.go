package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ResolverConfig tunes symbol detection.
type ResolverConfig struct {
	// Aliases are exact broker names tried in order during phase 1.
	Aliases []string
	// Keywords select phase 2 candidates by case-insensitive substring.
	Keywords []string
	// CurrencyPattern must match the uppercase name of a phase 2 candidate
	// unless the name contains one of CommodityTokens.
	CurrencyPattern *regexp.Regexp
	CommodityTokens []string
	// A phase 2 candidate is accepted when its mid lies in [MinPrice, MaxPrice].
	MinPrice float64
	MaxPrice float64
	// CandidateCap bounds the diagnostic name list returned on failure.
	CandidateCap int
	// DetectTimeout bounds one shared detection run.
	DetectTimeout time.Duration
}

// sampleSize is how many catalog names the symbol listing returns.
const sampleSize = 10

// SymbolResolver finds and caches the broker-specific name of gold. It owns
// the single resolved-symbol cell; every read and write goes through mu.
type SymbolResolver struct {
	term   domain.Terminal
	cfg    ResolverConfig
	events domain.EventPublisher
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current *domain.ResolvedSymbol

	group singleflight.Group
}

// NewSymbolResolver creates a SymbolResolver with an empty cell.
func NewSymbolResolver(term domain.Terminal, cfg ResolverConfig, events domain.EventPublisher, logger *slog.Logger) *SymbolResolver {
	if cfg.CurrencyPattern == nil {
		cfg.CurrencyPattern = regexp.MustCompile("USD")
	}
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = 20
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = 15 * time.Second
	}
	if events == nil {
		events = domain.DiscardEvents
	}
	return &SymbolResolver{
		term:   term,
		cfg:    cfg,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Current returns the cached symbol without touching the terminal.
func (r *SymbolResolver) Current() (domain.ResolvedSymbol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return domain.ResolvedSymbol{}, false
	}
	return *r.current, true
}

// Get returns the cached symbol, running detection when the cell is empty.
func (r *SymbolResolver) Get(ctx context.Context) (domain.ResolvedSymbol, error) {
	if cur, ok := r.Current(); ok {
		return cur, nil
	}
	return r.Resolve(ctx)
}

// Target picks the symbol an operation should act on: explicit when given,
// otherwise the resolved one. fromCache tells the caller whether a later
// "symbol unavailable" outcome should invalidate the cell.
func (r *SymbolResolver) Target(ctx context.Context, explicit string) (name string, fromCache bool, err error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, false, nil
	}
	sym, err := r.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSymbolFound) {
			return "", false, fmt.Errorf("%w: %w", domain.ErrNoSymbol, err)
		}
		return "", false, err
	}
	return sym.Name, true, nil
}

// Resolve runs detection against the live catalog. A manual symbol is
// returned as-is. Concurrent calls share one detection run, which is not tied
// to any single caller's context; each caller stops waiting when its own ctx
// ends. On failure the cell is left unchanged and the error is a
// *domain.ResolutionError carrying the names a human could pick from.
func (r *SymbolResolver) Resolve(ctx context.Context) (domain.ResolvedSymbol, error) {
	if cur, ok := r.Current(); ok && cur.Source == domain.SymbolSourceManual {
		return cur, nil
	}

	ch := r.group.DoChan("resolve", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.DetectTimeout)
		defer cancel()
		return r.discover(runCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.ResolvedSymbol{}, res.Err
		}
		return r.commit(res.Val.(string)), nil
	case <-ctx.Done():
		return domain.ResolvedSymbol{}, ctx.Err()
	}
}

// commit installs an automatic result unless a manual symbol holds the cell.
func (r *SymbolResolver) commit(name string) domain.ResolvedSymbol {
	r.mu.Lock()
	if r.current != nil && r.current.Source == domain.SymbolSourceManual {
		cur := *r.current
		r.mu.Unlock()
		return cur
	}
	changed := r.current == nil || r.current.Name != name
	sym := domain.ResolvedSymbol{Name: name, Source: domain.SymbolSourceAuto, ResolvedAt: r.now()}
	r.current = &sym
	r.mu.Unlock()

	if changed {
		r.logger.Info("resolver: gold symbol detected", slog.String("symbol", name))
		r.publish(domain.EventSymbolResolved, sym, "Gold symbol detected", "Using "+name)
	}
	return sym
}

// SetManual validates name against the terminal and installs it as the
// authoritative symbol. It returns the installed symbol and the current tick.
func (r *SymbolResolver) SetManual(ctx context.Context, name string) (domain.ResolvedSymbol, domain.Tick, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ResolvedSymbol{}, domain.Tick{}, domain.Invalid(domain.ErrSymbolRequired, "Symbol parameter required")
	}

	if _, err := r.term.SymbolInfo(ctx, name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ResolvedSymbol{}, domain.Tick{}, domain.Invalid(domain.ErrUnknownSymbol, "Symbol %s not found", name)
		}
		return domain.ResolvedSymbol{}, domain.Tick{}, fmt.Errorf("resolver: symbol info %s: %w", name, err)
	}
	if err := r.term.SelectSymbol(ctx, name); err != nil {
		if errors.Is(err, domain.ErrTerminalUnavailable) {
			return domain.ResolvedSymbol{}, domain.Tick{}, err
		}
		return domain.ResolvedSymbol{}, domain.Tick{}, domain.Invalid(domain.ErrSymbolUnavailable, "Symbol %s is not selectable", name)
	}
	tick, err := r.term.Tick(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNoTick) {
		return domain.ResolvedSymbol{}, domain.Tick{}, fmt.Errorf("resolver: tick %s: %w", name, err)
	}
	if err != nil || !tick.Live() {
		return domain.ResolvedSymbol{}, domain.Tick{}, domain.Invalid(domain.ErrNoQuote, "No price data for %s (market may be closed)", name)
	}

	sym := domain.ResolvedSymbol{Name: name, Source: domain.SymbolSourceManual, ResolvedAt: r.now()}
	r.mu.Lock()
	r.current = &sym
	r.mu.Unlock()

	r.logger.Info("resolver: manual gold symbol set", slog.String("symbol", name))
	r.publish(domain.EventSymbolResolved, sym, "Gold symbol set", "Manually set to "+name)
	return sym, tick, nil
}

// Invalidate clears the cell if it still holds name, so the next Get runs
// detection again. An empty name clears unconditionally. It reports whether
// anything was cleared.
func (r *SymbolResolver) Invalidate(name string) bool {
	r.mu.Lock()
	if r.current == nil || (name != "" && r.current.Name != name) {
		r.mu.Unlock()
		return false
	}
	old := *r.current
	r.current = nil
	r.mu.Unlock()

	r.logger.Warn("resolver: gold symbol invalidated",
		slog.String("symbol", old.Name),
		slog.String("source", string(old.Source)),
	)
	r.publish(domain.EventSymbolInvalidated, old, "Gold symbol lost", old.Name+" is no longer available")
	return true
}

// Catalog returns the diagnostic view of the terminal's instruments. It runs
// detection when no symbol is cached; a failed detection is not an error here.
func (r *SymbolResolver) Catalog(ctx context.Context) (domain.SymbolCatalog, error) {
	names, err := r.term.Symbols(ctx)
	if err != nil {
		return domain.SymbolCatalog{}, fmt.Errorf("resolver: list symbols: %w", err)
	}

	cat := domain.SymbolCatalog{
		GoldRelated:  r.keywordMatches(names, 0),
		Sample:       names[:min(sampleSize, len(names))],
		TotalSymbols: len(names),
	}
	sym, err := r.Get(ctx)
	switch {
	case err == nil:
		cat.Detected = sym.Name
	case errors.Is(err, domain.ErrNoSymbolFound):
	default:
		return domain.SymbolCatalog{}, err
	}
	return cat, nil
}

// discover runs both detection phases and returns the winning name.
func (r *SymbolResolver) discover(ctx context.Context) (string, error) {
	names, err := r.term.Symbols(ctx)
	if err != nil {
		return "", fmt.Errorf("resolver: list symbols: %w", err)
	}
	inCatalog := make(map[string]bool, len(names))
	for _, n := range names {
		inCatalog[n] = true
	}

	var probed []domain.SymbolCandidate
	tried := make(map[string]bool)

	// Phase 1: exact aliases, first with a live quote wins.
	for _, alias := range r.cfg.Aliases {
		if !inCatalog[alias] || tried[alias] {
			continue
		}
		tried[alias] = true
		cand, err := r.probe(ctx, alias, true)
		if err != nil {
			return "", err
		}
		probed = append(probed, cand)
		if cand.HasQuote {
			return alias, nil
		}
	}

	// Phase 2: keyword matches restricted to a currency marker or commodity
	// token, accepted only at a plausible gold price.
	for _, name := range names {
		if tried[name] || !r.isPhase2Candidate(name) {
			continue
		}
		tried[name] = true
		if _, err := r.term.SymbolInfo(ctx, name); err != nil {
			if errors.Is(err, domain.ErrTerminalUnavailable) {
				return "", err
			}
			continue
		}
		cand, err := r.probe(ctx, name, false)
		if err != nil {
			return "", err
		}
		probed = append(probed, cand)
		if cand.HasQuote && cand.MidPrice >= r.cfg.MinPrice && cand.MidPrice <= r.cfg.MaxPrice {
			return name, nil
		}
		if cand.HasQuote {
			r.logger.Debug("resolver: candidate rejected by price range",
				slog.String("symbol", name),
				slog.Float64("mid", cand.MidPrice),
			)
		}
	}

	possible := r.keywordMatches(names, r.cfg.CandidateCap)
	r.logger.Warn("resolver: no gold symbol found",
		slog.Int("catalog_size", len(names)),
		slog.Int("probed", len(probed)),
		slog.Any("possible", possible),
	)
	return "", &domain.ResolutionError{Possible: possible, Probed: probed}
}

// probe selects name and reads its tick. Only a lost terminal is an error;
// anything else yields a candidate without a quote.
func (r *SymbolResolver) probe(ctx context.Context, name string, exact bool) (domain.SymbolCandidate, error) {
	cand := domain.SymbolCandidate{Name: name, IsExactAlias: exact}
	if err := r.term.SelectSymbol(ctx, name); err != nil {
		if errors.Is(err, domain.ErrTerminalUnavailable) {
			return cand, err
		}
		return cand, nil
	}
	tick, err := r.term.Tick(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrTerminalUnavailable) {
			return cand, err
		}
		return cand, nil
	}
	if tick.Live() {
		cand.HasQuote = true
		cand.MidPrice = tick.Mid()
	}
	return cand, nil
}

func (r *SymbolResolver) matchesKeyword(upper string) bool {
	for _, kw := range r.cfg.Keywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

func (r *SymbolResolver) isPhase2Candidate(name string) bool {
	upper := strings.ToUpper(name)
	if !r.matchesKeyword(upper) {
		return false
	}
	if r.cfg.CurrencyPattern.MatchString(upper) {
		return true
	}
	for _, tok := range r.cfg.CommodityTokens {
		if strings.Contains(upper, strings.ToUpper(tok)) {
			return true
		}
	}
	return false
}

// keywordMatches returns catalog names containing any keyword, in catalog
// order, stopping at limit when limit > 0.
func (r *SymbolResolver) keywordMatches(names []string, limit int) []string {
	out := []string{}
	for _, n := range names {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r.matchesKeyword(strings.ToUpper(n)) {
			out = append(out, n)
		}
	}
	return out
}

func (r *SymbolResolver) publish(typ domain.EventType, sym domain.ResolvedSymbol, title, msg string) {
	r.events.Publish(domain.Event{
		Type:    typ,
		Time:    r.now(),
		Title:   title,
		Message: msg,
		Payload: map[string]any{
			"symbol": sym.Name,
			"source": string(sym.Source),
		},
	})
}
