package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/domain"
	"github.com/google/uuid"
)

// TradeConfig holds the fixed parameters stamped on every order.
type TradeConfig struct {
	Deviation int
	Magic     int64
	Comment   string
}

// TradeRequest is a client's market order.
type TradeRequest struct {
	// Symbol is optional; the resolved gold symbol is used when empty.
	Symbol string
	Action string
	Volume float64
}

// TradeService validates and executes market orders against the terminal.
// It reports a rejected order once and never retries.
type TradeService struct {
	term     domain.Terminal
	resolver *SymbolResolver
	cfg      TradeConfig
	events   domain.EventPublisher
	logger   *slog.Logger
	newID    func() string
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	term domain.Terminal,
	resolver *SymbolResolver,
	cfg TradeConfig,
	events domain.EventPublisher,
	logger *slog.Logger,
) *TradeService {
	if events == nil {
		events = domain.DiscardEvents
	}
	return &TradeService{
		term:     term,
		resolver: resolver,
		cfg:      cfg,
		events:   events,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Execute validates req and submits it at the current quote: ask for buy,
// bid for sell. The symbol is settled before the action and volume are
// checked, so a missing gold symbol is reported first. A non-DONE retcode is returned as *domain.ExecutionError.
func (s *TradeService) Execute(ctx context.Context, req TradeRequest) (domain.Execution, error) {
	symbol, fromCache, err := s.resolver.Target(ctx, req.Symbol)
	if err != nil {
		return domain.Execution{}, err
	}

	action, err := domain.ParseAction(req.Action)
	if err != nil {
		return domain.Execution{}, err
	}
	if math.IsNaN(req.Volume) || math.IsInf(req.Volume, 0) || req.Volume <= 0 {
		return domain.Execution{}, domain.Invalid(domain.ErrInvalidVolume, "Lot size must be a positive number")
	}

	info, tick, err := checkQuotable(ctx, s.term, symbol)
	if err != nil {
		if fromCache && errors.Is(err, domain.ErrSymbolUnavailable) {
			s.resolver.Invalidate(symbol)
		}
		return domain.Execution{}, err
	}
	if err := checkVolume(info, req.Volume); err != nil {
		return domain.Execution{}, err
	}

	price := tick.Ask
	if action == domain.ActionSell {
		price = tick.Bid
	}

	order := domain.Order{
		ClientOrderID: s.newID(),
		Symbol:        symbol,
		Action:        action,
		Volume:        req.Volume,
		Price:         price,
		Deviation:     s.cfg.Deviation,
		Magic:         s.cfg.Magic,
		Comment:       s.cfg.Comment,
		Filling:       domain.FillIOC,
		TimePolicy:    domain.TimeGTC,
	}

	res, err := s.term.SendOrder(ctx, order)
	if err != nil {
		return domain.Execution{}, fmt.Errorf("trade_service: send order %s: %w", order.ClientOrderID, err)
	}

	if !res.Done() {
		s.logger.WarnContext(ctx, "trade_service: order rejected",
			slog.String("client_order_id", order.ClientOrderID),
			slog.String("symbol", symbol),
			slog.String("action", string(action)),
			slog.Int("retcode", res.Retcode),
			slog.String("comment", res.Comment),
		)
		s.events.Publish(domain.Event{
			Type:    domain.EventOrderRejected,
			Time:    time.Now(),
			Title:   "Trade failed",
			Message: fmt.Sprintf("%s %g %s rejected: %s (retcode %d)", action, req.Volume, symbol, res.Comment, res.Retcode),
			Payload: map[string]any{
				"symbol":  symbol,
				"action":  string(action),
				"volume":  req.Volume,
				"retcode": res.Retcode,
				"comment": res.Comment,
			},
		})
		return domain.Execution{}, &domain.ExecutionError{Retcode: res.Retcode, Comment: res.Comment, Symbol: symbol}
	}

	exec := domain.Execution{
		OrderID: res.OrderID,
		Symbol:  symbol,
		Action:  action,
		Volume:  res.Volume,
		Price:   res.Price,
	}
	if exec.Volume == 0 {
		exec.Volume = req.Volume
	}
	if exec.Price == 0 {
		exec.Price = price
	}

	s.logger.InfoContext(ctx, "trade_service: order filled",
		slog.String("client_order_id", order.ClientOrderID),
		slog.Uint64("order_id", exec.OrderID),
		slog.String("symbol", symbol),
		slog.String("action", string(action)),
		slog.Float64("volume", exec.Volume),
		slog.Float64("price", exec.Price),
	)
	s.events.Publish(domain.Event{
		Type:    domain.EventOrderFilled,
		Time:    time.Now(),
		Title:   "Trade executed",
		Message: fmt.Sprintf("%s %g %s @ %s (order %d)", action, exec.Volume, symbol, strconv.FormatFloat(exec.Price, 'f', -1, 64), exec.OrderID),
		Payload: map[string]any{
			"order_id": exec.OrderID,
			"symbol":   symbol,
			"action":   string(action),
			"volume":   exec.Volume,
			"price":    exec.Price,
		},
	})
	return exec, nil
}

// checkVolume enforces the instrument's inclusive volume bounds. A zero
// maximum means the terminal reported none.
func checkVolume(info domain.SymbolInfo, volume float64) error {
	if volume < info.VolumeMin {
		return domain.Invalid(domain.ErrVolumeOutOfRange, "Lot size too small. Minimum: %g", info.VolumeMin)
	}
	if info.VolumeMax > 0 && volume > info.VolumeMax {
		return domain.Invalid(domain.ErrVolumeOutOfRange, "Lot size too large. Maximum: %g", info.VolumeMax)
	}
	return nil
}
