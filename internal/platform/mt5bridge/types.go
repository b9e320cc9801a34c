package mt5bridge

import (
	"time"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// --------------------------------------------------------------------------
// Bridge API DTOs
// --------------------------------------------------------------------------

// APIHealth is returned by GET /health.
type APIHealth struct {
	Connected bool   `json:"connected"`
	Server    string `json:"server,omitempty"`
}

// APISymbols is returned by GET /symbols.
type APISymbols struct {
	Symbols []string `json:"symbols"`
}

// APISymbolInfo mirrors the terminal's symbol_info fields used by the gateway.
type APISymbolInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TradeMode   int     `json:"trade_mode"`
	VolumeMin   float64 `json:"volume_min"`
	VolumeMax   float64 `json:"volume_max"`
	VolumeStep  float64 `json:"volume_step"`
	Digits      int     `json:"digits"`
}

// ToDomain converts the wire form to domain.SymbolInfo.
func (s APISymbolInfo) ToDomain() domain.SymbolInfo {
	return domain.SymbolInfo{
		Name:        s.Name,
		Description: s.Description,
		TradeMode:   domain.TradeMode(s.TradeMode),
		VolumeMin:   s.VolumeMin,
		VolumeMax:   s.VolumeMax,
		VolumeStep:  s.VolumeStep,
		Digits:      s.Digits,
	}
}

// APITick is returned by GET /symbols/{name}/tick. Time is Unix seconds, as
// the terminal reports it.
type APITick struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
}

// ToDomain converts the wire form to domain.Tick.
func (t APITick) ToDomain(symbol string) domain.Tick {
	return domain.Tick{
		Symbol: symbol,
		Bid:    t.Bid,
		Ask:    t.Ask,
		Time:   time.Unix(t.Time, 0).UTC(),
	}
}

// APIOrderRequest is the body of POST /orders. Field names follow the
// terminal's trade request structure.
type APIOrderRequest struct {
	Action      string  `json:"action"`
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	Deviation   int     `json:"deviation"`
	Magic       int64   `json:"magic"`
	Comment     string  `json:"comment"`
	TypeTime    string  `json:"type_time"`
	TypeFilling string  `json:"type_filling"`
	ClientID    string  `json:"client_id,omitempty"`
}

func newAPIOrderRequest(o domain.Order) APIOrderRequest {
	typ := "ORDER_TYPE_BUY"
	if o.Action == domain.ActionSell {
		typ = "ORDER_TYPE_SELL"
	}
	return APIOrderRequest{
		Action:      "TRADE_ACTION_DEAL",
		Symbol:      o.Symbol,
		Volume:      o.Volume,
		Type:        typ,
		Price:       o.Price,
		Deviation:   o.Deviation,
		Magic:       o.Magic,
		Comment:     o.Comment,
		TypeTime:    "ORDER_TIME_" + string(o.TimePolicy),
		TypeFilling: "ORDER_FILLING_" + string(o.Filling),
		ClientID:    o.ClientOrderID,
	}
}

// APIOrderResult is the response from POST /orders.
type APIOrderResult struct {
	Retcode int     `json:"retcode"`
	Comment string  `json:"comment"`
	Order   uint64  `json:"order"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
}

// ToDomain converts the wire form to domain.OrderResult.
func (r APIOrderResult) ToDomain() domain.OrderResult {
	return domain.OrderResult{
		Retcode: r.Retcode,
		Comment: r.Comment,
		OrderID: r.Order,
		Volume:  r.Volume,
		Price:   r.Price,
	}
}

// APIAccount is returned by GET /account.
type APIAccount struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Leverage   int     `json:"leverage"`
	Currency   string  `json:"currency"`
}

// ToDomain converts the wire form to domain.AccountSnapshot.
func (a APIAccount) ToDomain() domain.AccountSnapshot {
	return domain.AccountSnapshot{
		Login:      a.Login,
		Balance:    a.Balance,
		Equity:     a.Equity,
		Margin:     a.Margin,
		FreeMargin: a.MarginFree,
		Leverage:   a.Leverage,
		Currency:   a.Currency,
	}
}

// APIPosition is one element of GET /positions. Type is 0 for buy, 1 for sell.
type APIPosition struct {
	Ticket       uint64  `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         int     `json:"type"`
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	Comment      string  `json:"comment"`
}

// ToDomain converts the wire form to domain.Position.
func (p APIPosition) ToDomain() domain.Position {
	typ := domain.PositionBuy
	if p.Type == 1 {
		typ = domain.PositionSell
	}
	return domain.Position{
		Ticket:       p.Ticket,
		Symbol:       p.Symbol,
		Type:         typ,
		Volume:       p.Volume,
		PriceOpen:    p.PriceOpen,
		PriceCurrent: p.PriceCurrent,
		Profit:       p.Profit,
		Comment:      p.Comment,
	}
}

// APIPositions is returned by GET /positions.
type APIPositions struct {
	Positions []APIPosition `json:"positions"`
}
