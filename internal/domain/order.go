package domain

import "strings"

// Action is the trade direction requested by a client.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// ParseAction normalizes client input into an Action.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	default:
		return "", Invalid(ErrInvalidAction, `Invalid action. Use "buy" or "sell"`)
	}
}

// FillPolicy is the order filling mode.
type FillPolicy string

const (
	// FillIOC fills what is available within the deviation and cancels the rest.
	FillIOC FillPolicy = "IOC"
	FillFOK FillPolicy = "FOK"
)

// TimePolicy is the order lifetime.
type TimePolicy string

const (
	TimeGTC TimePolicy = "GTC"
)

// RetcodeDone is the single terminal result code that means the order was executed.
const RetcodeDone = 10009

// Order is a market order request sent to the terminal.
type Order struct {
	ClientOrderID string
	Symbol        string
	Action        Action
	Volume        float64
	Price         float64
	Deviation     int
	Magic         int64
	Comment       string
	Filling       FillPolicy
	TimePolicy    TimePolicy
}

// OrderResult is the terminal's answer to an order submission.
type OrderResult struct {
	Retcode int
	Comment string
	OrderID uint64
	Volume  float64
	Price   float64
}

// Done reports whether the terminal executed the order.
func (r OrderResult) Done() bool {
	return r.Retcode == RetcodeDone
}

// Execution is the outcome returned to the client for a filled order.
type Execution struct {
	OrderID uint64
	Symbol  string
	Action  Action
	Volume  float64
	Price   float64
}
