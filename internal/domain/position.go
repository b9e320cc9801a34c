package domain

// PositionType is the direction of an open position.
type PositionType string

const (
	PositionBuy  PositionType = "buy"
	PositionSell PositionType = "sell"
)

// Position is an open position as reported by the terminal.
type Position struct {
	Ticket       uint64
	Symbol       string
	Type         PositionType
	Volume       float64
	PriceOpen    float64
	PriceCurrent float64
	Profit       float64
	Comment      string
}

// AccountSnapshot is a read-only view of the trading account.
type AccountSnapshot struct {
	Login      int64
	Balance    float64
	Equity     float64
	Margin     float64
	FreeMargin float64
	Leverage   int
	Currency   string
}

// NetVolume returns total buy volume minus total sell volume.
func NetVolume(positions []Position) float64 {
	var net float64
	for _, p := range positions {
		switch p.Type {
		case PositionBuy:
			net += p.Volume
		case PositionSell:
			net -= p.Volume
		}
	}
	return net
}
