package strategy

import (
	"github.com/shopspring/decimal"

	"paper-trading-go/internal/market"
	"paper-trading-go/internal/money"
)

// Action is the kind of trade a strategy wants on the current bar.
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Intent is a strategy's answer for one bar: an action plus a sizing hint.
// Fraction is the share of available funds to commit: for a buy, of the
// available quote balance; for a sell, of the held base quantity.
type Intent struct {
	Action   Action
	Fraction decimal.Decimal
}

// HoldIntent is the no-trade answer.
func HoldIntent() Intent {
	return Intent{Action: Hold}
}

// BuyIntent commits the given fraction of available quote funds.
func BuyIntent(fraction decimal.Decimal) Intent {
	return Intent{Action: Buy, Fraction: fraction}
}

// SellIntent liquidates the given fraction of the held position.
func SellIntent(fraction decimal.Decimal) Intent {
	return Intent{Action: Sell, Fraction: fraction}
}

// Position is the account state a strategy may react to: what it holds and
// what it can still spend.
type Position struct {
	Base  money.Money
	Quote money.Money
}

// Strategy turns a window of price history and the current position into a
// trade intent. Decide sees bars up to and including the current one, never
// future bars. Implementations must be deterministic: same history and
// position, same intent.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Decide returns the intent for the latest bar in history.
	Decide(history []market.Bar, position Position) (Intent, error)
}
