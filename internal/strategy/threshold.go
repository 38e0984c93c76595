package strategy

import (
	"github.com/shopspring/decimal"

	"paper-trading-go/internal/market"
)

// Threshold is a simple rule-based strategy: buy everything when the close
// drops to BuyBelow or lower, sell everything when it reaches SellAbove or
// higher. Useful as a deterministic reference strategy.
type Threshold struct {
	BuyBelow  decimal.Decimal
	SellAbove decimal.Decimal
}

// NewThreshold creates a threshold strategy with the given price levels.
func NewThreshold(buyBelow, sellAbove decimal.Decimal) *Threshold {
	return &Threshold{BuyBelow: buyBelow, SellAbove: sellAbove}
}

func (s *Threshold) Name() string {
	return "threshold"
}

func (s *Threshold) Decide(history []market.Bar, position Position) (Intent, error) {
	if len(history) == 0 {
		return HoldIntent(), nil
	}
	closePrice := history[len(history)-1].Close

	holding := !position.Base.IsZero()
	if !holding && closePrice.LessThanOrEqual(s.BuyBelow) {
		return BuyIntent(decimal.NewFromInt(1)), nil
	}
	if holding && closePrice.GreaterThanOrEqual(s.SellAbove) {
		return SellIntent(decimal.NewFromInt(1)), nil
	}
	return HoldIntent(), nil
}
