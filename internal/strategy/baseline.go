package strategy

import (
	"github.com/shopspring/decimal"

	"paper-trading-go/internal/market"
)

// BuyAndHold buys with the full quote balance on the first bar and never
// trades again. It is the standard baseline a strategy run is compared
// against.
type BuyAndHold struct{}

// NewBuyAndHold creates the buy-and-hold baseline.
func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{}
}

func (s *BuyAndHold) Name() string {
	return "buy-and-hold"
}

func (s *BuyAndHold) Decide(history []market.Bar, position Position) (Intent, error) {
	if position.Base.IsZero() && !position.Quote.IsZero() {
		return BuyIntent(decimal.NewFromInt(1)), nil
	}
	return HoldIntent(), nil
}

// IntervalAccumulation buys a fixed slice of the initial quote balance every
// n bars, the fixed-interval-accumulation (cost averaging) baseline.
type IntervalAccumulation struct {
	every     int
	barsSeen  int
	purchases int
	planned   int
}

// NewIntervalAccumulation creates a baseline that buys every `every` bars,
// splitting the quote balance over `planned` equal purchases.
func NewIntervalAccumulation(every, planned int) *IntervalAccumulation {
	if every < 1 {
		every = 1
	}
	if planned < 1 {
		planned = 1
	}
	return &IntervalAccumulation{every: every, planned: planned}
}

func (s *IntervalAccumulation) Name() string {
	return "interval-accumulation"
}

func (s *IntervalAccumulation) Decide(history []market.Bar, position Position) (Intent, error) {
	s.barsSeen++
	if s.purchases >= s.planned || (s.barsSeen-1)%s.every != 0 {
		return HoldIntent(), nil
	}

	// Spend an equal share of what remains so the planned purchases use the
	// whole balance: 1/n, then 1/(n-1), and the final one takes the rest.
	remaining := s.planned - s.purchases
	s.purchases++
	fraction := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(remaining)))
	return BuyIntent(fraction), nil
}
