package strategy

import (
	sdbig "github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
	"github.com/shopspring/decimal"

	"paper-trading-go/internal/market"
)

// EMACross trades on price crossing its exponential moving average: it buys
// the full quote balance when the close crosses above the EMA and liquidates
// when it crosses back below.
type EMACross struct {
	window int
}

// NewEMACross creates an EMA cross strategy with the given EMA window.
func NewEMACross(window int) *EMACross {
	if window < 2 {
		window = 2
	}
	return &EMACross{window: window}
}

func (s *EMACross) Name() string {
	return "ema-cross"
}

func (s *EMACross) Decide(history []market.Bar, position Position) (Intent, error) {
	// Need one bar beyond the window to observe a cross.
	if len(history) < s.window+1 {
		return HoldIntent(), nil
	}

	series := techan.NewTimeSeries()
	for _, bar := range history {
		series.AddCandle(toTechanCandle(bar))
	}

	price := techan.NewClosePriceIndicator(series)
	ema := techan.NewEMAIndicator(price, s.window)

	last := series.LastIndex()
	current := price.Calculate(last).Cmp(ema.Calculate(last))
	previous := price.Calculate(last - 1).Cmp(ema.Calculate(last - 1))

	holding := !position.Base.IsZero()
	if !holding && current > 0 && previous <= 0 {
		return BuyIntent(decimal.NewFromInt(1)), nil
	}
	if holding && current < 0 && previous >= 0 {
		return SellIntent(decimal.NewFromInt(1)), nil
	}
	return HoldIntent(), nil
}

func toTechanCandle(bar market.Bar) *techan.Candle {
	period := techan.TimePeriod{Start: bar.Timestamp, End: bar.Timestamp}
	candle := techan.NewCandle(period)
	candle.OpenPrice = sdbig.NewFromString(bar.Open.String())
	candle.ClosePrice = sdbig.NewFromString(bar.Close.String())
	candle.MaxPrice = sdbig.NewFromString(bar.High.String())
	candle.MinPrice = sdbig.NewFromString(bar.Low.String())
	candle.Volume = sdbig.NewFromString(bar.Volume.String())
	return candle
}
