package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNonMonotonicTimeline marks a bar series whose timestamps go backwards.
var ErrNonMonotonicTimeline = errors.New("non-monotonic timeline")

// Bar is one OHLCV price bar. Prices are exact decimals so downstream ledger
// math never loses precision.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// ValidateSeries checks that bar timestamps are non-decreasing. On violation
// it returns ErrNonMonotonicTimeline naming the offending bar index and
// timestamp.
func ValidateSeries(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d at %s precedes bar %d at %s",
				ErrNonMonotonicTimeline,
				i, bars[i].Timestamp.Format(time.RFC3339),
				i-1, bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
