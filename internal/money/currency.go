package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency identifies one of the supported asset symbols.
type Currency string

const (
	USDT Currency = "USDT"
	USD  Currency = "USD"
	BTC  Currency = "BTC"
	ETH  Currency = "ETH"
	BNB  Currency = "BNB"
	SOL  Currency = "SOL"
)

// precisions maps each supported currency to its canonical number of
// decimal places. A currency missing from this table is not supported.
var precisions = map[Currency]int32{
	USDT: 8,
	USD:  2,
	BTC:  8,
	ETH:  8,
	BNB:  8,
	SOL:  8,
}

// ParseCurrency converts a symbol string into a supported Currency.
func ParseCurrency(symbol string) (Currency, error) {
	c := Currency(symbol)
	if _, ok := precisions[c]; !ok {
		return "", fmt.Errorf("unsupported currency %q", symbol)
	}
	return c, nil
}

// Precision returns the canonical number of decimal places for the currency.
func (c Currency) Precision() int32 {
	return precisions[c]
}

// IsValid reports whether the currency is one of the supported symbols.
func (c Currency) IsValid() bool {
	_, ok := precisions[c]
	return ok
}

// MinUnit returns the smallest representable non-zero amount of the currency,
// e.g. 0.01 for USD.
func (c Currency) MinUnit() decimal.Decimal {
	return decimal.New(1, -precisions[c])
}

func (c Currency) String() string {
	return string(c)
}
