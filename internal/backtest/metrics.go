package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"paper-trading-go/internal/ledger"
	"paper-trading-go/internal/market"
	"paper-trading-go/internal/money"
	"paper-trading-go/internal/strategy"
)

// Metrics summarizes the performance of one backtest run. Degenerate inputs
// never produce errors here: metrics that cannot be computed are nil, and a
// profit factor with no losing trades is positive infinity.
type Metrics struct {
	TotalReturnPct float64
	// Sharpe is the annualized Sharpe ratio, nil when fewer than two equity
	// points exist or returns have no variance.
	Sharpe *float64
	// MaxDrawdownPct is the deepest peak-to-trough equity decline, as a
	// negative percentage; zero for a non-decreasing curve.
	MaxDrawdownPct float64

	RoundTrips int
	Wins       int
	Losses     int
	// WinRate is wins / round trips, nil when no round trip completed.
	WinRate *float64
	// ProfitFactor is gross profit over gross loss, +Inf when no round trip
	// lost money.
	ProfitFactor float64

	DowngradeCount int
}

// CalculateMetrics derives performance statistics from a finished run. It is
// a pure function of the result: inputs are never mutated.
func CalculateMetrics(result *Result, barsPerYear float64) Metrics {
	m := Metrics{DowngradeCount: len(result.Downgrades)}

	initial := result.InitialCapital.Amount().InexactFloat64()
	final := result.FinalEquity.Amount().InexactFloat64()
	if initial != 0 {
		m.TotalReturnPct = (final - initial) / initial * 100
	}

	equity := make([]float64, len(result.Equity))
	for i, point := range result.Equity {
		equity[i] = point.Value.Amount().InexactFloat64()
	}

	m.Sharpe = sharpeRatio(equity, barsPerYear)
	m.MaxDrawdownPct = maxDrawdownPct(equity)

	wins, losses, grossProfit, grossLoss := matchRoundTrips(result.Trades)
	m.Wins = wins
	m.Losses = losses
	m.RoundTrips = wins + losses
	if m.RoundTrips > 0 {
		rate := float64(wins) / float64(m.RoundTrips)
		m.WinRate = &rate
	}
	switch {
	case m.RoundTrips == 0:
		m.ProfitFactor = 0
	case grossLoss == 0:
		m.ProfitFactor = math.Inf(1)
	default:
		m.ProfitFactor = grossProfit / grossLoss
	}

	return m
}

// sharpeRatio is the mean per-bar return over its sample standard deviation,
// annualized by the bar frequency. It returns nil when it cannot be computed.
func sharpeRatio(equity []float64, barsPerYear float64) *float64 {
	if len(equity) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			return nil
		}
		returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	if len(returns) < 2 {
		return nil
	}
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return nil
	}

	sharpe := mean / std * math.Sqrt(barsPerYear)
	return &sharpe
}

// maxDrawdownPct scans the equity curve for the deepest decline below the
// running peak. The result is zero or negative, in percent.
func maxDrawdownPct(equity []float64) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, value := range equity {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			dd := (value - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

type lot struct {
	quantity decimal.Decimal
	price    decimal.Decimal
}

// matchRoundTrips pairs each sell with its open lots' cost basis, oldest
// first. Each sell closes one round trip; its P&L is the proceeds minus the
// FIFO cost of the quantity sold.
func matchRoundTrips(trades []TradeRecord) (wins, losses int, grossProfit, grossLoss float64) {
	var lots []lot

	for _, trade := range trades {
		switch trade.Side {
		case ledger.TransactionBuy:
			lots = append(lots, lot{quantity: trade.Quantity, price: trade.Price})

		case ledger.TransactionSell:
			remaining := trade.Quantity
			pnl := decimal.Zero
			matched := false

			for len(lots) > 0 && remaining.IsPositive() {
				head := &lots[0]
				fill := decimal.Min(head.quantity, remaining)
				pnl = pnl.Add(fill.Mul(trade.Price.Sub(head.price)))
				head.quantity = head.quantity.Sub(fill)
				remaining = remaining.Sub(fill)
				matched = true
				if head.quantity.IsZero() {
					lots = lots[1:]
				}
			}
			if !matched {
				continue // sell with no open position: not a round trip
			}

			value := pnl.InexactFloat64()
			if value > 0 {
				wins++
				grossProfit += value
			} else {
				losses++
				grossLoss += -value
			}
		}
	}
	return wins, losses, grossProfit, grossLoss
}

// BaselineComparison is the outcome of replaying the same bars and capital
// through a baseline strategy.
type BaselineComparison struct {
	Name           string
	FinalEquity    money.Money
	TotalReturnPct float64
	MaxDrawdownPct float64
}

// RunBaselines replays the buy-and-hold and fixed-interval-accumulation
// baselines over the same bars and initial capital, through the same engine
// and ledger primitives as the strategy run, so all correctness guarantees
// are shared. accumulateEvery controls the purchase cadence of the
// accumulation baseline.
func (e *Engine) RunBaselines(
	ctx context.Context,
	bars []market.Bar,
	initialCapital money.Money,
	accumulateEvery int,
	barsPerYear float64,
) ([]BaselineComparison, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	if accumulateEvery < 1 {
		accumulateEvery = 1
	}
	planned := (len(bars) + accumulateEvery - 1) / accumulateEvery

	baselines := []strategy.Strategy{
		strategy.NewBuyAndHold(),
		strategy.NewIntervalAccumulation(accumulateEvery, planned),
	}

	service := ledger.NewService(e.logger)
	comparisons := make([]BaselineComparison, 0, len(baselines))
	for _, baseline := range baselines {
		account := ledger.NewAccount(fmt.Sprintf("baseline %s", baseline.Name()), decimal.NewFromInt(1))
		if err := service.Deposit(account, initialCapital, "baseline funding"); err != nil {
			return nil, fmt.Errorf("fund baseline %s: %w", baseline.Name(), err)
		}

		result := e.Run(ctx, bars, baseline, account)
		if result.State != StateCompleted {
			return nil, fmt.Errorf("baseline %s ended %s: %w", baseline.Name(), result.State, result.Err)
		}

		metrics := CalculateMetrics(result, barsPerYear)
		comparisons = append(comparisons, BaselineComparison{
			Name:           baseline.Name(),
			FinalEquity:    result.FinalEquity,
			TotalReturnPct: metrics.TotalReturnPct,
			MaxDrawdownPct: metrics.MaxDrawdownPct,
		})
	}
	return comparisons, nil
}
