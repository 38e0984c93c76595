package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trading-go/internal/ledger"
	"paper-trading-go/internal/market"
	"paper-trading-go/internal/money"
	"paper-trading-go/internal/strategy"
)

// State is the lifecycle of one backtest run.
type State string

const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Policy is the execution policy applied to every trade in a run.
type Policy struct {
	// FeeRate is the fraction of the notional charged as a trading fee.
	FeeRate decimal.Decimal
	// MinNotional downgrades any trade whose quote notional is smaller.
	MinNotional money.Money
}

// EquityPoint is one sample of the portfolio value over time, valued in the
// run's quote currency at the bar's close.
type EquityPoint struct {
	Timestamp time.Time
	Value     money.Money
}

// TradeRecord describes one executed (non-downgraded) trade.
type TradeRecord struct {
	Timestamp  time.Time
	Side       ledger.TransactionType
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Fee        money.Money
	BaseAfter  money.Money
	QuoteAfter money.Money
}

// Downgrade records a trade intent that was converted to a hold instead of
// failing the run: too small, or not enough funds or position.
type Downgrade struct {
	Timestamp time.Time
	Action    strategy.Action
	Reason    string
}

// Result is the full outcome of one run.
type Result struct {
	State          State
	Strategy       string
	Trades         []TradeRecord
	Equity         []EquityPoint
	Downgrades     []Downgrade
	InitialCapital money.Money
	FinalEquity    money.Money

	// Err, FailedBar and FailedAt are set when State is Failed, naming the
	// bar that caused the failure.
	Err       error
	FailedBar int
	FailedAt  time.Time
}

// Engine replays a bar series through a strategy, mutating a ledger account
// through the same service a live execution path would use. Engines are
// cheap and hold no per-run state, so independent runs may execute in
// parallel on separate accounts.
type Engine struct {
	logger *zap.Logger
	base   money.Currency
	quote  money.Currency
	policy Policy
}

// NewEngine creates a backtest engine trading base against quote under the
// given execution policy.
func NewEngine(logger *zap.Logger, base, quote money.Currency, policy Policy) *Engine {
	return &Engine{
		logger: logger,
		base:   base,
		quote:  quote,
		policy: policy,
	}
}

// Run replays bars through strat against the given freshly funded account.
// The account must not be shared with any concurrent caller for the
// duration of the run. Cancellation is checked between bars: a cancelled
// run keeps every fully processed bar and drops nothing mid-bar.
//
// Run is deterministic: identical bars, strategy and initial account state
// produce identical trade records and equity curves.
func (e *Engine) Run(
	ctx context.Context,
	bars []market.Bar,
	strat strategy.Strategy,
	account *ledger.Account,
) *Result {
	result := &Result{
		State:          StateRunning,
		Strategy:       strat.Name(),
		InitialCapital: account.Available(e.quote),
	}

	// Transactions carry the simulated bar time, never the wall clock.
	var barTime time.Time
	service := ledger.NewService(e.logger, ledger.WithClock(func() time.Time {
		return barTime
	}))

	l := e.logger.With(zap.String("strategy", strat.Name()))
	l.Info("Starting backtest run",
		zap.Int("bars", len(bars)),
		zap.String("initial_capital", result.InitialCapital.String()),
	)

	if len(bars) > 0 {
		// Seed the equity curve with the starting portfolio value so the
		// curve always covers the moment before the first decision.
		barTime = bars[0].Timestamp
		value, err := e.markToMarket(service, account, bars[0])
		if err != nil {
			return e.fail(result, 0, bars[0], err)
		}
		result.Equity = append(result.Equity, EquityPoint{Timestamp: bars[0].Timestamp, Value: value})
	}

	for i, bar := range bars {
		select {
		case <-ctx.Done():
			l.Warn("Backtest run cancelled", zap.Int("bar", i))
			result.State = StateCancelled
			result.Err = ctx.Err()
			e.finish(result)
			return result
		default:
		}

		if i > 0 && bar.Timestamp.Before(bars[i-1].Timestamp) {
			err := fmt.Errorf("%w: bar %d at %s precedes bar %d",
				market.ErrNonMonotonicTimeline,
				i, bar.Timestamp.Format(time.RFC3339), i-1)
			return e.fail(result, i, bar, err)
		}

		barTime = bar.Timestamp

		position := strategy.Position{
			Base:  account.Available(e.base),
			Quote: account.Available(e.quote),
		}

		// The strategy only ever sees history up to the current bar.
		intent, err := strat.Decide(bars[:i+1], position)
		if err != nil {
			return e.fail(result, i, bar, fmt.Errorf("strategy %s: %w", strat.Name(), err))
		}

		switch intent.Action {
		case strategy.Buy:
			e.executeBuy(service, account, bar, intent, result)
		case strategy.Sell:
			e.executeSell(service, account, bar, intent, result)
		}

		value, err := e.markToMarket(service, account, bar)
		if err != nil {
			return e.fail(result, i, bar, err)
		}
		result.Equity = append(result.Equity, EquityPoint{Timestamp: bar.Timestamp, Value: value})
	}

	result.State = StateCompleted
	e.finish(result)
	l.Info("Backtest run completed",
		zap.Int("trades", len(result.Trades)),
		zap.Int("downgrades", len(result.Downgrades)),
		zap.String("final_equity", result.FinalEquity.String()),
	)
	return result
}

func (e *Engine) executeBuy(
	service *ledger.Service,
	account *ledger.Account,
	bar market.Bar,
	intent strategy.Intent,
	result *Result,
) {
	quoteAvailable := account.Available(e.quote)

	notionalAmount := quoteAvailable.Amount().Mul(intent.Fraction).
		Truncate(e.quote.Precision())

	// A fraction of at most one means "spend this share of what I have";
	// leave headroom for the fee so such a buy is always executable. A
	// fraction above one is a genuine over-ask and may still downgrade.
	if intent.Fraction.LessThanOrEqual(decimal.NewFromInt(1)) {
		maxNotional := quoteAvailable.Amount().
			Div(decimal.NewFromInt(1).Add(e.policy.FeeRate)).
			Truncate(e.quote.Precision())
		if notionalAmount.GreaterThan(maxNotional) {
			notionalAmount = maxNotional
		}
	}

	notional, err := money.New(notionalAmount, e.quote)
	if err != nil || notional.IsZero() || notional.IsNegative() {
		e.downgrade(result, bar, strategy.Buy, "sizing hint produced no notional")
		return
	}

	if below, _ := notional.LessThan(e.policy.MinNotional); below {
		e.downgrade(result, bar, strategy.Buy,
			fmt.Sprintf("notional %s below minimum %s", notional, e.policy.MinNotional))
		return
	}

	// Fees come out of the same quote balance, so require funds for both
	// legs up front. That keeps a bar's trade all-or-nothing.
	fee := notional.MulScalar(e.policy.FeeRate)
	required, _ := notional.Add(fee)
	if !service.CanTrade(account, required) {
		e.downgrade(result, bar, strategy.Buy,
			fmt.Sprintf("insufficient funds: need %s, have %s", required, quoteAvailable))
		return
	}

	quantity := notionalAmount.Div(bar.Close).Truncate(e.base.Precision())
	receive, err := money.New(quantity, e.base)
	if err != nil || receive.IsZero() {
		e.downgrade(result, bar, strategy.Buy, "quantity rounds to zero")
		return
	}

	ref := uuid.New()
	description := fmt.Sprintf("buy %s %s at %s", quantity, e.base, bar.Close)
	if err := service.RecordTrade(account, ledger.TransactionBuy, notional, receive, description, ref); err != nil {
		e.downgrade(result, bar, strategy.Buy, err.Error())
		return
	}
	paidFee, err := service.DeductTradingFee(account, notional, e.policy.FeeRate, ref)
	if err != nil {
		// Unreachable: the pre-check above reserved room for the fee.
		e.downgrade(result, bar, strategy.Buy, err.Error())
		return
	}

	result.Trades = append(result.Trades, TradeRecord{
		Timestamp:  bar.Timestamp,
		Side:       ledger.TransactionBuy,
		Price:      bar.Close,
		Quantity:   quantity,
		Fee:        paidFee,
		BaseAfter:  account.Available(e.base),
		QuoteAfter: account.Available(e.quote),
	})
}

func (e *Engine) executeSell(
	service *ledger.Service,
	account *ledger.Account,
	bar market.Bar,
	intent strategy.Intent,
	result *Result,
) {
	baseAvailable := account.Available(e.base)
	if baseAvailable.IsZero() {
		e.downgrade(result, bar, strategy.Sell, "no position to sell")
		return
	}

	quantity := baseAvailable.Amount().Mul(intent.Fraction).
		Truncate(e.base.Precision())
	spend, err := money.New(quantity, e.base)
	if err != nil || spend.IsZero() || spend.IsNegative() {
		e.downgrade(result, bar, strategy.Sell, "sizing hint produced no quantity")
		return
	}

	notionalAmount := quantity.Mul(bar.Close).Truncate(e.quote.Precision())
	notional, err := money.New(notionalAmount, e.quote)
	if err != nil || notional.IsZero() {
		e.downgrade(result, bar, strategy.Sell, "notional rounds to zero")
		return
	}
	if below, _ := notional.LessThan(e.policy.MinNotional); below {
		e.downgrade(result, bar, strategy.Sell,
			fmt.Sprintf("notional %s below minimum %s", notional, e.policy.MinNotional))
		return
	}

	ref := uuid.New()
	description := fmt.Sprintf("sell %s %s at %s", quantity, e.base, bar.Close)
	if err := service.RecordTrade(account, ledger.TransactionSell, spend, notional, description, ref); err != nil {
		e.downgrade(result, bar, strategy.Sell, err.Error())
		return
	}
	// The sale just credited the full notional, and the fee is a fraction
	// of it, so the deduction cannot come up short.
	paidFee, err := service.DeductTradingFee(account, notional, e.policy.FeeRate, ref)
	if err != nil {
		e.downgrade(result, bar, strategy.Sell, err.Error())
		return
	}

	result.Trades = append(result.Trades, TradeRecord{
		Timestamp:  bar.Timestamp,
		Side:       ledger.TransactionSell,
		Price:      bar.Close,
		Quantity:   quantity,
		Fee:        paidFee,
		BaseAfter:  account.Available(e.base),
		QuoteAfter: account.Available(e.quote),
	})
}

func (e *Engine) markToMarket(
	service *ledger.Service,
	account *ledger.Account,
	bar market.Bar,
) (money.Money, error) {
	prices := map[money.Currency]decimal.Decimal{e.base: bar.Close}
	value, err := service.PortfolioValue(account, prices, e.quote)
	if err != nil {
		return money.Zero(e.quote), fmt.Errorf("mark to market: %w", err)
	}
	return value, nil
}

func (e *Engine) downgrade(result *Result, bar market.Bar, action strategy.Action, reason string) {
	e.logger.Info("Trade downgraded to hold",
		zap.Time("bar", bar.Timestamp),
		zap.String("action", action.String()),
		zap.String("reason", reason),
	)
	result.Downgrades = append(result.Downgrades, Downgrade{
		Timestamp: bar.Timestamp,
		Action:    action,
		Reason:    reason,
	})
}

func (e *Engine) fail(result *Result, barIndex int, bar market.Bar, err error) *Result {
	e.logger.Error("Backtest run failed",
		zap.Int("bar", barIndex),
		zap.Time("timestamp", bar.Timestamp),
		zap.Error(err),
	)
	result.State = StateFailed
	result.Err = err
	result.FailedBar = barIndex
	result.FailedAt = bar.Timestamp
	e.finish(result)
	return result
}

func (e *Engine) finish(result *Result) {
	if len(result.Equity) > 0 {
		result.FinalEquity = result.Equity[len(result.Equity)-1].Value
	} else {
		result.FinalEquity = result.InitialCapital
	}
}

// ErrNoBars marks a baseline comparison requested over an empty series.
var ErrNoBars = errors.New("no bars to replay")
