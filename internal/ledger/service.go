package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trading-go/internal/money"
)

var (
	// ErrMissingPrice marks a portfolio valuation over a held currency that
	// is absent from the price table.
	ErrMissingPrice = errors.New("missing price")

	// ErrAccountInactive marks a trade attempted against a closed account.
	ErrAccountInactive = errors.New("account is not active")
)

// Service exposes the domain operations over accounts. It is stateless:
// every method takes the account it operates on and performs no hidden I/O.
// Each mutating call runs under the account's lock for its whole duration,
// released on every exit path, so readers never observe a balance with the
// check applied but the write missing.
type Service struct {
	logger *zap.Logger
	now    func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock replaces the transaction timestamp source. Deterministic callers
// such as the backtest engine pin it to the simulated timeline.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a ledger service.
func NewService(logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deposit credits the account's available balance and appends a Deposit
// transaction. It always succeeds for valid, non-negative money.
func (s *Service) Deposit(account *Account, m money.Money, description string) error {
	account.mu.Lock()
	defer account.mu.Unlock()

	if err := account.balance.AddAvailable(m); err != nil {
		return fmt.Errorf("deposit to account %s: %w", account.id, err)
	}
	account.append(Transaction{
		Type:        TransactionDeposit,
		Amount:      m,
		Description: description,
		CreatedAt:   s.now(),
	})
	s.logger.Debug("Deposit recorded",
		zap.String("account", account.id.String()),
		zap.String("amount", m.String()),
	)
	return nil
}

// Withdraw debits the account's available balance and appends a Withdrawal
// transaction. It fails with ErrInsufficientAvailableBalance when available
// funds are short, leaving the account untouched.
func (s *Service) Withdraw(account *Account, m money.Money, description string) error {
	account.mu.Lock()
	defer account.mu.Unlock()

	if err := account.balance.subAvailable(m); err != nil {
		return fmt.Errorf("withdraw from account %s: %w", account.id, err)
	}
	account.append(Transaction{
		Type:        TransactionWithdrawal,
		Amount:      m,
		Description: description,
		CreatedAt:   s.now(),
	})
	s.logger.Debug("Withdrawal recorded",
		zap.String("account", account.id.String()),
		zap.String("amount", m.String()),
	)
	return nil
}

// RecordTrade applies both legs of a trade atomically: the spend leg is
// debited from available, the receive leg is credited, and one Buy or Sell
// transaction is appended. For a buy, spend is the quote-currency notional
// and receive is the base quantity the caller computed from the fill price;
// a sell is the mirror. If any step fails nothing changes.
func (s *Service) RecordTrade(
	account *Account,
	tradeType TransactionType,
	spend money.Money,
	receive money.Money,
	description string,
	referenceID uuid.UUID,
) error {
	if tradeType != TransactionBuy && tradeType != TransactionSell {
		return fmt.Errorf("record trade: type %s is not a trade", tradeType)
	}

	account.mu.Lock()
	defer account.mu.Unlock()

	if !account.active {
		return fmt.Errorf("record trade: %w", ErrAccountInactive)
	}
	// Validate the credit leg before debiting anything so the later
	// AddAvailable cannot fail and leave a half-applied trade.
	if receive.IsNegative() {
		return fmt.Errorf("record trade: credit leg: %w", money.ErrInvalidAmount)
	}
	if err := account.balance.subAvailable(spend); err != nil {
		return fmt.Errorf("record trade: debit leg: %w", err)
	}
	if err := account.balance.AddAvailable(receive); err != nil {
		// Unreachable given the validation above; restore the debit anyway.
		_ = account.balance.AddAvailable(spend)
		return fmt.Errorf("record trade: credit leg: %w", err)
	}
	account.append(Transaction{
		Type:        tradeType,
		Amount:      spend,
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   s.now(),
	})
	s.logger.Debug("Trade recorded",
		zap.String("account", account.id.String()),
		zap.String("type", string(tradeType)),
		zap.String("spend", spend.String()),
		zap.String("receive", receive.String()),
	)
	return nil
}

// DeductTradingFee computes notional * feeRate, debits it from the
// notional's currency and appends a Fee transaction. It fails with
// ErrInsufficientAvailableBalance if the fee would drive available below
// zero, and returns the fee that was charged.
func (s *Service) DeductTradingFee(
	account *Account,
	notional money.Money,
	feeRate decimal.Decimal,
	referenceID uuid.UUID,
) (money.Money, error) {
	fee := notional.MulScalar(feeRate)

	account.mu.Lock()
	defer account.mu.Unlock()

	if err := account.balance.subAvailable(fee); err != nil {
		return money.Zero(notional.Currency()), fmt.Errorf("deduct trading fee: %w", err)
	}
	account.append(Transaction{
		Type:        TransactionFee,
		Amount:      fee,
		Description: fmt.Sprintf("trading fee on %s", notional),
		ReferenceID: referenceID,
		CreatedAt:   s.now(),
	})
	return fee, nil
}

// ReserveForOrder earmarks funds for an open order, moving them from
// available to reserved.
func (s *Service) ReserveForOrder(account *Account, m money.Money) error {
	account.mu.Lock()
	defer account.mu.Unlock()
	return account.balance.Reserve(m)
}

// ReleaseFromOrder returns earmarked funds from reserved to available.
func (s *Service) ReleaseFromOrder(account *Account, m money.Money) error {
	account.mu.Lock()
	defer account.mu.Unlock()
	return account.balance.Unreserve(m)
}

// BuyingPower returns available(currency) scaled by the account's leverage.
func (s *Service) BuyingPower(account *Account, currency money.Currency) money.Money {
	account.mu.Lock()
	defer account.mu.Unlock()
	return account.balance.Available(currency).MulScalar(account.leverage)
}

// CanTrade reports whether the account's available balance covers the amount.
func (s *Service) CanTrade(account *Account, m money.Money) bool {
	account.mu.Lock()
	defer account.mu.Unlock()
	short, err := account.balance.Available(m.Currency()).LessThan(m)
	if err != nil {
		return false
	}
	return !short
}

// PortfolioValue sums total(currency) * prices[currency] over every held
// currency, expressed in the reference currency. The reference currency
// itself is valued at one. It fails with ErrMissingPrice when a held
// currency has no price.
func (s *Service) PortfolioValue(
	account *Account,
	prices map[money.Currency]decimal.Decimal,
	reference money.Currency,
) (money.Money, error) {
	account.mu.Lock()
	defer account.mu.Unlock()

	sum := decimal.Zero
	for _, currency := range account.balance.Currencies() {
		total := account.balance.Total(currency)

		price := decimal.NewFromInt(1)
		if currency != reference {
			p, ok := prices[currency]
			if !ok {
				return money.Zero(reference), fmt.Errorf(
					"%w: no %s price for held currency %s",
					ErrMissingPrice, reference, currency)
			}
			price = p
		}
		sum = sum.Add(total.Amount().Mul(price))
	}

	// The valuation is derived, not ledger state, so rounding it to the
	// reference precision is safe and keeps dust conversions representable.
	value, err := money.New(sum.Round(reference.Precision()), reference)
	if err != nil {
		return money.Zero(reference), fmt.Errorf("portfolio value: %w", err)
	}
	return value, nil
}
