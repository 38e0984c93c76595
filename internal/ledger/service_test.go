package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-trading-go/internal/money"
)

func newTestService() *Service {
	return NewService(zap.NewNop())
}

func newFundedAccount(t *testing.T, svc *Service, amount string) *Account {
	t.Helper()
	account := NewAccount("test", decimal.NewFromInt(1))
	require.NoError(t, svc.Deposit(account, money.MustNew(amount, money.USDT), "initial funding"))
	return account
}

func TestDeposit(t *testing.T) {
	svc := newTestService()
	account := newFundedAccount(t, svc, "10000")

	require.NoError(t, svc.Deposit(account, money.MustNew("1000", money.USDT), "top up"))

	assert.True(t, account.Available(money.USDT).Equal(money.MustNew("11000", money.USDT)))

	txs := account.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, TransactionDeposit, txs[1].Type)
	assert.True(t, txs[1].Amount.Equal(money.MustNew("1000", money.USDT)))
}

func TestWithdraw(t *testing.T) {
	svc := newTestService()
	account := newFundedAccount(t, svc, "100")

	t.Run("Insufficient", func(t *testing.T) {
		err := svc.Withdraw(account, money.MustNew("200", money.USDT), "too much")
		assert.ErrorIs(t, err, ErrInsufficientAvailableBalance)
		assert.True(t, account.Available(money.USDT).Equal(money.MustNew("100", money.USDT)))
		assert.Len(t, account.Transactions(), 1) // no Withdrawal appended
	})

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, svc.Withdraw(account, money.MustNew("40", money.USDT), "payout"))
		assert.True(t, account.Available(money.USDT).Equal(money.MustNew("60", money.USDT)))
	})
}

func TestRecordTrade(t *testing.T) {
	svc := newTestService()

	t.Run("BuyMovesBothLegs", func(t *testing.T) {
		account := newFundedAccount(t, svc, "1000")
		ref := uuid.New()

		err := svc.RecordTrade(account, TransactionBuy,
			money.MustNew("500", money.USDT), money.MustNew("0.005", money.BTC),
			"buy BTC", ref)
		require.NoError(t, err)

		assert.True(t, account.Available(money.USDT).Equal(money.MustNew("500", money.USDT)))
		assert.True(t, account.Available(money.BTC).Equal(money.MustNew("0.005", money.BTC)))

		txs := account.Transactions()
		require.Len(t, txs, 2)
		assert.Equal(t, TransactionBuy, txs[1].Type)
		assert.Equal(t, ref, txs[1].ReferenceID)
	})

	t.Run("InsufficientQuoteLeavesNothingChanged", func(t *testing.T) {
		account := newFundedAccount(t, svc, "100")

		err := svc.RecordTrade(account, TransactionBuy,
			money.MustNew("500", money.USDT), money.MustNew("0.005", money.BTC),
			"buy BTC", uuid.Nil)
		assert.ErrorIs(t, err, ErrInsufficientAvailableBalance)

		assert.True(t, account.Available(money.USDT).Equal(money.MustNew("100", money.USDT)))
		assert.True(t, account.Available(money.BTC).IsZero())
		assert.Len(t, account.Transactions(), 1)
	})

	t.Run("SellIsTheMirror", func(t *testing.T) {
		account := newFundedAccount(t, svc, "0")
		require.NoError(t, svc.Deposit(account, money.MustNew("1", money.BTC), "seed position"))

		err := svc.RecordTrade(account, TransactionSell,
			money.MustNew("0.4", money.BTC), money.MustNew("40000", money.USDT),
			"sell BTC", uuid.Nil)
		require.NoError(t, err)

		assert.True(t, account.Available(money.BTC).Equal(money.MustNew("0.6", money.BTC)))
		assert.True(t, account.Available(money.USDT).Equal(money.MustNew("40000", money.USDT)))
	})

	t.Run("RejectsNonTradeType", func(t *testing.T) {
		account := newFundedAccount(t, svc, "100")
		err := svc.RecordTrade(account, TransactionDeposit,
			money.MustNew("1", money.USDT), money.MustNew("1", money.USDT), "", uuid.Nil)
		assert.Error(t, err)
	})

	t.Run("RejectsClosedAccount", func(t *testing.T) {
		account := newFundedAccount(t, svc, "1000")
		account.Close()

		err := svc.RecordTrade(account, TransactionBuy,
			money.MustNew("10", money.USDT), money.MustNew("0.0001", money.BTC), "", uuid.Nil)
		assert.ErrorIs(t, err, ErrAccountInactive)

		account.Reopen()
		err = svc.RecordTrade(account, TransactionBuy,
			money.MustNew("10", money.USDT), money.MustNew("0.0001", money.BTC), "", uuid.Nil)
		assert.NoError(t, err)
	})
}

func TestDeductTradingFee(t *testing.T) {
	svc := newTestService()
	account := newFundedAccount(t, svc, "100")

	fee, err := svc.DeductTradingFee(account,
		money.MustNew("1000", money.USDT), decimal.RequireFromString("0.001"), uuid.Nil)
	require.NoError(t, err)

	assert.True(t, fee.Equal(money.MustNew("1", money.USDT)))
	assert.True(t, account.Available(money.USDT).Equal(money.MustNew("99", money.USDT)))

	t.Run("FeeBelowZeroFails", func(t *testing.T) {
		_, err := svc.DeductTradingFee(account,
			money.MustNew("1000000", money.USDT), decimal.RequireFromString("0.001"), uuid.Nil)
		assert.ErrorIs(t, err, ErrInsufficientAvailableBalance)
		assert.True(t, account.Available(money.USDT).Equal(money.MustNew("99", money.USDT)))
	})
}

func TestReservations(t *testing.T) {
	svc := newTestService()
	account := newFundedAccount(t, svc, "500")

	t.Run("ScenarioBOverReserve", func(t *testing.T) {
		err := svc.ReserveForOrder(account, money.MustNew("700", money.USDT))
		assert.ErrorIs(t, err, ErrInsufficientAvailableBalance)
		assert.True(t, account.Available(money.USDT).Equal(money.MustNew("500", money.USDT)))
	})

	t.Run("ReserveReleaseRoundTrip", func(t *testing.T) {
		require.NoError(t, svc.ReserveForOrder(account, money.MustNew("300", money.USDT)))
		require.NoError(t, svc.ReleaseFromOrder(account, money.MustNew("300", money.USDT)))
		assert.True(t, account.Available(money.USDT).Equal(money.MustNew("500", money.USDT)))
		assert.True(t, account.Reserved(money.USDT).IsZero())
	})
}

func TestBuyingPowerAndCanTrade(t *testing.T) {
	svc := newTestService()
	account := NewAccount("leveraged", decimal.NewFromInt(3))
	require.NoError(t, svc.Deposit(account, money.MustNew("100", money.USDT), "funding"))

	assert.True(t, svc.BuyingPower(account, money.USDT).Equal(money.MustNew("300", money.USDT)))
	assert.True(t, svc.CanTrade(account, money.MustNew("100", money.USDT)))
	assert.False(t, svc.CanTrade(account, money.MustNew("101", money.USDT)))
}

func TestPortfolioValue(t *testing.T) {
	svc := newTestService()
	account := newFundedAccount(t, svc, "1000")
	require.NoError(t, svc.Deposit(account, money.MustNew("2", money.ETH), "seed position"))

	t.Run("SumsAtGivenPrices", func(t *testing.T) {
		prices := map[money.Currency]decimal.Decimal{
			money.ETH: decimal.NewFromInt(2000),
		}
		value, err := svc.PortfolioValue(account, prices, money.USDT)
		require.NoError(t, err)
		assert.True(t, value.Equal(money.MustNew("5000", money.USDT)))
	})

	t.Run("ScenarioDMissingPrice", func(t *testing.T) {
		_, err := svc.PortfolioValue(account, nil, money.USDT)
		assert.ErrorIs(t, err, ErrMissingPrice)
	})
}

// Ledger conservation: after any sequence of operations, available+reserved
// per currency must equal the signed sum of the credits and debits applied.
func TestLedgerConservation(t *testing.T) {
	svc := newTestService()
	account := newFundedAccount(t, svc, "10000")

	require.NoError(t, svc.ReserveForOrder(account, money.MustNew("2500", money.USDT)))
	require.NoError(t, svc.RecordTrade(account, TransactionBuy,
		money.MustNew("3000", money.USDT), money.MustNew("0.03", money.BTC), "buy", uuid.Nil))
	_, err := svc.DeductTradingFee(account,
		money.MustNew("3000", money.USDT), decimal.RequireFromString("0.001"), uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, svc.ReleaseFromOrder(account, money.MustNew("1000", money.USDT)))
	require.NoError(t, svc.Withdraw(account, money.MustNew("500", money.USDT), "payout"))

	// USDT: 10000 - 3000 - 3 - 500 = 6497 across available+reserved.
	assert.True(t, account.Total(money.USDT).Equal(money.MustNew("6497", money.USDT)))
	assert.True(t, account.Reserved(money.USDT).Equal(money.MustNew("1500", money.USDT)))
	// BTC: credited 0.03.
	assert.True(t, account.Total(money.BTC).Equal(money.MustNew("0.03", money.BTC)))

	for _, currency := range []money.Currency{money.USDT, money.BTC} {
		assert.False(t, account.Available(currency).IsNegative())
		assert.False(t, account.Reserved(currency).IsNegative())
	}
}

// Concurrent mutations through the service must never let a reader observe
// negative balances or a broken available+reserved split.
func TestSingleWriterDiscipline(t *testing.T) {
	svc := newTestService()
	account := newFundedAccount(t, svc, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				amount := money.MustNew("10", money.USDT)
				if err := svc.ReserveForOrder(account, amount); err == nil {
					_ = svc.ReleaseFromOrder(account, amount)
				}
			}
		}()
	}
	wg.Wait()

	assert.True(t, account.Available(money.USDT).Equal(money.MustNew("1000", money.USDT)))
	assert.True(t, account.Reserved(money.USDT).IsZero())
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(zap.NewNop(), WithClock(func() time.Time { return fixed }))
	account := NewAccount("clocked", decimal.NewFromInt(1))

	require.NoError(t, svc.Deposit(account, money.MustNew("1", money.USDT), "funding"))
	assert.Equal(t, fixed, account.Transactions()[0].CreatedAt)
}
