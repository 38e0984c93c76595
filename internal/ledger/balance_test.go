package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trading-go/internal/money"
)

func TestBalanceUntouchedCurrencyIsZero(t *testing.T) {
	b := NewBalance()
	assert.True(t, b.Available(money.BTC).IsZero())
	assert.True(t, b.Reserved(money.BTC).IsZero())
	assert.True(t, b.Total(money.BTC).IsZero())
}

func TestBalanceAddAvailable(t *testing.T) {
	b := NewBalance()
	require.NoError(t, b.AddAvailable(money.MustNew("100", money.USDT)))
	require.NoError(t, b.AddAvailable(money.MustNew("50", money.USDT)))

	assert.True(t, b.Available(money.USDT).Equal(money.MustNew("150", money.USDT)))

	t.Run("NegativeCreditRejected", func(t *testing.T) {
		err := b.AddAvailable(money.MustNew("-1", money.USDT))
		assert.ErrorIs(t, err, money.ErrInvalidAmount)
		assert.True(t, b.Available(money.USDT).Equal(money.MustNew("150", money.USDT)))
	})
}

func TestBalanceReserve(t *testing.T) {
	b := NewBalance()
	require.NoError(t, b.AddAvailable(money.MustNew("500", money.USDT)))

	t.Run("MovesAvailableToReserved", func(t *testing.T) {
		require.NoError(t, b.Reserve(money.MustNew("200", money.USDT)))
		assert.True(t, b.Available(money.USDT).Equal(money.MustNew("300", money.USDT)))
		assert.True(t, b.Reserved(money.USDT).Equal(money.MustNew("200", money.USDT)))
		assert.True(t, b.Total(money.USDT).Equal(money.MustNew("500", money.USDT)))
	})

	t.Run("InsufficientAvailableLeavesStateUntouched", func(t *testing.T) {
		err := b.Reserve(money.MustNew("700", money.USDT))
		assert.ErrorIs(t, err, ErrInsufficientAvailableBalance)
		assert.True(t, b.Available(money.USDT).Equal(money.MustNew("300", money.USDT)))
		assert.True(t, b.Reserved(money.USDT).Equal(money.MustNew("200", money.USDT)))
	})
}

func TestBalanceUnreserve(t *testing.T) {
	b := NewBalance()
	require.NoError(t, b.AddAvailable(money.MustNew("500", money.USDT)))
	require.NoError(t, b.Reserve(money.MustNew("200", money.USDT)))

	t.Run("InsufficientReserved", func(t *testing.T) {
		err := b.Unreserve(money.MustNew("300", money.USDT))
		assert.ErrorIs(t, err, ErrInsufficientReservedBalance)
	})

	t.Run("RoundTripRestoresState", func(t *testing.T) {
		require.NoError(t, b.Unreserve(money.MustNew("200", money.USDT)))
		assert.True(t, b.Available(money.USDT).Equal(money.MustNew("500", money.USDT)))
		assert.True(t, b.Reserved(money.USDT).IsZero())
	})
}

func TestBalanceInvariantsAcrossOperations(t *testing.T) {
	b := NewBalance()
	require.NoError(t, b.AddAvailable(money.MustNew("1000", money.USDT)))
	require.NoError(t, b.AddAvailable(money.MustNew("2", money.BTC)))
	require.NoError(t, b.Reserve(money.MustNew("400", money.USDT)))
	require.NoError(t, b.Unreserve(money.MustNew("150", money.USDT)))
	require.NoError(t, b.Reserve(money.MustNew("1", money.BTC)))

	for _, currency := range []money.Currency{money.USDT, money.BTC} {
		assert.False(t, b.Available(currency).IsNegative())
		assert.False(t, b.Reserved(currency).IsNegative())

		sum, err := b.Available(currency).Add(b.Reserved(currency))
		require.NoError(t, err)
		assert.True(t, sum.Equal(b.Total(currency)), "total must equal available + reserved")
	}

	assert.ElementsMatch(t,
		[]money.Currency{money.USDT, money.BTC}, b.Currencies())
}
