package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paper-trading-go/internal/ledger"
	"paper-trading-go/internal/models"
	"paper-trading-go/internal/money"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return NewRepository(db, zap.NewNop())
}

func seededAccount(t *testing.T) (*ledger.Account, *ledger.Service) {
	t.Helper()
	service := ledger.NewService(zap.NewNop())
	account := ledger.NewAccount("alice", decimal.NewFromInt(2))
	require.NoError(t, service.Deposit(account, money.MustNew("10000", money.USDT), "initial funding"))
	require.NoError(t, service.RecordTrade(account, ledger.TransactionBuy,
		money.MustNew("2000", money.USDT), money.MustNew("0.02", money.BTC), "buy BTC", uuid.New()))
	require.NoError(t, service.ReserveForOrder(account, money.MustNew("500", money.USDT)))
	return account, service
}

func TestSaveAndFindByID(t *testing.T) {
	repo := setupRepository(t)
	account, _ := seededAccount(t)

	require.NoError(t, repo.Save(account))

	loaded, err := repo.FindByID(account.ID())
	require.NoError(t, err)

	assert.Equal(t, account.ID(), loaded.ID())
	assert.Equal(t, "alice", loaded.Name())
	assert.True(t, loaded.Leverage().Equal(decimal.NewFromInt(2)))
	assert.True(t, loaded.IsActive())

	assert.True(t, loaded.Available(money.USDT).Equal(account.Available(money.USDT)))
	assert.True(t, loaded.Reserved(money.USDT).Equal(money.MustNew("500", money.USDT)))
	assert.True(t, loaded.Available(money.BTC).Equal(money.MustNew("0.02", money.BTC)))

	transactions := loaded.Transactions()
	require.Len(t, transactions, 2)
	assert.Equal(t, ledger.TransactionDeposit, transactions[0].Type)
	assert.Equal(t, ledger.TransactionBuy, transactions[1].Type)
	assert.NotEqual(t, uuid.Nil, transactions[1].ReferenceID)
}

func TestSaveIsAppendOnlyForTransactions(t *testing.T) {
	repo := setupRepository(t)
	account, service := seededAccount(t)

	require.NoError(t, repo.Save(account))
	require.NoError(t, service.Deposit(account, money.MustNew("1", money.USDT), "top up"))
	require.NoError(t, repo.Save(account))

	loaded, err := repo.FindByID(account.ID())
	require.NoError(t, err)
	assert.Len(t, loaded.Transactions(), 3)

	// Saving again without new activity must not duplicate rows.
	require.NoError(t, repo.Save(account))
	loaded, err = repo.FindByID(account.ID())
	require.NoError(t, err)
	assert.Len(t, loaded.Transactions(), 3)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := setupRepository(t)
	_, err := repo.FindByID(uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestFindAllActive(t *testing.T) {
	repo := setupRepository(t)

	active := ledger.NewAccount("active", decimal.NewFromInt(1))
	closed := ledger.NewAccount("closed", decimal.NewFromInt(1))
	closed.Close()

	require.NoError(t, repo.Save(active))
	require.NoError(t, repo.Save(closed))

	accounts, err := repo.FindAllActive()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, active.ID(), accounts[0].ID())
}

func TestDelete(t *testing.T) {
	repo := setupRepository(t)
	account, _ := seededAccount(t)
	require.NoError(t, repo.Save(account))

	t.Run("ActiveAccountRefused", func(t *testing.T) {
		err := repo.Delete(account.ID())
		assert.ErrorIs(t, err, ErrAccountActive)
	})

	t.Run("ClosedAccountDeleted", func(t *testing.T) {
		account.Close()
		require.NoError(t, repo.Save(account))
		require.NoError(t, repo.Delete(account.ID()))

		_, err := repo.FindByID(account.ID())
		assert.ErrorIs(t, err, ErrAccountNotFound)

		var remaining int64
		require.NoError(t, repo.db.Model(&models.TransactionRow{}).
			Where("account_uuid = ?", account.ID().String()).Count(&remaining).Error)
		assert.Zero(t, remaining)
	})

	t.Run("MissingAccount", func(t *testing.T) {
		err := repo.Delete(uuid.New())
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestCloseSurvivesRoundTrip(t *testing.T) {
	repo := setupRepository(t)
	account, _ := seededAccount(t)

	// Closing with a reservation outstanding is allowed; the reservation
	// must survive persistence untouched.
	account.Close()
	require.NoError(t, repo.Save(account))

	loaded, err := repo.FindByID(account.ID())
	require.NoError(t, err)
	assert.False(t, loaded.IsActive())
	assert.True(t, loaded.Reserved(money.USDT).Equal(money.MustNew("500", money.USDT)))
}
