package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-trading-go/internal/ledger"
	"paper-trading-go/internal/models"
	"paper-trading-go/internal/money"
)

var (
	// ErrAccountNotFound marks a lookup of an id with no persisted account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountActive marks a deletion attempt against an active account.
	// Only closed accounts may be deleted.
	ErrAccountActive = errors.New("account is still active")
)

// Repository persists ledger accounts, balances and the transaction audit
// trail. The ledger core never talks to storage directly; this is the only
// component that does.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository creates an account repository on top of the given database.
func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Save upserts the account and its balance rows and appends any transactions
// not yet stored, all in one database transaction. Stored transactions are
// never rewritten.
func (r *Repository) Save(account *ledger.Account) error {
	balances := account.BalanceView()
	transactions := account.Transactions()

	return r.db.Transaction(func(tx *gorm.DB) error {
		row := models.Account{
			UUID:     account.ID().String(),
			Name:     account.Name(),
			Leverage: account.Leverage().String(),
			IsActive: account.IsActive(),
		}
		var existing models.Account
		err := tx.Where("uuid = ?", row.UUID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create account row: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load account row: %w", err)
		default:
			existing.Name = row.Name
			existing.Leverage = row.Leverage
			existing.IsActive = row.IsActive
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("update account row: %w", err)
			}
		}

		for currency, amounts := range balances {
			balanceRow := models.BalanceRow{
				AccountUUID: row.UUID,
				Currency:    currency.String(),
			}
			if err := tx.Where(&balanceRow).FirstOrCreate(&balanceRow).Error; err != nil {
				return fmt.Errorf("upsert balance row for %s: %w", currency, err)
			}
			balanceRow.Available = amounts.Available.Amount().String()
			balanceRow.Reserved = amounts.Reserved.Amount().String()
			if err := tx.Save(&balanceRow).Error; err != nil {
				return fmt.Errorf("save balance row for %s: %w", currency, err)
			}
		}

		var stored int64
		if err := tx.Model(&models.TransactionRow{}).
			Where("account_uuid = ?", row.UUID).Count(&stored).Error; err != nil {
			return fmt.Errorf("count stored transactions: %w", err)
		}
		for _, transaction := range transactions[stored:] {
			txRow := models.TransactionRow{
				AccountUUID: row.UUID,
				Type:        string(transaction.Type),
				Amount:      transaction.Amount.Amount().String(),
				Currency:    transaction.Amount.Currency().String(),
				Description: transaction.Description,
				ExecutedAt:  transaction.CreatedAt,
			}
			if transaction.ReferenceID != uuid.Nil {
				txRow.ReferenceID = transaction.ReferenceID.String()
			}
			if err := tx.Create(&txRow).Error; err != nil {
				return fmt.Errorf("append transaction row: %w", err)
			}
		}

		r.logger.Debug("Account saved",
			zap.String("account", row.UUID),
			zap.Int("transactions", len(transactions)),
		)
		return nil
	})
}

// FindByID rebuilds an account from its persisted rows. It fails with
// ErrAccountNotFound when no account has the id.
func (r *Repository) FindByID(id uuid.UUID) (*ledger.Account, error) {
	var row models.Account
	err := r.db.Where("uuid = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", id, err)
	}
	return r.restore(&row)
}

// FindAllActive returns every account that still accepts trades.
func (r *Repository) FindAllActive() ([]*ledger.Account, error) {
	var rows []models.Account
	if err := r.db.Where("is_active = ?", true).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load active accounts: %w", err)
	}

	accounts := make([]*ledger.Account, 0, len(rows))
	for i := range rows {
		account, err := r.restore(&rows[i])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes an inactive account with its balances and history. Active
// accounts fail with ErrAccountActive; close the account first.
func (r *Repository) Delete(id uuid.UUID) error {
	var row models.Account
	err := r.db.Where("uuid = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load account %s: %w", id, err)
	}
	if row.IsActive {
		return fmt.Errorf("%w: %s", ErrAccountActive, id)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		uuidStr := id.String()
		if err := tx.Where("account_uuid = ?", uuidStr).Delete(&models.TransactionRow{}).Error; err != nil {
			return fmt.Errorf("delete transaction rows: %w", err)
		}
		if err := tx.Where("account_uuid = ?", uuidStr).Delete(&models.BalanceRow{}).Error; err != nil {
			return fmt.Errorf("delete balance rows: %w", err)
		}
		if err := tx.Delete(&row).Error; err != nil {
			return fmt.Errorf("delete account row: %w", err)
		}
		return nil
	})
}

func (r *Repository) restore(row *models.Account) (*ledger.Account, error) {
	id, err := uuid.Parse(row.UUID)
	if err != nil {
		return nil, fmt.Errorf("account %d has malformed uuid: %w", row.ID, err)
	}
	leverage, err := decimal.NewFromString(row.Leverage)
	if err != nil {
		return nil, fmt.Errorf("account %s has malformed leverage: %w", row.UUID, err)
	}

	var balanceRows []models.BalanceRow
	if err := r.db.Where("account_uuid = ?", row.UUID).Find(&balanceRows).Error; err != nil {
		return nil, fmt.Errorf("load balance rows for %s: %w", row.UUID, err)
	}
	balances := make(map[money.Currency]ledger.Amounts, len(balanceRows))
	for _, balanceRow := range balanceRows {
		currency, err := money.ParseCurrency(balanceRow.Currency)
		if err != nil {
			return nil, fmt.Errorf("balance row %d: %w", balanceRow.ID, err)
		}
		available, err := parseMoney(balanceRow.Available, currency)
		if err != nil {
			return nil, fmt.Errorf("balance row %d: %w", balanceRow.ID, err)
		}
		reserved, err := parseMoney(balanceRow.Reserved, currency)
		if err != nil {
			return nil, fmt.Errorf("balance row %d: %w", balanceRow.ID, err)
		}
		balances[currency] = ledger.Amounts{Available: available, Reserved: reserved}
	}

	var transactionRows []models.TransactionRow
	err = r.db.Where("account_uuid = ?", row.UUID).
		Order("executed_at asc, id asc").Find(&transactionRows).Error
	if err != nil {
		return nil, fmt.Errorf("load transaction rows for %s: %w", row.UUID, err)
	}
	transactions := make([]ledger.Transaction, 0, len(transactionRows))
	for _, txRow := range transactionRows {
		currency, err := money.ParseCurrency(txRow.Currency)
		if err != nil {
			return nil, fmt.Errorf("transaction row %d: %w", txRow.ID, err)
		}
		amount, err := parseMoney(txRow.Amount, currency)
		if err != nil {
			return nil, fmt.Errorf("transaction row %d: %w", txRow.ID, err)
		}
		reference := uuid.Nil
		if txRow.ReferenceID != "" {
			reference, err = uuid.Parse(txRow.ReferenceID)
			if err != nil {
				return nil, fmt.Errorf("transaction row %d: %w", txRow.ID, err)
			}
		}
		transactions = append(transactions, ledger.Transaction{
			Type:        ledger.TransactionType(txRow.Type),
			Amount:      amount,
			Description: txRow.Description,
			ReferenceID: reference,
			CreatedAt:   txRow.ExecutedAt,
		})
	}

	return ledger.RestoreAccount(id, row.Name, leverage, row.IsActive, balances, transactions), nil
}

func parseMoney(value string, currency money.Currency) (money.Money, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(amount, currency)
}
