package ledger

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paper-trading-go/internal/money"
)

// Account aggregates a balance, an append-only transaction log and
// account-level policy. It owns both exclusively: nothing mutates the
// balance or the log except the ledger service, which serializes every
// mutation under the account's lock (single-writer discipline).
type Account struct {
	mu sync.Mutex

	id           uuid.UUID
	name         string
	balance      *Balance
	transactions []Transaction
	leverage     decimal.Decimal
	active       bool
}

// NewAccount creates an active account with an empty balance and no history.
func NewAccount(name string, leverage decimal.Decimal) *Account {
	return &Account{
		id:       uuid.New(),
		name:     name,
		balance:  NewBalance(),
		leverage: leverage,
		active:   true,
	}
}

// RestoreAccount rebuilds an account from persisted state. The repository is
// the only intended caller.
func RestoreAccount(
	id uuid.UUID,
	name string,
	leverage decimal.Decimal,
	active bool,
	balances map[money.Currency]Amounts,
	transactions []Transaction,
) *Account {
	balance := NewBalance()
	for currency, amounts := range balances {
		balance.slots[currency] = balanceSlot{
			available: amounts.Available,
			reserved:  amounts.Reserved,
		}
	}
	return &Account{
		id:           id,
		name:         name,
		balance:      balance,
		transactions: transactions,
		leverage:     leverage,
		active:       active,
	}
}

// ID returns the account's identifier.
func (a *Account) ID() uuid.UUID {
	return a.id
}

// Name returns the account's display name.
func (a *Account) Name() string {
	return a.name
}

// Leverage returns the account's leverage factor.
func (a *Account) Leverage() decimal.Decimal {
	return a.leverage
}

// IsActive reports whether the account accepts new trades.
func (a *Account) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Close stops the account from accepting new trades. Balance and history
// stay queryable, and outstanding reservations are deliberately left in
// place; forcing their release is the caller's policy, not the ledger's.
func (a *Account) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = false
}

// Reopen makes a closed account accept trades again.
func (a *Account) Reopen() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = true
}

// Available returns the available amount of the currency.
func (a *Account) Available(currency money.Currency) money.Money {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance.Available(currency)
}

// Reserved returns the reserved amount of the currency.
func (a *Account) Reserved(currency money.Currency) money.Money {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance.Reserved(currency)
}

// Total returns available + reserved of the currency.
func (a *Account) Total(currency money.Currency) money.Money {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance.Total(currency)
}

// BalanceView returns a point-in-time copy of every currency slot.
func (a *Account) BalanceView() map[money.Currency]Amounts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance.View()
}

// Transactions returns a copy of the transaction log in creation order.
func (a *Account) Transactions() []Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Transaction, len(a.transactions))
	copy(out, a.transactions)
	return out
}

// append records a transaction. Callers must hold a.mu.
func (a *Account) append(tx Transaction) {
	a.transactions = append(a.transactions, tx)
}
