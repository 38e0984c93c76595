package ledger

import (
	"time"

	"github.com/google/uuid"

	"paper-trading-go/internal/money"
)

// TransactionType classifies a balance-affecting event.
type TransactionType string

const (
	TransactionDeposit     TransactionType = "DEPOSIT"
	TransactionWithdrawal  TransactionType = "WITHDRAWAL"
	TransactionBuy         TransactionType = "BUY"
	TransactionSell        TransactionType = "SELL"
	TransactionFee         TransactionType = "FEE"
	TransactionDividend    TransactionType = "DIVIDEND"
	TransactionLiquidation TransactionType = "LIQUIDATION"
)

// Transaction is an immutable record of one balance-affecting event. The
// ordered sequence of transactions on an account is its append-only audit
// trail; entries are never mutated or deleted once created.
type Transaction struct {
	Type        TransactionType
	Amount      money.Money
	Description string
	// ReferenceID links the transaction to an external cause, e.g. the
	// trade that produced a fee. uuid.Nil when there is none.
	ReferenceID uuid.UUID
	CreatedAt   time.Time
}
