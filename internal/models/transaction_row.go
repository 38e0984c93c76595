package models

import (
	"time"

	"gorm.io/gorm"
)

// TransactionRow is one entry of an account's append-only audit trail.
// Rows are only ever inserted, never updated or deleted, and read back
// ordered by ExecutedAt ascending.
type TransactionRow struct {
	gorm.Model
	AccountUUID string `gorm:"index;not null"`
	Type        string `gorm:"not null"`
	Amount      string `gorm:"not null"`
	Currency    string `gorm:"not null"`
	Description string
	ReferenceID string
	ExecutedAt  time.Time `gorm:"index;not null"`
}
