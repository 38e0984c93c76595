package models

import "gorm.io/gorm"

// BalanceRow is one currency slot of an account's balance. There is at most
// one row per (account, currency).
type BalanceRow struct {
	gorm.Model
	AccountUUID string `gorm:"uniqueIndex:idx_account_currency;not null"`
	Currency    string `gorm:"uniqueIndex:idx_account_currency;not null"`
	Available   string `gorm:"not null"`
	Reserved    string `gorm:"not null"`
}
