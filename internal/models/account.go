package models

import "gorm.io/gorm"

// Account is the persisted form of a ledger account.
type Account struct {
	gorm.Model
	UUID     string `gorm:"uniqueIndex;not null"`
	Name     string
	Leverage string `gorm:"not null"` // decimal stored as text, no float rounding
	IsActive bool   `gorm:"default:true"`
}
