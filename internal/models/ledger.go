package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is a named list of transactions with its own starting balance.
// (user_id, name) is unique; deleting a ledger removes its transactions.
type Ledger struct {
	ID                  uint            `gorm:"primaryKey"`
	UserID              uint            `gorm:"not null;index;uniqueIndex:idx_ledgers_user_name"`
	Name                string          `gorm:"size:255;not null;uniqueIndex:idx_ledgers_user_name"`
	StartingBalance     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	StartingBalanceDate *string         `gorm:"size:10"` // YYYY-MM-DD
	IsLocked            bool            `gorm:"not null;default:false"`
	IsArchived          bool            `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	User         User          `gorm:"constraint:OnDelete:CASCADE"`
	Transactions []Transaction `gorm:"constraint:OnDelete:CASCADE"`
}
