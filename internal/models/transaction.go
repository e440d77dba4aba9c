package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single dated credit or debit inside a ledger.
// SortOrder is the user-controlled display position; it is a comparison
// key only and may repeat or skip values.
type Transaction struct {
	ID           uint            `gorm:"primaryKey"`
	LedgerID     uint            `gorm:"not null;index;index:idx_transactions_ledger_date_sort,priority:1"`
	Date         string          `gorm:"size:10;not null;index;index:idx_transactions_ledger_date_sort,priority:2"` // YYYY-MM-DD
	Description  string          `gorm:"size:500;not null"`
	CreditAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DebitAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	IsPaid       bool            `gorm:"not null;default:false"`
	IsCleared    bool            `gorm:"not null;default:false"`
	SortOrder    int             `gorm:"not null;default:0;index:idx_transactions_ledger_date_sort,priority:3"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Effect is the signed change this transaction makes to a balance.
func (t *Transaction) Effect() decimal.Decimal {
	return t.CreditAmount.Sub(t.DebitAmount)
}
