package handler

import (
	"encoding/json"
	"time"

	"budgie/internal/models"
	"budgie/internal/service"
)

// JSON 字段名是前端契约，金额统一两位小数的数字

type userResource struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResource(u *models.User) userResource {
	return userResource{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

type ledgerResource struct {
	ID                  uint        `json:"id"`
	Name                string      `json:"name"`
	StartingBalance     json.Number `json:"starting_balance"`
	StartingBalanceDate *string     `json:"starting_balance_date"`
	IsLocked            bool        `json:"is_locked"`
	IsArchived          bool        `json:"is_archived"`
	TransactionCount    int         `json:"transaction_count"`
	CurrentBalance      json.Number `json:"current_balance"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func newLedgerResource(l *models.Ledger, txs []models.Transaction) ledgerResource {
	return ledgerResource{
		ID:                  l.ID,
		Name:                l.Name,
		StartingBalance:     service.Fixed(l.StartingBalance),
		StartingBalanceDate: l.StartingBalanceDate,
		IsLocked:            l.IsLocked,
		IsArchived:          l.IsArchived,
		TransactionCount:    len(txs),
		CurrentBalance:      service.Fixed(service.CurrentBalance(l.StartingBalance, txs)),
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

// ledgerDetail 账本及按显示顺序排列的交易
type ledgerDetail struct {
	ledgerResource
	Transactions []transactionResource `json:"transactions"`
}

func newLedgerDetail(v *service.LedgerView) ledgerDetail {
	return ledgerDetail{
		ledgerResource: newLedgerResource(&v.Ledger, v.Transactions),
		Transactions:   newTransactionResources(v.Transactions),
	}
}

type transactionResource struct {
	ID           uint        `json:"id"`
	LedgerID     uint        `json:"ledger_id"`
	Date         string      `json:"date"`
	Description  string      `json:"description"`
	CreditAmount json.Number `json:"credit_amount"`
	DebitAmount  json.Number `json:"debit_amount"`
	IsPaid       bool        `json:"is_paid"`
	IsCleared    bool        `json:"is_cleared"`
	SortOrder    int         `json:"sort_order"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func newTransactionResource(t *models.Transaction) transactionResource {
	return transactionResource{
		ID:           t.ID,
		LedgerID:     t.LedgerID,
		Date:         t.Date,
		Description:  t.Description,
		CreditAmount: service.Fixed(t.CreditAmount),
		DebitAmount:  service.Fixed(t.DebitAmount),
		IsPaid:       t.IsPaid,
		IsCleared:    t.IsCleared,
		SortOrder:    t.SortOrder,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func newTransactionResources(txs []models.Transaction) []transactionResource {
	out := make([]transactionResource, len(txs))
	for i := range txs {
		out[i] = newTransactionResource(&txs[i])
	}
	return out
}

type balanceResource struct {
	LedgerID         uint        `json:"ledger_id"`
	LedgerName       string      `json:"ledger_name"`
	StartingBalance  json.Number `json:"starting_balance"`
	CurrentBalance   json.Number `json:"current_balance"`
	ClearedBalance   json.Number `json:"cleared_balance"`
	TransactionCount int         `json:"transaction_count"`
}

func newBalanceResource(b *service.BalanceView) balanceResource {
	return balanceResource{
		LedgerID:         b.LedgerID,
		LedgerName:       b.LedgerName,
		StartingBalance:  service.Fixed(b.StartingBalance),
		CurrentBalance:   service.Fixed(b.CurrentBalance),
		ClearedBalance:   service.Fixed(b.ClearedBalance),
		TransactionCount: b.TransactionCount,
	}
}
