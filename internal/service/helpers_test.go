package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"budgie/internal/config"
	"budgie/internal/database"
	"budgie/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	ledgers *LedgerService
	txs     *TransactionService
	ctx     context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "budgie.db")})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	ls := NewLedgerService(db)
	ls.Now = func() time.Time { return time.Date(2025, time.June, 17, 9, 30, 0, 0, time.UTC) }
	return &testEnv{db: db, ledgers: ls, txs: NewTransactionService(db), ctx: context.Background()}
}

var userSeq int

func (e *testEnv) user(t *testing.T) uint {
	t.Helper()
	userSeq++
	u := models.User{
		Email:        fmt.Sprintf("user%d@example.com", userSeq),
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "x",
	}
	require.NoError(t, e.db.Create(&u).Error)
	return u.ID
}

func (e *testEnv) ledger(t *testing.T, owner uint, name string, start string) *models.Ledger {
	t.Helper()
	l, err := e.ledgers.Create(e.ctx, owner, CreateLedgerInput{Name: name, StartingBalance: dec(start)})
	require.NoError(t, err)
	return l
}

func (e *testEnv) add(t *testing.T, owner, ledgerID uint, date, desc, credit, debit string) *models.Transaction {
	t.Helper()
	tx, err := e.txs.Add(e.ctx, owner, AddTransactionInput{
		LedgerID:     ledgerID,
		Date:         date,
		Description:  desc,
		CreditAmount: dec(credit),
		DebitAmount:  dec(debit),
	})
	require.NoError(t, err)
	return tx
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixed(ds []decimal.Decimal) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.StringFixed(2)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
