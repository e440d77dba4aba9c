package service

import (
	"errors"
	"testing"

	"budgie/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLedger(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)

	l, err := e.ledgers.Create(e.ctx, owner, CreateLedgerInput{
		Name:                "  Checking  ",
		StartingBalance:     dec("-12.345"),
		StartingBalanceDate: ptr("2025-05-01T00:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Checking", l.Name)
	assert.Equal(t, "-12.35", l.StartingBalance.StringFixed(2))
	require.NotNil(t, l.StartingBalanceDate)
	assert.Equal(t, "2025-05-01", *l.StartingBalanceDate)
	assert.False(t, l.IsLocked)
	assert.False(t, l.IsArchived)
}

func TestCreateLedger_Validation(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)

	_, err := e.ledgers.Create(e.ctx, owner, CreateLedgerInput{Name: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	long := make([]rune, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err = e.ledgers.Create(e.ctx, owner, CreateLedgerInput{Name: string(long)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.ledgers.Create(e.ctx, owner, CreateLedgerInput{Name: "Dates", StartingBalanceDate: ptr("31/01/2025")})
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindValidation, se.Kind)
	assert.Equal(t, "starting_balance_date", se.Details[0].Field)
}

func TestCreateLedger_DuplicateNameConflicts(t *testing.T) {
	e := newTestEnv(t)
	owner, other := e.user(t), e.user(t)
	e.ledger(t, owner, "Budget", "0")

	_, err := e.ledgers.Create(e.ctx, owner, CreateLedgerInput{Name: "Budget"})
	assert.ErrorIs(t, err, ErrConflict)

	var count int64
	require.NoError(t, e.db.Model(&models.Ledger{}).Where("user_id = ?", owner).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// 名称只在同一用户内唯一
	_, err = e.ledgers.Create(e.ctx, other, CreateLedgerInput{Name: "Budget"})
	assert.NoError(t, err)
}

func TestGetLedger_OtherOwnerIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	owner, other := e.user(t), e.user(t)
	l := e.ledger(t, owner, "Private", "0")

	_, err := e.ledgers.Get(e.ctx, other, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.ledgers.Get(e.ctx, owner, l.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestListLedgers(t *testing.T) {
	e := newTestEnv(t)
	owner, other := e.user(t), e.user(t)
	a := e.ledger(t, owner, "A", "100")
	e.ledger(t, owner, "B", "5")
	e.ledger(t, other, "C", "0")
	e.add(t, owner, a.ID, "2025-05-01", "Pay", "50", "0")
	e.add(t, owner, a.ID, "2025-05-02", "Food", "0", "30")

	views, err := e.ledgers.List(e.ctx, owner)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "A", views[0].Ledger.Name)
	assert.Equal(t, 2, views[0].TransactionCount())
	assert.Equal(t, "120.00", views[0].CurrentBalance().StringFixed(2))
	assert.Equal(t, "B", views[1].Ledger.Name)
	assert.Equal(t, 0, views[1].TransactionCount())
	assert.Equal(t, "5.00", views[1].CurrentBalance().StringFixed(2))

	empty, err := e.ledgers.List(e.ctx, e.user(t))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateLedger_Partial(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	l, err := e.ledgers.Create(e.ctx, owner, CreateLedgerInput{Name: "May", StartingBalance: dec("10"), StartingBalanceDate: ptr("2025-05-01")})
	require.NoError(t, err)

	got, err := e.ledgers.Update(e.ctx, owner, l.ID, UpdateLedgerInput{StartingBalance: ptr(dec("20"))})
	require.NoError(t, err)
	assert.Equal(t, "May", got.Name)
	assert.Equal(t, "20.00", got.StartingBalance.StringFixed(2))
	require.NotNil(t, got.StartingBalanceDate)

	got, err = e.ledgers.Update(e.ctx, owner, l.ID, UpdateLedgerInput{StartingBalanceDate: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, got.StartingBalanceDate)

	view, err := e.ledgers.Get(e.ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Ledger.StartingBalanceDate)
	assert.Equal(t, "20.00", view.Ledger.StartingBalance.StringFixed(2))
}

func TestUpdateLedger_RenameConflict(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	e.ledger(t, owner, "A", "0")
	b := e.ledger(t, owner, "B", "0")

	_, err := e.ledgers.Rename(e.ctx, owner, b.ID, "A")
	assert.ErrorIs(t, err, ErrConflict)

	// 改成原名不算冲突
	got, err := e.ledgers.Rename(e.ctx, owner, b.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name)
}

func TestLockedLedger(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	l := e.ledger(t, owner, "Closed", "10")
	tx := e.add(t, owner, l.ID, "2025-05-01", "Rent", "0", "5")

	_, err := e.ledgers.SetLocked(e.ctx, owner, l.ID, true)
	require.NoError(t, err)

	_, err = e.ledgers.Rename(e.ctx, owner, l.ID, "Other")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.ledgers.Update(e.ctx, owner, l.ID, UpdateLedgerInput{StartingBalance: ptr(dec("1"))})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.ledgers.Update(e.ctx, owner, l.ID, UpdateLedgerInput{StartingBalanceDate: ptr("2025-01-01")})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, e.ledgers.Delete(e.ctx, owner, l.ID), ErrForbidden)

	// 标记仍然可以修改
	got, err := e.ledgers.SetArchived(e.ctx, owner, l.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)
	assert.True(t, got.IsLocked)

	// 锁定账本里的交易仍可编辑
	_, err = e.txs.TogglePaid(e.ctx, owner, tx.ID)
	assert.NoError(t, err)

	view, err := e.ledgers.Get(e.ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Closed", view.Ledger.Name)
	assert.Equal(t, "10.00", view.Ledger.StartingBalance.StringFixed(2))

	_, err = e.ledgers.SetLocked(e.ctx, owner, l.ID, false)
	require.NoError(t, err)
	_, err = e.ledgers.Rename(e.ctx, owner, l.ID, "Other")
	assert.NoError(t, err)
}

func TestDeleteLedger_RemovesTransactions(t *testing.T) {
	e := newTestEnv(t)
	owner, other := e.user(t), e.user(t)
	l := e.ledger(t, owner, "Gone", "0")
	e.add(t, owner, l.ID, "2025-05-01", "One", "1", "0")
	e.add(t, owner, l.ID, "2025-05-02", "Two", "2", "0")

	assert.ErrorIs(t, e.ledgers.Delete(e.ctx, other, l.ID), ErrNotFound)
	require.NoError(t, e.ledgers.Delete(e.ctx, owner, l.ID))

	var count int64
	require.NoError(t, e.db.Model(&models.Transaction{}).Where("ledger_id = ?", l.ID).Count(&count).Error)
	assert.Zero(t, count)
	_, err := e.ledgers.Get(e.ctx, owner, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindUniqueName(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)

	name, err := e.ledgers.FindUniqueName(e.ctx, owner, "Budget", NumberedSuffix("Budget"))
	require.NoError(t, err)
	assert.Equal(t, "Budget", name)

	e.ledger(t, owner, "Budget", "0")
	e.ledger(t, owner, "Budget (2)", "0")
	name, err = e.ledgers.FindUniqueName(e.ctx, owner, "Budget", NumberedSuffix("Budget"))
	require.NoError(t, err)
	assert.Equal(t, "Budget (3)", name)

	// 其他用户的账本名不计入
	name, err = e.ledgers.FindUniqueName(e.ctx, e.user(t), "Budget", NumberedSuffix("Budget"))
	require.NoError(t, err)
	assert.Equal(t, "Budget", name)
}

func TestBalance(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	l := e.ledger(t, owner, "Main", "100")
	paid := e.add(t, owner, l.ID, "2025-05-01", "Pay", "50", "0")
	e.add(t, owner, l.ID, "2025-05-02", "Food", "0", "30")
	_, err := e.txs.ToggleCleared(e.ctx, owner, paid.ID)
	require.NoError(t, err)

	b, err := e.ledgers.Balance(e.ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main", b.LedgerName)
	assert.Equal(t, "100.00", b.StartingBalance.StringFixed(2))
	assert.Equal(t, "120.00", b.CurrentBalance.StringFixed(2))
	assert.Equal(t, "150.00", b.ClearedBalance.StringFixed(2))
	assert.Equal(t, 2, b.TransactionCount)

	st, err := e.ledgers.Statement(e.ctx, owner, l.ID)
	require.NoError(t, err)
	require.Len(t, st.Rows, 2)
	assert.EqualValues(t, "150.00", st.Rows[0].Balance)
	assert.EqualValues(t, "120.00", st.Rows[1].Balance)
}
