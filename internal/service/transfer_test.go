package service

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyLedger(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	src, err := e.ledgers.Create(e.ctx, owner, CreateLedgerInput{Name: "May", StartingBalance: dec("100"), StartingBalanceDate: ptr("2025-05-01")})
	require.NoError(t, err)
	a := e.add(t, owner, src.ID, "2025-05-01", "Pay", "50", "0")
	e.add(t, owner, src.ID, "2025-05-02", "Food", "0", "30")
	_, err = e.txs.TogglePaid(e.ctx, owner, a.ID)
	require.NoError(t, err)
	require.NoError(t, e.txs.Reorder(e.ctx, owner, src.ID, []uint{a.ID}))
	_, err = e.ledgers.Update(e.ctx, owner, src.ID, UpdateLedgerInput{IsLocked: ptr(true), IsArchived: ptr(true)})
	require.NoError(t, err)

	cp, err := e.ledgers.Copy(e.ctx, owner, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "May (Copy)", cp.Ledger.Name)
	assert.NotEqual(t, src.ID, cp.Ledger.ID)
	assert.False(t, cp.Ledger.IsLocked)
	assert.False(t, cp.Ledger.IsArchived)
	assert.Equal(t, "100.00", cp.Ledger.StartingBalance.StringFixed(2))
	require.NotNil(t, cp.Ledger.StartingBalanceDate)
	assert.Equal(t, "2025-05-01", *cp.Ledger.StartingBalanceDate)

	orig, err := e.ledgers.Get(e.ctx, owner, src.ID)
	require.NoError(t, err)
	copied, err := e.ledgers.Get(e.ctx, owner, cp.Ledger.ID)
	require.NoError(t, err)
	require.Len(t, copied.Transactions, len(orig.Transactions))
	for i := range orig.Transactions {
		o, c := orig.Transactions[i], copied.Transactions[i]
		assert.NotEqual(t, o.ID, c.ID)
		assert.Equal(t, o.Date, c.Date)
		assert.Equal(t, o.Description, c.Description)
		assert.True(t, o.CreditAmount.Equal(c.CreditAmount))
		assert.True(t, o.DebitAmount.Equal(c.DebitAmount))
		assert.Equal(t, o.IsPaid, c.IsPaid)
		assert.Equal(t, o.SortOrder, c.SortOrder)
	}
	assert.True(t, orig.CurrentBalance().Equal(copied.CurrentBalance()))

	again, err := e.ledgers.Copy(e.ctx, owner, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "May (Copy 2)", again.Ledger.Name)

	_, err = e.ledgers.Copy(e.ctx, e.user(t), src.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExport(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	l := e.ledger(t, owner, "My Budget!", "10")
	late := e.add(t, owner, l.ID, "2025-05-09", "Late", "5", "0")
	early := e.add(t, owner, l.ID, "2025-05-01", "Early", "0", "2.5")
	same := e.add(t, owner, l.ID, "2025-05-09", "Same day", "1", "0")
	require.NoError(t, e.txs.Reorder(e.ctx, owner, l.ID, []uint{same.ID, late.ID, early.ID}))

	doc, err := e.ledgers.Export(e.ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Budget!", doc.Name)
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.Equal(t, json.Number("10.00"), doc.StartingBalance)
	assert.Equal(t, e.ledgers.Now().UTC(), doc.ExportDate)
	require.Len(t, doc.Transactions, 3)
	assert.Equal(t, "Early", doc.Transactions[0].Description)
	assert.Equal(t, "Same day", doc.Transactions[1].Description)
	assert.Equal(t, "Late", doc.Transactions[2].Description)
	for i, tx := range doc.Transactions {
		assert.Equal(t, i, tx.Sequence)
	}
	assert.Equal(t, json.Number("2.50"), doc.Transactions[0].Debit)

	assert.Equal(t, "My_Budget__export.txt", ExportFilename(doc.Name))

	encoded, err := EncodeDocument(doc)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":"1.0"`)
	assert.Contains(t, string(raw), `"startingBalance":10.00`)
}

func TestImport_RoundTrip(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	l, err := e.ledgers.Create(e.ctx, owner, CreateLedgerInput{Name: "Budget", StartingBalance: dec("250.75"), StartingBalanceDate: ptr("2025-04-30")})
	require.NoError(t, err)
	paid := e.add(t, owner, l.ID, "2025-05-01", "Pay", "1200", "0")
	e.add(t, owner, l.ID, "2025-05-03", "Rent", "0", "800.10")
	_, err = e.txs.TogglePaid(e.ctx, owner, paid.ID)
	require.NoError(t, err)
	_, err = e.txs.ToggleCleared(e.ctx, owner, paid.ID)
	require.NoError(t, err)

	doc, err := e.ledgers.Export(e.ctx, owner, l.ID)
	require.NoError(t, err)
	data, err := EncodeDocument(doc)
	require.NoError(t, err)

	res, err := e.ledgers.Import(e.ctx, owner, ImportInput{Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Budget (2)", res.Ledger.Name)
	assert.False(t, res.DateShifted)
	assert.Zero(t, res.DaysShifted)
	assert.Equal(t, 2, res.TransactionCount)

	src, err := e.ledgers.Get(e.ctx, owner, l.ID)
	require.NoError(t, err)
	dst, err := e.ledgers.Get(e.ctx, owner, res.Ledger.ID)
	require.NoError(t, err)
	assert.True(t, src.Ledger.StartingBalance.Equal(dst.Ledger.StartingBalance))
	assert.Equal(t, *src.Ledger.StartingBalanceDate, *dst.Ledger.StartingBalanceDate)
	require.Len(t, dst.Transactions, len(src.Transactions))
	for i := range src.Transactions {
		s, d := src.Transactions[i], dst.Transactions[i]
		assert.Equal(t, s.Date, d.Date)
		assert.Equal(t, s.Description, d.Description)
		assert.True(t, s.CreditAmount.Equal(d.CreditAmount))
		assert.True(t, s.DebitAmount.Equal(d.DebitAmount))
		assert.Equal(t, s.IsPaid, d.IsPaid)
		assert.Equal(t, s.IsCleared, d.IsCleared)
	}

	again, err := e.ledgers.Import(e.ctx, owner, ImportInput{Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Budget (3)", again.Ledger.Name)
}

func TestImport_ShiftMonth(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	e.ledger(t, owner, "June 2025", "0")

	raw := `{
		"name": "January",
		"startingBalance": 50,
		"startingBalanceDate": "2025-01-01",
		"transactions": [
			{"date": "2025-01-20", "description": "Later", "debit": 10, "isPaid": true, "isCleared": true, "sequence": 1},
			{"date": "2025-01-05", "description": "Earliest", "credit": "5.25", "isPaid": true, "sequence": 0}
		]
	}`
	res, err := e.ledgers.Import(e.ctx, owner, ImportInput{Data: raw, ShiftMonth: true})
	require.NoError(t, err)

	// 2025-01-05 平移到 2025-06-05
	assert.True(t, res.DateShifted)
	assert.Equal(t, 151, res.DaysShifted)
	assert.Equal(t, "June 2025 (2)", res.Ledger.Name)
	require.NotNil(t, res.Ledger.StartingBalanceDate)
	assert.Equal(t, "2025-06-01", *res.Ledger.StartingBalanceDate)

	view, err := e.ledgers.Get(e.ctx, owner, res.Ledger.ID)
	require.NoError(t, err)
	require.Len(t, view.Transactions, 2)
	assert.Equal(t, "Earliest", view.Transactions[0].Description)
	assert.Equal(t, "2025-06-05", view.Transactions[0].Date)
	assert.Equal(t, "2025-06-20", view.Transactions[1].Date)
	for _, tx := range view.Transactions {
		assert.False(t, tx.IsPaid)
		assert.False(t, tx.IsCleared)
	}
	assert.Equal(t, "5.25", view.Transactions[0].CreditAmount.StringFixed(2))
}

func TestShiftDays(t *testing.T) {
	jan5 := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 151, ShiftDays(jan5, time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, ShiftDays(jan5, time.Date(2025, 1, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -31, ShiftDays(time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), jan5))

	// 2 月没有 31 日，顺延到 3 月
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 31, ShiftDays(jan31, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))
}

func TestImport_AliasesAndDefaults(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)

	raw := `{
		"name": "Legacy",
		"starting_balance": "-20.5",
		"transactions": [
			{"date": "2025-03-01", "description": "A", "credit_amount": 3, "is_paid": true, "sort_order": 7},
			{"date": "2025-03-02", "description": "B", "debit_amount": "4.5", "is_cleared": true},
			{"date": "2025-03-03", "description": "C"}
		]
	}`
	res, err := e.ledgers.Import(e.ctx, owner, ImportInput{Data: base64.StdEncoding.EncodeToString([]byte(raw))})
	require.NoError(t, err)
	assert.Equal(t, "Legacy", res.Ledger.Name)
	assert.Equal(t, "-20.50", res.Ledger.StartingBalance.StringFixed(2))
	assert.Nil(t, res.Ledger.StartingBalanceDate)

	view, err := e.ledgers.Get(e.ctx, owner, res.Ledger.ID)
	require.NoError(t, err)
	require.Len(t, view.Transactions, 3)
	byDesc := map[string]int{}
	for i, tx := range view.Transactions {
		byDesc[tx.Description] = i
	}
	a := view.Transactions[byDesc["A"]]
	b := view.Transactions[byDesc["B"]]
	c := view.Transactions[byDesc["C"]]
	assert.Equal(t, 7, a.SortOrder)
	assert.True(t, a.IsPaid)
	assert.Equal(t, "3.00", a.CreditAmount.StringFixed(2))
	assert.Equal(t, 1, b.SortOrder)
	assert.True(t, b.IsCleared)
	assert.Equal(t, "4.50", b.DebitAmount.StringFixed(2))
	assert.Equal(t, 2, c.SortOrder)
	assert.True(t, c.CreditAmount.IsZero())
	assert.True(t, c.DebitAmount.IsZero())
}

func TestImport_Rejects(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)

	for name, data := range map[string]string{
		"empty":       "",
		"garbage":     "not base64 or json",
		"no name":     `{"transactions": []}`,
		"bad tx date": `{"name": "X", "transactions": [{"date": "someday", "description": "x"}]}`,
		"two-sided":   `{"name": "X", "transactions": [{"date": "2025-01-01", "description": "x", "credit": 1, "debit": 1}]}`,
	} {
		_, err := e.ledgers.Import(e.ctx, owner, ImportInput{Data: data})
		assert.ErrorIs(t, err, ErrValidation, name)
	}

	_, err := e.ledgers.Import(e.ctx, owner, ImportInput{Data: `{"name": "X", "transactions": [{"date": "2025-01-01", "description": "ok"}, {"date": "2025-01-02", "description": ""}]}`})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "transactions[1].description", se.Details[0].Field)

	// 失败的导入不写入任何数据
	views, err := e.ledgers.List(e.ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestCopyAndImport_LongNamesStayWithinLimit(t *testing.T) {
	e := newTestEnv(t)
	owner := e.user(t)
	long := strings.Repeat("a", maxLedgerNameLen)
	l := e.ledger(t, owner, long, "10")

	first, err := e.ledgers.Copy(e.ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, maxLedgerNameLen, utf8.RuneCountInString(first.Ledger.Name))
	assert.True(t, strings.HasSuffix(first.Ledger.Name, "a (Copy)"), first.Ledger.Name)

	second, err := e.ledgers.Copy(e.ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, maxLedgerNameLen, utf8.RuneCountInString(second.Ledger.Name))
	assert.True(t, strings.HasSuffix(second.Ledger.Name, " (Copy 2)"), second.Ledger.Name)

	// 复制出来的名字仍然可以通过改名校验
	_, err = e.ledgers.Rename(e.ctx, owner, first.Ledger.ID, first.Ledger.Name)
	require.NoError(t, err)

	doc, err := e.ledgers.Export(e.ctx, owner, l.ID)
	require.NoError(t, err)
	data, err := EncodeDocument(doc)
	require.NoError(t, err)
	res, err := e.ledgers.Import(e.ctx, owner, ImportInput{Data: data})
	require.NoError(t, err)
	assert.Equal(t, maxLedgerNameLen, utf8.RuneCountInString(res.Ledger.Name))
	assert.True(t, strings.HasSuffix(res.Ledger.Name, "a (2)"), res.Ledger.Name)

	_, err = e.ledgers.Rename(e.ctx, owner, res.Ledger.ID, res.Ledger.Name)
	require.NoError(t, err)
}

func TestFitName(t *testing.T) {
	assert.Equal(t, "Budget (2)", fitName("Budget", " (2)"))

	// 多字节字符按 rune 截断，截断处的空格去掉
	base := strings.Repeat("账", 246) + "   tail"
	got := fitName(base, " (Copy)")
	assert.Equal(t, strings.Repeat("账", 246)+" (Copy)", got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), maxLedgerNameLen)
}
