package service

import (
	"encoding/json"
	"testing"

	"budgie/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTxs() []models.Transaction {
	return []models.Transaction{
		{ID: 1, Date: "2025-05-01", Description: "Paycheck", CreditAmount: dec("50"), DebitAmount: dec("0"), IsCleared: true},
		{ID: 2, Date: "2025-05-02", Description: "Groceries", CreditAmount: dec("0"), DebitAmount: dec("30")},
	}
}

func TestRunningBalances(t *testing.T) {
	txs := sampleTxs()
	got := RunningBalances(dec("100"), txs)
	assert.Equal(t, []string{"150.00", "120.00"}, fixed(got))

	totals := ComputeTotals(dec("100"), txs)
	assert.Equal(t, "50.00", totals.TotalCredit.StringFixed(2))
	assert.Equal(t, "30.00", totals.TotalDebit.StringFixed(2))
	assert.Equal(t, "120.00", totals.FinalBalance.StringFixed(2))
	assert.True(t, totals.FinalBalance.Equal(CurrentBalance(dec("100"), txs)))
}

func TestRunningBalances_Empty(t *testing.T) {
	assert.Empty(t, RunningBalances(dec("10"), nil))
	assert.Equal(t, "10.00", CurrentBalance(dec("10"), nil).StringFixed(2))
	assert.Equal(t, "10.00", ComputeTotals(dec("10"), nil).FinalBalance.StringFixed(2))
}

func TestRunningBalances_NoStepRounding(t *testing.T) {
	// 0.1 + 0.2 必须精确等于 0.30
	txs := []models.Transaction{
		{CreditAmount: dec("0.1"), DebitAmount: dec("0")},
		{CreditAmount: dec("0.2"), DebitAmount: dec("0")},
	}
	got := RunningBalances(dec("0"), txs)
	assert.True(t, got[1].Equal(dec("0.3")))
}

func TestClearedBalance(t *testing.T) {
	txs := sampleTxs()
	assert.Equal(t, "150.00", ClearedBalance(dec("100"), txs).StringFixed(2))

	txs[0].IsCleared = false
	assert.Equal(t, "100.00", ClearedBalance(dec("100"), txs).StringFixed(2))

	txs[1].IsCleared = true
	assert.Equal(t, "70.00", ClearedBalance(dec("100"), txs).StringFixed(2))
}

func TestDebitDisplay(t *testing.T) {
	assert.Equal(t, "(12.50)", DebitDisplay(dec("12.5")))
	assert.Equal(t, "0.00", DebitDisplay(dec("0")))
}

func TestBuildStatement(t *testing.T) {
	l := &models.Ledger{ID: 7, Name: "May", StartingBalance: dec("10")}
	txs := []models.Transaction{
		{ID: 1, Date: "2025-05-01", Description: "Rent", CreditAmount: dec("0"), DebitAmount: dec("25.5")},
		{ID: 2, Date: "2025-05-03", Description: "Refund", CreditAmount: dec("5"), DebitAmount: dec("0"), IsCleared: true},
	}

	st := BuildStatement(l, txs)
	require.Len(t, st.Rows, 2)
	assert.Equal(t, json.Number("-15.50"), st.Rows[0].Balance)
	assert.True(t, st.Rows[0].Negative)
	assert.Equal(t, json.Number("-10.50"), st.Rows[1].Balance)
	assert.Equal(t, json.Number("5.00"), st.Totals.TotalCredit)
	assert.Equal(t, "(25.50)", st.Totals.DebitDisplay)
	assert.Equal(t, json.Number("-10.50"), st.Totals.FinalBalance)
	assert.True(t, st.Totals.Negative)
	assert.Equal(t, json.Number("15.00"), st.Totals.ClearedBalance)

	raw, err := json.Marshal(st.Totals)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"final_balance":-10.50`)
}
