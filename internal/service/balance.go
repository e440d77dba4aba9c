package service

import (
	"encoding/json"

	"budgie/internal/models"

	"github.com/shopspring/decimal"
)

// 余额按精确小数累加，只在输出时（Fixed / StringFixed）保留两位，中间步骤不取整

// RunningBalances 按给定顺序返回每笔交易之后的余额
func RunningBalances(start decimal.Decimal, txs []models.Transaction) []decimal.Decimal {
	out := make([]decimal.Decimal, len(txs))
	bal := start
	for i := range txs {
		bal = bal.Add(txs[i].Effect())
		out[i] = bal
	}
	return out
}

// CurrentBalance 期初余额 + 全部收入 − 全部支出
func CurrentBalance(start decimal.Decimal, txs []models.Transaction) decimal.Decimal {
	bal := start
	for i := range txs {
		bal = bal.Add(txs[i].Effect())
	}
	return bal
}

// ClearedBalance 同 CurrentBalance，但只统计已对账的交易
func ClearedBalance(start decimal.Decimal, txs []models.Transaction) decimal.Decimal {
	bal := start
	for i := range txs {
		if txs[i].IsCleared {
			bal = bal.Add(txs[i].Effect())
		}
	}
	return bal
}

// Totals 账本交易的汇总
type Totals struct {
	TotalCredit  decimal.Decimal
	TotalDebit   decimal.Decimal
	FinalBalance decimal.Decimal
}

// ComputeTotals 汇总收入和支出，FinalBalance 与 CurrentBalance 相同
func ComputeTotals(start decimal.Decimal, txs []models.Transaction) Totals {
	t := Totals{TotalCredit: decimal.Zero, TotalDebit: decimal.Zero}
	for i := range txs {
		t.TotalCredit = t.TotalCredit.Add(txs[i].CreditAmount)
		t.TotalDebit = t.TotalDebit.Add(txs[i].DebitAmount)
	}
	t.FinalBalance = start.Add(t.TotalCredit).Sub(t.TotalDebit)
	return t
}

// Fixed 以两位小数的 JSON 数字输出
func Fixed(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// DebitDisplay 支出合计的显示形式：大于 0 时为 "(12.50)"，否则为 "0.00"
func DebitDisplay(d decimal.Decimal) string {
	if d.IsPositive() {
		return "(" + d.StringFixed(2) + ")"
	}
	return "0.00"
}

// StatementRow 对账单中的一行：交易及其之后的余额
type StatementRow struct {
	ID          uint        `json:"id"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Credit      json.Number `json:"credit_amount"`
	Debit       json.Number `json:"debit_amount"`
	Balance     json.Number `json:"balance"`
	Negative    bool        `json:"negative"`
	IsPaid      bool        `json:"is_paid"`
	IsCleared   bool        `json:"is_cleared"`
	SortOrder   int         `json:"sort_order"`
}

// StatementTotals 对账单的合计行
type StatementTotals struct {
	TotalCredit    json.Number `json:"total_credit"`
	TotalDebit     json.Number `json:"total_debit"`
	DebitDisplay   string      `json:"debit_display"`
	FinalBalance   json.Number `json:"final_balance"`
	Negative       bool        `json:"negative"`
	ClearedBalance json.Number `json:"cleared_balance"`
}

// Statement 按显示顺序排列的账本对账单
type Statement struct {
	LedgerID            uint            `json:"ledger_id"`
	LedgerName          string          `json:"ledger_name"`
	StartingBalance     json.Number     `json:"starting_balance"`
	StartingBalanceDate *string         `json:"starting_balance_date"`
	Rows                []StatementRow  `json:"rows"`
	Totals              StatementTotals `json:"totals"`
}

// BuildStatement 计算逐笔余额和合计，txs 必须已按显示顺序排好
func BuildStatement(l *models.Ledger, txs []models.Transaction) Statement {
	running := RunningBalances(l.StartingBalance, txs)
	rows := make([]StatementRow, len(txs))
	for i := range txs {
		tx := &txs[i]
		rows[i] = StatementRow{
			ID:          tx.ID,
			Date:        tx.Date,
			Description: tx.Description,
			Credit:      Fixed(tx.CreditAmount),
			Debit:       Fixed(tx.DebitAmount),
			Balance:     Fixed(running[i]),
			Negative:    running[i].IsNegative(),
			IsPaid:      tx.IsPaid,
			IsCleared:   tx.IsCleared,
			SortOrder:   tx.SortOrder,
		}
	}

	totals := ComputeTotals(l.StartingBalance, txs)
	return Statement{
		LedgerID:            l.ID,
		LedgerName:          l.Name,
		StartingBalance:     Fixed(l.StartingBalance),
		StartingBalanceDate: l.StartingBalanceDate,
		Rows:                rows,
		Totals: StatementTotals{
			TotalCredit:    Fixed(totals.TotalCredit),
			TotalDebit:     Fixed(totals.TotalDebit),
			DebitDisplay:   DebitDisplay(totals.TotalDebit),
			FinalBalance:   Fixed(totals.FinalBalance),
			Negative:       totals.FinalBalance.IsNegative(),
			ClearedBalance: Fixed(ClearedBalance(l.StartingBalance, txs)),
		},
	}
}
