package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"budgie/internal/models"
	"budgie/internal/util"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DocumentVersion 写入每份导出文件
const DocumentVersion = "1.0"

// ExportDocument 账本的导出格式
type ExportDocument struct {
	Name                string              `json:"name"`
	StartingBalance     json.Number         `json:"startingBalance"`
	StartingBalanceDate *string             `json:"startingBalanceDate"`
	Transactions        []ExportTransaction `json:"transactions"`
	ExportDate          time.Time           `json:"exportDate"`
	Version             string              `json:"version"`
}

type ExportTransaction struct {
	ID          string      `json:"id"`
	Sequence    int         `json:"sequence"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Credit      json.Number `json:"credit"`
	Debit       json.Number `json:"debit"`
	IsPaid      bool        `json:"isPaid"`
	IsCleared   bool        `json:"isCleared"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// ImportDocument DecodeDocument 的解析结果，导出字段名和 snake_case 列名都接受
type ImportDocument struct {
	Name                   string              `json:"name"`
	StartingBalance        *decimal.Decimal    `json:"startingBalance"`
	StartingBalanceAlt     *decimal.Decimal    `json:"starting_balance"`
	StartingBalanceDate    *string             `json:"startingBalanceDate"`
	StartingBalanceDateAlt *string             `json:"starting_balance_date"`
	Transactions           []ImportTransaction `json:"transactions"`
}

type ImportTransaction struct {
	Date         string           `json:"date"`
	Description  string           `json:"description"`
	Credit       *decimal.Decimal `json:"credit"`
	CreditAmount *decimal.Decimal `json:"credit_amount"`
	Debit        *decimal.Decimal `json:"debit"`
	DebitAmount  *decimal.Decimal `json:"debit_amount"`
	IsPaid       *bool            `json:"isPaid"`
	IsPaidAlt    *bool            `json:"is_paid"`
	IsCleared    *bool            `json:"isCleared"`
	IsClearedAlt *bool            `json:"is_cleared"`
	Sequence     *int             `json:"sequence"`
	SortOrder    *int             `json:"sort_order"`
}

func firstDecimal(vals ...*decimal.Decimal) decimal.Decimal {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return decimal.Zero
}

func firstBool(vals ...*bool) bool {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return false
}

func firstString(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

type ImportInput struct {
	// Data 为 base64 编码的 JSON 或原始 JSON
	Data       string
	ShiftMonth bool
}

type ImportResult struct {
	Ledger           *models.Ledger
	TransactionCount int
	DateShifted      bool
	DaysShifted      int
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ExportFilename 生成导出文件名
func ExportFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_") + "_export.txt"
}

// EncodeDocument 输出 base64(JSON)
func EncodeDocument(doc *ExportDocument) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode export document: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeDocument 接受 base64(JSON) 或原始 JSON
func DecodeDocument(data string) (*ImportDocument, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fieldError("data", "Export data is required")
	}

	var doc ImportDocument
	if raw, err := base64.StdEncoding.DecodeString(data); err == nil {
		if json.Unmarshal(raw, &doc) == nil {
			return &doc, nil
		}
		doc = ImportDocument{}
	}
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fieldError("data", "Invalid export data format. Expected base64-encoded JSON or plain JSON.")
	}
	return &doc, nil
}

// Copy 以新名称复制账本及其交易，副本不锁定、不归档
func (s *LedgerService) Copy(ctx context.Context, owner, id uint) (*LedgerView, error) {
	var out *LedgerView
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := ownedLedger(tx, owner, id)
		if err != nil {
			return err
		}
		txs, err := loadTransactions(tx, src.ID)
		if err != nil {
			return err
		}

		name, err := findUniqueName(tx, owner, fitName(src.Name, " (Copy)"), CopySuffix(src.Name))
		if err != nil {
			return err
		}
		dst := &models.Ledger{
			UserID:              owner,
			Name:                name,
			StartingBalance:     src.StartingBalance,
			StartingBalanceDate: src.StartingBalanceDate,
		}
		if err := insertLedger(tx, dst); err != nil {
			return err
		}

		copies := make([]models.Transaction, len(txs))
		for i, t := range txs {
			copies[i] = models.Transaction{
				LedgerID:     dst.ID,
				Date:         t.Date,
				Description:  t.Description,
				CreditAmount: t.CreditAmount,
				DebitAmount:  t.DebitAmount,
				IsPaid:       t.IsPaid,
				IsCleared:    t.IsCleared,
				SortOrder:    t.SortOrder,
			}
		}
		if len(copies) > 0 {
			if err := tx.CreateInBatches(copies, 200).Error; err != nil {
				return fmt.Errorf("copy transactions: %w", err)
			}
		}
		out = &LedgerView{Ledger: *dst, Transactions: copies}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Export 生成账本的导出文档，交易按日期、sort_order 排序并从 0 重新编号
func (s *LedgerService) Export(ctx context.Context, owner, id uint) (*ExportDocument, error) {
	db := s.DB.WithContext(ctx)
	l, err := ownedLedger(db, owner, id)
	if err != nil {
		return nil, err
	}
	var txs []models.Transaction
	if err := dateOrder(db.Where("ledger_id = ?", l.ID)).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	doc := &ExportDocument{
		Name:                l.Name,
		StartingBalance:     Fixed(l.StartingBalance),
		StartingBalanceDate: l.StartingBalanceDate,
		Transactions:        make([]ExportTransaction, len(txs)),
		ExportDate:          s.Now().UTC(),
		Version:             DocumentVersion,
	}
	for i, t := range txs {
		doc.Transactions[i] = ExportTransaction{
			ID:          strconv.FormatUint(uint64(t.ID), 10),
			Sequence:    i,
			Date:        t.Date,
			Description: t.Description,
			Credit:      Fixed(t.CreditAmount),
			Debit:       Fixed(t.DebitAmount),
			IsPaid:      t.IsPaid,
			IsCleared:   t.IsCleared,
			CreatedAt:   t.CreatedAt,
		}
	}
	return doc, nil
}

// ShiftDays 返回把 earliest 平移到 now 所在月份（日不变）所需的天数，
// 目标月份没有这一天时顺延到下个月
func ShiftDays(earliest, now time.Time) int {
	target := time.Date(now.Year(), now.Month(), earliest.Day(), 0, 0, 0, 0, time.UTC)
	from := time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, time.UTC)
	return int(target.Sub(from).Hours() / 24)
}

func shiftDate(date string, days int) string {
	if days == 0 {
		return date
	}
	t, err := util.ParseDate(date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format(util.DateLayout)
}

// Import 从导出文档创建新账本。ShiftMonth 时账本以当前月份命名，
// 所有日期整体平移使最早一笔落在本月，并清除已付和已对账标记
func (s *LedgerService) Import(ctx context.Context, owner uint, in ImportInput) (*ImportResult, error) {
	doc, err := DecodeDocument(in.Data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fieldError("name", "Export data must include a ledger name")
	}
	now := s.Now()

	var v validator
	base := normalizeLedgerName(&v, doc.Name)
	if in.ShiftMonth {
		base = fmt.Sprintf("%s %d", now.Month(), now.Year())
	}
	balance := validateStartingBalance(&v, firstDecimal(doc.StartingBalance, doc.StartingBalanceAlt))
	balanceDate := normalizeOptionalDate(&v, "startingBalanceDate", firstString(doc.StartingBalanceDate, doc.StartingBalanceDateAlt))

	txs := make([]models.Transaction, len(doc.Transactions))
	for i, it := range doc.Transactions {
		prefix := fmt.Sprintf("transactions[%d].", i)
		t := models.Transaction{
			Date:         checkDate(&v, prefix+"date", it.Date),
			Description:  checkDescription(&v, prefix+"description", it.Description),
			CreditAmount: checkAmount(&v, prefix+"credit", firstDecimal(it.Credit, it.CreditAmount)),
			DebitAmount:  checkAmount(&v, prefix+"debit", firstDecimal(it.Debit, it.DebitAmount)),
			SortOrder:    i,
		}
		checkSingleSided(&v, prefix, t.CreditAmount, t.DebitAmount)
		if !in.ShiftMonth {
			t.IsPaid = firstBool(it.IsPaid, it.IsPaidAlt)
			t.IsCleared = firstBool(it.IsCleared, it.IsClearedAlt)
		}
		if it.Sequence != nil {
			t.SortOrder = *it.Sequence
		} else if it.SortOrder != nil {
			t.SortOrder = *it.SortOrder
		}
		txs[i] = t
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	days := 0
	if in.ShiftMonth && len(txs) > 0 {
		earliest := txs[0].Date
		for _, t := range txs[1:] {
			if t.Date < earliest {
				earliest = t.Date
			}
		}
		e, err := util.ParseDate(earliest)
		if err != nil {
			return nil, fieldError("transactions", "Invalid transaction date")
		}
		days = ShiftDays(e, now)
		for i := range txs {
			txs[i].Date = shiftDate(txs[i].Date, days)
		}
		if balanceDate != nil {
			shifted := shiftDate(*balanceDate, days)
			balanceDate = &shifted
		}
	}

	var l *models.Ledger
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		name, err := findUniqueName(tx, owner, base, NumberedSuffix(base))
		if err != nil {
			return err
		}
		l = &models.Ledger{
			UserID:              owner,
			Name:                name,
			StartingBalance:     balance,
			StartingBalanceDate: balanceDate,
		}
		if err := insertLedger(tx, l); err != nil {
			return err
		}
		if len(txs) == 0 {
			return nil
		}
		for i := range txs {
			txs[i].LedgerID = l.ID
		}
		if err := tx.CreateInBatches(txs, 200).Error; err != nil {
			return fmt.Errorf("import transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ImportResult{
		Ledger:           l,
		TransactionCount: len(txs),
		DateShifted:      in.ShiftMonth,
		DaysShifted:      days,
	}, nil
}
