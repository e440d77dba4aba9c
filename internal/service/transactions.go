package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgie/internal/models"
	"budgie/internal/util"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionService 管理用户账本中的交易
type TransactionService struct {
	DB *gorm.DB
}

func NewTransactionService(db *gorm.DB) *TransactionService {
	return &TransactionService{DB: db}
}

func displayOrder(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("id ASC")
}

func dateOrder(db *gorm.DB) *gorm.DB {
	return db.Order("date ASC").Order("sort_order ASC").Order("id ASC")
}

type AddTransactionInput struct {
	LedgerID     uint
	Date         string
	Description  string
	CreditAmount decimal.Decimal
	DebitAmount  decimal.Decimal
	IsPaid       bool
	IsCleared    bool
	// SortOrder 为 nil 时排在当前最后一笔之后
	SortOrder *int
}

type UpdateTransactionInput struct {
	Date         *string
	Description  *string
	CreditAmount *decimal.Decimal
	DebitAmount  *decimal.Decimal
	IsPaid       *bool
	IsCleared    *bool
	SortOrder    *int
}

// ListFilter List 的筛选条件，零值表示不筛选
type ListFilter struct {
	LedgerID  uint
	StartDate string
	EndDate   string
	IsPaid    *bool
	IsCleared *bool
	// ByDate 先按日期再按 sort_order 排序
	ByDate bool
}

func checkDate(v *validator, field, s string) string {
	norm, err := util.NormalizeDate(s)
	if err != nil {
		v.add(field, "Must be a valid date in YYYY-MM-DD format")
	}
	return norm
}

func checkDescription(v *validator, field, s string) string {
	s = strings.TrimSpace(s)
	if err := util.ValidateText(s, maxDescriptionLen); err != nil {
		v.add(field, "Description "+err.Error())
	}
	return s
}

func checkAmount(v *validator, field string, d decimal.Decimal) decimal.Decimal {
	if err := util.ValidateAmount(d); err != nil {
		v.add(field, "Must be a non-negative amount")
	}
	return d.Round(2)
}

// checkSingleSided 收入和支出不能同时大于 0
func checkSingleSided(v *validator, prefix string, credit, debit decimal.Decimal) {
	if credit.IsPositive() && debit.IsPositive() {
		v.add(prefix+"debit_amount", "A transaction cannot have both a credit and a debit amount")
	}
}

// ownedTransaction 读取所属账本归 owner 的交易
func ownedTransaction(db *gorm.DB, owner, id uint) (*models.Transaction, error) {
	var t models.Transaction
	err := db.Joins("JOIN ledgers ON ledgers.id = transactions.ledger_id").
		Where("transactions.id = ? AND ledgers.user_id = ?", id, owner).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %d: %w", id, err)
	}
	return &t, nil
}

func nextSortOrder(db *gorm.DB, ledgerID uint) (int, error) {
	var max *int
	err := db.Model(&models.Transaction{}).
		Where("ledger_id = ?", ledgerID).
		Select("MAX(sort_order)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("next sort order: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

// Add 在 owner 的账本中新增交易
func (s *TransactionService) Add(ctx context.Context, owner uint, in AddTransactionInput) (*models.Transaction, error) {
	var v validator
	t := &models.Transaction{
		LedgerID:     in.LedgerID,
		Date:         checkDate(&v, "date", in.Date),
		Description:  checkDescription(&v, "description", in.Description),
		CreditAmount: checkAmount(&v, "credit_amount", in.CreditAmount),
		DebitAmount:  checkAmount(&v, "debit_amount", in.DebitAmount),
		IsPaid:       in.IsPaid,
		IsCleared:    in.IsCleared,
	}
	checkSingleSided(&v, "", t.CreditAmount, t.DebitAmount)
	if err := v.err(); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedLedger(tx, owner, in.LedgerID); err != nil {
			return err
		}
		if in.SortOrder != nil {
			t.SortOrder = *in.SortOrder
		} else {
			next, err := nextSortOrder(tx, in.LedgerID)
			if err != nil {
				return err
			}
			t.SortOrder = next
		}
		if err := tx.Create(t).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get 返回 owner 的一笔交易
func (s *TransactionService) Get(ctx context.Context, owner, id uint) (*models.Transaction, error) {
	return ownedTransaction(s.DB.WithContext(ctx), owner, id)
}

// Update 只覆盖传入的字段
func (s *TransactionService) Update(ctx context.Context, owner, id uint, in UpdateTransactionInput) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := ownedTransaction(tx, owner, id)
		if err != nil {
			return err
		}

		var v validator
		if in.Date != nil {
			t.Date = checkDate(&v, "date", *in.Date)
		}
		if in.Description != nil {
			t.Description = checkDescription(&v, "description", *in.Description)
		}
		if in.CreditAmount != nil {
			t.CreditAmount = checkAmount(&v, "credit_amount", *in.CreditAmount)
		}
		if in.DebitAmount != nil {
			t.DebitAmount = checkAmount(&v, "debit_amount", *in.DebitAmount)
		}
		if in.IsPaid != nil {
			t.IsPaid = *in.IsPaid
		}
		if in.IsCleared != nil {
			t.IsCleared = *in.IsCleared
		}
		if in.SortOrder != nil {
			t.SortOrder = *in.SortOrder
		}
		checkSingleSided(&v, "", t.CreditAmount, t.DebitAmount)
		if err := v.err(); err != nil {
			return err
		}

		if err := tx.Save(t).Error; err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete 删除 owner 的一笔交易
func (s *TransactionService) Delete(ctx context.Context, owner, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := ownedTransaction(tx, owner, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Transaction{}, t.ID).Error; err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
}

func (s *TransactionService) toggle(ctx context.Context, owner, id uint, column string, flip func(*models.Transaction) bool) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := ownedTransaction(tx, owner, id)
		if err != nil {
			return err
		}
		if err := tx.Model(t).Update(column, flip(t)).Error; err != nil {
			return fmt.Errorf("toggle %s: %w", column, err)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TogglePaid 切换 is_paid 并返回更新后的交易
func (s *TransactionService) TogglePaid(ctx context.Context, owner, id uint) (*models.Transaction, error) {
	return s.toggle(ctx, owner, id, "is_paid", func(t *models.Transaction) bool {
		t.IsPaid = !t.IsPaid
		return t.IsPaid
	})
}

// ToggleCleared 切换 is_cleared 并返回更新后的交易
func (s *TransactionService) ToggleCleared(ctx context.Context, owner, id uint) (*models.Transaction, error) {
	return s.toggle(ctx, owner, id, "is_cleared", func(t *models.Transaction) bool {
		t.IsCleared = !t.IsCleared
		return t.IsCleared
	})
}

// Reorder 把每个 id 的 sort_order 设为它在 ids 中的位置。
// 不属于该账本的 id 跳过，未列出的交易保持原值；所有更新在同一个事务中提交
func (s *TransactionService) Reorder(ctx context.Context, owner, ledgerID uint, ids []uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedLedger(tx, owner, ledgerID); err != nil {
			return err
		}
		for i, id := range ids {
			err := tx.Model(&models.Transaction{}).
				Where("id = ? AND ledger_id = ?", id, ledgerID).
				Update("sort_order", i).Error
			if err != nil {
				return fmt.Errorf("reorder transaction %d: %w", id, err)
			}
		}
		return nil
	})
}

// List 返回 owner 符合 f 的交易
func (s *TransactionService) List(ctx context.Context, owner uint, f ListFilter) ([]models.Transaction, error) {
	var v validator
	var start, end string
	if f.StartDate != "" {
		start = checkDate(&v, "start_date", f.StartDate)
	}
	if f.EndDate != "" {
		end = checkDate(&v, "end_date", f.EndDate)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	if f.LedgerID != 0 {
		if _, err := ownedLedger(db, owner, f.LedgerID); err != nil {
			return nil, err
		}
	}

	q := db.Model(&models.Transaction{}).
		Joins("JOIN ledgers ON ledgers.id = transactions.ledger_id").
		Where("ledgers.user_id = ?", owner)
	if f.LedgerID != 0 {
		q = q.Where("transactions.ledger_id = ?", f.LedgerID)
	}
	if start != "" {
		q = q.Where("transactions.date >= ?", start)
	}
	if end != "" {
		q = q.Where("transactions.date <= ?", end)
	}
	if f.IsPaid != nil {
		q = q.Where("transactions.is_paid = ?", *f.IsPaid)
	}
	if f.IsCleared != nil {
		q = q.Where("transactions.is_cleared = ?", *f.IsCleared)
	}
	if f.ByDate {
		q = q.Order("transactions.date ASC")
	}
	q = q.Order("transactions.sort_order ASC").Order("transactions.id ASC")

	var txs []models.Transaction
	if err := q.Select("transactions.*").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
