package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"budgie/internal/models"
	"budgie/internal/util"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxLedgerNameLen  = 255
	maxDescriptionLen = 500
)

// LedgerService 管理用户的账本：创建、部分更新、锁定/归档、删除以及复制和导入导出
type LedgerService struct {
	DB *gorm.DB
	// Now 导入平移日期时使用的时钟
	Now func() time.Time
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db, Now: time.Now}
}

// LedgerView 账本及其按显示顺序排列的交易；余额等派生值读取时计算，不落库
type LedgerView struct {
	Ledger       models.Ledger
	Transactions []models.Transaction
}

func (v *LedgerView) TransactionCount() int { return len(v.Transactions) }

func (v *LedgerView) CurrentBalance() decimal.Decimal {
	return CurrentBalance(v.Ledger.StartingBalance, v.Transactions)
}

func (v *LedgerView) ClearedBalance() decimal.Decimal {
	return ClearedBalance(v.Ledger.StartingBalance, v.Transactions)
}

type CreateLedgerInput struct {
	Name                string
	StartingBalance     decimal.Decimal
	StartingBalanceDate *string
}

// UpdateLedgerInput 部分更新，nil 字段保持不变；StartingBalanceDate 指向 "" 时清空日期
type UpdateLedgerInput struct {
	Name                *string
	StartingBalance     *decimal.Decimal
	StartingBalanceDate *string
	IsLocked            *bool
	IsArchived          *bool
}

func (in *UpdateLedgerInput) touchesProtected() bool {
	return in.Name != nil || in.StartingBalance != nil || in.StartingBalanceDate != nil
}

func normalizeLedgerName(v *validator, name string) string {
	name = strings.TrimSpace(name)
	if err := util.ValidateText(name, maxLedgerNameLen); err != nil {
		v.add("name", "Ledger name "+err.Error())
	}
	return name
}

// normalizeOptionalDate 空值返回 nil
func normalizeOptionalDate(v *validator, field string, d *string) *string {
	if d == nil || strings.TrimSpace(*d) == "" {
		return nil
	}
	norm, err := util.NormalizeDate(*d)
	if err != nil {
		v.add(field, "Must be a valid date")
		return nil
	}
	return &norm
}

func validateStartingBalance(v *validator, b decimal.Decimal) decimal.Decimal {
	if err := util.ValidateBalance(b); err != nil {
		v.add("starting_balance", "Starting balance must be a valid decimal number")
	}
	return b.Round(2)
}

// ownedLedger 读取属于 owner 的账本，不存在和不属于本人一律返回 NotFound
func ownedLedger(db *gorm.DB, owner, id uint) (*models.Ledger, error) {
	var l models.Ledger
	err := db.Where("id = ? AND user_id = ?", id, owner).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Ledger")
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger %d: %w", id, err)
	}
	return &l, nil
}

func nameTaken(db *gorm.DB, owner uint, name string, exceptID uint) (bool, error) {
	var count int64
	q := db.Model(&models.Ledger{}).Where("user_id = ? AND name = ?", owner, name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check ledger name: %w", err)
	}
	return count > 0, nil
}

func insertLedger(db *gorm.DB, l *models.Ledger) error {
	err := db.Omit("User", "Transactions").Create(l).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflict("A ledger with this name already exists")
	}
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	return nil
}

func loadTransactions(db *gorm.DB, ledgerID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := displayOrder(db.Where("ledger_id = ?", ledgerID)).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return txs, nil
}

// FindUniqueName 名字未被占用时返回 desired，否则依次尝试 suffix(2)、suffix(3)……
// 每个候选名都查一次库，插入时仍由唯一索引兜底
func (s *LedgerService) FindUniqueName(ctx context.Context, owner uint, desired string, suffix func(n int) string) (string, error) {
	return findUniqueName(s.DB.WithContext(ctx), owner, desired, suffix)
}

func findUniqueName(db *gorm.DB, owner uint, desired string, suffix func(n int) string) (string, error) {
	name := desired
	for n := 2; ; n++ {
		taken, err := nameTaken(db, owner, name, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		name = suffix(n)
	}
}

// fitName 拼接 base 和 tail，必要时截短 base，保证结果不超过 maxLedgerNameLen 个字符
func fitName(base, tail string) string {
	room := maxLedgerNameLen - utf8.RuneCountInString(tail)
	if r := []rune(base); len(r) > room {
		base = strings.TrimRightFunc(string(r[:room]), unicode.IsSpace)
	}
	return base + tail
}

// NumberedSuffix 生成 "<base> (n)"
func NumberedSuffix(base string) func(int) string {
	return func(n int) string { return fitName(base, fmt.Sprintf(" (%d)", n)) }
}

// CopySuffix 生成 "<base> (Copy n)"
func CopySuffix(base string) func(int) string {
	return func(n int) string { return fitName(base, fmt.Sprintf(" (Copy %d)", n)) }
}

// Create 创建账本；重名返回 Conflict，不写入任何数据
func (s *LedgerService) Create(ctx context.Context, owner uint, in CreateLedgerInput) (*models.Ledger, error) {
	var v validator
	l := &models.Ledger{
		UserID:              owner,
		Name:                normalizeLedgerName(&v, in.Name),
		StartingBalance:     validateStartingBalance(&v, in.StartingBalance),
		StartingBalanceDate: normalizeOptionalDate(&v, "starting_balance_date", in.StartingBalanceDate),
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, owner, l.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return conflict("A ledger with this name already exists")
		}
		return insertLedger(tx, l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Get 返回账本及按显示顺序排列的交易
func (s *LedgerService) Get(ctx context.Context, owner, id uint) (*LedgerView, error) {
	db := s.DB.WithContext(ctx)
	l, err := ownedLedger(db, owner, id)
	if err != nil {
		return nil, err
	}
	txs, err := loadTransactions(db, l.ID)
	if err != nil {
		return nil, err
	}
	return &LedgerView{Ledger: *l, Transactions: txs}, nil
}

// List 按创建顺序返回 owner 的全部账本
func (s *LedgerService) List(ctx context.Context, owner uint) ([]LedgerView, error) {
	db := s.DB.WithContext(ctx)

	var ledgers []models.Ledger
	if err := db.Where("user_id = ?", owner).Order("created_at ASC, id ASC").Find(&ledgers).Error; err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	if len(ledgers) == 0 {
		return []LedgerView{}, nil
	}

	ids := make([]uint, len(ledgers))
	for i := range ledgers {
		ids[i] = ledgers[i].ID
	}
	var txs []models.Transaction
	if err := displayOrder(db.Where("ledger_id IN ?", ids)).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list ledger transactions: %w", err)
	}
	byLedger := make(map[uint][]models.Transaction, len(ledgers))
	for _, tx := range txs {
		byLedger[tx.LedgerID] = append(byLedger[tx.LedgerID], tx)
	}

	views := make([]LedgerView, len(ledgers))
	for i := range ledgers {
		views[i] = LedgerView{Ledger: ledgers[i], Transactions: byLedger[ledgers[i].ID]}
	}
	return views, nil
}

// Update 部分更新。锁定状态下不能修改名称和期初余额，锁定、归档标记随时可改
func (s *LedgerService) Update(ctx context.Context, owner, id uint, in UpdateLedgerInput) (*models.Ledger, error) {
	var v validator
	var name string
	var balance decimal.Decimal
	var date *string
	if in.Name != nil {
		name = normalizeLedgerName(&v, *in.Name)
	}
	if in.StartingBalance != nil {
		balance = validateStartingBalance(&v, *in.StartingBalance)
	}
	if in.StartingBalanceDate != nil {
		date = normalizeOptionalDate(&v, "starting_balance_date", in.StartingBalanceDate)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	var out *models.Ledger
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := ownedLedger(tx, owner, id)
		if err != nil {
			return err
		}
		if l.IsLocked && in.touchesProtected() {
			return forbidden("Cannot modify a locked ledger. Please unlock it first.")
		}

		if in.Name != nil && name != l.Name {
			taken, err := nameTaken(tx, owner, name, l.ID)
			if err != nil {
				return err
			}
			if taken {
				return conflict("A ledger with this name already exists")
			}
			l.Name = name
		}
		if in.StartingBalance != nil {
			l.StartingBalance = balance
		}
		if in.StartingBalanceDate != nil {
			l.StartingBalanceDate = date
		}
		if in.IsLocked != nil {
			l.IsLocked = *in.IsLocked
		}
		if in.IsArchived != nil {
			l.IsArchived = *in.IsArchived
		}

		err = tx.Model(l).
			Select("Name", "StartingBalance", "StartingBalanceDate", "IsLocked", "IsArchived", "UpdatedAt").
			Updates(l).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return conflict("A ledger with this name already exists")
		}
		if err != nil {
			return fmt.Errorf("update ledger: %w", err)
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rename 修改名称，锁定时禁止
func (s *LedgerService) Rename(ctx context.Context, owner, id uint, name string) (*models.Ledger, error) {
	return s.Update(ctx, owner, id, UpdateLedgerInput{Name: &name})
}

// SetLocked 任何时候都允许
func (s *LedgerService) SetLocked(ctx context.Context, owner, id uint, locked bool) (*models.Ledger, error) {
	return s.Update(ctx, owner, id, UpdateLedgerInput{IsLocked: &locked})
}

// SetArchived 任何时候都允许
func (s *LedgerService) SetArchived(ctx context.Context, owner, id uint, archived bool) (*models.Ledger, error) {
	return s.Update(ctx, owner, id, UpdateLedgerInput{IsArchived: &archived})
}

// Delete 删除未锁定的账本及其全部交易
func (s *LedgerService) Delete(ctx context.Context, owner, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := ownedLedger(tx, owner, id)
		if err != nil {
			return err
		}
		if l.IsLocked {
			return forbidden("Cannot delete a locked ledger. Please unlock it first.")
		}
		if err := tx.Where("ledger_id = ?", l.ID).Delete(&models.Transaction{}).Error; err != nil {
			return fmt.Errorf("delete ledger transactions: %w", err)
		}
		if err := tx.Delete(&models.Ledger{}, l.ID).Error; err != nil {
			return fmt.Errorf("delete ledger: %w", err)
		}
		return nil
	})
}

// BalanceView 单个账本的余额汇总
type BalanceView struct {
	LedgerID         uint
	LedgerName       string
	StartingBalance  decimal.Decimal
	CurrentBalance   decimal.Decimal
	ClearedBalance   decimal.Decimal
	TransactionCount int
}

// Balance 重新计算当前余额和已对账余额
func (s *LedgerService) Balance(ctx context.Context, owner, id uint) (*BalanceView, error) {
	v, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return &BalanceView{
		LedgerID:         v.Ledger.ID,
		LedgerName:       v.Ledger.Name,
		StartingBalance:  v.Ledger.StartingBalance,
		CurrentBalance:   v.CurrentBalance(),
		ClearedBalance:   v.ClearedBalance(),
		TransactionCount: v.TransactionCount(),
	}, nil
}

// Statement 按显示顺序返回逐笔余额和合计
func (s *LedgerService) Statement(ctx context.Context, owner, id uint) (*Statement, error) {
	v, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	st := BuildStatement(&v.Ledger, v.Transactions)
	return &st, nil
}
