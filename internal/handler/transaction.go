package handler

import (
	"context"
	"net/http"
	"strconv"

	"budgie/internal/models"
	"budgie/internal/service"
	"budgie/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TransactionHandler 负责交易相关接口
type TransactionHandler struct {
	Transactions *service.TransactionService
}

func NewTransactionHandler(txs *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{Transactions: txs}
}

// ---------- 请求结构 ----------

type createTransactionReq struct {
	LedgerID     uint             `json:"ledger_id" binding:"required"`
	Date         string           `json:"date" binding:"required"`
	Description  string           `json:"description" binding:"required"`
	CreditAmount *decimal.Decimal `json:"credit_amount"`
	DebitAmount  *decimal.Decimal `json:"debit_amount"`
	IsPaid       bool             `json:"is_paid"`
	IsCleared    bool             `json:"is_cleared"`
	SortOrder    *int             `json:"sort_order"`
}

type updateTransactionReq struct {
	Date         *string          `json:"date"`
	Description  *string          `json:"description"`
	CreditAmount *decimal.Decimal `json:"credit_amount"`
	DebitAmount  *decimal.Decimal `json:"debit_amount"`
	IsPaid       *bool            `json:"is_paid"`
	IsCleared    *bool            `json:"is_cleared"`
	SortOrder    *int             `json:"sort_order"`
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// parseBoolQuery 解析可选的布尔查询参数
func parseBoolQuery(c *gin.Context, name string) (*bool, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed",
			[]service.FieldError{{Field: name, Message: "Must be true or false"}})
		return nil, false
	}
	return &v, true
}

// List GET /api/transactions
func (h *TransactionHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var f service.ListFilter
	if raw := c.Query("ledger_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed",
				[]service.FieldError{{Field: "ledger_id", Message: "Must be a positive integer"}})
			return
		}
		f.LedgerID = uint(id)
	}
	f.StartDate = c.Query("start_date")
	f.EndDate = c.Query("end_date")
	if f.IsPaid, ok = parseBoolQuery(c, "is_paid"); !ok {
		return
	}
	if f.IsCleared, ok = parseBoolQuery(c, "is_cleared"); !ok {
		return
	}
	f.ByDate = c.Query("sort") == "date"

	txs, err := h.Transactions.List(c.Request.Context(), user.ID, f)
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{
		"transactions": newTransactionResources(txs),
		"count":        len(txs),
	})
}

// Get GET /api/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.Transactions.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{"transaction": newTransactionResource(t)})
}

// Create POST /api/transactions
func (h *TransactionHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req createTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	t, err := h.Transactions.Add(c.Request.Context(), user.ID, service.AddTransactionInput{
		LedgerID:     req.LedgerID,
		Date:         req.Date,
		Description:  req.Description,
		CreditAmount: orZero(req.CreditAmount),
		DebitAmount:  orZero(req.DebitAmount),
		IsPaid:       req.IsPaid,
		IsCleared:    req.IsCleared,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusCreated, util.Response{
		"message":     "Transaction created successfully",
		"transaction": newTransactionResource(t),
	})
}

// Update PUT /api/transactions/:id
func (h *TransactionHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	t, err := h.Transactions.Update(c.Request.Context(), user.ID, id, service.UpdateTransactionInput{
		Date:         req.Date,
		Description:  req.Description,
		CreditAmount: req.CreditAmount,
		DebitAmount:  req.DebitAmount,
		IsPaid:       req.IsPaid,
		IsCleared:    req.IsCleared,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{
		"message":     "Transaction updated successfully",
		"transaction": newTransactionResource(t),
	})
}

// Delete DELETE /api/transactions/:id
func (h *TransactionHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Transactions.Delete(c.Request.Context(), user.ID, id); err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{"message": "Transaction deleted successfully"})
}

// TogglePaid POST /api/transactions/:id/toggle-paid
func (h *TransactionHandler) TogglePaid(c *gin.Context) {
	h.toggle(c, h.Transactions.TogglePaid)
}

// ToggleCleared POST /api/transactions/:id/toggle-cleared
func (h *TransactionHandler) ToggleCleared(c *gin.Context) {
	h.toggle(c, h.Transactions.ToggleCleared)
}

func (h *TransactionHandler) toggle(c *gin.Context, fn func(ctx context.Context, owner, id uint) (*models.Transaction, error)) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := fn(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{"transaction": newTransactionResource(t)})
}
