package handler

import (
	"net/http"

	"budgie/internal/service"
	"budgie/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// LedgerHandler 负责账本的增删改查、余额、复制和排序
type LedgerHandler struct {
	Ledgers      *service.LedgerService
	Transactions *service.TransactionService
}

func NewLedgerHandler(ledgers *service.LedgerService, txs *service.TransactionService) *LedgerHandler {
	return &LedgerHandler{Ledgers: ledgers, Transactions: txs}
}

// ---------- 请求结构 ----------

type createLedgerReq struct {
	Name                string           `json:"name" binding:"required"`
	StartingBalance     *decimal.Decimal `json:"starting_balance"`
	StartingBalanceDate *string          `json:"starting_balance_date"`
}

type updateLedgerReq struct {
	Name                *string          `json:"name"`
	StartingBalance     *decimal.Decimal `json:"starting_balance"`
	StartingBalanceDate *string          `json:"starting_balance_date"`
	IsLocked            *bool            `json:"is_locked"`
	IsArchived          *bool            `json:"is_archived"`
}

type reorderReq struct {
	TransactionIDs []uint `json:"transaction_ids" binding:"required"`
}

// List GET /api/ledgers
func (h *LedgerHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	views, err := h.Ledgers.List(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	items := make([]ledgerResource, len(views))
	for i := range views {
		items[i] = newLedgerResource(&views[i].Ledger, views[i].Transactions)
	}
	util.Success(c, http.StatusOK, util.Response{"ledgers": items, "count": len(items)})
}

// Create POST /api/ledgers
func (h *LedgerHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req createLedgerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	in := service.CreateLedgerInput{Name: req.Name, StartingBalanceDate: req.StartingBalanceDate}
	if req.StartingBalance != nil {
		in.StartingBalance = *req.StartingBalance
	}
	l, err := h.Ledgers.Create(c.Request.Context(), user.ID, in)
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusCreated, util.Response{
		"message": "Ledger created successfully",
		"ledger":  newLedgerResource(l, nil),
	})
}

// Get GET /api/ledgers/:id
func (h *LedgerHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	v, err := h.Ledgers.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{"ledger": newLedgerDetail(v)})
}

// Update PUT /api/ledgers/:id
func (h *LedgerHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateLedgerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	_, err := h.Ledgers.Update(ctx, user.ID, id, service.UpdateLedgerInput{
		Name:                req.Name,
		StartingBalance:     req.StartingBalance,
		StartingBalanceDate: req.StartingBalanceDate,
		IsLocked:            req.IsLocked,
		IsArchived:          req.IsArchived,
	})
	if err != nil {
		fail(c, err)
		return
	}
	v, err := h.Ledgers.Get(ctx, user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{
		"message": "Ledger updated successfully",
		"ledger":  newLedgerResource(&v.Ledger, v.Transactions),
	})
}

// Delete DELETE /api/ledgers/:id
func (h *LedgerHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledgers.Delete(c.Request.Context(), user.ID, id); err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{"message": "Ledger deleted successfully"})
}

// Balance GET /api/ledgers/:id/balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := h.Ledgers.Balance(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newBalanceResource(b))
}

// Statement GET /api/ledgers/:id/statement
func (h *LedgerHandler) Statement(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	st, err := h.Ledgers.Statement(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Copy POST /api/ledgers/:id/copy
func (h *LedgerHandler) Copy(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	v, err := h.Ledgers.Copy(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusCreated, util.Response{
		"message": "Ledger copied successfully",
		"ledger":  newLedgerResource(&v.Ledger, v.Transactions),
	})
}

// Reorder POST /api/ledgers/:id/reorder
func (h *LedgerHandler) Reorder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reorderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.Transactions.Reorder(ctx, user.ID, id, req.TransactionIDs); err != nil {
		fail(c, err)
		return
	}
	txs, err := h.Transactions.List(ctx, user.ID, service.ListFilter{LedgerID: id})
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{
		"message":      "Transactions reordered successfully",
		"transactions": newTransactionResources(txs),
	})
}
