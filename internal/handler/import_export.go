package handler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budgie/internal/middleware"
	"budgie/internal/service"
	"budgie/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ImportExportHandler 负责账本的导出、导入以及对账单文件
type ImportExportHandler struct {
	Ledgers *service.LedgerService
}

func NewImportExportHandler(ledgers *service.LedgerService) *ImportExportHandler {
	return &ImportExportHandler{Ledgers: ledgers}
}

// importReq.Data 可以是 base64 字符串、JSON 字符串，或直接是 JSON 对象
type importReq struct {
	Data       json.RawMessage `json:"data"`
	ShiftMonth bool            `json:"shiftMonth"`
}

func (r *importReq) payload() string {
	raw := strings.TrimSpace(string(r.Data))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Data, &s); err == nil {
		return s
	}
	return raw
}

// Export GET /api/ledgers/:id/export
func (h *ImportExportHandler) Export(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	doc, err := h.Ledgers.Export(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	data, err := service.EncodeDocument(doc)
	if err != nil {
		fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{
		"data":     data,
		"filename": service.ExportFilename(doc.Name),
	})
}

// Import POST /api/ledgers/import
func (h *ImportExportHandler) Import(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req importReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	res, err := h.Ledgers.Import(c.Request.Context(), user.ID, service.ImportInput{
		Data:       req.payload(),
		ShiftMonth: req.ShiftMonth,
	})
	if err != nil {
		fail(c, err)
		return
	}
	// 账本已经提交，重新读取失败时只记录日志，返回不含余额的账本
	ledger := newLedgerResource(res.Ledger, nil)
	ledger.TransactionCount = res.TransactionCount
	if v, err := h.Ledgers.Get(c.Request.Context(), user.ID, res.Ledger.ID); err != nil {
		middleware.Logger(c).Error("reload imported ledger", "ledger_id", res.Ledger.ID, "error", err)
	} else {
		ledger = newLedgerResource(&v.Ledger, v.Transactions)
	}
	middleware.Logger(c).Info("ledger imported", "ledger_id", res.Ledger.ID, "transactions", res.TransactionCount, "days_shifted", res.DaysShifted)

	util.Success(c, http.StatusCreated, util.Response{
		"message":     "Ledger imported successfully",
		"ledger":      ledger,
		"dateShifted": res.DateShifted,
		"daysShifted": res.DaysShifted,
	})
}

func (h *ImportExportHandler) statement(c *gin.Context) (*service.Statement, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	st, err := h.Ledgers.Statement(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return st, true
}

func statementFilename(st *service.Statement, ext string) string {
	base := strings.TrimSuffix(service.ExportFilename(st.LedgerName), "_export.txt")
	return fmt.Sprintf("%s_statement_%s.%s", base, time.Now().Format("20060102"), ext)
}

var statementHeaders = []string{"Date", "Description", "Credit", "Debit", "Balance", "Paid", "Cleared"}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return ""
}

// ExportCSV 导出对账单为 CSV
func (h *ImportExportHandler) ExportCSV(c *gin.Context) {
	st, ok := h.statement(c)
	if !ok {
		return
	}

	// 设置响应头
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", statementFilename(st, "csv")))

	// UTF-8 BOM（让 Excel 正确识别编码）
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// 写入表头和期初余额
	writer.Write(statementHeaders)
	startDate := ""
	if st.StartingBalanceDate != nil {
		startDate = *st.StartingBalanceDate
	}
	writer.Write([]string{startDate, "Starting balance", "", "", st.StartingBalance.String(), "", ""})

	// 写入数据
	for _, r := range st.Rows {
		writer.Write([]string{
			r.Date,
			r.Description,
			r.Credit.String(),
			r.Debit.String(),
			r.Balance.String(),
			yesNo(r.IsPaid),
			yesNo(r.IsCleared),
		})
	}

	writer.Write([]string{"", "Totals", st.Totals.TotalCredit.String(), st.Totals.DebitDisplay, st.Totals.FinalBalance.String(), "", ""})
}

// ExportXLSX 导出对账单为 XLSX
func (h *ImportExportHandler) ExportXLSX(c *gin.Context) {
	st, ok := h.statement(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Statement"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		fail(c, err)
		return
	}

	// 设置表头
	for i, name := range statementHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	num := func(n json.Number) interface{} {
		if v, err := n.Float64(); err == nil {
			return v
		}
		return n.String()
	}

	startDate := ""
	if st.StartingBalanceDate != nil {
		startDate = *st.StartingBalanceDate
	}
	f.SetSheetRow(sheetName, "A2", &[]interface{}{startDate, "Starting balance", nil, nil, num(st.StartingBalance)})

	// 写入数据
	for idx, r := range st.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, idx+3)
		f.SetSheetRow(sheetName, cell, &[]interface{}{
			r.Date, r.Description, num(r.Credit), num(r.Debit), num(r.Balance), yesNo(r.IsPaid), yesNo(r.IsCleared),
		})
	}
	cell, _ := excelize.CoordinatesToCellName(1, len(st.Rows)+3)
	f.SetSheetRow(sheetName, cell, &[]interface{}{
		nil, "Totals", num(st.Totals.TotalCredit), num(st.Totals.TotalDebit), num(st.Totals.FinalBalance),
	})

	if style, err := f.NewStyle(&excelize.Style{NumFmt: 4}); err == nil {
		f.SetCellStyle(sheetName, "C2", fmt.Sprintf("E%d", len(st.Rows)+3), style)
	}

	// 设置列宽
	f.SetColWidth(sheetName, "A", "A", 12)
	f.SetColWidth(sheetName, "B", "B", 40)
	f.SetColWidth(sheetName, "C", "E", 14)
	f.SetColWidth(sheetName, "F", "G", 8)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", statementFilename(st, "xlsx")))

	if err := f.Write(c.Writer); err != nil {
		middleware.Logger(c).Error("write xlsx", "error", err)
	}
}
