package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"budgie/internal/backup"
	"budgie/internal/middleware"
	"budgie/internal/util"

	"github.com/gin-gonic/gin"
)

// BackupHandler 负责管理员的数据库备份接口
type BackupHandler struct {
	Backups *backup.Manager
	Keep    int
}

// NewBackupHandler 构造函数
func NewBackupHandler(backups *backup.Manager, keep int) *BackupHandler {
	return &BackupHandler{Backups: backups, Keep: keep}
}

func (h *BackupHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, backup.ErrInvalidName):
		util.Error(c, http.StatusBadRequest, util.CodeValidation, "Invalid filename")
	case errors.Is(err, backup.ErrNotFound):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "Backup file not found")
	default:
		fail(c, err)
	}
}

// ListBackups 列出已有的备份，最新的在前
func (h *BackupHandler) ListBackups(c *gin.Context) {
	list, err := h.Backups.List()
	if err != nil {
		h.fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{
		"backups": list,
		"count":   len(list),
	})
}

// CreateBackup 生成一份数据库快照，并按保留数量清理旧备份
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	info, err := h.Backups.Create(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.Backups.Prune(h.Keep); err != nil {
		middleware.Logger(c).Error("prune backups", "error", err)
	}
	util.Success(c, http.StatusCreated, util.Response{
		"message": "Backup created successfully",
		"backup":  info,
	})
}

// DownloadBackup 下载指定备份文件；?plain=true 时返回解密后的 SQLite 文件
func (h *BackupHandler) DownloadBackup(c *gin.Context) {
	name := c.Param("filename")
	if c.Query("plain") == "true" {
		raw, err := h.Backups.ReadPlain(name)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", plainName(name)))
		c.Data(http.StatusOK, "application/vnd.sqlite3", raw)
		return
	}

	path, err := h.Backups.Path(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.FileAttachment(path, name)
}

// DeleteBackup 删除备份文件
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	if err := h.Backups.Delete(c.Param("filename")); err != nil {
		h.fail(c, err)
		return
	}
	util.Success(c, http.StatusOK, util.Response{"message": "Backup deleted successfully"})
}

func plainName(name string) string {
	return strings.TrimSuffix(name, ".enc")
}
