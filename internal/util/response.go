package util

import (
	"github.com/gin-gonic/gin"
)

// 通用返回结构里的 data 使用 map
type Response map[string]interface{}

// 错误码：放在 error 字段里，前端按它分支
const (
	CodeValidation   = "validation_failed"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeServerErr    = "internal_error"
)

// Success 统一成功返回
func Success(c *gin.Context, status int, data Response) {
	c.JSON(status, data)
}

// Error 统一错误返回，并中止后续 handler
func Error(c *gin.Context, httpStatus int, code string, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"error":   code,
		"message": msg,
	})
}

// ErrorWithDetails 带字段级错误的返回
func ErrorWithDetails(c *gin.Context, httpStatus int, code string, msg string, details interface{}) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"error":   code,
		"message": msg,
		"details": details,
	})
}
