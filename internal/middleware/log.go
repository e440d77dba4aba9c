package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
)

// RequestLogger 为每个请求分配 request id，绑定一个带 id 的 logger，并在结束时记录访问日志。
func RequestLogger(l *slog.Logger) gin.HandlerFunc {
	if l == nil {
		l = slog.Default()
	}
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)

		reqLog := l.With("rid", rid)
		c.Set(loggerKey, reqLog)

		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		if user := CurrentUser(c); user != nil {
			attrs = append(attrs, "user_id", user.ID)
		}
		switch {
		case c.Writer.Status() >= 500:
			reqLog.Error("http_request", attrs...)
		case c.Writer.Status() >= 400:
			reqLog.Warn("http_request", attrs...)
		default:
			reqLog.Info("http_request", attrs...)
		}
	}
}

// Logger 返回当前请求的 logger，没有时使用默认 logger
func Logger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
