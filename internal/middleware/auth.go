package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budgie/internal/config"
	"budgie/internal/models"
	"budgie/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CookieName 保存会话 token 的 httpOnly cookie
const CookieName = "budgie_token"

const (
	currentUserKey    = "currentUser"
	currentSessionKey = "currentSession"
)

// ErrNoSession 请求中没有可用的会话
var ErrNoSession = errors.New("no active session")

// TokenFromRequest 依次从 Authorization 头、?token= 参数、cookie 中取 token。
func TokenFromRequest(c *gin.Context) string {
	// 1) Header: Authorization: Bearer xxx
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// 2) URL 查询参数 ?token=xxx（用于下载等无法自定义 Header 的场景）
	if token := c.Query("token"); token != "" {
		return token
	}

	// 3) Cookie
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie
	}
	return ""
}

// Authenticate 根据 token 找到有效的会话和用户
func Authenticate(db *gorm.DB, jwtCfg config.JWTConfig, token string) (*models.User, *models.Session, error) {
	if token == "" {
		return nil, nil, ErrNoSession
	}
	claims, err := util.ParseToken(jwtCfg.Secret, jwtCfg.Issuer, token)
	if err != nil {
		return nil, nil, ErrNoSession
	}

	var session models.Session
	err = db.Where("id = ? AND user_id = ?", claims.SessionID, claims.UserID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNoSession
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if !session.Active(time.Now()) {
		return nil, nil, ErrNoSession
	}

	var user models.User
	err = db.First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNoSession
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	return &user, &session, nil
}

// AuthMiddleware 校验会话 token，并在 context 里放入当前用户和会话。
func AuthMiddleware(jwtCfg config.JWTConfig, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, session, err := Authenticate(db.WithContext(c.Request.Context()), jwtCfg, TokenFromRequest(c))
		if errors.Is(err, ErrNoSession) {
			util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "Please log in to access this resource")
			return
		}
		if err != nil {
			Logger(c).Error("authenticate request", "error", err)
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An unexpected error occurred")
			return
		}

		c.Set(currentUserKey, user)
		c.Set(currentSessionKey, session)
		c.Next()
	}
}

// RequireAdmin 必须放在 AuthMiddleware 之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin {
			util.Error(c, http.StatusForbidden, util.CodeForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// CurrentUser 返回当前登录用户，未登录时为 nil
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentSession 返回当前会话，未登录时为 nil
func CurrentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(currentSessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*models.Session)
	return session
}
