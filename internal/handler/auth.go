package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"budgie/internal/config"
	"budgie/internal/middleware"
	"budgie/internal/models"
	"budgie/internal/service"
	"budgie/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 10 * time.Minute
)

// AuthHandler 负责注册、登录、会话以及个人资料接口
type AuthHandler struct {
	DB       *gorm.DB
	Sessions *service.SessionService
	Cfg      *config.Config
}

// NewAuthHandler 构造函数
func NewAuthHandler(db *gorm.DB, sessions *service.SessionService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sessions, Cfg: cfg}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// startSession 建立会话行、签发 token 并写入 cookie
func (h *AuthHandler) startSession(c *gin.Context, user *models.User) (string, bool) {
	sess, err := h.Sessions.Start(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return "", false
	}
	token, err := util.GenerateToken(h.Cfg.JWT.Secret, h.Cfg.JWT.Issuer, user.ID, sess.ID, h.Sessions.TTL)
	if err != nil {
		fail(c, err)
		return "", false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, token, int(h.Sessions.TTL.Seconds()), "/", "", h.Cfg.Security.CookieSecure, true)
	return token, true
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", "", h.Cfg.Security.CookieSecure, true)
}

// ---------- 注册 ----------

type registerReq struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Password  string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	req.Email = normalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed",
			[]service.FieldError{{Field: "first_name", Message: "First and last name are required"}})
		return
	}

	// 密码强度检查
	if !util.IsStrongPassword(req.Password) {
		util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed",
			[]service.FieldError{{Field: "password", Message: "Password must be at least 8 characters and contain uppercase, lowercase and a number"}})
		return
	}

	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		fail(c, err)
		return
	}
	if count > 0 {
		util.Error(c, http.StatusConflict, util.CodeConflict, "Email is already registered")
		return
	}

	hash, err := util.HashPassword(req.Password, h.Cfg.Security.BcryptCost)
	if err != nil {
		fail(c, err)
		return
	}

	user := models.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		IsAdmin:      h.Cfg.IsAdminEmail(req.Email),
	}
	err = h.DB.WithContext(c.Request.Context()).Omit("Ledgers").Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		util.Error(c, http.StatusConflict, util.CodeConflict, "Email is already registered")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	token, ok := h.startSession(c, &user)
	if !ok {
		return
	}
	middleware.Logger(c).Info("user registered", "user_id", user.ID)

	util.Success(c, http.StatusCreated, util.Response{
		"message": "User registered successfully",
		"user":    newUserResource(&user),
		"token":   token,
	})
}

// ---------- 登录 ----------

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var user models.User
	err := db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	now := time.Now()

	// 检查是否被锁定
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "Account is temporarily locked, please try again later")
		return
	}

	// 校验密码
	if !util.CheckPassword(req.Password, user.PasswordHash) {
		// 密码错误：递增失败次数，达到5次则锁定10分钟
		updates := map[string]interface{}{"failed_login_attempts": user.FailedLoginAttempts + 1}
		if user.FailedLoginAttempts+1 >= maxFailedLogins {
			updates["locked_until"] = now.Add(lockoutDuration)
			updates["failed_login_attempts"] = 0
			middleware.Logger(c).Warn("account locked", "user_id", user.ID)
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			middleware.Logger(c).Error("record failed login", "error", err)
		}
		util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "Invalid email or password")
		return
	}

	// 登录成功：重置失败次数和锁定时间，记录登录 IP 和时间
	err = db.Model(&user).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
		"last_login_ip":         c.ClientIP(),
	}).Error
	if err != nil {
		fail(c, err)
		return
	}

	token, ok := h.startSession(c, &user)
	if !ok {
		return
	}

	util.Success(c, http.StatusOK, util.Response{
		"message": "Login successful",
		"user":    newUserResource(&user),
		"token":   token,
	})
}

// Logout 撤销当前会话并清除 cookie；未登录也返回成功
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.TokenFromRequest(c)
	if claims, err := util.ParseToken(h.Cfg.JWT.Secret, h.Cfg.JWT.Issuer, token); err == nil {
		if err := h.Sessions.Revoke(c.Request.Context(), claims.SessionID); err != nil {
			fail(c, err)
			return
		}
	}
	h.clearCookie(c)
	util.Success(c, http.StatusOK, util.Response{"message": "Logout successful"})
}

// Me 返回当前登录用户信息（需要经过 AuthMiddleware）
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	util.Success(c, http.StatusOK, util.Response{"user": newUserResource(user)})
}

// Check 不要求登录，只报告当前请求是否带有有效会话
func (h *AuthHandler) Check(c *gin.Context) {
	user, _, err := middleware.Authenticate(h.DB.WithContext(c.Request.Context()), h.Cfg.JWT, middleware.TokenFromRequest(c))
	if err != nil {
		if !errors.Is(err, middleware.ErrNoSession) {
			middleware.Logger(c).Error("session check", "error", err)
		}
		util.Success(c, http.StatusOK, util.Response{"authenticated": false})
		return
	}
	util.Success(c, http.StatusOK, util.Response{
		"authenticated": true,
		"userId":        user.ID,
		"userEmail":     user.Email,
	})
}

// ---------- 个人资料 ----------

type updateProfileReq struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
}

// UpdateProfile 更新当前用户的姓名
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Model(user).Updates(map[string]interface{}{
		"first_name": strings.TrimSpace(req.FirstName),
		"last_name":  strings.TrimSpace(req.LastName),
	}).Error
	if err != nil {
		fail(c, err)
		return
	}
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)

	util.Success(c, http.StatusOK, util.Response{"user": newUserResource(user)})
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword 修改密码，并让其它会话全部失效
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	if !util.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed",
			[]service.FieldError{{Field: "current_password", Message: "Current password is incorrect"}})
		return
	}
	if !util.IsStrongPassword(req.NewPassword) {
		util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed",
			[]service.FieldError{{Field: "new_password", Message: "Password must be at least 8 characters and contain uppercase, lowercase and a number"}})
		return
	}

	hash, err := util.HashPassword(req.NewPassword, h.Cfg.Security.BcryptCost)
	if err != nil {
		fail(c, err)
		return
	}

	current := middleware.CurrentSession(c)
	err = h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password_hash", hash).Error; err != nil {
			return err
		}
		q := tx.Model(&models.Session{}).Where("user_id = ?", user.ID)
		if current != nil {
			q = q.Where("id <> ?", current.ID)
		}
		return q.Update("revoked", true).Error
	})
	if err != nil {
		fail(c, err)
		return
	}

	util.Success(c, http.StatusOK, util.Response{"message": "Password changed successfully"})
}

type deleteAccountReq struct {
	Password string `json:"password" binding:"required"`
}

// DeleteAccount 立即删除账号，账本、交易和会话随之级联删除
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req deleteAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	if !util.CheckPassword(req.Password, user.PasswordHash) {
		util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed",
			[]service.FieldError{{Field: "password", Message: "Password is incorrect"}})
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Delete(&models.User{}, user.ID).Error; err != nil {
		fail(c, err)
		return
	}
	middleware.Logger(c).Info("account deleted", "user_id", user.ID)

	h.clearCookie(c)
	util.Success(c, http.StatusOK, util.Response{"message": "Account deleted"})
}
