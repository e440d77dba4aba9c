package handler

import (
	"errors"
	"net/http"
	"strconv"

	"budgie/internal/middleware"
	"budgie/internal/models"
	"budgie/internal/service"
	"budgie/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// currentUser 取出 AuthMiddleware 放入的用户；没有则直接返回 401
func currentUser(c *gin.Context) (*models.User, bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeUnauthorized, "Please log in to access this resource")
		return nil, false
	}
	return user, true
}

// fail 把 service 层错误映射为统一的错误返回
func fail(c *gin.Context, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case service.KindValidation:
			if len(se.Details) > 0 {
				util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, se.Message, se.Details)
			} else {
				util.Error(c, http.StatusBadRequest, util.CodeValidation, se.Message)
			}
			return
		case service.KindNotFound:
			util.Error(c, http.StatusNotFound, util.CodeNotFound, se.Message)
			return
		case service.KindConflict:
			util.Error(c, http.StatusConflict, util.CodeConflict, se.Message)
			return
		case service.KindForbidden:
			util.Error(c, http.StatusForbidden, util.CodeForbidden, se.Message)
			return
		}
	}

	attrs := []any{"error", err, "path", c.Request.URL.Path}
	if user := middleware.CurrentUser(c); user != nil {
		attrs = append(attrs, "user_id", user.ID)
	}
	middleware.Logger(c).Error("request failed", attrs...)
	util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An unexpected error occurred")
}

// bindFailed 处理 ShouldBindJSON 的错误，尽量给出字段级信息
func bindFailed(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]service.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, service.FieldError{Field: fe.Field(), Message: "Failed the '" + fe.Tag() + "' check"})
		}
		util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed", details)
		return
	}
	util.Error(c, http.StatusBadRequest, util.CodeValidation, "Invalid request body")
}

// paramID 解析路径参数中的正整数 id
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		util.ErrorWithDetails(c, http.StatusBadRequest, util.CodeValidation, "Validation failed",
			[]service.FieldError{{Field: name, Message: "Must be a positive integer"}})
		return 0, false
	}
	return uint(id), true
}
