package http

import (
	"errors"
	"net/http"

	"dungeon-raid/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse 以统一的 {"error": ...} 形式返回失败响应。
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// SuccessResponse 返回成功响应，data 原样序列化。
func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// HandleServiceError 把 Service 层的业务错误映射为 HTTP 状态码。
// 回合竞态 (过期序号、结算中、重复提交) 映射为 409，前置条件不满足映射为 4xx。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAuthenticationFailed):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrRegistrationFailed):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSessionFull),
		errors.Is(err, service.ErrSessionRunning),
		errors.Is(err, service.ErrSessionNotRunning),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrStaleTurn),
		errors.Is(err, service.ErrTurnResolving),
		errors.Is(err, service.ErrAlreadyActed),
		errors.Is(err, service.ErrExitNotPending):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrNotOwner),
		errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrMemberDead):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNoDungeonHere),
		errors.Is(err, service.ErrKeyItemRequired),
		errors.Is(err, service.ErrLevelTooLow),
		errors.Is(err, service.ErrSessionEmpty),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrShieldRequired),
		errors.Is(err, service.ErrItemNotOwned),
		errors.Is(err, service.ErrUnknownAction):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
