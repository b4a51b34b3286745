package shared

import (
	"errors"

	"github.com/eksporyuk-migrate/internal/http/response"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/queue"
	"github.com/eksporyuk-migrate/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，服务端错误记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil && code >= response.CodeInternal {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	} else if err != nil {
		RequestLog(c).Debugw("handler_rejected", "code", appErr.Code, "error", err)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondServiceError 将服务层哨兵错误映射为响应码。
func RespondServiceError(c *gin.Context, err error) {
	if appErr, ok := response.AsAppError(err); ok {
		RespondError(c, appErr.Code, appErr.Message, appErr.Err)
		return
	}
	RespondError(c, ServiceErrorCode(err), ServiceErrorMessage(err), err)
}

// ServiceErrorCode 服务层错误对应的业务码
func ServiceErrorCode(err error) int {
	switch {
	case err == nil:
		return response.CodeOK
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrExpectedTotalsInvalid),
		errors.Is(err, service.ErrImportSourceEmpty):
		return response.CodeBadRequest
	case errors.Is(err, service.ErrInvalidToken):
		return response.CodeUnauthorized
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrReviewNotFound):
		return response.CodeNotFound
	case errors.Is(err, service.ErrReviewAlreadyResolved), errors.Is(err, service.ErrImportLocked):
		return response.CodeConflict
	case errors.Is(err, queue.ErrQueueDisabled), errors.Is(err, service.ErrTokenSecretMissing):
		return response.CodeUnavailable
	default:
		return response.CodeInternal
	}
}

// ServiceErrorMessage 对外提示消息，内部错误不暴露细节
func ServiceErrorMessage(err error) string {
	if ServiceErrorCode(err) == response.CodeInternal {
		return "internal error"
	}
	return err.Error()
}
