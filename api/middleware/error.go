package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/api/model"
)

// 应用中的错误类型
const (
	ErrorTypeValidation    = "VALIDATION_ERROR"    // 输入校验失败
	ErrorTypeUnprocessable = "UNPROCESSABLE_ERROR" // 内容无法处理
	ErrorTypeNotFound      = "NOT_FOUND_ERROR"     // 资源不存在
	ErrorTypeConflict      = "CONFLICT_ERROR"      // 前置条件不满足，例如还没有上传路演
	ErrorTypeUnavailable   = "UNAVAILABLE_ERROR"   // 依赖的服务没有启用
	ErrorTypeInternal      = "INTERNAL_ERROR"      // 内部错误
)

// AppError 应用错误
type AppError struct {
	Type    string // 错误类型
	Message string // 返回给客户端的消息
	Details string // 仅写入日志
	Code    int    // HTTP状态码
}

// Error 实现error接口
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(typ string, code int, message string, details []string) AppError {
	return AppError{
		Type:    typ,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    code,
	}
}

// NewValidationError 400
func NewValidationError(message string, details ...string) AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

// NewUnprocessableError 422
func NewUnprocessableError(message string, details ...string) AppError {
	return newAppError(ErrorTypeUnprocessable, http.StatusUnprocessableEntity, message, details)
}

// NewNotFoundError 404
func NewNotFoundError(message string) AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, nil)
}

// NewConflictError 409
func NewConflictError(message string, details ...string) AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, details)
}

// NewUnavailableError 503
func NewUnavailableError(message string, details ...string) AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details)
}

// NewInternalError 500
func NewInternalError(message string, details ...string) AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, details)
}

// ErrorHandler 统一错误处理中间件
// 处理器通过 HandleError 把错误放进上下文，这里统一写出 model.Response
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				traceID := TraceID(c)
				log.WithFields(logrus.Fields{
					FieldError:   rec,
					"stack":      string(debug.Stack()),
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: traceID,
				}).Error("Panic recovered in API request")

				resp := model.NewErrorResponse(http.StatusInternalServerError, "An unexpected error occurred")
				if gin.Mode() == gin.DebugMode {
					resp.Message = fmt.Sprintf("Panic: %v", rec)
				}
				resp.TraceID = traceID
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		traceID := TraceID(c)
		fields := logrus.Fields{FieldTraceID: traceID, FieldPath: c.Request.URL.Path}

		var appErr AppError
		var appErrPtr *AppError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &appErrPtr):
			appErr = *appErrPtr
		default:
			appErr = NewInternalError("Internal server error", err.Error())
			if gin.Mode() == gin.DebugMode {
				appErr.Message = err.Error()
			}
		}

		fields["error_type"] = appErr.Type
		if appErr.Details != "" {
			fields["details"] = appErr.Details
		}
		entry := log.WithFields(fields)
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		resp := model.NewErrorResponse(appErr.Code, appErr.Message)
		resp.TraceID = traceID
		c.AbortWithStatusJSON(appErr.Code, resp)
	}
}

// HandleError 在处理器中记录错误，由 ErrorHandler 写出响应
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
