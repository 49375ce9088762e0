package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// EmbeddingError 嵌入错误类型
type EmbeddingError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeRateLimited    = 1004 // 请求频率超限
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeEmptyInput     = 1007 // 输入为空
	ErrCodeDimMismatch    = 1008 // 向量维度不符
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyInput     = "input text cannot be empty"
	ErrMsgNetworkError   = "network connection error"
)

// ErrEmptyText 空文本
var ErrEmptyText = NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)

// NewEmbeddingError 创建新的嵌入错误
func NewEmbeddingError(code int, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}

// wrapError 包装底层错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var embErr EmbeddingError
	if errors.As(err, &embErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewEmbeddingError(ErrCodeTimeout, ErrMsgTimeout+": "+err.Error())
	}
	return NewEmbeddingError(ErrCodeNetworkError, err.Error())
}

// errorFromStatus 根据HTTP状态码生成错误
func errorFromStatus(status int, message string) EmbeddingError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewEmbeddingError(ErrCodeInvalidAPIKey, message)
	case status == http.StatusTooManyRequests:
		return NewEmbeddingError(ErrCodeRateLimited, message)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewEmbeddingError(ErrCodeTimeout, message)
	case status >= 500:
		return NewEmbeddingError(ErrCodeServerError, message)
	default:
		return NewEmbeddingError(ErrCodeInvalidRequest, message)
	}
}

// retryable 是否可以重试
func retryable(err error) bool {
	var embErr EmbeddingError
	if !errors.As(err, &embErr) {
		return !errors.Is(err, context.Canceled)
	}
	switch embErr.Code {
	case ErrCodeRateLimited, ErrCodeServerError, ErrCodeTimeout, ErrCodeNetworkError:
		return true
	default:
		return false
	}
}
