package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// LLMError 大模型调用错误类型
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeRateLimited    = 1004 // 请求频率超限
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeEmptyPrompt    = 1007 // 提示词为空
	ErrCodeContentFilter  = 1008 // 内容安全过滤
	ErrCodeModelOverload  = 1009 // 模型过载
	ErrCodeContextTooLong = 1010 // 上下文过长
	ErrCodeEmptyResponse  = 1011 // 模型未返回内容
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyPrompt    = "prompt cannot be empty"
	ErrMsgNetworkError   = "network connection error"
	ErrMsgContentFilter  = "content filtered due to safety concerns"
	ErrMsgModelOverload  = "model is currently overloaded"
	ErrMsgContextTooLong = "context length exceeds model's maximum"
	ErrMsgEmptyResponse  = "empty response from API"
)

// NewLLMError 创建新的大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为LLM错误
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}

	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return LLMError{Code: ErrCodeTimeout, Message: err.Error()}
	}

	return LLMError{
		Code:    code,
		Message: err.Error(),
	}
}

// errorFromStatus 根据HTTP状态码生成错误
func errorFromStatus(status int, message string) LLMError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewLLMError(ErrCodeInvalidAPIKey, message)
	case status == http.StatusTooManyRequests:
		return NewLLMError(ErrCodeRateLimited, message)
	case status == http.StatusServiceUnavailable:
		return NewLLMError(ErrCodeModelOverload, message)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewLLMError(ErrCodeTimeout, message)
	case status >= 500:
		return NewLLMError(ErrCodeServerError, message)
	default:
		return NewLLMError(ErrCodeInvalidRequest, message)
	}
}

// IsRetryable 判断错误是否值得重试
// 非 LLMError 一律视为临时错误
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var llmErr LLMError
	if !errors.As(err, &llmErr) {
		return true
	}

	switch llmErr.Code {
	case ErrCodeInvalidAPIKey, ErrCodeInvalidRequest, ErrCodeEmptyPrompt,
		ErrCodeContentFilter, ErrCodeContextTooLong:
		return false
	default:
		return true
	}
}
