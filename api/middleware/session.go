package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/pitch-analyst/internal/corpus"
)

// SessionHeader 会话标识请求头，缺省时所有请求共用 default 会话
const SessionHeader = "X-Session-ID"

// SessionScope 把会话注册表绑定到请求上下文
func SessionScope(registry *corpus.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := registry.Scope(c.GetHeader(SessionHeader))
		c.Request = c.Request.WithContext(corpus.WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

// Scope 当前请求的会话注册表，未经过 SessionScope 时返回nil
func Scope(c *gin.Context) *corpus.Scope {
	scope, _ := corpus.ScopeFrom(c.Request.Context())
	return scope
}

// Session 当前请求的会话标识
func Session(c *gin.Context) string {
	if scope := Scope(c); scope != nil {
		return scope.Session()
	}
	return corpus.DefaultSession
}
