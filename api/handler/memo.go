package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/api/middleware"
	"github.com/fyerfyer/pitch-analyst/internal/corpus"
	"github.com/fyerfyer/pitch-analyst/internal/services"
)

// MemoHandler 投资备忘录生成
type MemoHandler struct {
	memos  *services.MemoService
	logger *logrus.Logger
}

// NewMemoHandler 创建备忘录处理器
func NewMemoHandler(memos *services.MemoService) *MemoHandler {
	return &MemoHandler{memos: memos, logger: middleware.GetLogger()}
}

// Generate 对当前会话登记的公司生成投资备忘录
// POST /api/generate_memo/
func (h *MemoHandler) Generate(c *gin.Context) {
	if h.memos == nil {
		middleware.HandleError(c, middleware.NewUnavailableError("Memo generation is not available"))
		return
	}
	out, err := h.memos.Generate(c.Request.Context(), middleware.Scope(c))
	if err != nil {
		if errors.Is(err, corpus.ErrNotRegistered) {
			middleware.HandleError(c, middleware.NewConflictError(err.Error()))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("Failed to generate memo", err.Error()))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"company":    out.Company,
		"tools_used": out.Result.ToolsUsed,
	}).Info("Investment memo generated")
	sendPDF(c, out.PDF, out.FileName, "inline")
}
