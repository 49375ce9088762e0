package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/api/middleware"
	"github.com/fyerfyer/pitch-analyst/api/model"
	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/services"
)

// PitchHandler 处理路演PDF的上传和交易备忘
type PitchHandler struct {
	pitch  *services.PitchService
	logger *logrus.Logger
}

// NewPitchHandler 创建路演处理器
func NewPitchHandler(pitch *services.PitchService) *PitchHandler {
	return &PitchHandler{
		pitch:  pitch,
		logger: middleware.GetLogger(),
	}
}

// Upload 上传路演PDF
// POST /api/upload/
// mode=raw 时只返回逐页抽取结果，否则切块写入语料并登记到当前会话
func (h *PitchHandler) Upload(c *gin.Context) {
	if h.pitch == nil {
		middleware.HandleError(c, middleware.NewUnavailableError("PDF processor is not available"))
		return
	}
	var req model.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid upload request", err.Error()))
		return
	}
	if document.DetectContentType(req.File.Filename) != document.PDF {
		middleware.HandleError(c, middleware.NewValidationError("Unsupported file type"))
		return
	}
	name, data, err := readUpload(req.File)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("Failed to read uploaded file", err.Error()))
		return
	}

	if req.Mode == model.UploadModeRaw {
		res, err := h.pitch.Extract(c.Request.Context(), name, data)
		if err != nil {
			middleware.HandleError(c, deckError(err))
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	res, err := h.pitch.Upload(c.Request.Context(), middleware.Scope(c), name, data)
	if err != nil {
		middleware.HandleError(c, deckError(err))
		return
	}
	h.logger.WithFields(logrus.Fields{
		"file":    res.File,
		"chunks":  res.Chunks,
		"session": middleware.Session(c),
	}).Info("Pitch deck uploaded")
	c.JSON(http.StatusOK, res)
}

// DealNote 生成交易备忘PDF
// POST /api/deal_note/
func (h *PitchHandler) DealNote(c *gin.Context) {
	if h.pitch == nil {
		middleware.HandleError(c, middleware.NewUnavailableError("PDF processor is not available"))
		return
	}
	var req model.FileRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid upload request", err.Error()))
		return
	}
	if document.DetectContentType(req.File.Filename) != document.PDF {
		middleware.HandleError(c, middleware.NewValidationError("Unsupported file type"))
		return
	}
	name, data, err := readUpload(req.File)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("Failed to read uploaded file", err.Error()))
		return
	}

	pdf, fileName, err := h.pitch.DealNote(c.Request.Context(), name, data)
	if err != nil {
		middleware.HandleError(c, deckError(err))
		return
	}
	sendPDF(c, pdf, fileName, "inline")
}

// deckError 把服务错误映射为接口错误
func deckError(err error) error {
	switch {
	case errors.Is(err, document.ErrUnsupportedType):
		return middleware.NewValidationError("Unsupported file type")
	case errors.Is(err, document.ErrEmptyPDF):
		return middleware.NewUnprocessableError(err.Error())
	case errors.Is(err, services.ErrServiceUnavailable):
		return middleware.NewUnavailableError(err.Error())
	default:
		return middleware.NewInternalError("Failed to process pitch deck", err.Error())
	}
}
