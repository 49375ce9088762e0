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

// BenchmarkHandler 竞品对标和备忘录库
type BenchmarkHandler struct {
	bench  *services.BenchmarkService
	ingest *services.IngestService
	logger *logrus.Logger
}

// NewBenchmarkHandler 创建对标处理器，ingest可以为nil
func NewBenchmarkHandler(bench *services.BenchmarkService, ingest *services.IngestService) *BenchmarkHandler {
	return &BenchmarkHandler{bench: bench, ingest: ingest, logger: middleware.GetLogger()}
}

// Benchmark 对上传的投资备忘录生成对标报告
// POST /api/benchmark/
func (h *BenchmarkHandler) Benchmark(c *gin.Context) {
	if h.bench == nil {
		middleware.HandleError(c, middleware.NewInternalError("Benchmark service is not available"))
		return
	}
	var req model.FileRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid upload request", err.Error()))
		return
	}
	if document.DetectContentType(req.File.Filename) != document.PDF {
		middleware.HandleError(c, middleware.NewUnprocessableError("Only PDF files are supported"))
		return
	}
	name, data, err := readUpload(req.File)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("Failed to read uploaded file", err.Error()))
		return
	}

	pdf, err := h.bench.Run(c.Request.Context(), name, data)
	switch {
	case err == nil:
	case errors.Is(err, document.ErrUnsupportedType):
		middleware.HandleError(c, middleware.NewUnprocessableError("Only PDF files are supported"))
		return
	case errors.Is(err, document.ErrEmptyPDF):
		middleware.HandleError(c, middleware.NewUnprocessableError("No text could be extracted from the PDF"))
		return
	default:
		middleware.HandleError(c, middleware.NewInternalError(err.Error()))
		return
	}
	sendPDF(c, pdf, services.BenchmarkFileName, "attachment")
}

// IngestMemo 把一份投资备忘录加入对标用的备忘录库
// POST /api/memos/
// 配置了任务队列时异步处理，返回任务ID
func (h *BenchmarkHandler) IngestMemo(c *gin.Context) {
	if h.ingest == nil {
		middleware.HandleError(c, middleware.NewUnavailableError("Memo store is not available"))
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

	if h.ingest.Async() {
		taskID, err := h.ingest.Submit(c.Request.Context(), name, data)
		if err != nil {
			middleware.HandleError(c, middleware.NewInternalError("Failed to submit memo", err.Error()))
			return
		}
		c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.MemoIngestResponse{TaskID: taskID}))
		return
	}

	memo, err := h.ingest.Ingest(c.Request.Context(), name, data)
	if err != nil {
		if errors.Is(err, document.ErrEmptyPDF) {
			middleware.HandleError(c, middleware.NewUnprocessableError(err.Error()))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("Failed to ingest memo", err.Error()))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.MemoIngestResponse{
		MemoID:  memo.ID,
		Company: memo.CompanyName,
		Sectors: memo.Sectors,
	}))
}

// ListMemos 列出备忘录库
// GET /api/memos/
func (h *BenchmarkHandler) ListMemos(c *gin.Context) {
	if h.ingest == nil {
		middleware.HandleError(c, middleware.NewUnavailableError("Memo store is not available"))
		return
	}
	memos, err := h.ingest.List(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("Failed to list memos", err.Error()))
		return
	}
	infos := model.ConvertToMemoInfo(memos)
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.MemoListResponse{Total: len(infos), Memos: infos}))
}
