package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/pitch-analyst/api/model"
)

// 服务名
const (
	ServicePDFProcessor = "pdf_processor"
	ServiceRAG          = "rag"
	ServiceAgent        = "agent"
	ServiceDealNote     = "deal_note"
	ServiceBenchmark    = "benchmark"
	ServiceMemoStore    = "memo_store"
	ServiceTaskQueue    = "task_queue"
)

// HealthHandler 服务可用状态
type HealthHandler struct {
	available map[string]bool
}

// NewHealthHandler 启动时确定各服务是否可用
func NewHealthHandler(available map[string]bool) *HealthHandler {
	cp := make(map[string]bool, len(available))
	for k, v := range available {
		cp[k] = v
	}
	return &HealthHandler{available: cp}
}

// Health 健康检查
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	services := make(map[string]model.ServiceStatus, len(h.available))
	for name, ok := range h.available {
		services[name] = model.ServiceStatus{IsAvailable: ok}
	}
	c.JSON(http.StatusOK, model.HealthResponse{Status: "ok", Services: services})
}
