package model

import (
	"time"

	"github.com/fyerfyer/pitch-analyst/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ServiceStatus 单个服务的可用状态
type ServiceStatus struct {
	IsAvailable bool `json:"is_available"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status   string                   `json:"status"`
	Services map[string]ServiceStatus `json:"services"`
}

// MemoInfo 备忘录库条目
type MemoInfo struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	Sectors     []string  `json:"sectors"`
	SourceFile  string    `json:"source_file"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MemoListResponse 备忘录列表
type MemoListResponse struct {
	Total int        `json:"total"`
	Memos []MemoInfo `json:"memos"`
}

// MemoIngestResponse 备忘录入库响应，异步时只有 TaskID
type MemoIngestResponse struct {
	MemoID  string   `json:"memo_id,omitempty"`
	Company string   `json:"company,omitempty"`
	Sectors []string `json:"sectors,omitempty"`
	TaskID  string   `json:"task_id,omitempty"`
}

// ConvertToMemoInfo 转换备忘录记录
func ConvertToMemoInfo(memos []*models.SectorMemo) []MemoInfo {
	infos := make([]MemoInfo, 0, len(memos))
	for _, m := range memos {
		infos = append(infos, MemoInfo{
			ID:          m.ID,
			CompanyName: m.CompanyName,
			Sectors:     m.Sectors,
			SourceFile:  m.SourceFile,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return infos
}
