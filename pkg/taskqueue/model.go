package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskArtifactUpload 把逐页提取结果和页面图片上传到对象存储
	TaskArtifactUpload TaskType = "artifact_upload"
	// TaskMemoIngest 解析已上传的行业备忘录并写入备忘录库
	TaskMemoIngest TaskType = "memo_ingest"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	Subject     string          `json:"subject"`      // 任务所属对象，通常是应用名
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// ArtifactUploadPayload 产物上传任务载荷
// 文件都在本地临时目录里，任务结束后删除该目录
type ArtifactUploadPayload struct {
	App         string   `json:"app"`           // 应用名，决定对象键前缀
	FileName    string   `json:"file_name"`     // 原始PDF文件名
	RawJSONPath string   `json:"raw_json_path"` // 逐页结果JSON
	ImagePaths  []string `json:"image_paths"`   // 页面图片
	ScratchDir  string   `json:"scratch_dir"`   // 临时目录
}

// ArtifactUploadResult 产物上传任务结果
type ArtifactUploadResult struct {
	Keys   []string `json:"keys"`   // 已上传的对象键
	Failed []string `json:"failed"` // 上传失败的本地文件
}

// MemoIngestPayload 备忘录入库任务载荷
type MemoIngestPayload struct {
	ObjectKey string `json:"object_key"` // 备忘录PDF在对象存储中的键
	FileName  string `json:"file_name"`  // 原始文件名
}

// MemoIngestResult 备忘录入库任务结果
type MemoIngestResult struct {
	MemoID  string   `json:"memo_id"`
	Company string   `json:"company"`
	Sectors []string `json:"sectors"`
}
