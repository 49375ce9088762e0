package model

import "mime/multipart"

// UploadModeRaw 只返回逐页抽取结果
const UploadModeRaw = "raw"

// FileRequest 单文件上传请求
type FileRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`
}

// UploadRequest 路演PDF上传请求
type UploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`
	Mode string                `form:"mode" binding:"omitempty,oneof=raw"`
}

// TaskRequest 任务查询请求
type TaskRequest struct {
	ID string `uri:"id" binding:"required"`
}
