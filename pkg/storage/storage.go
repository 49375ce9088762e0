package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// ObjectInfo 对象元数据
type ObjectInfo struct {
	Key          string    // 对象键，形如 acme/pdf/deck.pdf
	Size         int64     // 大小(字节)
	ContentType  string    // MIME类型
	LastModified time.Time // 最后修改时间
	URI          string    // 对外可见的位置
}

// Storage 对象存储接口
// 以键寻址，本地文件系统和MinIO各有一份实现
type Storage interface {
	// Put 写入对象，size未知时传-1
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error)

	// Get 读取对象内容，不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除对象
	Delete(ctx context.Context, key string) error

	// List 列出前缀下的对象
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// URI 返回对象的定位串
	URI(key string) string
}

// Config 存储配置
type Config struct {
	Type      string // local 或 minio
	Path      string // 本地存储根目录
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// New 根据配置创建存储实现
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(LocalConfig{Path: cfg.Path})
	case "minio":
		return NewMinioStorage(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// JoinKey 拼接对象键，统一使用正斜杠
func JoinKey(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}

// NewObjectKey 生成带随机ID的对象键，保留原扩展名
func NewObjectKey(prefix, filename string) string {
	return JoinKey(prefix, uuid.New().String()+strings.ToLower(filepath.Ext(filename)))
}

// cleanKey 校验对象键，拒绝越出根目录的路径
func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return k, nil
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
