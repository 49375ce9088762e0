package vectordb

import (
	"context"
	"errors"
	"time"
)

// 常用错误定义
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid document ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// Document 语料中的一个文本块及其向量
type Document struct {
	ID        string                 `json:"id"`         // 唯一标识符
	Corpus    string                 `json:"corpus"`     // 所属语料
	Source    string                 `json:"source"`     // 语料文件的对象键
	Position  int                    `json:"position"`   // 在语料文件中的行号
	Text      string                 `json:"text"`       // 原始文本内容
	Vector    []float32              `json:"vector"`     // 向量表示
	CreatedAt time.Time              `json:"created_at"` // 创建时间
	Metadata  map[string]interface{} `json:"metadata"`   // 附加元数据
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Document Document // 文档对象
	Score    float32  // 相似度得分，越大越相似
	Distance float32  // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	Corpora    []string               // 按语料过滤
	Metadata   map[string]interface{} // 按元数据过滤
	MinScore   float32                // 最小相似度分数
	MaxResults int                    // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量索引接口
type Repository interface {
	// AddBatch 批量写入，ID相同的文档会被覆盖
	AddBatch(ctx context.Context, docs []Document) error

	// Get 获取单个文档
	Get(ctx context.Context, id string) (Document, error)

	// DeleteByCorpus 删除语料下的全部文档
	DeleteByCorpus(ctx context.Context, corpus string) error

	// Search 相似度搜索，结果按得分降序
	Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取文档总数
	Count(ctx context.Context) (int, error)

	// Dimension 返回向量维数
	Dimension() int

	// Close 关闭并持久化
	Close() error
}

// Config 向量数据库配置
type Config struct {
	Type              string       // memory, faiss, pgvector
	Path              string       // faiss 索引文件路径
	DSN               string       // pgvector 连接串
	Dimension         int          // 向量维度
	DistanceType      DistanceType // 距离计算类型
	CreateIfNotExists bool         // 索引文件损坏时是否重建
}

// Factory 向量数据库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量数据库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量数据库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量数据库实例，未知类型使用内存实现
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		factory = NewMemoryRepository
	}
	return factory(config)
}
