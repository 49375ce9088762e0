// Package bootstrap 根据配置创建各个基础组件，服务进程和批量导入命令共用
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/fyerfyer/pitch-analyst/config"
	"github.com/fyerfyer/pitch-analyst/internal/cache"
	"github.com/fyerfyer/pitch-analyst/internal/database"
	"github.com/fyerfyer/pitch-analyst/internal/embedding"
	"github.com/fyerfyer/pitch-analyst/internal/llm"
	"github.com/fyerfyer/pitch-analyst/internal/vectordb"
	"github.com/fyerfyer/pitch-analyst/pkg/storage"
	"github.com/fyerfyer/pitch-analyst/pkg/taskqueue"
)

// ErrMissingAPIKey 没有配置模型密钥，依赖模型的服务不可用
var ErrMissingAPIKey = errors.New("api key is not configured")

// apiKeySet 未展开的 ${VAR} 视为没有配置
func apiKeySet(key string) bool {
	return key != "" && !strings.HasPrefix(key, "${")
}

// Storage 创建对象存储
func Storage(cfg *config.Config) (storage.Storage, error) {
	s := cfg.Storage
	return storage.New(storage.Config{
		Type:      s.Type,
		Path:      s.Path,
		Endpoint:  s.Endpoint,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		UseSSL:    s.UseSSL,
		Bucket:    s.Bucket,
	})
}

// Database 打开数据库并迁移表结构
func Database(cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.Type = cfg.Database.Type
	dbCfg.DSN = cfg.Database.DSN
	if err := database.Setup(dbCfg, logger); err != nil {
		return nil, err
	}
	return database.MustDB(), nil
}

// Retrier 按配置的次数和间隔重试模型调用
func Retrier(cfg *config.Config, logger *logrus.Logger) llm.Retrier {
	return llm.Retrier{
		Attempts: cfg.LLM.Attempts,
		Delay:    cfg.LLM.RetryDelay,
		Logger:   logger,
	}
}

// LLM 创建文本模型客户端
func LLM(cfg *config.Config) (llm.Client, error) {
	return newLLM(cfg, cfg.LLM.Model)
}

// VisionLLM 创建多模态模型客户端，未单独配置时与文本模型相同
func VisionLLM(cfg *config.Config) (llm.Client, error) {
	model := cfg.LLM.VisionModel
	if model == "" {
		model = cfg.LLM.Model
	}
	return newLLM(cfg, model)
}

func newLLM(cfg *config.Config, model string) (llm.Client, error) {
	c := cfg.LLM
	if !apiKeySet(c.APIKey) {
		return nil, fmt.Errorf("llm: %w", ErrMissingAPIKey)
	}
	opts := []llm.Option{
		llm.WithAPIKey(c.APIKey),
		llm.WithTemperature(c.Temperature),
	}
	if model != "" {
		opts = append(opts, llm.WithModel(model))
	}
	if c.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(c.MaxTokens))
	}
	if c.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(c.Endpoint))
	}
	if c.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(c.Timeout))
	}
	return llm.NewClient(c.Provider, opts...)
}

// Embedder 创建嵌入客户端，taskType 区分入库和查询
func Embedder(cfg *config.Config, taskType string) (embedding.Client, error) {
	c := cfg.Embed
	if !apiKeySet(c.APIKey) {
		return nil, fmt.Errorf("embedding: %w", ErrMissingAPIKey)
	}
	opts := []embedding.Option{
		embedding.WithAPIKey(c.APIKey),
		embedding.WithTaskType(taskType),
	}
	if c.Model != "" {
		opts = append(opts, embedding.WithModel(c.Model))
	}
	if c.Dimensions > 0 {
		opts = append(opts, embedding.WithDimensions(c.Dimensions))
	}
	if c.BatchSize > 0 {
		opts = append(opts, embedding.WithBatchSize(c.BatchSize))
	}
	if c.Endpoint != "" {
		opts = append(opts, embedding.WithBaseURL(c.Endpoint))
	}
	return embedding.NewClient(c.Provider, opts...)
}

// VectorIndex 创建向量索引，faiss不可用时退回内存实现
func VectorIndex(cfg *config.Config, logger *logrus.Logger) (vectordb.Repository, error) {
	c := cfg.VectorDB
	dim := c.Dim
	if dim <= 0 {
		dim = cfg.Embed.Dimensions
	}
	vcfg := vectordb.Config{
		Type:              c.Type,
		Path:              c.Path,
		DSN:               c.DSN,
		Dimension:         dim,
		DistanceType:      vectordb.DistanceType(c.Distance),
		CreateIfNotExists: true,
	}
	repo, err := vectordb.NewRepository(vcfg)
	if err == nil || c.Type != "faiss" {
		return repo, err
	}

	logger.WithError(err).Warn("Failed to initialize faiss index, falling back to in-memory index")
	vcfg.Type = "memory"
	return vectordb.NewRepository(vcfg)
}

// Cache 创建缓存，语料注册表和检索结果共用
func Cache(cfg *config.Config) (cache.Cache, error) {
	c := cfg.Cache
	ccfg := cache.DefaultConfig()
	ccfg.Type = c.Type
	ccfg.RedisAddr = c.Address
	ccfg.RedisPassword = c.Password
	ccfg.RedisDB = c.DB
	if c.Namespace != "" {
		ccfg.Namespace = c.Namespace
	}
	if c.TTL > 0 {
		ccfg.DefaultTTL = time.Duration(c.TTL) * time.Second
	}
	return cache.NewCache(ccfg)
}

// Queue 后台任务队列
// 启用时连接Redis并返回asynq工作者，否则使用进程内队列，工作者为nil
type Queue struct {
	taskqueue.Queue
	Worker taskqueue.Worker
	Redis  bool
}

// RegisterHandler 注册到实际执行任务的一端
func (q *Queue) RegisterHandler(taskType taskqueue.TaskType, handler taskqueue.Handler) {
	if q.Worker != nil {
		q.Worker.RegisterHandler(taskType, handler)
		return
	}
	if r, ok := q.Queue.(taskqueue.Registrar); ok {
		r.RegisterHandler(taskType, handler)
	}
}

// Start 启动工作者，进程内队列无需启动
func (q *Queue) Start() error {
	if q.Worker == nil {
		return nil
	}
	return q.Worker.Start()
}

// Close 停止工作者并关闭队列
func (q *Queue) Close() error {
	if q.Worker != nil {
		q.Worker.Stop()
	}
	return q.Queue.Close()
}

// TaskQueue 创建任务队列
func TaskQueue(cfg *config.Config, logger *logrus.Logger) (*Queue, error) {
	c := cfg.Queue
	qcfg := taskqueue.DefaultConfig()
	qcfg.Logger = logger
	if c.Concurrency > 0 {
		qcfg.Concurrency = c.Concurrency
	}

	if !c.Enable {
		return &Queue{Queue: taskqueue.NewMemoryQueue(qcfg)}, nil
	}

	qcfg.RedisAddr = c.RedisAddr
	qcfg.RedisPassword = c.RedisPassword
	qcfg.RedisDB = c.RedisDB
	qcfg.RetryLimit = c.RetryLimit
	if c.RetryDelay > 0 {
		qcfg.RetryDelay = time.Duration(c.RetryDelay) * time.Second
	}

	logger.WithFields(logrus.Fields{
		"type":        c.Type,
		"redis_addr":  c.RedisAddr,
		"concurrency": qcfg.Concurrency,
	}).Info("Setting up task queue")

	rq, err := taskqueue.NewRedisQueue(qcfg)
	if err != nil {
		return nil, err
	}
	return &Queue{Queue: rq, Worker: taskqueue.NewRedisWorker(rq, qcfg), Redis: true}, nil
}
