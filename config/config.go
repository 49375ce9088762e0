package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	VectorDB   VectorDBConfig   `mapstructure:"vectordb"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Embed      EmbedConfig      `mapstructure:"embed"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Benchmark  BenchmarkConfig  `mapstructure:"benchmark"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`                            // 服务器主机
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"` // 服务器端口
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读取超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写入超时，报告生成可能较慢
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"` // 上传文件大小上限
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"`        // 日志文件，为空时仅输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 单个日志文件大小
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`                              // 本地存储路径
	Bucket    string `mapstructure:"bucket"`                            // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`                          // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// VectorDBConfig 向量索引配置
type VectorDBConfig struct {
	Type     string `mapstructure:"type" validate:"oneof=memory faiss pgvector"`
	Path     string `mapstructure:"path"`     // faiss索引文件路径
	DSN      string `mapstructure:"dsn"`      // pgvector连接串
	Dim      int    `mapstructure:"dim"`      // 向量维度
	Distance string `mapstructure:"distance"` // 距离度量方式：cosine, l2, dot
}

// LLMConfig 生成模型配置
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=gemini openai"`
	Model       string        `mapstructure:"model"`        // 文本模型
	VisionModel string        `mapstructure:"vision_model"` // 多模态模型，为空时使用Model
	APIKey      string        `mapstructure:"api_key"`      // API密钥
	Endpoint    string        `mapstructure:"endpoint"`     // API端点
	MaxTokens   int           `mapstructure:"max_tokens"`   // 最大生成token数量
	Temperature float32       `mapstructure:"temperature"`  // 采样温度
	Timeout     time.Duration `mapstructure:"timeout"`
	Attempts    int           `mapstructure:"attempts" validate:"min=1"` // 调用尝试次数
	RetryDelay  time.Duration `mapstructure:"retry_delay"`               // 固定重试间隔
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string `mapstructure:"provider" validate:"oneof=gemini openai"`
	Model      string `mapstructure:"model"`      // 模型名称
	APIKey     string `mapstructure:"api_key"`    // API密钥
	Endpoint   string `mapstructure:"endpoint"`   // API端点
	BatchSize  int    `mapstructure:"batch_size"` // 批处理大小
	Dimensions int    `mapstructure:"dimensions"` // 向量维度
}

// CacheConfig 缓存配置，语料注册表也保存在这里
type CacheConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=memory redis"`
	Address   string `mapstructure:"address"`  // Redis地址
	Password  string `mapstructure:"password"` // Redis密码
	DB        int    `mapstructure:"db"`       // Redis数据库
	TTL       int    `mapstructure:"ttl"`      // 缓存TTL（秒）
	Namespace string `mapstructure:"namespace"`
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用任务队列
	Type          string `mapstructure:"type"`           // 队列类型：redis
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"eq=sqlite"` // 数据库类型
	DSN  string `mapstructure:"dsn" validate:"required"`   // 数据源名称
}

// ChunkingConfig 分块配置，单位为词
type ChunkingConfig struct {
	MinChunkSize int `mapstructure:"min_chunk_size" validate:"min=0"`
	MaxChunkSize int `mapstructure:"max_chunk_size" validate:"min=1,gtfield=Overlap"`
	Overlap      int `mapstructure:"overlap" validate:"min=0"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k" validate:"min=1"`
	SimilarityThreshold float32 `mapstructure:"similarity_threshold" validate:"min=0,max=1"`
	HybridAlpha         float32 `mapstructure:"hybrid_alpha" validate:"min=0,max=1"`
	CacheTTL            int     `mapstructure:"cache_ttl"` // 检索结果缓存（秒），0表示不缓存
}

// AgentConfig 推理代理配置
type AgentConfig struct {
	MaxIterations int `mapstructure:"max_iterations" validate:"min=1"`
}

// ExtractionConfig PDF处理配置
type ExtractionConfig struct {
	DPI           int  `mapstructure:"dpi" validate:"min=36"`
	RenderWorkers int  `mapstructure:"render_workers" validate:"min=1"`
	UploadImages  bool `mapstructure:"upload_images"` // 后台上传页面图片和原始结果
}

// BenchmarkConfig 竞品对标配置
type BenchmarkConfig struct {
	UsdToInr   float64 `mapstructure:"usd_to_inr" validate:"gt=0"`
	UseVision  bool    `mapstructure:"use_vision"`  // 是否使用多模态模型识别备忘录
	AISummary  bool    `mapstructure:"ai_summary"`  // 是否生成模型竞争力总结
	MemoFolder string  `mapstructure:"memo_folder"` // 批量导入目录
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	// 先设置默认值，写出默认配置时也能带上
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 支持环境变量覆盖，例如 LLM_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	resConfig := processEnvironmentVariables(&config)

	if err := Validate(resConfig); err != nil {
		return nil, err
	}
	return resConfig, nil
}

// Validate 校验配置取值
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// processEnvironmentVariables 展开配置中 ${VAR} 形式的取值
func processEnvironmentVariables(cfg *Config) *Config {
	for _, field := range []*string{
		&cfg.LLM.APIKey,
		&cfg.Embed.APIKey,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
		&cfg.VectorDB.DSN,
	} {
		*field = expandEnv(*field)
	}
	return cfg
}

// expandEnv 仅处理整体为 ${VAR} 的字符串，环境变量为空时保留原值
func expandEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
		return envVal
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.max_upload_mb", 64)

	// 日志
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/objects")
	v.SetDefault("storage.bucket", "pitch-decks")
	v.SetDefault("storage.use_ssl", false)

	// 向量索引默认配置
	v.SetDefault("vectordb.type", "memory")
	v.SetDefault("vectordb.path", "./data/vectordb/corpus.index")
	v.SetDefault("vectordb.dim", 768)
	v.SetDefault("vectordb.distance", "cosine")

	// LLM默认配置
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.attempts", 3)
	v.SetDefault("llm.retry_delay", "2s")

	// Embedding默认配置
	v.SetDefault("embed.provider", "gemini")
	v.SetDefault("embed.model", "text-embedding-004")
	v.SetDefault("embed.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.dimensions", 768)

	// 缓存默认配置
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400)
	v.SetDefault("cache.namespace", "pitch")

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 30)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/pitch.db")

	// 分块默认配置
	v.SetDefault("chunking.min_chunk_size", 150)
	v.SetDefault("chunking.max_chunk_size", 400)
	v.SetDefault("chunking.overlap", 40)

	// 检索默认配置
	v.SetDefault("retrieval.top_k", 8)
	v.SetDefault("retrieval.similarity_threshold", 0.6)
	v.SetDefault("retrieval.hybrid_alpha", 0.9)
	v.SetDefault("retrieval.cache_ttl", 600)

	v.SetDefault("agent.max_iterations", 50)

	v.SetDefault("extraction.dpi", 200)
	v.SetDefault("extraction.render_workers", 4)
	v.SetDefault("extraction.upload_images", true)

	v.SetDefault("benchmark.usd_to_inr", 83.0)
	v.SetDefault("benchmark.use_vision", true)
	v.SetDefault("benchmark.ai_summary", true)
	v.SetDefault("benchmark.memo_folder", "./memos")
}
