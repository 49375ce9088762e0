package llm

import (
	"context"
	"time"
)

// Client 大模型客户端接口
// 负责处理与大语言模型的交互
type Client interface {
	// Generate 根据提示词生成回答，可通过选项附带图片
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error)

	// Chat 进行多轮对话
	Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Config 大模型客户端配置
type Config struct {
	APIKey      string        // API密钥
	BaseURL     string        // API基础URL
	Model       string        // 模型名称
	Timeout     time.Duration // 请求超时时间
	MaxRetries  int           // 传输层重试次数，调用层重试见 Retrier
	MaxTokens   int           // 最大生成Token数
	Temperature float32       // 采样温度(0.0-2.0)
	TopP        float32       // 核采样概率阈值(0.0-1.0)
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Model:       ModelGeminiFlash,
		Timeout:     120 * time.Second,
		MaxRetries:  0,
		MaxTokens:   8192,
		Temperature: 0.2,
	}
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL 设置API基础URL
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries 设置传输层重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithMaxTokens 设置最大生成Token数
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature 设置采样温度
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithTopP 设置核采样概率阈值
func WithTopP(topP float32) Option {
	return func(c *Config) {
		c.TopP = topP
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// GenerateOption 生成请求的选项
type GenerateOption func(*GenerateOptions)

// GenerateOptions 生成请求的选项集合
type GenerateOptions struct {
	System      string   // 系统指令
	Images      []Image  // 随提示词发送的图片
	MaxTokens   *int     // 最大生成Token数
	Temperature *float32 // 采样温度
	Stop        []string // 停止序列
	JSON        bool     // 要求返回JSON
}

// WithGenerateSystem 设置系统指令
func WithGenerateSystem(system string) GenerateOption {
	return func(o *GenerateOptions) {
		o.System = system
	}
}

// WithGenerateImages 附带图片
func WithGenerateImages(images ...Image) GenerateOption {
	return func(o *GenerateOptions) {
		o.Images = append(o.Images, images...)
	}
}

// WithGenerateMaxTokens 设置生成请求的最大Token数
func WithGenerateMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = &tokens
	}
}

// WithGenerateTemperature 设置生成请求的采样温度
func WithGenerateTemperature(temp float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = &temp
	}
}

// WithGenerateStop 设置停止序列
func WithGenerateStop(stop ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Stop = append(o.Stop, stop...)
	}
}

// WithGenerateJSON 要求模型输出JSON
func WithGenerateJSON() GenerateOption {
	return func(o *GenerateOptions) {
		o.JSON = true
	}
}

// ChatOption 聊天请求的选项
type ChatOption func(*ChatOptions)

// ChatOptions 聊天请求的选项集合
type ChatOptions struct {
	MaxTokens   *int     // 最大生成Token数
	Temperature *float32 // 采样温度
	Stop        []string // 停止序列
	JSON        bool     // 要求返回JSON
}

// WithChatMaxTokens 设置聊天请求的最大Token数
func WithChatMaxTokens(tokens int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = &tokens
	}
}

// WithChatTemperature 设置聊天请求的采样温度
func WithChatTemperature(temp float32) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = &temp
	}
}

// WithChatStop 设置停止序列
func WithChatStop(stop ...string) ChatOption {
	return func(o *ChatOptions) {
		o.Stop = append(o.Stop, stop...)
	}
}

// WithChatJSON 要求模型输出JSON
func WithChatJSON() ChatOption {
	return func(o *ChatOptions) {
		o.JSON = true
	}
}

// generateAsChat 把单轮生成请求转换为对话请求
func generateAsChat(prompt string, options []GenerateOption) ([]Message, []ChatOption, error) {
	opts := &GenerateOptions{}
	for _, opt := range options {
		opt(opts)
	}
	if prompt == "" && len(opts.Images) == 0 {
		return nil, nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	var messages []Message
	if opts.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: opts.System})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt, Images: opts.Images})

	var chatOpts []ChatOption
	if opts.MaxTokens != nil {
		chatOpts = append(chatOpts, WithChatMaxTokens(*opts.MaxTokens))
	}
	if opts.Temperature != nil {
		chatOpts = append(chatOpts, WithChatTemperature(*opts.Temperature))
	}
	if len(opts.Stop) > 0 {
		chatOpts = append(chatOpts, WithChatStop(opts.Stop...))
	}
	if opts.JSON {
		chatOpts = append(chatOpts, WithChatJSON())
	}
	return messages, chatOpts, nil
}

// Factory 大模型客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的大模型客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册大模型客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建大模型客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}
