package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Gemini REST API 端点
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiClient Gemini 生成模型客户端
// 直接调用 generateContent REST 接口，支持图片输入
type GeminiClient struct {
	apiKey      string       // API密钥
	baseURL     string       // API端点
	model       string       // 模型名称
	httpClient  *http.Client // HTTP客户端
	maxRetries  int          // 传输层重试次数
	maxTokens   int          // 最大生成Token数
	temperature float32      // 温度参数
	topP        float32      // topP参数
}

// NewGeminiClient 创建新的 Gemini 客户端
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiEndpoint
	}

	return &GeminiClient{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string {
	return c.model
}

// Generate 根据提示词生成回答
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	messages, chatOpts, err := generateAsChat(prompt, options)
	if err != nil {
		return nil, err
	}
	return c.Chat(ctx, messages, chatOpts...)
}

// Chat 进行多轮对话
func (c *GeminiClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := &geminiRequest{GenerationConfig: c.generationConfig(opts)}
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			// Gemini 的系统指令单独传递
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
			continue
		}
		req.Contents = append(req.Contents, toGeminiContent(msg))
	}
	if len(req.Contents) == 0 {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.processResponse(resp)
}

// generationConfig 合并客户端默认参数和请求参数
func (c *GeminiClient) generationConfig(opts *ChatOptions) *geminiGenerationConfig {
	gc := &geminiGenerationConfig{StopSequences: opts.Stop}

	if opts.MaxTokens != nil {
		gc.MaxOutputTokens = opts.MaxTokens
	} else if c.maxTokens > 0 {
		maxTokens := c.maxTokens
		gc.MaxOutputTokens = &maxTokens
	}

	if opts.Temperature != nil {
		gc.Temperature = opts.Temperature
	} else {
		temp := c.temperature
		gc.Temperature = &temp
	}

	if c.topP > 0 {
		topP := c.topP
		gc.TopP = &topP
	}

	if opts.JSON {
		gc.ResponseMimeType = "application/json"
	}
	return gc
}

// toGeminiContent 转换单条消息
func toGeminiContent(msg Message) geminiContent {
	role := "user"
	if msg.Role == RoleAssistant {
		role = "model"
	}

	content := geminiContent{Role: role}
	for _, img := range msg.Images {
		content.Parts = append(content.Parts, geminiPart{
			InlineData: &geminiBlob{
				MimeType: img.MimeType,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	if msg.Content != "" {
		content.Parts = append(content.Parts, geminiPart{Text: msg.Content})
	}
	return content
}

// sendRequest 发送API请求并解析响应
func (c *GeminiClient) sendRequest(ctx context.Context, req *geminiRequest) (*geminiResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	var (
		status int
		body   []byte
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		status, body, err = c.do(ctx, url, jsonData)
		if err == nil && status < 500 && status != http.StatusTooManyRequests {
			break
		}
	}
	if err != nil {
		return nil, WrapError(err, ErrCodeNetworkError)
	}

	if status != http.StatusOK {
		var errResp geminiErrorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return nil, errorFromStatus(status,
				fmt.Sprintf("API error: %s (%s)", errResp.Error.Message, errResp.Error.Status))
		}
		return nil, errorFromStatus(status,
			fmt.Sprintf("API error (status %d): %s", status, string(body)))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}
	return &geminiResp, nil
}

// do 执行一次HTTP请求
func (c *GeminiClient) do(ctx context.Context, url string, payload []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}
	return resp.StatusCode, body, nil
}

// processResponse 处理 Gemini 响应
func (c *GeminiClient) processResponse(resp *geminiResponse) (*Response, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, NewLLMError(ErrCodeContentFilter, ErrMsgContentFilter+": "+resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	return &Response{
		Text:         text.String(),
		TokenCount:   resp.UsageMetadata.TotalTokenCount,
		ModelName:    c.model,
		FinishReason: candidate.FinishReason,
		FinishTime:   time.Now(),
	}, nil
}

// 在包初始化时注册 Gemini 客户端
func init() {
	RegisterClient("gemini", NewGeminiClient)
}
