package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel    = "text-embedding-004"

	// 单次 batchEmbedContents 请求上限
	geminiMaxBatch = 100
)

// GeminiClient Gemini 嵌入客户端
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	taskType   string
	dimensions int
	maxRetries int
	httpClient *http.Client
}

// NewGeminiClient 创建 Gemini 嵌入客户端
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      strings.TrimPrefix(model, "models/"),
		taskType:   cfg.TaskType,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, NewEmbeddingError(ErrCodeServerError, "no embedding vectors returned")
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成文本的向量表示
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > geminiMaxBatch {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("gemini supports at most %d texts per batch, got %d", geminiMaxBatch, len(texts)))
	}

	req := geminiBatchRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, text := range texts {
		req.Requests[i] = geminiEmbedRequest{
			Model:                "models/" + c.model,
			Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
			TaskType:             c.taskType,
			OutputDimensionality: c.dimensions,
		}
	}

	var resp geminiBatchResponse
	if err := c.sendRequest(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if c.dimensions > 0 && len(e.Values) != c.dimensions {
			return nil, NewEmbeddingError(ErrCodeDimMismatch,
				fmt.Sprintf("expected dimension %d, got %d", c.dimensions, len(e.Values)))
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// sendRequest 发送请求，对可重试错误做指数退避
func (c *GeminiClient) sendRequest(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}
	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", c.baseURL, c.model)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return wrapError(ctx.Err())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		lastErr = c.doOnce(ctx, url, body, out)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *GeminiClient) doOnce(ctx context.Context, url string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp geminiErrorResponse
		if jsonErr := json.Unmarshal(data, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return errorFromStatus(resp.StatusCode, errResp.Error.Message)
		}
		return errorFromStatus(resp.StatusCode, fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}
	return nil
}

func init() {
	RegisterClient("gemini", NewGeminiClient)
}
