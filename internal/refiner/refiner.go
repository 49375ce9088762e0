package refiner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/llm"
)

const dealNotePrompt = `You are an investment analyst. Below is structured information extracted from a startup pitch deck,
covering some of: startup summary, product, market, traction, financials and founders.

Write a concise, investor-ready deal note as JSON.

Rules:
- Use up to six top-level sections: Summary, Product, Market, Traction, Financials, Founders.
- Keep only fields that matter for an investment decision; drop generic background.
- Omit a section that has nothing meaningful, and omit keys instead of writing empty strings.
- You may add a field that is not listed below when the data clearly warrants it.
- Never invent or infer details that are not in the input.

Schema:
{
  "Summary": {"Company Name": "...", "Sector": "...", "Business Model": "...", "One Liner": "..."},
  "Product": {"Problem Addressed": "...", "Solution": "...", "Differentiation": "...", "Core Features": ["..."], "Other Relevant": "..."},
  "Market": {"Opportunity": "...", "Competitive Landscape": "...", "Growth Metrics": "...", "Other Relevant": "..."},
  "Traction": {"User Growth": "...", "Conversion Rate": "...", "Revenue Growth": "...", "Key Milestones": ["..."]},
  "Financials": {"Revenue": "...", "Margins": "...", "Unit Economics": "...", "Runway": "...", "Other Relevant": "..."},
  "Founders": {"Team": [{"Name": "...", "Background": "...", "Role": "..."}]}
}

Respond with valid JSON only.

Input Data:
%s`

// Refiner 把逐页抽取结果提炼为交易备忘
type Refiner struct {
	client  llm.Client
	retrier llm.Retrier
	logger  *logrus.Logger
}

// Option 提炼器配置选项
type Option func(*Refiner)

// WithRetrier 设置重试策略
func WithRetrier(r llm.Retrier) Option {
	return func(rf *Refiner) {
		rf.retrier = r
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(rf *Refiner) {
		rf.logger = logger
	}
}

// NewRefiner 创建提炼器
func NewRefiner(client llm.Client, opts ...Option) *Refiner {
	rf := &Refiner{
		client:  client,
		retrier: llm.DefaultRetrier(),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Prompt 生成交易备忘提示词
func Prompt(merged map[string]MergedPitch) (string, error) {
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode merged pitch: %w", err)
	}
	return fmt.Sprintf(dealNotePrompt, data), nil
}

// Refine 合并各页字段后请求模型生成交易备忘
// 模型调用失败或输出无法解析时返回空备忘
func (rf *Refiner) Refine(ctx context.Context, files map[string][]document.PageInsight) (*DealNote, error) {
	prompt, err := Prompt(MergeSimilarKeys(files))
	if err != nil {
		return nil, err
	}

	parsed := llm.GenerateJSON[DealNote](ctx, rf.client, rf.retrier, prompt, llm.WithGenerateJSON())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !parsed.OK {
		rf.logger.WithFields(logrus.Fields{
			"files":   len(files),
			"raw_len": len(parsed.Raw),
		}).Warn("Deal note output could not be parsed, returning empty note")
		return &DealNote{}, nil
	}
	return &parsed.Value, nil
}
