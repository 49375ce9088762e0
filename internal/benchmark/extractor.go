package benchmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/llm"
)

// ErrNoProfile 无法从文本得到结构化数据
var ErrNoProfile = errors.New("failed to extract structured data")

const snippetLength = 200

const extractionPrompt = `You are given the text of an investment memo about one startup.
Extract the facts into a single JSON object with exactly this shape:

{
  "company_overview": {
    "name": "...",
    "sector_hierarchy": ["broad sector", "sub-sector", "niche"],
    "stage": "...",
    "founding_year": 2020,
    "headquarters": "...",
    "description": "...",
    "business_model": "..."
  },
  "financials": {
    "revenue": {"amount": 0, "currency": "INR", "period": "FY24"},
    "gmv": {"amount": 0, "currency": "INR"},
    "cac": {"amount": 0, "currency": "INR"},
    "ltv": {"amount": 0, "currency": "INR"},
    "aov": {"amount": 0, "currency": "INR"},
    "gross_margin_pct": 0,
    "burn_rate": {"amount": 0, "currency": "INR", "period": "monthly"},
    "runway_months": 0
  },
  "market": {
    "tam": {"amount": 0, "currency": "INR"},
    "sam": {"amount": 0, "currency": "INR"},
    "som": {"amount": 0, "currency": "INR"}
  },
  "traction": {"orders_fulfilled_total": 0, "repeat_rate_pct": 0, "customers": 0},
  "fundraise": {
    "round": "...",
    "amount_raising": {"amount": 0, "currency": "INR"},
    "pre_money_valuation": {"amount": 0, "currency": "INR"},
    "post_money_valuation": {"amount": 0, "currency": "INR"},
    "lead_investors": ["..."]
  }
}

Rules:
- Amounts are plain numbers in full units (convert crore, lakh, million and billion).
- Use the currency stated in the memo ("INR" or "USD").
- Use null for anything the memo does not state. Never guess.
- sector_hierarchy goes from the broadest sector to the most specific one.

Respond with JSON only.

Memo text:
%s`

// Extractor 从备忘录文本抽取公司结构化数据
type Extractor struct {
	client  llm.Client
	retrier llm.Retrier
	logger  *logrus.Logger
	now     func() time.Time
}

// ExtractorOption 抽取器配置选项
type ExtractorOption func(*Extractor)

// WithExtractorRetrier 设置重试策略
func WithExtractorRetrier(r llm.Retrier) ExtractorOption {
	return func(e *Extractor) {
		e.retrier = r
	}
}

// WithExtractorLogger 设置日志记录器
func WithExtractorLogger(logger *logrus.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithExtractorClock 设置时钟
func WithExtractorClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		e.now = now
	}
}

// NewExtractor 创建抽取器
func NewExtractor(client llm.Client, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client:  client,
		retrier: llm.DefaultRetrier(),
		logger:  logrus.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract 抽取结构化数据并补充来源信息
// 模型调用失败或输出无法解析时返回 ErrNoProfile
func (e *Extractor) Extract(ctx context.Context, text, filename string) (*CompanyProfile, error) {
	prompt := fmt.Sprintf(extractionPrompt, text)
	parsed := llm.GenerateJSON[CompanyProfile](ctx, e.client, e.retrier, prompt, llm.WithGenerateJSON())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !parsed.OK {
		e.logger.WithField("file", filename).Warn("Structured extraction returned no usable JSON")
		return nil, ErrNoProfile
	}

	profile := parsed.Value
	date := profile.Metadata.ExtractionDate
	if date == "" {
		date = e.now().UTC().Format("2006-01-02")
	}
	profile.Metadata = Metadata{
		SourceDocumentTitle: filename,
		ExtractionDate:      date,
		RawTextSnippet:      snippet(text),
	}
	return &profile, nil
}

// snippet 截取前200个字符
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}
