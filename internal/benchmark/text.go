package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/llm"
)

const ocrPrompt = `Transcribe all text on this page exactly as written, including numbers, table cells and chart labels.
Keep the reading order. Output plain text only, without commentary.`

// TextExtractor 提取备忘录PDF的全文
// 优先用多模态模型逐页识别，失败或为空时退回PDF文本层
type TextExtractor struct {
	client    llm.Client
	renderer  document.PageRenderer
	retrier   llm.Retrier
	useVision bool
	logger    *logrus.Logger
}

// TextExtractorOption 文本提取器配置选项
type TextExtractorOption func(*TextExtractor)

// WithVision 使用多模态模型识别页面图片
func WithVision(client llm.Client, renderer document.PageRenderer) TextExtractorOption {
	return func(t *TextExtractor) {
		t.client = client
		t.renderer = renderer
		t.useVision = client != nil && renderer != nil
	}
}

// WithTextRetrier 设置重试策略
func WithTextRetrier(r llm.Retrier) TextExtractorOption {
	return func(t *TextExtractor) {
		t.retrier = r
	}
}

// WithTextLogger 设置日志记录器
func WithTextLogger(logger *logrus.Logger) TextExtractorOption {
	return func(t *TextExtractor) {
		t.logger = logger
	}
}

// NewTextExtractor 创建文本提取器
func NewTextExtractor(opts ...TextExtractorOption) *TextExtractor {
	t := &TextExtractor{
		retrier: llm.DefaultRetrier(),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Extract 返回全文，无法得到任何文本时返回 document.ErrEmptyPDF
func (t *TextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if t.useVision {
		text, err := t.extractWithVision(ctx, data)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		t.logger.WithField("error", fmt.Sprint(err)).Warn("Vision text extraction failed, falling back to text layer")
	}

	pages, err := document.ExtractPageTexts(data)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text layer: %w", err)
	}
	text := strings.TrimSpace(strings.Join(pages, "\n"))
	if text == "" {
		return "", document.ErrEmptyPDF
	}
	return text, nil
}

// extractWithVision 逐页识别，单页失败跳过
func (t *TextExtractor) extractWithVision(ctx context.Context, data []byte) (string, error) {
	images, err := t.renderer.Render(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to render pages: %w", err)
	}

	var buf bytes.Buffer
	for _, img := range images {
		text, err := t.retrier.GenerateText(ctx, t.client, ocrPrompt,
			llm.WithGenerateImages(llm.Image{MimeType: "image/png", Data: img.PNG}))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			t.logger.WithFields(logrus.Fields{
				"page":  img.PageNumber,
				"error": err.Error(),
			}).Warn("Page transcription failed")
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			buf.WriteString(text)
			buf.WriteByte('\n')
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
