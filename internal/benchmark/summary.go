package benchmark

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/llm"
)

const summaryPrompt = `You are a venture analyst writing the closing commentary of a competitive benchmark.

Company: %s
Sector: %s
Peers compared: %d (%s)

Key metrics:
%s

Findings:
%s

Recommendations:
%s

Overall position: %s

Write a concise analysis with exactly these sections:

## COMPETITIVE ADVANTAGES
## COMPETITIVE DISADVANTAGES
## STRATEGIC RECOMMENDATIONS
## INVESTMENT PERSPECTIVE

Use short bullet points under each heading. Refer only to the numbers above.`

// Summarizer 生成基准分析的文字点评
type Summarizer struct {
	client  llm.Client
	retrier llm.Retrier
	logger  *logrus.Logger
}

// NewSummarizer 创建点评生成器
func NewSummarizer(client llm.Client, retrier llm.Retrier, logger *logrus.Logger) *Summarizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Summarizer{client: client, retrier: retrier, logger: logger}
}

// Prompt 组装点评提示词
func (s *Summarizer) Prompt(target MetricsRow, competitors []MetricsRow, in Insights) string {
	names := make([]string, 0, 3)
	for i, c := range competitors {
		if i == 3 {
			break
		}
		names = append(names, c.CompanyName)
	}

	metrics := []string{
		"- Revenue: " + crore(target.Revenue),
		"- CAC: " + FormatCurrency(target.CAC),
		"- Gross margin: " + percent(target.GrossMarginPct),
		"- Valuation: " + FormatCurrency(target.Valuation),
		"- Orders fulfilled: " + plain(target.OrdersFulfilled),
		"- Repeat rate: " + percent(target.RepeatRatePct),
	}

	return fmt.Sprintf(summaryPrompt,
		target.CompanyName,
		target.Sector,
		len(competitors),
		strings.Join(names, ", "),
		strings.Join(metrics, "\n"),
		bullets(in.Insights),
		bullets(in.Recommendations),
		in.CompetitivePosition,
	)
}

// Summarize 调用模型生成点评，失败时返回空串
func (s *Summarizer) Summarize(ctx context.Context, target MetricsRow, competitors []MetricsRow, in Insights) string {
	text, err := s.retrier.GenerateText(ctx, s.client, s.Prompt(target, competitors, in))
	if err != nil {
		s.logger.WithError(err).Warn("Failed to generate benchmark summary")
		return ""
	}
	return strings.TrimSpace(text)
}

func crore(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("Rs%.1fCr", *v/1e7)
}

func percent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func plain(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f", *v)
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "- None"
	}
	return "- " + strings.Join(items, "\n- ")
}

// SummarySection 点评中的一个二级标题段落
type SummarySection struct {
	Title string
	Lines []string
}

// SplitSummary 按 "##" 标题拆分点评
func SplitSummary(text string) []SummarySection {
	var sections []SummarySection
	for _, part := range strings.Split(text, "##") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lines := strings.Split(part, "\n")
		sec := SummarySection{Title: strings.TrimSpace(lines[0])}
		for _, l := range lines[1:] {
			l = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(l), "-*•"))
			if l != "" {
				sec.Lines = append(sec.Lines, l)
			}
		}
		sections = append(sections, sec)
	}
	return sections
}
