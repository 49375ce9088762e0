package benchmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/models"
)

var (
	ErrNoSector          = errors.New("No sector information found in memo")
	ErrNoCompetitors     = errors.New("no competitors found in the same sector")
	ErrNoComparisonData  = errors.New("no comparison data available")
	ErrReportUnavailable = errors.New("benchmark report renderer not configured")
)

// CompetitorSource 按行业查找已入库的备忘录
type CompetitorSource interface {
	FindBySectors(ctx context.Context, sectors []string) ([]*models.SectorMemo, error)
}

// ReportRenderer 把分析结果排版为PDF
type ReportRenderer interface {
	RenderBenchmark(report *Report) ([]byte, error)
}

// Report 一次基准分析的完整结果
type Report struct {
	Target      CompanyProfile       `json:"target"`
	TargetRow   MetricsRow           `json:"target_row"`
	Rows        []MetricsRow         `json:"rows"`
	Competitors []MetricsRow         `json:"competitors"`
	Insights    Insights             `json:"insights"`
	Benchmarks  map[string]Benchmark `json:"benchmarks"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Flow 基准分析流程：抽取、匹配竞品、对比、点评、出报告
type Flow struct {
	extractor   *Extractor
	competitors CompetitorSource
	summarizer  *Summarizer
	renderer    ReportRenderer
	usdToINR    float64
	aiSummary   bool
	logger      *logrus.Logger
	now         func() time.Time
}

// FlowOption 流程配置选项
type FlowOption func(*Flow)

// WithSummarizer 启用文字点评
func WithSummarizer(s *Summarizer) FlowOption {
	return func(f *Flow) {
		f.summarizer = s
		f.aiSummary = s != nil
	}
}

// WithRenderer 设置报告渲染器
func WithRenderer(r ReportRenderer) FlowOption {
	return func(f *Flow) {
		f.renderer = r
	}
}

// WithUSDToINR 设置汇率
func WithUSDToINR(rate float64) FlowOption {
	return func(f *Flow) {
		if rate > 0 {
			f.usdToINR = rate
		}
	}
}

// WithFlowLogger 设置日志
func WithFlowLogger(logger *logrus.Logger) FlowOption {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithFlowClock 设置时钟
func WithFlowClock(now func() time.Time) FlowOption {
	return func(f *Flow) {
		f.now = now
	}
}

// NewFlow 创建基准分析流程
func NewFlow(extractor *Extractor, competitors CompetitorSource, opts ...FlowOption) *Flow {
	f := &Flow{
		extractor:   extractor,
		competitors: competitors,
		usdToINR:    DefaultUSDToINR,
		logger:      logrus.StandardLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Analyze 对备忘录文本执行完整的对比分析
func (f *Flow) Analyze(ctx context.Context, memoText, filename string) (*Report, error) {
	target, err := f.extractor.Extract(ctx, memoText, filename)
	if err != nil {
		return nil, err
	}
	sectors := target.Sectors()
	if len(sectors) == 0 {
		return nil, ErrNoSector
	}

	memos, err := f.competitors.FindBySectors(ctx, sectors)
	if err != nil {
		return nil, fmt.Errorf("failed to find competitors: %w", err)
	}
	if len(memos) == 0 {
		return nil, ErrNoCompetitors
	}

	competitors := make([]Competitor, 0, len(memos))
	for _, m := range memos {
		c, err := CompetitorFromMemo(m)
		if err != nil {
			f.logger.WithError(err).WithField("memo_id", m.ID).Warn("Skipping unreadable memo")
			continue
		}
		competitors = append(competitors, c)
	}

	rows := BuildComparison(target, competitors, f.usdToINR)
	if len(rows) == 0 {
		return nil, ErrNoComparisonData
	}

	report := &Report{
		Target:      *target,
		Rows:        rows,
		Competitors: []MetricsRow{},
		GeneratedAt: f.now(),
	}
	found := false
	for _, r := range rows {
		if r.IsTarget && !found {
			report.TargetRow = r
			found = true
			continue
		}
		report.Competitors = append(report.Competitors, r)
	}
	if !found {
		report.TargetRow = ExtractRow(targetID, *target, f.usdToINR)
	}

	report.Insights = Analyze(report.TargetRow, report.Competitors)
	report.Benchmarks = SectorBenchmarks(rows, target.SectorPath())

	if f.aiSummary {
		report.Insights.AISummary = f.summarizer.Summarize(ctx, report.TargetRow, report.Competitors, report.Insights)
	}

	f.logger.WithFields(logrus.Fields{
		"company":     report.TargetRow.CompanyName,
		"competitors": len(report.Competitors),
		"position":    report.Insights.CompetitivePosition,
	}).Info("Benchmark analysis completed")
	return report, nil
}

// Run 分析并渲染PDF报告
func (f *Flow) Run(ctx context.Context, memoText, filename string) ([]byte, *Report, error) {
	if f.renderer == nil {
		return nil, nil, ErrReportUnavailable
	}
	report, err := f.Analyze(ctx, memoText, filename)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := f.renderer.RenderBenchmark(report)
	if err != nil {
		return nil, report, fmt.Errorf("failed to render benchmark report: %w", err)
	}
	return pdf, report, nil
}
