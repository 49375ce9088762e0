package report

import (
	"fmt"
	"strings"

	"github.com/fyerfyer/pitch-analyst/internal/benchmark"
)

// 图表和评分卡中展示的指标
var chartMetrics = []struct {
	metric string
	title  string
	format func(float64) string
}{
	{benchmark.MetricRevenue, "Revenue Comparison", money},
	{benchmark.MetricCAC, "Customer Acquisition Cost", money},
	{benchmark.MetricLTVCAC, "LTV/CAC Ratio", ratio},
	{benchmark.MetricGrossMargin, "Gross Margin (%)", pct},
	{benchmark.MetricValuation, "Valuation", money},
}

var scoreLabels = map[string]string{
	benchmark.MetricRevenue:     "Revenue",
	benchmark.MetricCAC:         "CAC (lower is better)",
	benchmark.MetricLTVCAC:      "LTV/CAC",
	benchmark.MetricGrossMargin: "Gross Margin",
	benchmark.MetricValuation:   "Valuation",
}

// RenderBenchmark 渲染基准分析报告
func (r *Renderer) RenderBenchmark(rep *benchmark.Report) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("benchmark report is nil")
	}
	p := newPage()
	p.pdf.AddPage()

	target := rep.TargetRow
	p.title(target.CompanyName + " Benchmark Analysis")
	p.subtitle(r.dateLine())

	w := p.width()
	overview := rep.Target.CompanyOverview
	p.section("Company Overview")
	p.table([]float64{w * 0.35, w * 0.65}, nil, [][]string{
		{"Sector", target.Sector},
		{"Stage", target.Stage},
		{"Founded", number(target.FoundingYear)},
		{"Headquarters", orNA(overview.Headquarters)},
	})
	if overview.Description != "" {
		p.subsection("Company Description")
		p.paragraph(overview.Description)
	}
	if overview.BusinessModel != "" {
		p.subsection("Business Model")
		p.paragraph(overview.BusinessModel)
	}

	p.section("Key Financial Metrics")
	p.table([]float64{w * 0.5, w * 0.5}, []string{"Metric", "Value"}, [][]string{
		{"Revenue", benchmark.FormatCurrency(target.Revenue)},
		{"GMV", benchmark.FormatCurrency(target.GMV)},
		{"CAC", benchmark.FormatCurrency(target.CAC)},
		{"AOV", benchmark.FormatCurrency(target.AOV)},
		{"LTV/CAC Ratio", optional(target.LTVCACRatio, ratio)},
		{"Gross Margin", optional(target.GrossMarginPct, pct)},
		{"Revenue Multiple", optional(target.RevenueMultiple, ratio)},
	})

	in := rep.Insights
	p.section("Executive Summary")
	if len(in.Insights) == 0 {
		p.paragraph("Not enough overlapping metrics to compare against peers.")
	}
	for _, s := range in.Insights {
		p.bullet(s)
	}
	if len(in.Recommendations) > 0 {
		p.section("Key Recommendations")
		for _, s := range in.Recommendations {
			p.bullet(s)
		}
	}
	p.section("Competitive Position")
	p.paragraph(in.CompetitivePosition)

	p.section("Performance Analysis")
	for _, m := range chartMetrics {
		p.barChart(m.title, bars(rep.Rows, m.metric), m.format)
	}
	var scores []bar
	for _, m := range chartMetrics {
		if v, ok := in.Percentiles[m.metric]; ok {
			scores = append(scores, bar{label: scoreLabels[m.metric], value: v})
		}
	}
	p.scorecard(scores)

	if len(rep.Benchmarks) > 0 {
		p.section("Sector Benchmarks")
		var rows [][]string
		for _, m := range chartMetrics {
			b, ok := rep.Benchmarks[m.metric]
			if !ok {
				continue
			}
			median := b.FormattedMedian
			if median == "" {
				median = m.format(b.Median)
			}
			rows = append(rows, []string{m.title, median, m.format(b.P25), m.format(b.P75)})
		}
		p.table([]float64{w * 0.34, w * 0.22, w * 0.22, w * 0.22}, []string{"Metric", "Median", "25th pct", "75th pct"}, rows)
	}

	fr := rep.Target.Fundraise
	if fr.Round != "" || fr.AmountRaising != nil || target.Valuation != nil {
		p.section("Fundraise Analysis")
		rows := [][]string{
			{"Round", orNA(fr.Round)},
			{"Amount Raising", benchmark.FormatCurrency(fr.AmountRaising.Value())},
			{"Valuation", benchmark.FormatCurrency(target.Valuation)},
		}
		if len(fr.LeadInvestors) > 0 {
			rows = append(rows, []string{"Lead Investors", strings.Join(fr.LeadInvestors, ", ")})
		}
		p.table([]float64{w * 0.4, w * 0.6}, nil, rows)
	}

	if target.OrdersFulfilled != nil || target.RepeatRatePct != nil {
		p.section("Traction Metrics")
		p.table([]float64{w * 0.5, w * 0.5}, []string{"Metric", "Value"}, [][]string{
			{"Orders Fulfilled", number(target.OrdersFulfilled)},
			{"Repeat Rate", optional(target.RepeatRatePct, pct)},
		})
	}

	if summary := benchmark.SplitSummary(in.AISummary); len(summary) > 0 {
		p.pdf.AddPage()
		p.title("AI-Powered Competitive Analysis")
		for _, s := range summary {
			p.section(s.Title)
			for _, l := range s.Lines {
				p.bullet(strings.ReplaceAll(l, "**", ""))
			}
		}
	}
	return p.bytes()
}

func bars(rows []benchmark.MetricsRow, metric string) []bar {
	var out []bar
	for _, r := range rows {
		v := r.Metric(metric)
		if v == nil {
			continue
		}
		out = append(out, bar{label: r.CompanyName, value: *v, target: r.IsTarget})
	}
	return out
}

func money(v float64) string { return benchmark.FormatCurrency(&v) }
func ratio(v float64) string { return fmt.Sprintf("%.2fx", v) }
func pct(v float64) string   { return fmt.Sprintf("%.1f%%", v) }

func formatPercentile(v float64) string {
	return fmt.Sprintf("%.0f", v)
}

func optional(v *float64, format func(float64) string) string {
	if v == nil {
		return "N/A"
	}
	return format(*v)
}

func number(v *float64) string {
	return optional(v, func(f float64) string { return fmt.Sprintf("%.0f", f) })
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
