package benchmark

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// 竞争地位评级
const (
	PositionStrong       = "Strong market position"
	PositionCompetitive  = "Competitive market position"
	PositionBelowAverage = "Below average performance"
	PositionWeak         = "Needs significant improvement"
	PositionUnknown      = "Insufficient data for assessment"
)

// Insights 目标公司相对同行的结论
type Insights struct {
	Insights            []string           `json:"insights"`
	Recommendations     []string           `json:"recommendations"`
	CompetitivePosition string             `json:"competitive_position"`
	Percentiles         map[string]float64 `json:"percentiles"`
	AISummary           string             `json:"ai_summary,omitempty"`
}

// Percentile 目标值在同行中的百分位
// 目标缺失为0，同行全部缺失为50，并列时取最靠前的名次
func Percentile(value *float64, peers []*float64) float64 {
	if value == nil {
		return 0
	}
	all := make([]float64, 0, len(peers)+1)
	for _, p := range peers {
		if p != nil {
			all = append(all, *p)
		}
	}
	if len(all) == 0 {
		return 50
	}
	all = append(all, *value)
	slices.Sort(all)
	rank := slices.Index(all, *value) + 1
	return float64(rank) / float64(len(all)) * 100
}

// metricRule 单个指标的结论模板
type metricRule struct {
	metric      string
	insight     string
	lowerBetter bool
	low         string
	high        string
}

var insightRules = []metricRule{
	{
		metric:  MetricRevenue,
		insight: "Revenue performance: %.0fth percentile among peers",
		low:     "Focus on revenue growth strategies",
		high:    "Strong revenue position - consider scaling strategies",
	},
	{
		metric:      MetricCAC,
		insight:     "Customer Acquisition Cost: %.0fth percentile (lower is better)",
		lowerBetter: true,
		low:         "High CAC - optimize marketing channels and conversion",
	},
	{
		metric:  MetricLTVCAC,
		insight: "LTV/CAC ratio: %.0fth percentile among peers",
		low:     "Improve customer lifetime value or reduce acquisition costs",
	},
	{
		metric:  MetricGrossMargin,
		insight: "Gross margin: %.0fth percentile among peers",
		low:     "Focus on improving unit economics and cost structure",
	},
	{
		metric:  MetricValuation,
		insight: "Valuation: %.0fth percentile among peers",
	},
}

// positionMetrics 参与竞争地位评分的指标
var positionMetrics = []string{MetricRevenue, MetricLTVCAC, MetricGrossMargin}

// Analyze 比较目标公司与竞品
func Analyze(target MetricsRow, competitors []MetricsRow) Insights {
	out := Insights{
		Insights:        []string{},
		Recommendations: []string{},
		Percentiles:     make(map[string]float64),
	}

	for _, rule := range insightRules {
		value := target.Metric(rule.metric)
		if value == nil || *value == 0 {
			continue
		}
		peers := make([]*float64, 0, len(competitors))
		hasPeer := false
		for _, c := range competitors {
			v := c.Metric(rule.metric)
			peers = append(peers, v)
			if v != nil {
				hasPeer = true
			}
		}
		if !hasPeer {
			continue
		}

		pct := Percentile(value, peers)
		if rule.lowerBetter {
			pct = 100 - pct
		}
		out.Percentiles[rule.metric] = pct
		out.Insights = append(out.Insights, fmt.Sprintf(rule.insight, pct))

		if pct < 25 && rule.low != "" {
			out.Recommendations = append(out.Recommendations, rule.low)
		} else if pct > 75 && rule.high != "" {
			out.Recommendations = append(out.Recommendations, rule.high)
		}
	}

	out.CompetitivePosition = competitivePosition(out.Percentiles)
	return out
}

func competitivePosition(percentiles map[string]float64) string {
	var sum float64
	var n int
	for _, m := range positionMetrics {
		if p, ok := percentiles[m]; ok {
			sum += p
			n++
		}
	}
	if n == 0 {
		return PositionUnknown
	}
	switch avg := sum / float64(n); {
	case avg >= 75:
		return PositionStrong
	case avg >= 50:
		return PositionCompetitive
	case avg >= 25:
		return PositionBelowAverage
	default:
		return PositionWeak
	}
}

// Benchmark 行业内某指标的分布
type Benchmark struct {
	Median          float64 `json:"median"`
	P25             float64 `json:"p25"`
	P75             float64 `json:"p75"`
	FormattedMedian string  `json:"formatted_median,omitempty"`
}

var benchmarkMetrics = []string{MetricRevenue, MetricCAC, MetricLTVCAC, MetricGrossMargin}

// SectorBenchmarks 计算同一细分行业公司的指标分布
// 行业按层级最后一级匹配，忽略大小写
func SectorBenchmarks(rows []MetricsRow, sectorPath string) map[string]Benchmark {
	out := make(map[string]Benchmark)
	label := sectorPath
	if i := strings.LastIndex(sectorPath, sectorSeparator); i >= 0 {
		label = sectorPath[i+len(sectorSeparator):]
	}
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return out
	}

	var matched []MetricsRow
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Sector), label) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return out
	}

	for _, metric := range benchmarkMetrics {
		var values []float64
		for _, r := range matched {
			if v := r.Metric(metric); v != nil {
				values = append(values, *v)
			}
		}
		if len(values) == 0 {
			continue
		}
		slices.Sort(values)
		b := Benchmark{
			Median: quantile(values, 0.5),
			P25:    quantile(values, 0.25),
			P75:    quantile(values, 0.75),
		}
		if metric == MetricRevenue || metric == MetricCAC {
			b.FormattedMedian = FormatCurrency(&b.Median)
		}
		out[metric] = b
	}
	return out
}

// quantile 线性插值分位数，输入已排序
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// FormatCurrency 以卢比和 B/M/K 单位展示金额
func FormatCurrency(v *float64) string {
	if v == nil || *v == 0 {
		return "N/A"
	}
	a := *v
	switch abs := math.Abs(a); {
	case abs >= 1e9:
		return fmt.Sprintf("₹%.2fB", a/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("₹%.2fM", a/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("₹%.2fK", a/1e3)
	default:
		return fmt.Sprintf("₹%.2f", a)
	}
}
