package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/pitch-analyst/internal/benchmark"
	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/refiner"
)

func fixedRenderer() *Renderer {
	return NewRenderer(WithClock(func() time.Time {
		return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	}))
}

// allText 校验PDF结构并返回全部页面文字
func allText(t *testing.T, data []byte) (string, int) {
	t.Helper()
	require.True(t, strings.HasPrefix(string(data), "%PDF"))
	count, err := document.InspectPDF(data)
	require.NoError(t, err)
	pages, err := document.ExtractPageTexts(data)
	require.NoError(t, err)
	return strings.Join(pages, "\n"), count
}

func TestDealNote(t *testing.T) {
	var note refiner.DealNote
	require.NoError(t, json.Unmarshal([]byte(`{
		"Summary": {"Company Name": "Acme", "Overview": "Snacks delivered in ten minutes"},
		"Market": {"Segments": ["Metro households", "Offices"]},
		"Financials": {"Revenue": "Rs 5 Cr", "Burn": "40 lakh per month"},
		"Founders": {"Team": [{"Name": "Asha", "Role": "CEO", "Background": "Ex-Flipkart category lead"}]}
	}`), &note))

	data, err := fixedRenderer().DealNote(&note)
	require.NoError(t, err)
	text, pages := allText(t, data)
	assert.GreaterOrEqual(t, pages, 1)
	assert.Contains(t, text, "Acme")
	assert.Contains(t, text, "Financials")
	assert.Contains(t, text, "Asha")

	data, err = fixedRenderer().DealNote(&refiner.DealNote{})
	require.NoError(t, err)
	text, _ = allText(t, data)
	assert.Contains(t, text, "Deal Note")
}

func TestMemo(t *testing.T) {
	md := `# Acme Investment Memo

## Team Overview
The team has **two founders** with *deep* retail experience.

- Asha, CEO
- Ravi, CTO
  1. Built payments at scale
  2. Led a 40 person team

### Hiring Plan
Hiring a CFO next quarter.

| Metric | Value |
|--------|-------|
| Revenue | Rs 5 Cr |
| Margin | 38% |

## Risks & Mitigations
Quick-commerce margins are thin.`

	data, err := fixedRenderer().Memo(md, "Acme")
	require.NoError(t, err)
	text, pages := allText(t, data)
	assert.GreaterOrEqual(t, pages, 2)
	assert.Contains(t, text, "Investment Memo")
	assert.Contains(t, text, "CONFIDENTIAL")
	assert.Contains(t, text, "Team Overview")
	assert.Contains(t, text, "Revenue")

	data, err = fixedRenderer().Memo("", "")
	require.NoError(t, err)
	text, _ = allText(t, data)
	assert.Contains(t, text, "Target Company")
}

func TestRenderBenchmark(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	target := benchmark.MetricsRow{
		CompanyName: "Acme", Sector: "Consumer > D2C", Stage: "Seed",
		Revenue: v(5e7), CAC: v(500), LTVCACRatio: v(4), GrossMarginPct: v(40), IsTarget: true,
	}
	peer := benchmark.MetricsRow{
		CompanyName: "Beta", Sector: "Consumer > D2C", Stage: "Series A",
		Revenue: v(1e8), CAC: v(800), LTVCACRatio: v(2), GrossMarginPct: v(30),
	}
	rep := &benchmark.Report{
		TargetRow:   target,
		Rows:        []benchmark.MetricsRow{peer, target},
		Competitors: []benchmark.MetricsRow{peer},
		Insights: benchmark.Insights{
			Insights:            []string{"Revenue performance: 50th percentile among peers"},
			Recommendations:     []string{"Focus on revenue growth strategies"},
			CompetitivePosition: benchmark.PositionCompetitive,
			Percentiles:         map[string]float64{benchmark.MetricRevenue: 50},
			AISummary:           "## COMPETITIVE ADVANTAGES\n- **Lean** acquisition\n## INVESTMENT PERSPECTIVE\n- Worth a second meeting",
		},
		Benchmarks: map[string]benchmark.Benchmark{
			benchmark.MetricRevenue: {Median: 7.5e7, P25: 6.25e7, P75: 8.75e7, FormattedMedian: "₹75.00M"},
		},
	}
	rep.Target.CompanyOverview.Description = "Ten minute snack delivery"
	rep.Target.Fundraise.Round = "Seed"

	data, err := fixedRenderer().RenderBenchmark(rep)
	require.NoError(t, err)
	text, pages := allText(t, data)
	assert.GreaterOrEqual(t, pages, 2)
	assert.Contains(t, text, "Benchmark Analysis")
	assert.Contains(t, text, "Executive Summary")
	assert.Contains(t, text, "Competitive Position")
	assert.Contains(t, text, "INVESTMENT PERSPECTIVE")

	_, err = fixedRenderer().RenderBenchmark(nil)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Acme", truncate("Acme", 5))
	assert.Equal(t, "Acme…", truncate("Acme Foods", 5))
}
