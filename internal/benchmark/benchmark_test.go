package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/llm"
	"github.com/fyerfyer/pitch-analyst/internal/models"
)

var noRetry = llm.Retrier{Attempts: 1, Delay: time.Millisecond}

func ptr(v float64) *float64 { return &v }

func inr(v float64) *Amount {
	return &Amount{Amount: NewNumber(v), Currency: "INR"}
}

func profile(name string, revenue, cac, ltv, margin float64) CompanyProfile {
	return CompanyProfile{
		CompanyOverview: Overview{Name: name, SectorHierarchy: []string{"Consumer", "D2C"}, Stage: "Seed"},
		Financials: Financials{
			Revenue:        inr(revenue),
			CAC:            inr(cac),
			LTV:            inr(ltv),
			GrossMarginPct: NewNumber(margin),
		},
	}
}

type stubSource struct {
	memos []*models.SectorMemo
	err   error
	asked []string
}

func (s *stubSource) FindBySectors(_ context.Context, sectors []string) ([]*models.SectorMemo, error) {
	s.asked = sectors
	return s.memos, s.err
}

type stubRenderer struct {
	got *Report
}

func (r *stubRenderer) RenderBenchmark(report *Report) ([]byte, error) {
	r.got = report
	return []byte("%PDF-stub"), nil
}

func memoFor(t *testing.T, id string, p CompanyProfile) *models.SectorMemo {
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return &models.SectorMemo{ID: id, CompanyName: p.Name(), Sectors: p.Sectors(), Data: datatypes.JSON(data)}
}

func TestNumberUnmarshal(t *testing.T) {
	var v struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
		E Number `json:"e"`
	}
	err := json.Unmarshal([]byte(`{"a": 12.5, "b": "1,200", "c": "35%", "d": "unknown", "e": null}`), &v)
	require.NoError(t, err)

	assert.Equal(t, NewNumber(12.5), v.A)
	assert.Equal(t, NewNumber(1200), v.B)
	assert.Equal(t, NewNumber(35), v.C)
	assert.False(t, v.D.Valid)
	assert.Nil(t, v.E.Ptr())

	out, err := json.Marshal(v.D)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestExtractRow(t *testing.T) {
	p := profile("Acme", 5e7, 500, 2000, 40)
	p.Fundraise.PostMoneyValuation = &Amount{Amount: NewNumber(2e6), Currency: "USD"}
	p.Fundraise.PreMoneyValuation = inr(1e8)

	row := ExtractRow("acme", p, DefaultUSDToINR)
	assert.Equal(t, "Acme", row.CompanyName)
	assert.Equal(t, "Consumer > D2C", row.Sector)
	require.NotNil(t, row.Valuation)
	assert.InDelta(t, 1.66e8, *row.Valuation, 1)
	require.NotNil(t, row.LTVCACRatio)
	assert.InDelta(t, 4.0, *row.LTVCACRatio, 1e-9)
	// 收入倍数不做币种折算
	require.NotNil(t, row.RevenueMultiple)
	assert.InDelta(t, 0.04, *row.RevenueMultiple, 1e-9)

	empty := ExtractRow("memo-7", CompanyProfile{}, DefaultUSDToINR)
	assert.Equal(t, "memo-7", empty.CompanyName)
	assert.Equal(t, "Unknown", empty.Sector)
	assert.Equal(t, "Unknown", empty.Stage)
	assert.Nil(t, empty.Valuation)
	assert.Nil(t, empty.LTVCACRatio)

	p.Fundraise.PostMoneyValuation = &Amount{Amount: NewNumber(0)}
	row = ExtractRow("acme", p, DefaultUSDToINR)
	assert.InDelta(t, 1e8, *row.Valuation, 1)
}

func TestBuildComparison(t *testing.T) {
	target := profile("Acme", 5e7, 500, 2000, 40)

	t.Run("target appended when absent", func(t *testing.T) {
		rows := BuildComparison(&target, []Competitor{{ID: "beta", Profile: profile("Beta", 1e8, 800, 1600, 30)}}, 0)
		require.Len(t, rows, 2)
		assert.False(t, rows[0].IsTarget)
		assert.True(t, rows[1].IsTarget)
		assert.Equal(t, "Acme", rows[1].CompanyName)
	})

	t.Run("existing memo for target is reused", func(t *testing.T) {
		rows := BuildComparison(&target, []Competitor{
			{ID: "acme", Profile: profile("Acme", 4e7, 500, 2000, 40)},
			{ID: "beta", Profile: profile("Beta", 1e8, 800, 1600, 30)},
		}, 0)
		require.Len(t, rows, 2)
		assert.True(t, rows[0].IsTarget)
		assert.InDelta(t, 4e7, *rows[0].Revenue, 1)
	})
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, []*float64{ptr(1)}))
	assert.Equal(t, 50.0, Percentile(ptr(3), []*float64{nil, nil}))
	assert.InDelta(t, 66.67, Percentile(ptr(5), []*float64{ptr(2), ptr(9)}), 0.01)
	// 并列取最靠前的名次
	assert.InDelta(t, 33.33, Percentile(ptr(5), []*float64{ptr(5), ptr(5)}), 0.01)
}

func TestAnalyze(t *testing.T) {
	t.Run("mid-table company", func(t *testing.T) {
		target := profile("Acme", 5e7, 500, 2000, 40)
		target.Fundraise.PostMoneyValuation = &Amount{Amount: NewNumber(2e6), Currency: "USD"}
		beta := profile("Beta", 1e8, 800, 1600, 30)
		beta.Fundraise.PreMoneyValuation = inr(5e8)
		gamma := profile("Gamma", 2e7, 300, 1500, 50)

		rows := BuildComparison(&target, []Competitor{{ID: "b", Profile: beta}, {ID: "g", Profile: gamma}}, DefaultUSDToINR)
		out := Analyze(rows[2], rows[:2])

		assert.Equal(t, []string{
			"Revenue performance: 67th percentile among peers",
			"Customer Acquisition Cost: 33th percentile (lower is better)",
			"LTV/CAC ratio: 67th percentile among peers",
			"Gross margin: 67th percentile among peers",
			"Valuation: 50th percentile among peers",
		}, out.Insights)
		assert.Empty(t, out.Recommendations)
		assert.Equal(t, PositionCompetitive, out.CompetitivePosition)
	})

	t.Run("laggard gets recommendations", func(t *testing.T) {
		target := MetricsRow{CompanyName: "Acme", Revenue: ptr(1), CAC: ptr(900)}
		var peers []MetricsRow
		for _, v := range []float64{2, 3, 4, 5} {
			peers = append(peers, MetricsRow{Revenue: ptr(v), CAC: ptr(v * 10)})
		}
		out := Analyze(target, peers)
		assert.Equal(t, []string{
			"Focus on revenue growth strategies",
			"High CAC - optimize marketing channels and conversion",
		}, out.Recommendations)
		assert.Equal(t, PositionWeak, out.CompetitivePosition)
	})

	t.Run("no comparable metrics", func(t *testing.T) {
		out := Analyze(MetricsRow{CompanyName: "Acme", Revenue: ptr(0)}, []MetricsRow{{Revenue: ptr(5)}})
		assert.Empty(t, out.Insights)
		assert.Equal(t, PositionUnknown, out.CompetitivePosition)
	})
}

func TestSectorBenchmarks(t *testing.T) {
	rows := []MetricsRow{
		{Sector: "Consumer > D2C", Revenue: ptr(2e7), CAC: ptr(300)},
		{Sector: "Consumer > d2c", Revenue: ptr(5e7)},
		{Sector: "Consumer > D2C", Revenue: ptr(1e8), CAC: ptr(800)},
		{Sector: "Fintech > Lending", Revenue: ptr(9e9)},
	}

	out := SectorBenchmarks(rows, "Consumer > D2C")
	rev := out[MetricRevenue]
	assert.InDelta(t, 5e7, rev.Median, 1)
	assert.InDelta(t, 3.5e7, rev.P25, 1)
	assert.InDelta(t, 7.5e7, rev.P75, 1)
	assert.Equal(t, "₹50.00M", rev.FormattedMedian)
	assert.InDelta(t, 550, out[MetricCAC].Median, 1e-9)
	assert.NotContains(t, out, MetricGrossMargin)

	assert.Empty(t, SectorBenchmarks(rows, "Healthcare"))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "N/A", FormatCurrency(nil))
	assert.Equal(t, "N/A", FormatCurrency(ptr(0)))
	assert.Equal(t, "₹1.50B", FormatCurrency(ptr(1.5e9)))
	assert.Equal(t, "₹2.50K", FormatCurrency(ptr(2500)))
	assert.Equal(t, "₹12.00", FormatCurrency(ptr(12)))
}

func TestSplitSummary(t *testing.T) {
	sections := SplitSummary("## COMPETITIVE ADVANTAGES\n- Lean CAC\n- High margin\n\n## INVESTMENT PERSPECTIVE\n* Worth a look")
	require.Len(t, sections, 2)
	assert.Equal(t, "COMPETITIVE ADVANTAGES", sections[0].Title)
	assert.Equal(t, []string{"Lean CAC", "High margin"}, sections[0].Lines)
	assert.Equal(t, []string{"Worth a look"}, sections[1].Lines)
}

const acmeJSON = `{"company_overview": {"name": "Acme", "sector_hierarchy": ["Consumer", "D2C"]},
"financials": {"revenue": {"amount": 50000000, "currency": "INR"}, "cac": {"amount": "500"}, "ltv": {"amount": 2000}, "gross_margin_pct": 40}}`

func TestExtractor(t *testing.T) {
	client := llm.NewMockClient(t)
	client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "```json\n" + acmeJSON + "\n```"}, nil).Once()

	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	e := NewExtractor(client, WithExtractorRetrier(noRetry), WithExtractorClock(func() time.Time { return fixed }))
	p, err := e.Extract(context.Background(), "Acme sells snacks online.", "acme.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.Name())
	assert.InDelta(t, 500, *p.Financials.CAC.Value(), 1e-9)
	assert.Equal(t, "acme.pdf", p.Metadata.SourceDocumentTitle)
	assert.Equal(t, "2025-03-01", p.Metadata.ExtractionDate)
	assert.Equal(t, "Acme sells snacks online.", p.Metadata.RawTextSnippet)

	bad := llm.NewMockClient(t)
	bad.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "sorry"}, nil).Once()
	_, err = NewExtractor(bad, WithExtractorRetrier(noRetry)).Extract(context.Background(), "x", "x.pdf")
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestFlow(t *testing.T) {
	newFlow := func(t *testing.T, output string, src CompetitorSource, opts ...FlowOption) *Flow {
		client := llm.NewMockClient(t)
		client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
			Return(&llm.Response{Text: output}, nil).Once()
		return NewFlow(NewExtractor(client, WithExtractorRetrier(noRetry)), src, opts...)
	}

	t.Run("full report", func(t *testing.T) {
		src := &stubSource{memos: []*models.SectorMemo{
			memoFor(t, "Beta", profile("Beta", 1e8, 800, 1600, 30)),
			memoFor(t, "Gamma", profile("Gamma", 2e7, 300, 1500, 50)),
			{ID: "broken", Data: datatypes.JSON(`[]`)},
		}}
		renderer := &stubRenderer{}
		flow := newFlow(t, acmeJSON, src, WithRenderer(renderer))

		pdf, report, err := flow.Run(context.Background(), "memo text", "acme.pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-stub"), pdf)
		assert.Same(t, report, renderer.got)
		assert.Equal(t, []string{"Consumer", "D2C"}, src.asked)
		assert.Equal(t, "Acme", report.TargetRow.CompanyName)
		assert.Len(t, report.Competitors, 2)
		assert.Len(t, report.Rows, 3)
		assert.Equal(t, PositionCompetitive, report.Insights.CompetitivePosition)
		assert.Contains(t, report.Benchmarks, MetricRevenue)
		assert.Empty(t, report.Insights.AISummary)
	})

	t.Run("memo without sector", func(t *testing.T) {
		flow := newFlow(t, `{"company_overview": {"name": "Acme", "sector_hierarchy": []}}`, &stubSource{})
		_, err := flow.Analyze(context.Background(), "memo", "m.pdf")
		assert.ErrorIs(t, err, ErrNoSector)
		assert.EqualError(t, err, "No sector information found in memo")
	})

	t.Run("no competitors", func(t *testing.T) {
		flow := newFlow(t, acmeJSON, &stubSource{})
		_, err := flow.Analyze(context.Background(), "memo", "m.pdf")
		assert.ErrorIs(t, err, ErrNoCompetitors)
	})

	t.Run("competitor lookup fails", func(t *testing.T) {
		flow := newFlow(t, acmeJSON, &stubSource{err: errors.New("db down")})
		_, err := flow.Analyze(context.Background(), "memo", "m.pdf")
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("no renderer", func(t *testing.T) {
		flow := NewFlow(nil, &stubSource{})
		_, _, err := flow.Run(context.Background(), "memo", "m.pdf")
		assert.ErrorIs(t, err, ErrReportUnavailable)
	})
}

func TestSummarizer(t *testing.T) {
	target := MetricsRow{CompanyName: "Acme", Sector: "Consumer > D2C", Revenue: ptr(5e7), GrossMarginPct: ptr(40)}
	peers := []MetricsRow{{CompanyName: "B"}, {CompanyName: "C"}, {CompanyName: "D"}, {CompanyName: "E"}}
	in := Insights{Insights: []string{"Revenue performance: 67th percentile among peers"}, CompetitivePosition: PositionCompetitive}

	client := llm.NewMockClient(t)
	s := NewSummarizer(client, noRetry, nil)

	prompt := s.Prompt(target, peers, in)
	assert.Contains(t, prompt, "Peers compared: 4 (B, C, D)")
	assert.Contains(t, prompt, "- Revenue: Rs5.0Cr")
	assert.Contains(t, prompt, "- Gross margin: 40.0%")
	assert.Contains(t, prompt, "- CAC: N/A")
	assert.Contains(t, prompt, "## INVESTMENT PERSPECTIVE")

	client.EXPECT().Generate(mock.Anything, prompt, mock.Anything).
		Return(&llm.Response{Text: "  ## COMPETITIVE ADVANTAGES\n- Margin  "}, nil).Once()
	assert.Equal(t, "## COMPETITIVE ADVANTAGES\n- Margin", s.Summarize(context.Background(), target, peers, in))

	client.EXPECT().Generate(mock.Anything, prompt, mock.Anything).
		Return(nil, llm.NewLLMError(llm.ErrCodeServerError, "down")).Once()
	assert.Empty(t, s.Summarize(context.Background(), target, peers, in))
}

type pageRenderer struct {
	pages []document.PageImage
}

func (r pageRenderer) Render(context.Context, []byte) ([]document.PageImage, error) {
	return r.pages, nil
}

func TestTextExtractorVision(t *testing.T) {
	client := llm.NewMockClient(t)
	client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "Slide one text"}, nil).Once()
	client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, llm.NewLLMError(llm.ErrCodeServerError, "down")).Once()
	client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "Slide three text"}, nil).Once()

	renderer := pageRenderer{pages: []document.PageImage{
		{PageNumber: 1, PNG: []byte("a")},
		{PageNumber: 2, PNG: []byte("b")},
		{PageNumber: 3, PNG: []byte("c")},
	}}
	x := NewTextExtractor(WithVision(client, renderer), WithTextRetrier(noRetry))
	text, err := x.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "Slide one text\nSlide three text", text)
}
