package document

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestPDF 每个字符串生成一页
func createTestPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.MultiCell(0, 10, text, "", "", false)
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestInspectPDF(t *testing.T) {
	data := createTestPDF(t, "Company overview", "Traction slide", "Ask")
	count, err := InspectPDF(data)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = InspectPDF([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestPDFParser(t *testing.T) {
	data := createTestPDF(t, "Revenue grew to 12 crore", "Founders met at IIT")

	pages, err := ExtractPageTexts(data)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Revenue")
	assert.Contains(t, pages[1], "Founders")

	text, err := NewPDFParser().ParseReader(bytes.NewReader(data), "memo.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Revenue")
	assert.Contains(t, text, "\n\n")

	_, err = NewPDFParser().ParseReader(strings.NewReader("garbage"), "memo.pdf")
	assert.Error(t, err)
}

func TestParserFactory(t *testing.T) {
	p, err := ParserFactory("Deck.PDF")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = ParserFactory("deck.pptx")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	assert.Equal(t, "acme_seed", AppName("/tmp/uploads/acme_seed.pdf"))
	assert.Equal(t, "noext", AppName("noext"))
}

func TestRenderer(t *testing.T) {
	data := createTestPDF(t, "one", "two", "three", "four", "five")
	r := NewRenderer(72, 2)

	images, err := r.Render(context.Background(), data)
	if err != nil {
		t.Skip("MuPDF rendering unavailable, skipping test: " + err.Error())
	}
	require.Len(t, images, 5)
	for i, img := range images {
		assert.Equal(t, i+1, img.PageNumber)
		assert.True(t, bytes.HasPrefix(img.PNG, []byte("\x89PNG")))
	}
}

func TestPageInsightFlexibleFields(t *testing.T) {
	raw := `{
		"slide_motive": "Introduce the team",
		"startup_summary": {"name": "Acme", "sector": "FoodTech"},
		"founder_team": null,
		"financials": ["ARR 2Cr", "Burn 20L"],
		"custom_topic": "Won a national award",
		"markdown": "# Team\n## Founders\nTwo ex-bankers"
	}`
	var p PageInsight
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, FlexText("Introduce the team"), p.SlideMotive)
	assert.JSONEq(t, `{"name":"Acme","sector":"FoodTech"}`, string(p.StartupSummary))
	assert.Empty(t, p.FounderTeam)
	assert.JSONEq(t, `["ARR 2Cr","Burn 20L"]`, string(p.Financials))
	assert.Equal(t, CustomTopics{"note": "Won a national award"}, p.CustomTopic)

	fields := p.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "slide_motive", fields[0].Key)
	assert.Equal(t, "financials", fields[2].Key)

	var q PageInsight
	require.NoError(t, json.Unmarshal([]byte(`{"custom_topic": {"awards": "x", "press": {"a": 1}}}`), &q))
	assert.Equal(t, FlexText("x"), q.CustomTopic["awards"])
	assert.Equal(t, FlexText(`{"a":1}`), q.CustomTopic["press"])

	assert.Equal(t, []string{"# Team\n## Founders\nTwo ex-bankers"}, Slides([]PageInsight{p}))
}
