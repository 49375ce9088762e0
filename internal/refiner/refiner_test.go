package refiner

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/llm"
)

func samplePages() map[string][]document.PageInsight {
	return map[string][]document.PageInsight{
		"acme": {
			{
				PageNumber:     1,
				StartupSummary: "Acme, fintech",
				Market:         "TAM $4B",
				CustomTopic:    document.CustomTopics{"esg": "solar offices"},
			},
			{PageNumber: 2},
			{
				PageNumber:  3,
				Market:      "CAGR 20%",
				Traction:    "ARR $1M",
				CustomTopic: document.CustomTopics{"esg": "carbon neutral", "awards": "Best fintech 2023"},
			},
		},
	}
}

func TestMergeSimilarKeys(t *testing.T) {
	merged := MergeSimilarKeys(samplePages())
	require.Contains(t, merged, "acme")
	m := merged["acme"]

	assert.Equal(t, []int{1, 2, 3}, m.PageNumbers)
	assert.Equal(t, "TAM $4B | CAGR 20%", m.Fields["market"])
	assert.Equal(t, "Acme, fintech", m.Fields["startup_summary"])
	assert.Equal(t, "ARR $1M", m.Fields["traction"])
	assert.NotContains(t, m.Fields, "financials")
	assert.Equal(t, map[string]string{
		"esg":    "solar offices | carbon neutral",
		"awards": "Best fintech 2023",
	}, m.CustomTopic)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "TAM $4B | CAGR 20%", flat["market"])
	assert.Len(t, flat["page_number"], 3)
}

func TestDealNoteDecoding(t *testing.T) {
	raw := `{
		"Summary": {"Company Name": "Acme", "Sector": "Fintech", "One Liner": ""},
		"Product": {"Core Features": ["UPI payouts", "", "Ledger"], "Solution": "Payroll API"},
		"Financials": {"Revenue": 1200000, "Runway": "18 months"},
		"Founders": {"Team": [{"Name": "Asha", "Role": "CEO", "Background": "ex-Razorpay"}]}
	}`
	var note DealNote
	require.NoError(t, json.Unmarshal([]byte(raw), &note))

	assert.Equal(t, "Acme", note.CompanyName())
	require.Len(t, note.Summary, 2, "empty values are dropped")
	assert.Equal(t, "Sector", note.Summary[1].Key)

	assert.Equal(t, "Core Features", note.Product[0].Key)
	assert.Equal(t, []string{"UPI payouts", "Ledger"}, note.Product[0].Value.Items)
	revenue, ok := note.Financials.Get("Revenue")
	require.True(t, ok)
	assert.Equal(t, "1200000", revenue.String())

	titles := make([]string, 0)
	for _, s := range note.Sections() {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Summary", "Product", "Financials"}, titles)
	require.Len(t, note.Founders.Team, 1)
	assert.Equal(t, "CEO", string(note.Founders.Team[0].Role))
	assert.False(t, note.IsEmpty())

	// 重新编码保持键顺序
	out, err := json.Marshal(note.Product)
	require.NoError(t, err)
	assert.Equal(t, `{"Core Features":["UPI payouts","Ledger"],"Solution":"Payroll API"}`, string(out))

	assert.True(t, DealNote{}.IsEmpty())
}

func TestRefine(t *testing.T) {
	r := llm.Retrier{Attempts: 3, Delay: time.Millisecond}

	t.Run("parses the model output", func(t *testing.T) {
		client := llm.NewMockClient(t)
		client.EXPECT().Generate(mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.Contains(p, "TAM $4B | CAGR 20%")
		}), mock.Anything).Return(&llm.Response{
			Text: "```json\n{\"Summary\": {\"Company Name\": \"Acme\"}}\n```",
		}, nil).Once()

		note, err := NewRefiner(client, WithRetrier(r)).Refine(context.Background(), samplePages())
		require.NoError(t, err)
		assert.Equal(t, "Acme", note.CompanyName())
	})

	t.Run("malformed output yields an empty note", func(t *testing.T) {
		client := llm.NewMockClient(t)
		client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
			Return(&llm.Response{Text: "sorry, no"}, nil).Once()

		note, err := NewRefiner(client, WithRetrier(r)).Refine(context.Background(), samplePages())
		require.NoError(t, err)
		assert.True(t, note.IsEmpty())
	})

	t.Run("exhausted retries yield an empty note", func(t *testing.T) {
		client := llm.NewMockClient(t)
		client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
			Return(nil, llm.NewLLMError(llm.ErrCodeServerError, "down")).Times(3)

		note, err := NewRefiner(client, WithRetrier(r)).Refine(context.Background(), samplePages())
		require.NoError(t, err)
		assert.True(t, note.IsEmpty())
	})
}
