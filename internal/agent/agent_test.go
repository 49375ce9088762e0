package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/pitch-analyst/internal/corpus"
	"github.com/fyerfyer/pitch-analyst/internal/llm"
)

// stubRetriever 记录收到的查询
type stubRetriever struct {
	mu      sync.Mutex
	queries []string
	handles []corpus.Handle
	answer  string
}

func (s *stubRetriever) Query(_ context.Context, handle corpus.Handle, query string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	s.handles = append(s.handles, handle)
	return s.answer
}

// scriptedClient 依次返回预设输出并记录提示词
func scriptedClient(t *testing.T, outputs ...string) (*llm.MockClient, *[]string) {
	client := llm.NewMockClient(t)
	prompts := &[]string{}
	call := 0
	client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, prompt string, _ ...llm.GenerateOption) (*llm.Response, error) {
			*prompts = append(*prompts, prompt)
			out := outputs[min(call, len(outputs)-1)]
			call++
			return &llm.Response{Text: out}, nil
		})
	return client, prompts
}

// tickingClock 每次调用前进固定时长
func tickingClock(step time.Duration) func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestAgentRun(t *testing.T) {
	client, prompts := scriptedClient(t,
		"Thought: start with the team\nAction: Team_Overview\nAction Input: founders",
		"Thought: now growth\nAction: Traction\nAction Input: \"revenue growth\"",
		"Thought: advisors too\nAction: Team_Overview\nAction Input: advisory board",
		"Thought: I have sufficient information now.\nFinal Answer: ## TEAM OVERVIEW\nTwo founders.",
	)
	retriever := &stubRetriever{answer: "[Source 1]: Two founders"}
	a := NewAgent(client, retriever, WithClock(tickingClock(1234*time.Millisecond)))

	result, err := a.Run(context.Background(), "acme", "analyse acme")
	require.NoError(t, err)

	assert.Equal(t, "analyse acme", result.Query)
	assert.Equal(t, "## TEAM OVERVIEW\nTwo founders.", result.ComprehensiveAnalysis)
	assert.Equal(t, 3, result.ToolsUsed)
	assert.Equal(t, []string{"Team_Overview", "Traction"}, result.SectionsAnalyzed)
	assert.Equal(t, map[string]int{"Team_Overview": 2, "Traction": 1}, result.ToolBreakdown)
	assert.Empty(t, result.Stopped)
	assert.Equal(t, 1.23, result.ExecutionTime)

	require.Len(t, retriever.queries, 3)
	assert.True(t, strings.HasPrefix(retriever.queries[0], "EXTRACT TEAM OVERVIEW INFORMATION:"))
	assert.Contains(t, retriever.queries[0], "Query: founders\n")
	assert.Contains(t, retriever.queries[1], "Query: revenue growth\n")
	assert.Equal(t, corpus.Handle("acme"), retriever.handles[0])

	require.Len(t, *prompts, 4)
	assert.Contains(t, (*prompts)[0], "Question: analyse acme")
	assert.Contains(t, (*prompts)[1], "Action Input: founders\nObservation: [Source 1]: Two founders\nThought: ")
}

func TestAgentRecoversFromBadOutput(t *testing.T) {
	client, prompts := scriptedClient(t,
		"I should look at the team first.",
		"Thought: try something\nAction: Crystal_Ball\nAction Input: future",
		"Thought: done\nFinal Answer: nothing found",
	)
	retriever := &stubRetriever{}
	a := NewAgent(client, retriever)

	result, err := a.Run(context.Background(), "acme", "q")
	require.NoError(t, err)

	assert.Equal(t, "nothing found", result.ComprehensiveAnalysis)
	assert.Equal(t, 2, result.ToolsUsed)
	assert.Equal(t, []string{"Crystal_Ball"}, result.SectionsAnalyzed)
	assert.Equal(t, map[string]int{"Crystal_Ball": 1}, result.ToolBreakdown)
	assert.Empty(t, retriever.queries)

	require.Len(t, *prompts, 3)
	assert.Contains(t, (*prompts)[1], "Observation: "+ErrMissingAction.Error())
	assert.Contains(t, (*prompts)[2], "Crystal_Ball is not a valid tool, try one of [Team_Overview, Problem_Statement,")
}

func TestAgentIterationLimit(t *testing.T) {
	client, _ := scriptedClient(t, "Thought: again\nAction: Solution\nAction Input: product")
	retriever := &stubRetriever{}
	a := NewAgent(client, retriever, WithMaxIterations(3))

	result, err := a.Run(context.Background(), "acme", "q")
	require.NoError(t, err)
	assert.Equal(t, StopIterationLimit, result.Stopped)
	assert.Equal(t, 3, result.ToolsUsed)
	assert.Equal(t, map[string]int{"Solution": 3}, result.ToolBreakdown)
	assert.NotEmpty(t, result.ComprehensiveAnalysis)
}

func TestAgentModelFailure(t *testing.T) {
	client := llm.NewMockClient(t)
	client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, llm.NewLLMError(llm.ErrCodeServerError, "down")).Times(2)

	a := NewAgent(client, &stubRetriever{}, WithRetrier(llm.Retrier{Attempts: 2, Delay: time.Millisecond}))
	_, err := a.Run(context.Background(), "acme", "q")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewAgent(llm.NewMockClient(t), &stubRetriever{}).Run(ctx, "acme", "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Decision
		wantErr error
	}{
		{
			name: "action",
			text: "Thought: look\nAction: Traction\nAction Input: MRR growth",
			want: Decision{Tool: "Traction", ToolInput: "MRR growth"},
		},
		{
			name: "first action wins and invented observation is dropped",
			text: "Thought: look\nAction: Traction\nAction Input: \"MRR\"\nObservation: made up",
			want: Decision{Tool: "Traction", ToolInput: "MRR"},
		},
		{
			name: "final answer",
			text: "Thought: done\nFinal Answer:  all good \n",
			want: Decision{FinalAnswer: "all good", Finished: true},
		},
		{name: "missing action", text: "Thought: hmm", wantErr: ErrMissingAction},
		{name: "missing action input", text: "Thought: hmm\nAction: Traction", wantErr: ErrMissingActionInput},
		{
			name:    "both action and final answer",
			text:    "Action: Traction\nAction Input: x\nFinal Answer: y",
			wantErr: ErrAmbiguousOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutput(tt.text)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Tool, got.Tool)
			assert.Equal(t, tt.want.ToolInput, got.ToolInput)
			assert.Equal(t, tt.want.FinalAnswer, got.FinalAnswer)
			assert.Equal(t, tt.want.Finished, got.Finished)
		})
	}
}

func TestToolQueryTemplate(t *testing.T) {
	tools := DefaultTools()
	require.Len(t, tools, 12)

	q := tools[0].BuildQuery("  founders ")
	assert.Equal(t, "EXTRACT TEAM OVERVIEW INFORMATION:\n"+
		"Find information about: "+tools[0].FindAbout+"\n\n"+
		"Query: founders\n\n"+
		"Focus on: "+tools[0].Focus+"\n\n"+
		"Dont infer any information.\n", q)

	names := make(map[string]bool)
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description)
		names[tool.Name] = true
	}
	assert.Len(t, names, 12)

	assert.Contains(t, ComprehensiveQuery("Acme"), "report for Acme covering all 12 critical areas")
	assert.Contains(t, ComprehensiveQuery(""), "Target Company")
}
