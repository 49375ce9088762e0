package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/corpus"
	"github.com/fyerfyer/pitch-analyst/internal/llm"
)

const (
	// DefaultMaxIterations 推理轮数上限
	DefaultMaxIterations = 50

	// StopIterationLimit 达到轮数上限时的停止原因
	StopIterationLimit = "iteration_limit"

	// ExceptionTool 格式错误步骤使用的工具名
	ExceptionTool = "_Exception"

	iterationLimitOutput = "Agent stopped due to iteration limit or time limit."
	observationStop      = "\nObservation:"
)

// Step 一次工具调用及其观察结果
type Step struct {
	Tool        string
	ToolInput   string
	Log         string
	Observation string
}

// Result 一次完整分析的结果
type Result struct {
	Query                 string         `json:"query"`
	ComprehensiveAnalysis string         `json:"comprehensive_analysis"`
	ExecutionTime         float64        `json:"execution_time"` // 秒，保留两位小数
	ToolsUsed             int            `json:"tools_used"`
	SectionsAnalyzed      []string       `json:"sections_analyzed"`
	ToolBreakdown         map[string]int `json:"tool_breakdown"`
	Stopped               string         `json:"stopped,omitempty"`
	Steps                 []Step         `json:"-"`
}

// Agent 多工具ReAct推理代理
type Agent struct {
	client        llm.Client
	retriever     Retriever
	tools         []Tool
	byName        map[string]Tool
	maxIterations int
	retrier       llm.Retrier
	logger        *logrus.Logger
	now           func() time.Time
}

// Option 代理配置选项
type Option func(*Agent)

// WithMaxIterations 设置推理轮数上限
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithRetrier 设置模型调用的重试策略
func WithRetrier(r llm.Retrier) Option {
	return func(a *Agent) {
		a.retrier = r
	}
}

// WithTools 替换工具集
func WithTools(tools []Tool) Option {
	return func(a *Agent) {
		a.tools = tools
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithClock 设置时钟，测试中使用
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.now = now
	}
}

// NewAgent 创建推理代理
func NewAgent(client llm.Client, retriever Retriever, opts ...Option) *Agent {
	a := &Agent{
		client:        client,
		retriever:     retriever,
		tools:         DefaultTools(),
		maxIterations: DefaultMaxIterations,
		retrier:       llm.DefaultRetrier(),
		logger:        logrus.StandardLogger(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.byName = make(map[string]Tool, len(a.tools))
	for _, t := range a.tools {
		a.byName[t.Name] = t
	}
	return a
}

// Tools 返回工具集
func (a *Agent) Tools() []Tool {
	return a.tools
}

// AnalyzeCompany 针对公司运行完整的十二维分析
func (a *Agent) AnalyzeCompany(ctx context.Context, handle corpus.Handle, company string) (*Result, error) {
	return a.Run(ctx, handle, ComprehensiveQuery(company))
}

// Run 运行推理循环直到给出最终答案或达到轮数上限
// 格式错误和未知工具作为观察结果反馈给模型，不会中止循环
func (a *Agent) Run(ctx context.Context, handle corpus.Handle, query string) (*Result, error) {
	start := a.now()
	var (
		steps    []Step
		output   string
		finished bool
	)

	for i := 0; i < a.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prompt := buildPrompt(a.tools, query, scratchpad(steps))
		text, err := a.retrier.GenerateText(ctx, a.client, prompt, llm.WithGenerateStop(observationStop))
		if err != nil {
			return nil, fmt.Errorf("agent iteration %d failed: %w", i+1, err)
		}

		decision, err := ParseOutput(text)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"iteration": i + 1,
				"error":     err.Error(),
			}).Debug("Agent output could not be parsed")
			steps = append(steps, Step{Tool: ExceptionTool, Log: text, Observation: err.Error()})
			continue
		}
		if decision.Finished {
			output = decision.FinalAnswer
			finished = true
			break
		}

		steps = append(steps, Step{
			Tool:        decision.Tool,
			ToolInput:   decision.ToolInput,
			Log:         text,
			Observation: a.invoke(ctx, handle, decision),
		})
	}

	result := summarize(query, steps)
	result.ComprehensiveAnalysis = output
	if !finished {
		result.ComprehensiveAnalysis = iterationLimitOutput
		result.Stopped = StopIterationLimit
	}
	result.ExecutionTime = math.Round(a.now().Sub(start).Seconds()*100) / 100

	a.logger.WithFields(logrus.Fields{
		"corpus":         handle.String(),
		"tools_used":     result.ToolsUsed,
		"sections":       len(result.SectionsAnalyzed),
		"execution_time": result.ExecutionTime,
		"stopped":        result.Stopped,
	}).Info("Agent analysis finished")
	return result, nil
}

// invoke 调用工具，未知工具返回提示
func (a *Agent) invoke(ctx context.Context, handle corpus.Handle, d Decision) string {
	tool, ok := a.byName[d.Tool]
	if !ok {
		_, names := toolSummary(a.tools)
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", d.Tool, names)
	}
	return tool.Run(ctx, a.retriever, handle, d.ToolInput)
}

// scratchpad 把此前的步骤拼回提示词
func scratchpad(steps []Step) string {
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(s.Log)
		b.WriteString("\nObservation: ")
		b.WriteString(s.Observation)
		b.WriteString("\nThought: ")
	}
	return b.String()
}

// summarize 统计工具使用情况，格式错误步骤计入步数但不算分析维度
func summarize(query string, steps []Step) *Result {
	result := &Result{
		Query:            query,
		ToolsUsed:        len(steps),
		SectionsAnalyzed: []string{},
		ToolBreakdown:    map[string]int{},
		Steps:            steps,
	}
	for _, s := range steps {
		if s.Tool == ExceptionTool {
			continue
		}
		if _, seen := result.ToolBreakdown[s.Tool]; !seen {
			result.SectionsAnalyzed = append(result.SectionsAnalyzed, s.Tool)
		}
		result.ToolBreakdown[s.Tool]++
	}
	return result
}
