package agent

import (
	"fmt"
	"strings"
)

const reactTemplate = `You are an investment analyst reviewing a startup pitch deck across 12 areas.

AVAILABLE TOOLS:
%s

Tool names: %s

Work through the areas with the tools, one tool call per step.

Use exactly this format, each keyword at the start of a new line:
Thought: your reasoning
Action: one tool name from [%s]
Action Input: the query for the tool
Observation: the tool output (inserted for you, never write it yourself)
... repeat Thought/Action/Action Input/Observation as needed ...
Thought: I have enough information
Final Answer: the complete analysis

Every Thought must be followed by an Action unless it precedes the Final Answer.

Organise the Final Answer by section with headers such as "## TEAM OVERVIEW", give concrete
figures where the tools returned them and note "No specific information available" for sections
without data. Report only what the tools returned. Do not infer or assume anything.

Begin!

Question: %s
%s`

// toolSummary 每行 "名称: 描述"
func toolSummary(tools []Tool) (descriptions string, names string) {
	lines := make([]string, len(tools))
	ns := make([]string, len(tools))
	for i, t := range tools {
		lines[i] = t.Name + ": " + t.Description
		ns[i] = t.Name
	}
	return strings.Join(lines, "\n"), strings.Join(ns, ", ")
}

// buildPrompt 拼接本轮提示词，scratchpad 是此前的推理记录
func buildPrompt(tools []Tool, question, scratchpad string) string {
	descriptions, names := toolSummary(tools)
	return fmt.Sprintf(reactTemplate, descriptions, names, names, question, scratchpad)
}

// ComprehensiveQuery 针对公司的完整投资分析请求
func ComprehensiveQuery(company string) string {
	if strings.TrimSpace(company) == "" {
		company = "Target Company"
	}
	return fmt.Sprintf(`Generate a complete investment analysis report for %s covering all 12 critical areas:

1. Team Overview - Leadership team, founders, co-founders, experience, skills
2. Problem Statement - Market problems being addressed
3. Solution - Product/service solution and value proposition
4. Differentiation - Competitive advantages and unique factors
5. Market Opportunity - Market size, growth, and opportunity
6. Business Model - Revenue streams and monetization
7. Traction - Growth metrics, adoption, milestones
8. Product Architecture - Technology and infrastructure
9. Go-to-Market Strategy - Sales and marketing approach
10. Funding Details - Investment rounds and financial status
11. Risks & Mitigations - Risk analysis and mitigation plans
12. Exit Potentials - Exit opportunities and strategic options

Provide comprehensive analysis with specific details, metrics, and insights for each section.`, company)
}
