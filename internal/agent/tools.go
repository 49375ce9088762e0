package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyerfyer/pitch-analyst/internal/corpus"
)

// Retriever 语料检索，失败时返回空串
type Retriever interface {
	Query(ctx context.Context, handle corpus.Handle, query string) string
}

// Tool 一个分析维度的检索工具
type Tool struct {
	Name        string
	Description string
	Heading     string // 查询模板的标题行
	FindAbout   string // 需要查找的信息
	Focus       string // 关注点
}

// BuildQuery 把调用方的查询包装成面向该维度的检索语句
func (t Tool) BuildQuery(query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "EXTRACT %s:\n", t.Heading)
	fmt.Fprintf(&b, "Find information about: %s\n\n", t.FindAbout)
	fmt.Fprintf(&b, "Query: %s\n\n", strings.TrimSpace(query))
	fmt.Fprintf(&b, "Focus on: %s\n\n", t.Focus)
	b.WriteString("Dont infer any information.\n")
	return b.String()
}

// Run 执行检索，失败时返回空串
func (t Tool) Run(ctx context.Context, r Retriever, handle corpus.Handle, query string) string {
	return r.Query(ctx, handle, t.BuildQuery(query))
}

// DefaultTools 返回十二个投资分析工具，顺序即分析框架的顺序
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "Team_Overview",
			Description: "Extract team and leadership information: founders, team bios, roles, skills, education, experience, team composition, advisory board.",
			Heading:     "TEAM OVERVIEW INFORMATION",
			FindAbout:   "founders, co-founders, team members, leadership bios, roles, skills, education, work experience, team composition, advisory board, key personnel.",
			Focus:       "names, positions, backgrounds, education credentials, previous company experience, years of experience, team size, organizational structure.",
		},
		{
			Name:        "Problem_Statement",
			Description: "Extract problem statement: specific problems addressed, market pain points, customer challenges, unmet needs.",
			Heading:     "PROBLEM STATEMENT",
			FindAbout:   "the specific problem being addressed, market pain points, customer challenges, unmet needs, limitations of current solutions.",
			Focus:       "problem definition, market gaps, customer frustrations, existing solution inadequacies, pain point quantification.",
		},
		{
			Name:        "Solution",
			Description: "Extract solution information: product features, value proposition, how it addresses problems, capabilities, benefits.",
			Heading:     "SOLUTION INFORMATION",
			FindAbout:   "the startup's solution, product features, value proposition, how it addresses the problem, product capabilities, user benefits.",
			Focus:       "product description, key features, value proposition, solution benefits, how it solves the problem, product functionality.",
		},
		{
			Name:        "Differentiation",
			Description: "Extract competitive differentiation: unique selling points, IP, competitive edge, barriers to entry, moats.",
			Heading:     "DIFFERENTIATION FACTORS",
			FindAbout:   "unique selling points, intellectual property, competitive edge, barriers to entry, moats, what makes this solution different.",
			Focus:       "competitive advantages, IP/patents, unique technology, market positioning, defensibility, barriers to competition.",
		},
		{
			Name:        "Market_Opportunity",
			Description: "Extract market opportunity: market size (TAM/SAM/SOM), trends, growth rates, target users, competitors.",
			Heading:     "MARKET OPPORTUNITY DATA",
			FindAbout:   "market size (TAM/SAM/SOM), market trends, growth rates, target users, market segments, addressable market, competitors.",
			Focus:       "specific market size numbers, growth percentages, target market definition, competitive landscape, market trends.",
		},
		{
			Name:        "Business_Model",
			Description: "Extract business model: revenue sources, pricing, revenue metrics, unit economics, monetization strategy.",
			Heading:     "BUSINESS MODEL INFORMATION",
			FindAbout:   "revenue sources, pricing strategy, revenue metrics, unit economics, monetization strategy, revenue streams.",
			Focus:       "revenue model, pricing structure, unit economics, customer acquisition cost, lifetime value, revenue streams, monetization approach.",
		},
		{
			Name:        "Traction",
			Description: "Extract traction data: adoption, growth (ARR, MRR, DAU, MAU), MoM/YoY growth, churn, milestones.",
			Heading:     "TRACTION AND GROWTH DATA",
			FindAbout:   "user adoption, growth metrics (ARR, MRR, DAU, MAU), month-over-month/year-over-year growth, churn rates, key milestones.",
			Focus:       "specific growth numbers, user metrics, revenue growth, customer acquisition, retention rates, key achievements, milestones reached.",
		},
		{
			Name:        "Product_Architecture",
			Description: "Extract technical architecture: tech stack, operational infrastructure, system architecture, integrations.",
			Heading:     "PRODUCT ARCHITECTURE",
			FindAbout:   "technology stack, operational infrastructure, system architecture, integrations, technical capabilities, platform details.",
			Focus:       "technical stack, infrastructure, system design, integrations, scalability, technical specifications, operational setup.",
		},
		{
			Name:        "GTM_Strategy",
			Description: "Extract go-to-market strategy: sales channels, marketing, partnerships, customer acquisition strategy.",
			Heading:     "GO-TO-MARKET STRATEGY",
			FindAbout:   "sales channels, marketing strategy, partnerships, customer acquisition strategy, distribution channels, market entry approach.",
			Focus:       "sales approach, marketing channels, partnership strategy, customer acquisition, distribution methods, market entry plan.",
		},
		{
			Name:        "Funding_Details",
			Description: "Extract funding information: stage, amount raised, investors, cap table, runway, use of funds.",
			Heading:     "FUNDING DETAILS",
			FindAbout:   "funding stage, amount raised, investors, cap table, runway, use of funds, valuation, investment rounds.",
			Focus:       "specific funding amounts, investor names, valuation figures, funding rounds, use of capital, runway duration, equity structure.",
		},
		{
			Name:        "Risks_Mitigations",
			Description: "Extract risk analysis: identified risks (market, tech, regulatory, execution) and mitigation plans.",
			Heading:     "RISKS AND MITIGATIONS",
			FindAbout:   "identified risks (market, technical, regulatory, execution), risk mitigation plans, challenges, potential obstacles.",
			Focus:       "specific risks identified, mitigation strategies, challenge analysis, risk management approach, contingency plans.",
		},
		{
			Name:        "Exit_Potentials",
			Description: "Extract exit strategy: IPO potential, acquisition opportunities, M&A prospects, exit pathways.",
			Heading:     "EXIT POTENTIALS",
			FindAbout:   "IPO potential, acquisition opportunities, M&A prospects, exit pathways, strategic buyers, exit timeline.",
			Focus:       "exit strategy, potential acquirers, IPO readiness, exit valuation, strategic options, investor exit opportunities.",
		},
	}
}
