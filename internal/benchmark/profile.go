package benchmark

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number 模型输出的数值，可能是数字、数字字符串或null
type Number struct {
	Value float64
	Valid bool
}

// NewNumber 创建有效数值
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// UnmarshalJSON 无法识别的取值视为缺失，不报错
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		s = strings.TrimSuffix(s, "%")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*n = NewNumber(v)
		}
		return nil
	}
	if v, err := strconv.ParseFloat(string(data), 64); err == nil {
		*n = NewNumber(v)
	}
	return nil
}

// MarshalJSON 缺失时输出null
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr 缺失时返回nil
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Amount 带币种的金额
type Amount struct {
	Amount   Number `json:"amount"`
	Currency string `json:"currency,omitempty"`
	Period   string `json:"period,omitempty"`
}

// Value 金额缺失时返回nil
func (a *Amount) Value() *float64 {
	if a == nil {
		return nil
	}
	return a.Amount.Ptr()
}

// Overview 公司概况
type Overview struct {
	Name            string   `json:"name"`
	SectorHierarchy []string `json:"sector_hierarchy"`
	Stage           string   `json:"stage,omitempty"`
	FoundingYear    Number   `json:"founding_year"`
	Headquarters    string   `json:"headquarters,omitempty"`
	Description     string   `json:"description,omitempty"`
	BusinessModel   string   `json:"business_model,omitempty"`
}

// Financials 财务指标
type Financials struct {
	Revenue        *Amount `json:"revenue,omitempty"`
	GMV            *Amount `json:"gmv,omitempty"`
	CAC            *Amount `json:"cac,omitempty"`
	LTV            *Amount `json:"ltv,omitempty"`
	AOV            *Amount `json:"aov,omitempty"`
	GrossMarginPct Number  `json:"gross_margin_pct"`
	BurnRate       *Amount `json:"burn_rate,omitempty"`
	RunwayMonths   Number  `json:"runway_months"`
}

// Market 市场规模
type Market struct {
	TAM *Amount `json:"tam,omitempty"`
	SAM *Amount `json:"sam,omitempty"`
	SOM *Amount `json:"som,omitempty"`
}

// Traction 增长数据
type Traction struct {
	OrdersFulfilledTotal Number `json:"orders_fulfilled_total"`
	RepeatRatePct        Number `json:"repeat_rate_pct"`
	Customers            Number `json:"customers"`
}

// Fundraise 融资信息
type Fundraise struct {
	Round              string   `json:"round,omitempty"`
	AmountRaising      *Amount  `json:"amount_raising,omitempty"`
	PreMoneyValuation  *Amount  `json:"pre_money_valuation,omitempty"`
	PostMoneyValuation *Amount  `json:"post_money_valuation,omitempty"`
	LeadInvestors      []string `json:"lead_investors,omitempty"`
}

// Metadata 抽取来源
type Metadata struct {
	SourceDocumentTitle string `json:"source_document_title"`
	ExtractionDate      string `json:"extraction_date,omitempty"`
	RawTextSnippet      string `json:"raw_text_snippet,omitempty"`
}

// CompanyProfile 从投资备忘录抽取的结构化数据
type CompanyProfile struct {
	CompanyOverview Overview   `json:"company_overview"`
	Financials      Financials `json:"financials"`
	Market          Market     `json:"market"`
	Traction        Traction   `json:"traction"`
	Fundraise       Fundraise  `json:"fundraise"`
	Metadata        Metadata   `json:"metadata"`
}

// Name 公司名
func (p *CompanyProfile) Name() string {
	return strings.TrimSpace(p.CompanyOverview.Name)
}

// Sectors 行业层级，从大到小
func (p *CompanyProfile) Sectors() []string {
	return p.CompanyOverview.SectorHierarchy
}

// SectorPath 行业层级以 " > " 连接
func (p *CompanyProfile) SectorPath() string {
	return strings.Join(p.CompanyOverview.SectorHierarchy, sectorSeparator)
}

const sectorSeparator = " > "
