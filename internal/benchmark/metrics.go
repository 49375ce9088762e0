package benchmark

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyerfyer/pitch-analyst/internal/models"
)

// DefaultUSDToINR 美元估值折算为卢比的近似汇率
const DefaultUSDToINR = 83.0

// targetID 目标公司不在竞品中时使用的ID
const targetID = "target_company"

// Competitor 备忘录库中的一家公司
type Competitor struct {
	ID      string
	Profile CompanyProfile
}

// CompetitorFromMemo 解析入库的备忘录
func CompetitorFromMemo(memo *models.SectorMemo) (Competitor, error) {
	var profile CompanyProfile
	if err := json.Unmarshal(memo.Data, &profile); err != nil {
		return Competitor{}, fmt.Errorf("invalid memo data %s: %w", memo.ID, err)
	}
	return Competitor{ID: memo.ID, Profile: profile}, nil
}

// MetricsRow 对比表中的一行，缺失指标为nil
type MetricsRow struct {
	CompanyName     string   `json:"company_name"`
	Sector          string   `json:"sector"`
	Stage           string   `json:"stage"`
	FoundingYear    *float64 `json:"founding_year"`
	Revenue         *float64 `json:"revenue"`
	GMV             *float64 `json:"gmv"`
	CAC             *float64 `json:"cac"`
	AOV             *float64 `json:"aov"`
	GrossMarginPct  *float64 `json:"gross_margin_pct"`
	TAM             *float64 `json:"tam"`
	SAM             *float64 `json:"sam"`
	OrdersFulfilled *float64 `json:"orders_fulfilled_total"`
	RepeatRatePct   *float64 `json:"repeat_rate_pct"`
	Valuation       *float64 `json:"valuation"`
	Round           string   `json:"round"`
	LTVCACRatio     *float64 `json:"ltv_cac_ratio"`
	RevenueMultiple *float64 `json:"revenue_multiple"`
	IsTarget        bool     `json:"is_target"`
}

// Metric 按名称取指标
func (r MetricsRow) Metric(name string) *float64 {
	switch name {
	case MetricRevenue:
		return r.Revenue
	case MetricCAC:
		return r.CAC
	case MetricLTVCAC:
		return r.LTVCACRatio
	case MetricGrossMargin:
		return r.GrossMarginPct
	case MetricValuation:
		return r.Valuation
	case MetricGMV:
		return r.GMV
	case MetricAOV:
		return r.AOV
	case MetricOrders:
		return r.OrdersFulfilled
	case MetricRepeatRate:
		return r.RepeatRatePct
	case MetricRevenueMultiple:
		return r.RevenueMultiple
	default:
		return nil
	}
}

// 指标名称
const (
	MetricRevenue         = "revenue"
	MetricCAC             = "cac"
	MetricLTVCAC          = "ltv_cac_ratio"
	MetricGrossMargin     = "gross_margin_pct"
	MetricValuation       = "valuation"
	MetricGMV             = "gmv"
	MetricAOV             = "aov"
	MetricOrders          = "orders_fulfilled_total"
	MetricRepeatRate      = "repeat_rate_pct"
	MetricRevenueMultiple = "revenue_multiple"
)

// ExtractRow 把一家公司的数据整理为对比行
func ExtractRow(id string, p CompanyProfile, usdToINR float64) MetricsRow {
	name := p.Name()
	if name == "" {
		name = id
	}
	sector := "Unknown"
	if len(p.CompanyOverview.SectorHierarchy) > 0 {
		sector = p.SectorPath()
	}
	stage := p.CompanyOverview.Stage
	if stage == "" {
		stage = "Unknown"
	}

	return MetricsRow{
		CompanyName:     name,
		Sector:          sector,
		Stage:           stage,
		FoundingYear:    p.CompanyOverview.FoundingYear.Ptr(),
		Revenue:         p.Financials.Revenue.Value(),
		GMV:             p.Financials.GMV.Value(),
		CAC:             p.Financials.CAC.Value(),
		AOV:             p.Financials.AOV.Value(),
		GrossMarginPct:  p.Financials.GrossMarginPct.Ptr(),
		TAM:             p.Market.TAM.Value(),
		SAM:             p.Market.SAM.Value(),
		OrdersFulfilled: p.Traction.OrdersFulfilledTotal.Ptr(),
		RepeatRatePct:   p.Traction.RepeatRatePct.Ptr(),
		Valuation:       Valuation(p.Fundraise, usdToINR),
		Round:           p.Fundraise.Round,
		LTVCACRatio:     LTVCACRatio(p.Financials),
		RevenueMultiple: RevenueMultiple(p.Financials, p.Fundraise),
	}
}

// Valuation 优先投后估值，其次投前估值，美元按汇率折算
func Valuation(f Fundraise, usdToINR float64) *float64 {
	for _, a := range []*Amount{f.PostMoneyValuation, f.PreMoneyValuation} {
		v := a.Value()
		if v == nil || *v == 0 {
			continue
		}
		val := *v
		if strings.EqualFold(a.Currency, "USD") {
			val *= usdToINR
		}
		return &val
	}
	return nil
}

// LTVCACRatio 两者都有且CAC为正时计算
func LTVCACRatio(f Financials) *float64 {
	ltv, cac := f.LTV.Value(), f.CAC.Value()
	if ltv == nil || cac == nil || *ltv == 0 || *cac <= 0 {
		return nil
	}
	r := *ltv / *cac
	return &r
}

// RevenueMultiple 估值与收入之比，不做币种折算
func RevenueMultiple(f Financials, fr Fundraise) *float64 {
	revenue := f.Revenue.Value()
	var valuation *float64
	if v := fr.PostMoneyValuation.Value(); v != nil && *v != 0 {
		valuation = v
	} else if v := fr.PreMoneyValuation.Value(); v != nil && *v != 0 {
		valuation = v
	}
	if revenue == nil || valuation == nil || *revenue <= 0 {
		return nil
	}
	m := *valuation / *revenue
	return &m
}

// BuildComparison 合并目标公司和竞品，生成对比表
// 目标公司按名称标记，竞品中已有同名公司时不重复加入
func BuildComparison(target *CompanyProfile, competitors []Competitor, usdToINR float64) []MetricsRow {
	if usdToINR <= 0 {
		usdToINR = DefaultUSDToINR
	}
	targetName := target.Name()

	all := make([]Competitor, len(competitors), len(competitors)+1)
	copy(all, competitors)
	if targetName != "" {
		present := false
		for _, c := range competitors {
			if c.Profile.Name() == targetName {
				present = true
				break
			}
		}
		if !present {
			all = append(all, Competitor{ID: targetID, Profile: *target})
		}
	}

	rows := make([]MetricsRow, 0, len(all))
	for _, c := range all {
		row := ExtractRow(c.ID, c.Profile, usdToINR)
		row.IsTarget = targetName != "" && row.CompanyName == targetName
		rows = append(rows, row)
	}
	return rows
}
