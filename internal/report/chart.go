package report

import "math"

// bar 图表中的一项
type bar struct {
	label  string
	value  float64
	target bool
}

// barChart 横向柱状图，目标公司以强调色显示
func (p *page) barChart(title string, bars []bar, format func(float64) string) {
	if len(bars) == 0 {
		return
	}
	const (
		labelWidth = 42.0
		valueWidth = 28.0
		barHeight  = 6.0
		gap        = 2.5
	)
	pdf := p.pdf
	p.ensure(10 + float64(len(bars))*(barHeight+gap))
	p.subsection(title)

	peak := 0.0
	for _, b := range bars {
		peak = math.Max(peak, math.Abs(b.value))
	}
	area := p.width() - labelWidth - valueWidth

	for _, b := range bars {
		x, y := pdf.GetXY()
		style := ""
		if b.target {
			style = "B"
		}
		pdf.SetFont(fontFamily, style, 9)
		p.color(colorText)
		pdf.CellFormat(labelWidth, barHeight, p.text(truncate(b.label, 26)), "", 0, "L", false, 0, "")

		length := 0.0
		if peak > 0 {
			length = math.Abs(b.value) / peak * area
		}
		c := colorPeer
		if b.target {
			c = colorTarget
		}
		pdf.SetFillColor(c.r, c.g, c.b)
		if length > 0 {
			pdf.Rect(x+labelWidth, y+0.5, length, barHeight-1, "F")
		}
		pdf.SetXY(x+labelWidth+area+2, y)
		pdf.CellFormat(valueWidth-2, barHeight, p.text(format(b.value)), "", 0, "R", false, 0, "")
		pdf.SetXY(x, y+barHeight+gap)
	}
	pdf.Ln(3)
}

// scorecard 百分位评分，0到100的刻度条
func (p *page) scorecard(scores []bar) {
	if len(scores) == 0 {
		return
	}
	const (
		labelWidth = 55.0
		rowHeight  = 7.0
	)
	pdf := p.pdf
	p.ensure(10 + float64(len(scores))*(rowHeight+2))
	p.subsection("Percentile Scorecard")
	area := p.width() - labelWidth - 20

	for _, s := range scores {
		x, y := pdf.GetXY()
		pdf.SetFont(fontFamily, "", 9)
		p.color(colorText)
		pdf.CellFormat(labelWidth, rowHeight, p.text(s.label), "", 0, "L", false, 0, "")

		pdf.SetFillColor(colorStripe.r, colorStripe.g, colorStripe.b)
		pdf.Rect(x+labelWidth, y+1, area, rowHeight-2, "F")
		c := scoreColor(s.value)
		pdf.SetFillColor(c.r, c.g, c.b)
		pdf.Rect(x+labelWidth, y+1, area*math.Min(s.value, 100)/100, rowHeight-2, "F")

		pdf.SetXY(x+labelWidth+area+2, y)
		pdf.SetFont(fontFamily, "B", 9)
		pdf.CellFormat(18, rowHeight, p.text(formatPercentile(s.value)), "", 0, "R", false, 0, "")
		pdf.SetXY(x, y+rowHeight+2)
	}
	pdf.Ln(3)
}

func scoreColor(v float64) rgb {
	switch {
	case v >= 75:
		return rgb{39, 174, 96}
	case v >= 50:
		return colorPeer
	case v >= 25:
		return rgb{243, 156, 18}
	default:
		return rgb{192, 57, 43}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
