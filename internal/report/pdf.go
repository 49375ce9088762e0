package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	margin     = 14.0
	lineHeight = 5.5
	bodySize   = 10.5
	fontFamily = "Helvetica"
)

type rgb struct{ r, g, b int }

var (
	colorPrimary = rgb{0, 51, 102}
	colorAccent  = rgb{0, 68, 119}
	colorText    = rgb{51, 51, 51}
	colorMuted   = rgb{102, 102, 102}
	colorRule    = rgb{204, 204, 204}
	colorHeader  = rgb{0, 51, 102}
	colorStripe  = rgb{242, 242, 242}
	colorTarget  = rgb{230, 126, 34}
	colorPeer    = rgb{52, 152, 219}
)

// page 对gofpdf的薄封装，负责字符转换和常用版式
type page struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newPage() *page {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin+4)
	pdf.AliasNbPages("")

	p := &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		p.color(colorMuted)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	return p
}

// text 核心字体只支持cp1252，卢比符号替换为 Rs.
func (p *page) text(s string) string {
	s = strings.ReplaceAll(s, "₹", "Rs.")
	return p.tr(s)
}

func (p *page) color(c rgb) {
	p.pdf.SetTextColor(c.r, c.g, c.b)
}

func (p *page) width() float64 {
	w, _ := p.pdf.GetPageSize()
	return w - 2*margin
}

// ensure 剩余空间不足h时换页
func (p *page) ensure(h float64) {
	_, ph := p.pdf.GetPageSize()
	if p.pdf.GetY()+h > ph-margin-4 {
		p.pdf.AddPage()
	}
}

func (p *page) title(s string) {
	p.pdf.SetFont(fontFamily, "B", 22)
	p.color(colorPrimary)
	p.pdf.MultiCell(0, 10, p.text(s), "", "C", false)
	p.pdf.Ln(2)
}

func (p *page) subtitle(s string) {
	p.pdf.SetFont(fontFamily, "I", 12)
	p.color(colorMuted)
	p.pdf.MultiCell(0, 7, p.text(s), "", "C", false)
	p.pdf.Ln(4)
}

// section 一级标题，下方画分隔线
func (p *page) section(s string) {
	p.ensure(20)
	p.pdf.Ln(4)
	p.pdf.SetFont(fontFamily, "B", 15)
	p.color(colorPrimary)
	p.pdf.MultiCell(0, 8, p.text(s), "", "L", false)
	x, y := p.pdf.GetXY()
	p.pdf.SetDrawColor(colorRule.r, colorRule.g, colorRule.b)
	p.pdf.Line(x, y, x+p.width(), y)
	p.pdf.Ln(3)
}

func (p *page) subsection(s string) {
	p.ensure(14)
	p.pdf.Ln(2)
	p.pdf.SetFont(fontFamily, "B", 12.5)
	p.color(colorAccent)
	p.pdf.MultiCell(0, 7, p.text(s), "", "L", false)
	p.pdf.Ln(1)
}

func (p *page) paragraph(s string) {
	p.pdf.SetFont(fontFamily, "", bodySize)
	p.color(colorText)
	p.pdf.MultiCell(0, lineHeight, p.text(s), "", "L", false)
	p.pdf.Ln(1.5)
}

// field 加粗的键后接取值
func (p *page) field(key, value string) {
	p.pdf.SetFont(fontFamily, "B", bodySize)
	p.color(colorText)
	p.pdf.Write(lineHeight, p.text(key+": "))
	p.pdf.SetFont(fontFamily, "", bodySize)
	p.pdf.Write(lineHeight, p.text(value))
	p.pdf.Ln(lineHeight + 1.5)
}

func (p *page) bullet(s string) {
	p.bulletAt(s, 0)
}

func (p *page) bulletAt(s string, indent float64) {
	p.pdf.SetFont(fontFamily, "", bodySize)
	p.color(colorText)
	left := margin + 4 + indent
	p.pdf.SetX(left)
	p.pdf.CellFormat(5, lineHeight, p.text("•"), "", 0, "L", false, 0, "")
	p.pdf.SetLeftMargin(left + 5)
	p.pdf.MultiCell(p.width()-(left+5-margin), lineHeight, p.text(s), "", "L", false)
	p.pdf.SetLeftMargin(margin)
	p.pdf.Ln(0.8)
}

// table 带表头的表格，单元格内容自动换行
func (p *page) table(widths []float64, header []string, rows [][]string) {
	pdf := p.pdf
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)

	drawRow := func(cells []string, style string, fill *rgb, textColor rgb) {
		pdf.SetFont(fontFamily, style, 9.5)
		lines := 1
		for i, c := range cells {
			n := len(pdf.SplitLines([]byte(p.text(c)), widths[i]-2))
			lines = max(lines, n)
		}
		h := float64(lines)*5 + 2
		p.ensure(h)

		rectStyle := "D"
		if fill != nil {
			pdf.SetFillColor(fill.r, fill.g, fill.b)
			rectStyle = "FD"
		}
		x, y := pdf.GetXY()
		for i, c := range cells {
			pdf.Rect(x, y, widths[i], h, rectStyle)
			pdf.SetXY(x+1, y+1)
			p.color(textColor)
			pdf.MultiCell(widths[i]-2, 5, p.text(c), "", "L", false)
			x += widths[i]
		}
		pdf.SetXY(margin, y+h)
	}

	if len(header) > 0 {
		drawRow(header, "B", &colorHeader, rgb{255, 255, 255})
	}
	for i, r := range rows {
		var fill *rgb
		if i%2 == 1 {
			fill = &colorStripe
		}
		drawRow(r, "", fill, colorText)
	}
	pdf.Ln(4)
}

// bytes 输出PDF
func (p *page) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
