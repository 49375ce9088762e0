package report

import (
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// Memo 把Markdown格式的投资备忘录渲染为PDF，首页为封面
func (r *Renderer) Memo(markdown, company string) ([]byte, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		company = "Target Company"
	}

	p := newPage()
	p.pdf.AddPage()
	p.pdf.SetY(80)
	p.title(company)
	p.subtitle("Investment Memo")
	p.pdf.SetFont(fontFamily, "", 11)
	p.color(colorMuted)
	p.pdf.CellFormat(0, 6, p.text(r.dateLine()), "", 1, "C", false, 0, "")
	p.pdf.SetY(230)
	p.pdf.SetFont(fontFamily, "I", 8.5)
	p.pdf.CellFormat(0, 5, "CONFIDENTIAL", "", 1, "C", false, 0, "")
	p.pdf.CellFormat(0, 5, "For internal investment review purposes only", "", 1, "C", false, 0, "")

	p.pdf.AddPage()
	doc := parser.NewWithExtensions(parser.CommonExtensions).
		Parse([]byte(strings.ReplaceAll(markdown, "\r\n", "\n")))
	w := &markdownWriter{p: p}
	for _, child := range doc.GetChildren() {
		w.block(child, 0)
	}
	return p.bytes()
}

// markdownWriter 遍历Markdown语法树输出到页面
type markdownWriter struct {
	p      *page
	bold   int
	italic int
}

func (w *markdownWriter) block(n ast.Node, depth int) {
	switch n := n.(type) {
	case *ast.Heading:
		switch n.Level {
		case 1:
			// 标题已在封面
		case 2:
			w.p.section(plainText(n))
		default:
			w.p.subsection(plainText(n))
		}
	case *ast.Paragraph:
		w.p.pdf.SetLeftMargin(margin)
		w.p.pdf.SetX(margin)
		w.inline(n)
		w.p.pdf.Ln(lineHeight + 1.5)
	case *ast.List:
		ordered := n.ListFlags&ast.ListTypeOrdered != 0
		for i, item := range n.GetChildren() {
			marker := "•"
			if ordered {
				marker = strconv.Itoa(n.Start+i) + "."
			}
			w.listItem(item, marker, depth)
		}
		if depth == 0 {
			w.p.pdf.Ln(1.5)
		}
	case *ast.CodeBlock:
		w.p.paragraph(string(n.Literal))
	case *ast.Table:
		w.table(n)
	case *ast.HorizontalRule:
		w.p.pdf.Ln(3)
	case *ast.HTMLBlock:
	default:
		for _, c := range n.GetChildren() {
			w.block(c, depth)
		}
	}
}

func (w *markdownWriter) listItem(item ast.Node, marker string, depth int) {
	pdf := w.p.pdf
	left := margin + 4 + float64(depth)*6
	if marker == "•" {
		marker = w.p.text(marker)
	}
	w.p.ensure(lineHeight * 2)
	pdf.SetX(left)
	w.setFont()
	w.p.color(colorText)
	pdf.CellFormat(6, lineHeight, marker, "", 0, "L", false, 0, "")
	pdf.SetLeftMargin(left + 6)

	for _, c := range item.GetChildren() {
		switch c := c.(type) {
		case *ast.Paragraph:
			w.inline(c)
			pdf.Ln(lineHeight + 0.8)
		case *ast.List:
			w.block(c, depth+1)
			pdf.SetLeftMargin(left + 6)
		default:
			w.block(c, depth+1)
		}
	}
	pdf.SetLeftMargin(margin)
}

func (w *markdownWriter) inline(n ast.Node) {
	w.setFont()
	w.p.color(colorText)
	for _, c := range n.GetChildren() {
		switch c := c.(type) {
		case *ast.Text:
			w.write(string(c.Literal))
		case *ast.Code:
			w.write(string(c.Literal))
		case *ast.Softbreak:
			w.write(" ")
		case *ast.Hardbreak:
			w.p.pdf.Ln(lineHeight)
		case *ast.Strong:
			w.bold++
			w.inline(c)
			w.bold--
			w.setFont()
		case *ast.Emph:
			w.italic++
			w.inline(c)
			w.italic--
			w.setFont()
		case *ast.HTMLSpan:
		default:
			if leaf := c.AsLeaf(); leaf != nil {
				w.write(string(leaf.Literal))
				continue
			}
			w.inline(c)
		}
	}
}

func (w *markdownWriter) write(s string) {
	if s == "" {
		return
	}
	w.p.pdf.Write(lineHeight, w.p.text(s))
}

func (w *markdownWriter) setFont() {
	style := ""
	if w.bold > 0 {
		style += "B"
	}
	if w.italic > 0 {
		style += "I"
	}
	w.p.pdf.SetFont(fontFamily, style, bodySize)
}

func (w *markdownWriter) table(t *ast.Table) {
	var header []string
	var rows [][]string
	ast.WalkFunc(t, func(node ast.Node, entering bool) ast.WalkStatus {
		row, ok := node.(*ast.TableRow)
		if !ok || !entering {
			return ast.GoToNext
		}
		cells := make([]string, 0, len(row.Children))
		for _, c := range row.Children {
			cells = append(cells, plainText(c))
		}
		if _, isHeader := row.Parent.(*ast.TableHeader); isHeader && header == nil {
			header = cells
		} else {
			rows = append(rows, cells)
		}
		return ast.SkipChildren
	})

	cols := len(header)
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}
	widths := make([]float64, cols)
	for i := range widths {
		widths[i] = w.p.width() / float64(cols)
	}
	pad := func(cells []string) []string {
		for len(cells) < cols {
			cells = append(cells, "")
		}
		return cells
	}
	if header != nil {
		header = pad(header)
	}
	for i := range rows {
		rows[i] = pad(rows[i])
	}
	w.p.table(widths, header, rows)
}

// plainText 提取节点下的全部文字
func plainText(n ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch node := node.(type) {
		case *ast.Text:
			sb.Write(node.Literal)
		case *ast.Code:
			sb.Write(node.Literal)
		case *ast.Softbreak:
			sb.WriteByte(' ')
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(sb.String())
}
