package report

import (
	"strings"

	"github.com/fyerfyer/pitch-analyst/internal/refiner"
)

// DealNote 渲染交易备忘
// Financials 为两列表格，创始团队为三列表格，其余分节按键值列出
func (r *Renderer) DealNote(note *refiner.DealNote) ([]byte, error) {
	p := newPage()
	p.pdf.AddPage()

	company := note.CompanyName()
	if company == "" {
		company = "Deal Note"
	}
	p.title(company)
	p.subtitle("Deal Note | " + r.dateLine())

	if note.IsEmpty() {
		p.paragraph("No structured information could be extracted from the pitch deck.")
		return p.bytes()
	}

	w := p.width()
	for _, s := range note.Sections() {
		p.section(s.Title)
		if s.Title == "Financials" {
			rows := make([][]string, 0, len(s.Section))
			for _, e := range s.Section {
				rows = append(rows, []string{e.Key, e.Value.String()})
			}
			p.table([]float64{w * 0.3, w * 0.7}, []string{"Metric", "Value"}, rows)
			continue
		}
		for _, e := range s.Section {
			if len(e.Value.Items) > 0 {
				p.field(e.Key, "")
				for _, item := range e.Value.Items {
					p.bullet(item)
				}
				continue
			}
			p.field(e.Key, e.Value.Text)
		}
	}

	if len(note.Founders.Team) > 0 {
		p.section("Founders")
		rows := make([][]string, 0, len(note.Founders.Team))
		for _, f := range note.Founders.Team {
			rows = append(rows, []string{
				strings.TrimSpace(string(f.Name)),
				strings.TrimSpace(string(f.Role)),
				strings.TrimSpace(string(f.Background)),
			})
		}
		p.table([]float64{w * 0.22, w * 0.2, w * 0.58}, []string{"Name", "Role", "Background"}, rows)
	}
	return p.bytes()
}
