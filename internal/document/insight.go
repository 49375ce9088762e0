package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexText 模型可能返回字符串或对象，统一保存为文本
// 对象和数组保存为紧凑JSON
type FlexText string

// UnmarshalJSON 接受字符串、null或任意JSON值
func (f *FlexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexText(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*f = FlexText(buf.String())
	return nil
}

// CustomTopics 其它主题，模型给出字符串时以 "note" 为键保存
type CustomTopics map[string]FlexText

// UnmarshalJSON 接受对象或字符串
func (c *CustomTopics) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if data[0] == '{' {
		m := map[string]FlexText{}
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*c = m
		return nil
	}
	var f FlexText
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	if f == "" {
		*c = nil
		return nil
	}
	*c = CustomTopics{"note": f}
	return nil
}

// PageInsight 单页的结构化抽取结果
type PageInsight struct {
	PageNumber     int          `json:"page_number"`
	SlideMotive    FlexText     `json:"slide_motive"`
	StartupSummary FlexText     `json:"startup_summary"`
	FounderTeam    FlexText     `json:"founder_team"`
	ProductInfo    FlexText     `json:"product_info"`
	Market         FlexText     `json:"market"`
	Financials     FlexText     `json:"financials"`
	Traction       FlexText     `json:"traction"`
	CustomTopic    CustomTopics `json:"custom_topic,omitempty"`
	Markdown       string       `json:"markdown"` // 面向读者的Markdown讲解，供切块使用
}

// Field 分类字段的键值
type Field struct {
	Key   string
	Value string
}

// Fields 按固定顺序返回非空的分类字段
func (p PageInsight) Fields() []Field {
	pairs := []Field{
		{"slide_motive", string(p.SlideMotive)},
		{"startup_summary", string(p.StartupSummary)},
		{"founder_team", string(p.FounderTeam)},
		{"product_info", string(p.ProductInfo)},
		{"market", string(p.Market)},
		{"financials", string(p.Financials)},
		{"traction", string(p.Traction)},
	}
	out := pairs[:0]
	for _, kv := range pairs {
		if strings.TrimSpace(kv.Value) != "" {
			out = append(out, kv)
		}
	}
	return out
}

// Slides 取出每页的Markdown
func Slides(pages []PageInsight) []string {
	slides := make([]string, len(pages))
	for i, p := range pages {
		slides[i] = p.Markdown
	}
	return slides
}

// extractionPrompt 单页抽取提示词
const extractionPrompt = `You will be provided with an image of one page of the pitch deck for "%s".

Return a single JSON object with these keys:
- "slide_motive": the purpose of the page
- "startup_summary": startup identity details (name, sector, funding, HQ)
- "founder_team": founder and team info (bios, fit, prior ventures, risks)
- "product_info": product or solution details
- "market": market context (problem, TAM/SAM/SOM, competitors, CAGR, moat)
- "financials": financial details (revenue, CAC, LTV, burn, runway)
- "traction": traction metrics (ARR/MRR, DAU/MAU, churn)
- "custom_topic": an object of any extra insights that fit no other key
- "markdown": a detailed, beginner-friendly explanation of the page in Markdown

Use "" for keys the page says nothing about.

Rules for "markdown":
1. If the page has a clear title, start with "# <title>"; otherwise start directly with subtitles.
2. Organize the content into 2-4 subtitles ("## <subtitle>") that group related ideas, each followed by a concise but thorough description.
3. Explain diagrams, tables and charts in plain sentences, including axes, trends and what they imply.
4. Do not mention the type of material or the physical layout of the page.

Respond with JSON only.`

// ExtractionPrompt 生成指定应用的抽取提示词
func ExtractionPrompt(app string) string {
	return fmt.Sprintf(extractionPrompt, app)
}
