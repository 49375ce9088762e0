package refiner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyerfyer/pitch-analyst/internal/document"
)

// Value 字段取值，文本或列表
type Value struct {
	Text  string
	Items []string
}

// IsEmpty 判断取值是否为空
func (v Value) IsEmpty() bool {
	return strings.TrimSpace(v.Text) == "" && len(v.Items) == 0
}

// String 列表以分号连接
func (v Value) String() string {
	if len(v.Items) > 0 {
		return strings.Join(v.Items, "; ")
	}
	return v.Text
}

// Entry 有序的键值
type Entry struct {
	Key   string
	Value Value
}

// Section 保持模型给出的键顺序
type Section []Entry

// Get 按键查找
func (s Section) Get(key string) (Value, bool) {
	for _, e := range s {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// UnmarshalJSON 逐个读取对象成员，跳过空值
func (s *Section) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("section must be an object")
	}

	var entries Section
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if value.IsEmpty() {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	*s = entries
	return nil
}

// MarshalJSON 按顺序输出
func (s Section) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val []byte
		if len(e.Value.Items) > 0 {
			val, err = json.Marshal(e.Value.Items)
		} else {
			val, err = json.Marshal(e.Value.Text)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []document.FlexText
		if err := json.Unmarshal(raw, &items); err != nil {
			return Value{}, err
		}
		v := Value{}
		for _, item := range items {
			if s := strings.TrimSpace(string(item)); s != "" {
				v.Items = append(v.Items, s)
			}
		}
		return v, nil
	}
	var text document.FlexText
	if err := json.Unmarshal(raw, &text); err != nil {
		return Value{}, err
	}
	return Value{Text: strings.TrimSpace(string(text))}, nil
}

// Founder 创始团队成员
type Founder struct {
	Name       document.FlexText `json:"Name"`
	Background document.FlexText `json:"Background"`
	Role       document.FlexText `json:"Role"`
}

// Founders 创始团队
type Founders struct {
	Team []Founder `json:"Team,omitempty"`
}

// DealNote 面向投资人的交易备忘
type DealNote struct {
	Summary    Section  `json:"Summary,omitempty"`
	Product    Section  `json:"Product,omitempty"`
	Market     Section  `json:"Market,omitempty"`
	Traction   Section  `json:"Traction,omitempty"`
	Financials Section  `json:"Financials,omitempty"`
	Founders   Founders `json:"Founders"`
}

// NamedSection 带标题的分节
type NamedSection struct {
	Title   string
	Section Section
}

// Sections 按固定顺序返回非空的分节，创始团队单独处理
func (d DealNote) Sections() []NamedSection {
	all := []NamedSection{
		{"Summary", d.Summary},
		{"Product", d.Product},
		{"Market", d.Market},
		{"Traction", d.Traction},
		{"Financials", d.Financials},
	}
	out := all[:0]
	for _, s := range all {
		if len(s.Section) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// CompanyName 取 Summary 中的公司名
func (d DealNote) CompanyName() string {
	if v, ok := d.Summary.Get("Company Name"); ok {
		return v.String()
	}
	return ""
}

// IsEmpty 没有任何内容
func (d DealNote) IsEmpty() bool {
	return len(d.Sections()) == 0 && len(d.Founders.Team) == 0
}
