package refiner

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/fyerfyer/pitch-analyst/internal/document"
)

// valueSeparator 同一键在多页出现时的连接符
const valueSeparator = " | "

// MergedPitch 一份文件所有页面合并后的抽取结果
type MergedPitch struct {
	PageNumbers []int
	Fields      map[string]string // 分类字段，按页顺序拼接
	CustomTopic map[string]string
}

// MarshalJSON 展平为一个对象，供提示词使用
func (m MergedPitch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Fields)+2)
	for k, v := range m.Fields {
		out[k] = v
	}
	out["page_number"] = m.PageNumbers
	out["custom_topic"] = m.CustomTopic
	return json.Marshal(out)
}

// MergeSimilarKeys 按文件合并各页的同名字段
// 空值跳过，页码全部保留，custom_topic 的子键冲突时拼接
func MergeSimilarKeys(files map[string][]document.PageInsight) map[string]MergedPitch {
	merged := make(map[string]MergedPitch, len(files))
	for name, pages := range files {
		values := make(map[string][]string)
		m := MergedPitch{
			PageNumbers: make([]int, 0, len(pages)),
			Fields:      make(map[string]string),
			CustomTopic: make(map[string]string),
		}
		for _, page := range pages {
			m.PageNumbers = append(m.PageNumbers, page.PageNumber)
			for _, f := range page.Fields() {
				values[f.Key] = append(values[f.Key], f.Value)
			}
			mergeCustomTopic(m.CustomTopic, page.CustomTopic)
		}
		for k, vs := range values {
			m.Fields[k] = strings.Join(vs, valueSeparator)
		}
		merged[name] = m
	}
	return merged
}

// mergeCustomTopic 子键按字母序处理，保证拼接顺序稳定
func mergeCustomTopic(dst map[string]string, src document.CustomTopics) {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.TrimSpace(string(src[k]))
		if v == "" {
			continue
		}
		if existing, ok := dst[k]; ok {
			dst[k] = existing + valueSeparator + v
		} else {
			dst[k] = v
		}
	}
}
