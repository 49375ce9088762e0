package document

import (
	"regexp"
	"strings"
)

// headingPattern 匹配一到三级的Markdown标题
var headingPattern = regexp.MustCompile(`(?m)^(#{1,3})\s+(.*)`)

// Section 按标题切分出的一段内容
type Section struct {
	Path    []string // 标题路径，Path[0] 为一级标题
	Content string   // 标题行之后到下一个标题之前的文本，已去除首尾空白
}

// SplitByHeadings 按标题切分Markdown
// 第一个标题之前的文本会被丢弃；内容为空的段落也会返回，由调用方决定是否跳过
func SplitByHeadings(text string) []Section {
	matches := headingPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	sections := make([]Section, 0, len(matches))
	var path []string

	for i, m := range matches {
		level := m[3] - m[2]
		heading := strings.TrimSpace(text[m[4]:m[5]])

		// 路径比 level-1 短时整体保留
		keep := min(level-1, len(path))
		next := make([]string, 0, keep+1)
		next = append(next, path[:keep]...)
		path = append(next, heading)

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		sections = append(sections, Section{
			Path:    path,
			Content: strings.TrimSpace(text[m[1]:end]),
		})
	}
	return sections
}
