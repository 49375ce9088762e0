package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fyerfyer/pitch-analyst/internal/document"
)

// Line 语料文件中的一行
type Line struct {
	Content string `json:"content"`
}

// EncodeJSONL 将分块编码为语料文件，每行一个 {"content": ...}
// 保留原始字符，不做HTML转义
func EncodeJSONL(chunks []document.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, c := range chunks {
		// Encode 会在每条记录后追加换行
		if err := enc.Encode(Line{Content: c.Text}); err != nil {
			return nil, fmt.Errorf("failed to encode chunk %s: %w", c.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeJSONL 读取语料文件，跳过空行
func DecodeJSONL(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var contents []string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line Line
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("invalid corpus line %d: %w", lineNo, err)
		}
		contents = append(contents, line.Content)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	return contents, nil
}
