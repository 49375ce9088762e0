package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Parsed 模型结构化输出的解析结果
// OK为false时Value为零值，Raw保留原始文本
type Parsed[T any] struct {
	Value T
	Raw   string
	OK    bool
}

// StripCodeFence 去掉 ```json ... ``` 包裹
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// 去掉语言标记行
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimSpace(s), "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseJSON 解析模型输出的JSON，失败时返回未解析结果
func ParseJSON[T any](raw string) Parsed[T] {
	result := Parsed[T]{Raw: raw}

	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return result
	}
	if err := json.Unmarshal([]byte(cleaned), &result.Value); err == nil {
		result.OK = true
		return result
	}

	// 输出前后带有说明文字时，截取最外层对象再试一次
	start := strings.IndexAny(cleaned, "{[")
	end := strings.LastIndexAny(cleaned, "}]")
	if start < 0 || end <= start {
		return result
	}
	var value T
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &value); err != nil {
		return result
	}
	result.Value = value
	result.OK = true
	return result
}

// GenerateJSON 带重试地调用模型并解析JSON
// 调用失败在重试耗尽后返回空结果，解析失败直接返回空结果不再重试
func GenerateJSON[T any](ctx context.Context, client Client, r Retrier, prompt string, opts ...GenerateOption) Parsed[T] {
	text, err := r.GenerateText(ctx, client, prompt, opts...)
	if err != nil {
		return Parsed[T]{}
	}

	parsed := ParseJSON[T](text)
	if !parsed.OK && r.Logger != nil {
		r.Logger.WithField("raw_length", len(text)).Warn("Model output is not valid JSON")
	}
	return parsed
}
