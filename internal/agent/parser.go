package agent

import (
	"errors"
	"regexp"
	"strings"
)

const finalAnswerPrefix = "Final Answer:"

var (
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPattern  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputPattern = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
)

// 输出格式错误，作为观察结果反馈给模型
var (
	ErrMissingAction      = errors.New("Invalid Format: Missing 'Action:' after 'Thought:'")
	ErrMissingActionInput = errors.New("Invalid Format: Missing 'Action Input:' after 'Action:'")
	ErrAmbiguousOutput    = errors.New("Invalid Format: output contains both a final answer and an action")
	ErrUnparseable        = errors.New("Invalid Format: could not parse output")
)

// Decision 模型单轮输出的解析结果
type Decision struct {
	Log         string // 模型原始输出
	Tool        string
	ToolInput   string
	FinalAnswer string
	Finished    bool
}

// ParseOutput 解析ReAct格式输出
// 取第一组 Action / Action Input，出现 Final Answer 时结束
func ParseOutput(text string) (Decision, error) {
	d := Decision{Log: text}
	hasFinal := strings.Contains(text, finalAnswerPrefix)

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if hasFinal {
			return d, ErrAmbiguousOutput
		}
		d.Tool = strings.TrimSpace(m[1])
		d.ToolInput = cleanToolInput(m[2])
		return d, nil
	}

	if hasFinal {
		idx := strings.LastIndex(text, finalAnswerPrefix)
		d.FinalAnswer = strings.TrimSpace(text[idx+len(finalAnswerPrefix):])
		d.Finished = true
		return d, nil
	}

	if !actionOnlyPattern.MatchString(text) {
		return d, ErrMissingAction
	}
	if !actionInputPattern.MatchString(text) {
		return d, ErrMissingActionInput
	}
	return d, ErrUnparseable
}

// cleanToolInput 截掉模型自己编出来的观察结果，去掉引号
func cleanToolInput(input string) string {
	if idx := strings.Index(input, "\nObservation"); idx >= 0 {
		input = input[:idx]
	}
	input = strings.TrimSpace(input)
	input = strings.Trim(input, `"`)
	return strings.TrimSpace(input)
}
