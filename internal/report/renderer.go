package report

import "time"

// Renderer 生成交易备忘、投资备忘录和基准分析三类PDF
type Renderer struct {
	now func() time.Time
}

// Option 渲染器选项
type Option func(*Renderer)

// WithClock 设置报告日期使用的时钟
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// NewRenderer 创建渲染器
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) dateLine() string {
	return "Generated on " + r.now().Format("January 02, 2006")
}
