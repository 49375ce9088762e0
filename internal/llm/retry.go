package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Retrier 调用层重试策略，固定间隔
type Retrier struct {
	Attempts int            // 总尝试次数
	Delay    time.Duration  // 两次尝试之间的间隔
	Logger   *logrus.Logger // 可选
}

// DefaultRetrier 3次尝试，间隔2秒
func DefaultRetrier() Retrier {
	return Retrier{Attempts: 3, Delay: 2 * time.Second}
}

// Do 执行fn直到成功、遇到不可重试的错误或次数耗尽
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.Delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if r.Logger != nil {
			r.Logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"of":      attempts,
				"error":   lastErr.Error(),
			}).Warn("Model call failed")
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// GenerateText 带重试地生成文本
func (r Retrier) GenerateText(ctx context.Context, client Client, prompt string, opts ...GenerateOption) (string, error) {
	var text string
	err := r.Do(ctx, func(ctx context.Context) error {
		resp, err := client.Generate(ctx, prompt, opts...)
		if err != nil {
			return err
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
