package taskqueue

import (
	"context"
	"fmt"
)

// HandlerFunc 函数形式的处理器
type HandlerFunc func(ctx context.Context, task *Task) (interface{}, error)

// ProcessTask 实现 Handler
func (f HandlerFunc) ProcessTask(ctx context.Context, task *Task) (interface{}, error) {
	return f(ctx, task)
}

// PayloadHandler 把载荷解码为P后交给fn处理
// 载荷无法解码时返回 ErrInvalidPayload，队列不会重试
func PayloadHandler[P any](fn func(ctx context.Context, task *Task, payload P) (interface{}, error)) Handler {
	return HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
		var payload P
		if err := UnmarshalPayload(task.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return fn(ctx, task, payload)
	})
}

// Registrar 可以注册处理器的队列或工作者
type Registrar interface {
	RegisterHandler(taskType TaskType, handler Handler)
}

// Register 一次注册多个处理器
func Register(r Registrar, handlers map[TaskType]Handler) {
	for taskType, h := range handlers {
		r.RegisterHandler(taskType, h)
	}
}
