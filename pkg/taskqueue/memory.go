package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// MemoryQueue 进程内任务队列，未启用Redis时使用
// 任务在后台goroutine中执行，状态只保存在内存里
type MemoryQueue struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	handlers map[TaskType]Handler
	waiters  map[string][]chan struct{}

	sem    chan struct{}
	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger
}

// NewMemoryQueue 创建进程内队列
func NewMemoryQueue(cfg *Config) *MemoryQueue {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		tasks:    make(map[string]*Task),
		handlers: make(map[TaskType]Handler),
		waiters:  make(map[string][]chan struct{}),
		sem:      make(chan struct{}, concurrency),
		ctx:      ctx,
		cancel:   cancel,
		logger:   cfg.logger(),
	}
}

// RegisterHandler 注册任务处理器
func (q *MemoryQueue) RegisterHandler(taskType TaskType, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = handler
}

// Enqueue 登记任务并立即在后台执行
func (q *MemoryQueue) Enqueue(ctx context.Context, taskType TaskType, subject string, payload interface{}) (string, error) {
	return q.EnqueueIn(ctx, taskType, subject, payload, 0)
}

// EnqueueIn 延迟执行任务
func (q *MemoryQueue) EnqueueIn(_ context.Context, taskType TaskType, subject string, payload interface{}, delay time.Duration) (string, error) {
	payloadBytes, err := MarshalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	q.mu.Lock()
	handler, ok := q.handlers[taskType]
	if !ok {
		q.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNoHandler, taskType)
	}
	now := time.Now()
	task := &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Subject:   subject,
		Status:    StatusPending,
		Payload:   payloadBytes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.tasks[task.ID] = task
	q.mu.Unlock()

	taskID := task.ID
	q.wg.Go(func() {
		if delay > 0 {
			select {
			case <-q.ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		select {
		case q.sem <- struct{}{}:
		case <-q.ctx.Done():
			return
		}
		defer func() { <-q.sem }()
		q.run(taskID, handler)
	})

	q.logger.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": taskType,
		"subject":   subject,
	}).Info("Task scheduled in-process")
	return taskID, nil
}

// run 执行任务，已开始的任务在Close时也会跑完
func (q *MemoryQueue) run(taskID string, handler Handler) {
	ctx := context.WithoutCancel(q.ctx)
	_ = q.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, "")

	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return
	}

	result, err := handler.ProcessTask(ctx, task)
	if err != nil {
		q.logger.WithError(err).WithField("task_id", taskID).Error("In-process task failed")
		_ = q.UpdateTaskStatus(ctx, taskID, StatusFailed, result, err.Error())
		return
	}
	_ = q.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, "")
}

// GetTask 返回任务副本
func (q *MemoryQueue) GetTask(_ context.Context, taskID string) (*Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

// GetTasksBySubject 获取同一对象下的所有任务
func (q *MemoryQueue) GetTasksBySubject(_ context.Context, subject string) ([]*Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var tasks []*Task
	for _, task := range q.tasks {
		if task.Subject == subject {
			cp := *task
			tasks = append(tasks, &cp)
		}
	}
	return tasks, nil
}

// WaitForTask 等待任务结束
func (q *MemoryQueue) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		q.mu.Lock()
		task, ok := q.tasks[taskID]
		if !ok {
			q.mu.Unlock()
			return nil, ErrTaskNotFound
		}
		if isFinished(task.Status) {
			cp := *task
			q.mu.Unlock()
			return &cp, nil
		}
		ch := make(chan struct{})
		q.waiters[taskID] = append(q.waiters[taskID], ch)
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ErrTaskTimeout
		case <-ch:
		}
	}
}

// UpdateTaskStatus 更新任务状态并唤醒等待者
func (q *MemoryQueue) UpdateTaskStatus(_ context.Context, taskID string, status TaskStatus, result interface{}, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}

	now := time.Now()
	task.Status = status
	task.UpdatedAt = now
	if status == StatusProcessing {
		task.Attempts++
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
	}
	if isFinished(status) {
		task.CompletedAt = &now
	}
	if result != nil {
		resultBytes, err := MarshalPayload(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		task.Result = resultBytes
	}
	task.Error = errMsg

	for _, ch := range q.waiters[taskID] {
		close(ch)
	}
	delete(q.waiters, taskID)
	return nil
}

// Close 取消未开始的任务并等待运行中的任务结束
func (q *MemoryQueue) Close() error {
	q.cancel()
	if r := q.wg.WaitAndRecover(); r != nil {
		return fmt.Errorf("in-process task panicked: %v", r.Value)
	}
	return nil
}
