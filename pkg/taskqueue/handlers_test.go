package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPayloadHandler 测试载荷解码
func TestPayloadHandler(t *testing.T) {
	h := PayloadHandler(func(ctx context.Context, task *Task, p MemoIngestPayload) (interface{}, error) {
		return p.ObjectKey, nil
	})

	raw, _ := MarshalPayload(&MemoIngestPayload{ObjectKey: "memos/a.pdf"})
	out, err := h.ProcessTask(context.Background(), &Task{Payload: raw})
	require.NoError(t, err)
	assert.Equal(t, "memos/a.pdf", out)

	_, err = h.ProcessTask(context.Background(), &Task{Payload: json.RawMessage(`{"object_key": 1}`)})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

// TestMemoryQueue 测试进程内队列
func TestMemoryQueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(&Config{Concurrency: 2})
	defer q.Close()

	var calls atomic.Int32
	Register(q, map[TaskType]Handler{
		TaskArtifactUpload: PayloadHandler(func(ctx context.Context, task *Task, p ArtifactUploadPayload) (interface{}, error) {
			calls.Add(1)
			return &ArtifactUploadResult{Keys: []string{p.App + "/raw_" + p.App + ".json"}}, nil
		}),
		TaskMemoIngest: HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
			return nil, errors.New("unreadable memo")
		}),
	})

	t.Run("completed", func(t *testing.T) {
		taskID, err := q.Enqueue(ctx, TaskArtifactUpload, "acme", &ArtifactUploadPayload{App: "acme"})
		require.NoError(t, err)

		task, err := q.WaitForTask(ctx, taskID, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, task.Status)
		assert.Equal(t, 1, task.Attempts)
		assert.NotNil(t, task.CompletedAt)

		var result ArtifactUploadResult
		require.NoError(t, json.Unmarshal(task.Result, &result))
		assert.Equal(t, []string{"acme/raw_acme.json"}, result.Keys)
	})

	t.Run("failed", func(t *testing.T) {
		taskID, err := q.Enqueue(ctx, TaskMemoIngest, "memos", nil)
		require.NoError(t, err)

		task, err := q.WaitForTask(ctx, taskID, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, task.Status)
		assert.Equal(t, "unreadable memo", task.Error)
	})

	t.Run("subject listing", func(t *testing.T) {
		tasks, err := q.GetTasksBySubject(ctx, "acme")
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := q.Enqueue(ctx, TaskType("nope"), "x", nil)
		assert.ErrorIs(t, err, ErrNoHandler)

		_, err = q.GetTask(ctx, "missing")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	assert.Equal(t, int32(1), calls.Load())
}

// TestMemoryQueueDelayedTimeout 延迟任务在等待超时前不会执行
func TestMemoryQueueDelayedTimeout(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(nil)

	q.RegisterHandler(TaskMemoIngest, HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
		return nil, nil
	}))

	taskID, err := q.EnqueueIn(ctx, TaskMemoIngest, "memos", nil, time.Hour)
	require.NoError(t, err)

	_, err = q.WaitForTask(ctx, taskID, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)

	// 关闭时取消尚未开始的任务
	require.NoError(t, q.Close())
	task, err := q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)
}
