package taskqueue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisQueue 基于miniredis创建队列
func setupRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	queue, err := NewRedisQueue(&Config{
		RedisAddr:   mr.Addr(),
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })
	return queue, mr
}

// TestNewRedisQueue 测试创建Redis队列实例
func TestNewRedisQueue(t *testing.T) {
	queue, _ := setupRedisQueue(t)
	assert.NotNil(t, queue)

	_, err := NewRedisQueue(&Config{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	queue, mr := setupRedisQueue(t)
	ctx := context.Background()

	payload := &ArtifactUploadPayload{
		App:         "acme",
		FileName:    "deck.pdf",
		RawJSONPath: "/tmp/scratch/raw_acme.json",
		ImagePaths:  []string{"/tmp/scratch/deck_page_1.png"},
		ScratchDir:  "/tmp/scratch",
	}

	taskID, err := queue.Enqueue(ctx, TaskArtifactUpload, "acme", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)
	assert.True(t, mr.Exists(taskKeyPrefix+taskID))

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskArtifactUpload, task.Type)
	assert.Equal(t, "acme", task.Subject)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 2, task.MaxRetries)

	var decoded ArtifactUploadPayload
	require.NoError(t, UnmarshalPayload(task.Payload, &decoded))
	assert.Equal(t, *payload, decoded)
}

// TestRedisQueue_EnqueueIn 测试延时入队功能
func TestRedisQueue_EnqueueIn(t *testing.T) {
	queue, _ := setupRedisQueue(t)
	ctx := context.Background()

	taskID, err := queue.EnqueueIn(ctx, TaskMemoIngest, "memos", &MemoIngestPayload{ObjectKey: "memos/a.pdf"}, time.Minute)
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskMemoIngest, task.Type)
	assert.Equal(t, StatusPending, task.Status)
}

// TestRedisQueue_GetTasksBySubject 测试按对象查询任务
func TestRedisQueue_GetTasksBySubject(t *testing.T) {
	queue, mr := setupRedisQueue(t)
	ctx := context.Background()

	id1, err := queue.Enqueue(ctx, TaskArtifactUpload, "acme", nil)
	require.NoError(t, err)
	id2, err := queue.Enqueue(ctx, TaskArtifactUpload, "acme", nil)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskArtifactUpload, "globex", nil)
	require.NoError(t, err)

	tasks, err := queue.GetTasksBySubject(ctx, "acme")
	require.NoError(t, err)
	ids := []string{tasks[0].ID, tasks[1].ID}
	assert.ElementsMatch(t, []string{id1, id2}, ids)

	// 过期的任务被跳过
	mr.Del(taskKeyPrefix + id1)
	tasks, err = queue.GetTasksBySubject(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, id2, tasks[0].ID)

	tasks, err = queue.GetTasksBySubject(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_UpdateTaskStatus 测试更新任务状态
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	queue, _ := setupRedisQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskMemoIngest, "memos", &MemoIngestPayload{ObjectKey: "memos/x.pdf"})
	require.NoError(t, err)

	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""))
	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, 1, task.Attempts)

	result := &MemoIngestResult{MemoID: "Acme", Company: "Acme", Sectors: []string{"fintech"}}
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""))
	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)

	var decoded MemoIngestResult
	require.NoError(t, json.Unmarshal(task.Result, &decoded))
	assert.Equal(t, *result, decoded)

	err = queue.UpdateTaskStatus(ctx, "missing", StatusFailed, nil, "boom")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestRedisQueue_WaitForTask 测试等待任务结束
func TestRedisQueue_WaitForTask(t *testing.T) {
	queue, _ := setupRedisQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskArtifactUpload, "acme", nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = queue.UpdateTaskStatus(context.Background(), taskID, StatusFailed, nil, "upload failed")
	}()

	task, err := queue.WaitForTask(ctx, taskID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "upload failed", task.Error)

	pending, err := queue.Enqueue(ctx, TaskArtifactUpload, "acme", nil)
	require.NoError(t, err)
	_, err = queue.WaitForTask(ctx, pending, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)
}

// TestNewQueueFactory 测试队列工厂
func TestNewQueueFactory(t *testing.T) {
	mr := miniredis.RunT(t)

	q, err := NewQueue("redis", &Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	defer q.Close()
	assert.IsType(t, &RedisQueue{}, q)

	_, err = NewQueue("kafka", nil)
	assert.Error(t, err)
}

// TestRedisWorker 需要本地Redis服务
func TestRedisWorker(t *testing.T) {
	redisAddr := "localhost:6379"
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Skipping Redis worker test: Redis not available at localhost:6379")
	}
	client.Close()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  0,
		RetryDelay:  time.Second,
	}
	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	worker := NewRedisWorker(queue, cfg)
	worker.RegisterHandler(TaskMemoIngest, PayloadHandler(func(ctx context.Context, task *Task, p MemoIngestPayload) (interface{}, error) {
		return &MemoIngestResult{Company: p.FileName}, nil
	}))
	require.NoError(t, worker.Start())
	defer worker.Stop()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskMemoIngest, "memos", &MemoIngestPayload{FileName: "acme.pdf"})
	require.NoError(t, err)

	task, err := queue.WaitForTask(ctx, taskID, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)

	var result MemoIngestResult
	require.NoError(t, json.Unmarshal(task.Result, &result))
	assert.Equal(t, "acme.pdf", result.Company)
}

// TestTaskInfo 测试任务信息转换
func TestTaskInfo(t *testing.T) {
	now := time.Now()
	task := &Task{
		ID:        "t1",
		Type:      TaskArtifactUpload,
		Subject:   "acme",
		Status:    StatusProcessing,
		CreatedAt: now,
		StartedAt: &now,
	}

	info := NewTaskInfo(task)
	assert.Equal(t, "t1", info.ID)
	assert.Equal(t, "acme", info.Subject)
	assert.Equal(t, 50.0, info.Progress)

	task.Status = StatusCompleted
	assert.Equal(t, 100.0, NewTaskInfo(task).Progress)
	task.Status = StatusPending
	assert.Equal(t, 0.0, NewTaskInfo(task).Progress)
}
