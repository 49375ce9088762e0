package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// BatchProcessor 批处理器
// 把大量文本拆成小批次并行调用嵌入接口
type BatchProcessor struct {
	client     Client // 嵌入客户端
	batchSize  int    // 每批处理的文本数量
	maxWorkers int    // 最大并行数
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Process 处理一批文本，结果与输入一一对应，空白文本对应nil
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	// 记录非空文本在原切片中的位置
	var (
		indices []int
		pending []string
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		indices = append(indices, i)
		pending = append(pending, text)
	}
	if len(pending) == 0 {
		return results, nil
	}

	wp := pool.New().
		WithMaxGoroutines(p.maxWorkers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for start := 0; start < len(pending); start += p.batchSize {
		end := min(start+p.batchSize, len(pending))
		batch := pending[start:end]
		offset := start

		wp.Go(func(ctx context.Context) error {
			vectors, err := p.client.EmbedBatch(ctx, batch)
			if err != nil {
				return fmt.Errorf("batch at %d: %w", offset, err)
			}
			if len(vectors) != len(batch) {
				return NewEmbeddingError(ErrCodeServerError,
					fmt.Sprintf("batch at %d: expected %d vectors, got %d", offset, len(batch), len(vectors)))
			}
			// 每个批次写入互不重叠的下标
			for j, vec := range vectors {
				results[indices[offset+j]] = vec
			}
			return nil
		})
	}

	if err := wp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
