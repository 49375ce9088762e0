package vectordb

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository 内存向量仓库，暴力计算全部距离
// 适合单机和测试场景
type MemoryRepository struct {
	mu        sync.RWMutex
	dimension int
	distType  DistanceType
	documents map[string]Document
	byCorpus  map[string]map[string]struct{}
}

// NewMemoryRepository 创建内存向量仓库
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension < 0 {
		return nil, fmt.Errorf("vector dimension must not be negative")
	}
	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	return &MemoryRepository{
		dimension: config.Dimension,
		distType:  distType,
		documents: make(map[string]Document),
		byCorpus:  make(map[string]map[string]struct{}),
	}, nil
}

// AddBatch 批量添加文档
func (r *MemoryRepository) AddBatch(_ context.Context, docs []Document) error {
	prepared := make([]Document, len(docs))
	for i, doc := range docs {
		if err := prepareDocument(&doc, r.dimension, r.distType); err != nil {
			return err
		}
		prepared[i] = doc
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range prepared {
		if old, ok := r.documents[doc.ID]; ok && old.Corpus != doc.Corpus {
			delete(r.byCorpus[old.Corpus], doc.ID)
		}
		r.documents[doc.ID] = doc
		ids, ok := r.byCorpus[doc.Corpus]
		if !ok {
			ids = make(map[string]struct{})
			r.byCorpus[doc.Corpus] = ids
		}
		ids[doc.ID] = struct{}{}
	}
	return nil
}

// Get 获取单个文档
func (r *MemoryRepository) Get(_ context.Context, id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

// DeleteByCorpus 删除语料下的全部文档
func (r *MemoryRepository) DeleteByCorpus(_ context.Context, corpus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.byCorpus[corpus] {
		delete(r.documents, id)
	}
	delete(r.byCorpus, corpus)
	return nil
}

// Search 相似度搜索
func (r *MemoryRepository) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}
	limit := filter.MaxResults
	if limit <= 0 {
		limit = 10
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]SearchResult, 0, limit)
	for _, doc := range r.candidates(filter) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !matchMetadata(doc.Metadata, filter.Metadata) {
			continue
		}
		dist, err := ComputeDistance(vector, doc.Vector, r.distType)
		if err != nil {
			return nil, err
		}
		score := DistanceToScore(dist, r.distType)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{Document: doc, Score: score, Distance: dist})
	}

	SortSearchResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// candidates 根据语料过滤缩小候选集
func (r *MemoryRepository) candidates(filter SearchFilter) []Document {
	if len(filter.Corpora) == 0 {
		docs := make([]Document, 0, len(r.documents))
		for _, doc := range r.documents {
			docs = append(docs, doc)
		}
		return docs
	}

	var docs []Document
	for _, corpus := range filter.Corpora {
		for id := range r.byCorpus[corpus] {
			docs = append(docs, r.documents[id])
		}
	}
	return docs
}

// Count 获取文档总数
func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents), nil
}

// Dimension 返回向量维数
func (r *MemoryRepository) Dimension() int {
	return r.dimension
}

// Close 内存实现无需释放资源
func (r *MemoryRepository) Close() error {
	return nil
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
