package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository 基于Faiss扁平索引的向量仓库
// Faiss只保存向量，文档内容和位置映射另存为 <path>.meta.json
// 删除只移除元数据，索引中的向量在搜索时跳过
type FaissRepository struct {
	mu             sync.RWMutex
	index          faiss.Index
	documents      map[string]Document
	byCorpus       map[string][]string
	positions      []string // 索引位置到文档ID，已删除的位置为空串
	indexPath      string
	metaPath       string
	dimension      int
	distanceType   DistanceType
	autoSaveCount  int
	operationCount int
}

type faissMeta struct {
	Documents map[string]Document `json:"documents"`
	ByCorpus  map[string][]string `json:"by_corpus"`
	Positions []string            `json:"positions"`
}

// NewFaissRepository 创建新的Faiss向量仓库，索引文件存在时加载
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	if config.Path != "" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	repo := &FaissRepository{
		documents:     make(map[string]Document),
		byCorpus:      make(map[string][]string),
		indexPath:     config.Path,
		dimension:     config.Dimension,
		distanceType:  distType,
		autoSaveCount: 100,
	}
	if config.Path != "" {
		repo.metaPath = config.Path + ".meta.json"
	}

	if config.Path != "" && fileExists(config.Path) {
		index, err := faiss.ReadIndex(config.Path, 0)
		if err == nil {
			if err := repo.loadMetadata(); err != nil {
				index.Delete()
				return nil, fmt.Errorf("failed to load documents metadata: %v", err)
			}
			repo.index = index
			return repo, nil
		}
		if !config.CreateIfNotExists {
			return nil, fmt.Errorf("failed to read index file: %v", err)
		}
	}

	index, err := createFaissIndex(config.Dimension, distType)
	if err != nil {
		return nil, fmt.Errorf("failed to create Faiss index: %v", err)
	}
	repo.index = index
	return repo, nil
}

// createFaissIndex 余弦和点积使用内积度量
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	metric := faiss.MetricL2
	if distType == Cosine || distType == DotProduct {
		metric = faiss.MetricInnerProduct
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// AddBatch 批量添加文档，已存在的ID先作废旧位置
func (r *FaissRepository) AddBatch(_ context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	flat := make([]float32, 0, len(docs)*r.dimension)
	prepared := make([]Document, len(docs))
	for i, doc := range docs {
		if err := prepareDocument(&doc, r.dimension, r.distanceType); err != nil {
			return err
		}
		prepared[i] = doc
		flat = append(flat, doc.Vector...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.index.Add(flat); err != nil {
		return fmt.Errorf("failed to add vectors to index: %v", err)
	}

	for _, doc := range prepared {
		if _, exists := r.documents[doc.ID]; exists {
			r.removeLocked(doc.ID)
		}
		r.documents[doc.ID] = doc
		r.byCorpus[doc.Corpus] = append(r.byCorpus[doc.Corpus], doc.ID)
		r.positions = append(r.positions, doc.ID)
	}

	r.operationCount += len(prepared)
	if r.operationCount >= r.autoSaveCount {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("auto-save failed: %v", err)
		}
		r.operationCount = 0
	}
	return nil
}

// Get 获取单个文档
func (r *FaissRepository) Get(_ context.Context, id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, exists := r.documents[id]
	if !exists {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

// DeleteByCorpus 删除语料下的所有文档
func (r *FaissRepository) DeleteByCorpus(_ context.Context, corpus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := slices.Clone(r.byCorpus[corpus])
	for _, id := range ids {
		r.removeLocked(id)
	}
	delete(r.byCorpus, corpus)
	r.operationCount += len(ids)
	return nil
}

// removeLocked 作废文档对应的索引位置，调用方持有写锁
func (r *FaissRepository) removeLocked(id string) {
	doc, ok := r.documents[id]
	if !ok {
		return
	}
	delete(r.documents, id)
	for i, docID := range r.positions {
		if docID == id {
			r.positions[i] = ""
		}
	}
	ids := r.byCorpus[doc.Corpus]
	for i, docID := range ids {
		if docID == id {
			r.byCorpus[doc.Corpus] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Search 相似度搜索
// 过滤在索引之外进行，先多取一些候选再筛选
func (r *FaissRepository) Search(_ context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distanceType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := int(r.index.Ntotal())
	if len(r.documents) == 0 || total == 0 {
		return []SearchResult{}, nil
	}
	k := filter.MaxResults
	if k <= 0 {
		k = 10
	}
	queryLimit := k * 4
	if len(filter.Corpora) > 0 || len(filter.Metadata) > 0 || len(r.documents) < total {
		queryLimit = total
	}
	queryLimit = min(queryLimit, total)

	distances, indices, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %v", err)
	}

	results := make([]SearchResult, 0, k)
	for i, idx := range indices {
		if idx < 0 || int(idx) >= len(r.positions) {
			continue
		}
		docID := r.positions[idx]
		if docID == "" {
			continue
		}
		doc := r.documents[docID]
		if !matchFilter(doc, filter) {
			continue
		}

		raw := distances[i]
		var score, dist float32
		switch r.distanceType {
		case Cosine:
			// 内积即余弦相似度
			score, dist = raw, 1-raw
		case DotProduct:
			score, dist = DistanceToScore(raw, DotProduct), raw
		default:
			// IndexFlatL2 返回平方距离
			dist = float32(math.Sqrt(float64(raw)))
			score = DistanceToScore(dist, Euclidean)
		}
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{Document: doc, Score: score, Distance: dist})
		if len(results) >= k {
			break
		}
	}

	SortSearchResults(results)
	return results, nil
}

// Count 获取文档总数
func (r *FaissRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents), nil
}

// Dimension 返回向量维数
func (r *FaissRepository) Dimension() int {
	return r.dimension
}

// Close 保存索引并释放Faiss资源
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.saveIndex()
	r.index.Delete()
	if err != nil {
		return fmt.Errorf("failed to save index on close: %v", err)
	}
	return nil
}

// saveIndex 保存索引和文档数据到文件
func (r *FaissRepository) saveIndex() error {
	if r.indexPath == "" {
		return nil
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write index to file: %v", err)
	}
	return r.saveMetadata()
}

func (r *FaissRepository) saveMetadata() error {
	data, err := json.Marshal(faissMeta{
		Documents: r.documents,
		ByCorpus:  r.byCorpus,
		Positions: r.positions,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %v", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %v", err)
	}
	return nil
}

func (r *FaissRepository) loadMetadata() error {
	if r.metaPath == "" || !fileExists(r.metaPath) {
		return nil
	}
	data, err := os.ReadFile(r.metaPath)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %v", err)
	}
	var meta faissMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %v", err)
	}
	if meta.Documents != nil {
		r.documents = meta.Documents
	}
	if meta.ByCorpus != nil {
		r.byCorpus = meta.ByCorpus
	}
	r.positions = meta.Positions
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
