package vectordb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDoc 创建用于测试的文档
func createTestDoc(id, corpus string, position int, vector []float32) Document {
	return Document{
		ID:       id,
		Corpus:   corpus,
		Source:   corpus + "/" + corpus + ".jsonl",
		Position: position,
		Text:     "chunk " + id,
		Vector:   vector,
		Metadata: map[string]interface{}{
			"slide": position,
		},
	}
}

func seedDocs() []Document {
	return []Document{
		createTestDoc("a1", "acme", 0, []float32{1, 0, 0, 0}),
		createTestDoc("a2", "acme", 1, []float32{0.9, 0.1, 0, 0}),
		createTestDoc("a3", "acme", 2, []float32{0, 1, 0, 0}),
		createTestDoc("b1", "beta", 0, []float32{1, 0.05, 0, 0}),
		createTestDoc("b2", "beta", 1, []float32{0, 0, 1, 0}),
	}
}

// testRepository 各实现共用的行为测试
func testRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	require.NoError(t, repo.AddBatch(ctx, seedDocs()))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, 4, repo.Dimension())

	t.Run("get", func(t *testing.T) {
		doc, err := repo.Get(ctx, "a2")
		require.NoError(t, err)
		assert.Equal(t, "acme", doc.Corpus)
		assert.Equal(t, 1, doc.Position)

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("search all corpora", func(t *testing.T) {
		results, err := repo.Search(ctx, []float32{1, 0, 0, 0}, SearchFilter{MaxResults: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a1", results[0].Document.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-4)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
		assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
	})

	t.Run("search restricted to corpus", func(t *testing.T) {
		results, err := repo.Search(ctx, []float32{1, 0, 0, 0}, SearchFilter{Corpora: []string{"beta"}, MaxResults: 5})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "b1", results[0].Document.ID)
		for _, r := range results {
			assert.Equal(t, "beta", r.Document.Corpus)
		}
	})

	t.Run("min score", func(t *testing.T) {
		results, err := repo.Search(ctx, []float32{1, 0, 0, 0}, SearchFilter{MinScore: 0.9, MaxResults: 10})
		require.NoError(t, err)
		ids := make([]string, 0, len(results))
		for _, r := range results {
			ids = append(ids, r.Document.ID)
		}
		assert.ElementsMatch(t, []string{"a1", "a2", "b1"}, ids)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := repo.Search(ctx, []float32{1, 0}, SearchFilter{})
		assert.ErrorIs(t, err, ErrInvalidDimension)

		err = repo.AddBatch(ctx, []Document{createTestDoc("bad", "acme", 9, []float32{1})})
		assert.ErrorIs(t, err, ErrInvalidDimension)
	})

	t.Run("overwrite by id", func(t *testing.T) {
		require.NoError(t, repo.AddBatch(ctx, []Document{createTestDoc("a3", "acme", 2, []float32{0, 0, 0, 1})}))
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, count)

		results, err := repo.Search(ctx, []float32{0, 0, 0, 1}, SearchFilter{MaxResults: 1})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a3", results[0].Document.ID)
	})

	t.Run("delete by corpus", func(t *testing.T) {
		require.NoError(t, repo.DeleteByCorpus(ctx, "acme"))
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		results, err := repo.Search(ctx, []float32{1, 0, 0, 0}, SearchFilter{MaxResults: 5})
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, "beta", r.Document.Corpus)
		}
	})
}

// TestMemoryRepository 测试内存向量仓库
func TestMemoryRepository(t *testing.T) {
	repo, err := NewRepository(Config{Type: "memory", Dimension: 4, DistanceType: Cosine})
	require.NoError(t, err)
	defer repo.Close()

	testRepository(t, repo)
}

// TestMemoryRepositoryMetadataFilter 测试元数据过滤
func TestMemoryRepositoryMetadataFilter(t *testing.T) {
	ctx := context.Background()
	repo, err := NewMemoryRepository(Config{Dimension: 4})
	require.NoError(t, err)
	require.NoError(t, repo.AddBatch(ctx, seedDocs()))

	results, err := repo.Search(ctx, []float32{1, 0, 0, 0}, SearchFilter{
		Metadata:   map[string]interface{}{"slide": 1},
		MaxResults: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a2", results[0].Document.ID)
	assert.Equal(t, "b2", results[1].Document.ID)
}

// TestMemoryRepositoryCancelled 取消的上下文直接返回
func TestMemoryRepositoryCancelled(t *testing.T) {
	repo, err := NewMemoryRepository(Config{Dimension: 4})
	require.NoError(t, err)
	require.NoError(t, repo.AddBatch(context.Background(), seedDocs()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.Search(ctx, []float32{1, 0, 0, 0}, SearchFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnknownTypeFallsBackToMemory(t *testing.T) {
	repo, err := NewRepository(Config{Type: "nope", Dimension: 4})
	require.NoError(t, err)
	_, ok := repo.(*MemoryRepository)
	assert.True(t, ok)
}

// TestFaissRepository 测试FAISS向量仓库
func TestFaissRepository(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "index.faiss")
	repo, err := NewRepository(Config{
		Type:              "faiss",
		Dimension:         4,
		DistanceType:      Cosine,
		Path:              indexPath,
		CreateIfNotExists: true,
	})
	if err != nil {
		t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
	}
	defer repo.Close()

	testRepository(t, repo)
}

// TestFaissSaveAndLoad 测试FAISS索引的保存和加载
func TestFaissSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	indexPath := filepath.Join(t.TempDir(), "index.faiss")
	config := Config{Type: "faiss", Dimension: 4, DistanceType: Cosine, Path: indexPath, CreateIfNotExists: true}

	repo, err := NewRepository(config)
	if err != nil {
		t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
	}
	require.NoError(t, repo.AddBatch(ctx, seedDocs()))
	require.NoError(t, repo.DeleteByCorpus(ctx, "beta"))
	require.NoError(t, repo.Close())

	assert.FileExists(t, indexPath)
	assert.FileExists(t, indexPath+".meta.json")

	reloaded, err := NewRepository(config)
	require.NoError(t, err)
	defer reloaded.Close()

	count, err := reloaded.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := reloaded.Search(ctx, []float32{1, 0, 0, 0}, SearchFilter{MaxResults: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a1", results[0].Document.ID)
	for _, r := range results {
		assert.Equal(t, "acme", r.Document.Corpus)
	}
}

// TestPgVectorRepository 只有在设置PGVECTOR_DSN环境变量时才运行
func TestPgVectorRepository(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_DSN")
	if dsn == "" {
		t.Skip("Haven't set PGVECTOR_DSN environment variable, skipping test")
	}

	repo, err := NewRepository(Config{Type: "pgvector", DSN: dsn, Dimension: 4, DistanceType: Cosine})
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.DeleteByCorpus(ctx, "acme"))
	require.NoError(t, repo.DeleteByCorpus(ctx, "beta"))
	testRepository(t, repo)
}

// TestDistanceHelpers 测试距离与评分换算
func TestDistanceHelpers(t *testing.T) {
	d, err := ComputeDistance([]float32{1, 0}, []float32{1, 0}, Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-6)
	assert.InDelta(t, 1, DistanceToScore(d, Cosine), 1e-6)

	d, err = ComputeDistance([]float32{0, 0}, []float32{3, 4}, Euclidean)
	require.NoError(t, err)
	assert.InDelta(t, 5, d, 1e-6)

	_, err = ComputeDistance([]float32{1}, []float32{1, 2}, DotProduct)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	assert.Equal(t, []float32{0, 0}, normalizeVector([]float32{0, 0}))
	assert.ErrorIs(t, ValidateVector(nil, 3), ErrEmptyVector)

	results := []SearchResult{
		{Document: Document{ID: "b"}, Score: 0.5},
		{Document: Document{ID: "a"}, Score: 0.5},
		{Document: Document{ID: "c"}, Score: 0.9},
	}
	SortSearchResults(results)
	assert.Equal(t, "c", results[0].Document.ID)
	assert.Equal(t, "a", results[1].Document.ID)
}
