package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/pitch-analyst/internal/cache"
	"github.com/fyerfyer/pitch-analyst/internal/corpus"
	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/embedding"
	"github.com/fyerfyer/pitch-analyst/internal/vectordb"
	"github.com/fyerfyer/pitch-analyst/pkg/storage"
)

func setupIndex(t *testing.T) vectordb.Repository {
	index, err := vectordb.NewMemoryRepository(vectordb.Config{Dimension: 3, DistanceType: vectordb.Cosine})
	require.NoError(t, err)
	require.NoError(t, index.AddBatch(context.Background(), []vectordb.Document{
		{ID: "acme:0", Corpus: "acme", Text: "Founding team: two ex-Flipkart engineers", Vector: []float32{1, 0, 0}},
		{ID: "acme:1", Corpus: "acme", Text: "Team also includes a CFO", Vector: []float32{0.9, 0.1, 0}},
		{ID: "acme:2", Corpus: "acme", Text: "TAM of $4B", Vector: []float32{0, 1, 0}},
		{ID: "other:0", Corpus: "other", Text: "Unrelated founding team", Vector: []float32{1, 0, 0}},
	}))
	return index
}

func TestToolQuery(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewMockClient(t)
	embedder.EXPECT().Embed(mock.Anything, "founding team").Return([]float32{1, 0, 0}, nil)

	tool := NewTool(embedder, setupIndex(t), DefaultConfig())
	out := tool.Query(ctx, "acme", "founding team")

	assert.Equal(t,
		"[Source 1]: Founding team: two ex-Flipkart engineers\n\n[Source 2]: Team also includes a CFO",
		out)
}

func TestToolQueryFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding error", func(t *testing.T) {
		embedder := embedding.NewMockClient(t)
		embedder.EXPECT().Embed(mock.Anything, mock.Anything).Return(nil, errors.New("quota"))
		tool := NewTool(embedder, setupIndex(t), DefaultConfig())
		assert.Equal(t, "", tool.Query(ctx, "acme", "founding team"))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		embedder := embedding.NewMockClient(t)
		embedder.EXPECT().Embed(mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
		tool := NewTool(embedder, setupIndex(t), DefaultConfig())
		assert.Equal(t, "", tool.Query(ctx, "acme", "founding team"))
	})

	t.Run("nothing above threshold", func(t *testing.T) {
		embedder := embedding.NewMockClient(t)
		embedder.EXPECT().Embed(mock.Anything, mock.Anything).Return([]float32{0, 0, 1}, nil)
		tool := NewTool(embedder, setupIndex(t), DefaultConfig())
		assert.Equal(t, "", tool.Query(ctx, "acme", "exit strategy"))
	})

	t.Run("unknown corpus", func(t *testing.T) {
		embedder := embedding.NewMockClient(t)
		embedder.EXPECT().Embed(mock.Anything, mock.Anything).Return([]float32{1, 0, 0}, nil)
		tool := NewTool(embedder, setupIndex(t), DefaultConfig())
		assert.Equal(t, "", tool.Query(ctx, "ghost", "founding team"))
	})

	t.Run("blank query skips embedding", func(t *testing.T) {
		tool := NewTool(embedding.NewMockClient(t), setupIndex(t), DefaultConfig())
		assert.Equal(t, "", tool.Query(ctx, "acme", "   "))
	})
}

func TestToolSearchHybrid(t *testing.T) {
	embedder := embedding.NewMockClient(t)
	embedder.EXPECT().Embed(mock.Anything, mock.Anything).Return([]float32{1, 0, 0}, nil)

	cfg := DefaultConfig()
	cfg.TopK = 1
	tool := NewTool(embedder, setupIndex(t), cfg)

	passages, err := tool.Search(context.Background(), "acme", "founding team")
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.InDelta(t, 1.0, passages[0].VectorScore, 1e-5)
	assert.InDelta(t, 1.0, passages[0].KeywordScore, 1e-5)
	assert.InDelta(t, 1.0, passages[0].Score, 1e-5)
}

func TestToolQueryCache(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	embedder := embedding.NewMockClient(t)
	embedder.EXPECT().Embed(mock.Anything, "founding team").Return([]float32{1, 0, 0}, nil).Once()

	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	tool := NewTool(embedder, setupIndex(t), cfg, WithCache(c))

	first := tool.Query(ctx, "acme", "founding team")
	require.NotEmpty(t, first)
	assert.Equal(t, first, tool.Query(ctx, "acme", "founding team"))
}

func TestToolQueryAfterReupload(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	index, err := vectordb.NewMemoryRepository(vectordb.Config{Dimension: 3, DistanceType: vectordb.Cosine})
	require.NoError(t, err)

	embedder := embedding.NewMockClient(t)
	embedder.EXPECT().EmbedBatch(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, 0, 0}
			}
			return out, nil
		})
	embedder.EXPECT().Embed(mock.Anything, "founding team").Return([]float32{1, 0, 0}, nil)

	uploader := corpus.NewUploader(store, embedding.NewBatchProcessor(embedder, 4, 1), index)
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Hour
	tool := NewTool(embedder, index, cfg, WithCache(c))

	first, err := uploader.Upload(ctx, "pitch", []document.Chunk{{ID: "chunk_0", Text: "Founding team of two"}})
	require.NoError(t, err)
	assert.Equal(t, "[Source 1]: Founding team of two", tool.Query(ctx, first, "founding team"))

	// 同名文件重新上传后，新语料的检索不会命中旧结果的缓存
	second, err := uploader.Upload(ctx, "pitch", []document.Chunk{{ID: "chunk_0", Text: "Founding team of five"}})
	require.NoError(t, err)
	assert.Equal(t, "[Source 1]: Founding team of five", tool.Query(ctx, second, "founding team"))
	assert.Equal(t, "[Source 1]: Founding team of two", tool.Query(ctx, first, "founding team"))
}

func TestTermsAndKeywordScore(t *testing.T) {
	assert.Equal(t, []string{"founding", "team", "experience"}, Terms("What is the founding team's experience? Team!"))
	assert.InDelta(t, 0.5, KeywordScore([]string{"team", "revenue"}, "The team is strong"), 1e-6)
	assert.Zero(t, KeywordScore(nil, "anything"))
	assert.Equal(t, "[Source 1]: a\n\n[Source 2]: b", FormatPassages([]Passage{{Text: "a"}, {Text: "b"}}))
}
