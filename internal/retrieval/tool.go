package retrieval

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/cache"
	"github.com/fyerfyer/pitch-analyst/internal/corpus"
	"github.com/fyerfyer/pitch-analyst/internal/embedding"
	"github.com/fyerfyer/pitch-analyst/internal/vectordb"
)

// Config 检索配置
type Config struct {
	TopK                int     // 返回的片段数
	SimilarityThreshold float32 // 混合得分阈值
	HybridAlpha         float32 // 向量得分权重，其余为关键词得分
	CacheTTL            time.Duration
}

// DefaultConfig 返回默认检索配置
func DefaultConfig() Config {
	return Config{
		TopK:                8,
		SimilarityThreshold: 0.6,
		HybridAlpha:         0.9,
	}
}

// candidateFactor 向量检索多取的候选倍数，关键词重排后再截断
const candidateFactor = 3

// Passage 一条检索结果
type Passage struct {
	Text         string
	Score        float32
	VectorScore  float32
	KeywordScore float32
}

// Tool 语料检索工具
type Tool struct {
	embedder embedding.Client
	index    vectordb.Repository
	cache    cache.Cache
	config   Config
	logger   *logrus.Logger
}

// Option 检索工具配置选项
type Option func(*Tool)

// WithCache 缓存格式化后的检索结果
func WithCache(c cache.Cache) Option {
	return func(t *Tool) {
		t.cache = c
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(t *Tool) {
		t.logger = logger
	}
}

// NewTool 创建检索工具，embedder 应当使用查询用途的向量
func NewTool(embedder embedding.Client, index vectordb.Repository, cfg Config, opts ...Option) *Tool {
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.HybridAlpha < 0 || cfg.HybridAlpha > 1 {
		cfg.HybridAlpha = def.HybridAlpha
	}
	t := &Tool{
		embedder: embedder,
		index:    index,
		config:   cfg,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config 返回生效的配置
func (t *Tool) Config() Config {
	return t.config
}

// Query 检索语料并格式化为 "[Source i]: text"，条目之间空一行
// 任何失败或没有结果都返回空串
func (t *Tool) Query(ctx context.Context, handle corpus.Handle, query string) string {
	if strings.TrimSpace(query) == "" || handle == "" {
		return ""
	}

	cacheKey := cache.GenerateCacheKey("retrieval", handle.String(), query)
	if t.cache != nil {
		if cached, found, err := t.cache.Get(ctx, cacheKey); err == nil && found {
			return cached
		}
	}

	passages, err := t.Search(ctx, handle, query)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"corpus": handle.String(),
			"error":  err.Error(),
		}).Warn("Corpus query failed")
		return ""
	}
	if len(passages) == 0 {
		return ""
	}

	result := FormatPassages(passages)
	if t.cache != nil && t.config.CacheTTL > 0 {
		if err := t.cache.Set(ctx, cacheKey, result, t.config.CacheTTL); err != nil {
			t.logger.WithError(err).Warn("Failed to cache retrieval result")
		}
	}
	return result
}

// Search 混合检索：向量得分与关键词得分加权，低于阈值的丢弃
func (t *Tool) Search(ctx context.Context, handle corpus.Handle, query string) ([]Passage, error) {
	vector, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := t.index.Search(ctx, vector, vectordb.SearchFilter{
		Corpora:    []string{handle.String()},
		MaxResults: t.config.TopK * candidateFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search corpus: %w", err)
	}

	terms := Terms(query)
	alpha := t.config.HybridAlpha
	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		kw := KeywordScore(terms, r.Document.Text)
		score := alpha*r.Score + (1-alpha)*kw
		if score < t.config.SimilarityThreshold {
			continue
		}
		passages = append(passages, Passage{
			Text:         r.Document.Text,
			Score:        score,
			VectorScore:  r.Score,
			KeywordScore: kw,
		})
	}

	slices.SortStableFunc(passages, func(a, b Passage) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(passages) > t.config.TopK {
		passages = passages[:t.config.TopK]
	}
	return passages, nil
}

// FormatPassages 按顺序编号，从1开始
func FormatPassages(passages []Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("[Source %d]: %s", i+1, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Terms 提取查询中的关键词，小写去重，忽略短词
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// KeywordScore 文本中出现的关键词占比
func KeywordScore(terms []string, text string) float32 {
	if len(terms) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, w := range Terms(text) {
		present[w] = true
	}
	hits := 0
	for _, term := range terms {
		if present[term] {
			hits++
		}
	}
	return float32(hits) / float32(len(terms))
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"from": true, "that": true, "this": true, "are": true, "what": true,
	"any": true, "all": true, "how": true, "its": true, "into": true,
}
