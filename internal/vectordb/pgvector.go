package vectordb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorRepository 基于PostgreSQL pgvector扩展的向量仓库
type PgVectorRepository struct {
	pool      *pgxpool.Pool
	dimension int
	distType  DistanceType
}

// NewPgVectorRepository 连接数据库并确保表结构存在
func NewPgVectorRepository(config Config) (Repository, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("pgvector DSN is required")
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := ensureSchema(ctx, pool, config.Dimension); err != nil {
		pool.Close()
		return nil, err
	}

	return &PgVectorRepository{pool: pool, dimension: config.Dimension, distType: distType}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS corpus_chunks (
			id TEXT PRIMARY KEY,
			corpus TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			position INT NOT NULL DEFAULT 0,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_corpus_chunks_corpus ON corpus_chunks(corpus)",
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

// distanceOperator 返回距离类型对应的pgvector运算符
func distanceOperator(distType DistanceType) string {
	switch distType {
	case Euclidean:
		return "<->"
	case DotProduct:
		// <#> 返回负内积
		return "<#>"
	default:
		return "<=>"
	}
}

// AddBatch 批量写入，ID冲突时覆盖
func (r *PgVectorRepository) AddBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, doc := range docs {
		if err := prepareDocument(&doc, r.dimension, r.distType); err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO corpus_chunks (id, corpus, source, position, content, metadata, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				corpus = EXCLUDED.corpus,
				source = EXCLUDED.source,
				position = EXCLUDED.position,
				content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding`,
			doc.ID, doc.Corpus, doc.Source, doc.Position, doc.Text, doc.Metadata,
			pgvector.NewVector(doc.Vector), doc.CreatedAt)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// Get 获取单个文档
func (r *PgVectorRepository) Get(ctx context.Context, id string) (Document, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, corpus, source, position, content, metadata, embedding, created_at
		FROM corpus_chunks WHERE id = $1`, id)

	var doc Document
	var vec pgvector.Vector
	err := row.Scan(&doc.ID, &doc.Corpus, &doc.Source, &doc.Position, &doc.Text, &doc.Metadata, &vec, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get chunk: %w", err)
	}
	doc.Vector = vec.Slice()
	return doc, nil
}

// DeleteByCorpus 删除语料下的全部文档
func (r *PgVectorRepository) DeleteByCorpus(ctx context.Context, corpus string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM corpus_chunks WHERE corpus = $1", corpus); err != nil {
		return fmt.Errorf("delete corpus %s: %w", corpus, err)
	}
	return nil
}

// Search 相似度搜索，元数据过滤在取回后进行
func (r *PgVectorRepository) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
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
	fetch := limit
	if len(filter.Metadata) > 0 {
		fetch = limit * 4
	}

	op := distanceOperator(r.distType)
	args := []any{pgvector.NewVector(vector), fetch}
	where := ""
	if len(filter.Corpora) > 0 {
		where = "WHERE corpus = ANY($3)"
		args = append(args, filter.Corpora)
	}

	query := fmt.Sprintf(`
		SELECT id, corpus, source, position, content, metadata, created_at,
			(embedding %[1]s $1::vector) AS distance
		FROM corpus_chunks
		%[2]s
		ORDER BY embedding %[1]s $1::vector
		LIMIT $2`, op, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0, limit)
	for rows.Next() {
		var doc Document
		var distance float64
		if err := rows.Scan(&doc.ID, &doc.Corpus, &doc.Source, &doc.Position, &doc.Text, &doc.Metadata, &doc.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		if !matchMetadata(doc.Metadata, filter.Metadata) {
			continue
		}

		dist := float32(distance)
		if r.distType == DotProduct {
			dist = -dist
		}
		score := DistanceToScore(dist, r.distType)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{Document: doc, Score: score, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortSearchResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count 获取文档总数
func (r *PgVectorRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM corpus_chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Dimension 返回向量维数
func (r *PgVectorRepository) Dimension() int {
	return r.dimension
}

// Close 关闭连接池
func (r *PgVectorRepository) Close() error {
	r.pool.Close()
	return nil
}

var _ Repository = (*PgVectorRepository)(nil)

func init() {
	RegisterRepository("pgvector", NewPgVectorRepository)
}
