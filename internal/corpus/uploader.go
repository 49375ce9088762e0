package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/embedding"
	"github.com/fyerfyer/pitch-analyst/internal/vectordb"
	"github.com/fyerfyer/pitch-analyst/pkg/storage"
)

// Handle 语料的不透明名称，检索时用它定位语料
type Handle string

// String 实现 fmt.Stringer
func (h Handle) String() string {
	return string(h)
}

// NewHandle 为一次上传生成语料名，同名文件的多次上传互不覆盖
func NewHandle(app string) Handle {
	return Handle(app + "-" + uuid.NewString())
}

// FileKey 语料文件在对象存储中的键
func FileKey(handle Handle) string {
	return storage.JoinKey(handle.String(), handle.String()+".jsonl")
}

// DocumentID 语料中第 position 行的文档ID
func DocumentID(handle Handle, position int) string {
	return fmt.Sprintf("%s:%d", handle, position)
}

// Uploader 把分块写成语料文件并导入向量索引
type Uploader struct {
	store    storage.Storage
	embedder *embedding.BatchProcessor
	index    vectordb.Repository
	logger   *logrus.Logger
}

// UploaderOption 上传器配置选项
type UploaderOption func(*Uploader)

// WithUploaderLogger 设置日志记录器
func WithUploaderLogger(logger *logrus.Logger) UploaderOption {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// NewUploader 创建上传器
func NewUploader(store storage.Storage, embedder *embedding.BatchProcessor, index vectordb.Repository, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		store:    store,
		embedder: embedder,
		index:    index,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload 以 <app>-<uuid> 为语料名写入 <handle>/<handle>.jsonl 并导入向量索引
func (u *Uploader) Upload(ctx context.Context, app string, chunks []document.Chunk) (Handle, error) {
	if app == "" {
		return "", errors.New("corpus name is required")
	}
	if len(chunks) == 0 {
		return "", errors.New("no chunks to upload")
	}

	data, err := EncodeJSONL(chunks)
	if err != nil {
		return "", err
	}

	handle := NewHandle(app)
	key := FileKey(handle)
	if _, err := u.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/jsonl"); err != nil {
		return "", fmt.Errorf("failed to store corpus file: %w", err)
	}

	texts := make([]string, len(chunks))
	metas := make([]map[string]interface{}, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		metas[i] = map[string]interface{}{
			"chunk_id":     c.ID,
			"slide_number": c.Metadata.SlideNumber,
			"section":      c.Metadata.SectionPathFull,
			"tags":         c.Metadata.Tags,
			"word_count":   c.Metadata.WordCount,
		}
	}

	if err := u.importLines(ctx, handle, key, texts, metas); err != nil {
		return "", err
	}

	u.logger.WithFields(logrus.Fields{
		"app":    app,
		"corpus": handle.String(),
		"key":    key,
		"chunks": len(chunks),
	}).Info("Corpus uploaded")
	return handle, nil
}

// Import 从对象存储重新导入已有的语料文件
func (u *Uploader) Import(ctx context.Context, handle Handle) error {
	key := FileKey(handle)
	rc, err := u.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to open corpus file %s: %w", key, err)
	}
	defer rc.Close()

	texts, err := DecodeJSONL(rc)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("corpus file %s is empty", key)
	}
	return u.importLines(ctx, handle, key, texts, nil)
}

// EnsureIndexed 向量索引里没有该语料时从语料文件恢复
// 内存索引在重启后为空，语料文件仍在对象存储中
func (u *Uploader) EnsureIndexed(ctx context.Context, handle Handle) error {
	_, err := u.index.Get(ctx, DocumentID(handle, 0))
	if err == nil {
		return nil
	}
	if !errors.Is(err, vectordb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to look up corpus %s: %w", handle, err)
	}

	u.logger.WithField("corpus", handle.String()).Info("Corpus missing from vector index, re-importing")
	return u.Import(ctx, handle)
}

func (u *Uploader) importLines(ctx context.Context, handle Handle, source string, texts []string, metas []map[string]interface{}) error {
	vectors, err := u.embedder.Process(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed corpus %s: %w", handle, err)
	}

	docs := make([]vectordb.Document, 0, len(texts))
	for i, text := range texts {
		// 空白行没有向量
		if vectors[i] == nil {
			continue
		}
		doc := vectordb.Document{
			ID:       DocumentID(handle, i),
			Corpus:   handle.String(),
			Source:   source,
			Position: i,
			Text:     text,
			Vector:   vectors[i],
		}
		if metas != nil {
			doc.Metadata = metas[i]
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return fmt.Errorf("corpus %s has no indexable lines", handle)
	}

	if err := u.index.DeleteByCorpus(ctx, handle.String()); err != nil {
		return fmt.Errorf("failed to clear corpus %s: %w", handle, err)
	}
	if err := u.index.AddBatch(ctx, docs); err != nil {
		return fmt.Errorf("failed to index corpus %s: %w", handle, err)
	}
	return nil
}
