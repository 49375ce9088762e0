package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/fyerfyer/pitch-analyst/internal/benchmark"
	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/models"
	"github.com/fyerfyer/pitch-analyst/internal/repository"
	"github.com/fyerfyer/pitch-analyst/pkg/storage"
	"github.com/fyerfyer/pitch-analyst/pkg/taskqueue"
)

// pdfPrefix 入库备忘录PDF的存放前缀
const pdfPrefix = "pdfs"

// ErrNothingIngested 批量入库没有成功的文件
var ErrNothingIngested = errors.New("no memos were ingested")

// ProfileExtractor 从备忘录文本抽取结构化数据
type ProfileExtractor interface {
	Extract(ctx context.Context, text, filename string) (*benchmark.CompanyProfile, error)
}

// IngestSummary 批量入库结果
type IngestSummary struct {
	Stored []string          `json:"stored"`
	Failed map[string]string `json:"failed"`
}

// IngestService 行业备忘录入库服务
type IngestService struct {
	store     storage.Storage
	text      TextSource
	extractor ProfileExtractor
	memos     repository.MemoRepository
	queue     taskqueue.Queue
	logger    *logrus.Logger
}

// NewIngestService 创建入库服务，queue为nil时同步处理
func NewIngestService(store storage.Storage, text TextSource, extractor ProfileExtractor, memos repository.MemoRepository, queue taskqueue.Queue, logger *logrus.Logger) *IngestService {
	if logger == nil {
		logger = logrus.New()
	}
	return &IngestService{
		store:     store,
		text:      text,
		extractor: extractor,
		memos:     memos,
		queue:     queue,
		logger:    logger,
	}
}

// Async 是否通过任务队列处理
func (s *IngestService) Async() bool {
	return s.queue != nil
}

// Submit 保存PDF并提交入库任务，返回任务ID
func (s *IngestService) Submit(ctx context.Context, fileName string, data []byte) (string, error) {
	if s.queue == nil {
		return "", fmt.Errorf("%w: task queue", ErrServiceUnavailable)
	}
	key, err := s.put(ctx, fileName, data)
	if err != nil {
		return "", err
	}
	return s.queue.Enqueue(ctx, taskqueue.TaskMemoIngest, filepath.Base(fileName), taskqueue.MemoIngestPayload{
		ObjectKey: key,
		FileName:  filepath.Base(fileName),
	})
}

// Ingest 保存PDF、抽取并写入备忘录库
func (s *IngestService) Ingest(ctx context.Context, fileName string, data []byte) (*models.SectorMemo, error) {
	if document.DetectContentType(fileName) != document.PDF {
		return nil, document.ErrUnsupportedType
	}
	key, err := s.put(ctx, fileName, data)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, filepath.Base(fileName), key, data)
}

// IngestObject 处理已在对象存储中的PDF
func (s *IngestService) IngestObject(ctx context.Context, key, fileName string) (*models.SectorMemo, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return s.ingest(ctx, fileName, key, data)
}

// IngestDir 逐个处理目录下的PDF，单个文件失败不影响其它文件
func (s *IngestService) IngestDir(ctx context.Context, dir string) (*IngestSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	summary := &IngestSummary{Stored: []string{}, Failed: map[string]string{}}
	for _, e := range entries {
		if e.IsDir() || document.DetectContentType(e.Name()) != document.PDF {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log := s.logger.WithField("file", e.Name())

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			summary.Failed[e.Name()] = err.Error()
			log.WithError(err).Warn("Skipping unreadable file")
			continue
		}
		memo, err := s.Ingest(ctx, e.Name(), data)
		if err != nil {
			summary.Failed[e.Name()] = err.Error()
			log.WithError(err).Warn("Memo ingestion failed")
			continue
		}
		summary.Stored = append(summary.Stored, memo.ID)
	}

	if len(summary.Stored) == 0 {
		return summary, ErrNothingIngested
	}
	return summary, nil
}

// List 列出备忘录库
func (s *IngestService) List(ctx context.Context) ([]*models.SectorMemo, error) {
	return s.memos.List(ctx)
}

func (s *IngestService) put(ctx context.Context, fileName string, data []byte) (string, error) {
	key := storage.JoinKey(pdfPrefix, filepath.Base(fileName))
	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}
	return key, nil
}

func (s *IngestService) ingest(ctx context.Context, fileName, key string, data []byte) (*models.SectorMemo, error) {
	text, err := s.text.Extract(ctx, data)
	if err != nil {
		return nil, err
	}
	profile, err := s.extractor.Extract(ctx, text, fileName)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	memo := &models.SectorMemo{
		ID:          MemoID(profile.Name(), fileName),
		CompanyName: profile.Name(),
		Sectors:     datatypes.JSONSlice[string](profile.Sectors()),
		Data:        datatypes.JSON(raw),
		SourceFile:  fileName,
		ObjectKey:   key,
	}
	if err := s.memos.Upsert(ctx, memo); err != nil {
		return nil, fmt.Errorf("failed to store memo: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"memo_id": memo.ID,
		"sectors": profile.SectorPath(),
	}).Info("Memo stored")
	return memo, nil
}

// MemoID 公司名只保留字母数字、空格、连字符和下划线，空格换成下划线
// 清洗后为空时使用文件名
func MemoID(company, fileName string) string {
	var sb strings.Builder
	for _, r := range company {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	id := strings.ReplaceAll(strings.TrimSpace(sb.String()), " ", "_")
	if id == "" {
		return strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}
	return id
}
