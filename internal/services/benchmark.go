package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/benchmark"
	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/models"
	"github.com/fyerfyer/pitch-analyst/pkg/storage"
)

// BenchmarkFileName 基准报告的下载文件名
const BenchmarkFileName = "benchmark_report.pdf"

// memoInputPrefix 待分析备忘录的存放前缀
const memoInputPrefix = "memo_inputs"

// TextSource 从PDF得到全文
type TextSource interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// BenchmarkService 基准分析服务
type BenchmarkService struct {
	store  storage.Storage
	text   TextSource
	flow   *benchmark.Flow
	runs   RunRecorder
	logger *logrus.Logger
}

// NewBenchmarkService 创建基准分析服务，store和runs可以为nil
func NewBenchmarkService(store storage.Storage, text TextSource, flow *benchmark.Flow, runs RunRecorder, logger *logrus.Logger) *BenchmarkService {
	if logger == nil {
		logger = logrus.New()
	}
	return &BenchmarkService{store: store, text: text, flow: flow, runs: runs, logger: logger}
}

// Run 对上传的备忘录PDF生成基准分析报告
// 非PDF返回 document.ErrUnsupportedType，没有文字返回 document.ErrEmptyPDF
func (s *BenchmarkService) Run(ctx context.Context, fileName string, data []byte) ([]byte, error) {
	if document.DetectContentType(fileName) != document.PDF {
		return nil, document.ErrUnsupportedType
	}
	if s.text == nil || s.flow == nil {
		return nil, fmt.Errorf("%w: benchmark", ErrServiceUnavailable)
	}
	base := filepath.Base(fileName)
	log := s.logger.WithField("file", base)

	if s.store != nil {
		key := storage.JoinKey(memoInputPrefix, base)
		if _, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
			log.WithError(err).Warn("Failed to store memo input")
		}
	}

	text, err := s.text.Extract(ctx, data)
	if err != nil {
		return nil, err
	}
	log.WithField("chars", len(text)).Info("Memo text extracted")

	pdf, report, err := s.flow.Run(ctx, text, base)
	if err != nil {
		recordRun(ctx, s.runs, s.logger, &models.AnalysisRun{App: document.AppName(base), Kind: models.RunKindBenchmark, Error: err.Error()})
		return nil, err
	}

	recordRun(ctx, s.runs, s.logger, &models.AnalysisRun{
		App:   report.TargetRow.CompanyName,
		Kind:  models.RunKindBenchmark,
		Query: report.Insights.CompetitivePosition,
	})
	return pdf, nil
}
