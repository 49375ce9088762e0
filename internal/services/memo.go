package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/fyerfyer/pitch-analyst/internal/agent"
	"github.com/fyerfyer/pitch-analyst/internal/corpus"
	"github.com/fyerfyer/pitch-analyst/internal/models"
)

// Analyst 对公司语料做全面分析
type Analyst interface {
	AnalyzeCompany(ctx context.Context, handle corpus.Handle, company string) (*agent.Result, error)
}

// CorpusIndexer 确认语料已在向量索引中
type CorpusIndexer interface {
	EnsureIndexed(ctx context.Context, handle corpus.Handle) error
}

// MemoRenderer 投资备忘录排版
type MemoRenderer interface {
	Memo(markdown, company string) ([]byte, error)
}

// MemoOutput 一次备忘录生成的结果
type MemoOutput struct {
	PDF      []byte
	FileName string
	Company  string
	Result   *agent.Result
}

// MemoService 投资备忘录服务
type MemoService struct {
	registry *corpus.Registry
	indexer  CorpusIndexer
	analyst  Analyst
	renderer MemoRenderer
	runs     RunRecorder
	logger   *logrus.Logger
}

// NewMemoService 创建备忘录服务，runs可以为nil
func NewMemoService(registry *corpus.Registry, indexer CorpusIndexer, analyst Analyst, renderer MemoRenderer, runs RunRecorder, logger *logrus.Logger) *MemoService {
	if logger == nil {
		logger = logrus.New()
	}
	return &MemoService{
		registry: registry,
		indexer:  indexer,
		analyst:  analyst,
		renderer: renderer,
		runs:     runs,
		logger:   logger,
	}
}

// Generate 读取会话登记的公司，运行分析并生成PDF
// 会话中没有登记时返回 corpus.ErrNotRegistered
func (s *MemoService) Generate(ctx context.Context, scope *corpus.Scope) (*MemoOutput, error) {
	if scope == nil {
		scope = s.registry.Scope(corpus.DefaultSession)
	}
	company, err := scope.Get(ctx, corpus.KeyCompanyName)
	if err != nil {
		return nil, err
	}
	name, err := scope.Get(ctx, corpus.KeyCorpusName)
	if errors.Is(err, corpus.ErrNotRegistered) {
		name = company
	} else if err != nil {
		return nil, err
	}
	handle := corpus.Handle(name)
	log := s.logger.WithFields(logrus.Fields{"company": company, "corpus": name, "session": scope.Session()})

	if s.indexer != nil {
		if err := s.indexer.EnsureIndexed(ctx, handle); err != nil {
			return nil, fmt.Errorf("failed to load corpus %s: %w", name, err)
		}
	}

	result, err := s.analyst.AnalyzeCompany(ctx, handle, company)
	if err != nil {
		recordRun(ctx, s.runs, s.logger, &models.AnalysisRun{App: company, Kind: models.RunKindMemo, Error: err.Error()})
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	log.WithFields(logrus.Fields{
		"tools_used": result.ToolsUsed,
		"seconds":    result.ExecutionTime,
		"stopped":    result.Stopped,
	}).Info("Company analysis completed")

	pdf, err := s.renderer.Memo(result.ComprehensiveAnalysis, company)
	if err != nil {
		return nil, fmt.Errorf("failed to render memo: %w", err)
	}

	recordRun(ctx, s.runs, s.logger, &models.AnalysisRun{
		App:           company,
		Kind:          models.RunKindMemo,
		Query:         result.Query,
		ToolsUsed:     result.ToolsUsed,
		ExecutionTime: result.ExecutionTime,
		Stopped:       result.Stopped,
		Sections:      datatypes.JSONSlice[string](result.SectionsAnalyzed),
		ToolBreakdown: datatypes.NewJSONType(result.ToolBreakdown),
	})

	return &MemoOutput{
		PDF:      pdf,
		FileName: company + "_deal_note.pdf",
		Company:  company,
		Result:   result,
	}, nil
}
