package services

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/corpus"
	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/models"
	"github.com/fyerfyer/pitch-analyst/internal/refiner"
	"github.com/fyerfyer/pitch-analyst/pkg/storage"
)

// UploadMessage 上传成功后的提示
const UploadMessage = "File uploaded and processing completed"

// DeckProcessor 路演PDF逐页抽取
type DeckProcessor interface {
	Process(ctx context.Context, fileName string, data []byte) (*document.ProcessResult, error)
}

// CorpusUploader 把切块写入语料
type CorpusUploader interface {
	Upload(ctx context.Context, app string, chunks []document.Chunk) (corpus.Handle, error)
}

// UploadResult 上传接口的返回
type UploadResult struct {
	Message string `json:"message"`
	File    string `json:"file"`
	DeckID  string `json:"deck_id,omitempty"`
	App     string `json:"app,omitempty"`
	Chunks  int    `json:"chunks"`
	TaskID  string `json:"task_id,omitempty"`
}

// PitchService 路演PDF服务
// 负责上传入库和生成交易备忘
type PitchService struct {
	processor DeckProcessor
	assembler *document.ChunkAssembler
	uploader  CorpusUploader
	registry  *corpus.Registry
	status    *DeckStatusManager
	refiner   *refiner.Refiner
	renderer  DealNoteRenderer
	runs      RunRecorder
	logger    *logrus.Logger
}

// DealNoteRenderer 交易备忘排版
type DealNoteRenderer interface {
	DealNote(note *refiner.DealNote) ([]byte, error)
}

// PitchOption 服务配置选项
type PitchOption func(*PitchService)

// WithStatusManager 记录上传状态
func WithStatusManager(m *DeckStatusManager) PitchOption {
	return func(s *PitchService) {
		s.status = m
	}
}

// WithDealNotes 启用交易备忘
func WithDealNotes(rf *refiner.Refiner, renderer DealNoteRenderer) PitchOption {
	return func(s *PitchService) {
		s.refiner = rf
		s.renderer = renderer
	}
}

// WithPitchRuns 记录执行历史
func WithPitchRuns(runs RunRecorder) PitchOption {
	return func(s *PitchService) {
		s.runs = runs
	}
}

// WithPitchLogger 设置日志记录器
func WithPitchLogger(logger *logrus.Logger) PitchOption {
	return func(s *PitchService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPitchService 创建路演服务
func NewPitchService(
	processor DeckProcessor,
	assembler *document.ChunkAssembler,
	uploader CorpusUploader,
	registry *corpus.Registry,
	opts ...PitchOption,
) *PitchService {
	s := &PitchService{
		processor: processor,
		assembler: assembler,
		uploader:  uploader,
		registry:  registry,
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract 只做逐页抽取，不写入语料
func (s *PitchService) Extract(ctx context.Context, fileName string, data []byte) (*document.ProcessResult, error) {
	return s.processor.Process(ctx, fileName, data)
}

// Upload 抽取、切块、写入语料，并在会话中登记公司名和语料名
// scope为nil时登记到默认会话
func (s *PitchService) Upload(ctx context.Context, scope *corpus.Scope, fileName string, data []byte) (*UploadResult, error) {
	if document.DetectContentType(fileName) != document.PDF {
		return nil, document.ErrUnsupportedType
	}
	base := filepath.Base(fileName)
	if scope == nil {
		scope = s.registry.Scope(corpus.DefaultSession)
	}
	deckID := s.track(ctx, base)
	log := s.logger.WithFields(logrus.Fields{"file": base, "session": scope.Session(), "deck_id": deckID})

	res, err := s.processor.Process(ctx, base, data)
	if err != nil {
		s.fail(ctx, deckID, err)
		return nil, err
	}

	chunks := s.assembler.ForDocument(res.App).Assemble(document.Slides(res.Pages))
	log.WithFields(logrus.Fields{"pages": res.PageCount, "chunks": len(chunks)}).Info("Deck chunked")

	if err := scope.Set(ctx, corpus.KeyCompanyName, res.App); err != nil {
		s.fail(ctx, deckID, err)
		return nil, fmt.Errorf("failed to register company: %w", err)
	}

	handle, err := s.uploader.Upload(ctx, res.App, chunks)
	if err != nil {
		s.fail(ctx, deckID, err)
		return nil, fmt.Errorf("failed to upload corpus: %w", err)
	}
	if err := scope.Set(ctx, corpus.KeyCorpusName, handle.String()); err != nil {
		s.fail(ctx, deckID, err)
		return nil, fmt.Errorf("failed to register corpus: %w", err)
	}

	if s.status != nil && deckID != "" {
		if err := s.status.MarkAsIndexed(ctx, deckID, res.PageCount, len(chunks), handle.String(), res.TaskID); err != nil {
			log.WithError(err).Warn("Failed to update deck status")
		}
	}
	log.WithField("corpus", handle.String()).Info("Deck indexed")

	return &UploadResult{
		Message: UploadMessage,
		File:    base,
		DeckID:  deckID,
		App:     res.App,
		Chunks:  len(chunks),
		TaskID:  res.TaskID,
	}, nil
}

// DealNote 生成交易备忘PDF，返回内容和建议的文件名
func (s *PitchService) DealNote(ctx context.Context, fileName string, data []byte) ([]byte, string, error) {
	if s.refiner == nil || s.renderer == nil {
		return nil, "", fmt.Errorf("%w: deal note", ErrServiceUnavailable)
	}
	if document.DetectContentType(fileName) != document.PDF {
		return nil, "", document.ErrUnsupportedType
	}

	res, err := s.processor.Process(ctx, filepath.Base(fileName), data)
	if err != nil {
		return nil, "", err
	}
	note, err := s.refiner.Refine(ctx, map[string][]document.PageInsight{res.App: res.Pages})
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.renderer.DealNote(note)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render deal note: %w", err)
	}

	recordRun(ctx, s.runs, s.logger, &models.AnalysisRun{App: res.App, Kind: models.RunKindDealNote})
	return pdf, res.App + "_deal_note.pdf", nil
}

// track 创建上传记录，未配置状态管理器时返回空串
func (s *PitchService) track(ctx context.Context, fileName string) string {
	if s.status == nil {
		return ""
	}
	app := document.AppName(fileName)
	deck := &models.PitchDeck{
		ID:        uuid.New().String(),
		App:       app,
		FileName:  fileName,
		ObjectKey: storage.JoinKey(app, "pdf", fileName),
	}
	if err := s.status.MarkAsUploaded(ctx, deck); err != nil {
		s.logger.WithError(err).Warn("Failed to record deck upload")
		return ""
	}
	if err := s.status.MarkAsExtracting(ctx, deck.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to mark deck as extracting")
	}
	return deck.ID
}

func (s *PitchService) fail(ctx context.Context, deckID string, cause error) {
	if s.status == nil || deckID == "" {
		return
	}
	if err := s.status.MarkAsFailed(ctx, deckID, cause.Error()); err != nil {
		s.logger.WithError(err).Warn("Failed to mark deck as failed")
	}
}
