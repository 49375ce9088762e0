package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/models"
	"github.com/fyerfyer/pitch-analyst/internal/repository"
)

// DeckStatusManager 路演PDF状态管理器
// 负责上传、抽取、入库各阶段的状态转换
type DeckStatusManager struct {
	repo   repository.DeckRepository
	logger *logrus.Logger
	mu     sync.Mutex // 保证读取和更新之间状态不变
}

// NewDeckStatusManager 创建状态管理器
func NewDeckStatusManager(repo repository.DeckRepository, logger *logrus.Logger) *DeckStatusManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &DeckStatusManager{repo: repo, logger: logger}
}

// MarkAsUploaded 创建记录
func (m *DeckStatusManager) MarkAsUploaded(ctx context.Context, deck *models.PitchDeck) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	deck.Status = models.DeckStatusUploaded
	m.logger.WithFields(logrus.Fields{
		"deck_id": deck.ID,
		"file":    deck.FileName,
	}).Info("Marking deck as uploaded")
	return m.repo.Create(ctx, deck)
}

// MarkAsExtracting 开始逐页抽取
func (m *DeckStatusManager) MarkAsExtracting(ctx context.Context, id string) error {
	return m.transition(ctx, id, models.DeckStatusExtracting, func(*models.PitchDeck) {})
}

// MarkAsIndexed 切块写入语料后调用
func (m *DeckStatusManager) MarkAsIndexed(ctx context.Context, id string, pages, chunks int, corpusName, taskID string) error {
	return m.transition(ctx, id, models.DeckStatusIndexed, func(d *models.PitchDeck) {
		d.PageCount = pages
		d.ChunkCount = chunks
		d.CorpusName = corpusName
		d.TaskID = taskID
	})
}

// MarkAsFailed 任意阶段失败
func (m *DeckStatusManager) MarkAsFailed(ctx context.Context, id string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"deck_id": id,
		"error":   errorMsg,
	}).Error("Marking deck as failed")
	return m.repo.UpdateStatus(ctx, id, models.DeckStatusFailed, errorMsg)
}

// GetDeck 获取记录
func (m *DeckStatusManager) GetDeck(ctx context.Context, id string) (*models.PitchDeck, error) {
	return m.repo.GetByID(ctx, id)
}

func (m *DeckStatusManager) transition(ctx context.Context, id string, to models.DeckStatus, apply func(*models.PitchDeck)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	deck, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get deck: %w", err)
	}
	if err := ValidateStateTransition(deck.Status, to); err != nil {
		return fmt.Errorf("deck %s: %w", id, err)
	}

	m.logger.WithFields(logrus.Fields{
		"deck_id": id,
		"from":    deck.Status,
		"to":      to,
	}).Info("Updating deck status")

	deck.Status = to
	deck.Error = ""
	apply(deck)
	return m.repo.Update(ctx, deck)
}

// ValidateStateTransition 校验状态转换
func ValidateStateTransition(from, to models.DeckStatus) error {
	valid := map[models.DeckStatus][]models.DeckStatus{
		models.DeckStatusUploaded:   {models.DeckStatusExtracting, models.DeckStatusFailed},
		models.DeckStatusExtracting: {models.DeckStatusIndexed, models.DeckStatusFailed},
		models.DeckStatusIndexed:    {},
		models.DeckStatusFailed:     {models.DeckStatusExtracting}, // 允许重试
	}
	for _, allowed := range valid[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", models.ErrInvalidDeckStatus, from, to)
}
