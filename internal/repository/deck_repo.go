package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/pitch-analyst/internal/database"
	"github.com/fyerfyer/pitch-analyst/internal/models"
	"gorm.io/gorm"
)

// deckRepository 路演记录仓储实现
type deckRepository struct {
	db *gorm.DB
}

// NewDeckRepository 使用全局数据库连接创建仓储
func NewDeckRepository() DeckRepository {
	return &deckRepository{db: database.MustDB()}
}

// NewDeckRepositoryWithDB 使用指定的数据库连接创建仓储
func NewDeckRepositoryWithDB(db *gorm.DB) DeckRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &deckRepository{db: db}
}

// Create 创建记录
func (r *deckRepository) Create(ctx context.Context, deck *models.PitchDeck) error {
	if deck.ID == "" {
		return errors.New("deck ID cannot be empty")
	}
	if deck.Status == "" {
		deck.Status = models.DeckStatusUploaded
	}
	return r.db.WithContext(ctx).Create(deck).Error
}

// Update 保存整条记录
func (r *deckRepository) Update(ctx context.Context, deck *models.PitchDeck) error {
	if deck.ID == "" {
		return errors.New("deck ID cannot be empty")
	}
	return r.db.WithContext(ctx).Save(deck).Error
}

// GetByID 根据ID获取
func (r *deckRepository) GetByID(ctx context.Context, id string) (*models.PitchDeck, error) {
	var deck models.PitchDeck
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&deck).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDeckNotFound, id)
		}
		return nil, err
	}
	return &deck, nil
}

// GetLatestByApp 获取应用最近一次上传
func (r *deckRepository) GetLatestByApp(ctx context.Context, app string) (*models.PitchDeck, error) {
	var deck models.PitchDeck
	err := r.db.WithContext(ctx).
		Where("app = ?", app).
		Order("created_at DESC").
		First(&deck).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDeckNotFound, app)
		}
		return nil, err
	}
	return &deck, nil
}

// List 分页列出
func (r *deckRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.PitchDeck, int64, error) {
	var decks []*models.PitchDeck
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PitchDeck{})
	if status, ok := filters["status"]; ok {
		if s := fmt.Sprintf("%v", status); s != "" {
			query = query.Where("status = ?", s)
		}
	}
	if app, ok := filters["app"].(string); ok && app != "" {
		query = query.Where("app LIKE ?", "%"+app+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&decks).Error
	if err != nil {
		return nil, 0, err
	}
	return decks, total, nil
}

// UpdateStatus 更新处理状态
func (r *deckRepository) UpdateStatus(ctx context.Context, id string, status models.DeckStatus, errorMsg string) error {
	switch status {
	case models.DeckStatusUploaded, models.DeckStatusExtracting, models.DeckStatusIndexed, models.DeckStatusFailed:
	default:
		return fmt.Errorf("%w: %s", models.ErrInvalidDeckStatus, status)
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	res := r.db.WithContext(ctx).Model(&models.PitchDeck{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrDeckNotFound, id)
	}
	return nil
}
