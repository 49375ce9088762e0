package repository

import (
	"context"

	"github.com/fyerfyer/pitch-analyst/internal/database"
	"github.com/fyerfyer/pitch-analyst/internal/models"
	"gorm.io/gorm"
)

type runRepository struct {
	db *gorm.DB
}

// NewRunRepository 使用全局数据库连接创建仓储
func NewRunRepository() RunRepository {
	return &runRepository{db: database.MustDB()}
}

// NewRunRepositoryWithDB 使用指定的数据库连接创建仓储
func NewRunRepositoryWithDB(db *gorm.DB) RunRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *models.AnalysisRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *runRepository) ListByApp(ctx context.Context, app string, limit int) ([]*models.AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*models.AnalysisRun
	err := r.db.WithContext(ctx).
		Where("app = ?", app).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
