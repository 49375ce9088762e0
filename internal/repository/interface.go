package repository

import (
	"context"

	"github.com/fyerfyer/pitch-analyst/internal/models"
)

// DeckRepository 路演PDF记录仓储
type DeckRepository interface {
	// Create 创建记录
	Create(ctx context.Context, deck *models.PitchDeck) error

	// Update 保存整条记录
	Update(ctx context.Context, deck *models.PitchDeck) error

	// GetByID 根据ID获取
	GetByID(ctx context.Context, id string) (*models.PitchDeck, error)

	// GetLatestByApp 获取应用最近一次上传
	GetLatestByApp(ctx context.Context, app string) (*models.PitchDeck, error)

	// List 分页列出，支持按状态和应用名筛选
	List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.PitchDeck, int64, error)

	// UpdateStatus 更新处理状态
	UpdateStatus(ctx context.Context, id string, status models.DeckStatus, errorMsg string) error
}

// MemoRepository 投资备忘录仓储
type MemoRepository interface {
	// Upsert 按ID写入，已存在时覆盖
	Upsert(ctx context.Context, memo *models.SectorMemo) error

	// GetByID 根据ID获取
	GetByID(ctx context.Context, id string) (*models.SectorMemo, error)

	// List 列出全部备忘录
	List(ctx context.Context) ([]*models.SectorMemo, error)

	// FindBySectors 找出行业层级与给定行业有任一重合的备忘录
	FindBySectors(ctx context.Context, sectors []string) ([]*models.SectorMemo, error)

	// Delete 删除备忘录
	Delete(ctx context.Context, id string) error
}

// RunRepository 分析执行记录仓储
type RunRepository interface {
	// Create 写入一条执行记录
	Create(ctx context.Context, run *models.AnalysisRun) error

	// ListByApp 按时间倒序列出应用的执行记录
	ListByApp(ctx context.Context, app string, limit int) ([]*models.AnalysisRun, error)
}
