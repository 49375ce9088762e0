package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/fyerfyer/pitch-analyst/internal/database"
	"github.com/fyerfyer/pitch-analyst/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// memoRepository 备忘录仓储实现
type memoRepository struct {
	db *gorm.DB
}

// NewMemoRepository 使用全局数据库连接创建仓储
func NewMemoRepository() MemoRepository {
	return &memoRepository{db: database.MustDB()}
}

// NewMemoRepositoryWithDB 使用指定的数据库连接创建仓储
func NewMemoRepositoryWithDB(db *gorm.DB) MemoRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &memoRepository{db: db}
}

// Upsert 按ID写入，已存在时覆盖内容并保留创建时间
func (r *memoRepository) Upsert(ctx context.Context, memo *models.SectorMemo) error {
	if memo.ID == "" {
		return errors.New("memo ID cannot be empty")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"company_name", "sectors", "data", "source_file", "object_key", "updated_at"}),
	}).Create(memo).Error
}

// GetByID 根据ID获取
func (r *memoRepository) GetByID(ctx context.Context, id string) (*models.SectorMemo, error) {
	var memo models.SectorMemo
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&memo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrMemoNotFound, id)
		}
		return nil, err
	}
	return &memo, nil
}

// List 列出全部备忘录
func (r *memoRepository) List(ctx context.Context) ([]*models.SectorMemo, error) {
	var memos []*models.SectorMemo
	err := r.db.WithContext(ctx).Order("company_name ASC, id ASC").Find(&memos).Error
	return memos, err
}

// FindBySectors 逐条比较行业层级，只要有一个完全相同的行业即视为竞品
func (r *memoRepository) FindBySectors(ctx context.Context, sectors []string) ([]*models.SectorMemo, error) {
	if len(sectors) == 0 {
		return nil, nil
	}
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*models.SectorMemo
	for _, memo := range all {
		if slices.ContainsFunc(sectors, func(s string) bool { return slices.Contains(memo.Sectors, s) }) {
			matched = append(matched, memo)
		}
	}
	return matched, nil
}

// Delete 删除备忘录
func (r *memoRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SectorMemo{}).Error
}
