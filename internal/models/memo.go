package models

import (
	"time"

	"gorm.io/datatypes"
)

// SectorMemo 已入库的投资备忘录
// Data 保存结构化抽取的完整JSON，Sectors 冗余一份行业层级用于匹配竞品
type SectorMemo struct {
	ID          string                      `gorm:"primaryKey;size:255"` // 由公司名清洗得到，缺失时为文件名
	CompanyName string                      `gorm:"index;size:255"`
	Sectors     datatypes.JSONSlice[string] `gorm:"type:json"`
	Data        datatypes.JSON              `gorm:"type:json;not null"`
	SourceFile  string                      `gorm:"size:255"`
	ObjectKey   string                      `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 明确指定表名
func (SectorMemo) TableName() string {
	return "sector_memos"
}
