package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeckStatus 路演PDF处理状态
type DeckStatus string

const (
	// DeckStatusUploaded 已上传，等待处理
	DeckStatusUploaded DeckStatus = "uploaded"
	// DeckStatusExtracting 逐页抽取中
	DeckStatusExtracting DeckStatus = "extracting"
	// DeckStatusIndexed 已切块并写入语料
	DeckStatusIndexed DeckStatus = "indexed"
	// DeckStatusFailed 处理失败
	DeckStatusFailed DeckStatus = "failed"
)

// PitchDeck 上传的路演PDF记录
type PitchDeck struct {
	ID         string         `gorm:"primaryKey;size:64"`      // 记录ID
	App        string         `gorm:"not null;index;size:255"` // 应用名，即不带扩展名的文件名
	FileName   string         `gorm:"not null"`                // 原始文件名
	ObjectKey  string         `gorm:"not null"`                // 对象存储中的PDF键
	PageCount  int            `gorm:"not null;default:0"`      // 页数
	ChunkCount int            `gorm:"not null;default:0"`      // 切块数量
	CorpusName string         `gorm:"size:255"`                // 关联的语料名
	Status     DeckStatus     `gorm:"not null;index;size:20"`  // 处理状态
	Error      string         `gorm:"type:text"`               // 错误信息
	TaskID     string         `gorm:"size:64;index"`           // 后台上传任务ID
	Metadata   datatypes.JSON `gorm:"type:json"`               // 附加信息
	CreatedAt  time.Time      `gorm:"not null;index"`          // 创建时间
	UpdatedAt  time.Time      `gorm:"not null"`                // 更新时间
}

// BeforeCreate 创建前补全时间
func (d *PitchDeck) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	return nil
}

// BeforeUpdate 更新前刷新更新时间
func (d *PitchDeck) BeforeUpdate(tx *gorm.DB) error {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (PitchDeck) TableName() string {
	return "pitch_decks"
}
