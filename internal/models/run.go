package models

import (
	"time"

	"gorm.io/datatypes"
)

// RunKind 分析类型
type RunKind string

const (
	RunKindMemo      RunKind = "memo"
	RunKindDealNote  RunKind = "deal_note"
	RunKindBenchmark RunKind = "benchmark"
)

// AnalysisRun 一次分析执行的记录
type AnalysisRun struct {
	ID            uint                               `gorm:"primaryKey;autoIncrement"`
	App           string                             `gorm:"index;size:255"`
	Kind          RunKind                            `gorm:"not null;size:20;index"`
	Query         string                             `gorm:"type:text"`
	ToolsUsed     int                                `gorm:"not null;default:0"`
	ExecutionTime float64                            `gorm:"not null;default:0"`
	Stopped       string                             `gorm:"size:32"`
	Sections      datatypes.JSONSlice[string]        `gorm:"type:json"`
	ToolBreakdown datatypes.JSONType[map[string]int] `gorm:"type:json"`
	Error         string                             `gorm:"type:text"`
	CreatedAt     time.Time                          `gorm:"index"`
}

// TableName 明确指定表名
func (AnalysisRun) TableName() string {
	return "analysis_runs"
}
