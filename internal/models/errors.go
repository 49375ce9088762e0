package models

import "errors"

var (
	// ErrDeckNotFound 路演记录不存在
	ErrDeckNotFound = errors.New("pitch deck not found")

	// ErrMemoNotFound 备忘录不存在
	ErrMemoNotFound = errors.New("memo not found")

	// ErrInvalidDeckStatus 无效的处理状态
	ErrInvalidDeckStatus = errors.New("invalid deck status")
)
