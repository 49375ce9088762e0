package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/internal/models"
)

// ErrServiceUnavailable 依赖的服务未初始化
var ErrServiceUnavailable = errors.New("service unavailable")

// RunRecorder 记录分析执行
type RunRecorder interface {
	Create(ctx context.Context, run *models.AnalysisRun) error
}

// recordRun 写入执行记录，失败只记日志
func recordRun(ctx context.Context, runs RunRecorder, logger *logrus.Logger, run *models.AnalysisRun) {
	if runs == nil {
		return
	}
	if err := runs.Create(ctx, run); err != nil {
		logger.WithError(err).WithField("kind", run.Kind).Warn("Failed to record analysis run")
	}
}
