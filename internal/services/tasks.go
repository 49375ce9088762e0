package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/pkg/storage"
	"github.com/fyerfyer/pitch-analyst/pkg/taskqueue"
)

// ArtifactUploader 后台上传逐页结果和页面图片
type ArtifactUploader struct {
	store  storage.Storage
	logger *logrus.Logger
}

// NewArtifactUploader 创建上传处理器
func NewArtifactUploader(store storage.Storage, logger *logrus.Logger) *ArtifactUploader {
	if logger == nil {
		logger = logrus.New()
	}
	return &ArtifactUploader{store: store, logger: logger}
}

// Upload 原始结果写入 <app>/raw_<app>.json，图片写入 <app>/images/
// 单个文件失败不影响其它文件，结束后删除临时目录
func (u *ArtifactUploader) Upload(ctx context.Context, p taskqueue.ArtifactUploadPayload) (*taskqueue.ArtifactUploadResult, error) {
	if p.ScratchDir != "" {
		defer func() {
			if err := os.RemoveAll(p.ScratchDir); err != nil {
				u.logger.WithError(err).WithField("dir", p.ScratchDir).Warn("Failed to remove scratch directory")
			}
		}()
	}

	res := &taskqueue.ArtifactUploadResult{Keys: []string{}, Failed: []string{}}
	files := make(map[string]string, len(p.ImagePaths)+1)
	if p.RawJSONPath != "" {
		files[p.RawJSONPath] = storage.JoinKey(p.App, "raw_"+p.App+".json")
	}
	for _, img := range p.ImagePaths {
		files[img] = storage.JoinKey(p.App, "images", filepath.Base(img))
	}

	for local, key := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := u.put(ctx, local, key); err != nil {
			u.logger.WithFields(logrus.Fields{"file": local, "key": key}).WithError(err).Warn("Artifact upload failed")
			res.Failed = append(res.Failed, local)
			continue
		}
		res.Keys = append(res.Keys, key)
	}

	u.logger.WithFields(logrus.Fields{
		"app":      p.App,
		"uploaded": len(res.Keys),
		"failed":   len(res.Failed),
	}).Info("Artifacts uploaded")
	return res, nil
}

func (u *ArtifactUploader) put(ctx context.Context, local, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	contentType := "image/png"
	if filepath.Ext(local) == ".json" {
		contentType = "application/json"
	}
	_, err = u.store.Put(ctx, key, f, info.Size(), contentType)
	return err
}

// RegisterTaskHandlers 注册后台任务处理器，ingest为nil时跳过备忘录入库
func RegisterTaskHandlers(r taskqueue.Registrar, uploader *ArtifactUploader, ingest *IngestService) {
	handlers := map[taskqueue.TaskType]taskqueue.Handler{
		taskqueue.TaskArtifactUpload: taskqueue.PayloadHandler(func(ctx context.Context, _ *taskqueue.Task, p taskqueue.ArtifactUploadPayload) (interface{}, error) {
			return uploader.Upload(ctx, p)
		}),
	}
	if ingest != nil {
		handlers[taskqueue.TaskMemoIngest] = taskqueue.PayloadHandler(func(ctx context.Context, _ *taskqueue.Task, p taskqueue.MemoIngestPayload) (interface{}, error) {
			memo, err := ingest.IngestObject(ctx, p.ObjectKey, p.FileName)
			if err != nil {
				return nil, fmt.Errorf("ingest %s: %w", p.FileName, err)
			}
			return &taskqueue.MemoIngestResult{
				MemoID:  memo.ID,
				Company: memo.CompanyName,
				Sectors: memo.Sectors,
			}, nil
		})
	}
	taskqueue.Register(r, handlers)
}
