package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyerfyer/pitch-analyst/internal/llm"
	"github.com/fyerfyer/pitch-analyst/pkg/storage"
	"github.com/fyerfyer/pitch-analyst/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// PageRenderer 页面渲染接口
type PageRenderer interface {
	Render(ctx context.Context, data []byte) ([]PageImage, error)
}

// ProcessResult 一次PDF处理的结果
type ProcessResult struct {
	App       string        `json:"app"`
	FileName  string        `json:"file_name"`
	ObjectKey string        `json:"object_key"`
	PageCount int           `json:"page_count"`
	Pages     []PageInsight `json:"pages"`
	TaskID    string        `json:"task_id,omitempty"` // 后台上传任务ID
}

// PDFProcessor 路演PDF处理器
// 保存原件，渲染页面，逐页调用多模态模型抽取，最后把原始结果和页面图片交给后台上传
type PDFProcessor struct {
	store           storage.Storage
	client          llm.Client
	retrier         llm.Retrier
	renderer        PageRenderer
	queue           taskqueue.Queue
	scratchDir      string
	uploadArtifacts bool
	logger          *logrus.Logger
}

// ProcessorOption 处理器配置选项
type ProcessorOption func(*PDFProcessor)

// WithRenderer 设置页面渲染器
func WithRenderer(r PageRenderer) ProcessorOption {
	return func(p *PDFProcessor) {
		if r != nil {
			p.renderer = r
		}
	}
}

// WithRetrier 设置模型调用重试策略
func WithRetrier(r llm.Retrier) ProcessorOption {
	return func(p *PDFProcessor) {
		p.retrier = r
	}
}

// WithTaskQueue 设置后台上传使用的任务队列，为nil时不上传
func WithTaskQueue(q taskqueue.Queue) ProcessorOption {
	return func(p *PDFProcessor) {
		p.queue = q
	}
}

// WithScratchDir 设置临时文件根目录
func WithScratchDir(dir string) ProcessorOption {
	return func(p *PDFProcessor) {
		p.scratchDir = dir
	}
}

// WithArtifactUpload 设置是否上传原始结果和页面图片
func WithArtifactUpload(enabled bool) ProcessorOption {
	return func(p *PDFProcessor) {
		p.uploadArtifacts = enabled
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ProcessorOption {
	return func(p *PDFProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPDFProcessor 创建PDF处理器
func NewPDFProcessor(store storage.Storage, client llm.Client, opts ...ProcessorOption) *PDFProcessor {
	p := &PDFProcessor{
		store:           store,
		client:          client,
		retrier:         llm.DefaultRetrier(),
		renderer:        NewRenderer(200, 4),
		uploadArtifacts: true,
		logger:          logrus.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.retrier.Logger == nil {
		p.retrier.Logger = p.logger
	}
	return p
}

// Process 处理上传的PDF
func (p *PDFProcessor) Process(ctx context.Context, fileName string, data []byte) (*ProcessResult, error) {
	if DetectContentType(fileName) != PDF {
		return nil, ErrUnsupportedType
	}
	pageCount, err := InspectPDF(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(fileName)
	app := AppName(base)
	log := p.logger.WithFields(logrus.Fields{"app": app, "pages": pageCount})

	key := storage.JoinKey(app, "pdf", base)
	if _, err := p.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store pdf: %w", err)
	}

	images, err := p.renderer.Render(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	log.WithField("rendered", len(images)).Info("PDF pages rendered")

	// 逐页顺序调用
	pages := make([]PageInsight, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.WithField("page", img.PageNumber).Debug("Extracting page")
		pages = append(pages, p.ExtractPage(ctx, app, img))
	}

	result := &ProcessResult{
		App:       app,
		FileName:  base,
		ObjectKey: key,
		PageCount: pageCount,
		Pages:     pages,
	}
	result.TaskID = p.dispatchArtifacts(ctx, result, images)
	return result, nil
}

// ExtractPage 抽取单页，调用或解析失败时只保留页码
func (p *PDFProcessor) ExtractPage(ctx context.Context, app string, img PageImage) PageInsight {
	parsed := llm.GenerateJSON[PageInsight](ctx, p.client, p.retrier, ExtractionPrompt(app),
		llm.WithGenerateImages(llm.Image{MimeType: "image/png", Data: img.PNG}),
		llm.WithGenerateJSON(),
	)
	if !parsed.OK {
		p.logger.WithFields(logrus.Fields{"app": app, "page": img.PageNumber}).Warn("Page extraction returned no structured result")
	}
	insight := parsed.Value
	insight.PageNumber = img.PageNumber
	return insight
}

// dispatchArtifacts 把结果写入临时目录并提交后台上传任务，失败只记录日志
func (p *PDFProcessor) dispatchArtifacts(ctx context.Context, res *ProcessResult, images []PageImage) string {
	if !p.uploadArtifacts || p.queue == nil {
		return ""
	}
	log := p.logger.WithField("app", res.App)

	dir, err := os.MkdirTemp(p.scratchDir, "artifacts-"+res.App+"-")
	if err != nil {
		log.WithError(err).Warn("Failed to create scratch directory")
		return ""
	}

	payload, err := writeArtifacts(dir, res, images)
	if err != nil {
		log.WithError(err).Warn("Failed to write artifacts")
		_ = os.RemoveAll(dir)
		return ""
	}

	taskID, err := p.queue.Enqueue(ctx, taskqueue.TaskArtifactUpload, res.App, payload)
	if err != nil {
		log.WithError(err).Warn("Failed to enqueue artifact upload")
		_ = os.RemoveAll(dir)
		return ""
	}
	log.WithField("task_id", taskID).Info("Artifact upload enqueued")
	return taskID
}

// writeArtifacts 写入 raw_<app>.json 和 <file>_page_<n>.png
func writeArtifacts(dir string, res *ProcessResult, images []PageImage) (*taskqueue.ArtifactUploadPayload, error) {
	raw, err := json.MarshalIndent(res.Pages, "", "  ")
	if err != nil {
		return nil, err
	}
	rawPath := filepath.Join(dir, "raw_"+res.App+".json")
	if err := os.WriteFile(rawPath, raw, 0644); err != nil {
		return nil, err
	}

	payload := &taskqueue.ArtifactUploadPayload{
		App:         res.App,
		FileName:    res.FileName,
		RawJSONPath: rawPath,
		ScratchDir:  dir,
	}
	for _, img := range images {
		path := filepath.Join(dir, fmt.Sprintf("%s_page_%d.png", res.FileName, img.PageNumber))
		if err := os.WriteFile(path, img.PNG, 0644); err != nil {
			return nil, err
		}
		payload.ImagePaths = append(payload.ImagePaths, path)
	}
	return payload, nil
}
