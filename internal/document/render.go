package document

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/sourcegraph/conc/pool"
)

// PageImage 渲染后的页面图片
type PageImage struct {
	PageNumber int    // 从1开始
	PNG        []byte // PNG编码
}

// Renderer 把PDF页面渲染成PNG
type Renderer struct {
	DPI     float64
	Workers int
}

// NewRenderer 创建渲染器，非法参数使用默认值
func NewRenderer(dpi, workers int) *Renderer {
	if dpi <= 0 {
		dpi = 200
	}
	if workers <= 0 {
		workers = 4
	}
	return &Renderer{DPI: float64(dpi), Workers: workers}
}

// Render 并发渲染全部页面，结果按页码排序
// fitz文档不能跨goroutine共享，每个worker各自打开一份并负责一段连续页面
func (r *Renderer) Render(ctx context.Context, data []byte) ([]PageImage, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf for rendering: %v", err)
	}
	total := doc.NumPage()
	doc.Close()
	if total == 0 {
		return nil, ErrEmptyPDF
	}

	workers := min(r.Workers, total)
	stripe := (total + workers - 1) / workers
	images := make([]PageImage, total)

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for start := 0; start < total; start += stripe {
		end := min(start+stripe, total)
		p.Go(func(ctx context.Context) error {
			return r.renderRange(ctx, data, start, end, images)
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// renderRange 渲染 [start, end) 页，写入互不重叠的下标
func (r *Renderer) renderRange(ctx context.Context, data []byte, start, end int, out []PageImage) error {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return fmt.Errorf("failed to open pdf for rendering: %v", err)
	}
	defer doc.Close()

	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		png, err := doc.ImagePNG(i, r.DPI)
		if err != nil {
			return fmt.Errorf("failed to render page %d: %v", i+1, err)
		}
		out[i] = PageImage{PageNumber: i + 1, PNG: png}
	}
	return nil
}
