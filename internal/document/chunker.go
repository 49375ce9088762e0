package document

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// timestampLayout ISO-8601，UTC并以Z结尾
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// ChunkMetadata 块元数据
type ChunkMetadata struct {
	DocID           string   `json:"doc_id"`
	SourceType      string   `json:"source_type"`
	ChunkIndex      int      `json:"chunk_index"`
	WordCount       int      `json:"word_count"`
	SectionPathFull string   `json:"section_path_full"` // 一级标题
	Tags            []string `json:"tags"`              // 子标题，去重且保持顺序
	Timestamp       string   `json:"timestamp"`
	SlideNumber     int      `json:"slide_number"` // 从1开始
}

// Chunk 入库的文本块
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkConfig 切块配置，长度单位为词
type ChunkConfig struct {
	MinChunkSize int
	MaxChunkSize int
	Overlap      int
	DocID        string
	SourceType   string
}

// DefaultChunkConfig 返回默认切块配置
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MinChunkSize: 150,
		MaxChunkSize: 400,
		Overlap:      40,
		DocID:        "buffer",
		SourceType:   "markdown",
	}
}

// AssemblerOption 切块器选项
type AssemblerOption func(*ChunkAssembler)

// WithClock 替换时间来源
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *ChunkAssembler) {
		a.now = now
	}
}

// ChunkAssembler 将逐页Markdown组装为带元数据的文本块
type ChunkAssembler struct {
	cfg ChunkConfig
	now func() time.Time
}

// NewChunkAssembler 创建切块器
// 非法的配置值回落到默认值，重叠不小于最大长度时收缩到最大长度减一
func NewChunkAssembler(cfg ChunkConfig, opts ...AssemblerOption) *ChunkAssembler {
	def := DefaultChunkConfig()
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = def.MaxChunkSize
	}
	if cfg.MinChunkSize < 0 {
		cfg.MinChunkSize = 0
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.MaxChunkSize {
		cfg.Overlap = cfg.MaxChunkSize - 1
	}
	if cfg.DocID == "" {
		cfg.DocID = def.DocID
	}
	if cfg.SourceType == "" {
		cfg.SourceType = def.SourceType
	}

	a := &ChunkAssembler{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config 返回生效的配置
func (a *ChunkAssembler) Config() ChunkConfig {
	return a.cfg
}

// ForDocument 返回使用指定文档ID的切块器，其它配置不变
func (a *ChunkAssembler) ForDocument(docID string) *ChunkAssembler {
	c := *a
	if docID != "" {
		c.cfg.DocID = docID
	}
	return &c
}

// Assemble 依次处理每页的每个段落
// 过短的段落并入同一页的上一个块，过长的段落按窗口切分并保留重叠
func (a *ChunkAssembler) Assemble(slides []string) []Chunk {
	var chunks []Chunk
	counter := 0

	for i, md := range slides {
		slide := i + 1
		for _, section := range SplitByHeadings(md) {
			content := strings.TrimSpace(section.Content)
			if content == "" {
				continue
			}
			words := strings.Fields(content)
			title, tags := sectionLabels(section.Path)

			if len(words) < a.cfg.MinChunkSize && len(chunks) > 0 && chunks[len(chunks)-1].Metadata.SlideNumber == slide {
				prev := &chunks[len(chunks)-1]
				prev.Text += "\n\n" + content
				prev.Metadata.WordCount += len(words)
				prev.Metadata.Tags = unionTags(prev.Metadata.Tags, tags)
				continue
			}

			if len(words) > a.cfg.MaxChunkSize {
				for _, window := range splitWords(words, a.cfg.MaxChunkSize, a.cfg.Overlap) {
					chunks = append(chunks, a.newChunk(counter, strings.Join(window, " "), len(window), title, tags, slide))
					counter++
				}
				continue
			}

			chunks = append(chunks, a.newChunk(counter, content, len(words), title, tags, slide))
			counter++
		}
	}
	return chunks
}

func (a *ChunkAssembler) newChunk(index int, text string, wordCount int, title string, tags []string, slide int) Chunk {
	return Chunk{
		ID:   fmt.Sprintf("chunk_%d", index),
		Text: text,
		Metadata: ChunkMetadata{
			DocID:           a.cfg.DocID,
			SourceType:      a.cfg.SourceType,
			ChunkIndex:      index,
			WordCount:       wordCount,
			SectionPathFull: title,
			Tags:            slices.Clone(tags),
			Timestamp:       a.now().UTC().Format(timestampLayout),
			SlideNumber:     slide,
		},
	}
}

// sectionLabels 一级标题作为段落名，其余层级去重后作为标签
func sectionLabels(path []string) (string, []string) {
	if len(path) == 0 {
		return "Untitled", []string{}
	}
	return path[0], unionTags(nil, path[1:])
}

// unionTags 追加未出现过的标签，保持首次出现的顺序
func unionTags(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	for _, tag := range extra {
		if !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

// splitWords 按最大词数切窗口，相邻窗口重叠 overlap 个词
func splitWords(words []string, maxWords, overlap int) [][]string {
	var windows [][]string
	start := 0
	for start < len(words) {
		end := min(start+maxWords, len(words))
		windows = append(windows, words[start:end])
		if end == len(words) {
			break
		}
		start = end - overlap
	}
	return windows
}
