package document

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// words 生成 w0 w1 ... 形式的n个词
func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func fixedClock() func() time.Time {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("IST", 19800))
	return func() time.Time { return ts }
}

func TestSplitByHeadings(t *testing.T) {
	t.Run("path follows heading levels", func(t *testing.T) {
		md := "intro text is dropped\n# Company\nabout\n## Team\nfounders\n### CEO\nbio\n## Market\nsize\n# Ask\nmoney"
		sections := SplitByHeadings(md)
		require.Len(t, sections, 5)

		assert.Equal(t, []string{"Company"}, sections[0].Path)
		assert.Equal(t, "about", sections[0].Content)
		assert.Equal(t, []string{"Company", "Team"}, sections[1].Path)
		assert.Equal(t, []string{"Company", "Team", "CEO"}, sections[2].Path)
		assert.Equal(t, []string{"Company", "Market"}, sections[3].Path)
		assert.Equal(t, []string{"Ask"}, sections[4].Path)
		assert.Equal(t, "money", sections[4].Content)
	})

	t.Run("deep heading with short path keeps path whole", func(t *testing.T) {
		sections := SplitByHeadings("### Lonely\ntext")
		require.Len(t, sections, 1)
		assert.Equal(t, []string{"Lonely"}, sections[0].Path)

		sections = SplitByHeadings("# A\n### C\nx")
		require.Len(t, sections, 2)
		assert.Equal(t, []string{"A", "C"}, sections[1].Path)
	})

	t.Run("empty sections are emitted", func(t *testing.T) {
		sections := SplitByHeadings("# Title\n\n## Body\ncontent")
		require.Len(t, sections, 2)
		assert.Empty(t, sections[0].Content)
		assert.Equal(t, "content", sections[1].Content)
	})

	t.Run("four hashes are not a heading", func(t *testing.T) {
		sections := SplitByHeadings("# Top\n#### not a heading\nbody")
		require.Len(t, sections, 1)
		assert.Equal(t, "#### not a heading\nbody", sections[0].Content)
	})

	t.Run("no headings", func(t *testing.T) {
		assert.Empty(t, SplitByHeadings("plain text only"))
	})
}

// TestSplitByHeadingsPathProperty 每个段落的路径长度不超过标题级别，且末尾是该段落的标题
func TestSplitByHeadingsPathProperty(t *testing.T) {
	md := "## B\nx\n# A\ny\n### C\nz\n## D\nw\n### E\nv\n# F\nu"
	levels := []int{2, 1, 3, 2, 3, 1}
	heads := []string{"B", "A", "C", "D", "E", "F"}

	sections := SplitByHeadings(md)
	require.Len(t, sections, len(levels))
	for i, s := range sections {
		assert.LessOrEqual(t, len(s.Path), levels[i])
		assert.Equal(t, heads[i], s.Path[len(s.Path)-1])
	}
}

func TestAssembleThreeSlides(t *testing.T) {
	slide := "# Overview\n\n## Problem\n" + words("p", 80) + "\n\n## Solution\n" + words("s", 80)
	a := NewChunkAssembler(DefaultChunkConfig(), WithClock(fixedClock()))

	chunks := a.Assemble([]string{slide, slide, slide})
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, fmt.Sprintf("chunk_%d", i), c.ID)
		assert.Equal(t, i, c.Metadata.ChunkIndex)
		assert.Equal(t, i+1, c.Metadata.SlideNumber)
		assert.Equal(t, 160, c.Metadata.WordCount)
		assert.Equal(t, "Overview", c.Metadata.SectionPathFull)
		assert.Equal(t, []string{"Problem", "Solution"}, c.Metadata.Tags)
		assert.Equal(t, "buffer", c.Metadata.DocID)
		assert.Equal(t, "markdown", c.Metadata.SourceType)
		assert.Equal(t, "2025-03-03T23:36:07.000000Z", c.Metadata.Timestamp)
		assert.Contains(t, c.Text, "\n\n")
	}
}

func TestAssembleLongSection(t *testing.T) {
	a := NewChunkAssembler(DefaultChunkConfig(), WithClock(fixedClock()))
	chunks := a.Assemble([]string{"# Deck\n" + words("w", 900)})
	require.Len(t, chunks, 3)

	bounds := [][2]int{{0, 400}, {360, 760}, {720, 900}}
	for i, c := range chunks {
		got := strings.Fields(c.Text)
		assert.Equal(t, bounds[i][1]-bounds[i][0], len(got))
		assert.Equal(t, fmt.Sprintf("w%d", bounds[i][0]), got[0])
		assert.Equal(t, fmt.Sprintf("w%d", bounds[i][1]-1), got[len(got)-1])
		assert.Equal(t, len(got), c.Metadata.WordCount)
		assert.Equal(t, []string{}, c.Metadata.Tags)
	}
}

// TestAssembleWindowCoverage 相邻窗口恰好重叠overlap个词，并覆盖全部词
func TestAssembleWindowCoverage(t *testing.T) {
	cfg := ChunkConfig{MinChunkSize: 5, MaxChunkSize: 50, Overlap: 7}
	for _, n := range []int{51, 99, 100, 143, 377} {
		windows := splitWords(strings.Fields(words("x", n)), cfg.MaxChunkSize, cfg.Overlap)
		seen := map[string]bool{}
		for i, w := range windows {
			assert.LessOrEqual(t, len(w), cfg.MaxChunkSize)
			for _, word := range w {
				seen[word] = true
			}
			if i > 0 {
				prev := windows[i-1]
				assert.Equal(t, prev[len(prev)-cfg.Overlap:], w[:cfg.Overlap])
			}
		}
		assert.Len(t, seen, n)
	}
}

func TestAssembleBoundaryEqualsMax(t *testing.T) {
	a := NewChunkAssembler(DefaultChunkConfig())
	chunks := a.Assemble([]string{"# Exact\n" + words("e", 400)})
	require.Len(t, chunks, 1)
	assert.Equal(t, 400, chunks[0].Metadata.WordCount)
}

func TestAssembleShortSlide(t *testing.T) {
	a := NewChunkAssembler(DefaultChunkConfig())

	// 上一页的块不会吸收下一页的短段落
	chunks := a.Assemble([]string{"# One\n" + words("a", 200), "# Two\n## Sub\n" + words("b", 10)})
	require.Len(t, chunks, 2)
	assert.Equal(t, 2, chunks[1].Metadata.SlideNumber)
	assert.Equal(t, 10, chunks[1].Metadata.WordCount)
	assert.Equal(t, []string{"Sub"}, chunks[1].Metadata.Tags)

	// 只有空白的段落被跳过
	chunks = a.Assemble([]string{"# Empty\n   \n\t\n"})
	assert.Empty(t, chunks)
}

func TestAssembleMergeUnionsTags(t *testing.T) {
	a := NewChunkAssembler(DefaultChunkConfig())
	md := "# Root\n## A\n" + words("a", 200) + "\n## B\n" + words("b", 5) + "\n## A\n" + words("c", 5) + "\n# Other\n" + words("d", 3)
	chunks := a.Assemble([]string{md})
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"A", "B"}, chunks[0].Metadata.Tags)
	assert.Equal(t, 213, chunks[0].Metadata.WordCount)
	assert.Equal(t, "Root", chunks[0].Metadata.SectionPathFull)
	assert.NotContains(t, chunks[0].Metadata.Tags, "Other")
}

func TestAssembleIdempotent(t *testing.T) {
	slides := []string{"# A\n" + words("x", 450), "# B\n## C\n" + words("y", 30), "no heading"}
	a := NewChunkAssembler(DefaultChunkConfig(), WithClock(fixedClock()))
	assert.Equal(t, a.Assemble(slides), a.Assemble(slides))
}

func TestNewChunkAssemblerClampsConfig(t *testing.T) {
	a := NewChunkAssembler(ChunkConfig{MaxChunkSize: 10, Overlap: 20, MinChunkSize: -1})
	cfg := a.Config()
	assert.Equal(t, 9, cfg.Overlap)
	assert.Equal(t, 0, cfg.MinChunkSize)
	assert.Equal(t, "buffer", cfg.DocID)

	chunks := a.Assemble([]string{"# T\n" + words("z", 25)})
	assert.NotEmpty(t, chunks)
}

func TestForDocument(t *testing.T) {
	base := NewChunkAssembler(DefaultChunkConfig(), WithClock(fixedClock()))
	acme := base.ForDocument("acme")

	chunks := acme.Assemble([]string{"# Team\n" + words("w", 5)})
	require.Len(t, chunks, 1)
	assert.Equal(t, "acme", chunks[0].Metadata.DocID)
	assert.Equal(t, "2025-03-03T23:36:07.000000Z", chunks[0].Metadata.Timestamp)
	assert.Equal(t, "buffer", base.Config().DocID)
	assert.Equal(t, "buffer", base.ForDocument("").Config().DocID)
}
