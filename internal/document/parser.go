package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedType 不支持的文件类型
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyPDF PDF没有页面或没有可读文本
	ErrEmptyPDF = errors.New("PDF has no readable content")
)

// Parser 文档文本解析器接口
type Parser interface {
	// ParseReader 从Reader解析文档，返回文本内容
	// filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 根据文件名创建解析器，目前只接受PDF
func ParserFactory(filename string) (Parser, error) {
	switch DetectContentType(filename) {
	case PDF:
		return NewPDFParser(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// DetectContentType 根据扩展名检测内容类型
func DetectContentType(filename string) ContentType {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return PDF
	}
	return Unknown
}

// AppName 去掉扩展名的文件名，作为对象键前缀和语料名
func AppName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
