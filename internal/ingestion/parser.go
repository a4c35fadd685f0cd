package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
)

var (
	// ErrUnsupportedFormat is returned for files without a registered parser.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrParseFailed is returned when a parser cannot read a file.
	ErrParseFailed = errors.New("document parsing failed")
)

// Parser turns a file into one or more documents (pages, sheets, rows).
// Every returned document must carry a "source" metadata entry; the
// pipeline fills it in with the file path when a parser leaves it out.
type Parser interface {
	Parse(ctx context.Context, path string) ([]chunker.Document, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, path string) ([]chunker.Document, error)

// Parse implements Parser.
func (f ParserFunc) Parse(ctx context.Context, path string) ([]chunker.Document, error) {
	return f(ctx, path)
}

// TextParser reads UTF-8 plain text and markdown files as a single document.
type TextParser struct{}

// Parse implements Parser.
func (TextParser) Parse(_ context.Context, path string) ([]chunker.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s is not valid UTF-8", path)
	}
	return []chunker.Document{{
		Text: string(content),
		Metadata: map[string]any{
			chunker.KeySource: path,
			"doc_type":        docType(path),
			"file_name":       filepath.Base(path),
		},
	}}, nil
}

// SourcePath returns the absolute, cleaned form of path under which a file
// is recorded as a source. The same file reached by a relative and an
// absolute path maps to one source.
func SourcePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// docType returns the lowercase extension without its dot.
func docType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// normalizeExt lowercases an extension and ensures a leading dot.
func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
