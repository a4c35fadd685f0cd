// Package ingestion loads files, splits them into chunks and writes the
// chunks to a vector store.
package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/secrets"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Config configures a Pipeline.
type Config struct {
	// MaxFileSize is the largest file, in bytes, that directory ingestion
	// will read. Default: 10MB.
	MaxFileSize int64 `koanf:"max_file_size"`

	// IgnoreFiles are gitignore-style files read from an ingested
	// directory root. Default: .docragignore, .gitignore.
	IgnoreFiles []string `koanf:"ignore_files"`

	// ExcludePatterns are always applied in addition to ignore files.
	ExcludePatterns []string `koanf:"exclude"`

	// KeepStale disables removal of a file's previous chunks on re-ingest.
	KeepStale bool `koanf:"keep_stale"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 10 * 1024 * 1024
	}
}

// FileResult reports the outcome of ingesting one file.
type FileResult struct {
	Path          string   `json:"path"`
	FileType      string   `json:"file_type"`
	DocumentCount int      `json:"document_count"`
	ChunkCount    int      `json:"chunk_count"`
	IDs           []string `json:"ids,omitempty"`
	Success       bool     `json:"success"`
	Error         string   `json:"error,omitempty"`
	// Redactions counts secrets replaced before chunking.
	Redactions int `json:"redactions,omitempty"`
}

// Scrubber redacts secrets from document text.
type Scrubber interface {
	Scrub(text string) secrets.Result
}

// CacheStatsSource exposes embedding cache statistics.
type CacheStatsSource interface {
	CacheStats() embeddings.CacheStats
}

// Stats summarizes the pipeline state.
type Stats struct {
	Store        vectorstore.Stats      `json:"store"`
	Cache        *embeddings.CacheStats `json:"cache,omitempty"`
	ChunkSize    int                    `json:"chunk_size"`
	ChunkOverlap int                    `json:"chunk_overlap"`
	Extensions   []string               `json:"extensions"`
}

// Pipeline ingests files into a vector store.
type Pipeline struct {
	config   Config
	chunker  *chunker.Chunker
	store    vectorstore.Store
	cache    CacheStatsSource
	scrubber Scrubber
	logger   *zap.Logger

	mu      sync.RWMutex
	parsers map[string]Parser
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCacheStats adds embedding cache statistics to Stats.
func WithCacheStats(src CacheStatsSource) Option {
	return func(p *Pipeline) { p.cache = src }
}

// WithScrubber redacts secrets from every document before it is chunked.
func WithScrubber(s Scrubber) Option {
	return func(p *Pipeline) { p.scrubber = s }
}

// WithParser registers a parser for an extension.
func WithParser(ext string, parser Parser) Option {
	return func(p *Pipeline) { p.parsers[normalizeExt(ext)] = parser }
}

// NewPipeline creates a pipeline with the text parser registered for .txt,
// .md and .markdown.
func NewPipeline(cfg Config, c *chunker.Chunker, store vectorstore.Store, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if c == nil || store == nil {
		return nil, fmt.Errorf("ingestion: chunker and store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	p := &Pipeline{
		config:  cfg,
		chunker: c,
		store:   store,
		logger:  logger,
		parsers: map[string]Parser{
			".txt":      TextParser{},
			".md":       TextParser{},
			".markdown": TextParser{},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RegisterParser adds or replaces the parser for ext.
func (p *Pipeline) RegisterParser(ext string, parser Parser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parsers[normalizeExt(ext)] = parser
}

// SupportedExtensions returns the registered extensions, sorted.
func (p *Pipeline) SupportedExtensions() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	exts := make([]string, 0, len(p.parsers))
	for ext := range p.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether path has a registered parser.
func (p *Pipeline) Supports(path string) bool {
	_, ok := p.parser(path)
	return ok
}

func (p *Pipeline) parser(path string) (Parser, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	parser, ok := p.parsers[normalizeExt(filepath.Ext(path))]
	return parser, ok
}

// IngestFile parses, chunks and stores one file. Nothing is written when
// the format is unsupported or parsing fails. The returned result is
// non-nil even when err is not.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*FileResult, error) {
	path = SourcePath(path)
	result := &FileResult{Path: path, FileType: docType(path)}

	parser, ok := p.parser(path)
	if !ok {
		return p.fail(result, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path)))
	}

	docs, err := parser.Parse(ctx, path)
	if err != nil {
		return p.fail(result, fmt.Errorf("%w: %s: %w", ErrParseFailed, path, err))
	}
	result.DocumentCount = len(docs)

	return p.ingest(ctx, result, path, docs)
}

// IngestDocuments chunks and stores documents produced outside the
// pipeline, e.g. by an external PDF or spreadsheet extractor. source is
// used for documents that carry no source of their own.
func (p *Pipeline) IngestDocuments(ctx context.Context, source string, docs []chunker.Document) (*FileResult, error) {
	result := &FileResult{Path: source, FileType: docType(source), DocumentCount: len(docs)}
	return p.ingest(ctx, result, source, docs)
}

func (p *Pipeline) ingest(ctx context.Context, result *FileResult, source string, docs []chunker.Document) (*FileResult, error) {
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		if _, ok := docs[i].Metadata[chunker.KeySource]; !ok {
			docs[i].Metadata[chunker.KeySource] = source
		}
	}

	if p.scrubber != nil {
		result.Redactions = p.scrub(source, docs)
	}

	chunks := p.chunker.SplitDocuments(docs)
	result.ChunkCount = len(chunks)

	// New chunks go in first so a failed write leaves the previous version
	// of the file searchable.
	ids, err := p.store.AddChunks(ctx, chunks)
	if err != nil {
		return p.fail(result, fmt.Errorf("storing chunks of %s: %w", source, err))
	}

	if !p.config.KeepStale {
		if _, err := p.store.DeleteStale(ctx, vectorstore.Filter{chunker.KeySource: source}, ids); err != nil {
			return p.fail(result, fmt.Errorf("removing previous chunks of %s: %w", source, err))
		}
	}

	result.IDs = ids
	result.Success = true
	p.logger.Info("ingested file",
		zap.String("path", source),
		zap.Int("documents", result.DocumentCount),
		zap.Int("chunks", result.ChunkCount),
	)
	return result, nil
}

// scrub redacts docs in place and returns the number of findings.
func (p *Pipeline) scrub(source string, docs []chunker.Document) int {
	total := 0
	var rules []string
	for i := range docs {
		res := p.scrubber.Scrub(docs[i].Text)
		if len(res.Findings) == 0 {
			continue
		}
		docs[i].Text = res.Text
		total += len(res.Findings)
		rules = append(rules, res.RuleIDs()...)
	}
	if total > 0 {
		sort.Strings(rules)
		p.logger.Warn("redacted secrets before indexing",
			zap.String("path", source),
			zap.Int("findings", total),
			zap.Strings("rules", slices.Compact(rules)),
		)
	}
	return total
}

func (p *Pipeline) fail(result *FileResult, err error) (*FileResult, error) {
	result.Success = false
	result.Error = err.Error()
	p.logger.Warn("ingestion failed", zap.String("path", result.Path), zap.Error(err))
	return result, err
}

// Stats reports store, cache and chunking state.
func (p *Pipeline) Stats(ctx context.Context) (*Stats, error) {
	storeStats, err := p.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store stats: %w", err)
	}
	stats := &Stats{
		Store:        storeStats,
		ChunkSize:    p.chunker.Size(),
		ChunkOverlap: p.chunker.Overlap(),
		Extensions:   p.SupportedExtensions(),
	}
	if p.cache != nil {
		cs := p.cache.CacheStats()
		stats.Cache = &cs
	}
	return stats, nil
}
