package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
)

var chromemTracer = otel.Tracer("docrag.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "data/chromadb"
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`

	// Collection is the logical collection name.
	// Default: "documents"
	Collection string `koanf:"collection"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = filepath.Join("data", "chromadb")
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store on chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	embedder   Embedder
	config     ChromemConfig
	logger     *zap.Logger
	name       string
	dimension  int
	mu         sync.RWMutex
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the persistent database at cfg.Path.
func NewChromemStore(cfg ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if embedder.Dimension() <= 0 {
		return nil, fmt.Errorf("%w: embedder reports dimension %d", ErrInvalidConfig, embedder.Dimension())
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrVectorStore, err)
	}

	s := &ChromemStore{
		db:        db,
		embedder:  embedder,
		config:    cfg,
		logger:    logger,
		name:      PhysicalCollectionName(cfg.Collection, embedder.ModelName()),
		dimension: embedder.Dimension(),
	}

	s.collection, err = s.db.GetOrCreateCollection(s.name, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("%w: opening collection %s: %v", ErrVectorStore, s.name, err)
	}
	RecordsTotal.Set(float64(s.collection.Count()))

	logger.Info("vector store initialized",
		zap.String("path", path),
		zap.String("collection", s.name),
		zap.Int("dimension", s.dimension),
		zap.Int("records", s.collection.Count()),
	)
	return s, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc is handed to chromem so it never falls back to its default
// OpenAI embedder. Records are always added with precomputed vectors.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	}
}

// AddChunks implements Store.
func (s *ChromemStore) AddChunks(ctx context.Context, chunks []chunker.Chunk) (ids []string, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddChunks")
	defer span.End()
	start := time.Now()
	defer func() { finish(span, "add", start, err) }()

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	if len(chunks) == 0 {
		return []string{}, nil
	}

	texts := make([]string, len(chunks))
	ids = make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
		ids[i] = RecordID(c.Metadata)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingFailed, len(vectors), len(chunks))
	}
	for i, v := range vectors {
		if err := s.checkDimension(v); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	// Later duplicates win, matching upsert semantics within one batch.
	docs := make([]chromem.Document, 0, len(chunks))
	position := make(map[string]int, len(chunks))
	for i, c := range chunks {
		doc := chromem.Document{
			ID:        ids[i],
			Content:   c.Content,
			Metadata:  SanitizeMetadata(c.Metadata),
			Embedding: vectors[i],
		}
		if p, ok := position[doc.ID]; ok {
			docs[p] = doc
			continue
		}
		position[doc.ID] = len(docs)
		docs = append(docs, doc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("%w: adding documents: %v", ErrVectorStore, err)
	}
	RecordsTotal.Set(float64(s.collection.Count()))

	span.SetAttributes(attribute.Int("records_written", len(docs)))
	s.logger.Debug("added chunks",
		zap.String("collection", s.name),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// Query implements Searcher. Blank text yields no results.
func (s *ChromemStore) Query(ctx context.Context, text string, topK int, filter Filter) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if strings.TrimSpace(text) == "" {
		return []Result{}, nil
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	return s.QueryByVector(ctx, vector, topK, filter)
}

// QueryByVector implements Searcher.
func (s *ChromemStore) QueryByVector(ctx context.Context, vector []float32, topK int, filter Filter) (results []Result, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.QueryByVector")
	defer span.End()
	start := time.Now()
	defer func() { finish(span, "query", start, err) }()

	span.SetAttributes(
		attribute.String("collection", s.name),
		attribute.Int("top_k", topK),
		attribute.Int("filter_keys", len(filter)),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.collection.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if topK > count {
		topK = count
	}

	matches, err := s.collection.QueryEmbedding(ctx, vector, topK, whereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", ErrVectorStore, s.name, err)
	}

	results = make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			ID:       m.ID,
			Content:  m.Content,
			Metadata: restoreMetadata(m.Metadata),
			Score:    clampScore(m.Similarity),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}

// Stats implements Store.
func (s *ChromemStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Name:       s.config.Collection,
		Collection: s.name,
		Count:      s.collection.Count(),
		Dimension:  s.dimension,
		Model:      s.embedder.ModelName(),
	}, nil
}

// ClearCollection implements Store by dropping and recreating the
// collection.
func (s *ChromemStore) ClearCollection(ctx context.Context) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.ClearCollection")
	defer span.End()
	start := time.Now()
	defer func() { finish(span, "clear", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("%w: deleting collection %s: %v", ErrVectorStore, s.name, err)
	}
	s.collection, err = s.db.GetOrCreateCollection(s.name, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("%w: recreating collection %s: %v", ErrVectorStore, s.name, err)
	}
	RecordsTotal.Set(0)

	s.logger.Info("cleared collection", zap.String("collection", s.name))
	return nil
}

// DeleteByMetadata implements Store.
func (s *ChromemStore) DeleteByMetadata(ctx context.Context, filter Filter) (deleted int, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByMetadata")
	defer span.End()
	start := time.Now()
	defer func() { finish(span, "delete", start, err) }()

	where := whereClause(filter)
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: at least one metadata constraint is required", ErrInvalidFilter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.collection.Count()
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return 0, fmt.Errorf("%w: deleting from %s: %v", ErrVectorStore, s.name, err)
	}
	after := s.collection.Count()
	RecordsTotal.Set(float64(after))

	deleted = before - after
	span.SetAttributes(attribute.Int("deleted", deleted))
	s.logger.Info("deleted records by metadata",
		zap.String("collection", s.name),
		zap.Any("filter", where),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}

// DeleteStale implements Store.
func (s *ChromemStore) DeleteStale(ctx context.Context, filter Filter, keep []string) (deleted int, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteStale")
	defer span.End()
	start := time.Now()
	defer func() { finish(span, "delete", start, err) }()

	where := whereClause(filter)
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: at least one metadata constraint is required", ErrInvalidFilter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.matchingIDs(ctx, where)
	if err != nil {
		return 0, err
	}
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	var stale []string
	for _, id := range ids {
		if _, ok := kept[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.collection.Delete(ctx, nil, nil, stale...); err != nil {
		return 0, fmt.Errorf("%w: deleting from %s: %v", ErrVectorStore, s.name, err)
	}
	RecordsTotal.Set(float64(s.collection.Count()))

	span.SetAttributes(attribute.Int("deleted", len(stale)))
	s.logger.Debug("deleted stale records",
		zap.String("collection", s.name),
		zap.Any("filter", where),
		zap.Int("deleted", len(stale)),
	)
	return len(stale), nil
}

// matchingIDs lists the ids of all records matching where. chromem has no
// listing call, so it ranks every record against a unit vector; the
// filter bounds the result set. Callers hold s.mu.
func (s *ChromemStore) matchingIDs(ctx context.Context, where map[string]string) ([]string, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	unit := make([]float32, s.dimension)
	unit[0] = 1

	matches, err := s.collection.QueryEmbedding(ctx, unit, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrVectorStore, s.name, err)
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids, nil
}

// Close implements Store. chromem-go persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Debug("vector store closed", zap.String("collection", s.name))
	return nil
}

func (s *ChromemStore) checkDimension(v []float32) error {
	if len(v) != s.dimension {
		return fmt.Errorf("%w: got %d, store expects %d", ErrDimensionMismatch, len(v), s.dimension)
	}
	return nil
}

func clampScore(similarity float32) float64 {
	switch {
	case similarity < 0:
		return 0
	case similarity > 1:
		return 1
	default:
		return float64(similarity)
	}
}

// finish records metrics for an operation and closes out its span status.
func finish(span trace.Span, operation string, start time.Time, err error) {
	observe(operation, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "success")
}

var _ Store = (*ChromemStore)(nil)
