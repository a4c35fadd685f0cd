package embeddings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service embeds text through a Provider, caching results by content hash.
// It is safe for concurrent use.
type Service struct {
	provider Provider
	cache    Cache
	metrics  *Metrics
	logger   *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache replaces the default unbounded cache.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates an embedding service over provider.
func NewService(provider Provider, opts ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	s := &Service{provider: provider}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cache == nil {
		s.cache = NewLRUCache(0, 0)
	}
	if provider.Dimension() <= 0 {
		return nil, fmt.Errorf("%w: provider reports dimension %d", ErrInvalidConfig, provider.Dimension())
	}
	s.metrics = NewMetrics(s.logger)
	return s, nil
}

// Dimension returns the fixed length of every non-empty vector.
func (s *Service) Dimension() int { return s.provider.Dimension() }

// ModelName returns the provider's model identifier.
func (s *Service) ModelName() string { return s.provider.ModelName() }

// Embed returns the vector for text. The empty string maps to an empty
// vector without calling the provider.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embed(ctx, "embed", []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in input order. Cached texts are
// served from the cache and the rest go to the provider in a single call.
// The cache is only updated when the whole call succeeds.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return s.embed(ctx, "embed_batch", texts)
}

func (s *Service) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	pending := make(map[string][]int)
	var uncached []string
	hits, misses := 0, 0

	for i, text := range texts {
		if text == "" {
			out[i] = []float32{}
			continue
		}
		keys[i] = cacheKey(text)
		if v, ok := s.cache.Get(keys[i]); ok {
			hits++
			out[i] = clone(v)
			continue
		}
		misses++
		if _, seen := pending[keys[i]]; !seen {
			uncached = append(uncached, text)
		}
		pending[keys[i]] = append(pending[keys[i]], i)
	}

	s.metrics.RecordLookups(ctx, hits, misses)

	if len(uncached) == 0 {
		return out, nil
	}

	vectors, err := s.generate(ctx, op, uncached)
	if err != nil {
		return nil, err
	}

	for j, text := range uncached {
		key := cacheKey(text)
		s.cache.Add(key, vectors[j])
		for _, i := range pending[key] {
			out[i] = clone(vectors[j])
		}
	}
	return out, nil
}

// generate calls the provider and validates the result shape.
func (s *Service) generate(ctx context.Context, op string, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordGeneration(ctx, s.ModelName(), op, time.Since(start), len(texts), err)
		if err != nil {
			s.logger.Warn("embedding failed",
				zap.String("op", op),
				zap.String("model", s.ModelName()),
				zap.Int("texts", len(texts)),
				zap.Error(err),
			)
		}
	}()

	vectors, err = s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Op: op, Model: s.ModelName(), Err: fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)}
	}
	if len(vectors) != len(texts) {
		return nil, &EmbeddingError{Op: op, Model: s.ModelName(),
			Err: fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))}
	}
	dim := s.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &EmbeddingError{Op: op, Model: s.ModelName(),
				Err: fmt.Errorf("%w: vector %d has %d components, want %d", ErrDimensionMismatch, i, len(v), dim)}
		}
	}
	return vectors, nil
}

// CacheStats returns the cache's hit/miss counters and current size.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// ClearCache empties the cache and resets its counters.
func (s *Service) ClearCache() {
	s.cache.Purge()
}

// Close releases the provider.
func (s *Service) Close() error {
	return s.provider.Close()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
