// Package retrieval selects the passages relevant to a query and renders
// them as numbered prompt context.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// ErrRetrievalFailed wraps vector store failures during retrieval.
var ErrRetrievalFailed = errors.New("retrieval failed")

// Config configures an Engine.
type Config struct {
	// TopK is used when a caller passes topK <= 0. Default: 5.
	TopK int `koanf:"top_k"`

	// MinScore drops results scoring below it. 0 keeps everything.
	MinScore float64 `koanf:"min_score"`

	// MaxContextChunks caps the number of passages in a context. 0 means
	// no cap beyond TopK.
	MaxContextChunks int `koanf:"max_context_chunks"`

	// IncludeScores appends relevance scores to formatted context headers.
	IncludeScores bool `koanf:"include_scores"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 5
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min score must be within [0, 1], got %v", c.MinScore)
	}
	if c.MaxContextChunks < 0 {
		return fmt.Errorf("max context chunks must not be negative, got %d", c.MaxContextChunks)
	}
	return nil
}

// Engine retrieves ranked passages for queries.
type Engine struct {
	store  vectorstore.Searcher
	config Config
	logger *zap.Logger
}

// NewEngine creates a retrieval engine over store.
func NewEngine(store vectorstore.Searcher, cfg Config, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("retrieval: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &Engine{store: store, config: cfg, logger: logger}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.config }

// Retrieve returns the passages most similar to query, best first. topK
// <= 0 uses the configured default. A blank query yields an empty context.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, filter vectorstore.Filter) (*Context, error) {
	if topK <= 0 {
		topK = e.config.TopK
	}
	rctx := &Context{Query: query, IncludeScores: e.config.IncludeScores}
	if strings.TrimSpace(query) == "" {
		return rctx, nil
	}

	results, err := e.store.Query(ctx, query, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}

	kept := make([]vectorstore.Result, 0, len(results))
	for _, r := range results {
		if r.Score < e.config.MinScore {
			continue
		}
		kept = append(kept, r)
		if e.config.MaxContextChunks > 0 && len(kept) == e.config.MaxContextChunks {
			break
		}
	}
	rctx.Results = kept

	e.logger.Debug("retrieved context",
		zap.Int("top_k", topK),
		zap.Int("candidates", len(results)),
		zap.Int("kept", len(kept)),
	)
	return rctx, nil
}
