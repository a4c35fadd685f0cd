package vectorstore

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
)

// Sentinel errors for vector store operations.
var (
	// ErrVectorStore wraps failures of the underlying database.
	ErrVectorStore = errors.New("vector store operation failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// store dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidFilter indicates a missing or malformed metadata filter.
	ErrInvalidFilter = errors.New("invalid metadata filter")

	// ErrInvalidTopK indicates a non-positive result count.
	ErrInvalidTopK = errors.New("top k must be positive")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder produces the vectors stored and queried by a Store.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// Filter is a conjunction of metadata equality constraints. Values are
// compared by their string form.
type Filter map[string]any

// Searcher is the read side of a Store.
type Searcher interface {
	// Query embeds text and returns up to topK results by descending score.
	Query(ctx context.Context, text string, topK int, filter Filter) ([]Result, error)
	// QueryByVector returns up to topK results nearest to vector.
	QueryByVector(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error)
}

// Store is the interface for chunk storage and similarity search.
type Store interface {
	Searcher

	// AddChunks embeds and stores chunks, returning their record ids in
	// input order. Existing records with the same id are replaced.
	AddChunks(ctx context.Context, chunks []chunker.Chunk) ([]string, error)

	// Stats reports the size and identity of the collection.
	Stats(ctx context.Context) (Stats, error)

	// ClearCollection removes every record while keeping the collection.
	ClearCollection(ctx context.Context) error

	// DeleteByMetadata removes records matching filter and returns how many
	// were removed. An empty filter is rejected.
	DeleteByMetadata(ctx context.Context, filter Filter) (int, error)

	// DeleteStale removes records matching filter whose id is not in keep
	// and returns how many were removed. An empty filter is rejected.
	DeleteStale(ctx context.Context, filter Filter, keep []string) (int, error)

	Close() error
}
