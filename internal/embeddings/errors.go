package embeddings

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the provider could not produce vectors.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrDimensionMismatch indicates a provider returned a vector of the
	// wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// EmbeddingError describes a failed Service operation.
type EmbeddingError struct {
	Op    string
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embeddings: %s with model %q: %v", e.Op, e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
