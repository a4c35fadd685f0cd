package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationFailed indicates the backend could not produce a completion.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrGenerationTimeout indicates the completion did not finish before
	// the call's deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrInvalidConfig indicates invalid backend configuration.
	ErrInvalidConfig = errors.New("invalid llm config")
)

// GenerationError describes a failed completion.
type GenerationError struct {
	Provider string
	Model    string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
