package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFileType indicates no extractor is registered for the file
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrNoContent indicates extraction produced no usable text
	ErrNoContent = errors.New("no content extracted")

	// ErrEmbeddingUnavailable indicates the inference provider could not be
	// reached for embeddings. Retryable; distinct from content errors.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationTimeout indicates the generation call exceeded its deadline
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrGenerationInterrupted indicates the generation stream ended early
	ErrGenerationInterrupted = errors.New("generation interrupted")

	// ErrVectorDimension indicates a vector did not match the index dimension
	ErrVectorDimension = errors.New("vector dimension mismatch")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
