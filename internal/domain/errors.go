package domain

import "errors"

var (
	// ErrInvalidInput signals a caller mistake (empty text, non-positive k).
	// Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrModelUnavailable signals that the embedding model cannot be loaded or
	// reached. Fatal at startup, not a per-request condition.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrUpstreamTimeout signals a remote call that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals that the embedder and the index disagree on
	// vector dimension. Fatal configuration error.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrIngestRunning signals that an ingestion pass is already active.
	ErrIngestRunning = errors.New("ingestion already running")
)

// Retryable reports whether an operation that failed with err may be retried.
// Caller mistakes and fatal configuration errors are final.
func Retryable(err error) bool {
	return !errors.Is(err, ErrInvalidInput) &&
		!errors.Is(err, ErrModelUnavailable) &&
		!errors.Is(err, ErrVectorDimMismatch)
}
