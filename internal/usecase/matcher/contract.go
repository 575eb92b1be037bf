package matcher

import (
	"context"

	"github.com/threadmind/answerd/internal/domain"
)

// Index is the read side of the similarity index.
type Index interface {
	Query(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
