package ingest

import (
	"context"
	"time"

	"github.com/threadmind/answerd/internal/domain"
)

// Source is the forum collaborator: one finite batch of recent posts per call.
type Source interface {
	FetchRecentPosts(ctx context.Context, subreddit string, since time.Time) ([]domain.Post, error)
}

// Index is the write side of the similarity index.
type Index interface {
	Upsert(ctx context.Context, entry domain.IndexEntry) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Watermark persists the high-water mark between passes.
type Watermark interface {
	Load(ctx context.Context) (time.Time, error)
	Save(ctx context.Context, t time.Time) error
}
