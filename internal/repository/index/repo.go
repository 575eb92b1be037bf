// Package index implements the similarity index over the FT.SEARCH store:
// one hash per answered post, a vector blob alongside denormalized post
// fields, and an HNSW cosine index fixed at creation time.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/threadmind/answerd/internal/db"
	"github.com/threadmind/answerd/internal/domain"
)

// store is the consumer interface for the similarity index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}

// HNSWConfig holds HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the similarity index contracts of the matcher and the
// ingestion pipeline.
type Repo struct {
	store     store
	name      string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a similarity index repository for the named index.
func New(s store, name string, vectorDim int) *Repo {
	return &Repo{
		store:     s,
		name:      name,
		vectorDim: vectorDim,
		hnsw:      HNSWConfig{M: 16, EFConstruct: 100},
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureIndex creates the FT index if absent and verifies that an existing
// index was created with the configured vector dimension. The dimension is
// recorded in a meta hash at creation time; a mismatch later means the
// embedding model changed underneath the index, which is a fatal
// configuration error, not something to paper over at query time.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.name, err)
	}

	if exists {
		return r.verifyDimension(ctx)
	}

	def := r.buildIndex()
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.name, err)
	}

	meta := map[string]string{"vector_dim": strconv.Itoa(r.vectorDim)}
	if err := r.store.HSet(ctx, r.metaKey(), meta); err != nil {
		return fmt.Errorf("write index meta %s: %w", r.name, err)
	}
	return nil
}

func (r *Repo) verifyDimension(ctx context.Context) error {
	meta, err := r.store.HGetAll(ctx, r.metaKey())
	if err != nil {
		return fmt.Errorf("read index meta %s: %w", r.name, err)
	}
	dimStr, ok := meta["vector_dim"]
	if !ok {
		// Pre-existing index without meta: record the current dimension.
		m := map[string]string{"vector_dim": strconv.Itoa(r.vectorDim)}
		if err := r.store.HSet(ctx, r.metaKey(), m); err != nil {
			return fmt.Errorf("write index meta %s: %w", r.name, err)
		}
		return nil
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return fmt.Errorf("parse index meta dim %q: %w", dimStr, err)
	}
	if dim != r.vectorDim {
		return fmt.Errorf(
			"index %s was created with dim %d, embedder produces %d: %w",
			r.name, dim, r.vectorDim, domain.ErrVectorDimMismatch,
		)
	}
	return nil
}

// Upsert stores an index entry. Idempotent: the key derives deterministically
// from the post identifier, so re-ingesting a post overwrites the prior vector
// and fields instead of duplicating.
func (r *Repo) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	if entry.Post.ID == "" {
		return fmt.Errorf("post id is required: %w", domain.ErrInvalidInput)
	}
	if len(entry.Vector) != r.vectorDim {
		return fmt.Errorf(
			"vector has dim %d, index expects %d: %w",
			len(entry.Vector), r.vectorDim, domain.ErrVectorDimMismatch,
		)
	}

	key := r.entryKey(entry.Post.ID)
	if err := r.store.HSet(ctx, key, entryToHash(entry)); err != nil {
		return fmt.Errorf("upsert %s: %w", entry.Post.ID, err)
	}
	return nil
}

// Query returns up to k nearest entries ordered by descending similarity.
func (r *Repo) Query(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d: %w", k, domain.ErrInvalidInput)
	}
	if len(vector) != r.vectorDim {
		return nil, fmt.Errorf(
			"query vector has dim %d, index expects %d: %w",
			len(vector), r.vectorDim, domain.ErrVectorDimMismatch,
		)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       vector,
		K:            k,
		ReturnFields: entryFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.name, err)
	}

	return parseCandidates(sr), nil
}

// Delete removes a post from the index. No-op when absent.
func (r *Repo) Delete(ctx context.Context, postID string) error {
	if postID == "" {
		return fmt.Errorf("post id is required: %w", domain.ErrInvalidInput)
	}
	if err := r.store.Del(ctx, r.entryKey(postID)); err != nil {
		return fmt.Errorf("delete %s: %w", postID, err)
	}
	return nil
}

// Count returns the number of indexed entries.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName())
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.name, err)
	}
	return n, nil
}

func (r *Repo) buildIndex() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:        r.indexName(),
		StorageType: db.StorageHash,
		Prefixes:    []string{r.entryPrefix()},
		Fields: []db.IndexField{
			{Name: "subreddit", Type: db.IndexFieldTag},
			{Name: "created_at", Type: db.IndexFieldNumeric},
			{
				Name:              "__vector",
				Alias:             "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.vectorDim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, r.name)
}

// entryPrefix scopes the FT index to entry hashes only. The meta hash lives
// outside this prefix so RediSearch never indexes it as a document.
func (r *Repo) entryPrefix() string {
	return fmt.Sprintf("%s%s:doc:", domain.KeyPrefix, r.name)
}

func (r *Repo) metaKey() string {
	return fmt.Sprintf("%s%s:meta", domain.KeyPrefix, r.name)
}

func (r *Repo) entryKey(postID string) string {
	return r.entryPrefix() + EntryID(postID)
}
