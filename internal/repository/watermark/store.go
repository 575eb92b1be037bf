// Package watermark persists the ingestion high-water mark: the creation time
// of the newest post already processed. Losing it is harmless — the next pass
// re-fetches and the idempotent upsert absorbs duplicates — so it is a
// performance optimization, not a correctness mechanism.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/threadmind/answerd/internal/db"
	"github.com/threadmind/answerd/internal/domain"
)

// store is the consumer interface for the watermark (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store persists one watermark per index in the key-value store.
type Store struct {
	store store
	key   string
}

// New creates a watermark store scoped to the named index.
func New(s store, indexName string) *Store {
	return &Store{
		store: s,
		key:   fmt.Sprintf("%s%s:watermark", domain.KeyPrefix, indexName),
	}
}

// Load returns the persisted watermark, or the zero time when none exists yet.
func (s *Store) Load(ctx context.Context) (time.Time, error) {
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("load watermark: %w", err)
	}

	unix, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %q: %w", data, err)
	}
	return time.Unix(unix, 0).UTC(), nil
}

// Save persists the watermark as unix seconds.
func (s *Store) Save(ctx context.Context, t time.Time) error {
	val := strconv.FormatInt(t.Unix(), 10)
	if err := s.store.Set(ctx, s.key, []byte(val)); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	return nil
}
