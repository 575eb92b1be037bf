// Package ingest maintains the similarity index as a near-real-time mirror of
// answered posts from the forum source. Passes are serialized; a pass is
// fail-soft per post and abortable between posts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/threadmind/answerd/internal/domain"
	"github.com/threadmind/answerd/internal/metrics"
)

// Summary reports the outcome of one ingestion pass.
type Summary struct {
	Fetched   int       `json:"fetched"`
	Indexed   int       `json:"indexed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Watermark time.Time `json:"watermark"`
}

// Service runs ingestion passes.
type Service struct {
	source    Source
	embed     Embedder
	index     Index
	watermark Watermark
	subreddit string
	interval  time.Duration
	logger    *zap.Logger

	// Serializes passes so the high-water mark stays consistent. Matcher
	// queries are unaffected; they only read.
	running sync.Mutex

	retryAttempts int
	retryBase     time.Duration
}

// New creates an ingestion service.
func New(
	source Source,
	embed Embedder,
	index Index,
	watermark Watermark,
	subreddit string,
	interval time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		source:        source,
		embed:         embed,
		index:         index,
		watermark:     watermark,
		subreddit:     subreddit,
		interval:      interval,
		logger:        logger,
		retryAttempts: 3,
		retryBase:     100 * time.Millisecond,
	}
}

// IngestOnce runs a single pass: fetch posts newer than the watermark, filter
// to those with an accepted answer, embed, upsert. One bad post never aborts
// the batch; it is logged with its identifier and counted as failed. Returns
// domain.ErrIngestRunning when a pass is already active.
func (s *Service) IngestOnce(ctx context.Context) (Summary, error) {
	if !s.running.TryLock() {
		return Summary{}, domain.ErrIngestRunning
	}
	defer s.running.Unlock()

	start := time.Now()
	summary, err := s.runPass(ctx)
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues("error").Inc()
		return summary, err
	}
	metrics.IngestRunsTotal.WithLabelValues("ok").Inc()
	return summary, nil
}

func (s *Service) runPass(ctx context.Context) (Summary, error) {
	since, err := s.watermark.Load(ctx)
	if err != nil {
		// A lost watermark only costs redundant re-embedding; upsert is
		// idempotent, so start from zero and keep going.
		s.logger.Warn("failed to load watermark, starting from zero", zap.Error(err))
		since = time.Time{}
	}

	posts, err := s.source.FetchRecentPosts(ctx, s.subreddit, since)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch recent posts r/%s: %w", s.subreddit, err)
	}

	summary := Summary{Fetched: len(posts), Watermark: since}
	newest := since

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("ingestion aborted: %w", err)
		}

		if !post.Eligible() {
			summary.Skipped++
			metrics.IngestPostsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		if err := s.indexPost(ctx, post); err != nil {
			summary.Failed++
			metrics.IngestPostsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("failed to index post",
				zap.String("post_id", post.ID),
				zap.Error(err))
			continue
		}

		summary.Indexed++
		metrics.IngestPostsTotal.WithLabelValues("indexed").Inc()
		if post.CreatedAt.After(newest) {
			newest = post.CreatedAt
		}
	}

	if newest.After(since) {
		if err := s.watermark.Save(ctx, newest); err != nil {
			s.logger.Warn("failed to save watermark", zap.Error(err))
		} else {
			summary.Watermark = newest
		}
	}

	s.logger.Info("ingestion pass complete",
		zap.Int("fetched", summary.Fetched),
		zap.Int("indexed", summary.Indexed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Time("watermark", summary.Watermark))

	return summary, nil
}

// indexPost embeds and upserts one post, retrying transient failures with
// bounded exponential backoff. Invalid input is never retried.
func (s *Service) indexPost(ctx context.Context, post domain.Post) error {
	return s.withRetry(ctx, func() error {
		embRes, err := s.embed.Embed(ctx, post.EmbedText())
		if err != nil {
			return fmt.Errorf("embed post: %w", err)
		}

		entry := domain.IndexEntry{Post: post, Vector: embRes.Embedding}
		if err := s.index.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("upsert post: %w", err)
		}
		return nil
	})
}

func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	wait := s.retryBase

	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(wait):
			}
			wait *= 2
		}

		lastErr = fn()
		if lastErr == nil || !domain.Retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// Run polls on the configured interval until ctx is cancelled. An initial
// pass runs immediately so a fresh deployment does not wait a full interval.
func (s *Service) Run(ctx context.Context) {
	if _, err := s.IngestOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("ingestion pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ingestion loop stopped")
			return
		case <-ticker.C:
			if _, err := s.IngestOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("ingestion pass failed", zap.Error(err))
			}
		}
	}
}
