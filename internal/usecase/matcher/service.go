// Package matcher orchestrates findAnswer: embed the question, query the
// similarity index, and let the decision policy pick a verdict. No caching
// and no state beyond the injected collaborators.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/threadmind/answerd/internal/domain"
	"github.com/threadmind/answerd/internal/metrics"
)

// Service handles question matching against the index of answered posts.
type Service struct {
	embed        Embedder
	index        Index
	policy       Policy
	topK         int
	queryTimeout time.Duration
	logger       *zap.Logger
}

// New creates a matcher service.
func New(embed Embedder, index Index, threshold float64, topK int, logger *zap.Logger) *Service {
	if topK < 1 {
		topK = 5
	}
	return &Service{
		embed:  embed,
		index:  index,
		policy: Policy{Threshold: threshold},
		topK:   topK,
		logger: logger,
	}
}

// WithQueryTimeout bounds each index query. Zero means the caller's context
// deadline applies unchanged.
func (s *Service) WithQueryTimeout(d time.Duration) *Service {
	s.queryTimeout = d
	return s
}

// FindAnswer embeds the question, queries the top-K nearest answered posts,
// and applies the decision policy. The result is returned for both verdicts;
// deciding what to do with a no-match is the caller's business.
func (s *Service) FindAnswer(ctx context.Context, question string) (domain.MatchResult, error) {
	if strings.TrimSpace(question) == "" {
		return domain.MatchResult{}, fmt.Errorf("question is empty: %w", domain.ErrInvalidInput)
	}

	embRes, err := s.embed.Embed(ctx, question)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("embed question: %w", err)
	}

	candidates, err := s.queryWithRetry(ctx, embRes.Embedding)
	if err != nil {
		s.logger.Error("index query failed",
			zap.String("question", question),
			zap.Error(err))
		return domain.MatchResult{}, fmt.Errorf("query index: %w", err)
	}

	result := s.policy.Decide(candidates)

	metrics.MatchRequestsTotal.WithLabelValues(string(result.Verdict)).Inc()
	if len(result.Candidates) > 0 {
		metrics.MatchBestScore.Observe(result.Candidates[0].Score)
	}

	if result.Verdict == domain.VerdictAnswer {
		s.logger.Info("matched answer",
			zap.String("post_id", result.Matched.ID),
			zap.Float64("score", result.Candidates[0].Score))
	} else {
		s.logger.Info("no match", zap.String("question", question))
	}

	return result, nil
}

// queryWithRetry retries the index query exactly once on a transient failure.
// A user-facing query should not hang behind a long retry loop.
func (s *Service) queryWithRetry(ctx context.Context, vector []float32) ([]domain.Candidate, error) {
	candidates, err := s.query(ctx, vector)
	if err == nil || !domain.Retryable(err) {
		return candidates, err
	}

	s.logger.Warn("retrying index query", zap.Error(err))
	return s.query(ctx, vector)
}

func (s *Service) query(ctx context.Context, vector []float32) ([]domain.Candidate, error) {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}
	candidates, err := s.index.Query(ctx, vector, s.topK)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("index query: %w", domain.ErrUpstreamTimeout)
	}
	return candidates, err
}
