package matcher

import (
	"sort"

	"github.com/threadmind/answerd/internal/domain"
)

// Policy converts raw similarity scores into an answer/no-answer verdict.
// Pure logic, zero I/O: the threshold decides whether the best candidate is
// trusted, and exact-score ties at the top resolve to the most recently
// created post so repeated identical queries always pick the same answer.
type Policy struct {
	Threshold float64
}

// Decide orders candidates by descending score and applies the threshold.
func (p Policy) Decide(candidates []domain.Candidate) domain.MatchResult {
	if len(candidates) == 0 {
		return domain.MatchResult{Verdict: domain.VerdictNoMatch}
	}

	ordered := make([]domain.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Post.CreatedAt.After(ordered[j].Post.CreatedAt)
	})

	best := ordered[0]
	if best.Score < p.Threshold {
		return domain.MatchResult{
			Verdict:    domain.VerdictNoMatch,
			Candidates: ordered,
		}
	}

	selected := best.Post
	return domain.MatchResult{
		Verdict:    domain.VerdictAnswer,
		Answer:     selected.Answer,
		Matched:    &selected,
		Candidates: ordered,
	}
}
