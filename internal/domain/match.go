package domain

// Verdict is the decision policy's outcome for a question.
type Verdict string

const (
	// VerdictAnswer means a confident match exists and Answer is populated.
	VerdictAnswer Verdict = "answer"
	// VerdictNoMatch means no indexed post scored above the threshold.
	VerdictNoMatch Verdict = "no_match"
)

// Candidate is a single similarity hit: an indexed post with its score.
type Candidate struct {
	Post  Post
	Score float64 // cosine similarity in [0,1]
}

// MatchResult is the full outcome of a findAnswer call. Candidates are ordered
// by descending similarity regardless of verdict; Answer is set only when the
// verdict is VerdictAnswer.
type MatchResult struct {
	Verdict    Verdict
	Answer     string
	Matched    *Post // the selected post, nil on no_match
	Candidates []Candidate
}
