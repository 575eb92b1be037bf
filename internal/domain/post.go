package domain

import (
	"strings"
	"time"
)

// KeyPrefix namespaces every key this service writes to the store.
const KeyPrefix = "answerd:"

// Post is a forum question/answer unit as observed from the source.
type Post struct {
	ID        string    // source-assigned identifier
	Title     string
	Body      string
	Answer    string    // accepted answer text, empty when unanswered
	URL       string
	Subreddit string
	CreatedAt time.Time
}

// Eligible reports whether the post qualifies for indexing: only posts with a
// non-empty accepted answer are ever upserted.
func (p Post) Eligible() bool {
	return strings.TrimSpace(p.Answer) != ""
}

// EmbedText returns the text that represents this post in vector space.
// Title and body are concatenated so short titles still carry the body context.
func (p Post) EmbedText() string {
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return strings.TrimSpace(p.Title)
	}
	return strings.TrimSpace(p.Title) + "\n\n" + body
}

// IndexEntry is what the similarity index stores per post: the embedding plus
// the denormalized post fields needed to compose an answer without a second
// lookup.
type IndexEntry struct {
	Post   Post
	Vector []float32
}
