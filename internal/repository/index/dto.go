package index

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/threadmind/answerd/internal/db"
	"github.com/threadmind/answerd/internal/domain"
)

// entryFields are the denormalized hash fields returned from a KNN query.
var entryFields = []string{"id", "title", "answer", "url", "subreddit", "created_at"}

// EntryID derives a stable UUID from a source post identifier, so repeated
// ingestion of the same post always lands on the same key.
func EntryID(postID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(postID)).String()
}

func entryToHash(e domain.IndexEntry) map[string]string {
	return map[string]string{
		"id":         e.Post.ID,
		"title":      e.Post.Title,
		"answer":     e.Post.Answer,
		"url":        e.Post.URL,
		"subreddit":  e.Post.Subreddit,
		"created_at": strconv.FormatInt(e.Post.CreatedAt.Unix(), 10),
		"__vector":   vectorToBlob(e.Vector),
	}
}

func parseCandidates(sr *db.SearchResult) []domain.Candidate {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	candidates := make([]domain.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		candidates = append(candidates, domain.Candidate{
			Post:  hashToPost(entry.Fields),
			Score: entry.Score,
		})
	}
	return candidates
}

func hashToPost(fields map[string]string) domain.Post {
	p := domain.Post{
		ID:        fields["id"],
		Title:     fields["title"],
		Answer:    fields["answer"],
		URL:       fields["url"],
		Subreddit: fields["subreddit"],
	}
	if ts, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		p.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return p
}

func vectorToBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func blobToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
