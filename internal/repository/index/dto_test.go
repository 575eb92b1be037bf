package index

import (
	"testing"
	"time"

	"github.com/threadmind/answerd/internal/domain"
)

func TestEntryIDDeterministic(t *testing.T) {
	a := EntryID("t3_abc123")
	b := EntryID("t3_abc123")
	if a != b {
		t.Errorf("EntryID not stable: %s vs %s", a, b)
	}
	if a == EntryID("t3_other") {
		t.Error("different post IDs must map to different entry IDs")
	}
}

func TestVectorBlobRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3.0, 0}
	out := blobToVector(vectorToBlob(in))
	if len(out) != len(in) {
		t.Fatalf("got %d floats, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestBlobToVectorInvalidLength(t *testing.T) {
	if v := blobToVector("abc"); v != nil {
		t.Errorf("blobToVector(3 bytes) = %v, want nil", v)
	}
}

func TestEntryToHash(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := domain.IndexEntry{
		Post: domain.Post{
			ID:        "t3_abc",
			Title:     "a title",
			Answer:    "an answer",
			Subreddit: "learnpython",
			CreatedAt: created,
		},
		Vector: []float32{1, 2},
	}

	fields := entryToHash(e)
	if fields["id"] != "t3_abc" || fields["answer"] != "an answer" {
		t.Errorf("fields = %v", fields)
	}
	if fields["created_at"] != "1772355600" {
		t.Errorf("created_at = %q", fields["created_at"])
	}
	if len(fields["__vector"]) != 8 {
		t.Errorf("vector blob length = %d, want 8", len(fields["__vector"]))
	}

	p := hashToPost(fields)
	if !p.CreatedAt.Equal(created) {
		t.Errorf("round-trip created_at = %v, want %v", p.CreatedAt, created)
	}
}
