package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/threadmind/answerd/internal/domain"
)

func embeddingsResponse(dim int) string {
	vec := make([]float64, dim)
	for i := range vec {
		vec[i] = 0.01 * float64(i)
	}
	data, _ := json.Marshal(map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": vec},
		},
		"model": "text-embedding-3-small",
		"usage": map[string]int{"prompt_tokens": 7, "total_tokens": 7},
	})
	return string(data)
}

func newTestEmbedder(t *testing.T, dim int, handler http.HandlerFunc) *Embedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEmbedder(&Config{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "text-embedding-3-small",
		Dimensions: dim,
		Logger:     zap.NewNop(),
	})
}

func TestEmbed(t *testing.T) {
	e := newTestEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(embeddingsResponse(4)))
	})

	res, err := e.Embed(context.Background(), "how do I sort a list?")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(res.Embedding) != 4 {
		t.Errorf("embedding dim = %d, want 4", len(res.Embedding))
	}
	if res.TotalTokens != 7 || res.PromptTokens != 7 {
		t.Errorf("usage = %d/%d, want 7/7", res.PromptTokens, res.TotalTokens)
	}
}

func TestEmbedEmptyText(t *testing.T) {
	called := false
	e := newTestEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := e.Embed(context.Background(), "   \n")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if called {
		t.Error("provider must not be called for empty input")
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	e := newTestEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(embeddingsResponse(8)))
	})

	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("err = %v, want ErrVectorDimMismatch", err)
	}
}

func TestEmbedAPIError(t *testing.T) {
	e := newTestEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"model overloaded"}`))
	})

	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("err = %v, want ErrEmbeddingProviderError", err)
	}
}

func TestEmbedEmptyResponse(t *testing.T) {
	e := newTestEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"m","usage":{}}`))
	})

	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("err = %v, want ErrEmbeddingProviderError", err)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		e := newTestEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/models" {
				t.Errorf("path = %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"text-embedding-3-small","object":"model"}]}`))
		})

		if err := e.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck() = %v", err)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		e := newTestEmbedder(t, 4, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		err := e.HealthCheck(context.Background())
		if !errors.Is(err, domain.ErrModelUnavailable) {
			t.Errorf("err = %v, want ErrModelUnavailable", err)
		}
	})
}

func TestParseAPIErrorDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"quota exceeded"}`)); got != "quota exceeded" {
		t.Errorf("extractDetail = %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("extractDetail = %q, want empty", got)
	}
}
