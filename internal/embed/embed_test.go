package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/resumelab/ragsweep/internal/observability"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("nomic-embed-text", func() (Provider, error) {
		return NewOllama(OllamaConfig{Model: "nomic-embed-text"})
	})

	p, err := r.Get("Nomic-Embed-Text")
	if err != nil {
		t.Fatalf("lookup should be case-insensitive: %v", err)
	}
	if p.Model() != "nomic-embed-text" {
		t.Errorf("Model() = %q", p.Model())
	}

	_, err = r.Get("text-embedding-3-small")
	if err == nil || !strings.Contains(err.Error(), "nomic-embed-text") {
		t.Errorf("error should list known models, got %v", err)
	}
}

func TestModelMismatchError(t *testing.T) {
	err := error(&ModelMismatchError{
		Namespace: "baseline_recursive_textembedding3small_none_baseline_k5",
		Model:     "text-embedding-3-large",
		Want:      1536,
		Got:       3072,
	})
	var mismatch *ModelMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatal("errors.As failed")
	}
	if !strings.Contains(err.Error(), "1536") || !strings.Contains(err.Error(), "3072") {
		t.Errorf("message should carry both dimensions: %q", err.Error())
	}
}

func TestOllamaDimensions(t *testing.T) {
	for model, want := range map[string]int{
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
	} {
		p, err := NewOllama(OllamaConfig{Model: model})
		if err != nil {
			t.Fatal(err)
		}
		if got := p.Dimension(); got != want {
			t.Errorf("Dimension(%s) = %d, want %d", model, got, want)
		}
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	p, err := NewOllama(OllamaConfig{BaseURL: srv.URL, Model: "nomic-embed-text"})
	if err != nil {
		t.Fatal(err)
	}
	vec, err := p.Embed(context.Background(), "Go, Python, Kubernetes")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len(vec) = %d", len(vec))
	}
}

func TestOllamaEmbedRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{0.5}})
	}))
	defer srv.Close()

	metrics, _ := observability.NewMetrics()
	p, err := NewOllama(OllamaConfig{BaseURL: srv.URL, Model: "nomic-embed-text", Metrics: metrics})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Embed(context.Background(), "skills"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	counter := metrics.EmbeddingRequests.WithLabelValues("nomic-embed-text", "success")
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Errorf("embedding request count = %v, want 1", got)
	}
}

func TestOllamaEmbedBatchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		// Encode the prompt length so the test can check ordering.
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer srv.Close()

	p, err := NewOllama(OllamaConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "bbb", "cc"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("len(vecs) = %d", len(vecs))
	}
	for i, wantLen := range []float32{1, 3, 2} {
		if vecs[i][0] != wantLen {
			t.Errorf("vecs[%d] = %v, want first element %v", i, vecs[i], wantLen)
		}
	}
}
