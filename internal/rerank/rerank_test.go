package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/resumelab/ragsweep/internal/llm"
	"github.com/resumelab/ragsweep/pkg/models"
)

// ============================================================================
// Helpers
// ============================================================================

func candidates(texts ...string) []models.ScoredChunk {
	out := make([]models.ScoredChunk, len(texts))
	for i, text := range texts {
		out[i] = models.ScoredChunk{
			Chunk: &models.Chunk{
				ID:         models.ChunkID("doc", i),
				DocumentID: "doc",
				Index:      i,
				Text:       text,
			},
			Score:      1 - float32(i)*0.1,
			VectorRank: i,
		}
	}
	return out
}

func ids(chunks []models.ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Chunk.ID
	}
	return out
}

type scriptedLLM struct {
	reply string
}

func (s *scriptedLLM) Chat(ctx context.Context, req *llm.Request) (string, error) {
	return s.reply, nil
}
func (s *scriptedLLM) Name() string  { return "scripted" }
func (s *scriptedLLM) Model() string { return "scripted-model" }

// ============================================================================
// None
// ============================================================================

func TestNonePreservesOrderAndTruncates(t *testing.T) {
	in := candidates("a", "b", "c", "d")
	got, err := None{}.Rerank(context.Background(), "q", in, 2)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	want := []string{"doc#0", "doc#1"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
}

// ============================================================================
// LLM
// ============================================================================

func TestLLMReordersByModelRanking(t *testing.T) {
	in := candidates("python skills", "golang skills", "cooking")
	r := NewLLM(&scriptedLLM{reply: "2, 1"}, nil)

	got, err := r.Rerank(context.Background(), "which language?", in, 5)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	want := []string{"doc#1", "doc#0"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending after rerank: %f <= %f", got[0].Score, got[1].Score)
	}
	// Provenance survives: returned chunks are the originals.
	if got[0].Chunk != in[1].Chunk {
		t.Error("reranker returned a chunk it did not receive")
	}
}

func TestLLMFallsBackOnUnparseableReply(t *testing.T) {
	in := candidates("a", "b", "c")
	r := NewLLM(&scriptedLLM{reply: "I cannot rank these."}, nil)

	got, err := r.Rerank(context.Background(), "q", in, 2)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	want := []string{"doc#0", "doc#1"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Errorf("fallback ids = %v, want first-stage order %v", ids(got), want)
	}
}

func TestParseIndexList(t *testing.T) {
	tests := []struct {
		reply string
		n     int
		want  []int
	}{
		{"2, 1, 3", 3, []int{1, 0, 2}},
		{"Excerpts: 3 then 1.", 3, []int{2, 0}},
		{"2, 2, 9", 3, []int{1}},
		{"none", 3, nil},
	}
	for _, tt := range tests {
		got := parseIndexList(tt.reply, tt.n)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseIndexList(%q, %d) = %v, want %v", tt.reply, tt.n, got, tt.want)
		}
	}
}

// ============================================================================
// CrossEncoder
// ============================================================================

func TestCrossEncoderReordersByScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req crossEncoderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Score the second passage highest.
		scores := make([]float32, len(req.Passages))
		for i := range scores {
			scores[i] = 0.1
		}
		if len(scores) > 1 {
			scores[1] = 0.9
		}
		json.NewEncoder(w).Encode(crossEncoderResponse{Scores: scores})
	}))
	defer srv.Close()

	r, err := NewCrossEncoder(CrossEncoderConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewCrossEncoder: %v", err)
	}

	got, err := r.Rerank(context.Background(), "q", candidates("a", "b", "c"), 2)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(got) != 2 || got[0].Chunk.ID != "doc#1" {
		t.Errorf("ids = %v, want doc#1 first", ids(got))
	}
}

func TestCrossEncoderScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(crossEncoderResponse{Scores: []float32{0.5}})
	}))
	defer srv.Close()

	r, err := NewCrossEncoder(CrossEncoderConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewCrossEncoder: %v", err)
	}
	if _, err := r.Rerank(context.Background(), "q", candidates("a", "b"), 2); err == nil {
		t.Error("expected error for mismatched score count")
	}
}

// ============================================================================
// Cohere
// ============================================================================

func TestCohereMapsIndicesBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var resp cohereResponse
		resp.Results = []struct {
			Index          int     `json:"index"`
			RelevanceScore float32 `json:"relevance_score"`
		}{
			{Index: 2, RelevanceScore: 0.95},
			{Index: 0, RelevanceScore: 0.40},
			{Index: 7, RelevanceScore: 0.99}, // out of range, dropped
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	r, err := NewCohere(CohereConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewCohere: %v", err)
	}

	got, err := r.Rerank(context.Background(), "q", candidates("a", "b", "c"), 5)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	want := []string{"doc#2", "doc#0"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Score != 0.95 {
		t.Errorf("score = %f, want 0.95", got[0].Score)
	}
}

func TestNewCohereRequiresKey(t *testing.T) {
	if _, err := NewCohere(CohereConfig{}); err == nil {
		t.Error("expected error for missing api key")
	}
}

// ============================================================================
// Registry
// ============================================================================

func TestRegistryUnknownTag(t *testing.T) {
	r := NewRegistry()
	r.Register("none", func() (Reranker, error) { return None{}, nil })

	if _, err := r.New("bm25"); err == nil {
		t.Error("expected error for unknown reranker")
	}
	rr, err := r.New("none")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if rr.Name() != "none" {
		t.Errorf("name = %q, want none", rr.Name())
	}
}
