package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/resumelab/ragsweep/internal/generate"
	"github.com/resumelab/ragsweep/internal/llm"
	"github.com/resumelab/ragsweep/pkg/models"
)

// ============================================================================
// Fakes
// ============================================================================

// scriptedAnswerer answers from a map and fails for anything else.
type scriptedAnswerer struct {
	answers map[string]string
}

func (s *scriptedAnswerer) Generate(ctx context.Context, ns, query string, v models.Variant) (*generate.Answer, error) {
	text, ok := s.answers[query]
	if !ok {
		return nil, errors.New("embedding service timeout")
	}
	return &generate.Answer{
		Query:     query,
		Namespace: ns,
		Text:      text,
		Context:   []models.ScoredChunk{{Chunk: &models.Chunk{ID: "d#0", Text: "ctx"}}},
	}, nil
}

// constScoreClient is a judge LLM that always replies with one score.
type constScoreClient struct {
	reply string
	calls int
}

func (c *constScoreClient) Chat(ctx context.Context, req *llm.Request) (string, error) {
	c.calls++
	return c.reply, nil
}
func (c *constScoreClient) Name() string  { return "const" }
func (c *constScoreClient) Model() string { return "const-model" }

// recordingTracker captures run registration and score upload.
type recordingTracker struct {
	runName string
	scores  map[string]float64
}

func (t *recordingTracker) StartRun(ctx context.Context, name string, metadata map[string]string) (string, error) {
	t.runName = name
	return "run-123", nil
}

func (t *recordingTracker) LogScores(ctx context.Context, runID string, scores map[string]float64) error {
	t.scores = scores
	return nil
}

func (t *recordingTracker) Link(runID string) string { return "https://track.example/" + runID }

func testVariant() models.Variant {
	return models.Variant{
		Parser: "baseline", Chunking: "recursive", EmbeddingModel: "text-embedding-3-small",
		Reranker: "none", Prompt: "baseline", K: 5,
	}
}

// ============================================================================
// Gold loading
// ============================================================================

func TestLoadGoldSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jane_gold.yaml")
	content := `qa:
  - question: "What skills are listed?"
    answer: "Python, Go, SQL"
  - question: "What is the degree?"
    answer: "BSc Computer Science"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	gold, err := LoadGoldSet(path)
	if err != nil {
		t.Fatalf("LoadGoldSet: %v", err)
	}
	if gold.ID != "jane_gold" {
		t.Errorf("id = %q, want jane_gold", gold.ID)
	}
	if len(gold.Items) != 2 || gold.Items[0].Question != "What skills are listed?" {
		t.Errorf("items = %+v", gold.Items)
	}
}

func TestLoadGoldSetCarriesFacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts_gold.yaml")
	content := `qa:
  - question: "What skills are listed?"
    answer: "Python, Go, SQL"
    facts:
      - "Skills section lists Python, Go and SQL"
      - "No other languages appear"
  - question: "What is the degree?"
    answer: "BSc Computer Science"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	gold, err := LoadGoldSet(path)
	if err != nil {
		t.Fatalf("LoadGoldSet: %v", err)
	}
	if len(gold.Items[0].Facts) != 2 {
		t.Errorf("facts = %v", gold.Items[0].Facts)
	}
	if gold.Items[1].Facts != nil {
		t.Errorf("facts should be optional, got %v", gold.Items[1].Facts)
	}
}

func TestLoadGoldSetEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("qa: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGoldSet(path); err == nil {
		t.Error("expected error for empty gold set")
	}
}

// ============================================================================
// Judge score parsing
// ============================================================================

func TestParseScore(t *testing.T) {
	tests := []struct {
		reply   string
		want    float64
		wantErr bool
	}{
		{"0.8", 0.8, false},
		{"Score: 0.75", 0.75, false},
		{"1", 1, false},
		{"3.5", 1, false}, // clamped
		{"no number here", 0, true},
	}
	for _, tt := range tests {
		got, err := parseScore(tt.reply)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseScore(%q) err = %v, wantErr %v", tt.reply, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseScore(%q) = %f, want %f", tt.reply, got, tt.want)
		}
	}
}

// ============================================================================
// Evaluate
// ============================================================================

func TestEvaluateScoresAllItems(t *testing.T) {
	answerer := &scriptedAnswerer{answers: map[string]string{
		"q1": "a1",
		"q2": "a2",
	}}
	tracker := &recordingTracker{}
	e := New(answerer, NewJudge(&constScoreClient{reply: "0.8"}), tracker, nil)

	gold := &GoldSet{ID: "g", Items: []GoldItem{
		{Question: "q1", Answer: "ref1", Facts: []string{"fact-1"}},
		{Question: "q2", Answer: "ref2"},
	}}

	run, err := e.Evaluate(context.Background(), "ns", testVariant(), gold, "exp-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if len(run.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(run.Items))
	}
	if len(run.Items[0].Facts) != 1 || run.Items[0].Facts[0] != "fact-1" {
		t.Errorf("gold facts not carried into the item result: %v", run.Items[0].Facts)
	}
	for _, item := range run.Items {
		if item.Unscored {
			t.Errorf("item %q unexpectedly unscored: %s", item.Question, item.Error)
		}
		if len(item.Scores) != len(Metrics) {
			t.Errorf("item %q has %d scores, want %d", item.Question, len(item.Scores), len(Metrics))
		}
	}
	if run.Aggregate[MetricFaithfulness] != 0.8 {
		t.Errorf("aggregate faithfulness = %f, want 0.8", run.Aggregate[MetricFaithfulness])
	}
	if run.TraceID != "run-123" {
		t.Errorf("trace id = %q", run.TraceID)
	}
	if tracker.runName != "exp-1" {
		t.Errorf("tracker run name = %q", tracker.runName)
	}
	if tracker.scores == nil {
		t.Error("scores never uploaded to tracker")
	}
	if !strings.Contains(run.TraceLink, "run-123") {
		t.Errorf("trace link = %q", run.TraceLink)
	}
}

func TestEvaluateDegradesFailedItemToUnscored(t *testing.T) {
	answerer := &scriptedAnswerer{answers: map[string]string{"q1": "a1"}}
	e := New(answerer, NewJudge(&constScoreClient{reply: "0.5"}), nil, nil)

	gold := &GoldSet{ID: "g", Items: []GoldItem{
		{Question: "q1", Answer: "ref1"},
		{Question: "q-fails", Answer: "ref2"},
	}}

	run, err := e.Evaluate(context.Background(), "ns", testVariant(), gold, "exp")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if run.Items[0].Unscored {
		t.Error("healthy item marked unscored")
	}
	if !run.Items[1].Unscored {
		t.Error("failed item not marked unscored")
	}
	if run.Items[1].Error == "" {
		t.Error("unscored item missing error detail")
	}
	// Aggregate excludes the unscored item: mean over one item.
	if run.NoData || run.Aggregate[MetricRelevancy] != 0.5 {
		t.Errorf("aggregate = %+v, noData = %v", run.Aggregate, run.NoData)
	}
}

func TestEvaluateAllUnscoredReportsNoData(t *testing.T) {
	answerer := &scriptedAnswerer{answers: map[string]string{}}
	e := New(answerer, NewJudge(&constScoreClient{reply: "0.5"}), nil, nil)

	gold := &GoldSet{ID: "g", Items: []GoldItem{{Question: "q", Answer: "r"}}}
	run, err := e.Evaluate(context.Background(), "ns", testVariant(), gold, "exp")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !run.NoData {
		t.Error("expected NoData for all-unscored run")
	}
	if run.Aggregate != nil {
		t.Errorf("aggregate = %+v, want nil", run.Aggregate)
	}
}

func TestEvaluateJudgeGarbageMarksUnscored(t *testing.T) {
	answerer := &scriptedAnswerer{answers: map[string]string{"q": "a"}}
	e := New(answerer, NewJudge(&constScoreClient{reply: "I refuse to grade."}), nil, nil)

	gold := &GoldSet{ID: "g", Items: []GoldItem{{Question: "q", Answer: "r"}}}
	run, err := e.Evaluate(context.Background(), "ns", testVariant(), gold, "exp")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !run.Items[0].Unscored {
		t.Error("item with no parseable scores should be unscored")
	}
}

// ============================================================================
// Scorecard
// ============================================================================

func TestScorecardSortBy(t *testing.T) {
	card := &Scorecard{Rows: []ScorecardRow{
		{Label: "c", Aggregate: map[string]float64{MetricFaithfulness: 0.4}},
		{Label: "b", Error: "cell failed"},
		{Label: "a", Aggregate: map[string]float64{MetricFaithfulness: 0.9}},
	}}
	card.SortBy(MetricFaithfulness)

	got := []string{card.Rows[0].Label, card.Rows[1].Label, card.Rows[2].Label}
	want := []string{"a", "c", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
