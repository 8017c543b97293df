package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/resumelab/ragsweep/pkg/models"
)

func doc(content string) *models.Document {
	return &models.Document{
		ID:            "doc-1",
		Name:          "resume.txt",
		ParserBackend: "baseline",
		Content:       content,
	}
}

// reconstruct rebuilds the original text from chunks by dropping each
// chunk's overlap prefix.
func reconstruct(t *testing.T, original string, chunks []models.Chunk) string {
	t.Helper()
	var sb strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		if c.Text != original[c.StartOffset:c.EndOffset] {
			t.Fatalf("chunk %d text does not match its offsets", c.Index)
		}
		if c.StartOffset > prevEnd {
			t.Fatalf("gap before chunk %d: prev end %d, start %d", c.Index, prevEnd, c.StartOffset)
		}
		sb.WriteString(c.Text[prevEnd-c.StartOffset:])
		prevEnd = c.EndOffset
	}
	return sb.String()
}

// ============================================================================
// Recursive splitter
// ============================================================================

func TestRecursiveShortDocumentSingleChunk(t *testing.T) {
	s := NewRecursiveSplitter(Config{Size: 1000, Overlap: 200})
	chunks, err := s.Chunk(doc("a short resume"))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Text != "a short resume" {
		t.Errorf("text = %q", chunks[0].Text)
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != len("a short resume") {
		t.Errorf("offsets = [%d,%d)", chunks[0].StartOffset, chunks[0].EndOffset)
	}
}

func TestRecursiveTwoParagraphs(t *testing.T) {
	content := "Intro text.\n\nSkills: Python, Go."
	s := NewRecursiveSplitter(Config{Size: 20, Overlap: 0})
	chunks, err := s.Chunk(doc(content))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Intro text.") {
		t.Errorf("chunk 0 = %q", chunks[0].Text)
	}
	if !strings.Contains(chunks[1].Text, "Skills: Python, Go.") {
		t.Errorf("chunk 1 = %q", chunks[1].Text)
	}
	if chunks[0].EndOffset != chunks[1].StartOffset {
		t.Errorf("chunks not contiguous: %d vs %d", chunks[0].EndOffset, chunks[1].StartOffset)
	}
	if chunks[1].EndOffset != len(content) {
		t.Errorf("last chunk ends at %d, want %d", chunks[1].EndOffset, len(content))
	}
}

func TestRecursiveReconstruction(t *testing.T) {
	texts := []string{
		"one paragraph only",
		strings.Repeat("Sentence one. Sentence two. Sentence three. ", 40),
		strings.Repeat("para\n\n", 30) + "tail",
		strings.Repeat("x", 2500), // no separators at all
		"héllo wörld " + strings.Repeat("résumé ", 200),
	}
	configs := []Config{
		{Size: 100, Overlap: 0},
		{Size: 100, Overlap: 20},
		{Size: 333, Overlap: 50},
	}
	for _, text := range texts {
		for _, cfg := range configs {
			s := NewRecursiveSplitter(cfg)
			chunks, err := s.Chunk(doc(text))
			if err != nil {
				t.Fatalf("Chunk(size=%d): %v", cfg.Size, err)
			}
			if got := reconstruct(t, text, chunks); got != text {
				t.Errorf("size=%d overlap=%d: reconstruction mismatch (len %d vs %d)",
					cfg.Size, cfg.Overlap, len(got), len(text))
			}
		}
	}
}

func TestRecursiveOverlapPrefix(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 20)
	s := NewRecursiveSplitter(Config{Size: 100, Overlap: 30})
	chunks, err := s.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		cur := chunks[i]
		if cur.StartOffset >= prev.EndOffset {
			t.Errorf("chunk %d has no overlap with chunk %d", i, i-1)
		}
		overlap := prev.EndOffset - cur.StartOffset
		if overlap > 30 {
			t.Errorf("chunk %d overlap = %d, want <= 30", i, overlap)
		}
	}
}

func TestRecursiveHardCutPreservesRunes(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 100)
	s := NewRecursiveSplitter(Config{Size: 50, Overlap: 0})
	chunks, err := s.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	for _, c := range chunks {
		if !strings.HasPrefix(text[c.StartOffset:], c.Text) {
			t.Fatalf("chunk %d is not a substring at its offset", c.Index)
		}
	}
	if got := reconstruct(t, text, chunks); got != text {
		t.Error("reconstruction mismatch on multi-byte text")
	}
}

func TestRecursiveOverlapPreservesRunes(t *testing.T) {
	// 5-byte overlap into 3-byte runes lands mid-rune unless the
	// overlap start is backed off to a boundary.
	text := strings.Repeat("日本語テキスト", 20)
	s := NewRecursiveSplitter(Config{Size: 48, Overlap: 5})
	chunks, err := s.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d starts mid-rune: %q...", c.Index, c.Text[:6])
		}
		if c.Text != text[c.StartOffset:c.EndOffset] {
			t.Errorf("chunk %d text does not match its offsets", c.Index)
		}
	}
}

func TestRecursiveEmptyDocument(t *testing.T) {
	s := NewRecursiveSplitter(Config{})
	chunks, err := s.Chunk(doc(""))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(chunks))
	}
}

// ============================================================================
// Token splitter
// ============================================================================

func TestTokenSplitterBoundsTokens(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")
	s := NewTokenSplitter(Config{Size: 30, Overlap: 0}, nil)
	chunks, err := s.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("chunks = %d, want 4 (100 tokens / 30)", len(chunks))
	}
	tok := WordTokenizer{}
	for i, c := range chunks {
		n := len(tok.Spans(c.Text))
		if n > 30 {
			t.Errorf("chunk %d has %d tokens, want <= 30", i, n)
		}
	}
}

func TestTokenSplitterReconstruction(t *testing.T) {
	text := "  leading space " + strings.Repeat("alpha beta\tgamma\ndelta ", 50) + " trailing"
	for _, cfg := range []Config{{Size: 20, Overlap: 0}, {Size: 20, Overlap: 5}} {
		s := NewTokenSplitter(cfg, nil)
		chunks, err := s.Chunk(doc(text))
		if err != nil {
			t.Fatalf("Chunk: %v", err)
		}
		if got := reconstruct(t, text, chunks); got != text {
			t.Errorf("overlap=%d: reconstruction mismatch", cfg.Overlap)
		}
	}
}

func TestTokenSplitterDeterministic(t *testing.T) {
	text := strings.Repeat("some resume content with skills ", 40)
	s := NewTokenSplitter(Config{Size: 25, Overlap: 5}, nil)
	first, err := s.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	second, err := s.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text || first[i].StartOffset != second[i].StartOffset {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestWordTokenizerSpans(t *testing.T) {
	spans := WordTokenizer{}.Spans("  foo bar\n baz ")
	if len(spans) != 3 {
		t.Fatalf("spans = %d, want 3", len(spans))
	}
	text := "  foo bar\n baz "
	want := []string{"foo", "bar", "baz"}
	for i, sp := range spans {
		if text[sp.Start:sp.End] != want[i] {
			t.Errorf("span %d = %q, want %q", i, text[sp.Start:sp.End], want[i])
		}
	}
}

// ============================================================================
// Factory
// ============================================================================

func TestNewByStrategy(t *testing.T) {
	for _, tag := range []string{"recursive", "token"} {
		c, err := New(tag, Config{})
		if err != nil {
			t.Fatalf("New(%q): %v", tag, err)
		}
		if c.Name() != tag {
			t.Errorf("Name() = %q, want %q", c.Name(), tag)
		}
	}
	if _, err := New("semantic", Config{}); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
