package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/resumelab/ragsweep/pkg/models"
)

// RecursiveSplitter bounds chunks by character count. For each chunk it
// looks for the largest split boundary within the size window, trying
// separators in descending priority (paragraph, line, sentence, word),
// and falls back to a hard cut at a rune boundary when the window
// contains no separator at all.
type RecursiveSplitter struct {
	config     Config
	separators []string
}

// DefaultSeparators is the boundary priority for recursive splitting,
// from largest semantic unit to smallest.
var DefaultSeparators = []string{
	"\n\n", // paragraph break
	"\n",   // line break
	". ",   // sentence end
	"? ",
	"! ",
	"; ",
	" ", // word boundary
}

// NewRecursiveSplitter creates a recursive character splitter.
// Defaults: size 1000, overlap 200; overlap is forced below size.
func NewRecursiveSplitter(cfg Config) *RecursiveSplitter {
	if cfg.Size <= 0 {
		cfg.Size = 1000
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 5
	}
	return &RecursiveSplitter{config: cfg, separators: DefaultSeparators}
}

// WithSeparators overrides the boundary priority list.
func (s *RecursiveSplitter) WithSeparators(seps []string) *RecursiveSplitter {
	s.separators = seps
	return s
}

// Name returns the strategy tag.
func (s *RecursiveSplitter) Name() string {
	return "recursive"
}

// Chunk splits the document content into character-bounded chunks.
func (s *RecursiveSplitter) Chunk(doc *models.Document) ([]models.Chunk, error) {
	text := doc.Content
	if text == "" {
		return nil, nil
	}

	segments := s.split(text)
	overlaps := make([]int, 0, len(segments))
	for i := 1; i < len(segments); i++ {
		overlaps = append(overlaps, s.config.Overlap)
	}
	return buildChunks(doc, s.Name(), segments, overlaps), nil
}

// split walks the text producing contiguous segments that cover it
// exactly. Each segment is at most Size bytes.
func (s *RecursiveSplitter) split(text string) []segment {
	var segments []segment
	pos := 0
	for pos < len(text) {
		remaining := len(text) - pos
		if remaining <= s.config.Size {
			segments = append(segments, segment{Start: pos, End: len(text)})
			break
		}

		window := text[pos : pos+s.config.Size]
		cut := s.findBoundary(window)
		if cut <= 0 {
			cut = hardCut(text, pos, s.config.Size)
		}
		segments = append(segments, segment{Start: pos, End: pos + cut})
		pos += cut
	}
	return segments
}

// findBoundary returns the byte offset just past the last occurrence of
// the highest-priority separator present in the window, or 0 when none
// produces a usable cut.
func (s *RecursiveSplitter) findBoundary(window string) int {
	for _, sep := range s.separators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			// A separator at offset 0 would produce an empty chunk.
			continue
		}
		return idx + len(sep)
	}
	return 0
}

// hardCut backs a forced character cut off to the nearest rune boundary
// so a multi-byte rune is never split. With valid UTF-8 the loop runs at
// most three times.
func hardCut(text string, pos, size int) int {
	cut := size
	for cut > 0 && !utf8.RuneStart(text[pos+cut]) {
		cut--
	}
	if cut == 0 {
		cut = size
	}
	return cut
}
