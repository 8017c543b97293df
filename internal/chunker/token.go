package chunker

import (
	"unicode"
	"unicode/utf8"

	"github.com/resumelab/ragsweep/pkg/models"
)

// Tokenizer maps text to token byte spans. The token strategy bounds
// chunks by token count instead of character count, so the tokenizer
// should approximate whatever the embedding model counts.
type Tokenizer interface {
	// Spans returns the byte ranges of all tokens in text, in order.
	Spans(text string) []TokenSpan

	// Name returns the tokenizer name.
	Name() string
}

// TokenSpan is the byte range of one token.
type TokenSpan struct {
	Start int
	End   int
}

// TokenSplitter bounds chunks by token count. Segment boundaries fall on
// token starts so the inter-token text (whitespace, punctuation) stays
// with the preceding chunk and reconstruction remains exact.
type TokenSplitter struct {
	config    Config
	tokenizer Tokenizer
}

// NewTokenSplitter creates a token-bounded splitter. A nil tokenizer
// selects the word tokenizer. Defaults: size 300, overlap 50 tokens.
func NewTokenSplitter(cfg Config, tok Tokenizer) *TokenSplitter {
	if cfg.Size <= 0 {
		cfg.Size = 300
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 5
	}
	if tok == nil {
		tok = WordTokenizer{}
	}
	return &TokenSplitter{config: cfg, tokenizer: tok}
}

// Name returns the strategy tag.
func (s *TokenSplitter) Name() string {
	return "token"
}

// Chunk splits the document content into token-bounded chunks.
func (s *TokenSplitter) Chunk(doc *models.Document) ([]models.Chunk, error) {
	text := doc.Content
	if text == "" {
		return nil, nil
	}

	tokens := s.tokenizer.Spans(text)
	if len(tokens) == 0 {
		// Whitespace-only document: keep it as a single chunk so no
		// characters are lost.
		segments := []segment{{Start: 0, End: len(text)}}
		return buildChunks(doc, s.Name(), segments, nil), nil
	}

	var segments []segment
	var overlaps []int
	for first := 0; first < len(tokens); first += s.config.Size {
		last := first + s.config.Size
		seg := segment{Start: tokens[first].Start}
		if last >= len(tokens) {
			seg.End = len(text)
		} else {
			seg.End = tokens[last].Start
		}
		if first == 0 {
			// Leading text before the first token belongs to the
			// first chunk.
			seg.Start = 0
		} else {
			// Overlap reaches back to the start of the Overlap-th
			// token before this segment.
			back := first - s.config.Overlap
			if back < 0 {
				back = 0
			}
			overlaps = append(overlaps, seg.Start-tokens[back].Start)
		}
		segments = append(segments, seg)
	}
	return buildChunks(doc, s.Name(), segments, overlaps), nil
}

// WordTokenizer approximates model tokenization with maximal runs of
// non-space characters. Pluggable so a BPE-accurate tokenizer can be
// swapped in without touching the splitter.
type WordTokenizer struct{}

// Name returns the tokenizer name.
func (WordTokenizer) Name() string {
	return "word"
}

// Spans returns the byte ranges of whitespace-delimited tokens.
func (WordTokenizer) Spans(text string) []TokenSpan {
	var spans []TokenSpan
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, TokenSpan{Start: start, End: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	if start >= 0 {
		spans = append(spans, TokenSpan{Start: start, End: len(text)})
	}
	return spans
}
