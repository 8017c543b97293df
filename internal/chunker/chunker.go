// Package chunker splits normalized document text into ordered passages
// for embedding and retrieval.
//
// Chunks are exact substrings of the source text: the concatenation of
// all chunks, with each chunk's overlap prefix removed, reconstructs the
// document byte for byte. Offsets are byte offsets into the normalized
// content.
package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/resumelab/ragsweep/pkg/models"
)

// Chunker defines the interface for chunking strategies.
type Chunker interface {
	// Chunk splits the document's content into ordered chunks.
	// Deterministic: identical content and parameters always produce
	// identical chunks.
	Chunk(doc *models.Document) ([]models.Chunk, error)

	// Name returns the strategy tag for logging and variant metadata.
	Name() string
}

// Config contains common configuration for chunkers.
type Config struct {
	// Size is the target chunk size: characters for the recursive
	// strategy, tokens for the token strategy.
	Size int `yaml:"size"`

	// Overlap is how much trailing context from the previous chunk is
	// duplicated at the start of the next one (same unit as Size).
	Overlap int `yaml:"overlap"`
}

// New constructs the chunker for a strategy tag.
func New(strategy string, cfg Config) (Chunker, error) {
	switch strategy {
	case "recursive":
		return NewRecursiveSplitter(cfg), nil
	case "token":
		return NewTokenSplitter(cfg, nil), nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q (have recursive, token)", strategy)
	}
}

// segment is a half-open [Start, End) byte range of the source text.
// Segments produced by a splitter are contiguous and cover the whole
// text; overlap is applied afterwards when chunks are materialized.
type segment struct {
	Start int
	End   int
}

// buildChunks materializes segments into models.Chunk values, applying
// the overlap prefix and attaching positional metadata. overlapBytes
// holds, per boundary, how far chunk i+1 reaches back into segment i;
// it is clamped so a chunk never starts before the previous segment.
func buildChunks(doc *models.Document, strategy string, segments []segment, overlapBytes []int) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(segments))
	for i, seg := range segments {
		start := seg.Start
		if i > 0 && len(overlapBytes) >= i {
			back := overlapBytes[i-1]
			if max := start - segments[i-1].Start; back > max {
				back = max
			}
			if back > 0 {
				start -= back
				// A byte-counted reach-back can land mid-rune; back
				// off to the boundary like hardCut does. Segment
				// starts are rune boundaries, so the loop terminates
				// before passing segments[i-1].Start.
				for start > segments[i-1].Start && !utf8.RuneStart(doc.Content[start]) {
					start--
				}
			}
		}
		chunks = append(chunks, models.Chunk{
			ID:          models.ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			Index:       i,
			Text:        doc.Content[start:seg.End],
			StartOffset: start,
			EndOffset:   seg.End,
			Metadata: models.ChunkMetadata{
				DocumentName: doc.Name,
				Section:      findSection(doc.Layout, seg.Start),
				Parser:       doc.ParserBackend,
				Chunking:     strategy,
			},
		})
	}
	return chunks
}

// findSection returns the title of the last layout span starting at or
// before offset.
func findSection(layout []models.LayoutSpan, offset int) string {
	for i := len(layout) - 1; i >= 0; i-- {
		if offset >= layout[i].StartOffset {
			return layout[i].Title
		}
	}
	return ""
}
