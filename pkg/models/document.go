// Package models defines the core data types shared across the ragsweep pipeline.
package models

import (
	"strconv"
	"time"
)

// Document represents a parsed source document (typically a resume).
// A Document is immutable once parsed; chunking and embedding never
// modify its content.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`

	// Name is the human-readable name, usually the source file name.
	Name string `json:"name"`

	// SourceURI is the original path or URL the document was loaded from.
	SourceURI string `json:"source_uri,omitempty"`

	// ParserBackend is the tag of the parser that produced Content.
	ParserBackend string `json:"parser_backend"`

	// Content is the normalized text extracted by the parser.
	Content string `json:"content"`

	// Layout contains optional layout metadata reported by layout-aware
	// parsers (section headings, page boundaries).
	Layout []LayoutSpan `json:"layout,omitempty"`

	// ChunkCount is the number of chunks the document was split into.
	ChunkCount int `json:"chunk_count,omitempty"`

	// CreatedAt is when the document was parsed.
	CreatedAt time.Time `json:"created_at"`
}

// LayoutSpan marks a structural region of a parsed document.
type LayoutSpan struct {
	// Title is the heading or label for the region.
	Title string `json:"title,omitempty"`

	// Kind is the region type ("heading", "table", "page").
	Kind string `json:"kind,omitempty"`

	// StartOffset is the character offset where the region starts.
	StartOffset int `json:"start_offset"`

	// EndOffset is the character offset where the region ends.
	EndOffset int `json:"end_offset"`
}

// Chunk is an ordered passage of a Document and the unit of retrieval.
// The text is always an exact substring of the owning document's content
// (plus any overlap prefix carried from the previous chunk).
type Chunk struct {
	// ID is the stable chunk identifier: "<document_id>#<index>".
	// Re-ingesting the same document overwrites rather than duplicates.
	ID string `json:"id"`

	// DocumentID links this chunk to its parent document.
	DocumentID string `json:"document_id"`

	// Index is the position of this chunk within the document (0-based).
	Index int `json:"index"`

	// Text is the chunk content.
	Text string `json:"text"`

	// StartOffset is the character offset in the original document,
	// including the overlap prefix when overlap is configured.
	StartOffset int `json:"start_offset"`

	// EndOffset is the ending character offset (exclusive).
	EndOffset int `json:"end_offset"`

	// Embedding is the vector embedding, assigned after the embed stage.
	Embedding []float32 `json:"-"`

	// Metadata carries variant provenance attached at ingest time.
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata records where a chunk came from and which variant
// produced it, for provenance and filtering inside a namespace.
type ChunkMetadata struct {
	// DocumentName is the parent document's name.
	DocumentName string `json:"document_name,omitempty"`

	// Section is the layout section this chunk belongs to, if known.
	Section string `json:"section,omitempty"`

	// Parser is the parser backend tag used for the parent document.
	Parser string `json:"parser,omitempty"`

	// Chunking is the chunking strategy tag.
	Chunking string `json:"chunking,omitempty"`

	// Embedding is the embedding model id.
	Embedding string `json:"embedding,omitempty"`
}

// ChunkID returns the stable identifier for a chunk of docID at index.
func ChunkID(docID string, index int) string {
	return docID + "#" + strconv.Itoa(index)
}
