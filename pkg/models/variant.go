package models

import (
	"fmt"
	"strings"
)

// Variant is one concrete combination of pipeline-stage choices for an
// experiment. Two variants are the same experiment iff every field is
// equal; the canonical Key below is used for namespace resolution and
// sweep cell labels.
type Variant struct {
	// Parser is the document parser backend: "baseline" or "layout".
	Parser string `json:"parser" yaml:"parser"`

	// Chunking is the chunking strategy: "recursive" or "token".
	Chunking string `json:"chunking" yaml:"chunking"`

	// EmbeddingModel is the embedding model id
	// (e.g. "text-embedding-3-small").
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`

	// Reranker is the reranking policy: "none", "llm", "crossencoder"
	// or "cohere".
	Reranker string `json:"reranker" yaml:"reranker"`

	// Prompt is the prompt template name: "baseline" or "strict".
	Prompt string `json:"prompt" yaml:"prompt"`

	// K is the number of passages to retrieve per query.
	K int `json:"k" yaml:"k"`
}

// Key returns the canonical encoding of the variant: its fields joined
// in a fixed order. Identical variants always produce identical keys and
// distinct variants always produce distinct keys.
func (v Variant) Key() string {
	return strings.Join([]string{
		v.Parser,
		v.Chunking,
		v.EmbeddingModel,
		v.Reranker,
		v.Prompt,
		fmt.Sprintf("k%d", v.K),
	}, "-")
}

// Equal reports whether two variants match field for field.
func (v Variant) Equal(other Variant) bool {
	return v == other
}

// Validate checks that every field is populated and k is positive.
func (v Variant) Validate() error {
	if v.Parser == "" {
		return fmt.Errorf("variant: parser is required")
	}
	if v.Chunking == "" {
		return fmt.Errorf("variant: chunking is required")
	}
	if v.EmbeddingModel == "" {
		return fmt.Errorf("variant: embedding model is required")
	}
	if v.Reranker == "" {
		return fmt.Errorf("variant: reranker is required")
	}
	if v.Prompt == "" {
		return fmt.Errorf("variant: prompt is required")
	}
	if v.K <= 0 {
		return fmt.Errorf("variant: k must be positive, got %d", v.K)
	}
	return nil
}

func (v Variant) String() string {
	return v.Key()
}
