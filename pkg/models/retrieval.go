package models

import "time"

// ScoredChunk pairs a retrieved chunk with its relevance score.
// Scores are always higher-is-more-relevant, both before and after
// reranking, even though rerankers may rescale.
type ScoredChunk struct {
	// Chunk is the retrieved passage.
	Chunk *Chunk `json:"chunk"`

	// Score is the relevance score for the active ranking stage.
	Score float32 `json:"score"`

	// VectorRank is the 0-based position in the raw vector-similarity
	// ranking. Rerankers preserve it so ties can be broken stably.
	VectorRank int `json:"vector_rank"`
}

// RetrievalResult is the ranked output of one query against one
// namespace. Length is always <= the requested k; an empty namespace
// yields an empty (non-nil error-free) result.
type RetrievalResult struct {
	// Query is the original query text.
	Query string `json:"query"`

	// Namespace is the namespace that was searched.
	Namespace string `json:"namespace"`

	// Chunks are the results ordered by descending relevance.
	Chunks []ScoredChunk `json:"chunks"`

	// QueryTime is how long retrieval (including reranking) took.
	QueryTime time.Duration `json:"query_time"`
}
