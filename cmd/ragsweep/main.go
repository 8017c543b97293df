// Package main provides the ragsweep CLI: controlled A/B experiments
// over a retrieval-augmented QA pipeline for resume documents.
//
// # Basic Usage
//
// Ingest a resume under one variant:
//
//	ragsweep ingest --resume jane.pdf --chunking recursive
//
// Ask a single question against a variant's namespace:
//
//	ragsweep ask --question "What skills are listed?" --reranker llm
//
// Evaluate one variant against a gold set:
//
//	ragsweep eval --resume jane.pdf --gold gold.yaml --label exp1
//
// Sweep a grid of variants:
//
//	ragsweep sweep --resume jane.pdf --gold gold.yaml \
//	    --chunkings recursive,token --rerankers none,llm
//
// Inspect or purge namespaces:
//
//	ragsweep ns list
//	ragsweep ns purge baseline_recursive_textembedding3small_none_baseline_k5
//
// # Environment Variables
//
//   - RAGSWEEP_CONFIG: Path to configuration file (default: ragsweep.yaml)
//   - OPENAI_API_KEY: OpenAI API key (embeddings, generation, judging)
//   - ANTHROPIC_API_KEY: Anthropic API key (optional generation backend)
//   - COHERE_API_KEY: Cohere API key (hosted reranking)
//   - RAGSWEEP_PG_DSN: PostgreSQL DSN for the pgvector backend
//   - TRACKER_API_KEY: experiment tracker API key
package main

import (
	"fmt"
	"os"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
