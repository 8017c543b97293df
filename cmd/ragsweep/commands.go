// commands.go contains all cobra command definitions and their flag
// configurations. Each command builder creates a command and wires it to
// its handler in handlers.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func defaultConfigPath() string {
	if path := os.Getenv("RAGSWEEP_CONFIG"); path != "" {
		return path
	}
	return "ragsweep.yaml"
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragsweep",
		Short: "ragsweep - A/B experiments over a resume RAG pipeline",
		Long: `ragsweep runs controlled experiments over a retrieval-augmented QA
pipeline: it varies parsing, chunking, embedding model, reranking and
prompt template, isolates each combination in its own vector namespace,
and scores answers against gold references.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildIngestCmd(),
		buildAskCmd(),
		buildEvalCmd(),
		buildSweepCmd(),
		buildNsCmd(),
	)

	return rootCmd
}

// variantFlags holds the per-variant flag values shared by ingest, ask
// and eval.
type variantFlags struct {
	parser    string
	chunking  string
	embedding string
	reranker  string
	prompt    string
	k         int
}

func (f *variantFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.parser, "parser", "baseline", "Parser backend (baseline|layout)")
	cmd.Flags().StringVar(&f.chunking, "chunking", "recursive", "Chunking strategy (recursive|token)")
	cmd.Flags().StringVar(&f.embedding, "embedding-model", "text-embedding-3-small", "Embedding model id")
	cmd.Flags().StringVar(&f.reranker, "reranker", "none", "Reranking policy (none|llm|crossencoder|cohere)")
	cmd.Flags().StringVar(&f.prompt, "prompt", "baseline", "Prompt template (baseline|strict)")
	cmd.Flags().IntVar(&f.k, "k", 5, "Passages to retrieve per question")
}

// =============================================================================
// Ingest Command
// =============================================================================

func buildIngestCmd() *cobra.Command {
	var (
		configPath string
		resume     string
		variant    variantFlags
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse, chunk, embed and index a resume under one variant",
		Example: `  # Default variant
  ragsweep ingest --resume jane.pdf

  # Token chunking with the large embedding model
  ragsweep ingest --resume jane.pdf --chunking token --embedding-model text-embedding-3-large`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), configPath, resume, variant)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVar(&resume, "resume", "", "Path to the resume document")
	variant.register(cmd)
	cobra.CheckErr(cmd.MarkFlagRequired("resume"))
	return cmd
}

// =============================================================================
// Ask Command
// =============================================================================

func buildAskCmd() *cobra.Command {
	var (
		configPath string
		question   string
		variant    variantFlags
	)
	cmd := &cobra.Command{
		Use:     "ask",
		Short:   "Ask one question against a variant's namespace",
		Example: `  ragsweep ask --question "What skills are listed?" --reranker llm --prompt strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), configPath, question, variant)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question to answer")
	variant.register(cmd)
	cobra.CheckErr(cmd.MarkFlagRequired("question"))
	return cmd
}

// =============================================================================
// Eval Command
// =============================================================================

func buildEvalCmd() *cobra.Command {
	var (
		configPath string
		resume     string
		gold       string
		label      string
		output     string
		variant    variantFlags
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate one variant against a gold QA set",
		Long: `Ingest the resume under the variant's namespace (skipped when the
namespace history already records this exact variant), answer every
gold question through the variant's pipeline, grade the answers with an
LLM judge, and print per-question and aggregate scores.`,
		Example: `  ragsweep eval --resume jane.pdf --gold gold.yaml \
      --chunking recursive --reranker cohere --prompt strict --label exp1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), configPath, resume, gold, label, output, variant)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVar(&resume, "resume", "", "Path to the resume document")
	cmd.Flags().StringVar(&gold, "gold", "", "Path to the gold QA YAML file")
	cmd.Flags().StringVar(&label, "label", "", "Experiment label (defaults to the variant key)")
	cmd.Flags().StringVar(&output, "output", "", "Write the run as JSON to this file")
	variant.register(cmd)
	cobra.CheckErr(cmd.MarkFlagRequired("resume"))
	cobra.CheckErr(cmd.MarkFlagRequired("gold"))
	return cmd
}

// =============================================================================
// Sweep Command
// =============================================================================

func buildSweepCmd() *cobra.Command {
	var (
		configPath  string
		resume      string
		gold        string
		labelPrefix string
		output      string
		sortMetric  string
		concurrency int

		parsers    []string
		chunkings  []string
		embeddings []string
		rerankers  []string
		prompts    []string
		ks         []int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a grid of variants and print a comparison scorecard",
		Example: `  ragsweep sweep --resume jane.pdf --gold gold.yaml \
      --chunkings recursive,token --rerankers none,llm --prompts baseline,strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), configPath, sweepArgs{
				resume:      resume,
				gold:        gold,
				labelPrefix: labelPrefix,
				output:      output,
				sortMetric:  sortMetric,
				concurrency: concurrency,
				parsers:     parsers,
				chunkings:   chunkings,
				embeddings:  embeddings,
				rerankers:   rerankers,
				prompts:     prompts,
				ks:          ks,
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVar(&resume, "resume", "", "Path to the resume document")
	cmd.Flags().StringVar(&gold, "gold", "", "Path to the gold QA YAML file")
	cmd.Flags().StringVar(&labelPrefix, "label-prefix", "sweep", "Experiment label prefix")
	cmd.Flags().StringVar(&output, "output", "", "Write the scorecard as JSON to this file")
	cmd.Flags().StringVar(&sortMetric, "sort-by", "faithfulness", "Metric to sort the scorecard by")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Maximum sweep cells in flight")
	cmd.Flags().StringSliceVar(&parsers, "parsers", nil, "Parser backends to sweep")
	cmd.Flags().StringSliceVar(&chunkings, "chunkings", nil, "Chunking strategies to sweep")
	cmd.Flags().StringSliceVar(&embeddings, "embedding-models", nil, "Embedding models to sweep")
	cmd.Flags().StringSliceVar(&rerankers, "rerankers", nil, "Reranking policies to sweep")
	cmd.Flags().StringSliceVar(&prompts, "prompts", nil, "Prompt templates to sweep")
	cmd.Flags().IntSliceVar(&ks, "ks", nil, "k values to sweep")
	cobra.CheckErr(cmd.MarkFlagRequired("resume"))
	cobra.CheckErr(cmd.MarkFlagRequired("gold"))
	return cmd
}

// =============================================================================
// Namespace Commands
// =============================================================================

func buildNsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ns",
		Short: "Inspect and manage vector namespaces",
	}
	cmd.AddCommand(buildNsListCmd(), buildNsPurgeCmd())
	return cmd
}

func buildNsListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded namespaces, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNsList(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	return cmd
}

func buildNsPurgeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "purge <namespace>",
		Short: "Delete a namespace's vectors and its history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNsPurge(cmd.Context(), configPath, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	return cmd
}
