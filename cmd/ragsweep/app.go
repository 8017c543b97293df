package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/resumelab/ragsweep/internal/config"
	"github.com/resumelab/ragsweep/internal/embed"
	"github.com/resumelab/ragsweep/internal/eval"
	"github.com/resumelab/ragsweep/internal/generate"
	"github.com/resumelab/ragsweep/internal/ingest"
	"github.com/resumelab/ragsweep/internal/llm"
	"github.com/resumelab/ragsweep/internal/namespace"
	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/internal/parser"
	"github.com/resumelab/ragsweep/internal/rerank"
	"github.com/resumelab/ragsweep/internal/retrieve"
	"github.com/resumelab/ragsweep/internal/vectorstore"
	"github.com/resumelab/ragsweep/internal/vectorstore/memory"
	"github.com/resumelab/ragsweep/internal/vectorstore/pgvector"
	"github.com/resumelab/ragsweep/pkg/models"
)

// app wires configuration into the pipeline components a command needs.
type app struct {
	cfg           *config.Config
	logger        *observability.Logger
	metrics       *observability.Metrics
	metricsServer *observability.MetricsServer
	tracer        *observability.Tracer
	stopTrace     func(context.Context) error
	store         vectorstore.Store
	history       *namespace.Store
	embedders     *embed.Registry
	parsers       *parser.Registry
	rerankers     *rerank.Registry
	chats         *llm.Registry
	tracker       eval.Tracker
	writer        *ingest.Writer
}

// newApp loads config and builds the shared component graph. Commands
// validate variant-specific capabilities afterwards via validateVariant.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics, registry := observability.NewMetrics()
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Addr != "" {
		metricsServer, err = observability.StartMetricsServer(registry, cfg.Metrics.Addr)
		if err != nil {
			return nil, err
		}
		logger.Info(context.Background(), "metrics endpoint listening", "addr", metricsServer.Addr())
	}

	tracer, stopTrace, err := observability.NewTracer(observability.TraceConfig{
		ServiceName: "ragsweep",
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		metricsServer: metricsServer,
		tracer:        tracer,
		stopTrace:     stopTrace,
	}

	if err := a.buildStore(); err != nil {
		return nil, err
	}
	a.history = namespace.NewStore(cfg.Namespace.HistoryPath)
	a.buildEmbedders()
	a.buildParsers()
	a.buildRerankers()
	a.buildChats()
	if err := a.buildTracker(); err != nil {
		return nil, err
	}

	a.writer = ingest.NewWriter(a.store, a.history, a.embedders,
		ingest.WithLogger(logger),
		ingest.WithMetrics(metrics),
		ingest.WithTracer(tracer))

	return a, nil
}

// Close flushes traces, stops the metrics endpoint and releases the
// vector store.
func (a *app) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if a.stopTrace != nil {
		_ = a.stopTrace(ctx)
	}
	if a.metricsServer != nil {
		_ = a.metricsServer.Shutdown(ctx)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func (a *app) buildStore() error {
	switch a.cfg.VectorStore.Backend {
	case "pgvector":
		store, err := pgvector.New(pgvector.Config{
			DSN:           a.cfg.VectorStore.DSN,
			RunMigrations: true,
			QueryTimeout:  a.cfg.VectorStore.QueryTimeout,
		})
		if err != nil {
			return fmt.Errorf("open pgvector store: %w", err)
		}
		a.store = store
	case "memory":
		a.store = memory.New()
	default:
		return config.Errorf("vector_store.backend", "unknown backend %q", a.cfg.VectorStore.Backend)
	}
	return nil
}

func (a *app) buildEmbedders() {
	a.embedders = embed.NewRegistry()
	for _, model := range []string{"text-embedding-3-small", "text-embedding-3-large"} {
		model := model
		a.embedders.Register(model, func() (embed.Provider, error) {
			return embed.NewOpenAI(embed.OpenAIConfig{
				APIKey:  a.cfg.OpenAI.APIKey,
				BaseURL: a.cfg.OpenAI.BaseURL,
				Model:   model,
				Metrics: a.metrics,
			})
		})
	}
	for _, model := range []string{"nomic-embed-text", "mxbai-embed-large", "all-minilm"} {
		model := model
		a.embedders.Register(model, func() (embed.Provider, error) {
			return embed.NewOllama(embed.OllamaConfig{Model: model, Metrics: a.metrics})
		})
	}
}

func (a *app) buildParsers() {
	a.parsers = parser.NewRegistry()
	a.parsers.Register(parser.NewBaseline())
	if a.cfg.Parser.LayoutURL != "" {
		layout, err := parser.NewLayout(parser.LayoutConfig{BaseURL: a.cfg.Parser.LayoutURL})
		if err != nil {
			a.logger.Warn(context.Background(), "layout parser unavailable", "error", err)
			return
		}
		a.parsers.Register(layout)
	}
}

func (a *app) buildRerankers() {
	a.rerankers = rerank.NewRegistry()
	a.rerankers.Register("none", func() (rerank.Reranker, error) {
		return rerank.None{}, nil
	})
	a.rerankers.Register("llm", func() (rerank.Reranker, error) {
		client, err := a.chatClient()
		if err != nil {
			return nil, err
		}
		return rerank.NewLLM(client, a.logger), nil
	})
	a.rerankers.Register("crossencoder", func() (rerank.Reranker, error) {
		return rerank.NewCrossEncoder(rerank.CrossEncoderConfig{
			BaseURL: a.cfg.Rerank.CrossEncoderURL,
			Model:   a.cfg.Rerank.CrossEncoderModel,
		})
	})
	a.rerankers.Register("cohere", func() (rerank.Reranker, error) {
		return rerank.NewCohere(rerank.CohereConfig{
			APIKey: a.cfg.Rerank.CohereAPIKey,
			Model:  a.cfg.Rerank.CohereModel,
		})
	})
}

func (a *app) buildTracker() error {
	if a.cfg.Tracker.Endpoint == "" {
		a.tracker = eval.NoopTracker{}
		return nil
	}
	tracker, err := eval.NewHTTPTracker(eval.TrackerConfig{
		BaseURL: a.cfg.Tracker.Endpoint,
		APIKey:  a.cfg.Tracker.APIKey,
		Project: a.cfg.Tracker.Project,
	})
	if err != nil {
		return err
	}
	a.tracker = tracker
	return nil
}

// chatClient returns the chat backend for generation, LLM reranking and
// judging: OpenAI when configured, otherwise Anthropic.
// buildChats registers a chat client factory per configured provider.
func (a *app) buildChats() {
	a.chats = llm.NewRegistry()
	if a.cfg.OpenAI.APIKey != "" {
		a.chats.Register("openai", func(model string) (llm.Client, error) {
			return llm.NewOpenAIClient(a.cfg.OpenAI.APIKey, model,
				llm.WithOpenAIMetrics(a.metrics))
		})
	}
	if a.cfg.Anthropic.APIKey != "" {
		a.chats.Register("anthropic", func(model string) (llm.Client, error) {
			return llm.NewAnthropicClient(a.cfg.Anthropic.APIKey, model,
				llm.WithAnthropicMetrics(a.metrics))
		})
	}
}

// chatClient resolves the generation/judging client, preferring OpenAI
// when both providers have credentials.
func (a *app) chatClient() (llm.Client, error) {
	if client, err := a.chats.New("openai", a.cfg.OpenAI.ChatModel); err == nil {
		return client, nil
	}
	if client, err := a.chats.New("anthropic", a.cfg.Anthropic.Model); err == nil {
		return client, nil
	}
	return nil, config.Errorf("openai.api_key", "no chat backend configured: set OPENAI_API_KEY or ANTHROPIC_API_KEY")
}

// generatorFor assembles the variant-specific answer path.
func (a *app) generatorFor(v models.Variant) (*generate.Generator, error) {
	provider, err := a.embedders.Get(v.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	reranker, err := a.rerankers.New(v.Reranker)
	if err != nil {
		return nil, err
	}
	client, err := a.chatClient()
	if err != nil {
		return nil, err
	}
	retriever := retrieve.New(provider, a.store, reranker,
		retrieve.Config{OverFetchFactor: a.cfg.Rerank.OverFetchFactor},
		retrieve.WithLogger(a.logger),
		retrieve.WithMetrics(a.metrics),
		retrieve.WithTracer(a.tracer))
	return generate.New(retriever, client, a.logger), nil
}

// evaluatorFor builds an evaluator over the variant's generator.
func (a *app) evaluatorFor(v models.Variant) (*eval.Evaluator, error) {
	generator, err := a.generatorFor(v)
	if err != nil {
		return nil, err
	}
	client, err := a.chatClient()
	if err != nil {
		return nil, err
	}
	return eval.New(generator, eval.NewJudge(client), a.tracker, a.logger), nil
}

// parseDocument reads and parses a resume with the variant's parser.
func (a *app) parseDocument(ctx context.Context, path, backend string) (*models.Document, error) {
	p, err := a.parsers.Get(backend)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, config.Errorf("", "open resume: %v", err)
	}
	defer f.Close()

	result, err := p.Parse(ctx, f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &models.Document{
		ID:            uuid.New().String(),
		Name:          filepath.Base(path),
		SourceURI:     path,
		ParserBackend: backend,
		Content:       result.Content,
		Layout:        result.Layout,
		CreatedAt:     time.Now(),
	}, nil
}

// validateVariant checks the variant's fields and the config
// capabilities they require, so failures surface before any network
// call.
func (a *app) validateVariant(v models.Variant) error {
	if err := v.Validate(); err != nil {
		return err
	}
	needs := []string{}
	if v.EmbeddingModel == "text-embedding-3-small" || v.EmbeddingModel == "text-embedding-3-large" {
		needs = append(needs, "openai")
	}
	switch v.Reranker {
	case "cohere":
		needs = append(needs, "cohere")
	case "crossencoder":
		needs = append(needs, "crossencoder")
	}
	if v.Parser == "layout" {
		needs = append(needs, "layout")
	}
	if a.cfg.VectorStore.Backend == "pgvector" {
		needs = append(needs, "pgvector")
	}
	return a.cfg.Validate(needs...)
}
