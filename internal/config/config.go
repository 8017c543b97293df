// Package config loads and validates ragsweep configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Error is a fatal configuration problem: missing credentials, an
// unreadable file, an unresolvable variant field. It is never retried.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Errorf builds a config Error for a field.
func Errorf(field, format string, args ...any) error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Config is the main configuration structure for ragsweep.
type Config struct {
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Anthropic   AnthropicConfig   `yaml:"anthropic"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Rerank      RerankConfig      `yaml:"rerank"`
	Parser      ParserConfig      `yaml:"parser"`
	Namespace   NamespaceConfig   `yaml:"namespace"`
	Tracker     TrackerConfig     `yaml:"tracker"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// ChatModel is the default generation model.
	ChatModel string `yaml:"chat_model"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type VectorStoreConfig struct {
	// Backend selects the store implementation: "pgvector" or "memory".
	Backend string `yaml:"backend"`
	// DSN is the PostgreSQL connection string for the pgvector backend.
	DSN string `yaml:"dsn"`
	// QueryTimeout bounds individual store calls.
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type RerankConfig struct {
	// CrossEncoderURL is the base URL of the local cross-encoder scorer.
	CrossEncoderURL string `yaml:"cross_encoder_url"`
	// CrossEncoderModel is the model the scorer should load.
	CrossEncoderModel string `yaml:"cross_encoder_model"`
	// CohereAPIKey authenticates against the hosted rerank API.
	CohereAPIKey string `yaml:"cohere_api_key"`
	// CohereModel is the hosted rerank model id.
	CohereModel string `yaml:"cohere_model"`
	// OverFetchFactor multiplies k when over-fetching candidates for a
	// reranker. Minimum candidate pool is 10, matching the retriever.
	OverFetchFactor int `yaml:"over_fetch_factor"`
}

type ParserConfig struct {
	// LayoutURL is the base URL of the layout-aware parsing service.
	LayoutURL string `yaml:"layout_url"`
}

type NamespaceConfig struct {
	// HistoryPath is the JSON file recording namespace usage.
	HistoryPath string `yaml:"history_path"`
}

type TrackerConfig struct {
	// Endpoint is the experiment tracker API base URL. Empty disables
	// tracking (a no-op tracker is used).
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	// Project groups runs in the tracker UI.
	Project string `yaml:"project"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector address. Empty disables export.
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

type MetricsConfig struct {
	// Addr is the listen address for the /metrics endpoint, e.g.
	// "127.0.0.1:9090". Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Load reads the configuration file, expands environment variables and
// applies defaults. A missing path loads defaults from the environment
// alone, so the CLI works with just API keys exported.
func Load(path string) (*Config, error) {
	// A .env next to the working directory is honored if present.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, Errorf("", "read config file: %v", err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return nil, Errorf("", "parse config: %v", err)
			}
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Rerank.CohereAPIKey == "" {
		cfg.Rerank.CohereAPIKey = os.Getenv("COHERE_API_KEY")
	}
	if cfg.VectorStore.DSN == "" {
		cfg.VectorStore.DSN = os.Getenv("RAGSWEEP_PG_DSN")
	}
	if cfg.Tracker.APIKey == "" {
		cfg.Tracker.APIKey = os.Getenv("TRACKER_API_KEY")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.Anthropic.Model == "" {
		cfg.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if cfg.VectorStore.Backend == "" {
		if cfg.VectorStore.DSN != "" {
			cfg.VectorStore.Backend = "pgvector"
		} else {
			cfg.VectorStore.Backend = "memory"
		}
	}
	if cfg.VectorStore.QueryTimeout == 0 {
		cfg.VectorStore.QueryTimeout = 30 * time.Second
	}
	if cfg.Rerank.CrossEncoderModel == "" {
		cfg.Rerank.CrossEncoderModel = "BAAI/bge-reranker-large"
	}
	if cfg.Rerank.CohereModel == "" {
		cfg.Rerank.CohereModel = "rerank-english-v3.0"
	}
	if cfg.Rerank.OverFetchFactor <= 0 {
		cfg.Rerank.OverFetchFactor = 2
	}
	if cfg.Namespace.HistoryPath == "" {
		cfg.Namespace.HistoryPath = ".ns_history.json"
	}
	if cfg.Tracker.Project == "" {
		cfg.Tracker.Project = "resume-rag"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks the parts of the configuration a command is about to
// use. Commands call it with the capabilities they need so that, for
// example, a memory-store dry run does not demand Postgres credentials.
func (c *Config) Validate(needs ...string) error {
	for _, need := range needs {
		switch need {
		case "openai":
			if c.OpenAI.APIKey == "" {
				return Errorf("openai.api_key", "OPENAI_API_KEY is not set")
			}
		case "anthropic":
			if c.Anthropic.APIKey == "" {
				return Errorf("anthropic.api_key", "ANTHROPIC_API_KEY is not set")
			}
		case "pgvector":
			if c.VectorStore.Backend == "pgvector" && c.VectorStore.DSN == "" {
				return Errorf("vector_store.dsn", "pgvector backend requires a DSN")
			}
		case "cohere":
			if c.Rerank.CohereAPIKey == "" {
				return Errorf("rerank.cohere_api_key", "COHERE_API_KEY is not set")
			}
		case "crossencoder":
			if c.Rerank.CrossEncoderURL == "" {
				return Errorf("rerank.cross_encoder_url", "cross-encoder scorer URL is not set")
			}
		case "layout":
			if c.Parser.LayoutURL == "" {
				return Errorf("parser.layout_url", "layout parser service URL is not set")
			}
		default:
			return Errorf("", "unknown capability %q", need)
		}
	}
	return nil
}
