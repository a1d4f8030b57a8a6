// Package config provides configuration loading for supportd.
package config

import (
	"fmt"
	"time"
)

// Config is the root supportd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	LLM         LLMConfig         `koanf:"llm"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Redis       RedisConfig       `koanf:"redis"`
	Session     SessionConfig     `koanf:"session"`
	Actions     ActionsConfig     `koanf:"actions"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json, console
	Output string `koanf:"output"` // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	ServiceName    string   `koanf:"service_name"`
	ServiceVersion string   `koanf:"service_version"`
	Insecure       bool     `koanf:"insecure"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// PipelineConfig holds the orchestration engine settings: the deployment
// pivot language, the confidence threshold driving clarification, and the
// bounds that guarantee turn termination.
type PipelineConfig struct {
	PivotLanguage          string   `koanf:"pivot_language"`
	ConfidenceThreshold    float64  `koanf:"confidence_threshold"`
	MaxClarificationRounds int      `koanf:"max_clarification_rounds"`
	StepTimeout            Duration `koanf:"step_timeout"`
	PlanTimeout            Duration `koanf:"plan_timeout"`
	TopK                   int      `koanf:"top_k"`
	MinDocumentScore       float64  `koanf:"min_document_score"`
	VerificationPasses     int      `koanf:"verification_passes"`
}

// LLMConfig holds the inference collaborator settings. BaseURL points at
// any OpenAI-compatible endpoint (local Ollama/TEI gateway or hosted API).
type LLMConfig struct {
	BaseURL string   `koanf:"base_url"`
	Model   string   `koanf:"model"`
	APIKey  Secret   `koanf:"api_key"`
	Timeout Duration `koanf:"timeout"`
}

// EmbeddingConfig holds the embedding collaborator settings.
type EmbeddingConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// VectorStoreConfig selects and configures the retrieval backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider   string       `koanf:"provider"`
	Path       string       `koanf:"path"` // chromem persistence path
	Collection string       `koanf:"collection"`
	Qdrant     QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// RedisConfig holds the Redis connection shared by the session store and
// the trace sink.
type RedisConfig struct {
	Addr     string   `koanf:"addr"`
	Password Secret   `koanf:"password"`
	DB       int      `koanf:"db"`
	TTL      Duration `koanf:"ttl"`
}

// SessionConfig selects the session history backend.
type SessionConfig struct {
	// Provider is "memory" or "redis".
	Provider   string `koanf:"provider"`
	MaxHistory int    `koanf:"max_history"`
}

// ActionsConfig selects the backend action store.
type ActionsConfig struct {
	// Provider is "memory" or "supabase".
	Provider string         `koanf:"provider"`
	Supabase SupabaseConfig `koanf:"supabase"`
}

// SupabaseConfig holds Supabase connection settings for ticket, quote and
// appointment storage.
type SupabaseConfig struct {
	URL    string `koanf:"url"`
	APIKey Secret `koanf:"api_key"`
}

// applyDefaults fills zero values with production-ready defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "supportd"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = Duration(15 * time.Second)
	}
	if cfg.Pipeline.PivotLanguage == "" {
		cfg.Pipeline.PivotLanguage = "en"
	}
	if cfg.Pipeline.ConfidenceThreshold == 0 {
		cfg.Pipeline.ConfidenceThreshold = 0.6
	}
	if cfg.Pipeline.MaxClarificationRounds == 0 {
		cfg.Pipeline.MaxClarificationRounds = 2
	}
	if cfg.Pipeline.StepTimeout == 0 {
		cfg.Pipeline.StepTimeout = Duration(30 * time.Second)
	}
	if cfg.Pipeline.PlanTimeout == 0 {
		cfg.Pipeline.PlanTimeout = Duration(10 * time.Second)
	}
	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = 5
	}
	if cfg.Pipeline.MinDocumentScore == 0 {
		cfg.Pipeline.MinDocumentScore = 0.3
	}
	if cfg.Pipeline.VerificationPasses == 0 {
		cfg.Pipeline.VerificationPasses = 3
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistral"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(30 * time.Second)
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "knowledge_base"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = Duration(24 * time.Hour)
	}
	if cfg.Session.Provider == "" {
		cfg.Session.Provider = "memory"
	}
	if cfg.Session.MaxHistory == 0 {
		cfg.Session.MaxHistory = 50
	}
	if cfg.Actions.Provider == "" {
		cfg.Actions.Provider = "memory"
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}
	if len(c.Pipeline.PivotLanguage) != 2 {
		return fmt.Errorf("pivot language must be an ISO 639-1 code: %q", c.Pipeline.PivotLanguage)
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1]: %f", c.Pipeline.ConfidenceThreshold)
	}
	if c.Pipeline.MaxClarificationRounds < 0 {
		return fmt.Errorf("max clarification rounds cannot be negative: %d", c.Pipeline.MaxClarificationRounds)
	}
	if c.Pipeline.VerificationPasses < 1 {
		return fmt.Errorf("verification passes must be positive: %d", c.Pipeline.VerificationPasses)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("invalid vectorstore provider: %q", c.VectorStore.Provider)
	}
	switch c.Session.Provider {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid session provider: %q", c.Session.Provider)
	}
	switch c.Actions.Provider {
	case "memory", "supabase":
	default:
		return fmt.Errorf("invalid actions provider: %q", c.Actions.Provider)
	}
	if c.Actions.Provider == "supabase" && c.Actions.Supabase.URL == "" {
		return fmt.Errorf("supabase actions provider requires a URL")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate must be in [0,1]: %f", c.Telemetry.SampleRate)
	}
	return nil
}
