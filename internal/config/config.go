// Package config provides configuration loading for leadlens.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates an invalid configuration value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration for the leadlens daemon.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Answer    AnswerConfig    `koanf:"answer"`
	Index     IndexConfig     `koanf:"index"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Enrich    EnrichConfig    `koanf:"enrich"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// QdrantConfig holds vector database connection settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (6334), not the HTTP REST port (6333).
	Port int `koanf:"port"`

	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`

	// RequestTimeout bounds every individual Qdrant call.
	RequestTimeout Duration `koanf:"request_timeout"`

	// RetryAttempts is the number of retries for transient gRPC failures.
	RetryAttempts int `koanf:"retry_attempts"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`

	// Dimension is the fixed embedding dimensionality. Must match the
	// semantic index collections.
	Dimension int `koanf:"dimension"`

	Timeout Duration `koanf:"timeout"`
}

// AnswerConfig holds the generation provider and composition settings.
type AnswerConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`

	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`

	// ContextTokens is the canonical-document token budget for a single
	// answer request.
	ContextTokens int `koanf:"context_tokens"`
}

// IndexConfig holds message indexing settings.
type IndexConfig struct {
	// BatchSize is the number of texts embedded per provider call.
	BatchSize int `koanf:"batch_size"`

	// ExcerptRunes caps the truncated text excerpt stored in the
	// semantic-index payload.
	ExcerptRunes int `koanf:"excerpt_runes"`
}

// RetrievalConfig holds search-time settings.
type RetrievalConfig struct {
	TopK int `koanf:"top_k"`

	// OverFetch multiplies TopK when querying the index, leaving room
	// for server-side filters the index cannot express.
	OverFetch int `koanf:"over_fetch"`

	// MinTextLen drops candidates whose trimmed text is shorter.
	MinTextLen int `koanf:"min_text_len"`
}

// EnrichConfig holds contact-enrichment settings.
type EnrichConfig struct {
	// SliceCap is the maximum number of authors processed per trigger.
	SliceCap int `koanf:"slice_cap"`

	// Interval is the fixed delay between profile fetches.
	Interval Duration `koanf:"interval"`
}

// applyDefaults fills in defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.RequestTimeout == 0 {
		cfg.Qdrant.RequestTimeout = Duration(30 * time.Second)
	}
	if cfg.Qdrant.RetryAttempts == 0 {
		cfg.Qdrant.RetryAttempts = 3
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1536
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = Duration(30 * time.Second)
	}
	if cfg.Answer.BaseURL == "" {
		cfg.Answer.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4o-mini"
	}
	if cfg.Answer.Temperature == 0 {
		cfg.Answer.Temperature = 0.2
	}
	if cfg.Answer.MaxTokens == 0 {
		cfg.Answer.MaxTokens = 2048
	}
	if cfg.Answer.Timeout == 0 {
		cfg.Answer.Timeout = Duration(60 * time.Second)
	}
	if cfg.Answer.ContextTokens == 0 {
		cfg.Answer.ContextTokens = 3000
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 100
	}
	if cfg.Index.ExcerptRunes == 0 {
		cfg.Index.ExcerptRunes = 500
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 10
	}
	if cfg.Retrieval.OverFetch == 0 {
		cfg.Retrieval.OverFetch = 3
	}
	if cfg.Retrieval.MinTextLen == 0 {
		cfg.Retrieval.MinTextLen = 20
	}
	if cfg.Enrich.SliceCap == 0 {
		cfg.Enrich.SliceCap = 50
	}
	if cfg.Enrich.Interval == 0 {
		cfg.Enrich.Interval = Duration(time.Second)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("%w: qdrant port %d out of range", ErrInvalidConfig, c.Qdrant.Port)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", ErrInvalidConfig)
	}
	if c.Answer.Temperature < 0 || c.Answer.Temperature > 2 {
		return fmt.Errorf("%w: answer temperature %v out of range", ErrInvalidConfig, c.Answer.Temperature)
	}
	if c.Answer.ContextTokens <= 0 {
		return fmt.Errorf("%w: answer context_tokens must be positive", ErrInvalidConfig)
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("%w: index batch_size must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.OverFetch <= 0 {
		return fmt.Errorf("%w: retrieval over_fetch must be positive", ErrInvalidConfig)
	}
	if c.Enrich.SliceCap <= 0 {
		return fmt.Errorf("%w: enrich slice_cap must be positive", ErrInvalidConfig)
	}
	return nil
}
