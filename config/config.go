// Package config loads the application configuration from YAML with
// ${ENV_VAR} expansion. A .env file in the working directory is loaded into
// the environment first, so secrets can stay out of the YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Memory    MemoryConfig    `yaml:"memory"`
	Artifacts ArtifactConfig  `yaml:"artifacts"`
	Assistant AssistantConfig `yaml:"assistant"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address   string `yaml:"address"`
	BodyLimit int    `yaml:"body_limit"`
}

// ModelConfig selects and tunes the LLM provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // bedrock, gemini
	ModelID     string  `yaml:"model_id"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"` // gemini only; bedrock uses the AWS credential chain
}

// MemoryConfig selects the long-term memory backend.
type MemoryConfig struct {
	Backend  string       `yaml:"backend"`  // inmemory, chromem, qdrant
	Embedder string       `yaml:"embedder"` // local, openai
	Qdrant   QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds the connection settings for the qdrant backend.
type QdrantConfig struct {
	APIBase        string        `yaml:"api_base"`
	APIKey         string        `yaml:"api_key"`
	Collection     string        `yaml:"collection"`
	Timeout        time.Duration `yaml:"timeout"`
	ScoreThreshold float64       `yaml:"score_threshold"`
}

// ArtifactConfig selects the artifact storage backend.
type ArtifactConfig struct {
	Backend string   `yaml:"backend"` // inmemory, s3
	S3      S3Config `yaml:"s3"`
}

// S3Config holds the bucket settings for the s3 artifact backend.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// AssistantConfig tunes the assistant service.
type AssistantConfig struct {
	DefaultUserID      string        `yaml:"default_user_id"`
	ConversationWindow int           `yaml:"conversation_window"`
	AgentTTL           time.Duration `yaml:"agent_ttl"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Default returns a configuration with sensible defaults: gemini as the
// provider, chromem memory with the local embedder and in-memory artifacts.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Model: ModelConfig{
			Provider:    "gemini",
			ModelID:     "gemini-2.0-flash-exp",
			Temperature: 0.7,
			APIKey:      os.Getenv("GEMINI_API_KEY"),
		},
		Memory: MemoryConfig{
			Backend:  "chromem",
			Embedder: "local",
		},
		Artifacts: ArtifactConfig{
			Backend: "inmemory",
		},
		Assistant: AssistantConfig{
			DefaultUserID:      "default_user",
			ConversationWindow: 10,
			AgentTTL:           30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path on top of the defaults. Environment
// variables in the format ${VAR_NAME} are expanded; a .env file in the
// working directory is loaded first if present. An empty path returns the
// validated defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}

	switch c.Model.Provider {
	case "bedrock":
	case "gemini":
		if c.Model.APIKey == "" {
			return fmt.Errorf("model.api_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown model.provider: %q", c.Model.Provider)
	}
	if c.Model.ModelID == "" {
		return fmt.Errorf("model.model_id is required")
	}

	switch c.Memory.Backend {
	case "inmemory", "chromem":
	case "qdrant":
		if c.Memory.Qdrant.APIBase == "" {
			return fmt.Errorf("memory.qdrant.api_base is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("unknown memory.backend: %q", c.Memory.Backend)
	}

	switch c.Memory.Embedder {
	case "local", "openai":
	default:
		return fmt.Errorf("unknown memory.embedder: %q", c.Memory.Embedder)
	}

	switch c.Artifacts.Backend {
	case "inmemory":
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("artifacts.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown artifacts.backend: %q", c.Artifacts.Backend)
	}

	if c.Assistant.ConversationWindow <= 0 {
		return fmt.Errorf("assistant.conversation_window must be positive")
	}
	if c.Assistant.AgentTTL <= 0 {
		return fmt.Errorf("assistant.agent_ttl must be positive")
	}

	return nil
}
