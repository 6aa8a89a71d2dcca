package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.Equal(t, "gemini-2.0-flash-exp", cfg.Model.ModelID)
	assert.Equal(t, 0.7, cfg.Model.Temperature)
	assert.Equal(t, "chromem", cfg.Memory.Backend)
	assert.Equal(t, "local", cfg.Memory.Embedder)
	assert.Equal(t, "inmemory", cfg.Artifacts.Backend)
	assert.Equal(t, "default_user", cfg.Assistant.DefaultUserID)
	assert.Equal(t, 10, cfg.Assistant.ConversationWindow)
	assert.Equal(t, 30*time.Minute, cfg.Assistant.AgentTTL)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("QDRANT_KEY", "secret-key")

	path := writeFile(t, t.TempDir(), "config.yaml", `
server:
  address: ":9090"
model:
  provider: bedrock
  model_id: anthropic.claude-3-5-sonnet-20240620-v1:0
  temperature: 0.2
memory:
  backend: qdrant
  embedder: openai
  qdrant:
    api_base: http://localhost:6333
    api_key: ${QDRANT_KEY}
    collection: memories
assistant:
  conversation_window: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "bedrock", cfg.Model.Provider)
	assert.Equal(t, 0.2, cfg.Model.Temperature)
	assert.Equal(t, "qdrant", cfg.Memory.Backend)
	assert.Equal(t, "secret-key", cfg.Memory.Qdrant.APIKey)
	assert.Equal(t, "memories", cfg.Memory.Qdrant.Collection)
	assert.Equal(t, 20, cfg.Assistant.ConversationWindow)

	// Untouched sections keep their defaults.
	assert.Equal(t, "default_user", cfg.Assistant.DefaultUserID)
	assert.Equal(t, "inmemory", cfg.Artifacts.Backend)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "GEMINI_API_KEY=from-dotenv\n")
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Model.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.ErrorContains(t, err, "read config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "server: [not a map")

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Model.APIKey = "key"
		return cfg
	}

	t.Run("defaults valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base()
		cfg.Model.Provider = "openrouter"
		assert.ErrorContains(t, cfg.Validate(), "unknown model.provider")
	})

	t.Run("gemini requires key", func(t *testing.T) {
		cfg := base()
		cfg.Model.APIKey = ""
		assert.ErrorContains(t, cfg.Validate(), "model.api_key is required")
	})

	t.Run("bedrock works without key", func(t *testing.T) {
		cfg := base()
		cfg.Model.Provider = "bedrock"
		cfg.Model.ModelID = "anthropic.claude-3-5-sonnet-20240620-v1:0"
		cfg.Model.APIKey = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("qdrant requires api base", func(t *testing.T) {
		cfg := base()
		cfg.Memory.Backend = "qdrant"
		assert.ErrorContains(t, cfg.Validate(), "memory.qdrant.api_base")
	})

	t.Run("unknown memory backend", func(t *testing.T) {
		cfg := base()
		cfg.Memory.Backend = "redis"
		assert.ErrorContains(t, cfg.Validate(), "unknown memory.backend")
	})

	t.Run("unknown embedder", func(t *testing.T) {
		cfg := base()
		cfg.Memory.Embedder = "cohere"
		assert.ErrorContains(t, cfg.Validate(), "unknown memory.embedder")
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		cfg := base()
		cfg.Artifacts.Backend = "s3"
		assert.ErrorContains(t, cfg.Validate(), "artifacts.s3.bucket")
	})

	t.Run("window must be positive", func(t *testing.T) {
		cfg := base()
		cfg.Assistant.ConversationWindow = 0
		assert.ErrorContains(t, cfg.Validate(), "conversation_window")
	})
}
