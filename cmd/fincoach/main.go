// Command fincoach runs the personal finance assistant HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fincoach/fincoach/artifact"
	s3artifact "github.com/fincoach/fincoach/artifact/s3"
	"github.com/fincoach/fincoach/assistant"
	"github.com/fincoach/fincoach/config"
	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/engine"
	"github.com/fincoach/fincoach/logging"
	"github.com/fincoach/fincoach/memory"
	"github.com/fincoach/fincoach/memory/chromem"
	"github.com/fincoach/fincoach/memory/embedding"
	"github.com/fincoach/fincoach/memory/qdrant"
	"github.com/fincoach/fincoach/model"
	"github.com/fincoach/fincoach/model/bedrock"
	"github.com/fincoach/fincoach/model/gemini"
	"github.com/fincoach/fincoach/server"
	"github.com/fincoach/fincoach/session"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, false)

	logger.Info("fincoach.start", "version", version, "provider", cfg.Model.Provider,
		"memory_backend", cfg.Memory.Backend, "artifact_backend", cfg.Artifacts.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llm, err := buildModel(ctx, cfg)
	if err != nil {
		logger.Error("fincoach.model.init", "error", err)
		os.Exit(1)
	}

	memoryStore, err := buildMemoryStore(ctx, cfg)
	if err != nil {
		logger.Error("fincoach.memory.init", "error", err)
		os.Exit(1)
	}

	artifactStore, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		logger.Error("fincoach.artifacts.init", "error", err)
		os.Exit(1)
	}

	sessionStore := session.NewInMemoryStore()

	eng := engine.New(
		engine.WithSessionStore(sessionStore),
		engine.WithMemoryStore(memoryStore),
		engine.WithArtifactStore(artifactStore),
		engine.WithLogger(logger),
	)

	svc := assistant.New(llm, eng, sessionStore, memoryStore, func(o *assistant.Options) {
		o.AgentTTL = cfg.Assistant.AgentTTL
		o.ConversationWindow = cfg.Assistant.ConversationWindow
		o.DefaultUserID = cfg.Assistant.DefaultUserID
		o.Logger = logger
	})

	srv := server.New(svc, func(o *server.Options) {
		o.AppName = "fincoach"
		o.Version = version
		o.BodyLimit = cfg.Server.BodyLimit
		o.Logger = logger
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Address)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("fincoach.serve", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("fincoach.shutdown", "signal", sig.String())
		if err := srv.Shutdown(); err != nil {
			logger.Error("fincoach.shutdown", "error", err)
			os.Exit(1)
		}
	}
}

func buildModel(ctx context.Context, cfg *config.Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case "bedrock":
		return bedrock.NewFromDefaultConfig(ctx, bedrock.Config{
			ModelID:     cfg.Model.ModelID,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		})
	case "gemini":
		return gemini.New(gemini.Config{
			APIKey:      cfg.Model.APIKey,
			ModelID:     cfg.Model.ModelID,
			Temperature: cfg.Model.Temperature,
		})
	default:
		return nil, fmt.Errorf("unknown model provider: %q", cfg.Model.Provider)
	}
}

func buildEmbedder(cfg *config.Config) embedding.Embedder {
	if cfg.Memory.Embedder == "openai" {
		return embedding.NewOpenAIEmbedder()
	}
	return embedding.NewLocalEmbedder()
}

func buildMemoryStore(ctx context.Context, cfg *config.Config) (core.MemoryStore, error) {
	switch cfg.Memory.Backend {
	case "inmemory":
		return memory.NewInMemoryStore(), nil
	case "chromem":
		return chromem.New(buildEmbedder(cfg))
	case "qdrant":
		store, err := qdrant.New(qdrant.Config{
			APIBase:        cfg.Memory.Qdrant.APIBase,
			APIKey:         cfg.Memory.Qdrant.APIKey,
			Collection:     cfg.Memory.Qdrant.Collection,
			Timeout:        cfg.Memory.Qdrant.Timeout,
			ScoreThreshold: cfg.Memory.Qdrant.ScoreThreshold,
		}, buildEmbedder(cfg))
		if err != nil {
			return nil, err
		}
		if err := store.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("ensure qdrant collection: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown memory backend: %q", cfg.Memory.Backend)
	}
}

func buildArtifactStore(ctx context.Context, cfg *config.Config) (core.ArtifactStore, error) {
	switch cfg.Artifacts.Backend {
	case "inmemory":
		return artifact.NewInMemoryStore(), nil
	case "s3":
		return s3artifact.NewFromDefaultConfig(ctx, s3artifact.Config{
			Bucket: cfg.Artifacts.S3.Bucket,
			Prefix: cfg.Artifacts.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown artifact backend: %q", cfg.Artifacts.Backend)
	}
}
