package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/orchestrator"
	"github.com/fyrsmithlabs/docrag/internal/prompt"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/secrets"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// newBackend creates the language model backend. Tests replace it.
var newBackend = func(cfg llm.Config) (llm.Backend, error) {
	return llm.NewBackend(cfg)
}

// app holds the wired components for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	embedder  *embeddings.Service
	store     *vectorstore.ChromemStore
	pipeline  *ingestion.Pipeline
	engine    *retrieval.Engine
	builder   *prompt.Builder

	// Set only when the app was built with withLLM.
	backend llm.Backend
	chain   *orchestrator.Chain
}

// newApp loads the configuration and wires every component. The language
// model backend is only created when withLLM is set, so indexing commands
// work without a running model server.
//
// Initialization order:
//  1. Configuration (file + environment)
//  2. Telemetry, then the logger bridged to it
//  3. Embedding service with its cache
//  4. Vector store, ingestion pipeline with secret scrubbing, retrieval
//     engine, prompt builder
//  5. Language model backend and query chain
func newApp(ctx context.Context, withLLM bool) (_ *app, err error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Logging.Validate(); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}

	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.telemetry, err = telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	a.logger, err = logging.New(&cfg.Logging, a.telemetry.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	provider, err := embeddings.NewProvider(cfg.Embeddings.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	a.embedder, err = embeddings.NewService(provider,
		embeddings.WithCache(embeddings.NewLRUCache(cfg.Embeddings.CacheSize, cfg.Embeddings.CacheTTL)),
		embeddings.WithLogger(a.logger.Named("embeddings")),
	)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("creating embedding service: %w", err)
	}

	a.store, err = vectorstore.NewChromemStore(cfg.VectorStore, a.embedder, a.logger.Named("vectorstore"))
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	chunks, err := chunker.New(cfg.Chunking)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	pipelineOpts := []ingestion.Option{ingestion.WithCacheStats(a.embedder)}
	if cfg.Secrets.Enabled {
		scrubber, err := secrets.New(cfg.Secrets)
		if err != nil {
			return nil, fmt.Errorf("creating secret scrubber: %w", err)
		}
		pipelineOpts = append(pipelineOpts, ingestion.WithScrubber(scrubber))
	}

	a.pipeline, err = ingestion.NewPipeline(cfg.Ingestion, chunks, a.store, a.logger.Named("ingestion"), pipelineOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating ingestion pipeline: %w", err)
	}

	a.engine, err = retrieval.NewEngine(a.store, cfg.Retrieval, a.logger.Named("retrieval"))
	if err != nil {
		return nil, fmt.Errorf("creating retrieval engine: %w", err)
	}

	a.builder, err = prompt.NewBuilder(a.engine, cfg.Prompt, a.logger.Named("prompt"))
	if err != nil {
		return nil, fmt.Errorf("creating prompt builder: %w", err)
	}

	if withLLM {
		bc := cfg.LLM.BackendConfig()
		a.backend, err = newBackend(bc)
		if err != nil {
			return nil, fmt.Errorf("creating llm backend: %w", err)
		}

		a.chain, err = orchestrator.NewChain(a.engine, a.builder, a.backend, orchestrator.Config{
			Timeout:     bc.Timeout,
			MaxTokens:   bc.MaxTokens,
			Temperature: bc.Temperature,
		}, a.logger.Named("orchestrator"))
		if err != nil {
			return nil, fmt.Errorf("creating query chain: %w", err)
		}
	}

	a.logger.Debug("docrag initialized",
		zap.String("version", version),
		zap.String("embedding_model", a.embedder.ModelName()),
		zap.String("collection", cfg.VectorStore.Collection),
		zap.Bool("llm", withLLM))
	return a, nil
}

// Close releases every component in reverse initialization order.
func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		errs = append(errs, a.telemetry.Shutdown(shutdownCtx))
		cancel()
	}
	if a.logger != nil {
		if err := errors.Join(errs...); err != nil {
			a.logger.Warn("shutdown incomplete", zap.Error(err))
		}
		_ = logging.Sync(a.logger)
	}
}
