package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/events"
	"github.com/echoscribe/echoscribe-api/internal/job"
	"github.com/echoscribe/echoscribe-api/internal/pipeline"
	"github.com/echoscribe/echoscribe-api/internal/platform/assemblyai"
	"github.com/echoscribe/echoscribe-api/internal/platform/gemini"
	"github.com/echoscribe/echoscribe-api/internal/platform/openai"
	"github.com/echoscribe/echoscribe-api/internal/platform/postgres"
	"github.com/echoscribe/echoscribe-api/internal/platform/whispercpp"
	"github.com/echoscribe/echoscribe-api/internal/provider"
	"github.com/echoscribe/echoscribe-api/internal/ratelimit"
	"github.com/echoscribe/echoscribe-api/internal/retry"
	"github.com/echoscribe/echoscribe-api/internal/service"
	"github.com/echoscribe/echoscribe-api/internal/store"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// application carries the process-wide dependencies from initialization in
// newApplication through cleanup at shutdown.
type application struct {
	config *config.Config

	logger *slog.Logger
	db     *sql.DB

	noteStore    store.NoteStore
	jobStore     store.JobStore
	taskStore    store.TaskStore
	attemptStore store.AttemptStore

	// Pipeline
	metrics     *track.Metrics
	registry    *provider.Registry
	coordinator *pipeline.Coordinator

	// Services
	noteService *service.NoteService

	// Event system
	eventEmitter events.EventEmitter

	// Job handling
	jobRunner *job.Runner
}

// newApplication wires stores, providers, pipeline stages, the job runner and
// the note service over an already-open database. The job runner starts here
// so jobs left over from a previous run are recovered before traffic arrives.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.noteStore = postgres.NewPostgresNoteStore(db)
	app.jobStore = postgres.NewPostgresJobStore(db)
	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.attemptStore = postgres.NewPostgresAttemptStore(db)

	// Metrics are in-memory and shared by the pipeline stages, the job
	// runner and the metrics endpoint
	app.metrics = track.NewMetrics()

	emitter := events.NewInMemoryEventEmitter(logger)
	app.eventEmitter = emitter

	// Resolve provider clients, the failover registry and the per-provider
	// token buckets
	registry, limiter, err := setupProviders(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up providers: %w", err)
	}
	app.registry = registry
	logger.Info("provider registry initialized",
		"transcribers", len(registry.Transcribers()))

	// Assemble the pipeline stages and the coordinator that drives them
	app.coordinator, err = setupPipeline(app, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up pipeline: %w", err)
	}

	factory := job.NewNoteJobFactory(app.coordinator, logger)
	app.jobRunner, err = setupJobRunner(app, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to set up job runner: %w", err)
	}

	// Admission events become queued jobs; terminal events become log lines.
	emitter.RegisterHandler(job.NewJobRequestEventHandler(factory, app.jobRunner, logger))
	emitter.RegisterHandler(service.NewNoteTerminalLogger(logger))

	app.noteService, err = service.NewNoteService(
		db,
		app.noteStore,
		app.jobStore,
		app.taskStore,
		app.eventEmitter,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create note service: %w", err)
	}

	logger.Info("Application wired",
		"workers", cfg.Pipeline.WorkerCount,
		"queue_size", cfg.Pipeline.QueueSize)
	return app, nil
}

// Run serves HTTP until a stop signal arrives. Cleanup runs inside
// startHTTPServer once the listener has drained.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// setupProviders builds the provider clients, registers their token buckets
// and returns the registry with the transcription chain in failover priority
// order: managed APIs first, the local fallback last.
func setupProviders(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*provider.Registry, *ratelimit.Limiter, error) {
	limiter := ratelimit.New()

	openaiClient, err := openai.New(cfg.Providers.OpenAI)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	limiter.Register(openaiClient.Name(),
		cfg.Providers.OpenAI.RateLimit.Capacity,
		cfg.Providers.OpenAI.RateLimit.RefillPerSecond)

	assemblyClient, err := assemblyai.New(cfg.Providers.AssemblyAI)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize assemblyai client: %w", err)
	}
	limiter.Register(assemblyClient.Name(),
		cfg.Providers.AssemblyAI.RateLimit.Capacity,
		cfg.Providers.AssemblyAI.RateLimit.RefillPerSecond)

	chain := []provider.Transcriber{openaiClient, assemblyClient}

	if cfg.Providers.WhisperCPP.Enabled {
		whisperClient, err := whispercpp.New(cfg.Providers.WhisperCPP)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize whispercpp client: %w", err)
		}
		// Local inference has no vendor quota, so no bucket is registered
		chain = append(chain, whisperClient)
		logger.Info("local whisper.cpp fallback enabled",
			"model_path", cfg.Providers.WhisperCPP.ModelPath)
	}

	geminiClient, err := gemini.New(ctx, cfg.Providers.Gemini, cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	limiter.Register(geminiClient.Name(),
		cfg.Providers.Gemini.RateLimit.Capacity,
		cfg.Providers.Gemini.RateLimit.RefillPerSecond)

	registry, err := provider.NewRegistry(chain, geminiClient, geminiClient)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build provider registry: %w", err)
	}
	return registry, limiter, nil
}

// setupPipeline assembles the transcription, extraction and embedding stages
// and the coordinator that drives a note through them.
func setupPipeline(app *application, limiter *ratelimit.Limiter) (*pipeline.Coordinator, error) {
	cfg := app.config

	transcribeExec, err := retry.NewExecutor(transcriptionRetryPolicy(cfg.Providers))
	if err != nil {
		return nil, fmt.Errorf("invalid transcription retry policy: %w", err)
	}

	extractExec, err := retry.NewExecutor(retryPolicy(cfg.Providers.Gemini.Retry))
	if err != nil {
		return nil, fmt.Errorf("invalid extraction retry policy: %w", err)
	}

	// Embedding failures never fail a note, so it gets a smaller budget
	embedPolicy := retryPolicy(cfg.Providers.Gemini.Retry)
	embedPolicy.MaxAttempts = cfg.Embedding.MaxAttempts
	embedExec, err := retry.NewExecutor(embedPolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid embedding retry policy: %w", err)
	}

	orchestrator, err := pipeline.NewTranscriptionOrchestrator(
		app.registry.Transcribers(),
		limiter,
		transcribeExec,
		app.attemptStore,
		app.metrics,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription orchestrator: %w", err)
	}

	extractionProvider, err := app.registry.Extractor()
	if err != nil {
		return nil, fmt.Errorf("no extraction provider configured: %w", err)
	}
	extractor, err := pipeline.NewStructuredExtractor(
		extractionProvider,
		limiter,
		extractExec,
		app.attemptStore,
		app.metrics,
		cfg.Extraction,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create structured extractor: %w", err)
	}

	embeddingProvider, err := app.registry.Embedder()
	if err != nil {
		return nil, fmt.Errorf("no embedding provider configured: %w", err)
	}
	embedStage, err := pipeline.NewEmbeddingStage(
		embeddingProvider,
		limiter,
		embedExec,
		app.attemptStore,
		app.metrics,
		cfg.Embedding,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding stage: %w", err)
	}

	persister, err := service.NewNotePersister(app.db, app.noteStore, app.taskStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create note persister: %w", err)
	}

	coordinator, err := pipeline.NewCoordinator(
		persister,
		pipeline.NewStorageResolver(),
		orchestrator,
		extractor,
		embedStage,
		app.eventEmitter,
		app.metrics,
		cfg.Pipeline.WallClockBudget,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline coordinator: %w", err)
	}
	return coordinator, nil
}

// setupJobRunner builds and starts the worker pool. Start also requeues jobs
// a previous process left pending or claimed past their TTL.
func setupJobRunner(app *application, factory *job.NoteJobFactory) (*job.Runner, error) {
	runner := job.NewRunner(app.jobStore, factory, job.RunnerConfig{
		WorkerCount:   app.config.Pipeline.WorkerCount,
		QueueSize:     app.config.Pipeline.QueueSize,
		ClaimTTL:      app.config.Pipeline.ClaimTTL,
		SweepInterval: app.config.Pipeline.SweepInterval,
	}, app.metrics, app.logger)

	if err := runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start job runner: %w", err)
	}
	return runner, nil
}

// retryPolicy converts a config retry block into an executor policy.
func retryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		Multiplier:     cfg.Multiplier,
		AttemptTimeout: cfg.AttemptTimeout,
	}
}

// transcriptionRetryPolicy builds the failover chain's shared retry policy.
// The chain runs under one executor, so its per-attempt timeout must fit the
// slowest provider in it.
func transcriptionRetryPolicy(p config.ProvidersConfig) retry.Policy {
	policy := retryPolicy(p.OpenAI.Retry)
	if p.AssemblyAI.Retry.AttemptTimeout > policy.AttemptTimeout {
		policy.AttemptTimeout = p.AssemblyAI.Retry.AttemptTimeout
	}
	return policy
}

// cleanup stops the workers before closing the database; draining workers
// still hold pool connections while they finish their current job.
func (app *application) cleanup() {
	// Queued jobs stay persisted as pending and are recovered on next start.
	if app.jobRunner != nil {
		app.jobRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Database close failed", "error", err)
		}
	}

	app.logger.Info("Application stopped")
}
