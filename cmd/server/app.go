package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/quizgen-api/internal/backoff"
	"github.com/phrazzld/quizgen-api/internal/config"
	"github.com/phrazzld/quizgen-api/internal/events"
	"github.com/phrazzld/quizgen-api/internal/generation"
	"github.com/phrazzld/quizgen-api/internal/objectstore"
	"github.com/phrazzld/quizgen-api/internal/platform/gcs"
	"github.com/phrazzld/quizgen-api/internal/platform/gemini"
	"github.com/phrazzld/quizgen-api/internal/platform/postgres"
	"github.com/phrazzld/quizgen-api/internal/platform/redis"
	"github.com/phrazzld/quizgen-api/internal/platform/tracing"
	"github.com/phrazzld/quizgen-api/internal/queue"
	"github.com/phrazzld/quizgen-api/internal/queue/memqueue"
	"github.com/phrazzld/quizgen-api/internal/service"
	"github.com/phrazzld/quizgen-api/internal/store"
	"github.com/phrazzld/quizgen-api/internal/store/memstore"
	"github.com/phrazzld/quizgen-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Backends, any of which may be nil when an in-memory alternative is configured.
	db           *sql.DB
	redisClient  *goredis.Client
	gcsStore     *gcs.Store
	shutdownOTel tracing.ShutdownFunc

	transactor store.Transactor
	queue      queue.Backend
	objects    objectstore.Store
	generator  generation.Generator

	eventEmitter *events.InMemoryEventEmitter

	generationService *service.GenerationService
	uploadService     *service.UploadService
	questionService   *service.QuestionService
	publishService    *service.PublishService
	opsService        *service.OpsService

	// taskRunner is nil when the worker is disabled.
	taskRunner *task.TaskRunner
}

// newApplication creates a new application instance with all dependencies initialized.
// Backends that fail to initialize are released before the error is returned.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{
		config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	app.shutdownOTel, err = tracing.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	if err = app.setupStore(ctx); err != nil {
		return nil, err
	}
	if err = app.setupQueue(ctx); err != nil {
		return nil, err
	}
	if err = app.setupObjectStore(ctx); err != nil {
		return nil, err
	}
	if err = app.setupGenerator(ctx); err != nil {
		return nil, err
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewAlertHandler(logger))

	if err = app.setupServices(); err != nil {
		return nil, err
	}

	if cfg.Worker.Enabled {
		app.taskRunner = setupTaskRunner(app)
	}

	logger.Info("Application initialized successfully",
		"worker_enabled", cfg.Worker.Enabled)
	return app, nil
}

func (app *application) setupStore(ctx context.Context) error {
	if app.config.Database.Backend == "memory" {
		app.transactor = memstore.New()
		app.logger.Warn("Using in-memory store; data is lost on restart")
		return nil
	}

	db, err := setupAppDatabase(ctx, app.config.Database, app.logger)
	if err != nil {
		return err
	}
	app.db = db

	if err := postgres.Migrate(ctx, db, app.logger, "up"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	app.transactor = postgres.NewTransactor(db, app.logger)
	return nil
}

func (app *application) setupQueue(ctx context.Context) error {
	qc := app.config.Queue
	if qc.Backend == "memory" {
		app.queue = memqueue.New(app.logger, memqueue.WithDedupeTTL(qc.DedupeTTL))
		return nil
	}

	client, err := redis.NewClient(ctx, app.config.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redisClient = client
	app.queue = redis.NewQueue(client,
		redis.WithKeyPrefix(app.config.Redis.KeyPrefix),
		redis.WithDedupeTTL(qc.DedupeTTL),
		redis.WithLogger(app.logger),
	)
	app.logger.Info("Redis queue initialized", "addr", app.config.Redis.Addr)
	return nil
}

func (app *application) setupObjectStore(ctx context.Context) error {
	sc := app.config.Storage
	if sc.Provider == "memory" {
		app.objects = objectstore.NewMemory(sc.Bucket)
		return nil
	}

	s, err := gcs.NewStore(ctx, sc, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}
	app.gcsStore = s
	app.objects = s
	return nil
}

func (app *application) setupGenerator(ctx context.Context) error {
	if app.config.LLM.Provider == "draft" {
		app.generator = generation.Draft{}
		app.logger.Warn("Using draft generator; questions are placeholders")
		return nil
	}

	g, err := gemini.NewGenerator(
		ctx,
		app.logger.With("component", "llm_generator"),
		app.config.LLM,
		app.config.Generation.PromptVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	app.generator = g
	app.logger.Info("LLM generator initialized successfully", "model", app.config.LLM.ModelName)
	return nil
}

func (app *application) setupServices() error {
	cfg := app.config
	var err error

	retry := backoff.NewTable(
		cfg.Generation.RetryDelays(),
		time.Duration(cfg.Generation.JitterMS)*time.Millisecond,
	)

	app.generationService, err = service.NewGenerationService(
		app.transactor,
		app.queue,
		app.generator,
		retry,
		app.objects,
		app.eventEmitter,
		service.GenerationConfig{
			MaxAttempts:   cfg.Generation.MaxAttempts,
			Model:         cfg.Generation.Model,
			PromptVersion: cfg.Generation.PromptVersion,
			StaleAfter:    cfg.Generation.StaleGeneratingAfter,
			SignTTL:       cfg.Storage.SignTTL,
			Rates: generation.Rates{
				InputPer1K:  cfg.LLM.InputCostPer1K,
				OutputPer1K: cfg.LLM.OutputCostPer1K,
			},
		},
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create generation service: %w", err)
	}

	app.uploadService, err = service.NewUploadService(app.transactor, app.queue, app.objects, app.logger,
		service.WithSignTTL(cfg.Storage.SignTTL))
	if err != nil {
		return fmt.Errorf("failed to create upload service: %w", err)
	}

	app.questionService, err = service.NewQuestionService(app.transactor, app.objects, app.logger,
		service.WithSignTTL(cfg.Storage.SignTTL))
	if err != nil {
		return fmt.Errorf("failed to create question service: %w", err)
	}

	app.publishService, err = service.NewPublishService(app.transactor, app.eventEmitter, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create publish service: %w", err)
	}

	app.opsService, err = service.NewOpsService(app.transactor, app.queue, service.OpsConfig{
		WindowHours:       cfg.Ops.WindowHours,
		RecentErrorsLimit: cfg.Ops.RecentErrorsLimit,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create ops service: %w", err)
	}
	return nil
}

// setupTaskRunner registers the generation worker and stale page recovery.
// The runner is started by Run.
func setupTaskRunner(app *application) *task.TaskRunner {
	runner := task.NewTaskRunner(app.queue, task.TaskRunnerConfig{
		PollInterval:         app.config.Queue.PollInterval,
		JobTimeout:           app.config.Worker.JobTimeout,
		StalledAfter:         app.config.Queue.StalledAfter,
		StalledCheckInterval: app.config.Worker.StalledCheckInterval,
	}, app.logger)

	runner.Register(queue.Generation, task.GenerationHandler(app.generationService), app.config.Worker.GenerationConcurrency)
	runner.SetStaleRecoverer(app.generationService)
	return runner
}

// Run starts the worker and the HTTP server, and blocks until ctx is
// cancelled or the server fails.
func (app *application) Run(ctx context.Context) error {
	if app.taskRunner != nil {
		if err := app.taskRunner.Start(ctx); err != nil {
			app.cleanup()
			return fmt.Errorf("failed to start task runner: %w", err)
		}
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.gcsStore != nil {
		if err := app.gcsStore.Close(); err != nil {
			app.logger.Error("Error closing object storage client", "error", err)
		}
	}

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("Error closing redis client", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	if app.shutdownOTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.shutdownOTel(ctx); err != nil {
			app.logger.Error("Error shutting down tracing", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
