package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/dispatcher"
	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/application/service"
	"github.com/garyjia/fieldwork-reports/internal/application/workflow"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/export"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/worker"
	"github.com/garyjia/fieldwork-reports/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Redis (nil when not configured)
	redis  *redis.Client
	locker port.Locker

	// Infrastructure - External
	submissionClient port.SubmissionClient
	statementWriter  *export.StatementWriter

	// Application
	queue      port.TaskQueue
	dispatcher dispatcher.Dispatcher
	pricing    *PricingBundle
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	// Workers
	workers          *worker.Manager
	submissionWorker *worker.SubmissionWorker

	// Lifecycle
	mu     sync.RWMutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// Option customizes a Container before Start.
type Option func(*Container)

// WithSubmissionClient replaces the Lark submitter, e.g. for local runs.
func WithSubmissionClient(client port.SubmissionClient) Option {
	return func(c *Container) {
		c.submissionClient = client
	}
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database, repositories and Redis
// 2. Task queue and external submission client
// 3. Event dispatcher and workflow engine
// 4. Application services and tariff seed
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.logger.Info("Starting container initialization")

	if err := c.initStorage(runCtx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Database and Redis initialized")

	if err := c.initTransport(runCtx); err != nil {
		return fmt.Errorf("failed to initialize queue and external clients: %w", err)
	}
	c.logger.Info("Queue and external clients initialized")

	c.initWorkflow()
	c.logger.Info("Dispatcher and workflow engine initialized")

	if err := c.initServices(runCtx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(runCtx); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.queue != nil {
		if err := c.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Error("Failed to close redis", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.database == nil {
		set("database", false, "not initialized")
	} else if err := c.database.Health(ctx); err != nil {
		set("database", false, err.Error())
	} else {
		set("database", true, "")
	}

	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			set("redis", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("redis", true, "")
		}
	}

	if c.queue == nil {
		set("queue", false, "not initialized")
	} else if n, err := c.queue.Len(ctx); err != nil {
		set("queue", false, err.Error())
	} else {
		set("queue", true, fmt.Sprintf("%s backend, %d pending", c.config.Submission.Queue, n))
	}

	if c.workers == nil || c.submissionWorker == nil {
		set("workers", false, "not initialized")
	} else {
		ws := c.submissionWorker.Status()
		set("workers", c.workers.IsRunning(), fmt.Sprintf("processed %d, failed %d", ws.ProcessedCount, ws.FailedCount))
	}

	if c.dispatcher == nil {
		set("dispatcher", false, "not initialized")
	} else {
		set("dispatcher", true, "")
	}

	return status
}

func (c *Container) initStorage(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = dbBundle.DB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.database, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos

	client, err := ProvideRedis(ctx, &c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	c.redis = client
	c.locker = ProvideLocker(client, c.logger)
	return nil
}

func (c *Container) initTransport(ctx context.Context) error {
	q, err := ProvideQueue(ctx, &c.config.Submission, c.redis, c.logger)
	if err != nil {
		return err
	}
	c.queue = q

	if c.submissionClient == nil {
		client, err := ProvideSubmissionClient(&c.config.Lark, c.logger)
		if err != nil {
			return err
		}
		c.submissionClient = client
	}

	c.statementWriter = export.NewStatementWriter(c.logger)
	return nil
}

func (c *Container) initWorkflow() {
	c.dispatcher = ProvideDispatcher(c.queue, c.logger)
	c.pricing = ProvidePricing(c.repositories, c.db, c.logger)
	c.workflow = ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Calculator: c.pricing.Calculator,
		Locker:     c.locker,
		LockTTL:    c.config.Redis.LockTTL,
	})
}

func (c *Container) initServices(ctx context.Context) error {
	c.services = ProvideServices(c.repositories, c.db, c.workflow, c.pricing, c.logger)

	if len(c.config.Tariffs) > 0 {
		if err := c.services.Tariff.Seed(ctx, c.config.Tariffs); err != nil {
			return fmt.Errorf("failed to seed tariffs: %w", err)
		}
	}
	return nil
}

func (c *Container) initWorkers(ctx context.Context) error {
	c.submissionWorker = ProvideSubmissionWorker(
		&c.config.Submission, c.queue, c.repositories, c.workflow, c.submissionClient, c.logger)

	c.workers = worker.NewManager(c.logger)
	c.workers.Register(c.submissionWorker)

	return c.workers.StartAll(ctx)
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// StatementWriter returns the XLSX statement renderer.
func (c *Container) StatementWriter() *export.StatementWriter {
	return c.statementWriter
}

// Queue returns the submission task queue.
func (c *Container) Queue() port.TaskQueue {
	return c.queue
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// NewLoggerAdapter exposes the key-value adapter for adapters outside the
// container, such as the HTTP server.
func NewLoggerAdapter(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
// Dispatch chatter goes to debug.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
