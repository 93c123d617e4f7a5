package container

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/dispatcher"
	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/application/service"
	"github.com/garyjia/fieldwork-reports/internal/application/submission"
	"github.com/garyjia/fieldwork-reports/internal/application/workflow"
	"github.com/garyjia/fieldwork-reports/internal/domain/compensation"
	"github.com/garyjia/fieldwork-reports/internal/domain/event"
	infraLark "github.com/garyjia/fieldwork-reports/internal/infrastructure/external/lark"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/lock"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/queue"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/worker"
	"github.com/garyjia/fieldwork-reports/migrations"
	"github.com/garyjia/fieldwork-reports/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Report    port.ReportRepository
	History   port.HistoryRepository
	PriceList port.PriceListRepository
	Order     port.OrderRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Report service.ReportService
	Tariff service.TariffService
}

// ProvideDatabase opens the database and applies pending migrations.
// Migrations come from MigrationsDir when set, otherwise from the binary.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var source fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		source = os.DirFS(cfg.MigrationsDir)
	}
	if err := database.NewMigrator(db, logger).RunMigrations(source); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Report:    repository.NewReportRepository(db.DB, logger),
		History:   repository.NewHistoryRepository(db.DB, logger),
		PriceList: repository.NewPriceListRepository(db.DB, logger),
		Order:     repository.NewOrderRepository(db.DB, logger),
	}, nil
}

// ProvideRedis connects to Redis, or returns nil when no address is configured.
func ProvideRedis(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		logger.Info("Redis not configured, using in-process queue without report locks")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))
	return client, nil
}

// ProvideQueue creates the configured task queue. A Redis queue first
// requeues tasks a previous process left unacknowledged.
func ProvideQueue(ctx context.Context, cfg *SubmissionConfig, client *redis.Client, logger *zap.Logger) (port.TaskQueue, error) {
	switch cfg.Queue {
	case QueueRedis:
		if client == nil {
			return nil, fmt.Errorf("redis queue requires a redis connection")
		}
		q := queue.NewRedisQueue(client, queue.RedisConfig{
			Key:        cfg.QueueKey,
			ConsumerID: cfg.ConsumerID,
			MaxLength:  int64(cfg.QueueCapacity),
		}, logger)
		if _, err := q.Recover(ctx); err != nil {
			return nil, err
		}
		return q, nil
	default:
		return queue.NewMemoryQueue(cfg.QueueCapacity, logger), nil
	}
}

// ProvideLocker returns a Redis report locker, or nil without Redis.
func ProvideLocker(client *redis.Client, logger *zap.Logger) port.Locker {
	if client == nil {
		return nil
	}
	return lock.NewRedisLocker(client, logger)
}

// ProvideSubmissionClient creates the Lark approval submitter.
func ProvideSubmissionClient(cfg *LarkConfig, logger *zap.Logger) (port.SubmissionClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}

	sdk := infraLark.NewSDKClient(infraLark.Config{
		AppID:        cfg.AppID,
		AppSecret:    cfg.AppSecret,
		ApprovalCode: cfg.ApprovalCode,
	}, logger)

	return infraLark.NewSubmitter(infraLark.NewApprovalAPI(sdk, logger), logger), nil
}

// ProvideDispatcher creates the event dispatcher with its queue and audit
// subscriptions.
func ProvideDispatcher(q port.TaskQueue, logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}))

	submission.Register(d, q)

	d.SubscribeNamed(event.TypeReportStatusChanged, "status-log", func(_ context.Context, evt *event.Event) error {
		logger.Info("Report state changed",
			zap.Int64("report_id", evt.ReportID),
			zap.String("order_ref", evt.OrderRef),
			zap.String("from", evt.GetPayloadString("previous_state")),
			zap.String("to", evt.GetPayloadString("new_state")),
			zap.String("trigger", evt.GetPayloadString("trigger")),
			zap.String("actor", evt.GetPayloadString("actor")))
		return nil
	})

	return d
}

// PricingBundle holds the tariff service and the calculator built on it.
// The workflow engine and the report service share one calculator.
type PricingBundle struct {
	Tariff     service.TariffService
	Calculator *compensation.Calculator
}

// ProvidePricing creates the tariff service and calculator.
func ProvidePricing(repos *RepositoryBundle, tx port.TransactionManager, logger *zap.Logger) *PricingBundle {
	tariffs := service.NewTariffService(repos.PriceList, tx, &zapLoggerAdapter{logger: logger})
	return &PricingBundle{
		Tariff:     tariffs,
		Calculator: compensation.NewCalculator(tariffs),
	}
}

// WorkflowDeps holds dependencies for the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Calculator *compensation.Calculator
	Locker     port.Locker
	LockTTL    time.Duration
}

// ProvideWorkflowEngine creates the report workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) workflow.WorkflowEngine {
	opts := []workflow.EngineOption{workflow.WithDispatcher(deps.Dispatcher)}
	if deps.Calculator != nil {
		opts = append(opts, workflow.WithCalculator(deps.Calculator))
	}
	if deps.Locker != nil {
		opts = append(opts, workflow.WithLocker(deps.Locker, deps.LockTTL))
	}
	return workflow.NewEngine(deps.Repos.Report, deps.Repos.History, deps.TxManager, opts...)
}

// ProvideServices creates all application services.
func ProvideServices(
	repos *RepositoryBundle,
	tx port.TransactionManager,
	engine workflow.WorkflowEngine,
	pricing *PricingBundle,
	logger *zap.Logger,
) *ServiceBundle {
	return &ServiceBundle{
		Tariff: pricing.Tariff,
		Report: service.NewReportService(
			repos.Report,
			repos.Order,
			repos.History,
			tx,
			engine,
			pricing.Calculator,
			&zapLoggerAdapter{logger: logger},
		),
	}
}

// ProvideSubmissionWorker creates the processor and the worker draining q.
func ProvideSubmissionWorker(
	cfg *SubmissionConfig,
	q port.TaskQueue,
	repos *RepositoryBundle,
	engine workflow.WorkflowEngine,
	client port.SubmissionClient,
	logger *zap.Logger,
) *worker.SubmissionWorker {
	processor := submission.NewProcessor(repos.Report, engine, client, submission.ProcessorConfig{
		Environment: cfg.Environment,
		Timeout:     cfg.Timeout,
	}, &zapLoggerAdapter{logger: logger})

	return worker.NewSubmissionWorker(worker.SubmissionWorkerConfig{
		Concurrency: cfg.Workers,
		PollWait:    cfg.PollWait,
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	}, q, processor, logger)
}
