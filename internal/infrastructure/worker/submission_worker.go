package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// TaskProcessor performs submission attempts
type TaskProcessor interface {
	// Process returns nil when the task is finished and an error worth
	// retrying otherwise, unless it wraps port.ErrNoRetry
	Process(ctx context.Context, task *entity.SubmissionTask) error
	// GiveUp is called once retries are exhausted
	GiveUp(ctx context.Context, task *entity.SubmissionTask, cause error)
}

// SubmissionWorkerConfig holds configuration for the submission worker
type SubmissionWorkerConfig struct {
	Concurrency int
	PollWait    time.Duration
	MaxRetries  uint64
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// DefaultSubmissionWorkerConfig returns default configuration
func DefaultSubmissionWorkerConfig() SubmissionWorkerConfig {
	return SubmissionWorkerConfig{
		Concurrency: 2,
		PollWait:    2 * time.Second,
		MaxRetries:  5,
		BackoffBase: 2 * time.Second,
		BackoffCap:  5 * time.Minute,
	}
}

// WorkerStatus is a point-in-time view of a worker
type WorkerStatus struct {
	Name           string    `json:"name"`
	Running        bool      `json:"running"`
	ProcessedCount int64     `json:"processed_count"`
	FailedCount    int64     `json:"failed_count"`
	StartTime      time.Time `json:"start_time"`
	LastError      string    `json:"last_error,omitempty"`
}

// SubmissionWorker drains the task queue with a fixed pool of goroutines,
// retrying each task with capped exponential backoff.
type SubmissionWorker struct {
	config    SubmissionWorkerConfig
	queue     port.TaskQueue
	processor TaskProcessor
	logger    *zap.Logger

	processed atomic.Int64
	failed    atomic.Int64

	mu        sync.RWMutex
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	isRunning bool
	startTime time.Time
	lastError error
}

// NewSubmissionWorker creates a new submission worker
func NewSubmissionWorker(config SubmissionWorkerConfig, queue port.TaskQueue, processor TaskProcessor, logger *zap.Logger) *SubmissionWorker {
	defaults := DefaultSubmissionWorkerConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.PollWait <= 0 {
		config.PollWait = defaults.PollWait
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = defaults.BackoffBase
	}
	if config.BackoffCap < config.BackoffBase {
		config.BackoffCap = config.BackoffBase
	}
	return &SubmissionWorker{
		config:    config,
		queue:     queue,
		processor: processor,
		logger:    logger,
	}
}

// Start launches the receive loops
func (w *SubmissionWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("submission worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.isRunning = true
	w.startTime = time.Now()

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.receiveLoop(runCtx, i)
	}

	w.logger.Info("SubmissionWorker started",
		zap.Int("concurrency", w.config.Concurrency),
		zap.Uint64("max_retries", w.config.MaxRetries),
		zap.Duration("backoff_base", w.config.BackoffBase))
	return nil
}

// Stop cancels the loops and waits for in-flight tasks to return
func (w *SubmissionWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("SubmissionWorker stopped",
		zap.Int64("processed_count", w.processed.Load()),
		zap.Int64("failed_count", w.failed.Load()))
	return nil
}

// Name returns the worker name for identification
func (w *SubmissionWorker) Name() string {
	return "SubmissionWorker"
}

// Status reports counters for health checks
func (w *SubmissionWorker) Status() WorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := WorkerStatus{
		Name:           w.Name(),
		Running:        w.isRunning,
		ProcessedCount: w.processed.Load(),
		FailedCount:    w.failed.Load(),
		StartTime:      w.startTime,
	}
	if w.lastError != nil {
		s.LastError = w.lastError.Error()
	}
	return s
}

func (w *SubmissionWorker) receiveLoop(ctx context.Context, slot int) {
	defer w.wg.Done()

	for ctx.Err() == nil {
		delivery, err := w.queue.Receive(ctx, w.config.PollWait)
		if err != nil {
			if errors.Is(err, port.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			w.recordError(err)
			w.logger.Error("Failed to receive task", zap.Int("slot", slot), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.config.PollWait):
			}
			continue
		}
		if delivery == nil {
			continue
		}
		w.handle(ctx, delivery)
	}
}

// handle runs one delivery to completion. A task interrupted by shutdown is
// left unacknowledged so a durable queue can redeliver it.
func (w *SubmissionWorker) handle(ctx context.Context, delivery *port.TaskDelivery) {
	task := delivery.Task
	logger := w.logger.With(zap.String("task_id", task.ID), zap.Int64("report_id", task.ReportID))

	attempt := 0
	err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		attempt++
		err := w.processor.Process(ctx, task)
		if err == nil || errors.Is(err, port.ErrNoRetry) {
			return err
		}
		logger.Warn("Submission attempt failed, will retry",
			zap.Int("attempt", attempt),
			zap.Error(err))
		return retry.RetryableError(err)
	})

	if err != nil && ctx.Err() != nil {
		logger.Info("Shutdown interrupted submission, leaving task for redelivery", zap.Int("attempt", attempt))
		return
	}

	if err != nil {
		w.recordError(err)
		if errors.Is(err, port.ErrNoRetry) {
			logger.Error("Submission dropped", zap.Error(err))
		} else {
			logger.Error("Submission retries exhausted", zap.Int("attempts", attempt), zap.Error(err))
			w.processor.GiveUp(ctx, task, err)
		}
	}

	if ackErr := w.queue.Ack(ctx, delivery); ackErr != nil {
		logger.Error("Failed to ack task", zap.Error(ackErr))
	}

	if err != nil {
		w.failed.Add(1)
	} else {
		w.processed.Add(1)
	}
}

func (w *SubmissionWorker) backoff() retry.Backoff {
	b := retry.NewExponential(w.config.BackoffBase)
	b = retry.WithCappedDuration(w.config.BackoffCap, b)
	return retry.WithMaxRetries(w.config.MaxRetries, b)
}

func (w *SubmissionWorker) recordError(err error) {
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}
