package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// DefaultMemoryCapacity is the buffer size used when none is configured
const DefaultMemoryCapacity = 256

// MemoryQueue is an in-process task queue for single-node deployments.
// Tasks do not survive a restart.
type MemoryQueue struct {
	tasks  chan *entity.SubmissionTask
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewMemoryQueue creates a buffered queue holding up to capacity tasks
func NewMemoryQueue(capacity int, logger *zap.Logger) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryQueue{
		tasks:  make(chan *entity.SubmissionTask, capacity),
		done:   make(chan struct{}),
		logger: logger,
	}
}

var _ port.TaskQueue = (*MemoryQueue)(nil)

// Enqueue adds task without waiting for a consumer
func (q *MemoryQueue) Enqueue(ctx context.Context, task *entity.SubmissionTask) error {
	select {
	case <-q.done:
		return port.ErrQueueClosed
	default:
	}

	select {
	case q.tasks <- task:
		q.logger.Debug("Task enqueued",
			zap.String("task_id", task.ID),
			zap.Int64("report_id", task.ReportID))
		return nil
	default:
		q.logger.Warn("Task queue full, rejecting task",
			zap.String("task_id", task.ID),
			zap.Int64("report_id", task.ReportID),
			zap.Int("capacity", cap(q.tasks)))
		return port.ErrQueueFull
	}
}

// Receive waits up to wait for the next task
func (q *MemoryQueue) Receive(ctx context.Context, wait time.Duration) (*port.TaskDelivery, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case task := <-q.tasks:
		return &port.TaskDelivery{Task: task, Receipt: uuid.NewString()}, nil
	case <-q.done:
		return nil, port.ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

// Ack is a no-op: a received task has already left the buffer
func (q *MemoryQueue) Ack(context.Context, *port.TaskDelivery) error {
	return nil
}

// Len returns the number of buffered tasks
func (q *MemoryQueue) Len(context.Context) (int64, error) {
	return int64(len(q.tasks)), nil
}

// Close stops further enqueues and wakes blocked receivers
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
