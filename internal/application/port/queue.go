package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

var (
	// ErrQueueFull is returned by a non-blocking Enqueue on a saturated queue
	ErrQueueFull = errors.New("task queue is full")
	// ErrQueueClosed is returned after Close
	ErrQueueClosed = errors.New("task queue is closed")
)

// TaskDelivery is a received task plus the handle needed to acknowledge it
type TaskDelivery struct {
	Task    *entity.SubmissionTask
	Receipt string
}

// TaskQueue carries submission tasks from the dispatcher to workers
type TaskQueue interface {
	// Enqueue must not block on consumers
	Enqueue(ctx context.Context, task *entity.SubmissionTask) error
	// Receive waits up to wait for a task; it returns nil, nil when none arrived
	Receive(ctx context.Context, wait time.Duration) (*TaskDelivery, error)
	// Ack removes a finished delivery so it is not recovered on restart
	Ack(ctx context.Context, delivery *TaskDelivery) error
	Len(ctx context.Context) (int64, error)
	Close() error
}

// Locker provides short-lived mutual exclusion keyed by name
type Locker interface {
	// Acquire returns a release func, or ok=false when another holder has it
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}
