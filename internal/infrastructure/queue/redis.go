package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// DefaultRedisKey is the pending list used when none is configured
const DefaultRedisKey = "fieldwork:submissions"

// RedisConfig holds Redis queue settings
type RedisConfig struct {
	Key string
	// ConsumerID selects this consumer's processing list. Empty means a
	// single consumer owns "<Key>:processing".
	ConsumerID string
	// MaxLength bounds the pending list; zero means unbounded
	MaxLength int64
}

// RedisQueue is a durable task queue on Redis lists. Received tasks move
// atomically to the consumer's own processing list and stay there until
// acknowledged, so a crashed consumer's tasks can be recovered when it
// restarts under the same ConsumerID.
type RedisQueue struct {
	client        *redis.Client
	pendingKey    string
	processingKey string
	maxLength     int64
	closed        atomic.Bool
	logger        *zap.Logger
}

// NewRedisQueue creates a queue on client
func NewRedisQueue(client *redis.Client, cfg RedisConfig, logger *zap.Logger) *RedisQueue {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	processingKey := cfg.Key + ":processing"
	if cfg.ConsumerID != "" {
		processingKey += ":" + cfg.ConsumerID
	}
	return &RedisQueue{
		client:        client,
		pendingKey:    cfg.Key,
		processingKey: processingKey,
		maxLength:     cfg.MaxLength,
		logger:        logger,
	}
}

var _ port.TaskQueue = (*RedisQueue)(nil)

// Enqueue pushes task onto the pending list
func (q *RedisQueue) Enqueue(ctx context.Context, task *entity.SubmissionTask) error {
	if q.closed.Load() {
		return port.ErrQueueClosed
	}

	if q.maxLength > 0 {
		n, err := q.client.LLen(ctx, q.pendingKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read queue length: %w", err)
		}
		if n >= q.maxLength {
			return port.ErrQueueFull
		}
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.pendingKey, data).Err(); err != nil {
		q.logger.Error("Failed to enqueue task",
			zap.String("task_id", task.ID),
			zap.Int64("report_id", task.ReportID),
			zap.Error(err))
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug("Task enqueued",
		zap.String("task_id", task.ID),
		zap.Int64("report_id", task.ReportID))
	return nil
}

// Receive moves the oldest pending task to the processing list.
// Redis blocks in whole seconds, so wait is rounded up to at least 1s;
// a non-positive wait polls without blocking.
func (q *RedisQueue) Receive(ctx context.Context, wait time.Duration) (*port.TaskDelivery, error) {
	if q.closed.Load() {
		return nil, port.ErrQueueClosed
	}

	var raw string
	var err error
	if wait <= 0 {
		raw, err = q.client.RPopLPush(ctx, q.pendingKey, q.processingKey).Result()
	} else {
		if wait < time.Second {
			wait = time.Second
		}
		raw, err = q.client.BRPopLPush(ctx, q.pendingKey, q.processingKey, wait).Result()
	}
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to receive task: %w", err)
	}

	var task entity.SubmissionTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// undecodable entries would be recovered forever
		q.client.LRem(ctx, q.processingKey, 1, raw)
		q.logger.Error("Dropping undecodable task", zap.String("raw", raw), zap.Error(err))
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}

	return &port.TaskDelivery{Task: &task, Receipt: raw}, nil
}

// Ack removes delivery from the processing list
func (q *RedisQueue) Ack(ctx context.Context, delivery *port.TaskDelivery) error {
	if err := q.client.LRem(ctx, q.processingKey, 1, delivery.Receipt).Err(); err != nil {
		return fmt.Errorf("failed to ack task %s: %w", delivery.Task.ID, err)
	}
	return nil
}

// Recover moves this consumer's unacknowledged tasks back to the receiving
// end of the pending list so they are redelivered before newer work. Other
// consumers' processing lists are left alone. Call it once on startup before
// workers begin receiving.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processingKey, q.pendingKey, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover tasks: %w", err)
		}
		moved++
	}

	if moved > 0 {
		q.logger.Info("Recovered unacknowledged tasks", zap.Int("count", moved))
	}
	return moved, nil
}

// Len returns the number of pending tasks
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pendingKey).Result()
}

// Close stops the queue. The Redis client is owned by the caller.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
