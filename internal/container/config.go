// Package container provides dependency injection and lifecycle management
// for the field-work report service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// Queue backends
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Lark       LarkConfig
	Submission SubmissionConfig
	Server     ServerConfig

	// Tariffs are upserted into the price-list store on startup
	Tariffs []*entity.PriceList
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// Redis: the memory queue is used and reports are not locked.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// LockTTL bounds how long a transition may hold a report lock
	LockTTL time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID        string
	AppSecret    string
	ApprovalCode string
}

// SubmissionConfig holds settings of the external submission pipeline.
type SubmissionConfig struct {
	// Environment tags every submitted form (e.g. "production", "staging")
	Environment string
	// Timeout bounds one call to the external service
	Timeout time.Duration

	Queue         string
	QueueKey      string
	QueueCapacity int
	// ConsumerID names this instance's Redis processing list. Instances
	// sharing a QueueKey need distinct, restart-stable ids.
	ConsumerID string

	Workers     int
	PollWait    time.Duration
	MaxRetries  uint64
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Mode         string // gin mode: debug, release or test
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/fieldwork.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			LockTTL: 10 * time.Second,
		},
		Submission: SubmissionConfig{
			Environment:   "development",
			Timeout:       30 * time.Second,
			Queue:         QueueMemory,
			QueueKey:      "fieldwork:submissions",
			QueueCapacity: 256,
			Workers:       2,
			PollWait:      2 * time.Second,
			MaxRetries:    5,
			BackoffBase:   2 * time.Second,
			BackoffCap:    5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Mode:         "release",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}
	if c.Lark.ApprovalCode == "" {
		return fmt.Errorf("lark.approval_code is required")
	}

	switch c.Submission.Queue {
	case QueueMemory:
	case QueueRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis queue")
		}
	default:
		return fmt.Errorf("unknown submission.queue %q", c.Submission.Queue)
	}

	for _, pl := range c.Tariffs {
		if err := pl.Validate(); err != nil {
			return fmt.Errorf("tariff effective %s: %w", pl.EffectiveFrom, err)
		}
	}

	return nil
}
