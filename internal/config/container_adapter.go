package config

import (
	"github.com/garyjia/fieldwork-reports/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// It bridges the file-based config loaded by viper and the container's
// configuration structure. Tariffs are assumed valid (see Validate).
func (c *Config) ToContainerConfig() *container.Config {
	tariffs, _ := c.PriceLists()

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Redis: container.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			LockTTL:  c.Redis.LockTTL,
		},
		Lark: container.LarkConfig{
			AppID:        c.Lark.AppID,
			AppSecret:    c.Lark.AppSecret,
			ApprovalCode: c.Lark.ApprovalCode,
		},
		Submission: container.SubmissionConfig{
			Environment:   c.Submission.Environment,
			Timeout:       c.Submission.Timeout,
			Queue:         c.Submission.Queue,
			QueueKey:      c.Submission.QueueKey,
			QueueCapacity: c.Submission.QueueCapacity,
			ConsumerID:    c.Submission.ConsumerID,
			Workers:       c.Submission.Workers,
			PollWait:      c.Submission.PollWait,
			MaxRetries:    c.Submission.MaxRetries,
			BackoffBase:   c.Submission.BackoffBase,
			BackoffCap:    c.Submission.BackoffCap,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
			Mode:         c.Server.Mode,
		},
		Tariffs: tariffs,
	}
}
