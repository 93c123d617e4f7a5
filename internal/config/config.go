package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Lark       LarkConfig       `mapstructure:"lark"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Tariffs    []TariffConfig   `mapstructure:"tariffs"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	ApprovalCode string `mapstructure:"approval_code"`
}

// SubmissionConfig holds external submission settings
type SubmissionConfig struct {
	Environment   string        `mapstructure:"environment"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Queue         string        `mapstructure:"queue"`
	QueueKey      string        `mapstructure:"queue_key"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
	ConsumerID    string        `mapstructure:"consumer_id"`
	Workers       int           `mapstructure:"workers"`
	PollWait      time.Duration `mapstructure:"poll_wait"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffCap    time.Duration `mapstructure:"backoff_cap"`
}

// TariffConfig is one price list as written in the config file.
// Money values are strings so they parse exactly.
type TariffConfig struct {
	EffectiveFrom  string       `mapstructure:"effective_from"`
	KmRate         string       `mapstructure:"km_rate"`
	KmRateElevated string       `mapstructure:"km_rate_elevated"`
	Bands          []BandConfig `mapstructure:"bands"`
}

// BandConfig is one allowance band of a TariffConfig
type BandConfig struct {
	From          float64 `mapstructure:"from"`
	To            float64 `mapstructure:"to"`
	MealAllowance string  `mapstructure:"meal_allowance"`
	WorkAllowance string  `mapstructure:"work_allowance"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// A .env file next to the working directory is applied first if present;
// variables already set in the environment win over it.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.path", "data/fieldwork.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.lock_ttl", 10*time.Second)

	// Submission defaults
	v.SetDefault("submission.environment", "development")
	v.SetDefault("submission.timeout", 30*time.Second)
	v.SetDefault("submission.queue", "memory")
	v.SetDefault("submission.queue_key", "fieldwork:submissions")
	v.SetDefault("submission.queue_capacity", 256)
	v.SetDefault("submission.workers", 2)
	v.SetDefault("submission.poll_wait", 2*time.Second)
	v.SetDefault("submission.max_retries", 5)
	v.SetDefault("submission.backoff_base", 2*time.Second)
	v.SetDefault("submission.backoff_cap", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"lark.app_id":            "LARK_APP_ID",
		"lark.app_secret":        "LARK_APP_SECRET",
		"lark.approval_code":     "LARK_APPROVAL_CODE",
		"redis.addr":             "REDIS_ADDR",
		"redis.password":         "REDIS_PASSWORD",
		"submission.environment": "SUBMISSION_ENVIRONMENT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
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
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	if _, err := c.PriceLists(); err != nil {
		return err
	}
	return nil
}

// PriceLists parses the configured tariffs
func (c *Config) PriceLists() ([]*entity.PriceList, error) {
	lists := make([]*entity.PriceList, 0, len(c.Tariffs))
	for i, t := range c.Tariffs {
		pl, err := t.toPriceList()
		if err != nil {
			return nil, fmt.Errorf("tariffs[%d]: %w", i, err)
		}
		lists = append(lists, pl)
	}
	return lists, nil
}

func (t TariffConfig) toPriceList() (*entity.PriceList, error) {
	from, err := entity.ParseDate(t.EffectiveFrom)
	if err != nil {
		return nil, err
	}
	rate, err := decimal.NewFromString(t.KmRate)
	if err != nil {
		return nil, fmt.Errorf("km_rate: %w", err)
	}
	elevated, err := decimal.NewFromString(t.KmRateElevated)
	if err != nil {
		return nil, fmt.Errorf("km_rate_elevated: %w", err)
	}

	pl := &entity.PriceList{
		EffectiveFrom:  from,
		KmRate:         rate,
		KmRateElevated: elevated,
		Bands:          make([]entity.TariffBand, 0, len(t.Bands)),
	}
	for i, b := range t.Bands {
		meal, err := decimal.NewFromString(b.MealAllowance)
		if err != nil {
			return nil, fmt.Errorf("bands[%d].meal_allowance: %w", i, err)
		}
		work, err := decimal.NewFromString(b.WorkAllowance)
		if err != nil {
			return nil, fmt.Errorf("bands[%d].work_allowance: %w", i, err)
		}
		pl.Bands = append(pl.Bands, entity.TariffBand{
			From:          b.From,
			To:            b.To,
			MealAllowance: meal,
			WorkAllowance: work,
		})
	}

	if err := pl.Validate(); err != nil {
		return nil, err
	}
	return pl, nil
}
