package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// AllowedOrigins feeds the CORS middleware; "*" allows any origin
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig contains the recipe archive settings. An empty URL
// disables the archive.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey      string  `mapstructure:"gemini_api_key"`
	ModelName         string  `mapstructure:"model_name" validate:"required"`
	Temperature       float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"gte=1"`
	// RequestTimeoutSeconds bounds a single model call
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"gte=1"`
}

// RetryDelay returns RetryDelaySeconds as a time.Duration.
func (c LLMConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// RequestTimeout returns RequestTimeoutSeconds as a time.Duration.
func (c LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// QueueConfig contains the task queue settings.
type QueueConfig struct {
	MaxConcurrent          int `mapstructure:"max_concurrent" validate:"gte=1,lte=16"`
	QueueSize              int `mapstructure:"queue_size" validate:"gte=1"`
	EnqueueWaitMS          int `mapstructure:"enqueue_wait_ms" validate:"gte=0"`
	PollIntervalMS         int `mapstructure:"poll_interval_ms" validate:"gte=1"`
	BackoffMS              int `mapstructure:"backoff_ms" validate:"gte=1"`
	LockTimeoutMS          int `mapstructure:"lock_timeout_ms" validate:"gte=1"`
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds" validate:"gte=1"`
	RetentionSeconds       int `mapstructure:"retention_seconds" validate:"gte=1"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// EnqueueWait returns how long Submit waits for room in a full queue.
func (c QueueConfig) EnqueueWait() time.Duration { return ms(c.EnqueueWaitMS) }

// PollInterval returns the worker loop dequeue timeout.
func (c QueueConfig) PollInterval() time.Duration { return ms(c.PollIntervalMS) }

// Backoff returns the pause taken when every slot is busy.
func (c QueueConfig) Backoff() time.Duration { return ms(c.BackoffMS) }

// LockTimeout returns the registry lock acquisition bound.
func (c QueueConfig) LockTimeout() time.Duration { return ms(c.LockTimeoutMS) }

// CleanupInterval returns the minimum time between retention sweeps.
func (c QueueConfig) CleanupInterval() time.Duration { return seconds(c.CleanupIntervalSeconds) }

// Retention returns how long terminal tasks remain queryable.
func (c QueueConfig) Retention() time.Duration { return seconds(c.RetentionSeconds) }

// ShutdownTimeout returns how long shutdown waits for the worker loop.
func (c QueueConfig) ShutdownTimeout() time.Duration { return seconds(c.ShutdownTimeoutSeconds) }
