package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// RECIPES_SERVER_PORT or RECIPES_QUEUE_MAX_CONCURRENT.
const EnvPrefix = "RECIPES"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.request_timeout_seconds", 60)

	v.SetDefault("queue.max_concurrent", 3)
	v.SetDefault("queue.queue_size", 50)
	v.SetDefault("queue.enqueue_wait_ms", 100)
	v.SetDefault("queue.poll_interval_ms", 250)
	v.SetDefault("queue.backoff_ms", 200)
	v.SetDefault("queue.lock_timeout_ms", 2000)
	v.SetDefault("queue.cleanup_interval_seconds", 600)
	v.SetDefault("queue.retention_seconds", 1800)
	v.SetDefault("queue.shutdown_timeout_seconds", 10)
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given config file instead of
// searching for config.yaml. An empty path falls back to the search.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
