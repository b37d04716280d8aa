package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load builds the configuration from defaults, an optional config.yaml in
// the working directory, and SCRIBE_-prefixed environment variables, in that
// order of precedence. The result is validated before it is returned.
func Load() (*Config, error) {
	v := viper.New()

	// 1. Set default values. Every key needs a default (empty for secrets) so
	// viper can discover it when the only source is an environment variable.
	setDefaults(v)

	// 2. Configure to read from an optional config file in the working
	// directory. A missing file is fine; any other read error is not.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 3. Configure to read from environment variables with SCRIBE_ prefix.
	// Nested keys map with dots replaced by underscores, e.g.
	// providers.openai.api_key becomes SCRIBE_PROVIDERS_OPENAI_API_KEY.
	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Validate config
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("pipeline.worker_count", 4)
	v.SetDefault("pipeline.queue_size", 64)
	v.SetDefault("pipeline.wall_clock_budget", 5*time.Minute)
	v.SetDefault("pipeline.claim_ttl", 10*time.Minute)
	v.SetDefault("pipeline.sweep_interval", time.Minute)

	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.model", "whisper-1")
	v.SetDefault("providers.openai.rate_limit.capacity", 10)
	v.SetDefault("providers.openai.rate_limit.refill_per_second", 2.0)
	v.SetDefault("providers.openai.retry.max_attempts", 3)
	v.SetDefault("providers.openai.retry.initial_backoff", 500*time.Millisecond)
	v.SetDefault("providers.openai.retry.multiplier", 2.0)
	v.SetDefault("providers.openai.retry.attempt_timeout", 30*time.Second)

	v.SetDefault("providers.assemblyai.api_key", "")
	v.SetDefault("providers.assemblyai.base_url", "https://api.assemblyai.com")
	v.SetDefault("providers.assemblyai.poll_interval", 2*time.Second)
	v.SetDefault("providers.assemblyai.rate_limit.capacity", 5)
	v.SetDefault("providers.assemblyai.rate_limit.refill_per_second", 1.0)
	v.SetDefault("providers.assemblyai.retry.max_attempts", 3)
	v.SetDefault("providers.assemblyai.retry.initial_backoff", 500*time.Millisecond)
	v.SetDefault("providers.assemblyai.retry.multiplier", 2.0)
	v.SetDefault("providers.assemblyai.retry.attempt_timeout", 30*time.Second)

	v.SetDefault("providers.whispercpp.enabled", false)
	v.SetDefault("providers.whispercpp.binary_path", "whisper-cli")
	v.SetDefault("providers.whispercpp.model_path", "")
	v.SetDefault("providers.whispercpp.ffmpeg_path", "ffmpeg")

	v.SetDefault("providers.gemini.api_key", "")
	v.SetDefault("providers.gemini.model", "gemini-2.0-flash")
	v.SetDefault("providers.gemini.rate_limit.capacity", 8)
	v.SetDefault("providers.gemini.rate_limit.refill_per_second", 1.0)
	v.SetDefault("providers.gemini.retry.max_attempts", 3)
	v.SetDefault("providers.gemini.retry.initial_backoff", 500*time.Millisecond)
	v.SetDefault("providers.gemini.retry.multiplier", 2.0)
	v.SetDefault("providers.gemini.retry.attempt_timeout", 30*time.Second)

	v.SetDefault("extraction.max_attempts", 3)
	v.SetDefault("extraction.max_input_chars", 100000)

	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.max_attempts", 2)
	v.SetDefault("embedding.max_input_chars", 18000)
}
