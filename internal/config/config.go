package config

import "time"

// Config is the root of the application's configuration tree, grouped by
// concern and populated by Load.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"   validate:"required"`
	Providers  ProvidersConfig  `mapstructure:"providers"  validate:"required"`
	Extraction ExtractionConfig `mapstructure:"extraction" validate:"required"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"  validate:"required"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// PipelineConfig contains the worker pool and job lifecycle settings.
//
// ClaimTTL must exceed WallClockBudget so that a job claimed by a live worker
// can never be swept back to pending while that worker is still inside its
// processing budget.
type PipelineConfig struct {
	WorkerCount     int           `mapstructure:"worker_count" validate:"required,gt=0,lte=64"`
	QueueSize       int           `mapstructure:"queue_size" validate:"required,gt=0"`
	WallClockBudget time.Duration `mapstructure:"wall_clock_budget" validate:"required,gt=0"`
	ClaimTTL        time.Duration `mapstructure:"claim_ttl" validate:"required,gtfield=WallClockBudget"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval" validate:"required,gt=0"`
}

// ProvidersConfig groups the settings for every external provider the
// pipeline can call.
type ProvidersConfig struct {
	OpenAI     OpenAIConfig     `mapstructure:"openai"     validate:"required"`
	AssemblyAI AssemblyAIConfig `mapstructure:"assemblyai" validate:"required"`
	WhisperCPP WhisperCPPConfig `mapstructure:"whispercpp"`
	Gemini     GeminiConfig     `mapstructure:"gemini"     validate:"required"`
}

// OpenAIConfig contains settings for the primary transcription provider.
type OpenAIConfig struct {
	APIKey    string          `mapstructure:"api_key" validate:"required"`
	BaseURL   string          `mapstructure:"base_url" validate:"required,url"`
	Model     string          `mapstructure:"model" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Retry     RetryConfig     `mapstructure:"retry" validate:"required"`
}

// AssemblyAIConfig contains settings for the secondary transcription provider.
type AssemblyAIConfig struct {
	APIKey       string          `mapstructure:"api_key" validate:"required"`
	BaseURL      string          `mapstructure:"base_url" validate:"required,url"`
	PollInterval time.Duration   `mapstructure:"poll_interval" validate:"required,gt=0"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Retry        RetryConfig     `mapstructure:"retry" validate:"required"`
}

// WhisperCPPConfig contains settings for the local fallback transcriber.
// The fallback is disabled unless Enabled is set, in which case a model path
// is mandatory. FFmpegPath names the binary used to convert incoming audio
// to the 16 kHz mono WAV the whisper binary expects.
type WhisperCPPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BinaryPath string `mapstructure:"binary_path"`
	ModelPath  string `mapstructure:"model_path" validate:"required_if=Enabled true"`
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

// GeminiConfig contains settings for the extraction and embedding provider.
type GeminiConfig struct {
	APIKey    string          `mapstructure:"api_key" validate:"required"`
	Model     string          `mapstructure:"model" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Retry     RetryConfig     `mapstructure:"retry" validate:"required"`
}

// RateLimitConfig describes a token bucket: Capacity tokens that refill at
// RefillPerSecond tokens per second.
type RateLimitConfig struct {
	Capacity        int     `mapstructure:"capacity" validate:"required,gt=0"`
	RefillPerSecond float64 `mapstructure:"refill_per_second" validate:"required,gt=0"`
}

// RetryConfig describes the retry policy applied to a provider's calls.
// AttemptTimeout bounds each individual call; MaxAttempts bounds how many
// times a transiently failing call is tried in total.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"required,gt=0,lte=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"required,gt=0"`
	Multiplier     float64       `mapstructure:"multiplier" validate:"required,gte=1"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"required,gt=0"`
}

// ExtractionConfig contains settings for the structured extraction stage.
type ExtractionConfig struct {
	MaxAttempts   int `mapstructure:"max_attempts" validate:"required,gt=0,lte=10"`
	MaxInputChars int `mapstructure:"max_input_chars" validate:"required,gt=0"`
}

// EmbeddingConfig contains settings for the embedding stage.
type EmbeddingConfig struct {
	Model         string `mapstructure:"model" validate:"required"`
	Dimension     int    `mapstructure:"dimension" validate:"required,gt=0"`
	MaxAttempts   int    `mapstructure:"max_attempts" validate:"required,gt=0,lte=10"`
	MaxInputChars int    `mapstructure:"max_input_chars" validate:"required,gt=0"`
}
