package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds all tonal configuration.
type Config struct {
	Mode      string `env:"TONAL_MODE" default:"serve"`
	LogLevel  string `env:"TONAL_LOG_LEVEL" default:"info"`
	LogFormat string `env:"TONAL_LOG_FORMAT" default:"text"`

	Server   ServerConfig
	Source   SourceConfig
	Training TrainingConfig
	Schedule ScheduleConfig
	Cache    CacheConfig
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port              string        `env:"TONAL_PORT" default:"5000"`
	ShutdownTimeout   time.Duration `env:"TONAL_SHUTDOWN_TIMEOUT" default:"10s"`
	RateLimit         float64       `env:"TONAL_RATE_LIMIT" default:"20"`
	RateBurst         int           `env:"TONAL_RATE_BURST" default:"40"`
	RecordPredictions bool          `env:"TONAL_RECORD_PREDICTIONS" default:"true"`
}

// SourceConfig selects where labeled examples come from.
type SourceConfig struct {
	Provider    string `env:"TONAL_SOURCE" default:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	Path        string `env:"TONAL_EXAMPLES_PATH" default:"data/examples.ndjson"`
}

// TrainingConfig holds pipeline and artifact settings.
type TrainingConfig struct {
	ModelDir     string  `env:"TONAL_MODEL_DIR" default:"models"`
	LabelPolicy  string  `env:"TONAL_LABEL_POLICY" default:"binary"`
	MaxFeatures  int     `env:"TONAL_MAX_FEATURES" default:"100"`
	StopWords    string  `env:"TONAL_STOPWORDS"`
	TestFraction float64 `env:"TONAL_TEST_FRACTION" default:"0.25"`
	SplitSeed    uint64  `env:"TONAL_SPLIT_SEED" default:"42"`
}

// ScheduleConfig holds retraining and retention settings.
type ScheduleConfig struct {
	Keep     int           `env:"TONAL_RETENTION_KEEP" default:"3"`
	Interval time.Duration `env:"TONAL_RETRAIN_INTERVAL" default:"24h"`
	OnStart  bool          `env:"TONAL_RETRAIN_ON_START" default:"false"`
}

// CacheConfig holds the optional Redis score cache settings.
type CacheConfig struct {
	RedisURL string        `env:"REDIS_URL"`
	TTL      time.Duration `env:"TONAL_CACHE_TTL" default:"1h"`
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	validModes      = []string{"serve", "retrain"}
	validPolicies   = []string{"binary", "ternary"}
	validSources    = []string{"postgres", "jsonfile"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks that all config values are sensible. Every problem is
// reported, joined into one error.
func (c Config) Validate() error {
	var errs []error

	oneOf := func(name, value string, allowed []string) {
		for _, a := range allowed {
			if strings.EqualFold(value, a) {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value))
	}

	oneOf("TONAL_MODE", c.Mode, validModes)
	oneOf("TONAL_LOG_LEVEL", c.LogLevel, validLogLevels)
	oneOf("TONAL_LOG_FORMAT", c.LogFormat, validLogFormats)
	oneOf("TONAL_SOURCE", c.Source.Provider, validSources)
	oneOf("TONAL_LABEL_POLICY", c.Training.LabelPolicy, validPolicies)

	if c.Training.TestFraction <= 0 || c.Training.TestFraction >= 1 {
		errs = append(errs, fmt.Errorf("TONAL_TEST_FRACTION must be in (0, 1), got %v", c.Training.TestFraction))
	}
	if c.Training.MaxFeatures < 1 {
		errs = append(errs, fmt.Errorf("TONAL_MAX_FEATURES must be at least 1, got %d", c.Training.MaxFeatures))
	}
	if c.Schedule.Keep < 1 {
		errs = append(errs, fmt.Errorf("TONAL_RETENTION_KEEP must be at least 1, got %d", c.Schedule.Keep))
	}
	if c.Schedule.Interval < 0 {
		errs = append(errs, fmt.Errorf("TONAL_RETRAIN_INTERVAL must be non-negative, got %v", c.Schedule.Interval))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("TONAL_SHUTDOWN_TIMEOUT must be non-negative, got %v", c.Server.ShutdownTimeout))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("TONAL_RATE_LIMIT and TONAL_RATE_BURST must be non-negative"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("TONAL_CACHE_TTL must be non-negative, got %v", c.Cache.TTL))
	}
	if c.Training.ModelDir == "" {
		errs = append(errs, errors.New("TONAL_MODEL_DIR is required"))
	}

	if c.Source.DatabaseURL == "" && strings.EqualFold(c.Source.Provider, "postgres") {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres source"))
	}
	if strings.EqualFold(c.Source.Provider, "jsonfile") && c.Source.Path == "" {
		errs = append(errs, errors.New("TONAL_EXAMPLES_PATH is required for the jsonfile source"))
	}

	return errors.Join(errs...)
}
