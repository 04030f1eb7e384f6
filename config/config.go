/*
Package config loads process configuration from the environment.

PURPOSE:
  Every binary (server, worker, reqctl) reads the same variables. A .env
  file in the working directory is loaded first when present; real
  environment variables always win over it.

VARIABLES:
  APP_ENV, APP_ADDR, APP_*_TIMEOUT   HTTP server
  LOG_FORMAT, LOG_LEVEL              slog handler (json | text)
  DB_PATH                            SQLite file, ":memory:" for tests
  REDIS_ADDR                         Template cache and job queue; empty disables both
  ENGINE_*                           requisition.Config (days per month, cascade depth)
  TEMPLATE_*                         template.Rules (label length, pattern)

SEE ALSO:
  - requisition/config.go: Engine constants
  - template/rules.go: Template rule constants
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/template"
)

// Config holds runtime configuration.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DBPath string `envconfig:"DB_PATH" default:"requisitions.db"`

	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	TemplateCacheTTL time.Duration `envconfig:"TEMPLATE_CACHE_TTL" default:"10m"`

	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`
	CORSOrigins        []string `envconfig:"CORS_ORIGINS" default:"*"`
	MessagesLocale     string   `envconfig:"MESSAGES_LOCALE" default:"en"`

	RecalcInterval    time.Duration `envconfig:"RECALC_INTERVAL" default:"1m"`
	RecalcBatchSize   int           `envconfig:"RECALC_BATCH_SIZE" default:"50"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"10"`

	Engine        requisition.Config `envconfig:"ENGINE"`
	TemplateRules template.Rules     `envconfig:"TEMPLATE"`
}

// Load reads the given .env files (".env" when none are named), then the
// environment. Missing .env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.Engine.DaysPerMonth <= 0 {
		return errors.New("config: ENGINE_DAYS_PER_MONTH must be positive")
	}
	if c.Engine.MaxCascadeDepth <= 0 {
		return errors.New("config: ENGINE_MAX_CASCADE_DEPTH must be positive")
	}
	if c.RecalcBatchSize <= 0 {
		return errors.New("config: RECALC_BATCH_SIZE must be positive")
	}
	if _, err := regexp.Compile(c.TemplateRules.LabelPattern); err != nil {
		return fmt.Errorf("config: TEMPLATE_LABEL_PATTERN: %w", err)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// CacheEnabled reports whether a Redis address is configured.
func (c *Config) CacheEnabled() bool {
	return c != nil && c.RedisAddr != ""
}
