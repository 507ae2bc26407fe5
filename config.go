package playground

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Desarso/playground/models"
	"github.com/Desarso/playground/models/anthropic"
	"github.com/Desarso/playground/models/gemini"
	"github.com/Desarso/playground/models/openrouter"
	"github.com/Desarso/playground/prompts"
	"github.com/Desarso/playground/stores"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds everything needed to run the playground server
type Config struct {
	Addr string `yaml:"addr"`

	// Generation backend
	Provider    string  `yaml:"provider"` // anthropic, gemini, openrouter, groq, cerebras
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// Playground
	EntryPoint    string        `yaml:"entry_point"`
	RenderTimeout time.Duration `yaml:"render_timeout"`

	// Sessions
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	ReapSchedule       string        `yaml:"reap_schedule"` // cron expression

	Archive *stores.StoreConfig `yaml:"archive"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text, json
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Addr:               ":8080",
		Provider:           "anthropic",
		MaxTokens:          anthropic.DefaultMaxTokens,
		Temperature:        anthropic.DefaultTemperature,
		EntryPoint:         prompts.DefaultEntryPoint,
		RenderTimeout:      2 * time.Second,
		SessionIdleTimeout: 30 * time.Minute,
		ReapSchedule:       "@every 1m",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// WithAddr sets the listen address
func (c *Config) WithAddr(addr string) *Config {
	c.Addr = addr
	return c
}

// WithProvider sets the generation backend and, optionally, its model
func (c *Config) WithProvider(provider, model string) *Config {
	c.Provider = provider
	c.Model = model
	return c
}

// WithEntryPoint sets the component name generated sources must define
func (c *Config) WithEntryPoint(name string) *Config {
	c.EntryPoint = name
	return c
}

// WithRenderTimeout sets how long one sandbox render may run
func (c *Config) WithRenderTimeout(d time.Duration) *Config {
	c.RenderTimeout = d
	return c
}

// WithSessionIdleTimeout sets how long an untouched session is kept
func (c *Config) WithSessionIdleTimeout(d time.Duration) *Config {
	c.SessionIdleTimeout = d
	return c
}

// WithSQLiteArchive enables the transcript archive in a SQLite file
func (c *Config) WithSQLiteArchive(dbPath string) *Config {
	c.Archive = stores.NewStoreConfig("sqlite", dbPath)
	return c
}

// WithPostgresArchive enables the transcript archive in PostgreSQL
func (c *Config) WithPostgresArchive(dsn string) *Config {
	c.Archive = stores.NewStoreConfig("postgres", dsn)
	return c
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// the environment, in increasing order of precedence. A .env file in the
// working directory is loaded first if present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PLAYGROUND_ADDR":          &c.Addr,
		"PLAYGROUND_PROVIDER":      &c.Provider,
		"PLAYGROUND_MODEL":         &c.Model,
		"PLAYGROUND_API_KEY_ENV":   &c.APIKeyEnv,
		"PLAYGROUND_BASE_URL":      &c.BaseURL,
		"PLAYGROUND_ENTRY_POINT":   &c.EntryPoint,
		"PLAYGROUND_REAP_SCHEDULE": &c.ReapSchedule,
		"PLAYGROUND_LOG_LEVEL":     &c.LogLevel,
		"PLAYGROUND_LOG_FORMAT":    &c.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PLAYGROUND_MAX_TOKENS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PLAYGROUND_MAX_TOKENS: %w", err)
		}
		c.MaxTokens = n
	}
	if v, ok := lookup("PLAYGROUND_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid PLAYGROUND_TEMPERATURE: %w", err)
		}
		c.Temperature = f
	}
	durations := map[string]*time.Duration{
		"PLAYGROUND_RENDER_TIMEOUT":       &c.RenderTimeout,
		"PLAYGROUND_SESSION_IDLE_TIMEOUT": &c.SessionIdleTimeout,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup("PLAYGROUND_ARCHIVE"); ok && v != "" {
		storeType, conn := v, ""
		if t, rest, found := strings.Cut(v, ":"); found {
			storeType, conn = t, rest
		}
		c.Archive = stores.NewStoreConfig(storeType, conn)
	}
	return nil
}

// Validate checks the values LoadConfig cannot fix up itself.
func (c *Config) Validate() error {
	switch c.Provider {
	case "anthropic", "gemini":
	default:
		if _, ok := openrouter.Presets[c.Provider]; !ok {
			return fmt.Errorf("unsupported provider: %s", c.Provider)
		}
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render_timeout must be positive, got %s", c.RenderTimeout)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// NewGateway builds the generation backend selected by the configuration.
func NewGateway(c *Config, logger logrus.FieldLogger) (models.Gateway, error) {
	temperature := c.Temperature
	maxTokens := c.MaxTokens

	switch c.Provider {
	case "anthropic":
		return &anthropic.Anthropic_Model{
			Model:       c.Model,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
			BaseURL:     c.BaseURL,
			APIKeyEnv:   c.APIKeyEnv,
			Logger:      logger,
		}, nil
	case "gemini":
		return &gemini.Gemini_Model{
			Model:       c.Model,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
			BaseURL:     c.BaseURL,
			APIKeyEnv:   c.APIKeyEnv,
			Logger:      logger,
		}, nil
	}

	model, err := openrouter.NewFromPreset(c.Provider)
	if err != nil {
		return nil, err
	}
	model.Model = c.Model
	model.Temperature = &temperature
	model.MaxTokens = &maxTokens
	model.BaseURL = c.BaseURL
	model.APIKeyEnv = c.APIKeyEnv
	model.Logger = logger
	return model, nil
}

// NewLogger returns a logrus logger configured from LogLevel and LogFormat.
func NewLogger(c *Config) *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
