package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration of the PlantCare services.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Model     ModelConfig     `yaml:"model"`
	Cache     CacheConfig     `yaml:"cache"`
	Reference ReferenceConfig `yaml:"reference"`
	Chat      ChatConfig      `yaml:"chat"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// DatabaseConfig describes the scan and chat history store. It is always an
// in-memory SQLite database, so nothing outlives the process.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ModelConfig points at the model server. An empty URL selects the deterministic demo classifier.
type ModelConfig struct {
	URL             string        `yaml:"url"`
	Name            string        `yaml:"name"`
	Path            string        `yaml:"path"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// ReferenceConfig selects where agronomic reference data is loaded from at startup.
type ReferenceConfig struct {
	Source string `yaml:"source"` // "embedded", "file" or "postgres"
	File   string `yaml:"file"`
	// PostgresDSN is only read when Source is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`
}

type ChatConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	HistoryTurns int    `yaml:"history_turns"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{Level: "info"},
		Model: ModelConfig{
			Name:            "plantcare",
			Path:            "mobilenetv2_best",
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			BreakerFailures: 5,
			BreakerOpenFor:  30 * time.Second,
		},
		Cache: CacheConfig{TTL: 24 * time.Hour},
		Reference: ReferenceConfig{
			Source: "embedded",
		},
		Chat: ChatConfig{
			DefaultModel: "gemini-2.0-flash",
			HistoryTurns: 10,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file named by
// PLANTCARE_CONFIG, and environment overrides, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("PLANTCARE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_HOST", &c.Server.Host)
	num("SERVER_PORT", &c.Server.Port)
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	str("LOG_LEVEL", &c.Logging.Level)

	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)

	str("MODEL_URL", &c.Model.URL)
	str("MODEL_NAME", &c.Model.Name)
	str("MODEL_PATH", &c.Model.Path)
	dur("MODEL_TIMEOUT", &c.Model.Timeout)
	num("MODEL_MAX_RETRIES", &c.Model.MaxRetries)

	str("REDIS_URL", &c.Cache.RedisURL)
	dur("CACHE_TTL", &c.Cache.TTL)

	str("REFERENCE_SOURCE", &c.Reference.Source)
	str("REFERENCE_FILE", &c.Reference.File)
	str("REFERENCE_POSTGRES_DSN", &c.Reference.PostgresDSN)
	if c.Reference.File != "" && c.Reference.Source == "embedded" {
		c.Reference.Source = "file"
	}

	str("GEMINI_API_KEY", &c.Chat.APIKey)
	str("CHAT_MODEL", &c.Chat.DefaultModel)

	if v, ok := lookup("TRACING_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRACING_ENABLED: %w", err))
		} else {
			c.Tracing.Enabled = enabled
		}
	}

	return errors.Join(errs...)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}

	if c.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("unsupported database driver %q: history is kept in memory", c.Database.Driver))
	}
	if c.Database.DSN != "" && !strings.Contains(c.Database.DSN, "mode=memory") {
		errs = append(errs, errors.New("database dsn must name an in-memory database (mode=memory)"))
	}

	if c.Model.Timeout <= 0 {
		errs = append(errs, errors.New("model timeout must be positive"))
	}
	if c.Model.MaxRetries < 0 {
		errs = append(errs, errors.New("model max retries must not be negative"))
	}
	if c.Model.URL != "" && c.Model.Name == "" {
		errs = append(errs, errors.New("model name is required when a model url is set"))
	}

	switch c.Reference.Source {
	case "embedded":
	case "file":
		if c.Reference.File == "" {
			errs = append(errs, errors.New("reference source 'file' requires reference file"))
		}
	case "postgres":
		if c.Reference.PostgresDSN == "" {
			errs = append(errs, errors.New("reference source 'postgres' requires a postgres dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported reference source %q", c.Reference.Source))
	}

	if c.Chat.HistoryTurns < 0 {
		errs = append(errs, errors.New("chat history turns must not be negative"))
	}

	return errors.Join(errs...)
}

// Address returns the host:port the HTTP server binds to.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
