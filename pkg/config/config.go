// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, SQLite, AutoPhrase, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	AutoPhrase AutoPhraseConfig `yaml:"autophrase"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty Host
// disables the postgres: phrase resource.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables reload fan-out and analytics publishing.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	PhrasesReload string `yaml:"phrasesReload"`
	RewriteEvents string `yaml:"rewriteEvents"`
}

// RedisConfig holds Redis connection and plan-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SQLiteConfig holds settings for the sqlite: phrase resource.
type SQLiteConfig struct {
	BusyTimeout time.Duration `yaml:"busyTimeout"`
}

// AutoPhraseConfig carries the plugin options in their flat key/value form,
// exactly as a host would hand them to the plugin, plus service-side knobs
// for loading and reloading the phrase list.
type AutoPhraseConfig struct {
	Params        map[string]string `yaml:"params"`
	Watch         bool              `yaml:"watch"`
	WatchDebounce time.Duration     `yaml:"watchDebounce"`
	LoadTimeout   time.Duration     `yaml:"loadTimeout"`
	LoadAttempts  int               `yaml:"loadAttempts"`
}

// RateLimitConfig bounds how often a single client may trigger a reload.
type RateLimitConfig struct {
	ReloadsPerWindow int           `yaml:"reloadsPerWindow"`
	Window           time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads the config like Read and then validates it for running the
// service.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads a YAML config file (if provided) and applies environment-variable
// overrides without validating. Tools that only need store connection
// settings use it directly.
func Read(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file %s: %w", apperrors.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %w", apperrors.ErrConfiguration, path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range: %d", apperrors.ErrConfiguration, c.Server.Port)
	}
	if c.AutoPhrase.Params["phrases"] == "" {
		return fmt.Errorf("%w: autophrase.params.phrases is required", apperrors.ErrConfiguration)
	}
	if c.RateLimit.ReloadsPerWindow < 1 {
		return fmt.Errorf("%w: rateLimit.reloadsPerWindow must be positive", apperrors.ErrConfiguration)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "autophrase",
			User:            "autophrase",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "autophrase",
			Topics: KafkaTopics{
				PhrasesReload: "phrases-reload",
				RewriteEvents: "rewrite-events",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			BusyTimeout: 5 * time.Second,
		},
		AutoPhrase: AutoPhraseConfig{
			Params: map[string]string{
				"defType": "boolean",
			},
			WatchDebounce: 500 * time.Millisecond,
			LoadTimeout:   10 * time.Second,
			LoadAttempts:  3,
		},
		RateLimit: RateLimitConfig{
			ReloadsPerWindow: 5,
			Window:           time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
		},
	}
}

// applyEnvOverrides reads AP_* environment variables and overrides the
// corresponding config fields. AP_PARAM_<NAME> sets a plugin option, e.g.
// AP_PARAM_IGNORECASE=true.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("AP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("AP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("AP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("AP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("AP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("AP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("AP_PHRASES_WATCH"); v != "" {
		if watch, err := strconv.ParseBool(v); err == nil {
			cfg.AutoPhrase.Watch = watch
		}
	}
	if cfg.AutoPhrase.Params == nil {
		cfg.AutoPhrase.Params = make(map[string]string)
	}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, "AP_PARAM_") {
			continue
		}
		key := paramKey(strings.TrimPrefix(name, "AP_PARAM_"))
		if key != "" {
			cfg.AutoPhrase.Params[key] = value
		}
	}
}

// paramKey maps an upper-cased env suffix back to the plugin option name.
func paramKey(envSuffix string) string {
	for _, known := range []string{"phrases", "ignoreCase", "replaceWhitespaceWith", "includeTokens", "defType"} {
		if strings.EqualFold(known, envSuffix) {
			return known
		}
	}
	return ""
}
